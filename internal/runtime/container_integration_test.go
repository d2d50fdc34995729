// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"testing"

	"github.com/phylorun/phylorun/internal/container"
	"github.com/phylorun/phylorun/internal/provision"
	"github.com/phylorun/phylorun/internal/testutil"
	"github.com/phylorun/phylorun/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

// checkTestcontainersAvailable reports whether testcontainers can reach a
// Docker-compatible provider. Provider detection panics on some hosts.
func checkTestcontainersAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer provider.Close()
	return true
}

// TestContainerRuntime_Integration builds a small image and runs jobs in it
// against a real engine.
func TestContainerRuntime_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	engine, err := container.NewEngine(t.Context(), container.EngineTypeAuto)
	if err != nil {
		t.Skipf("skipping container integration tests: %v", err)
	}
	_ = engine.Close()

	if !checkTestcontainersAvailable() {
		t.Skip("skipping container integration tests: testcontainers provider not available")
	}

	sem := testutil.ContainerSemaphore()
	sem <- struct{}{}
	defer func() { <-sem }()

	t.Run("MountsAnalysisDirectory", testContainerMountsAnalysisDirectory)
	t.Run("StopsOnFirstFailure", testContainerStopsOnFirstFailure)
}

func integrationJob(t *testing.T, steps ...[]string) Job {
	t.Helper()

	dir := t.TempDir()
	file := filepath.Join(dir, "primates.xml")
	require.NoError(t, os.WriteFile(file, []byte("<beast/>\n"), 0o644))

	return Job{
		Image: provision.Image{
			Key:        provision.KeyBeast2,
			Ref:        "phylorun-test/alpine:integration",
			Version:    "integration",
			Dockerfile: "FROM alpine:3.20\n",
			Digest:     "integration",
		},
		HostFile: file,
		Steps:    steps,
	}
}

func newIntegrationRuntime(stdout io.Writer) *ContainerRuntime {
	return NewContainerRuntime(
		func(ctx context.Context) (container.Engine, error) {
			return container.NewEngine(ctx, container.EngineTypeAuto)
		},
		WithContainerStreams(stdout, io.Discard),
		WithContainerPlatform("linux/"+goruntime.GOARCH),
		WithProvisionOptions(provision.WithBuildLock(false), provision.WithBuildOutput(io.Discard)),
	)
}

func testContainerMountsAnalysisDirectory(t *testing.T) {
	var stdout bytes.Buffer
	job := integrationJob(t, []string{"cat", ContainerPath("primates.xml")})

	code, err := newIntegrationRuntime(&stdout).Run(t.Context(), job)
	require.NoError(t, err)
	assert.Equal(t, types.ExitSuccess, code)
	assert.Equal(t, "<beast/>", strings.TrimSpace(stdout.String()))
}

func testContainerStopsOnFirstFailure(t *testing.T) {
	var stdout bytes.Buffer
	job := integrationJob(t,
		[]string{"sh", "-c", "exit 4"},
		[]string{"echo", "unreachable"},
	)

	code, err := newIntegrationRuntime(&stdout).Run(t.Context(), job)
	require.NoError(t, err)
	assert.Equal(t, types.ExitCode(4), code)
	assert.Empty(t, stdout.String())
}
