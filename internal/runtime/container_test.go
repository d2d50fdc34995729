// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/phylorun/phylorun/internal/container"
	"github.com/phylorun/phylorun/internal/provision"
	"github.com/phylorun/phylorun/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDigest  = "5f1c0ffee"
	testTimeout = 5 * time.Second
	testTick    = 10 * time.Millisecond
)

// fakeEngine is an in-memory container.Engine recording the lifecycle calls
// a run makes.
type fakeEngine struct {
	mu sync.Mutex

	imagePresent bool
	startErr     error
	buildErr     error
	execCodes    []types.ExitCode
	execErr      error
	// blockExec makes Exec wait for ctx cancellation.
	blockExec bool

	builds    int
	started   []container.StartOptions
	execs     []container.ExecOptions
	stops     int
	removes   int
	stopCtxOK bool
	closed    bool
}

func (f *fakeEngine) Name() string { return "fake" }
func (f *fakeEngine) Ping(context.Context) error { return nil }

func (f *fakeEngine) InspectImage(context.Context, container.ImageRef) (container.ImageInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.imagePresent {
		return container.ImageInfo{}, container.ErrImageNotFound
	}
	return container.ImageInfo{Labels: map[string]string{provision.LabelTemplateDigest: testDigest}}, nil
}

func (f *fakeEngine) Build(context.Context, container.BuildOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds++
	if f.buildErr != nil {
		return f.buildErr
	}
	f.imagePresent = true
	return nil
}

func (f *fakeEngine) Start(_ context.Context, opts container.StartOptions) (container.ContainerID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, opts)
	return "c0ffee", nil
}

func (f *fakeEngine) Exec(ctx context.Context, _ container.ContainerID, opts container.ExecOptions) (types.ExitCode, error) {
	f.mu.Lock()
	f.execs = append(f.execs, opts)
	n := len(f.execs)
	block := f.blockExec
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return types.ExitFailure, ctx.Err()
	}
	if f.execErr != nil {
		return types.ExitFailure, f.execErr
	}
	if n <= len(f.execCodes) {
		return f.execCodes[n-1], nil
	}
	return types.ExitSuccess, nil
}

func (f *fakeEngine) Stop(ctx context.Context, _ container.ContainerID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.stopCtxOK = ctx.Err() == nil
	return nil
}

func (f *fakeEngine) Remove(context.Context, container.ContainerID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes++
	return nil
}

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func testJob(t *testing.T, steps ...[]string) Job {
	t.Helper()
	return Job{
		Image: provision.Image{
			Key:        provision.KeyBeast2,
			Ref:        "phylorun/beast2:2.7.7",
			Version:    "2.7.7",
			Dockerfile: "FROM ubuntu:latest\n",
			Digest:     testDigest,
		},
		HostFile: "/home/u/analyses/primates.xml",
		Steps:    steps,
	}
}

func newTestContainerRuntime(t *testing.T, engine *fakeEngine, cwd string) *ContainerRuntime {
	t.Helper()
	return NewContainerRuntime(
		func(context.Context) (container.Engine, error) { return engine, nil },
		WithContainerStreams(io.Discard, io.Discard),
		WithProvisionOptions(provision.WithBuildLock(false), provision.WithBuildOutput(io.Discard)),
		WithGetwd(func() (string, error) { return cwd, nil }),
	)
}

func assertTornDownOnce(t *testing.T, engine *fakeEngine) {
	t.Helper()
	assert.Equal(t, 1, engine.stops, "stop count")
	assert.Equal(t, 1, engine.removes, "remove count")
	assert.True(t, engine.closed, "engine closed")
}

func TestContainerRun_StepsInOrder(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{imagePresent: true}
	job := testJob(t,
		[]string{"sh", "/root/.beast/2.7/lphybeast/bin/lphybeast", "/data/primates.lphy"},
		[]string{"/opt/beast/bin/beast", "-working", "/data/primates.xml"},
	)

	code, err := newTestContainerRuntime(t, engine, "/home/u").Run(t.Context(), job)
	require.NoError(t, err)
	assert.Equal(t, types.ExitSuccess, code)

	require.Len(t, engine.started, 1)
	start := engine.started[0]
	assert.Equal(t, []string{"sleep", "infinity"}, start.Cmd)
	assert.Equal(t, "linux/amd64", start.Platform)
	assert.Equal(t, container.ImageRef("phylorun/beast2:2.7.7"), start.Image)
	assert.Equal(t, []container.Mount{
		{HostPath: "/home/u/analyses", ContainerPath: "/data"},
		{HostPath: "/home/u", ContainerPath: "/working"},
	}, start.Mounts)

	require.Len(t, engine.execs, 2)
	for i, opts := range engine.execs {
		assert.Equal(t, job.Steps[i], opts.Cmd)
		assert.Equal(t, "/working", opts.WorkDir)
		assert.Equal(t, "root", opts.User)
	}
	assert.Zero(t, engine.builds)
	assertTornDownOnce(t, engine)
}

func TestContainerRun_WorkDirIsDataWhenCwdIsFileDir(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{imagePresent: true}
	_, err := newTestContainerRuntime(t, engine, "/home/u/analyses/").Run(t.Context(), testJob(t, []string{"rb", "/data/primates.rev"}))
	require.NoError(t, err)

	require.Len(t, engine.started, 1)
	assert.Equal(t, []container.Mount{{HostPath: "/home/u/analyses", ContainerPath: "/data"}}, engine.started[0].Mounts)
	assert.Equal(t, "/data", engine.execs[0].WorkDir)
}

func TestContainerRun_StopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{imagePresent: true, execCodes: []types.ExitCode{2, 0}}
	code, err := newTestContainerRuntime(t, engine, "/home/u").Run(t.Context(), testJob(t, []string{"a"}, []string{"b"}))

	require.NoError(t, err)
	assert.Equal(t, types.ExitCode(2), code)
	assert.Len(t, engine.execs, 1)
	assertTornDownOnce(t, engine)
}

func TestContainerRun_ExecErrorTearsDown(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{imagePresent: true, execErr: errors.New("attach: broken pipe")}
	code, err := newTestContainerRuntime(t, engine, "/home/u").Run(t.Context(), testJob(t, []string{"rb", "/data/x.rev"}))

	assert.ErrorIs(t, err, ErrExecution)
	assert.Equal(t, types.ExitFailure, code)
	assertTornDownOnce(t, engine)
}

func TestContainerRun_CancelledRunStillTearsDown(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{imagePresent: true, blockExec: true}
	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan error, 1)
	go func() {
		_, err := newTestContainerRuntime(t, engine, "/home/u").Run(ctx, testJob(t, []string{"sleep", "100"}))
		done <- err
	}()

	require.Eventually(t, func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		return len(engine.execs) == 1
	}, testTimeout, testTick)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assertTornDownOnce(t, engine)
	assert.True(t, engine.stopCtxOK, "teardown must not use the cancelled context")
}

func TestContainerRun_StartFailureSkipsTeardown(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{imagePresent: true, startErr: errors.New("no space left on device")}
	_, err := newTestContainerRuntime(t, engine, "/home/u").Run(t.Context(), testJob(t, []string{"rb"}))

	assert.ErrorIs(t, err, ErrExecution)
	assert.Zero(t, engine.stops)
	assert.Zero(t, engine.removes)
	assert.True(t, engine.closed)
}

func TestContainerRun_BuildsMissingImage(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	_, err := newTestContainerRuntime(t, engine, "/home/u").Run(t.Context(), testJob(t, []string{"rb"}))

	require.NoError(t, err)
	assert.Equal(t, 1, engine.builds)
}

func TestContainerRun_BuildFailure(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{buildErr: errors.New("apt-get install failed")}
	_, err := newTestContainerRuntime(t, engine, "/home/u").Run(t.Context(), testJob(t, []string{"rb"}))

	require.ErrorIs(t, err, ErrImage)
	imgErr, ok := errors.AsType[*ImageError](err)
	require.True(t, ok)
	assert.Equal(t, "phylorun/beast2:2.7.7", imgErr.Ref)
	assert.Empty(t, engine.started, "no container may start without an image")
	assert.True(t, engine.closed)
}

func TestContainerRun_ConnectFailure(t *testing.T) {
	t.Parallel()

	r := NewContainerRuntime(func(context.Context) (container.Engine, error) {
		return nil, &container.EngineNotAvailableError{Engine: container.EngineTypeAuto, Reason: "no engine reachable"}
	})

	code, err := r.Run(t.Context(), testJob(t, []string{"rb"}))
	assert.ErrorIs(t, err, container.ErrEngineNotAvailable)
	assert.Equal(t, types.ExitFailure, code)
}

func TestContainerRun_NoSteps(t *testing.T) {
	t.Parallel()

	_, err := newTestContainerRuntime(t, &fakeEngine{}, "/home/u").Run(t.Context(), testJob(t))
	assert.Error(t, err)
}

func TestContainerPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/data/primates.xml", ContainerPath(filepath.Join("some", "dir", "primates.xml")))
}
