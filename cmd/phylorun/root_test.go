// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/phylorun/phylorun/internal/container"
	"github.com/phylorun/phylorun/internal/engine"
	"github.com/phylorun/phylorun/internal/issue"
	"github.com/phylorun/phylorun/internal/phylospec"
	"github.com/phylorun/phylorun/internal/runtime"
	"github.com/phylorun/phylorun/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v0.3.0"
		Commit = "abc1234"
		BuildDate = "2026-01-15T10:00:00Z"

		want := "v0.3.0 (commit: abc1234, built: 2026-01-15T10:00:00Z)"
		if got := getVersionString(); got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("dev build", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		Version = "dev"
		if got := getVersionString(); got != "dev (built from source)" {
			t.Errorf("getVersionString() = %q", got)
		}
	})
}

func TestExitError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "exit status 3", (&ExitError{Code: 3}).Error())

	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", &ExitError{Code: types.ExitFailure, Err: cause})
	assert.ErrorIs(t, err, cause)

	exitErr, ok := errors.AsType[*ExitError](err)
	require.True(t, ok)
	assert.Equal(t, types.ExitFailure, exitErr.Code)
}

func TestActionable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		err   error
		op    string
		issue issue.Id
	}{
		{
			name:  "unknown engine",
			err:   &engine.UnknownEngineError{Name: "mrbayes"},
			op:    "select engine",
			issue: issue.UnknownEngineId,
		},
		{
			name:  "engine cannot run",
			err:   &engine.EngineCannotRunError{Engine: engine.NameLPhy, File: "m.rev"},
			op:    "select engine",
			issue: issue.NoEngineDetectedId,
		},
		{
			name:  "no engine detected",
			err:   &engine.NoEngineDetectedError{File: "m.txt"},
			op:    "detect engine",
			issue: issue.NoEngineDetectedId,
		},
		{
			name:  "binary not found",
			err:   &engine.BinaryNotFoundError{Engine: engine.NameRevBayes, Binary: "revbayes"},
			op:    "run RevBayes locally",
			issue: issue.BinaryNotFoundId,
		},
		{
			name:  "container unavailable",
			err:   &engine.ContainerUnavailableError{},
			op:    "run analysis in a container",
			issue: issue.ContainerUnavailableId,
		},
		{
			name:  "image build",
			err:   &runtime.ImageError{Ref: "phylorun/beast2:2.7.7", Err: errors.New("exit status 100")},
			op:    "prepare container image",
			issue: issue.ImageBuildFailedId,
		},
		{
			name:  "conversion",
			err:   &phylospec.ConversionError{File: "m.phylospec", Reason: "PhyloSpec script is invalid"},
			op:    "convert PhyloSpec file",
			issue: issue.ConversionFailedId,
		},
		{
			name: "execution",
			err:  &runtime.ExecutionError{Op: "start beast", Err: errors.New("permission denied")},
			op:   "run analysis",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ae := actionable(fmt.Errorf("context: %w", tt.err))
			require.NotNil(t, ae)
			assert.Equal(t, tt.op, ae.Operation)
			assert.Equal(t, tt.issue, ae.Issue)
		})
	}

	assert.Nil(t, actionable(errors.New("plain")))
}

func TestActionable_TransientBuildFailure(t *testing.T) {
	t.Parallel()

	transient := actionable(&runtime.ImageError{Ref: "phylorun/beast2:2.7.7", Err: errors.New("wget: unable to establish SSL connection")})
	require.NotNil(t, transient)
	assert.Contains(t, transient.Suggestions, "The failure looks transient; retry the command")

	permanent := actionable(&runtime.ImageError{Ref: "phylorun/beast2:2.7.7", Err: errors.New("Dockerfile parse error")})
	require.NotNil(t, permanent)
	assert.NotContains(t, permanent.Suggestions, "The failure looks transient; retry the command")
	assert.True(t, container.IsTransientError(errors.New("i/o timeout")))
}
