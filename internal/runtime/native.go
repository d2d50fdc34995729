// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/phylorun/phylorun/pkg/types"

	"github.com/charmbracelet/log"
)

type (
	// Invocation is one host process to run.
	Invocation struct {
		// Path is the program to execute.
		Path string
		Args []string
		// Env holds KEY=VALUE pairs added to the inherited environment.
		Env []string
		// Dir is the working directory; empty means the current one.
		Dir string
	}

	// NativeOption configures a NativeRuntime.
	NativeOption func(*NativeRuntime)

	// NativeRuntime runs binaries on the host.
	NativeRuntime struct {
		logger      *log.Logger
		stdin       io.Reader
		stdout      io.Writer
		stderr      io.Writer
		execCommand ExecCommandFunc
	}
)

// WithNativeLogger sets the logger commands are reported to.
func WithNativeLogger(logger *log.Logger) NativeOption {
	return func(r *NativeRuntime) {
		r.logger = logger
	}
}

// WithNativeStreams sets the child's standard streams.
func WithNativeStreams(stdin io.Reader, stdout, stderr io.Writer) NativeOption {
	return func(r *NativeRuntime) {
		r.stdin = stdin
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithNativeExecCommand sets the exec.Cmd constructor.
func WithNativeExecCommand(fn ExecCommandFunc) NativeOption {
	return func(r *NativeRuntime) {
		r.execCommand = fn
	}
}

// NewNativeRuntime creates a runtime that inherits the process streams.
func NewNativeRuntime(opts ...NativeOption) *NativeRuntime {
	r := &NativeRuntime{
		logger:      log.New(io.Discard),
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		execCommand: exec.CommandContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes inv and waits for it. The child's exit status is returned
// with a nil error whenever the child ran, whatever the status. Cancelling
// ctx kills the child.
func (r *NativeRuntime) Run(ctx context.Context, inv Invocation) (types.ExitCode, error) {
	cmd := r.execCommand(ctx, inv.Path, inv.Args...)
	cmd.Stdin = r.stdin
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		base := cmd.Env
		if base == nil {
			base = os.Environ()
		}
		cmd.Env = append(base, inv.Env...)
	}

	r.logger.Debug("Running", "command", FormatCommand(inv.Path, inv.Args...), "env", inv.Env)

	err := cmd.Run()
	if err == nil {
		return types.ExitSuccess, nil
	}

	command := append([]string{inv.Path}, inv.Args...)
	code, ran := types.ExitCodeFromError(err)
	if !ran {
		return types.ExitFailure, &ExecutionError{Op: "start " + filepath.Base(inv.Path), Command: command, Err: err}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return code, &ExecutionError{Op: "run", Command: command, Err: ctxErr}
	}
	return code, nil
}
