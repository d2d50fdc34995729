// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

var (
	// ErrExecution is the sentinel error wrapped by ExecutionError.
	ErrExecution = errors.New("execution failed")
	// ErrImage is the sentinel error wrapped by ImageError.
	ErrImage = errors.New("container image unavailable")
)

type (
	// ExecCommandFunc creates the exec.Cmd for a child process. Tests swap it
	// to re-exec the test binary.
	ExecCommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

	// ExecutionError is returned when a child could not be started or a
	// container step could not be executed.
	ExecutionError struct {
		// Op describes the failed step, e.g. "start container".
		Op string
		// Command is the command line being run, if any.
		Command []string
		Err     error
	}

	// ImageError is returned when the engine image of a container job could
	// not be inspected or built.
	ImageError struct {
		Ref string
		Err error
	}
)

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if len(e.Command) == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, FormatCommand(e.Command[0], e.Command[1:]...), e.Err)
}

// Unwrap returns ErrExecution and the underlying cause.
func (e *ExecutionError) Unwrap() []error { return []error{ErrExecution, e.Err} }

// Error implements the error interface.
func (e *ImageError) Error() string {
	return fmt.Sprintf("prepare image %s: %v", e.Ref, e.Err)
}

// Unwrap returns ErrImage and the underlying cause.
func (e *ImageError) Unwrap() []error { return []error{ErrImage, e.Err} }

// FormatCommand renders a command line with bash quoting, for logs and
// error messages.
func FormatCommand(name string, args ...string) string {
	words := make([]string, 0, len(args)+1)
	for _, w := range append([]string{name}, args...) {
		q, err := syntax.Quote(w, syntax.LangBash)
		if err != nil {
			q = strconv.Quote(w)
		}
		words = append(words, q)
	}
	return strings.Join(words, " ")
}
