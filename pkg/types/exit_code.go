// SPDX-License-Identifier: MPL-2.0

// Package types holds small value types shared across phylorun packages.
package types

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
)

const (
	// ExitSuccess is the status of a run that completed normally.
	ExitSuccess ExitCode = 0
	// ExitFailure is the generic failure status phylorun uses for its own errors.
	ExitFailure ExitCode = 1
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

type (
	// ExitCode represents a process exit status code.
	// Exit codes are in the range 0-255 on POSIX systems.
	// The zero value (0) means success.
	ExitCode int

	// InvalidExitCodeError is returned when an ExitCode is outside the
	// valid range (0-255).
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitCode so callers can use errors.Is for programmatic detection.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// Validate returns an error if the ExitCode is outside the valid range (0-255).
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

// IsSuccess returns true if the exit code indicates successful execution.
func (c ExitCode) IsSuccess() bool { return c == ExitSuccess }

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }

// Normalize maps codes the OS cannot report back to a parent process into
// the 0-255 range. Negative codes (signal termination as reported by
// os.ProcessState) become ExitFailure.
func (c ExitCode) Normalize() ExitCode {
	if c < 0 {
		return ExitFailure
	}
	return c & 0xff
}

// ExitCodeFromError extracts the child exit status carried by err.
// The boolean is false when err does not come from a process that ran
// and exited, i.e. when the process could not be started at all.
func ExitCodeFromError(err error) (ExitCode, bool) {
	if err == nil {
		return ExitSuccess, true
	}
	exitErr, ok := errors.AsType[*exec.ExitError](err)
	if !ok {
		return ExitFailure, false
	}
	return ExitCode(exitErr.ExitCode()).Normalize(), true
}
