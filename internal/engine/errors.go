// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"errors"
	"fmt"

	"github.com/phylorun/phylorun/internal/locate"
)

var (
	// ErrUnknownEngine is the sentinel error wrapped by UnknownEngineError.
	ErrUnknownEngine = errors.New("unknown engine")
	// ErrEngineCannotRun is the sentinel error wrapped by EngineCannotRunError.
	ErrEngineCannotRun = errors.New("engine cannot run file")
	// ErrNoEngineDetected is the sentinel error wrapped by NoEngineDetectedError.
	ErrNoEngineDetected = errors.New("no engine detected")
	// ErrBinaryNotFound is the sentinel error wrapped by BinaryNotFoundError.
	ErrBinaryNotFound = errors.New("engine binary not found")
	// ErrContainerUnavailable is the sentinel error wrapped by ContainerUnavailableError.
	ErrContainerUnavailable = errors.New("container engine unavailable")
	// ErrDuplicateEngine is returned when two registered engines share a name.
	ErrDuplicateEngine = errors.New("duplicate engine name")
	// ErrNotConfigured is returned when an engine runs without a Deps
	// collaborator the run needs.
	ErrNotConfigured = errors.New("engine dependency not configured")
)

type (
	// UnknownEngineError is returned when an explicitly requested engine is
	// not registered.
	UnknownEngineError struct {
		Name      string
		Available []Name
	}

	// EngineCannotRunError is returned when an explicitly requested engine
	// rejects the analysis file.
	EngineCannotRunError struct {
		Engine Name
		File   string
	}

	// NoEngineDetectedError is returned when no registered engine accepts
	// the analysis file.
	NoEngineDetectedError struct {
		File string
	}

	// BinaryNotFoundError is returned when a local run has no binary.
	BinaryNotFoundError struct {
		Engine Name
		Binary locate.Binary
		// Hints are remediation steps for the user.
		Hints []string
		Err   error
	}

	// ContainerUnavailableError is returned when no container engine can be
	// reached.
	ContainerUnavailableError struct {
		Err error
	}
)

// Error implements the error interface.
func (e *UnknownEngineError) Error() string {
	return fmt.Sprintf("Engine '%s' is not available.", e.Name)
}

// Unwrap returns ErrUnknownEngine for errors.Is() compatibility.
func (e *UnknownEngineError) Unwrap() error { return ErrUnknownEngine }

// Error implements the error interface.
func (e *EngineCannotRunError) Error() string {
	return fmt.Sprintf("Engine '%s' cannot run file '%s'.", e.Engine, e.File)
}

// Unwrap returns ErrEngineCannotRun for errors.Is() compatibility.
func (e *EngineCannotRunError) Unwrap() error { return ErrEngineCannotRun }

// Error implements the error interface.
func (e *NoEngineDetectedError) Error() string {
	return fmt.Sprintf("Could not detect a supported engine for file '%s'.", e.File)
}

// Unwrap returns ErrNoEngineDetected for errors.Is() compatibility.
func (e *NoEngineDetectedError) Unwrap() error { return ErrNoEngineDetected }

// Error implements the error interface.
func (e *BinaryNotFoundError) Error() string {
	return fmt.Sprintf("No %s binary found.", e.Binary)
}

// Unwrap returns ErrBinaryNotFound and the lookup failure.
func (e *BinaryNotFoundError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrBinaryNotFound}
	}
	return []error{ErrBinaryNotFound, e.Err}
}

// Error implements the error interface.
func (e *ContainerUnavailableError) Error() string {
	return "Docker could not be instantiated. Is it installed and running?"
}

// Unwrap returns ErrContainerUnavailable and the connection failure.
func (e *ContainerUnavailableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrContainerUnavailable}
	}
	return []error{ErrContainerUnavailable, e.Err}
}

func newBinaryNotFoundError(engine Name, cause error) *BinaryNotFoundError {
	p := profiles[engine]
	hints := []string{
		fmt.Sprintf("Use `phylorun --bin <path-to-binary> <file>` to specify the %s binary", p.Binary),
	}
	if env := locate.EnvVar(p.Binary); env != "" {
		hints = append(hints, fmt.Sprintf("Set %s to the binary path", env))
	}
	hints = append(hints,
		fmt.Sprintf("Set binaries.%s in the phylorun configuration", p.Binary),
		fmt.Sprintf("Use `phylorun --container <file>` to run %s in a container instead", p.Display),
	)
	return &BinaryNotFoundError{Engine: engine, Binary: p.Binary, Hints: hints, Err: cause}
}
