// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"context"
	"errors"
	"io"

	"github.com/phylorun/phylorun/internal/engine"
	"github.com/phylorun/phylorun/pkg/types"

	"github.com/charmbracelet/log"
)

// ErrMissingFile is returned for a request without an analysis file.
var ErrMissingFile = errors.New("no analysis file given")

const (
	ModeLocal     Mode = "local"
	ModeContainer Mode = "container"
)

type (
	// Mode is where an analysis runs.
	Mode string

	// Request is one analysis to run.
	Request struct {
		// EngineName selects the engine explicitly. Empty means detect.
		EngineName string
		File       string
		// BinaryPath overrides binary discovery for local runs.
		BinaryPath string
		// ExtraArgs are passed through to the engine verbatim.
		ExtraArgs []string
		Container bool
	}

	// Selector picks the engine for a file.
	Selector interface {
		Select(name, file string) (engine.Engine, error)
	}

	// Dispatcher runs requests on the selected engine.
	Dispatcher struct {
		engines Selector
		logger  *log.Logger
	}
)

// Mode returns where r runs.
func (r Request) Mode() Mode {
	if r.Container {
		return ModeContainer
	}
	return ModeLocal
}

// New creates a dispatcher selecting engines from engines.
func New(engines Selector, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Dispatcher{engines: engines, logger: logger}
}

// Dispatch selects the engine for req and runs the analysis. The returned
// code is the engine's exit status; the error is set only when phylorun
// itself failed.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (types.ExitCode, error) {
	if req.File == "" {
		return types.ExitFailure, ErrMissingFile
	}

	e, err := d.engines.Select(req.EngineName, req.File)
	if err != nil {
		return types.ExitFailure, err
	}

	d.logger.Debug("Dispatching analysis", "engine", e.Name(), "file", req.File, "mode", req.Mode(), "args", req.ExtraArgs)

	if req.Container {
		if req.BinaryPath != "" {
			d.logger.Warn("Ignoring --bin for a containerized run", "bin", req.BinaryPath)
		}
		return e.RunContainerizedAnalysis(ctx, req.File, req.ExtraArgs)
	}
	return e.RunLocalAnalysis(ctx, req.File, req.BinaryPath, req.ExtraArgs)
}
