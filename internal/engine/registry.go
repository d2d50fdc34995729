// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
)

// Registry holds the engines in detection order. The first engine whose
// detector accepts a file is the one auto-detection picks.
type Registry struct {
	engines []Engine
	logger  *log.Logger
}

// NewRegistry creates a registry over engines, in the given order. Names
// must be unique ignoring case.
func NewRegistry(logger *log.Logger, engines ...Engine) (*Registry, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	seen := make(map[string]bool, len(engines))
	for _, e := range engines {
		key := strings.ToLower(string(e.Name()))
		if seen[key] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEngine, e.Name())
		}
		seen[key] = true
	}
	return &Registry{engines: slices.Clone(engines), logger: logger}, nil
}

// NewDefaultRegistry creates the registry of all engines in detection
// order: beast2, beastx, revbayes, lphy.
func NewDefaultRegistry(deps Deps) (*Registry, error) {
	deps = deps.withDefaults()
	return NewRegistry(deps.Logger,
		NewBEAST2(deps),
		NewBEASTX(deps),
		NewRevBayes(deps),
		NewLPhy(deps),
	)
}

// Engines returns the registered engines in detection order.
func (r *Registry) Engines() []Engine {
	return slices.Clone(r.engines)
}

// Names returns the registered engine names in detection order.
func (r *Registry) Names() []Name {
	names := make([]Name, len(r.engines))
	for i, e := range r.engines {
		names[i] = e.Name()
	}
	return names
}

// Lookup returns the engine called name, ignoring case.
func (r *Registry) Lookup(name string) (Engine, error) {
	for _, e := range r.engines {
		if strings.EqualFold(string(e.Name()), name) {
			return e, nil
		}
	}
	return nil, &UnknownEngineError{Name: name, Available: r.Names()}
}

// Detect returns the first engine that accepts file.
func (r *Registry) Detect(file string) (Engine, error) {
	for _, e := range r.engines {
		if e.CanRunAnalysis(file) {
			r.logger.Debug("Detected engine", "engine", e.Name(), "file", file)
			return e, nil
		}
	}
	return nil, &NoEngineDetectedError{File: file}
}

// Select returns the engine called name if it accepts file, or the
// detected engine when name is empty.
func (r *Registry) Select(name, file string) (Engine, error) {
	if name == "" {
		return r.Detect(file)
	}
	e, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	if !e.CanRunAnalysis(file) {
		return nil, &EngineCannotRunError{Engine: e.Name(), File: file}
	}
	return e, nil
}

// Candidates returns every engine that accepts file, in detection order.
func (r *Registry) Candidates(file string) []Engine {
	var out []Engine
	for _, e := range r.engines {
		if e.CanRunAnalysis(file) {
			out = append(out, e)
		}
	}
	return out
}
