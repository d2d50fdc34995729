// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"strings"

	"github.com/phylorun/phylorun/internal/phylospec"
	"github.com/phylorun/phylorun/internal/runtime"
	"github.com/phylorun/phylorun/pkg/types"
)

// RevBayes runs Rev scripts, converting PhyloSpec documents first.
type RevBayes struct {
	deps Deps
}

var _ Engine = (*RevBayes)(nil)

// NewRevBayes creates the RevBayes engine.
func NewRevBayes(deps Deps) *RevBayes {
	return &RevBayes{deps: deps.withDefaults()}
}

func (e *RevBayes) Name() Name { return NameRevBayes }

// CanRunAnalysis accepts *.rev files and PhyloSpec documents.
func (e *RevBayes) CanRunAnalysis(file string) bool {
	logger := e.deps.Logger.With("engine", NameRevBayes, "file", file)

	if phylospec.IsDocument(file) {
		logger.Debug("PhyloSpec file found.")
		return true
	}
	if !strings.HasSuffix(file, ".rev") {
		logger.Debug("No Rev file: wrong file extension (.rev required).")
		return false
	}

	logger.Debug("RevBayes file found.")
	return true
}

func (e *RevBayes) RunLocalAnalysis(ctx context.Context, file, binaryPath string, extraArgs []string) (types.ExitCode, error) {
	bin, err := e.deps.binary(NameRevBayes, binaryPath)
	if err != nil {
		return types.ExitFailure, err
	}
	file, err = e.deps.convertIfPhyloSpec(ctx, file, phylospec.TargetRev)
	if err != nil {
		return types.ExitFailure, err
	}
	return e.deps.runLocal(ctx, bin, extraArgs, file)
}

func (e *RevBayes) RunContainerizedAnalysis(ctx context.Context, file string, extraArgs []string) (types.ExitCode, error) {
	file, err := e.deps.convertIfPhyloSpec(ctx, file, phylospec.TargetRev)
	if err != nil {
		return types.ExitFailure, err
	}
	img, err := e.deps.image(NameRevBayes)
	if err != nil {
		return types.ExitFailure, err
	}
	return e.deps.runContainer(ctx, runtime.Job{
		Image:    img,
		HostFile: file,
		Steps:    [][]string{command(img.Binary("rb"), extraArgs, runtime.ContainerPath(file))},
	})
}
