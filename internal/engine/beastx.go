// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"strings"

	"github.com/phylorun/phylorun/internal/runtime"
	"github.com/phylorun/phylorun/pkg/types"
)

// BEASTX runs BEAST X (BEAST 1.x and 10.x) XML analyses.
type BEASTX struct {
	deps Deps
}

var _ Engine = (*BEASTX)(nil)

// NewBEASTX creates the BEAST X engine.
func NewBEASTX(deps Deps) *BEASTX {
	return &BEASTX{deps: deps.withDefaults()}
}

func (e *BEASTX) Name() Name { return NameBeastX }

// CanRunAnalysis accepts XML with a <beast version="1.*|10.*"> root holding
// an <mcmc> child.
func (e *BEASTX) CanRunAnalysis(file string) bool {
	logger := e.deps.Logger.With("engine", NameBeastX, "file", file)

	doc, err := readXMLOutline(file)
	if err != nil {
		logger.Debug("No BEAST X file: no XML file.", "err", err)
		return false
	}
	if doc.root != "beast" {
		logger.Debug("No BEAST X file: no root BEAST tag.")
		return false
	}
	version := doc.attrs["version"]
	if !strings.HasPrefix(version, "1.") && !strings.HasPrefix(version, "10.") {
		logger.Debug("No BEAST X file: wrong version (likely for BEAST 2).", "version", version)
		return false
	}
	if !doc.hasChild("mcmc") {
		logger.Debug("No BEAST X file: no <mcmc> tag.")
		return false
	}

	logger.Debug("BEAST X file found.")
	return true
}

func (e *BEASTX) RunLocalAnalysis(ctx context.Context, file, binaryPath string, extraArgs []string) (types.ExitCode, error) {
	bin, err := e.deps.binary(NameBeastX, binaryPath)
	if err != nil {
		return types.ExitFailure, err
	}
	return e.deps.runLocal(ctx, bin, extraArgs, file)
}

func (e *BEASTX) RunContainerizedAnalysis(ctx context.Context, file string, extraArgs []string) (types.ExitCode, error) {
	img, err := e.deps.image(NameBeastX)
	if err != nil {
		return types.ExitFailure, err
	}
	return e.deps.runContainer(ctx, runtime.Job{
		Image:    img,
		HostFile: file,
		Steps:    [][]string{command(img.Binary("beast"), extraArgs, runtime.ContainerPath(file))},
	})
}
