// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"strings"

	"github.com/phylorun/phylorun/internal/runtime"
	"github.com/phylorun/phylorun/pkg/types"
)

// workingFlag makes BEAST 2 resolve output paths against the directory of
// the analysis file.
const workingFlag = "-working"

// BEAST2 runs BEAST 2 XML analyses.
type BEAST2 struct {
	deps Deps
}

var _ Engine = (*BEAST2)(nil)

// NewBEAST2 creates the BEAST 2 engine.
func NewBEAST2(deps Deps) *BEAST2 {
	return &BEAST2{deps: deps.withDefaults()}
}

// Name returns "beast2".
func (e *BEAST2) Name() Name { return NameBeast2 }

// CanRunAnalysis accepts XML with a <beast version="2.*"> root holding a
// <data> or <alignment> child and a <run> child.
func (e *BEAST2) CanRunAnalysis(file string) bool {
	logger := e.deps.Logger.With("engine", NameBeast2, "file", file)

	doc, err := readXMLOutline(file)
	if err != nil {
		logger.Debug("No BEAST 2 file: no XML file.", "err", err)
		return false
	}
	if doc.root != "beast" {
		logger.Debug("No BEAST 2 file: no root BEAST tag.")
		return false
	}
	if !strings.HasPrefix(doc.attrs["version"], "2.") {
		logger.Debug("No BEAST 2 file: wrong version (likely for BEAST X).", "version", doc.attrs["version"])
		return false
	}
	if !doc.hasChild("data") && !doc.hasChild("alignment") {
		logger.Debug("No BEAST 2 file: no <data> tag.")
		return false
	}
	if !doc.hasChild("run") {
		logger.Debug("No BEAST 2 file: no <run> tag.")
		return false
	}

	logger.Debug("BEAST 2 file found.")
	return true
}

// RunLocalAnalysis runs `<beast> <args> <file>`.
func (e *BEAST2) RunLocalAnalysis(ctx context.Context, file, binaryPath string, extraArgs []string) (types.ExitCode, error) {
	bin, err := e.deps.binary(NameBeast2, binaryPath)
	if err != nil {
		return types.ExitFailure, err
	}
	return e.deps.runLocal(ctx, bin, extraArgs, file)
}

// RunContainerizedAnalysis runs `beast <args> -working /data/<file>` in the
// beast2 image.
func (e *BEAST2) RunContainerizedAnalysis(ctx context.Context, file string, extraArgs []string) (types.ExitCode, error) {
	img, err := e.deps.image(NameBeast2)
	if err != nil {
		return types.ExitFailure, err
	}
	return e.deps.runContainer(ctx, runtime.Job{
		Image:    img,
		HostFile: file,
		Steps: [][]string{
			command(img.Binary("beast"), extraArgs, workingFlag, runtime.ContainerPath(file)),
		},
	})
}
