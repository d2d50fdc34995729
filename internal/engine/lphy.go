// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"path"
	"strings"

	"github.com/phylorun/phylorun/internal/locate"
	"github.com/phylorun/phylorun/internal/phylospec"
	"github.com/phylorun/phylorun/internal/runtime"
	"github.com/phylorun/phylorun/pkg/types"
)

// Beast2ArgPrefix marks pass-through arguments meant for the BEAST 2 step of
// an LPhy run. The prefix is removed before they are passed on.
const Beast2ArgPrefix = "--beast2"

// LPhy runs LPhy scripts in two steps: lphybeast generates a BEAST 2 XML
// file next to the script, which BEAST 2 then runs.
type LPhy struct {
	deps   Deps
	beast2 *BEAST2
}

var _ Engine = (*LPhy)(nil)

// NewLPhy creates the LPhy engine.
func NewLPhy(deps Deps) *LPhy {
	deps = deps.withDefaults()
	return &LPhy{deps: deps, beast2: NewBEAST2(deps)}
}

func (e *LPhy) Name() Name { return NameLPhy }

// CanRunAnalysis accepts *.lphy files and PhyloSpec documents.
func (e *LPhy) CanRunAnalysis(file string) bool {
	logger := e.deps.Logger.With("engine", NameLPhy, "file", file)

	if phylospec.IsDocument(file) {
		logger.Debug("PhyloSpec file found.")
		return true
	}
	if !strings.HasSuffix(file, ".lphy") {
		logger.Debug("No LPhy file: wrong file extension (.lphy required).")
		return false
	}

	logger.Debug("LPhy file found.")
	return true
}

// SplitArgs separates pass-through args into lphybeast args and BEAST 2
// args. BEAST 2 args are those starting with Beast2ArgPrefix, with the
// prefix removed; without any, BEAST 2 gets "-working".
func SplitArgs(args []string) (lphyArgs, beastArgs []string) {
	for _, arg := range args {
		rest, ok := strings.CutPrefix(arg, Beast2ArgPrefix)
		switch {
		case !ok:
			lphyArgs = append(lphyArgs, arg)
		case rest != "":
			beastArgs = append(beastArgs, rest)
		}
	}
	if len(beastArgs) == 0 {
		beastArgs = []string{workingFlag}
	}
	return lphyArgs, beastArgs
}

// RunLocalAnalysis runs `sh <lphybeast> <args> <file>` and, if it
// succeeds, BEAST 2 on the generated XML file.
func (e *LPhy) RunLocalAnalysis(ctx context.Context, file, binaryPath string, extraArgs []string) (types.ExitCode, error) {
	lphybeast, err := e.deps.binary(NameLPhy, binaryPath)
	if err != nil {
		return types.ExitFailure, err
	}
	file, err = e.deps.convertIfPhyloSpec(ctx, file, phylospec.TargetLPhy)
	if err != nil {
		return types.ExitFailure, err
	}

	lphyArgs, beastArgs := SplitArgs(extraArgs)

	var env []string
	if beast, err := e.deps.find(locate.BinaryBeast2); err == nil {
		env = append(env, "BEAST="+locate.InstallDir(beast))
	}

	code, err := e.deps.runLocal(ctx, "sh", append([]string{lphybeast}, lphyArgs...), file, env...)
	if err != nil || !code.IsSuccess() {
		return code, err
	}
	return e.beast2.RunLocalAnalysis(ctx, siblingXML(file), "", beastArgs)
}

// RunContainerizedAnalysis runs both steps in one lphybeast container.
func (e *LPhy) RunContainerizedAnalysis(ctx context.Context, file string, extraArgs []string) (types.ExitCode, error) {
	file, err := e.deps.convertIfPhyloSpec(ctx, file, phylospec.TargetLPhy)
	if err != nil {
		return types.ExitFailure, err
	}
	img, err := e.deps.image(NameLPhy)
	if err != nil {
		return types.ExitFailure, err
	}

	lphyArgs, beastArgs := SplitArgs(extraArgs)
	inContainer := runtime.ContainerPath(file)
	xmlFile := strings.TrimSuffix(inContainer, path.Ext(inContainer)) + ".xml"

	return e.deps.runContainer(ctx, runtime.Job{
		Image:    img,
		HostFile: file,
		Steps: [][]string{
			command("sh", append([]string{img.Binary("lphybeast")}, lphyArgs...), inContainer),
			command(img.Binary("beast"), beastArgs, xmlFile),
		},
	})
}
