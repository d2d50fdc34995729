// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/phylorun/phylorun/internal/container"
	"github.com/phylorun/phylorun/internal/locate"
	"github.com/phylorun/phylorun/internal/phylospec"
	"github.com/phylorun/phylorun/internal/provision"
	"github.com/phylorun/phylorun/internal/runtime"
	"github.com/phylorun/phylorun/pkg/types"

	"github.com/charmbracelet/log"
)

const (
	NameBeast2   Name = "beast2"
	NameBeastX   Name = "beastx"
	NameRevBayes Name = "revbayes"
	NameLPhy     Name = "lphy"
)

// profiles maps each engine to its display name, local binary and image.
var profiles = map[Name]Profile{
	NameBeast2:   {Display: "BEAST 2", Binary: locate.BinaryBeast2, Image: provision.KeyBeast2},
	NameBeastX:   {Display: "BEAST X", Binary: locate.BinaryBeastX, Image: provision.KeyBeastX},
	NameRevBayes: {Display: "RevBayes", Binary: locate.BinaryRevBayes, Image: provision.KeyRevBayes},
	NameLPhy:     {Display: "LPhy", Binary: locate.BinaryLPhyBeast, Image: provision.KeyLPhyBeast},
}

type (
	// Name identifies an engine on the command line.
	Name string

	// Engine runs analyses of one phylogenetics engine.
	Engine interface {
		Name() Name
		// CanRunAnalysis reports whether file targets this engine. It never
		// fails: unreadable or malformed files are not runnable.
		CanRunAnalysis(file string) bool
		// RunLocalAnalysis runs file with a host binary. An empty binaryPath
		// means the binary is located. A child exiting non-zero is not an
		// error; its code is returned.
		RunLocalAnalysis(ctx context.Context, file, binaryPath string, extraArgs []string) (types.ExitCode, error)
		// RunContainerizedAnalysis runs file inside a provisioned container.
		RunContainerizedAnalysis(ctx context.Context, file string, extraArgs []string) (types.ExitCode, error)
	}

	// Profile describes an engine for messages and listings.
	Profile struct {
		Display string
		Binary  locate.Binary
		Image   provision.Key
	}

	// Locator finds host binaries.
	Locator interface {
		Find(b locate.Binary) (string, error)
	}

	// LocalRunner runs host processes.
	LocalRunner interface {
		Run(ctx context.Context, inv runtime.Invocation) (types.ExitCode, error)
	}

	// ContainerRunner runs container jobs.
	ContainerRunner interface {
		Run(ctx context.Context, job runtime.Job) (types.ExitCode, error)
	}

	// Converter converts PhyloSpec documents.
	Converter interface {
		Convert(ctx context.Context, file string, target phylospec.Target) (string, error)
	}

	// ImageCatalog resolves engine images.
	ImageCatalog interface {
		Image(key provision.Key) (provision.Image, error)
	}

	// Deps are the collaborators shared by all engines. Detection needs
	// none of them; a run whose collaborator is nil fails with
	// ErrNotConfigured.
	Deps struct {
		Locator    Locator
		Local      LocalRunner
		Containers ContainerRunner
		Converter  Converter
		Images     ImageCatalog
		Logger     *log.Logger
	}
)

// ProfileOf returns the profile of the engine called name.
func ProfileOf(name Name) (Profile, bool) {
	p, ok := profiles[name]
	return p, ok
}

// String returns the engine name.
func (n Name) String() string { return string(n) }

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = log.New(io.Discard)
	}
	return d
}

func notConfigured(field string) error {
	return fmt.Errorf("%w: Deps.%s is nil", ErrNotConfigured, field)
}

// find locates b on the host.
func (d Deps) find(b locate.Binary) (string, error) {
	if d.Locator == nil {
		return "", notConfigured("Locator")
	}
	return d.Locator.Find(b)
}

// binary returns explicit when set, else the located binary for engine.
func (d Deps) binary(engine Name, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if d.Locator == nil {
		return "", notConfigured("Locator")
	}
	p := profiles[engine]
	path, err := d.Locator.Find(p.Binary)
	if err != nil {
		return "", newBinaryNotFoundError(engine, err)
	}
	return path, nil
}

// runLocal runs bin with args followed by file.
func (d Deps) runLocal(ctx context.Context, bin string, args []string, file string, env ...string) (types.ExitCode, error) {
	if d.Local == nil {
		return types.ExitFailure, notConfigured("Local")
	}
	return d.Local.Run(ctx, runtime.Invocation{
		Path: bin,
		Args: append(slices.Clone(args), file),
		Env:  env,
	})
}

// image resolves the catalog image of engine.
func (d Deps) image(engine Name) (provision.Image, error) {
	if d.Images == nil {
		return provision.Image{}, notConfigured("Images")
	}
	return d.Images.Image(profiles[engine].Image)
}

// runContainer runs job, reporting an unreachable container engine as
// ContainerUnavailableError.
func (d Deps) runContainer(ctx context.Context, job runtime.Job) (types.ExitCode, error) {
	if d.Containers == nil {
		return types.ExitFailure, notConfigured("Containers")
	}
	code, err := d.Containers.Run(ctx, job)
	if err != nil && errors.Is(err, container.ErrEngineNotAvailable) {
		return types.ExitFailure, &ContainerUnavailableError{Err: err}
	}
	return code, err
}

// convertIfPhyloSpec converts a PhyloSpec file to target and returns the
// path to run. Other files are returned unchanged.
func (d Deps) convertIfPhyloSpec(ctx context.Context, file string, target phylospec.Target) (string, error) {
	if !phylospec.IsDocument(file) {
		return file, nil
	}
	if d.Converter == nil {
		return "", notConfigured("Converter")
	}
	return d.Converter.Convert(ctx, file, target)
}

// siblingXML returns <dir>/<stem>.xml for file.
func siblingXML(file string) string {
	stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return filepath.Join(filepath.Dir(file), stem+".xml")
}

// command joins a binary, pass-through args and trailing words.
func command(bin string, args []string, tail ...string) []string {
	cmd := make([]string, 0, 1+len(args)+len(tail))
	cmd = append(cmd, bin)
	cmd = append(cmd, args...)
	return append(cmd, tail...)
}
