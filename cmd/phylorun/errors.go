// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/phylorun/phylorun/internal/app/dispatch"
	"github.com/phylorun/phylorun/internal/container"
	"github.com/phylorun/phylorun/internal/engine"
	"github.com/phylorun/phylorun/internal/issue"
	"github.com/phylorun/phylorun/internal/phylospec"
	"github.com/phylorun/phylorun/internal/runtime"

	"github.com/charmbracelet/fang"
	"github.com/mattn/go-isatty"
)

const usageHint = "Usage: phylorun [flags] <analysis-file> [engine args...]"

// renderError prints err as a single message on stderr. Verbose mode adds
// the error chain and, when err maps to one, the issue catalog page.
func (a *App) renderError(err error) {
	ae := actionable(err)
	if ae == nil {
		fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+err.Error())
		return
	}

	fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+ae.Format(a.verbose))

	if !a.verbose || ae.Issue == 0 {
		return
	}
	page := issue.Get(ae.Issue)
	if page == nil {
		return
	}
	rendered, renderErr := page.Render(glamourStyle(a.stderr))
	if renderErr != nil {
		fmt.Fprintln(a.stderr, WarningStyle.Render("Warning: ")+"failed to render help page: "+renderErr.Error())
		return
	}
	fmt.Fprint(a.stderr, rendered)
}

// handleUsageError is fang's error handler. Command handlers render their
// own failures (see App.run), so only cobra's flag and argument errors end
// up here.
func (a *App) handleUsageError(w io.Writer, _ fang.Styles, err error) {
	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+err.Error())
	fmt.Fprintln(w, SubtitleStyle.Render("Run 'phylorun --help' for usage."))
}

// glamourStyle picks the plain style unless w is a terminal.
func glamourStyle(w io.Writer) string {
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return "dark"
	}
	return "notty"
}

// actionable maps the errors phylorun reports to an ActionableError.
// It returns nil for errors without a mapping.
func actionable(err error) *issue.ActionableError {
	if ae, ok := errors.AsType[*issue.ActionableError](err); ok {
		return ae
	}

	if e, ok := errors.AsType[*engine.UnknownEngineError](err); ok {
		names := make([]string, len(e.Available))
		for i, n := range e.Available {
			names[i] = string(n)
		}
		return issue.NewErrorContext().
			WithOperation("select engine").
			WithSuggestion("Choose one of: " + strings.Join(names, ", ")).
			WithIssue(issue.UnknownEngineId).
			Wrap(err).
			Build()
	}
	if e, ok := errors.AsType[*engine.EngineCannotRunError](err); ok {
		return issue.NewErrorContext().
			WithOperation("select engine").
			WithSuggestion(fmt.Sprintf("Run `phylorun detect %s` to see which engines accept the file", e.File)).
			WithSuggestion("Omit --engine to detect the engine automatically").
			WithIssue(issue.NoEngineDetectedId).
			Wrap(err).
			Build()
	}
	if errors.Is(err, engine.ErrNoEngineDetected) {
		return issue.NewErrorContext().
			WithOperation("detect engine").
			WithSuggestion("Use --engine to select the engine explicitly").
			WithIssue(issue.NoEngineDetectedId).
			Wrap(err).
			Build()
	}
	if e, ok := errors.AsType[*engine.BinaryNotFoundError](err); ok {
		display := string(e.Engine)
		if p, ok := engine.ProfileOf(e.Engine); ok {
			display = p.Display
		}
		return issue.NewErrorContext().
			WithOperation("run " + display + " locally").
			WithSuggestions(e.Hints...).
			WithIssue(issue.BinaryNotFoundId).
			Wrap(err).
			Build()
	}
	if errors.Is(err, engine.ErrContainerUnavailable) {
		return issue.NewErrorContext().
			WithOperation("run analysis in a container").
			WithSuggestion("Start Docker, or install Podman and set PHYLORUN_CONTAINER_ENGINE=podman").
			WithIssue(issue.ContainerUnavailableId).
			Wrap(err).
			Build()
	}
	if e, ok := errors.AsType[*runtime.ImageError](err); ok {
		ctx := issue.NewErrorContext().
			WithOperation("prepare container image").
			WithResource(e.Ref).
			WithIssue(issue.ImageBuildFailedId).
			Wrap(e.Err)
		if container.IsTransientError(e.Err) {
			ctx.WithSuggestion("The failure looks transient; retry the command")
		}
		return ctx.WithSuggestion("Run with --verbose to see the full build output").Build()
	}
	if e, ok := errors.AsType[*phylospec.ConversionError](err); ok {
		return issue.NewErrorContext().
			WithOperation("convert PhyloSpec file").
			WithResource(e.File).
			WithSuggestion("Check the converter messages above and fix the script").
			WithIssue(issue.ConversionFailedId).
			Wrap(err).
			Build()
	}
	if errors.Is(err, runtime.ErrExecution) {
		return issue.NewErrorContext().
			WithOperation("run analysis").
			Wrap(err).
			Build()
	}
	return nil
}

func missingFileError() error {
	return issue.NewErrorContext().
		WithOperation("run analysis").
		WithSuggestion(usageHint).
		Wrap(dispatch.ErrMissingFile).
		BuildError()
}

func fileError(op, path string, err error) error {
	return issue.NewErrorContext().
		WithOperation(op).
		WithResource(path).
		Wrap(err).
		BuildError()
}

// checkRegularFile returns an error unless path exists and is a regular file.
func checkRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errors.New("file does not exist")
		}
		return err
	}
	if !info.Mode().IsRegular() {
		return errors.New("not a regular file")
	}
	return nil
}
