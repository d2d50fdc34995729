// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/phylorun/phylorun/internal/config"
	"github.com/phylorun/phylorun/internal/container"
	"github.com/phylorun/phylorun/internal/engine"
	"github.com/phylorun/phylorun/internal/locate"
	"github.com/phylorun/phylorun/internal/phylospec"
	"github.com/phylorun/phylorun/internal/provision"
	"github.com/phylorun/phylorun/internal/runtime"
	"github.com/phylorun/phylorun/pkg/types"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

type (
	// App is the composition root of the CLI. Command handlers build the
	// engine registry from the loaded configuration through it.
	App struct {
		stdin   io.Reader
		stdout  io.Writer
		stderr  io.Writer
		connect runtime.ConnectFunc
		locate  []locate.Option

		flags    rootFlags
		verbose  bool
		exitCode types.ExitCode
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
		// Connect replaces the container engine lookup.
		Connect runtime.ConnectFunc
		// LocateOptions are appended to the binary locator's options.
		LocateOptions []locate.Option
	}

	rootFlags struct {
		engine     string
		bin        string
		container  bool
		configFile string
		verbose    bool
	}

	// session is the per-invocation state derived from the configuration.
	session struct {
		cfg     *config.Config
		cfgPath string
		logger  *log.Logger
	}
)

// NewApp creates an App.
func NewApp(deps Dependencies) *App {
	a := &App{
		stdin:   deps.Stdin,
		stdout:  deps.Stdout,
		stderr:  deps.Stderr,
		connect: deps.Connect,
		locate:  deps.LocateOptions,
	}
	if a.stdin == nil {
		a.stdin = os.Stdin
	}
	if a.stdout == nil {
		a.stdout = os.Stdout
	}
	if a.stderr == nil {
		a.stderr = os.Stderr
	}
	return a
}

// run adapts a command handler. Failures are rendered here and become the
// exit code, so fang only reports cobra's own usage errors.
func (a *App) run(fn func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if err == nil {
			return nil
		}

		if exitErr, ok := errors.AsType[*ExitError](err); ok {
			a.exitCode = exitErr.Code
			if exitErr.Err != nil {
				a.renderError(exitErr.Err)
			}
			return nil
		}

		a.exitCode = types.ExitFailure
		a.renderError(err)
		return nil
	}
}

// session loads the configuration and creates the logger.
func (a *App) session(ctx context.Context) (*session, error) {
	loaded, err := config.LoadWithSource(ctx, config.LoadOptions{ConfigFilePath: a.flags.configFile})
	if err != nil {
		return nil, err
	}

	a.verbose = a.flags.verbose || loaded.Config.UI.Verbose
	return &session{
		cfg:     loaded.Config,
		cfgPath: loaded.Path,
		logger:  newLogger(a.stderr, loaded.Config.UI.LogLevel, a.verbose),
	}, nil
}

// newLogger creates the logger shared by every component of a run.
func newLogger(w io.Writer, level config.LogLevel, verbose bool) *log.Logger {
	lvl, err := log.ParseLevel(string(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	if verbose {
		lvl = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: config.AppName,
		Level:  lvl,
	})
}

// newLocator creates the binary locator for s.
func (a *App) newLocator(s *session) *locate.Locator {
	opts := []locate.Option{
		locate.WithBinaries(s.cfg.Binaries),
		locate.WithLogger(s.logger),
	}
	return locate.New(append(opts, a.locate...)...)
}

// newRegistry wires the engines for s: locator, native and container
// runtimes, PhyloSpec converter and image catalog.
func (a *App) newRegistry(s *session) (*engine.Registry, error) {
	catalog, err := provision.LoadCatalog()
	if err != nil {
		return nil, err
	}

	connect := a.connect
	if connect == nil {
		preferred := container.EngineType(s.cfg.Container.Engine)
		connect = func(ctx context.Context) (container.Engine, error) {
			return container.NewEngine(ctx, preferred)
		}
	}

	return engine.NewDefaultRegistry(engine.Deps{
		Locator: a.newLocator(s),
		Local: runtime.NewNativeRuntime(
			runtime.WithNativeLogger(s.logger),
			runtime.WithNativeStreams(a.stdin, a.stdout, a.stderr),
		),
		Containers: runtime.NewContainerRuntime(connect,
			runtime.WithContainerLogger(s.logger),
			runtime.WithContainerStreams(a.stdout, a.stderr),
			runtime.WithContainerPlatform(s.cfg.Container.Platform),
			runtime.WithProvisionOptions(
				provision.WithBuildLock(s.cfg.Container.BuildLock),
				provision.WithBuildOutput(a.stderr),
			),
		),
		Converter: phylospec.NewConverter(
			phylospec.WithJava(s.cfg.PhyloSpec.Java),
			phylospec.WithJarDir(s.cfg.PhyloSpec.JarDir),
			phylospec.WithLogger(s.logger),
		),
		Images: catalog,
		Logger: s.logger,
	})
}
