// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/phylorun/phylorun/internal/app/dispatch"
	"github.com/phylorun/phylorun/pkg/types"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs phylorun with the process arguments and returns the exit
// code. This is called by main.main().
func Execute() int {
	return NewApp(Dependencies{}).Execute(context.Background(), os.Args[1:])
}

// Execute runs the command line args and returns the process exit code:
// the analysis' own exit status, or 1 when phylorun itself failed.
func (a *App) Execute(ctx context.Context, args []string) int {
	root := a.newRootCommand()
	// cobra falls back to os.Args for nil args.
	root.SetArgs(append([]string{}, splitArgs(args, subcommandNames(root))...))
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	if err := fang.Execute(
		ctx,
		root,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(a.handleUsageError),
	); err != nil {
		return int(types.ExitFailure)
	}
	return int(a.exitCode)
}

func (a *App) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "phylorun [flags] <analysis-file> [engine args...]",
		Short: "Run BEAST X, BEAST 2, RevBayes and LPhy analyses from a single CLI",
		Long: TitleStyle.Render("phylorun") + SubtitleStyle.Render(" - one command for phylogenetics engines") + `

phylorun detects which engine an analysis file targets and runs it with a
locally installed binary, or inside a container image that is built the
first time it is needed.

Flags phylorun does not know are passed to the engine unchanged, in order.
Everything after "--" is passed through as well.

` + SubtitleStyle.Render("Engines (detection order):") + `
  beast2     BEAST 2 XML (<beast version="2.*"> with <data> and <run>)
  beastx     BEAST X XML (<beast version="1.*|10.*"> with <mcmc>)
  revbayes   RevBayes .rev scripts and PhyloSpec files
  lphy       LPhy .lphy scripts (run through LPhyBEAST and BEAST 2)`,
		Example: `  phylorun someModel.xml
  phylorun --engine beast2 someModel.xml -threads 4
  phylorun --bin /path/to/beast someModel.xml
  phylorun --container someModel.rev
  phylorun detect someModel.phylospec`,
		Args: cobra.ArbitraryArgs,
		PersistentPreRun: func(*cobra.Command, []string) {
			a.verbose = a.flags.verbose
		},
		RunE: a.run(a.runAnalysis),
	}

	flags := root.Flags()
	flags.StringVar(&a.flags.engine, "engine", "", "select the engine explicitly: beastx | beast2 | revbayes | lphy")
	flags.StringVar(&a.flags.bin, "bin", "", "path to the engine binary for local runs")
	flags.BoolVar(&a.flags.container, "container", false, "run inside a container (no local engine install required)")

	persistent := root.PersistentFlags()
	persistent.StringVar(&a.flags.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/phylorun/config.cue)")
	persistent.BoolVarP(&a.flags.verbose, "verbose", "v", false, "enable debug logging and full error chains")

	root.AddCommand(
		a.newEnginesCommand(),
		a.newDetectCommand(),
		a.newConfigCommand(),
	)

	return root
}

// runAnalysis is the root command: run one analysis file.
func (a *App) runAnalysis(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}

	file, extra := analysisArgs(cmd, args)
	if file == "" {
		return missingFileError()
	}
	if err := checkRegularFile(file); err != nil {
		return fileError("read analysis file", file, err)
	}
	if a.flags.bin != "" {
		if err := checkRegularFile(a.flags.bin); err != nil {
			return fileError("use --bin", a.flags.bin, err)
		}
	}

	s, err := a.session(cmd.Context())
	if err != nil {
		return err
	}
	reg, err := a.newRegistry(s)
	if err != nil {
		return err
	}

	code, err := dispatch.New(reg, s.logger).Dispatch(cmd.Context(), dispatch.Request{
		EngineName: a.flags.engine,
		File:       file,
		BinaryPath: a.flags.bin,
		ExtraArgs:  extra,
		Container:  a.flags.container,
	})
	if err != nil {
		return err
	}
	if !code.IsSuccess() {
		return &ExitError{Code: code}
	}
	return nil
}
