// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/phylorun/phylorun/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `phylorun config` command tree.
func (a *App) newConfigCommand() *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage phylorun configuration",
		Long: `Manage phylorun configuration.

Configuration is stored in:
  - Linux: ~/.config/phylorun/config.cue
  - macOS: ~/Library/Application Support/phylorun/config.cue
  - Windows: %APPDATA%\phylorun\config.cue

PHYLORUN_* environment variables override file values, for example
PHYLORUN_CONTAINER_ENGINE=podman.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var format string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			return a.showConfig(cmd, config.Format(strings.ToLower(format)))
		}),
	}
	formats := make([]string, 0, len(config.Formats()))
	for _, f := range config.Formats() {
		formats = append(formats, string(f))
	}
	showCmd.Flags().StringVar(&format, "format", string(config.FormatCUE), "output format: "+strings.Join(formats, ", "))

	cfgCmd.AddCommand(
		showCmd,
		&cobra.Command{
			Use:   "init",
			Short: "Create the default configuration file",
			Args:  cobra.NoArgs,
			RunE:  a.run(a.initConfig),
		},
		&cobra.Command{
			Use:   "path",
			Short: "Show the configuration file path",
			Args:  cobra.NoArgs,
			RunE:  a.run(a.showConfigPath),
		},
	)

	return cfgCmd
}

func (a *App) showConfig(cmd *cobra.Command, format config.Format) error {
	s, err := a.session(cmd.Context())
	if err != nil {
		return err
	}

	encoded, err := config.Encode(s.cfg, format)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == config.FormatCUE {
		source := s.cfgPath
		if source == "" {
			source = "defaults (no config file found)"
		}
		fmt.Fprintf(out, "// source: %s\n", source)
	}
	fmt.Fprint(out, encoded)
	return nil
}

func (a *App) initConfig(cmd *cobra.Command, _ []string) error {
	path, created, err := config.CreateDefaultConfig("")
	if err != nil {
		return fileError("create configuration", path, err)
	}

	out := cmd.OutOrStdout()
	if !created {
		fmt.Fprintf(out, "Configuration already exists at %s\n", path)
		return nil
	}
	fmt.Fprintf(out, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

func (a *App) showConfigPath(cmd *cobra.Command, _ []string) error {
	path := a.flags.configFile
	if path == "" {
		var err error
		if path, err = config.ConfigFilePath(); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config directory: %s\n", filepath.Dir(path))
	fmt.Fprintf(out, "Config file: %s\n", path)
	return nil
}
