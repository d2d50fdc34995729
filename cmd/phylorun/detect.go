// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/phylorun/phylorun/internal/engine"

	"github.com/spf13/cobra"
)

// newDetectCommand creates `phylorun detect <file>`.
func (a *App) newDetectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <analysis-file>",
		Short: "Show which engines accept a file; the first one is selected",
		Args:  cobra.ExactArgs(1),
		RunE:  a.run(a.detect),
	}
}

func (a *App) detect(cmd *cobra.Command, args []string) error {
	file := args[0]
	if err := checkRegularFile(file); err != nil {
		return fileError("read analysis file", file, err)
	}

	s, err := a.session(cmd.Context())
	if err != nil {
		return err
	}
	reg, err := a.newRegistry(s)
	if err != nil {
		return err
	}

	candidates := reg.Candidates(file)
	if len(candidates) == 0 {
		return &engine.NoEngineDetectedError{File: file}
	}

	out := cmd.OutOrStdout()
	for i, e := range candidates {
		if i == 0 {
			fmt.Fprintf(out, "%s %s\n", e.Name(), SuccessStyle.Render("(selected)"))
			continue
		}
		fmt.Fprintln(out, e.Name())
	}
	return nil
}
