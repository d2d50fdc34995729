// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/phylorun/phylorun/internal/engine"
	"github.com/phylorun/phylorun/internal/locate"
	"github.com/phylorun/phylorun/internal/provision"

	"github.com/spf13/cobra"
)

// newEnginesCommand creates `phylorun engines`.
func (a *App) newEnginesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List engines in detection order with their local binaries and images",
		Args:  cobra.NoArgs,
		RunE:  a.run(a.listEngines),
	}
}

func (a *App) listEngines(cmd *cobra.Command, _ []string) error {
	s, err := a.session(cmd.Context())
	if err != nil {
		return err
	}
	reg, err := a.newRegistry(s)
	if err != nil {
		return err
	}
	catalog, err := provision.LoadCatalog()
	if err != nil {
		return err
	}
	locator := a.newLocator(s)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, TitleStyle.Render("Engines (detection order)"))
	for i, e := range reg.Engines() {
		p, ok := engine.ProfileOf(e.Name())
		if !ok {
			continue
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "%d. %s  %s\n", i+1, CmdStyle.Render(string(e.Name())), p.Display)
		printBinary(out, locator, p.Binary)
		if img, err := catalog.Image(p.Image); err == nil {
			fmt.Fprintf(out, "   image:  %s\n", img.Ref)
		}
	}
	return nil
}

func printBinary(out io.Writer, locator *locate.Locator, b locate.Binary) {
	env := locate.EnvVar(b)
	if r, err := locator.Lookup(b); err == nil {
		fmt.Fprintf(out, "   binary: %s %s\n", SuccessStyle.Render(r.Path), SubtitleStyle.Render("("+string(r.Source)+")"))
	} else {
		fmt.Fprintf(out, "   binary: %s\n", WarningStyle.Render("not found"))
	}
	if env != "" {
		fmt.Fprintf(out, "   env:    %s\n", env)
	}
}
