// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

const argsTerminator = "--"

var (
	// rootValueFlags are root flags that consume the following token.
	rootValueFlags = []string{"--engine", "--bin", "--config"}
	// rootBoolFlags are root flags without a value.
	rootBoolFlags = []string{"--container", "--verbose", "-v", "--version", "--help", "-h"}
)

// splitArgs rewrites a raw command line for the root command. phylorun's
// own flags are kept wherever they appear; the analysis file follows them;
// every other token is moved behind "--" in its original order so cobra
// passes it through without parsing.
//
// When the first positional token names a subcommand the command line is
// returned unchanged.
func splitArgs(args, subcommands []string) []string {
	var own, passthrough []string
	file := ""

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == argsTerminator:
			rest := args[i+1:]
			if file == "" && len(rest) > 0 {
				file, rest = rest[0], rest[1:]
			}
			passthrough = append(passthrough, rest...)
			i = len(args)
		case isFlag(arg, rootValueFlags):
			own = append(own, arg)
			if !strings.Contains(arg, "=") && i+1 < len(args) {
				i++
				own = append(own, args[i])
			}
		case isFlag(arg, rootBoolFlags):
			own = append(own, arg)
		case strings.HasPrefix(arg, "-") && arg != "-":
			passthrough = append(passthrough, arg)
		case file == "":
			if slices.Contains(subcommands, arg) {
				return args
			}
			file = arg
		default:
			passthrough = append(passthrough, arg)
		}
	}

	out := own
	if file != "" {
		out = append(out, file)
	}
	if len(passthrough) > 0 {
		out = append(out, argsTerminator)
		out = append(out, passthrough...)
	}
	return out
}

// isFlag reports whether arg is one of names, alone or as name=value.
func isFlag(arg string, names []string) bool {
	name, _, _ := strings.Cut(arg, "=")
	return slices.Contains(names, name)
}

// subcommandNames lists the names and aliases of root's subcommands,
// including the ones cobra and fang add on execution.
func subcommandNames(root *cobra.Command) []string {
	names := []string{"help", "completion", "man"}
	for _, c := range root.Commands() {
		names = append(names, c.Name())
		names = append(names, c.Aliases...)
	}
	return names
}

// analysisArgs returns the analysis file and the engine arguments from the
// root command's args.
func analysisArgs(cmd *cobra.Command, args []string) (string, []string) {
	dash := cmd.ArgsLenAtDash()
	if dash < 0 {
		dash = len(args)
	}
	positional, passthrough := args[:dash], args[dash:]
	if len(positional) == 0 {
		return "", slices.Clone(passthrough)
	}
	return positional[0], slices.Concat(positional[1:], passthrough)
}
