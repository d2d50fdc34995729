// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the phylorun command line.
//
// The root command runs an analysis file with the engine it targets. Flags
// phylorun does not know are passed through to the engine untouched, so the
// command line is pre-split before cobra sees it (see splitArgs). The
// engines, detect and config subcommands inspect the registry and the
// configuration without running anything.
package cmd
