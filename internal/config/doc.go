// SPDX-License-Identifier: MPL-2.0

// Package config handles phylorun configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/phylorun/config.cue (XDG on Linux,
// ~/Library/Application Support/phylorun/config.cue on macOS,
// %APPDATA%\phylorun\config.cue on Windows) or ./config.cue, and validated
// against an embedded CUE schema. PHYLORUN_* environment variables override
// file values. The configuration selects the container engine and platform,
// pins engine binaries and locates the PhyloSpec converter.
package config
