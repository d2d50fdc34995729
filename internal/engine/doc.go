// SPDX-License-Identifier: MPL-2.0

// Package engine implements the phylogenetics engines phylorun dispatches
// to and the ordered registry that detects which one a file targets.
//
// An Engine detects its input format, runs an analysis with a host binary,
// or runs it inside a container built from the engine's catalog image.
// Engines hold only injected collaborators (see Deps) and no per-run state.
package engine
