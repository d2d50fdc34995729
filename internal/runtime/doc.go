// SPDX-License-Identifier: MPL-2.0

// Package runtime runs engine binaries for phylorun.
//
// Two runtimes are available:
//   - native: spawns the binary on the host with inherited standard streams
//   - container: runs one or more exec steps inside a short-lived container
//     started from a provisioned engine image
//
// Both report the child's exit status as a types.ExitCode. A child that
// runs and exits non-zero is not an error; failures to start a child or to
// talk to the container engine are returned as ExecutionError.
package runtime
