// SPDX-License-Identifier: MPL-2.0

// Package dispatch routes an analysis request to an engine. It decouples
// the CLI layer from engine selection and from the choice between a local
// and a containerized run.
package dispatch
