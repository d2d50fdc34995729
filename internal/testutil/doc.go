// SPDX-License-Identifier: MPL-2.0

// Package testutil holds helpers shared by phylorun's integration tests.
package testutil
