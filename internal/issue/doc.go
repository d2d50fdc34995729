// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// Errors carry the failed operation, the file or engine involved and
// remediation steps. Well-known failures link to a Markdown catalog page
// that the CLI renders with glamour in verbose mode.
package issue
