// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and a catalog of long-form guides.
//
// ActionableError carries the failed operation, the resource involved and
// short suggestions. When it names an Issue, the CLI renders that guide's
// Markdown with glamour under --verbose.
package issue
