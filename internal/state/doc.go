// SPDX-License-Identifier: MPL-2.0

// Package state persists pipeline progress for a single working directory.
//
// A state directory holds exactly one record file (app_state.json) with a closed
// set of fields. Every mutation rewrites the whole record through a temporary file
// and an atomic rename, so each CLI invocation can stop at any point and the next
// one resumes from the last completed stage.
//
// The package provides no cross-process locking: two concurrent invocations against
// the same directory can interleave their read-modify-write cycles.
package state
