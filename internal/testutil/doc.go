// SPDX-License-Identifier: MPL-2.0

// Package testutil provides test helpers that fail the test on setup errors,
// together with fixtures for application repositories.
//
// Common helpers include environment variable management (MustSetenv, MustUnsetenv),
// directory operations (MustChdir, MustMkdirAll, MustWriteFile) and git
// repository fixtures (NewGitRepo, NewAppRepo) built with go-git.
package testutil
