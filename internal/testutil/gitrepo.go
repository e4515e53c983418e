// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// AppNotebook is a minimal application notebook with a tagged parameters cell.
const AppNotebook = `{
 "cells": [
  {
   "cell_type": "markdown",
   "metadata": {},
   "source": ["# Example application\n"]
  },
  {
   "cell_type": "code",
   "execution_count": null,
   "metadata": {"tags": ["parameters"]},
   "outputs": [],
   "source": [
    "input_stac_collection_file = \"/unity/input/collection.json\"  # STAC input catalog\n",
    "threshold = 0.5\n",
    "iterations = 10\n",
    "verbose = False\n",
    "label = 'sample'\n",
    "output_collection_dir = \"/unity/output\"  # results directory\n"
   ]
  },
  {
   "cell_type": "code",
   "execution_count": null,
   "metadata": {},
   "outputs": [],
   "source": ["print(threshold)\n"]
  }
 ],
 "metadata": {
  "kernelspec": {"display_name": "Python 3", "language": "python", "name": "python3"}
 },
 "nbformat": 4,
 "nbformat_minor": 5
}
`

// GitRepo is a repository created on disk for a test.
type GitRepo struct {
	Dir  string
	repo *git.Repository
}

// NewGitRepo initializes a repository in dir, commits files and, when origin
// is not empty, configures it as the origin remote.
func NewGitRepo(t testing.TB, dir string, files map[string]string, origin string) *GitRepo {
	t.Helper()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("failed to init git repository in %s: %v", dir, err)
	}
	if origin != "" {
		if _, err := repo.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{origin}}); err != nil {
			t.Fatalf("failed to add origin remote: %v", err)
		}
	}

	r := &GitRepo{Dir: dir, repo: repo}
	r.Commit(t, "initial commit", files)
	return r
}

// NewAppRepo creates a repository holding AppNotebook as process.ipynb.
func NewAppRepo(t testing.TB, dir, origin string) *GitRepo {
	t.Helper()
	return NewGitRepo(t, dir, map[string]string{
		"process.ipynb":   AppNotebook,
		"environment.yml": "dependencies:\n  - papermill\n",
		"README.md":       "# example\n",
	}, origin)
}

// Commit writes files into the working tree, commits them and returns the commit hash.
func (r *GitRepo) Commit(t testing.TB, message string, files map[string]string) string {
	t.Helper()

	wt, err := r.repo.Worktree()
	if err != nil {
		t.Fatalf("failed to open worktree: %v", err)
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		MustWriteFile(t, filepath.Join(r.Dir, name), files[name])
		if _, err := wt.Add(name); err != nil {
			t.Fatalf("failed to stage %s: %v", name, err)
		}
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Unix(1700000000, 0)},
	})
	if err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	return hash.String()
}

// Tag creates a lightweight tag at HEAD.
func (r *GitRepo) Tag(t testing.TB, name string) {
	t.Helper()

	head, err := r.repo.Head()
	if err != nil {
		t.Fatalf("failed to read HEAD: %v", err)
	}
	if _, err := r.repo.CreateTag(name, head.Hash(), nil); err != nil {
		t.Fatalf("failed to create tag %s: %v", name, err)
	}
}

// Head returns the HEAD commit hash.
func (r *GitRepo) Head(t testing.TB) string {
	t.Helper()

	head, err := r.repo.Head()
	if err != nil {
		t.Fatalf("failed to read HEAD: %v", err)
	}
	return head.Hash().String()
}
