// SPDX-License-Identifier: MPL-2.0

// Package source localizes application repositories with go-git.
package source

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"appgen-cli/internal/logging"
	"appgen-cli/internal/pipeline"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// DefaultRemoteName is the remote whose URL provides the repository owner and name.
const DefaultRemoteName = "origin"

var (
	// ErrRevisionNotFound is returned when a requested revision does not resolve.
	ErrRevisionNotFound = errors.New("revision not found")
	// ErrNotRepository is returned when a checkout is requested outside a git repository.
	ErrNotRepository = errors.New("not a git repository")
)

// Localizer implements pipeline.SourceLocalizer on the local filesystem.
type Localizer struct {
	logger *log.Logger
}

// NewLocalizer returns a Localizer logging to logger.
func NewLocalizer(logger *log.Logger) *Localizer {
	return &Localizer{logger: logging.Component(logger, "source")}
}

// Localize makes source available on disk.
//
//   - dest empty and source a local directory: the directory is used in place.
//   - dest empty and source remote: the repository is cloned into ./<name>.
//   - dest already a git repository: it is opened as is.
//   - otherwise source is cloned into dest.
//
// A non-empty revision is then checked out.
func (l *Localizer) Localize(ctx context.Context, source, dest, revision string) (pipeline.Repository, error) {
	dir, err := l.materialize(ctx, source, dest)
	if err != nil {
		return pipeline.Repository{}, err
	}

	if revision != "" {
		if err := Checkout(dir, revision); err != nil {
			return pipeline.Repository{}, err
		}
		l.logger.Info("checked out revision", "path", dir, "revision", revision)
	}
	return l.Inspect(ctx, dir)
}

func (l *Localizer) materialize(ctx context.Context, source, dest string) (string, error) {
	if dest == "" {
		if isLocalDir(source) {
			return filepath.Abs(source)
		}
		dest = RepositoryName(source)
	}

	dir, err := filepath.Abs(dest)
	if err != nil {
		return "", fmt.Errorf("resolve destination: %w", err)
	}

	if _, err := git.PlainOpen(dir); err == nil {
		l.logger.Debug("using existing repository", "path", dir)
		return dir, nil
	}
	if isLocalDir(source) {
		if src, err := filepath.Abs(source); err == nil && src == dir {
			return dir, nil
		}
	}

	if !isLocalDir(source) && !looksRemote(source) {
		return "", fmt.Errorf("source %s is neither a local directory nor a repository URL", source)
	}

	l.logger.Info("cloning repository", "source", source, "path", dir)
	if _, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{URL: source}); err != nil {
		return "", fmt.Errorf("clone %s into %s: %w", source, dir, err)
	}
	return dir, nil
}

// Inspect reads owner, name and HEAD commit of the repository in dir. A
// directory that is not a git repository yields its basename and no commit.
func (l *Localizer) Inspect(_ context.Context, dir string) (pipeline.Repository, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return pipeline.Repository{}, fmt.Errorf("resolve repository path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return pipeline.Repository{}, fmt.Errorf("repository directory: %w", err)
	}
	if !info.IsDir() {
		return pipeline.Repository{}, fmt.Errorf("repository path %s is not a directory", abs)
	}

	repo := pipeline.Repository{Dir: abs, Name: RepositoryName(abs)}

	r, err := git.PlainOpen(abs)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return repo, nil
		}
		return pipeline.Repository{}, fmt.Errorf("open repository %s: %w", abs, err)
	}

	if remote, err := r.Remote(DefaultRemoteName); err == nil && len(remote.Config().URLs) > 0 {
		owner, name := ParseRemote(remote.Config().URLs[0])
		if name != "" {
			repo.Name = name
		}
		repo.Owner = owner
	}

	if head, err := r.Head(); err == nil {
		repo.Commit = head.Hash().String()
	}
	return repo, nil
}

// Checkout resolves revision in the repository at dir and checks it out on a
// detached HEAD, discarding local modifications of tracked files. Branches are
// tried before their origin counterparts, then tags, then commit hashes.
// Untracked files, such as a state directory inside the worktree, are kept.
func Checkout(dir, revision string) error {
	r, err := git.PlainOpen(dir)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return fmt.Errorf("checkout %s in %s: %w", revision, dir, ErrNotRepository)
		}
		return fmt.Errorf("open repository %s: %w", dir, err)
	}

	hash, err := resolveRevision(r, revision)
	if err != nil {
		return err
	}

	wt, err := r.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	paths, err := trackedPaths(r, hash)
	if err != nil {
		return fmt.Errorf("checkout %s: %w", revision, err)
	}

	if err := r.Storer.SetReference(plumbing.NewHashReference(plumbing.HEAD, hash)); err != nil {
		return fmt.Errorf("checkout %s: %w", revision, err)
	}
	if len(paths) == 0 {
		return nil
	}
	// An unrestricted go-git reset removes every path the index does not list.
	if err := wt.Reset(&git.ResetOptions{Commit: hash, Mode: git.HardReset, Files: paths}); err != nil {
		return fmt.Errorf("checkout %s: %w", revision, err)
	}
	return nil
}

// trackedPaths lists the files of the current index and of the target commit.
func trackedPaths(r *git.Repository, target plumbing.Hash) ([]string, error) {
	seen := make(map[string]struct{})

	idx, err := r.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	for _, e := range idx.Entries {
		seen[e.Name] = struct{}{}
	}

	commit, err := r.CommitObject(target)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", target, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("read tree of %s: %w", target, err)
	}
	err = tree.Files().ForEach(func(f *object.File) error {
		seen[f.Name] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tree of %s: %w", target, err)
	}

	return slices.Sorted(maps.Keys(seen)), nil
}

func resolveRevision(r *git.Repository, revision string) (plumbing.Hash, error) {
	candidates := []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(revision),
		plumbing.NewRemoteReferenceName(DefaultRemoteName, revision),
		plumbing.NewTagReferenceName(revision),
	}
	for _, name := range candidates {
		ref, err := r.Reference(name, true)
		if err != nil {
			continue
		}
		if name.IsTag() {
			// Annotated tags point at a tag object; peel to the commit.
			if tag, err := r.TagObject(ref.Hash()); err == nil {
				commit, err := tag.Commit()
				if err != nil {
					return plumbing.ZeroHash, fmt.Errorf("resolve tag %s: %w", revision, err)
				}
				return commit.Hash, nil
			}
		}
		return ref.Hash(), nil
	}

	hash, err := r.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: %s", ErrRevisionNotFound, revision)
	}
	return *hash, nil
}

// RepositoryName returns the last path element of a path or URL without a .git suffix.
func RepositoryName(location string) string {
	loc := strings.TrimRight(location, "/")
	if i := strings.LastIndexAny(loc, "/:"); i >= 0 {
		loc = loc[i+1:]
	}
	return strings.TrimSuffix(loc, ".git")
}

// ParseRemote extracts owner and repository name from an https or scp-like
// remote URL. Owner is empty when the URL has a single path element.
func ParseRemote(remote string) (owner, name string) {
	path := remote
	if u, err := url.Parse(remote); err == nil && u.Scheme != "" && u.Host != "" {
		path = u.Path
	} else if at := strings.Index(remote, "@"); at >= 0 {
		// git@host:owner/name.git
		if colon := strings.Index(remote[at:], ":"); colon >= 0 {
			path = remote[at+colon+1:]
		}
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	name = strings.TrimSuffix(parts[len(parts)-1], ".git")
	if len(parts) > 1 {
		owner = parts[len(parts)-2]
	}
	return owner, name
}

func isLocalDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func looksRemote(source string) bool {
	if strings.Contains(source, "://") {
		return true
	}
	return strings.Contains(source, "@") && strings.Contains(source, ":")
}
