// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"appgen-cli/internal/state"
)

// RegisterResult describes a catalog registration.
type RegisterResult struct {
	ID   string
	Name string
	// Created is true when a new catalog entry was registered and published.
	Created bool
	Files   []string
}

// Register uploads the generated artifacts to the catalog. An entry already
// registered under the application name receives a new version; otherwise a
// new entry is created and its identifier recorded immediately. An entry that
// is not yet public is published after the upload.
func (o *Orchestrator) Register(ctx context.Context) (RegisterResult, error) {
	if o.Catalog == nil {
		return RegisterResult{}, errors.New("application catalog is not configured")
	}

	store, err := o.load(OpRegister)
	if err != nil {
		return RegisterResult{}, err
	}

	files, err := collectArtifacts(store)
	if err != nil {
		return RegisterResult{}, err
	}

	name := ApplicationName(store.AppBasePath())
	logger := o.logger().With("application", name)

	entry, err := o.resolveEntry(ctx, store, name)
	if err != nil {
		return RegisterResult{}, err
	}

	created := false
	if entry == nil {
		logger.Info("registering new catalog entry")
		entry, err = o.Catalog.Register(ctx, name)
		if err != nil {
			return RegisterResult{}, fmt.Errorf("register %s: %w", name, err)
		}
		created = true
	}

	if stored := store.AppRegistryID(); stored == nil || *stored != entry.ID {
		if err := store.SetAppRegistryID(entry.ID); err != nil {
			return RegisterResult{}, err
		}
	}

	logger = logger.With("id", entry.ID)
	logger.Info("uploading artifacts", "files", len(files))
	if err := o.Catalog.Upload(ctx, entry.ID, files); err != nil {
		return RegisterResult{}, fmt.Errorf("upload artifacts for %s: %w", name, err)
	}

	// An entry registered by a run whose upload failed is found by name and
	// has not been published yet.
	if !entry.Published {
		if err := o.Catalog.Publish(ctx, entry.ID); err != nil {
			return RegisterResult{}, fmt.Errorf("publish %s: %w", name, err)
		}
		logger.Info("catalog entry published")
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return RegisterResult{ID: entry.ID, Name: name, Created: created, Files: names}, nil
}

// resolveEntry finds the catalog entry to update. The name lookup wins; a stored
// identifier is used when the lookup finds nothing but the entry still exists.
// It returns nil when a new entry has to be registered.
func (o *Orchestrator) resolveEntry(ctx context.Context, store *state.Store, name string) (*CatalogEntry, error) {
	stored := store.AppRegistryID()

	entry, err := o.Catalog.Lookup(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("look up %s: %w", name, err)
	}
	if entry != nil {
		if stored != nil && *stored != entry.ID {
			o.logger().Warn("stored registry id does not match the catalog entry, using the catalog entry",
				"stored", *stored, "catalog", entry.ID)
		}
		return entry, nil
	}

	if stored == nil || *stored == "" {
		return nil, nil
	}
	entry, err = o.Catalog.Get(ctx, *stored)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog entry %s: %w", *stored, err)
	}
	if entry == nil {
		o.logger().Warn("stored registry id is unknown to the catalog, registering again", "stored", *stored)
	}
	return entry, nil
}

// collectArtifacts reads the uploadable files of the artifact directory and
// checks that both a workflow description and a JSON descriptor are present.
func collectArtifacts(store *state.Store) ([]ArtifactFile, error) {
	dir := ""
	if p := store.CWLOutputPath(); p != nil {
		dir = *p
	}
	if dir == "" {
		return nil, precondition(OpRegister, RequireOutputDir, "no artifact directory is recorded, run build_cwl first")
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, precondition(OpRegister, RequireOutputDir,
			"artifact directory %s does not exist, run build_cwl first", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read artifact directory: %w", err)
	}

	var names []string
	var hasCWL, hasJSON bool
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".cwl":
			hasCWL = true
		case ".json":
			hasJSON = true
		default:
			if e.Name() != RoutingFileName {
				continue
			}
		}
		names = append(names, e.Name())
	}

	if !hasCWL {
		return nil, precondition(OpRegister, RequireCWL, "no CWL files found in %s, run build_cwl first", dir)
	}
	if !hasJSON {
		return nil, precondition(OpRegister, RequireJSON, "no JSON descriptor found in %s, run build_cwl first", dir)
	}

	slices.Sort(names)
	files := make([]ArtifactFile, 0, len(names))
	for _, n := range names {
		content, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			return nil, fmt.Errorf("read artifact %s: %w", n, err)
		}
		files = append(files, ArtifactFile{Name: n, Content: content})
	}
	return files, nil
}

// ApplicationName derives the catalog name from the localized repository path.
func ApplicationName(appBasePath string) string {
	return strings.TrimSuffix(filepath.Base(filepath.Clean(appBasePath)), ".git")
}
