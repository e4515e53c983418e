// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"appgen-cli/internal/state"
)

type (
	// InitRequest holds the arguments of Initialize.
	InitRequest struct {
		// Source is a local path or clone URL. Ignored once the state exists.
		Source string
		// Destination is where the repository is localized. Ignored once the state exists.
		Destination string
		// Revision is an optional branch, tag or commit to check out.
		Revision string
	}

	// InitResult describes the initialized state.
	InitResult struct {
		StateDir         string
		AppBasePath      string
		SourceRepository string
		// Created is true when this call created the state record.
		Created bool
	}
)

// Initialize localizes the source repository and creates the state record.
// On an existing state directory the stored source and location win over the
// request, the repository is localized again and Revision is honored. The
// immutable fields are never rewritten.
func (o *Orchestrator) Initialize(ctx context.Context, req InitRequest) (InitResult, error) {
	if o.Source == nil {
		return InitResult{}, errors.New("source localizer is not configured")
	}
	logger := o.logger().With("state_dir", o.StateDir)

	if state.Exists(o.StateDir) {
		store, err := state.Open(o.StateDir)
		if err != nil {
			return InitResult{}, err
		}
		if req.Source != "" && req.Source != store.SourceRepository() {
			logger.Warn("state already initialized, ignoring requested source",
				"requested", req.Source, "stored", store.SourceRepository())
		}

		logger.Info("refreshing localized repository", "path", store.AppBasePath(), "revision", req.Revision)
		if _, err := o.Source.Localize(ctx, store.SourceRepository(), store.AppBasePath(), req.Revision); err != nil {
			return InitResult{}, fmt.Errorf("localize %s: %w", store.SourceRepository(), err)
		}
		return InitResult{
			StateDir:         store.Dir(),
			AppBasePath:      store.AppBasePath(),
			SourceRepository: store.SourceRepository(),
		}, nil
	}

	if req.Source == "" {
		return InitResult{}, precondition(OpInit, RequireSource, "a source repository path or URL is required")
	}

	logger.Info("localizing source repository", "source", req.Source, "destination", req.Destination)
	repo, err := o.Source.Localize(ctx, req.Source, req.Destination, req.Revision)
	if err != nil {
		return InitResult{}, fmt.Errorf("localize %s: %w", req.Source, err)
	}

	store, err := state.OpenOrCreate(o.StateDir, repo.Dir, req.Source)
	if err != nil {
		return InitResult{}, err
	}
	logger.Info("application state created", "path", store.Path(), "app_base_path", store.AppBasePath())

	return InitResult{
		StateDir:         store.Dir(),
		AppBasePath:      store.AppBasePath(),
		SourceRepository: store.SourceRepository(),
		Created:          true,
	}, nil
}
