// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"appgen-cli/internal/logging"
	"appgen-cli/internal/state"

	"github.com/charmbracelet/log"
)

// Stage operations, phrased for "cannot <operation>" messages.
const (
	OpInit       Operation = "initialize application"
	OpBuild      Operation = "build image"
	OpPush       Operation = "push image"
	OpPushCloud  Operation = "push image to cloud registry"
	OpParameters Operation = "list notebook parameters"
	OpGenerate   Operation = "generate artifacts"
	OpRegister   Operation = "register application"
	OpReadState  Operation = "read application state"
)

type (
	// Operation names a pipeline stage in messages.
	Operation string

	// Orchestrator runs pipeline stages against the state directory StateDir.
	// Collaborators that a stage does not use may be left nil.
	Orchestrator struct {
		StateDir  string
		Source    SourceLocalizer
		Builder   ImageBuilder
		Pusher    ImagePusher
		Cloud     CloudRegistry
		Generator ArtifactGenerator
		Catalog   Catalog
		Logger    *log.Logger
	}
)

// String returns the operation description.
func (o Operation) String() string { return string(o) }

// Load opens the store of an initialized state directory.
func (o *Orchestrator) Load() (*state.Store, error) {
	return o.load(OpReadState)
}

func (o *Orchestrator) load(op Operation) (*state.Store, error) {
	if _, err := os.Stat(o.StateDir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, precondition(op, RequireState,
				"application state directory %s does not exist, please run init sub-command first", o.StateDir)
		}
		return nil, fmt.Errorf("inspect state directory: %w", err)
	}

	store, err := state.Open(o.StateDir)
	if err != nil {
		if errors.Is(err, state.ErrNotInitialized) {
			return nil, precondition(op, RequireState,
				"application state directory %s is not initialized, please run init sub-command first", o.StateDir)
		}
		return nil, err
	}
	o.logger().Debug("loaded application state", "path", store.Path())
	return store, nil
}

// inspect reads the localized repository recorded in store.
func (o *Orchestrator) inspect(ctx context.Context, store *state.Store) (Repository, error) {
	if o.Source == nil {
		return Repository{Dir: store.AppBasePath()}, errors.New("source localizer is not configured")
	}
	repo, err := o.Source.Inspect(ctx, store.AppBasePath())
	if err != nil {
		return Repository{}, fmt.Errorf("inspect repository %s: %w", store.AppBasePath(), err)
	}
	return repo, nil
}

func (o *Orchestrator) logger() *log.Logger {
	return logging.Component(o.Logger, "pipeline")
}
