// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
)

type (
	// BuildRequest holds the arguments of BuildImage. A nil part falls back to
	// the stored value, then to the builder default. A non-nil empty part is kept.
	BuildRequest struct {
		Namespace  *string
		Repository *string
		Tag        *string
		ConfigFile string
	}

	// BuildResult describes the built image.
	BuildResult struct {
		Image     ImageName
		Reference string
	}
)

// BuildImage builds the container image of the localized repository and
// records its name and local reference.
func (o *Orchestrator) BuildImage(ctx context.Context, req BuildRequest) (BuildResult, error) {
	if o.Builder == nil {
		return BuildResult{}, errors.New("image builder is not configured")
	}

	store, err := o.load(OpBuild)
	if err != nil {
		return BuildResult{}, err
	}
	repo, err := o.inspect(ctx, store)
	if err != nil {
		return BuildResult{}, err
	}

	defaults := o.Builder.Defaults(repo)
	image := ImageName{
		Namespace:  pick(req.Namespace, store.DockerImageNamespace(), defaults.Namespace),
		Repository: pick(req.Repository, store.DockerImageRepository(), defaults.Repository),
		Tag:        pick(req.Tag, store.DockerImageTag(), defaults.Tag),
	}

	logger := o.logger().With("image", image.Reference())
	logger.Info("building image", "path", repo.Dir)

	ref, err := o.Builder.Build(ctx, BuildSpec{Repository: repo, Image: image, ConfigFile: req.ConfigFile})
	if err != nil {
		return BuildResult{}, fmt.Errorf("build %s: %w", image.Reference(), err)
	}

	if err := store.RecordImage(image.Namespace, image.Repository, image.Tag, ref); err != nil {
		return BuildResult{}, err
	}
	logger.Info("image built", "reference", ref)

	return BuildResult{Image: image, Reference: ref}, nil
}

// pick returns the first non-nil of override and stored, else fallback.
func pick(override, stored *string, fallback string) string {
	if override != nil {
		return *override
	}
	if stored != nil {
		return *stored
	}
	return fallback
}
