// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"appgen-cli/internal/state"
)

// PushResult describes a pushed image.
type PushResult struct {
	Registry string
	URL      string
}

// PushImage pushes the built image to registry and records the remote reference.
func (o *Orchestrator) PushImage(ctx context.Context, registry string) (PushResult, error) {
	store, err := o.load(OpPush)
	if err != nil {
		return PushResult{}, err
	}
	if strings.TrimSpace(registry) == "" {
		return PushResult{}, precondition(OpPush, RequireRegistry, "a container registry is required")
	}
	return o.push(ctx, OpPush, store, registry)
}

// PushCloudRegistry provisions a repository in the cloud registry, logs the
// container engine into it and pushes the built image there.
func (o *Orchestrator) PushCloudRegistry(ctx context.Context) (PushResult, error) {
	if o.Cloud == nil {
		return PushResult{}, errors.New("cloud registry is not configured")
	}

	store, err := o.load(OpPushCloud)
	if err != nil {
		return PushResult{}, err
	}
	image, err := builtImage(OpPushCloud, store)
	if err != nil {
		return PushResult{}, err
	}

	registry, err := o.Cloud.EnsureRepository(ctx, image)
	if err != nil {
		return PushResult{}, fmt.Errorf("ensure registry repository %s: %w", image.Path(), err)
	}
	o.logger().Info("registry repository ready", "registry", registry, "repository", image.Path())

	if err := o.Cloud.Login(ctx); err != nil {
		return PushResult{}, fmt.Errorf("registry login: %w", err)
	}
	return o.push(ctx, OpPushCloud, store, registry)
}

func (o *Orchestrator) push(ctx context.Context, op Operation, store *state.Store, registry string) (PushResult, error) {
	if o.Pusher == nil {
		return PushResult{}, errors.New("image pusher is not configured")
	}
	image, err := builtImage(op, store)
	if err != nil {
		return PushResult{}, err
	}
	local := *store.DockerImageReference()

	logger := o.logger().With("image", local, "registry", registry)
	logger.Info("pushing image")

	url, err := o.Pusher.Push(ctx, PushSpec{
		LocalReference: local,
		Registry:       strings.TrimSuffix(registry, "/"),
		Repository:     image.Repository,
		Tag:            image.Tag,
	})
	if err != nil {
		return PushResult{}, fmt.Errorf("push %s: %w", local, err)
	}

	if err := store.SetDockerURL(url); err != nil {
		return PushResult{}, err
	}
	logger.Info("image pushed", "url", url)

	return PushResult{Registry: registry, URL: url}, nil
}

// builtImage returns the image recorded by the last build.
func builtImage(op Operation, store *state.Store) (ImageName, error) {
	if store.DockerImageReference() == nil {
		return ImageName{}, precondition(op, RequireBuild, "no build has occurred, run build_docker first")
	}
	var image ImageName
	if ns := store.DockerImageNamespace(); ns != nil {
		image.Namespace = *ns
	}
	if repo := store.DockerImageRepository(); repo != nil {
		image.Repository = *repo
	}
	if tag := store.DockerImageTag(); tag != nil {
		image.Tag = *tag
	}
	return image, nil
}
