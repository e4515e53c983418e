// SPDX-License-Identifier: MPL-2.0

// Package image builds and pushes application container images.
//
// Builder implements pipeline.ImageBuilder: it builds from the repository's
// Dockerfile with the configured container engine, or hands the repository to
// jupyter-repo2docker when there is none. Pusher implements
// pipeline.ImagePusher and retries transient registry failures.
package image
