// SPDX-License-Identifier: MPL-2.0

// Package container drives the docker and podman command line clients.
//
// The Engine interface covers what the packaging pipeline needs from an engine:
// Build, Tag, Push, Login and ImageExists. DockerEngine and PodmanEngine embed
// BaseCLIEngine, which builds the argument lists and runs the binary through an
// injectable exec function so tests never spawn a real engine.
//
// Engine selection uses NewEngine(EngineType) with automatic fallback to the
// other engine when the preferred one is unavailable. Pushes are retried with
// RetryWithBackoff when IsTransientError classifies the failure as transient.
package container
