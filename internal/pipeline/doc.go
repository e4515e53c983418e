// SPDX-License-Identifier: MPL-2.0

// Package pipeline sequences the application packaging stages against the
// persistent state store.
//
// An Orchestrator is built once per CLI invocation. Each operation loads the
// store from the state directory, checks the prerequisites left by earlier
// stages, calls a collaborator and writes the result back before returning.
// Collaborators are reached only through the interfaces declared in this
// package, so the stages can be exercised with in-memory fakes.
//
// Stage order:
//
//	init -> build_docker -> [push_docker | push_ecr] -> build_cwl -> push_app_registry
//
// Pushing is optional: artifact generation falls back to the local image
// reference when no remote reference has been recorded.
package pipeline
