// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// EngineTypePodman selects the podman CLI.
	EngineTypePodman EngineType = "podman"
	// EngineTypeDocker selects the docker CLI.
	EngineTypeDocker EngineType = "docker"
)

var (
	// ErrNoEngineAvailable is the sentinel error wrapped by EngineNotAvailableError.
	ErrNoEngineAvailable = errors.New("no container engine available")

	// ErrInvalidEngineType is the sentinel error wrapped by InvalidEngineTypeError.
	ErrInvalidEngineType = errors.New("invalid container engine type")

	// ErrInvalidImageReference is the sentinel error wrapped by InvalidImageReferenceError.
	ErrInvalidImageReference = errors.New("invalid image reference")
)

type (
	// Engine is the subset of container engine operations used for packaging.
	Engine interface {
		// Name returns the engine name (docker or podman).
		Name() string
		// Available checks if the engine is installed and responding.
		Available() bool
		// Version returns the engine version.
		Version(ctx context.Context) (string, error)
		// Build builds an image from a Dockerfile.
		Build(ctx context.Context, opts BuildOptions) error
		// Tag adds target as a name for the source image.
		Tag(ctx context.Context, source, target ImageReference) error
		// Push uploads an image to its registry.
		Push(ctx context.Context, opts PushOptions) error
		// Login stores registry credentials for subsequent pushes.
		Login(ctx context.Context, opts LoginOptions) error
		// ImageExists checks if an image is present locally.
		ImageExists(ctx context.Context, image ImageReference) (bool, error)
	}

	// EngineType identifies the container engine type.
	EngineType string

	// InvalidEngineTypeError is returned when an EngineType is not a known engine.
	InvalidEngineTypeError struct {
		Value EngineType
	}

	// ImageReference is a [registry/][namespace/]repository[:tag] image name.
	ImageReference string

	// InvalidImageReferenceError is returned when an ImageReference is empty or
	// contains whitespace.
	InvalidImageReferenceError struct {
		Value ImageReference
	}

	// EngineNotAvailableError is returned when neither the preferred engine nor
	// its fallback can be used. It wraps ErrNoEngineAvailable.
	EngineNotAvailableError struct {
		Engine EngineType
		Reason string
	}

	// BuildOptions contains options for building an image.
	BuildOptions struct {
		// ContextDir is the build context directory.
		ContextDir string
		// Dockerfile is the path to the Dockerfile (relative to ContextDir).
		Dockerfile string
		// Tag is the image name to assign.
		Tag ImageReference
		// BuildArgs are build-time variables.
		BuildArgs map[string]string
		// Labels are image labels.
		Labels map[string]string
		// NoCache disables the build cache.
		NoCache bool
		// Stdout is where to write build output.
		Stdout io.Writer
		// Stderr is where to write build errors.
		Stderr io.Writer
	}

	// PushOptions contains options for pushing an image.
	PushOptions struct {
		Image  ImageReference
		Stdout io.Writer
		Stderr io.Writer
	}

	// LoginOptions contains registry credentials. The password is passed on stdin.
	LoginOptions struct {
		Registry string
		Username string
		Password string
	}
)

// Error implements the error interface.
func (e *InvalidEngineTypeError) Error() string {
	return fmt.Sprintf("invalid container engine %q (valid: docker, podman)", e.Value)
}

// Unwrap returns ErrInvalidEngineType for errors.Is() compatibility.
func (e *InvalidEngineTypeError) Unwrap() error { return ErrInvalidEngineType }

// Validate returns an error if the EngineType is not docker or podman.
func (t EngineType) Validate() error {
	switch t {
	case EngineTypeDocker, EngineTypePodman:
		return nil
	default:
		return &InvalidEngineTypeError{Value: t}
	}
}

// String returns the string representation of the EngineType.
func (t EngineType) String() string { return string(t) }

// Error implements the error interface.
func (e *InvalidImageReferenceError) Error() string {
	return fmt.Sprintf("invalid image reference %q: must be non-empty without whitespace", e.Value)
}

// Unwrap returns ErrInvalidImageReference for errors.Is() compatibility.
func (e *InvalidImageReferenceError) Unwrap() error { return ErrInvalidImageReference }

// Validate returns an error if the reference is empty or contains whitespace.
func (r ImageReference) Validate() error {
	if r == "" || strings.ContainsAny(string(r), " \t\r\n") {
		return &InvalidImageReferenceError{Value: r}
	}
	return nil
}

// String returns the string representation of the ImageReference.
func (r ImageReference) String() string { return string(r) }

// Error implements the error interface.
func (e *EngineNotAvailableError) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// Unwrap returns ErrNoEngineAvailable for errors.Is() compatibility.
func (e *EngineNotAvailableError) Unwrap() error { return ErrNoEngineAvailable }

// Validate returns an error if the build options cannot produce a command.
func (o BuildOptions) Validate() error {
	if strings.TrimSpace(o.ContextDir) == "" {
		return errors.New("build context directory is required")
	}
	if o.Tag != "" {
		return o.Tag.Validate()
	}
	return nil
}

// NewEngine returns the preferred engine, falling back to the other one when
// the preferred engine is not available.
func NewEngine(preferredType EngineType, opts ...BaseCLIEngineOption) (Engine, error) {
	if err := preferredType.Validate(); err != nil {
		return nil, err
	}

	docker := func() Engine { return NewDockerEngine(opts...) }
	podman := func() Engine { return NewPodmanEngine(opts...) }

	candidates := []func() Engine{docker, podman}
	fallback := EngineTypePodman
	if preferredType == EngineTypePodman {
		candidates = []func() Engine{podman, docker}
		fallback = EngineTypeDocker
	}

	for _, candidate := range candidates {
		if engine := candidate(); engine.Available() {
			return engine, nil
		}
	}
	return nil, &EngineNotAvailableError{
		Engine: preferredType,
		Reason: fmt.Sprintf("%s is not installed or not accessible, and %s fallback is also not available", preferredType, fallback),
	}
}
