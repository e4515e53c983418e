// SPDX-License-Identifier: MPL-2.0

package state

import (
	"errors"
	"fmt"
	"slices"
)

const (
	// FieldAppBasePath is the localized source repository directory.
	FieldAppBasePath Field = "app_base_path"
	// FieldAppRegistryID is the identifier assigned by the application catalog.
	FieldAppRegistryID Field = "app_registry_id"
	// FieldCWLOutputPath is the directory receiving generated workflow descriptions.
	FieldCWLOutputPath Field = "cwl_output_path"
	// FieldDockerImageNamespace is the namespace part of the built image reference.
	FieldDockerImageNamespace Field = "docker_image_namespace"
	// FieldDockerImageReference is the fully resolved local image reference.
	FieldDockerImageReference Field = "docker_image_reference"
	// FieldDockerImageRepository is the repository part of the built image reference.
	FieldDockerImageRepository Field = "docker_image_repository"
	// FieldDockerImageTag is the tag part of the built image reference.
	FieldDockerImageTag Field = "docker_image_tag"
	// FieldDockerURL is the fully resolved remote registry reference.
	FieldDockerURL Field = "docker_url"
	// FieldSourceRepository is the original repository location (path or URL).
	FieldSourceRepository Field = "source_repository"
)

var (
	// ErrInvalidField is the sentinel error wrapped by InvalidFieldError.
	ErrInvalidField = errors.New("invalid state field")

	// ErrImmutableField is returned when a caller tries to change a field that is
	// fixed at creation time.
	ErrImmutableField = errors.New("state field is immutable")

	// allFields is the closed schema in sorted order.
	allFields = []Field{
		FieldAppBasePath,
		FieldAppRegistryID,
		FieldCWLOutputPath,
		FieldDockerImageNamespace,
		FieldDockerImageReference,
		FieldDockerImageRepository,
		FieldDockerImageTag,
		FieldDockerURL,
		FieldSourceRepository,
	}
)

type (
	// Field names one entry of the state record schema.
	Field string

	// InvalidFieldError is returned when a field name is not part of the schema.
	// It wraps ErrInvalidField for errors.Is() compatibility.
	InvalidFieldError struct {
		Value Field
	}
)

// Error implements the error interface.
func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("%q is not a valid state value name", string(e.Value))
}

// Unwrap returns ErrInvalidField.
func (e *InvalidFieldError) Unwrap() error { return ErrInvalidField }

// Validate returns an *InvalidFieldError when the field is outside the schema.
func (f Field) Validate() error {
	if !slices.Contains(allFields, f) {
		return &InvalidFieldError{Value: f}
	}
	return nil
}

// Immutable reports whether the field may only be written at creation time.
func (f Field) Immutable() bool {
	return f == FieldAppBasePath || f == FieldSourceRepository
}

// String returns the field name as stored in the record file.
func (f Field) String() string { return string(f) }

// Fields returns the schema in sorted order.
func Fields() []Field {
	return slices.Clone(allFields)
}
