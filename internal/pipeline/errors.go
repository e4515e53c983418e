// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"fmt"
)

const (
	// RequireState is reported when no initialized state directory was found.
	RequireState Requirement = "state"
	// RequireSource is reported when init has no repository to localize.
	RequireSource Requirement = "source"
	// RequireBuild is reported when a stage needs a built image.
	RequireBuild Requirement = "build"
	// RequireImage is reported when neither a built nor a pushed image is known.
	RequireImage Requirement = "image"
	// RequireRegistry is reported when a push has no destination.
	RequireRegistry Requirement = "registry"
	// RequireOutputDir is reported when the artifact directory is absent.
	RequireOutputDir Requirement = "output_dir"
	// RequireCWL is reported when the artifact directory has no workflow description.
	RequireCWL Requirement = "cwl"
	// RequireJSON is reported when the artifact directory has no JSON descriptor.
	RequireJSON Requirement = "json"
)

// ErrPrecondition is the sentinel error wrapped by PreconditionError.
var ErrPrecondition = errors.New("pipeline precondition not met")

type (
	// Requirement names the prerequisite a stage found missing.
	Requirement string

	// PreconditionError reports a stage invoked before its prerequisites exist.
	// It wraps ErrPrecondition for errors.Is() compatibility.
	PreconditionError struct {
		Operation Operation
		Missing   Requirement
		Reason    string
	}
)

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	return fmt.Sprintf("cannot %s: %s", e.Operation, e.Reason)
}

// Unwrap returns ErrPrecondition.
func (e *PreconditionError) Unwrap() error { return ErrPrecondition }

func precondition(op Operation, missing Requirement, format string, args ...any) error {
	return &PreconditionError{Operation: op, Missing: missing, Reason: fmt.Sprintf(format, args...)}
}
