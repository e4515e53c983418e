// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"appgen-cli/internal/catalog"
	"appgen-cli/internal/container"
	"appgen-cli/internal/issue"
	"appgen-cli/internal/pipeline"
	"appgen-cli/internal/source"
	"appgen-cli/internal/state"
)

// classifyError maps a stage failure to its exit code and issue catalog ID and
// returns a styled message for CLI rendering. Stages invoked out of order and
// invalid state access are usage errors; everything else is a failure.
func classifyError(err error, verbose bool) (code int, issueID issue.Id, styledMsg string) {
	code = ExitFailure

	var pre *pipeline.PreconditionError
	switch {
	case errors.As(err, &pre):
		code = ExitUsage
		issueID = preconditionIssue(pre.Missing)
	case errors.Is(err, state.ErrInvalidField), errors.Is(err, state.ErrImmutableField):
		code = ExitUsage
		issueID = issue.InvalidStateFieldId
	case errors.Is(err, state.ErrMissingRequired):
		code = ExitUsage
	case errors.Is(err, catalog.ErrMissingToken):
		code = ExitUsage
		issueID = issue.CatalogTokenMissingId
	case errors.Is(err, state.ErrStateCorrupt):
		issueID = issue.StateCorruptId
	case errors.Is(err, catalog.ErrUnauthorized):
		issueID = issue.CatalogTokenMissingId
	case errors.Is(err, container.ErrNoEngineAvailable):
		issueID = issue.ContainerEngineNotFoundId
	case errors.Is(err, source.ErrRevisionNotFound):
		issueID = issue.RevisionNotFoundId
	}

	// A guide attached where the error was raised is more specific.
	var ae *issue.ActionableError
	if errors.As(err, &ae) && ae.Issue != 0 {
		issueID = ae.Issue
	}

	msg := formatErrorForDisplay(err, verbose)
	switch {
	case errors.Is(err, context.Canceled):
		msg = "interrupted: " + msg
	case errors.Is(err, context.DeadlineExceeded):
		msg = "timed out: " + msg
	}
	return code, issueID, fmt.Sprintf("%s %s\n", ErrorStyle.Render("Error:"), msg)
}

// preconditionIssue returns the guide for a stage run before its prerequisite.
func preconditionIssue(missing pipeline.Requirement) issue.Id {
	switch missing {
	case pipeline.RequireState:
		return issue.StateNotInitializedId
	case pipeline.RequireBuild:
		return issue.ImageNotBuiltId
	case pipeline.RequireImage:
		return issue.ImageNotAvailableId
	case pipeline.RequireOutputDir, pipeline.RequireCWL, pipeline.RequireJSON:
		return issue.ArtifactsNotGeneratedId
	default:
		return 0
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// renderGuide writes the catalogued guide for id to w. Rendering failures are
// not reported; the error message has already been printed.
func renderGuide(w io.Writer, id issue.Id) {
	guide := issue.Get(id)
	if guide == nil {
		return
	}
	rendered, err := guide.Render("dark")
	if err != nil {
		return
	}
	fmt.Fprint(w, rendered)
}
