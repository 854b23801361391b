// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"convoy-cli/internal/capability"
	"convoy-cli/internal/config"
	"convoy-cli/internal/issue"
	"convoy-cli/internal/manifest"
	"convoy-cli/internal/pipeline"
	"convoy-cli/internal/registry"
)

// classifyFailure maps an error to its issue catalog entry, walking the
// wrap chain so attribution survives pipeline wrapping. It returns 0 when
// no catalog entry covers the failure class.
func classifyFailure(err error) issue.Id {
	var (
		moduleNotFound *registry.NotFoundError
		collision      *registry.CollisionError
		exhausted      *pipeline.RetriesExhaustedError
		capNotFound    *capability.NotFoundError
		unknownOpt     *config.UnknownOptionError
		missingOpt     *config.MissingOptionError
		scriptErr      *manifest.ScriptError
	)

	switch {
	case errors.As(err, &moduleNotFound):
		return issue.UnknownModuleId
	case errors.As(err, &collision):
		return issue.ModuleCollisionId
	// Check the exhausted bound before the signal's cause so guidance
	// points at the retry budget, not whatever tripped the last attempt.
	case errors.As(err, &exhausted):
		return issue.RetriesExhaustedId
	case errors.As(err, &capNotFound):
		return issue.CapabilityNotFoundId
	case errors.As(err, &unknownOpt), errors.As(err, &missingOpt):
		return issue.OptionResolutionFailedId
	case errors.As(err, &scriptErr):
		return issue.ScriptExecutionFailedId
	default:
		return 0
	}
}

// printGuidance renders the catalog entry shown below the one-line error.
// An id without a catalog entry prints nothing; a render failure falls
// back to the raw markdown.
func printGuidance(w io.Writer, id issue.Id) {
	entry := issue.Get(id)
	if entry == nil {
		return
	}

	style := "dark"
	if !colors {
		style = "notty"
	}
	rendered, err := entry.Render(style)
	if err != nil {
		rendered = string(entry.MarkdownMsg()) + "\n"
	}
	fmt.Fprint(w, rendered)
}
