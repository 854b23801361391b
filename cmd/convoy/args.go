// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"convoy-cli/internal/issue"
	"convoy-cli/internal/pipeline"
	"convoy-cli/internal/registry"
)

// splitRequests turns the positional arguments into pipeline slots. The
// first token must name a known module; every later token naming a known
// module starts a new slot, everything else belongs to the slot before it.
//
// Known module names always win: a value that collides with a module name
// cannot be passed as a bare option value, it has to use --opt=value form.
func splitRequests(reg *registry.Registry, args []string) ([]pipeline.Request, error) {
	var requests []pipeline.Request

	for i, arg := range args {
		if reg.Has(arg) {
			requests = append(requests, pipeline.Request{Module: arg})
			continue
		}

		if len(requests) == 0 {
			return nil, issue.NewErrorContext().
				WithOperation("parse pipeline").
				WithResource(arg).
				WithSuggestion("Run with --list-modules to see the available modules").
				WithSuggestion(fmt.Sprintf("The pipeline must start with a module name, got %q", args[i])).
				Wrap(&registry.NotFoundError{Module: arg}).
				BuildError()
		}

		last := &requests[len(requests)-1]
		last.Args = append(last.Args, arg)
	}

	return requests, nil
}

// describePipeline renders the slot chain for the --info echo.
func describePipeline(requests []pipeline.Request) string {
	parts := make([]string, 0, len(requests))
	for _, req := range requests {
		part := req.Module
		if len(req.Args) > 0 {
			part += " " + strings.Join(req.Args, " ")
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " ")
}
