// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorContext_Build(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewErrorContext().
		WithOperation("invoke capability").
		WithResource("cache").
		WithSuggestion("Check that a cache module runs earlier in the pipeline").
		Wrap(cause).
		Build()

	msg := err.Error()
	for _, want := range []string{"invoke capability", "cache", "connection refused"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true through Unwrap")
	}
	if !err.HasSuggestions() {
		t.Error("HasSuggestions() = false, want true")
	}
}

func TestActionableError_Format(t *testing.T) {
	inner := errors.New("root cause")
	err := NewErrorContext().
		WithOperation("load configuration").
		WithSuggestion("Check the file syntax").
		Wrap(fmt.Errorf("parse failed: %w", inner)).
		Build()

	terse := err.Format(false)
	if !strings.Contains(terse, "Check the file syntax") {
		t.Errorf("Format(false) = %q, missing the suggestion", terse)
	}
	if strings.Contains(terse, "Error chain") {
		t.Errorf("Format(false) = %q, must not include the chain", terse)
	}

	verbose := err.Format(true)
	if !strings.Contains(verbose, "Error chain") || !strings.Contains(verbose, "root cause") {
		t.Errorf("Format(true) = %q, want the full chain", verbose)
	}
}

func TestWrapWithOperation(t *testing.T) {
	cause := errors.New("boom")
	err := WrapWithOperation(cause, "run pipeline")

	var ae *ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("WrapWithOperation() = %T, want *ActionableError", err)
	}
	if ae.Operation != "run pipeline" {
		t.Errorf("Operation = %q, want %q", ae.Operation, "run pipeline")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestCatalog(t *testing.T) {
	ids := []Id{
		UnknownModuleId,
		ModuleCollisionId,
		CapabilityNotFoundId,
		ConfigLoadFailedId,
		OptionResolutionFailedId,
		RetriesExhaustedId,
		ScriptExecutionFailedId,
	}
	for _, id := range ids {
		entry := Get(id)
		if entry == nil {
			t.Errorf("Get(%d) = nil, want a catalog entry", id)
			continue
		}
		if entry.Id() != id {
			t.Errorf("Get(%d).Id() = %d", id, entry.Id())
		}
		if entry.MarkdownMsg() == "" {
			t.Errorf("Get(%d) has an empty body", id)
		}
	}

	if got := len(Values()); got != len(ids) {
		t.Errorf("len(Values()) = %d, want %d", got, len(ids))
	}
	if Get(Id(999)) != nil {
		t.Error("Get(unknown id) != nil, want nil")
	}
}
