// SPDX-License-Identifier: MPL-2.0

// Package capability implements the run-scoped shared-capability registry.
// Modules publish named invocable behaviors during a pipeline run; modules
// later in the chain look them up by name. Pipeline order is the only
// mechanism establishing producer/consumer relationships, so a lookup of an
// unpublished name is always a hard error, never a silent no-op.
package capability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// ErrNotFound is the sentinel error wrapped by NotFoundError.
var ErrNotFound = errors.New("capability not found")

type (
	// Invocable is the callable form of a shared capability. Arguments and
	// result are dynamically typed; provider and consumer agree on shapes
	// through the capability name alone.
	Invocable func(ctx context.Context, args ...any) (any, error)

	// Provider identifies the module instance that owns a capability entry.
	// Kept as a narrow interface so the registry stays decoupled from the
	// module contract.
	Provider interface {
		Name() string
	}

	// Entry pairs the owning module instance with the invocable itself.
	// The owner exists purely for diagnostics.
	Entry struct {
		Owner Provider
		Fn    Invocable
	}

	// NotFoundError is returned by Invoke and Get when no module has
	// published the requested capability. It wraps ErrNotFound for
	// errors.Is compatibility.
	NotFoundError struct {
		// Capability is the name that was requested.
		Capability string
		// Requester names the module asking, when known.
		Requester string
	}

	// Registry maps capability names to their current provider. One registry
	// exists per pipeline run and is discarded at run end; a pipeline retry
	// always starts with a fresh one. It is not safe for concurrent use —
	// the executor runs modules strictly sequentially, and a module that
	// parallelizes work internally must not touch the registry from its
	// worker goroutines.
	Registry struct {
		entries map[string]Entry
		logger  *slog.Logger
	}
)

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Requester != "" {
		return fmt.Sprintf("module %q requires capability %q, but no module published it; check the pipeline order", e.Requester, e.Capability)
	}
	return fmt.Sprintf("no module published capability %q — check the pipeline order", e.Capability)
}

// Unwrap returns ErrNotFound so callers can use errors.Is for programmatic detection.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewRegistry creates an empty registry for a single pipeline run.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string]Entry),
		logger:  logger,
	}
}

// Publish registers fn under name, owned by owner. A later Publish for the
// same name replaces the earlier entry entirely — last writer wins, entries
// are never merged. This lets interchangeable implementations of the same
// abstract capability coexist in the module set, with pipeline order
// selecting the active one.
func (r *Registry) Publish(name string, owner Provider, fn Invocable) {
	if prev, ok := r.entries[name]; ok && prev.Owner != nil && owner != nil {
		r.logger.Debug("capability superseded",
			"capability", name,
			"previous", prev.Owner.Name(),
			"owner", owner.Name())
	}
	r.entries[name] = Entry{Owner: owner, Fn: fn}
}

// Has reports whether a capability is currently published.
func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Get returns the current entry for name.
func (r *Registry) Get(name string) (Entry, error) {
	entry, ok := r.entries[name]
	if !ok {
		return Entry{}, &NotFoundError{Capability: name}
	}
	return entry, nil
}

// Invoke calls the capability published under name. requester is recorded in
// the error when the capability is absent; pass the calling module's name.
func (r *Registry) Invoke(ctx context.Context, requester, name string, args ...any) (any, error) {
	entry, ok := r.entries[name]
	if !ok {
		return nil, &NotFoundError{Capability: name, Requester: requester}
	}
	return entry.Fn(ctx, args...)
}

// Names returns the currently published capability names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
