// SPDX-License-Identifier: MPL-2.0

// Package registry discovers available modules and answers lookups by name.
//
// Modules arrive from sources: the builtin source (compiled-in modules) and
// manifest sources scanning configured directories. Discovery deduplicates
// nothing — a name collision between two discovered modules is a fatal
// configuration error reported before anything executes. Groups are purely
// organizational: they shape the module listing and help text, nothing else.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"convoy-cli/internal/config"
	"convoy-cli/internal/module"
)

// ErrModuleNotFound is the sentinel error wrapped by NotFoundError.
var ErrModuleNotFound = errors.New("module not found")

type (
	// Factory creates a fresh module instance for one pipeline slot.
	// The executor never reuses instances, not even across retries.
	Factory func(core module.Core) module.Module

	// Descriptor is the immutable identity card of a discovered module:
	// name, group, option schema, declared capability surface, and the
	// factory producing instances. Created at discovery time, lives for
	// the process lifetime.
	Descriptor struct {
		// Name uniquely identifies the module across all sources.
		Name string
		// Group is the logical namespace shown in listings.
		Group string
		// Description is the one-line summary shown in listings.
		Description string
		// Options declares the module's option schema.
		Options []config.OptionSpec
		// Provides lists capability names the module publishes. Informational.
		Provides []string
		// Requires lists capability names the module consumes. Informational.
		Requires []string
		// New instantiates the module for one pipeline slot.
		New Factory
		// Source names where the descriptor came from, for collision reports.
		Source string
	}

	// Source enumerates descriptors from one location.
	Source interface {
		// Name identifies the source in logs and collision errors.
		Name() string
		// Discover returns every module descriptor the source can see.
		Discover(ctx context.Context) ([]*Descriptor, error)
	}

	// CollisionError reports two discovered modules declaring the same name.
	CollisionError struct {
		Module       string
		FirstSource  string
		SecondSource string
	}

	// NotFoundError reports a lookup for a name no source discovered.
	// It wraps ErrModuleNotFound for errors.Is compatibility.
	NotFoundError struct {
		Module string
	}

	// Registry is the process-wide module catalog.
	Registry struct {
		modules map[string]*Descriptor
		logger  *slog.Logger
	}
)

// Error implements the error interface.
func (e *CollisionError) Error() string {
	return fmt.Sprintf(
		"module name collision: %q declared by both:\n"+
			"  - %s\n"+
			"  - %s",
		e.Module, e.FirstSource, e.SecondSource)
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unknown module %q, use --list-modules to see what is available", e.Module)
}

// Unwrap returns ErrModuleNotFound so callers can use errors.Is for programmatic detection.
func (e *NotFoundError) Unwrap() error { return ErrModuleNotFound }

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		modules: make(map[string]*Descriptor),
		logger:  logger,
	}
}

// Discover runs every source in order and loads the returned descriptors.
// The first name collision aborts discovery; no module may execute after a
// collision because lookups would be ambiguous.
func (r *Registry) Discover(ctx context.Context, sources ...Source) error {
	for _, source := range sources {
		descriptors, err := source.Discover(ctx)
		if err != nil {
			return fmt.Errorf("source %q: %w", source.Name(), err)
		}
		for _, desc := range descriptors {
			if desc.Source == "" {
				desc.Source = source.Name()
			}
			if err := r.add(desc); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Registry) add(desc *Descriptor) error {
	if desc.Name == "" {
		return fmt.Errorf("source %q produced a descriptor without a name", desc.Source)
	}
	if desc.New == nil {
		return fmt.Errorf("module %q has no factory", desc.Name)
	}
	if existing, ok := r.modules[desc.Name]; ok {
		return &CollisionError{
			Module:       desc.Name,
			FirstSource:  existing.Source,
			SecondSource: desc.Source,
		}
	}
	r.logger.Debug("discovered module", "module", desc.Name, "group", desc.Group, "source", desc.Source)
	r.modules[desc.Name] = desc
	return nil
}

// Lookup returns the descriptor for name.
func (r *Registry) Lookup(name string) (*Descriptor, error) {
	desc, ok := r.modules[name]
	if !ok {
		return nil, &NotFoundError{Module: name}
	}
	return desc, nil
}

// Has reports whether name was discovered.
func (r *Registry) Has(name string) bool {
	_, ok := r.modules[name]
	return ok
}

// Names returns all discovered module names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Groups returns descriptors bucketed by group, each bucket sorted by name.
func (r *Registry) Groups() map[string][]*Descriptor {
	groups := make(map[string][]*Descriptor)
	for _, desc := range r.modules {
		groups[desc.Group] = append(groups[desc.Group], desc)
	}
	for _, bucket := range groups {
		sort.Slice(bucket, func(i, j int) bool { return bucket[i].Name < bucket[j].Name })
	}
	return groups
}
