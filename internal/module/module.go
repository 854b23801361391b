// SPDX-License-Identifier: MPL-2.0

// Package module defines the contract every pipeline module implements and
// the Core helper modules embed to get options, tagged logging, and access
// to the run's shared-capability registry.
package module

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"convoy-cli/internal/capability"
	"convoy-cli/internal/config"
)

type (
	// Module is the fixed shape of a pipeline unit. The executor drives the
	// lifecycle: Configure once with the slot's resolved options, Execute
	// once, Destroy once at run end regardless of how far the run got.
	//
	// Configure must validate option combinations and fail fast; deferring
	// the check to Execute hides configuration bugs behind side effects.
	// Execute may read any capability published by earlier slots and may
	// publish its own. Destroy must be safe to call even when Configure or
	// Execute never completed.
	Module interface {
		Name() string
		Configure(ctx context.Context, opts *config.Options) error
		Execute(ctx context.Context) error
		Destroy(ctx context.Context, failure *Failure) error
	}

	// SharedProvider is implemented by modules whose capabilities are
	// registered after a successful Execute, in addition to anything the
	// module published directly during Execute.
	SharedProvider interface {
		Shared() map[string]capability.Invocable
	}

	// Failure bundles the error that killed a run so modules can act on it
	// during Destroy — e.g. a notifier sending a different message. Nil on
	// clean shutdown.
	Failure struct {
		// Module is the name of the module the error is attributed to,
		// empty when the failure happened outside any module.
		Module string
		// Err is the triggering error.
		Err error
		// Soft marks failures that are the user's to fix rather than an
		// infrastructure problem; soft failures exit with status 0.
		Soft bool
	}

	// Core carries the per-instance plumbing every module needs. Embed it
	// by value and implement Configure and Execute on top.
	Core struct {
		name string
		log  *slog.Logger
		caps *capability.Registry
		opts *config.Options
	}
)

// softError is the marker interface for soft failures.
type softError interface {
	Soft() bool
}

// SoftError wraps an error to mark it soft: the pipeline stops and tears
// down as usual, but the process exits 0 because the fix is on the user.
type SoftError struct {
	Err error
}

// Error implements the error interface.
func (e *SoftError) Error() string { return e.Err.Error() }

// Unwrap returns the wrapped error.
func (e *SoftError) Unwrap() error { return e.Err }

// Soft marks the error as soft.
func (e *SoftError) Soft() bool { return true }

// IsSoft reports whether any error in err's chain marks itself soft.
func IsSoft(err error) bool {
	var soft softError
	return errors.As(err, &soft) && soft.Soft()
}

// RetrySignal is raised by a module hitting a transient external condition
// (infrastructure flakiness, not a bug): the executor stops the run, tears
// everything down, and restarts the whole pipeline from scratch with fresh
// instances and a fresh capability registry, up to the retry bound.
type RetrySignal struct {
	// Reason is a short human-readable cause, logged on each retry.
	Reason string
	// Err is the underlying error, when the condition came from one.
	Err error
}

// Retry builds a RetrySignal. cause may be nil.
func Retry(reason string, cause error) *RetrySignal {
	return &RetrySignal{Reason: reason, Err: cause}
}

// Error implements the error interface.
func (s *RetrySignal) Error() string {
	if s.Err != nil {
		return fmt.Sprintf("retry pipeline: %s: %v", s.Reason, s.Err)
	}
	return "retry pipeline: " + s.Reason
}

// Unwrap returns the underlying error, if any.
func (s *RetrySignal) Unwrap() error { return s.Err }

// NewCore creates the plumbing for one module instance. The logger is tagged
// with the module name so every message the instance emits carries it.
func NewCore(name string, logger *slog.Logger, caps *capability.Registry) Core {
	if logger == nil {
		logger = slog.Default()
	}
	return Core{
		name: name,
		log:  logger.With("module", name),
		caps: caps,
	}
}

// Name returns the module name. Also satisfies capability.Provider.
func (c *Core) Name() string { return c.name }

// Logger returns the instance's tagged logger.
func (c *Core) Logger() *slog.Logger { return c.log }

// SetOptions stores the resolved options; called by Configure implementations.
func (c *Core) SetOptions(opts *config.Options) { c.opts = opts }

// Options returns the resolved options, nil before Configure.
func (c *Core) Options() *config.Options { return c.opts }

// Publish registers fn as a shared capability owned by this instance,
// superseding any earlier provider of the same name.
func (c *Core) Publish(name string, fn capability.Invocable) {
	c.caps.Publish(name, c, fn)
}

// HasCapability reports whether some earlier module published name.
func (c *Core) HasCapability(name string) bool {
	return c.caps.Has(name)
}

// Invoke calls a capability published by an earlier module. The returned
// error is a capability.NotFoundError naming both sides when nothing under
// that name exists — a pipeline-ordering bug, not a soft condition.
func (c *Core) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	return c.caps.Invoke(ctx, c.name, name, args...)
}

// Destroy is the default no-op teardown; modules with cleanup override it.
func (c *Core) Destroy(context.Context, *Failure) error { return nil }
