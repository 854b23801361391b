// SPDX-License-Identifier: MPL-2.0

// Package pipeline drives the module lifecycle for one run: resolve every
// requested name, configure and instantiate the modules in order, execute
// them strictly sequentially, and tear everything down in reverse order no
// matter how the run ended. A module may signal a whole-pipeline retry;
// the executor then restarts from scratch — fresh instances, fresh
// capability registry — up to a configured bound.
package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"convoy-cli/internal/capability"
	"convoy-cli/internal/config"
	"convoy-cli/internal/module"
	"convoy-cli/internal/registry"
)

type (
	// State enumerates the executor's phases within one attempt.
	State int

	// Request is one pipeline slot: a module name plus the command-line
	// arguments belonging to that slot. The same name may appear in any
	// number of slots; each gets its own instance.
	Request struct {
		Module string
		Args   []string
	}

	// Executor runs pipelines. It owns the per-run shared state — the
	// capability registry and the failure slot — for the duration of each
	// attempt and never reuses either across attempts.
	Executor struct {
		registry *registry.Registry
		resolver *config.Resolver
		logger   *slog.Logger
		retries  int
	}
)

const (
	// Loading resolves requested names against the module registry.
	Loading State = iota
	// Configuring resolves options and instantiates modules, in order.
	Configuring
	// Running executes modules strictly in declared pipeline order.
	Running
	// TearingDown destroys instantiated modules in reverse order.
	TearingDown
	// Done is the terminal success state.
	Done
	// Retrying restarts the pipeline after a retry signal.
	Retrying
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Configuring:
		return "configuring"
	case Running:
		return "running"
	case TearingDown:
		return "tearing-down"
	case Done:
		return "done"
	case Retrying:
		return "retrying"
	default:
		return "unknown"
	}
}

// New creates an executor. retries is the number of whole-pipeline restarts
// allowed on top of the initial attempt; 0 means run exactly once.
func New(reg *registry.Registry, resolver *config.Resolver, logger *slog.Logger, retries int) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if retries < 0 {
		retries = 0
	}
	return &Executor{
		registry: reg,
		resolver: resolver,
		logger:   logger,
		retries:  retries,
	}
}

// Run executes the pipeline until it reaches Done, a fatal error, or the
// retry bound. The returned error is always attributed: a ModuleError names
// the offending module, a registry.NotFoundError names the unknown module,
// and a RetriesExhaustedError carries the final retry signal.
func (e *Executor) Run(ctx context.Context, requests []Request) error {
	// The loop makes retries+1 attempts; there is always one execution.
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			e.logger.Info("retrying execution", "attempt", attempt, "retries", e.retries)
		}

		err := e.runAttempt(ctx, requests)
		if err == nil {
			return nil
		}

		var signal *module.RetrySignal
		if !errors.As(err, &signal) {
			return err
		}
		if attempt >= e.retries {
			// Exceeding the bound converts the last retry signal into an
			// ordinary fatal error.
			return &RetriesExhaustedError{
				Module:   attributedModule(err),
				Attempts: attempt + 1,
				Signal:   signal,
			}
		}
		e.logger.Warn("pipeline retry signaled",
			"module", attributedModule(err), "reason", signal.Reason)
	}
}

// runAttempt performs one Loading → ... → TearingDown pass. The capability
// registry and all instances live and die inside this call; nothing leaks
// into the next attempt.
func (e *Executor) runAttempt(ctx context.Context, requests []Request) (err error) {
	e.logger.Debug("pipeline state", "state", Loading)

	// Loading: every requested name must resolve before anything runs, so
	// a typo late in the chain cannot leave earlier modules half-executed.
	descriptors := make([]*registry.Descriptor, len(requests))
	for i, req := range requests {
		desc, lookupErr := e.registry.Lookup(req.Module)
		if lookupErr != nil {
			return lookupErr
		}
		descriptors[i] = desc
	}

	caps := capability.NewRegistry(e.logger)
	instances := make([]module.Module, 0, len(requests))

	defer func() {
		e.logger.Debug("pipeline state", "state", TearingDown)
		e.teardown(ctx, instances, failureFrom(err))
	}()

	e.logger.Debug("pipeline state", "state", Configuring)
	for i, desc := range descriptors {
		opts, resolveErr := e.resolver.Resolve(desc.Name, desc.Options, requests[i].Args)
		if resolveErr != nil {
			return &ModuleError{Module: desc.Name, Err: resolveErr}
		}

		instance := desc.New(module.NewCore(desc.Name, e.logger, caps))
		// The instance joins the teardown list before Configure runs:
		// Destroy is required to be safe even when Configure never
		// completed.
		instances = append(instances, instance)

		if configureErr := instance.Configure(ctx, opts); configureErr != nil {
			return &ModuleError{Module: desc.Name, Err: configureErr}
		}
	}

	e.logger.Debug("pipeline state", "state", Running)
	for _, instance := range instances {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		e.logger.Debug("executing module", "module", instance.Name())
		if execErr := instance.Execute(ctx); execErr != nil {
			return &ModuleError{Module: instance.Name(), Err: execErr}
		}

		// Declared shared functions are registered after a successful
		// Execute, on top of anything the module published directly.
		if provider, ok := instance.(module.SharedProvider); ok {
			for name, fn := range provider.Shared() {
				caps.Publish(name, instance, fn)
			}
		}
	}

	e.logger.Debug("pipeline state", "state", Done)
	return nil
}

// teardown destroys every instantiated module in reverse instantiation
// order. Each call is isolated: a teardown failure is logged and never
// replaces the original error or stops the remaining teardowns.
func (e *Executor) teardown(ctx context.Context, instances []module.Module, failure *module.Failure) {
	for i := len(instances) - 1; i >= 0; i-- {
		e.destroyOne(ctx, instances[i], failure)
	}
}

func (e *Executor) destroyOne(ctx context.Context, instance module.Module, failure *module.Failure) {
	// Modules are independently authored; a panicking Destroy must not take
	// the remaining teardowns down with it.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic in module teardown", "module", instance.Name(), "panic", r)
		}
	}()

	e.logger.Debug("destroying module", "module", instance.Name())
	if err := instance.Destroy(ctx, failure); err != nil {
		e.logger.Error("error in module teardown", "module", instance.Name(), "error", err)
	}
}

// failureFrom builds the Failure handed to Destroy hooks. Nil means clean
// shutdown.
func failureFrom(err error) *module.Failure {
	if err == nil {
		return nil
	}
	return &module.Failure{
		Module: attributedModule(err),
		Err:    err,
		Soft:   module.IsSoft(err),
	}
}

// attributedModule extracts the offending module's name from an error
// chain, empty when the failure happened outside any module.
func attributedModule(err error) string {
	var moduleErr *ModuleError
	if errors.As(err, &moduleErr) {
		return moduleErr.Module
	}
	return ""
}
