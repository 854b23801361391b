// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"fmt"

	"convoy-cli/internal/module"
)

type (
	// ModuleError attributes a failure to the module that raised it. Every
	// fatal pipeline error that originated inside a module is wrapped in
	// one, so diagnostics always name the offender.
	ModuleError struct {
		Module string
		Err    error
	}

	// RetriesExhaustedError converts the last retry signal into a fatal
	// error once the retry bound is spent.
	RetriesExhaustedError struct {
		// Module is the module that raised the final signal.
		Module string
		// Attempts is the total number of attempts made.
		Attempts int
		// Signal is the final retry signal.
		Signal *module.RetrySignal
	}
)

// Error implements the error interface.
func (e *ModuleError) Error() string {
	return fmt.Sprintf("module %q failed: %v", e.Module, e.Err)
}

// Unwrap returns the underlying error.
func (e *ModuleError) Unwrap() error { return e.Err }

// Error implements the error interface.
func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("module %q still signals a retry after %d attempt(s): %s",
		e.Module, e.Attempts, e.Signal.Reason)
}

// Unwrap returns the final retry signal so callers can inspect its cause.
func (e *RetriesExhaustedError) Unwrap() error { return e.Signal }
