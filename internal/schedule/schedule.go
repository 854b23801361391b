// SPDX-License-Identifier: MPL-2.0

// Package schedule defines the test-schedule protocol exchanged between
// scheduling, provisioning, and runner modules under the "test_schedule"
// capability. The pipeline core never interprets the schedule: modules that
// agree on the capability name pass the entry list by reference and fill
// entries in as the pipeline progresses — the scheduler creates them, a
// provisioner binds guests, a runner executes and records results.
package schedule

import (
	"fmt"
	"log/slog"
)

type (
	// Stage tracks how far an entry has progressed. Unlike State, the
	// stage changes several times over an entry's lifetime.
	Stage int

	// State is the final disposition of an entry. It changes once.
	State int

	// Result classifies the outcome of the tests an entry ran.
	Result int

	// Environment describes the testing environment an entry targets. It
	// is a description, not a live resource; a provisioner turns it into
	// a Guest.
	Environment struct {
		// Compose names the OS compose or image to test against.
		Compose string
		// Arch is the target architecture.
		Arch string
	}

	// Guest is a bound execution target. Guests are created by
	// provisioning modules; the runner only uses the handle.
	Guest struct {
		// Name identifies the guest in logs.
		Name string
		// Hostname is where the guest is reachable.
		Hostname string
		// Environment is what the guest was provisioned for.
		Environment Environment
	}

	// Entry is one schedulable unit: where to run, what to run, and how it
	// went. Guest and Command start unset; downstream modules fill them in.
	Entry struct {
		// ID identifies the entry in logs and reports.
		ID string
		// Environment is the testing environment the entry targets.
		Environment Environment
		// Guest is the bound execution target, nil until provisioned.
		Guest *Guest
		// Command is the resolved test command, empty until a scheduler
		// or package resolver fills it in.
		Command string
		// Stage is the entry's current lifecycle stage.
		Stage Stage
		// State is the entry's final disposition.
		State State
		// Result is the outcome of the entry's tests.
		Result Result

		logger *slog.Logger
	}
)

const (
	// StageCreated is a fresh entry; nothing has happened yet.
	StageCreated Stage = iota
	// StageGuestProvisioning means a provisioning process started.
	StageGuestProvisioning
	// StageGuestProvisioned means a guest is bound to the entry.
	StageGuestProvisioned
	// StagePrepared means the entry is ready for its tests.
	StagePrepared
	// StageRunning means a runner is executing the entry's tests.
	StageRunning
	// StageComplete means nothing is left to perform.
	StageComplete
)

const (
	// StateOK means everything went well.
	StateOK State = iota
	// StateError means an error appeared while processing the entry.
	StateError
)

const (
	// ResultUndefined means no relevant information yet.
	ResultUndefined Result = iota
	// ResultPassed means the tests passed.
	ResultPassed
	// ResultFailed means the tests failed.
	ResultFailed
	// ResultError means the entry crashed before producing a verdict.
	ResultError
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageCreated:
		return "created"
	case StageGuestProvisioning:
		return "guest-provisioning"
	case StageGuestProvisioned:
		return "guest-provisioned"
	case StagePrepared:
		return "prepared"
	case StageRunning:
		return "running"
	case StageComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateOK:
		return "ok"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// String returns the result name.
func (r Result) String() string {
	switch r {
	case ResultUndefined:
		return "undefined"
	case ResultPassed:
		return "passed"
	case ResultFailed:
		return "failed"
	case ResultError:
		return "error"
	default:
		return "unknown"
	}
}

// String renders the environment for logs, e.g. "fedora-38:x86_64".
func (e Environment) String() string {
	return fmt.Sprintf("%s:%s", e.Compose, e.Arch)
}

// NewEntry creates an entry targeting env. Every message emitted through
// the entry's logger carries the entry's ID.
func NewEntry(id string, env Environment, logger *slog.Logger) *Entry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Entry{
		ID:          id,
		Environment: env,
		Stage:       StageCreated,
		Result:      ResultUndefined,
		logger:      logger.With("entry", id),
	}
}

// Logger returns the entry-scoped logger.
func (e *Entry) Logger() *slog.Logger { return e.logger }

// SetStage advances the entry's stage and logs the transition.
func (e *Entry) SetStage(stage Stage) {
	e.logger.Debug("schedule entry stage change", "from", e.Stage, "to", stage)
	e.Stage = stage
}
