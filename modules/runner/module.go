// SPDX-License-Identifier: MPL-2.0

// Package runner provides the built-in schedule-runner module. It executes
// the command of every test schedule entry on its bound guest and records
// the per-entry verdict. A failed or crashed entry fails the whole run once
// every entry had its chance.
package runner

import (
	"context"
	"fmt"
	"sync"

	"convoy-cli/internal/config"
	"convoy-cli/internal/module"
	"convoy-cli/internal/registry"
	"convoy-cli/internal/schedule"
	"convoy-cli/internal/script"

	"convoy-cli/modules/scheduler"
)

// Descriptor returns the module's registry entry.
func Descriptor() *registry.Descriptor {
	return &registry.Descriptor{
		Name:        "schedule-runner",
		Group:       "testing",
		Description: "Runs every test schedule entry on its bound guest and records results.",
		Options: []config.OptionSpec{
			{
				Name:    "parallel",
				Type:    config.BoolOption,
				Default: false,
				Help:    "Run schedule entries concurrently instead of one by one.",
			},
			{
				Name:    "soft-failures",
				Type:    config.BoolOption,
				Default: false,
				Help:    "Report failed tests as a soft failure of the run.",
			},
		},
		Requires: []string{scheduler.CapabilityName},
		New: func(core module.Core) module.Module {
			return &runnerModule{Core: core}
		},
	}
}

type runnerModule struct {
	module.Core

	parallel     bool
	softFailures bool
}

func (m *runnerModule) Configure(_ context.Context, opts *config.Options) error {
	m.SetOptions(opts)
	m.parallel = opts.Bool("parallel")
	m.softFailures = opts.Bool("soft-failures")
	return nil
}

// Execute runs the schedule. All entries run to completion before the
// verdict is computed; one broken entry does not starve the rest.
func (m *runnerModule) Execute(ctx context.Context) error {
	raw, err := m.Invoke(ctx, scheduler.CapabilityName)
	if err != nil {
		return err
	}
	entries, ok := raw.([]*schedule.Entry)
	if !ok {
		return fmt.Errorf("capability %q returned %T, want []*schedule.Entry", scheduler.CapabilityName, raw)
	}

	if m.parallel {
		var wg sync.WaitGroup
		for _, entry := range entries {
			wg.Add(1)
			go func(entry *schedule.Entry) {
				defer wg.Done()
				m.runEntry(ctx, entry)
			}(entry)
		}
		wg.Wait()
	} else {
		for _, entry := range entries {
			m.runEntry(ctx, entry)
		}
	}

	return m.verdict(entries)
}

// runEntry executes one entry and records its outcome on the entry itself.
// Errors never escape; they become the entry's state.
func (m *runnerModule) runEntry(ctx context.Context, entry *schedule.Entry) {
	log := entry.Logger()

	if entry.Guest == nil {
		log.Error("entry has no guest bound, cannot run")
		entry.State = schedule.StateError
		entry.Result = schedule.ResultError
		entry.SetStage(schedule.StageComplete)
		return
	}
	if entry.Command == "" {
		log.Error("entry has no command, cannot run")
		entry.State = schedule.StateError
		entry.Result = schedule.ResultError
		entry.SetStage(schedule.StageComplete)
		return
	}

	entry.SetStage(schedule.StageRunning)
	log.Info("running tests", "guest", entry.Guest.Name, "command", entry.Command)

	status, err := script.Run(ctx, script.RunOptions{
		Script: entry.Command,
		Name:   entry.ID,
		Env: map[string]string{
			"CONVOY_ENTRY":   entry.ID,
			"CONVOY_COMPOSE": entry.Environment.Compose,
			"CONVOY_ARCH":    entry.Environment.Arch,
			"CONVOY_GUEST":   entry.Guest.Hostname,
		},
	})

	switch {
	case err != nil:
		log.Error("entry crashed", "error", err)
		entry.State = schedule.StateError
		entry.Result = schedule.ResultError
	case status != 0:
		log.Warn("tests failed", "exit-code", status)
		entry.Result = schedule.ResultFailed
	default:
		entry.Result = schedule.ResultPassed
	}

	entry.SetStage(schedule.StageComplete)
	log.Info("entry finished", "state", entry.State, "result", entry.Result)
}

// verdict folds per-entry outcomes into the module's result. Crashed entries
// always fail the run; failed tests fail it too, softly when configured so.
func (m *runnerModule) verdict(entries []*schedule.Entry) error {
	var crashed, failed int
	for _, entry := range entries {
		switch {
		case entry.State == schedule.StateError:
			crashed++
		case entry.Result == schedule.ResultFailed:
			failed++
		}
	}

	m.Logger().Info("schedule finished",
		"entries", len(entries), "crashed", crashed, "failed", failed)

	if crashed > 0 {
		return fmt.Errorf("%d of %d schedule entries crashed", crashed, len(entries))
	}
	if failed > 0 {
		err := fmt.Errorf("tests failed in %d of %d schedule entries", failed, len(entries))
		if m.softFailures {
			return &module.SoftError{Err: err}
		}
		return err
	}
	return nil
}
