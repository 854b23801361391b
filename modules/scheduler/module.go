// SPDX-License-Identifier: MPL-2.0

// Package scheduler provides the built-in test-scheduler module: it turns
// its configured testing environments into a schedule of entries and
// publishes the list as the "test_schedule" capability. Downstream modules
// (provisioners, runners) fill the entries in; the list itself is shared by
// reference.
package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"convoy-cli/internal/capability"
	"convoy-cli/internal/config"
	"convoy-cli/internal/module"
	"convoy-cli/internal/registry"
	"convoy-cli/internal/schedule"
)

// CapabilityName is the shared-capability name the schedule is published
// under. The value exchanged is a []*schedule.Entry.
const CapabilityName = "test_schedule"

// Descriptor returns the module's registry entry.
func Descriptor() *registry.Descriptor {
	return &registry.Descriptor{
		Name:        "test-scheduler",
		Group:       "testing",
		Description: "Builds a test schedule, one entry per requested testing environment.",
		Options: []config.OptionSpec{
			{
				Name:     "environments",
				Type:     config.StringSliceOption,
				Default:  nil,
				Help:     "Testing environments to schedule, as compose:arch pairs (arch defaults to the host's).",
				Required: true,
			},
			{
				Name:     "command",
				Type:     config.StringOption,
				Default:  "",
				Help:     "Test command every entry will run.",
				Required: true,
			},
			{
				Name:    "id-prefix",
				Type:    config.StringOption,
				Default: "entry",
				Help:    "Prefix for generated entry IDs.",
			},
		},
		Provides: []string{CapabilityName},
		New: func(core module.Core) module.Module {
			return &schedulerModule{Core: core}
		},
	}
}

type schedulerModule struct {
	module.Core

	environments []schedule.Environment
	command      string
	idPrefix     string
	entries      []*schedule.Entry
}

// Configure parses the environment descriptions; a malformed one fails the
// run before anything executes.
func (m *schedulerModule) Configure(_ context.Context, opts *config.Options) error {
	m.SetOptions(opts)
	m.command = opts.String("command")
	m.idPrefix = opts.String("id-prefix")

	for _, raw := range opts.StringSlice("environments") {
		env, err := parseEnvironment(raw)
		if err != nil {
			return err
		}
		m.environments = append(m.environments, env)
	}
	return nil
}

// Execute creates the schedule entries.
func (m *schedulerModule) Execute(context.Context) error {
	for i, env := range m.environments {
		entry := schedule.NewEntry(fmt.Sprintf("%s-%d", m.idPrefix, i+1), env, m.Logger())
		entry.Command = m.command
		entry.Logger().Info("scheduled", "environment", env)
		m.entries = append(m.entries, entry)
	}

	m.Logger().Info("test schedule created", "entries", len(m.entries))
	return nil
}

// Shared publishes the schedule accessor once the entries exist.
func (m *schedulerModule) Shared() map[string]capability.Invocable {
	return map[string]capability.Invocable{
		CapabilityName: func(context.Context, ...any) (any, error) {
			return m.entries, nil
		},
	}
}

// Destroy logs the final disposition of every entry, so the schedule's
// outcome is visible even when a later module killed the run.
func (m *schedulerModule) Destroy(_ context.Context, failure *module.Failure) error {
	for _, entry := range m.entries {
		entry.Logger().Debug("final entry disposition",
			"stage", entry.Stage, "state", entry.State, "result", entry.Result)
	}
	if failure != nil && len(m.entries) > 0 {
		m.Logger().Debug("schedule torn down after failure", "module", failure.Module)
	}
	return nil
}

// parseEnvironment turns "compose:arch" into an Environment. A bare
// "compose" targets the host architecture.
func parseEnvironment(raw string) (schedule.Environment, error) {
	compose, arch, found := strings.Cut(raw, ":")
	if compose == "" {
		return schedule.Environment{}, fmt.Errorf("invalid environment %q, want compose or compose:arch", raw)
	}
	if !found || arch == "" {
		arch = runtime.GOARCH
	}
	return schedule.Environment{Compose: compose, Arch: arch}, nil
}
