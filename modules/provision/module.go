// SPDX-License-Identifier: MPL-2.0

// Package provision provides the built-in guest-provision module. It binds
// a local guest to every entry of the published test schedule, so runner
// modules have somewhere to execute. Real deployments would swap this for a
// module talking to an actual provisioning service; the capability surface
// stays the same.
package provision

import (
	"context"
	"fmt"
	"os"

	"convoy-cli/internal/capability"
	"convoy-cli/internal/config"
	"convoy-cli/internal/module"
	"convoy-cli/internal/registry"
	"convoy-cli/internal/schedule"

	"convoy-cli/modules/scheduler"
)

// CapabilityName lets later modules ask for a guest directly, outside the
// schedule flow. Arguments: one schedule.Environment. Returns a
// *schedule.Guest.
const CapabilityName = "provision"

// Descriptor returns the module's registry entry.
func Descriptor() *registry.Descriptor {
	return &registry.Descriptor{
		Name:        "guest-provision",
		Group:       "provision",
		Description: "Binds a local guest to every entry of the test schedule.",
		Options: []config.OptionSpec{
			{
				Name:    "guest-name",
				Type:    config.StringOption,
				Default: "localhost",
				Help:    "Name assigned to provisioned guests.",
			},
		},
		Provides: []string{CapabilityName},
		Requires: []string{scheduler.CapabilityName},
		New: func(core module.Core) module.Module {
			return &provisionModule{Core: core}
		},
	}
}

type provisionModule struct {
	module.Core

	guestName string
	guests    []*schedule.Guest
}

func (m *provisionModule) Configure(_ context.Context, opts *config.Options) error {
	m.SetOptions(opts)
	m.guestName = opts.String("guest-name")
	return nil
}

// Execute walks the published schedule and binds a guest to every entry,
// advancing the entries through the provisioning stages.
func (m *provisionModule) Execute(ctx context.Context) error {
	raw, err := m.Invoke(ctx, scheduler.CapabilityName)
	if err != nil {
		return err
	}
	entries, ok := raw.([]*schedule.Entry)
	if !ok {
		return fmt.Errorf("capability %q returned %T, want []*schedule.Entry", scheduler.CapabilityName, raw)
	}

	for _, entry := range entries {
		entry.SetStage(schedule.StageGuestProvisioning)

		guest := m.provision(entry.Environment)
		entry.Guest = guest
		m.guests = append(m.guests, guest)

		entry.SetStage(schedule.StageGuestProvisioned)
		entry.SetStage(schedule.StagePrepared)
		entry.Logger().Info("guest bound", "guest", guest.Name, "hostname", guest.Hostname)
	}

	m.Logger().Info("provisioning finished", "guests", len(m.guests))
	return nil
}

func (m *provisionModule) Shared() map[string]capability.Invocable {
	return map[string]capability.Invocable{
		CapabilityName: func(_ context.Context, args ...any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("capability %q takes one environment argument, got %d", CapabilityName, len(args))
			}
			env, ok := args[0].(schedule.Environment)
			if !ok {
				return nil, fmt.Errorf("capability %q argument is %T, want schedule.Environment", CapabilityName, args[0])
			}
			guest := m.provision(env)
			m.guests = append(m.guests, guest)
			return guest, nil
		},
	}
}

// Destroy releases all provisioned guests. Local guests have nothing real to
// release, so this only reports them; a remote provisioner would return its
// API errors from here.
func (m *provisionModule) Destroy(context.Context, *module.Failure) error {
	for _, guest := range m.guests {
		m.Logger().Debug("releasing guest", "guest", guest.Name)
	}
	return nil
}

func (m *provisionModule) provision(env schedule.Environment) *schedule.Guest {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	return &schedule.Guest{
		Name:        m.guestName,
		Hostname:    hostname,
		Environment: env,
	}
}
