// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"testing"

	"convoy-cli/internal/capability"
	"convoy-cli/internal/config"
	"convoy-cli/internal/module"
	"convoy-cli/internal/schedule"

	"convoy-cli/modules/scheduler"
)

// startWithSchedule publishes entries under the schedule capability and
// returns a configured provision module sharing the registry.
func startWithSchedule(t *testing.T, entries []*schedule.Entry, args []string) module.Module {
	t.Helper()

	caps := capability.NewRegistry(nil)
	publisher := module.NewCore("test-scheduler", nil, caps)
	publisher.Publish(scheduler.CapabilityName, func(context.Context, ...any) (any, error) {
		return entries, nil
	})

	desc := Descriptor()
	opts, err := config.NewResolver(nil, nil).Resolve(desc.Name, desc.Options, args)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	instance := desc.New(module.NewCore(desc.Name, nil, caps))
	if err := instance.Configure(context.Background(), opts); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	return instance
}

func TestProvision_BindsGuestToEveryEntry(t *testing.T) {
	entries := []*schedule.Entry{
		schedule.NewEntry("e-1", schedule.Environment{Compose: "fedora-42", Arch: "x86_64"}, nil),
		schedule.NewEntry("e-2", schedule.Environment{Compose: "fedora-42", Arch: "aarch64"}, nil),
	}
	instance := startWithSchedule(t, entries, nil)

	if err := instance.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v, want nil", err)
	}

	for _, entry := range entries {
		if entry.Guest == nil {
			t.Fatalf("entry %s has no guest after provisioning", entry.ID)
		}
		if entry.Guest.Environment != entry.Environment {
			t.Errorf("entry %s guest environment = %v, want %v",
				entry.ID, entry.Guest.Environment, entry.Environment)
		}
		if entry.Stage != schedule.StagePrepared {
			t.Errorf("entry %s stage = %v, want StagePrepared", entry.ID, entry.Stage)
		}
	}
}

func TestProvision_GuestNameOption(t *testing.T) {
	entries := []*schedule.Entry{
		schedule.NewEntry("e-1", schedule.Environment{Compose: "c", Arch: "a"}, nil),
	}
	instance := startWithSchedule(t, entries, []string{"--guest-name", "worker-7"})

	if err := instance.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := entries[0].Guest.Name; got != "worker-7" {
		t.Errorf("guest name = %q, want %q", got, "worker-7")
	}
}

func TestProvision_MissingScheduleIsFatal(t *testing.T) {
	desc := Descriptor()
	opts, err := config.NewResolver(nil, nil).Resolve(desc.Name, desc.Options, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// No schedule capability was published.
	instance := desc.New(module.NewCore(desc.Name, nil, capability.NewRegistry(nil)))
	if err := instance.Configure(context.Background(), opts); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if err := instance.Execute(context.Background()); err == nil {
		t.Error("Execute() error = nil, want capability-not-found failure")
	}
}

func TestProvision_Capability(t *testing.T) {
	instance := startWithSchedule(t, nil, nil)
	if err := instance.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	fn := instance.(module.SharedProvider).Shared()[CapabilityName]

	env := schedule.Environment{Compose: "fedora-42", Arch: "x86_64"}
	raw, err := fn(context.Background(), env)
	if err != nil {
		t.Fatalf("provision capability error = %v, want nil", err)
	}
	guest, ok := raw.(*schedule.Guest)
	if !ok {
		t.Fatalf("provision capability returned %T, want *schedule.Guest", raw)
	}
	if guest.Environment != env {
		t.Errorf("guest environment = %v, want %v", guest.Environment, env)
	}

	if _, err := fn(context.Background()); err == nil {
		t.Error("provision capability without arguments error = nil, want failure")
	}
	if _, err := fn(context.Background(), "not-an-environment"); err == nil {
		t.Error("provision capability with wrong argument type error = nil, want failure")
	}
}
