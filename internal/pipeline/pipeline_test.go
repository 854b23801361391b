// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"convoy-cli/internal/capability"
	"convoy-cli/internal/config"
	"convoy-cli/internal/module"
	"convoy-cli/internal/registry"
)

// recorder collects lifecycle events across a whole test run, including
// across retry attempts.
type recorder struct {
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

// fakeModule is a scriptable module: each hook defaults to success and
// records itself into the shared recorder.
type fakeModule struct {
	module.Core

	rec       *recorder
	configure func(ctx context.Context, m *fakeModule, opts *config.Options) error
	execute   func(ctx context.Context, m *fakeModule) error
	destroy   func(ctx context.Context, m *fakeModule, failure *module.Failure) error
	shared    map[string]capability.Invocable
}

func (m *fakeModule) Configure(ctx context.Context, opts *config.Options) error {
	m.rec.add("configure %s", m.Name())
	if m.configure != nil {
		return m.configure(ctx, m, opts)
	}
	return nil
}

func (m *fakeModule) Execute(ctx context.Context) error {
	m.rec.add("execute %s", m.Name())
	if m.execute != nil {
		return m.execute(ctx, m)
	}
	return nil
}

func (m *fakeModule) Destroy(ctx context.Context, failure *module.Failure) error {
	m.rec.add("destroy %s", m.Name())
	if m.destroy != nil {
		return m.destroy(ctx, m, failure)
	}
	return nil
}

func (m *fakeModule) Shared() map[string]capability.Invocable {
	return m.shared
}

// fakeDescriptor builds a descriptor whose factory produces fakeModules
// configured by build. build may be nil for a plain always-succeeds module.
func fakeDescriptor(name string, rec *recorder, build func(*fakeModule)) *registry.Descriptor {
	return &registry.Descriptor{
		Name:  name,
		Group: "test",
		New: func(core module.Core) module.Module {
			m := &fakeModule{Core: core, rec: rec}
			if build != nil {
				build(m)
			}
			return m
		},
	}
}

func newExecutor(t *testing.T, retries int, descriptors ...*registry.Descriptor) *Executor {
	t.Helper()

	reg := registry.New(nil)
	if err := reg.Discover(context.Background(), registry.NewBuiltinSource(descriptors...)); err != nil {
		t.Fatalf("Discover() error = %v, want nil", err)
	}

	cfg, err := config.Load(config.LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("config.Load() error = %v, want nil", err)
	}

	return New(reg, config.NewResolver(cfg, nil), nil, retries)
}

func requests(names ...string) []Request {
	reqs := make([]Request, len(names))
	for i, name := range names {
		reqs[i] = Request{Module: name}
	}
	return reqs
}

func assertEvents(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRun_OrderAndReverseTeardown(t *testing.T) {
	rec := &recorder{}
	exec := newExecutor(t, 0,
		fakeDescriptor("a", rec, nil),
		fakeDescriptor("b", rec, nil),
		fakeDescriptor("c", rec, nil),
	)

	if err := exec.Run(context.Background(), requests("a", "b", "c")); err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}

	assertEvents(t, rec.events, []string{
		"configure a", "configure b", "configure c",
		"execute a", "execute b", "execute c",
		"destroy c", "destroy b", "destroy a",
	})
}

func TestRun_ExecuteFailureStopsChainAndTearsDownEverything(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")
	exec := newExecutor(t, 0,
		fakeDescriptor("a", rec, nil),
		fakeDescriptor("b", rec, func(m *fakeModule) {
			m.execute = func(context.Context, *fakeModule) error { return boom }
		}),
		fakeDescriptor("c", rec, nil),
	)

	err := exec.Run(context.Background(), requests("a", "b", "c"))
	if err == nil {
		t.Fatal("Run() error = nil, want failure")
	}
	if !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want chain containing %v", err, boom)
	}

	var modErr *ModuleError
	if !errors.As(err, &modErr) {
		t.Fatalf("Run() error = %T, want *ModuleError", err)
	}
	if modErr.Module != "b" {
		t.Errorf("ModuleError.Module = %q, want %q", modErr.Module, "b")
	}

	// c never executes but was configured, so it still tears down.
	assertEvents(t, rec.events, []string{
		"configure a", "configure b", "configure c",
		"execute a", "execute b",
		"destroy c", "destroy b", "destroy a",
	})
}

func TestRun_ConfigureFailureTearsDownConfiguredSoFar(t *testing.T) {
	rec := &recorder{}
	exec := newExecutor(t, 0,
		fakeDescriptor("a", rec, nil),
		fakeDescriptor("b", rec, func(m *fakeModule) {
			m.configure = func(context.Context, *fakeModule, *config.Options) error {
				return errors.New("bad options")
			}
		}),
		fakeDescriptor("c", rec, nil),
	)

	err := exec.Run(context.Background(), requests("a", "b", "c"))
	if err == nil {
		t.Fatal("Run() error = nil, want failure")
	}

	// The failing instance joined the teardown list before Configure ran;
	// c was never instantiated and must not appear.
	assertEvents(t, rec.events, []string{
		"configure a", "configure b",
		"destroy b", "destroy a",
	})
}

func TestRun_UnknownModuleFailsBeforeAnythingRuns(t *testing.T) {
	rec := &recorder{}
	exec := newExecutor(t, 0, fakeDescriptor("a", rec, nil))

	err := exec.Run(context.Background(), requests("a", "nope"))
	if !errors.Is(err, registry.ErrModuleNotFound) {
		t.Fatalf("Run() error = %v, want chain containing ErrModuleNotFound", err)
	}
	if len(rec.events) != 0 {
		t.Errorf("events = %v, want none; loading must fail before configuration", rec.events)
	}
}

func TestRun_CapabilityFlowsDownstream(t *testing.T) {
	rec := &recorder{}
	var got any

	exec := newExecutor(t, 0,
		fakeDescriptor("producer", rec, func(m *fakeModule) {
			m.shared = map[string]capability.Invocable{
				"answer": func(context.Context, ...any) (any, error) { return 42, nil },
			}
		}),
		fakeDescriptor("consumer", rec, func(m *fakeModule) {
			m.execute = func(ctx context.Context, m *fakeModule) error {
				v, err := m.Invoke(ctx, "answer")
				got = v
				return err
			}
		}),
	)

	if err := exec.Run(context.Background(), requests("producer", "consumer")); err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if got != 42 {
		t.Errorf("consumer saw %v, want 42", got)
	}
}

func TestRun_CapabilityNotVisibleBeforeProducerExecutes(t *testing.T) {
	rec := &recorder{}
	var visibleDuringConfigure, visibleDuringExecute bool

	exec := newExecutor(t, 0,
		fakeDescriptor("consumer", rec, func(m *fakeModule) {
			m.configure = func(_ context.Context, m *fakeModule, _ *config.Options) error {
				visibleDuringConfigure = m.HasCapability("answer")
				return nil
			}
			m.execute = func(_ context.Context, m *fakeModule) error {
				visibleDuringExecute = m.HasCapability("answer")
				return nil
			}
		}),
		fakeDescriptor("producer", rec, func(m *fakeModule) {
			m.shared = map[string]capability.Invocable{
				"answer": func(context.Context, ...any) (any, error) { return 42, nil },
			}
		}),
	)

	// The producer sits AFTER the consumer, so the consumer must never see
	// the capability.
	if err := exec.Run(context.Background(), requests("consumer", "producer")); err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if visibleDuringConfigure || visibleDuringExecute {
		t.Errorf("capability visible (configure=%v, execute=%v), want invisible both times",
			visibleDuringConfigure, visibleDuringExecute)
	}
}

func TestRun_MissingCapabilityIsLoudAndAttributed(t *testing.T) {
	rec := &recorder{}
	exec := newExecutor(t, 0,
		fakeDescriptor("consumer", rec, func(m *fakeModule) {
			m.execute = func(ctx context.Context, m *fakeModule) error {
				_, err := m.Invoke(ctx, "nothing")
				return err
			}
		}),
	)

	err := exec.Run(context.Background(), requests("consumer"))
	if !errors.Is(err, capability.ErrNotFound) {
		t.Fatalf("Run() error = %v, want chain containing capability.ErrNotFound", err)
	}

	var notFound *capability.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Run() error = %T, want *capability.NotFoundError in chain", err)
	}
	if notFound.Capability != "nothing" || notFound.Requester != "consumer" {
		t.Errorf("NotFoundError = %+v, want capability %q requested by %q", notFound, "nothing", "consumer")
	}
}

func TestRun_LastPublisherWins(t *testing.T) {
	rec := &recorder{}
	var got any

	provider := func(value any) func(*fakeModule) {
		return func(m *fakeModule) {
			m.shared = map[string]capability.Invocable{
				"source": func(context.Context, ...any) (any, error) { return value, nil },
			}
		}
	}

	exec := newExecutor(t, 0,
		fakeDescriptor("first", rec, provider("first")),
		fakeDescriptor("second", rec, provider("second")),
		fakeDescriptor("consumer", rec, func(m *fakeModule) {
			m.execute = func(ctx context.Context, m *fakeModule) error {
				v, err := m.Invoke(ctx, "source")
				got = v
				return err
			}
		}),
	)

	if err := exec.Run(context.Background(), requests("first", "second", "consumer")); err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if got != "second" {
		t.Errorf("consumer saw %v, want the later publisher's %q", got, "second")
	}
}

func TestRun_RetryRestartsWithFreshState(t *testing.T) {
	rec := &recorder{}
	attempts := 0
	sawStaleCapability := false

	exec := newExecutor(t, 1,
		fakeDescriptor("flaky", rec, func(m *fakeModule) {
			m.execute = func(_ context.Context, m *fakeModule) error {
				// A capability published in a previous attempt must not
				// survive into this one.
				if m.HasCapability("leftover") {
					sawStaleCapability = true
				}
				m.Publish("leftover", func(context.Context, ...any) (any, error) { return nil, nil })

				attempts++
				if attempts == 1 {
					return module.Retry("provisioner glitch", nil)
				}
				return nil
			}
		}),
	)

	if err := exec.Run(context.Background(), requests("flaky")); err != nil {
		t.Fatalf("Run() error = %v, want nil after successful retry", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if sawStaleCapability {
		t.Error("capability from attempt 1 leaked into attempt 2")
	}

	// Both attempts run the full lifecycle, including teardown of the
	// failed attempt.
	assertEvents(t, rec.events, []string{
		"configure flaky", "execute flaky", "destroy flaky",
		"configure flaky", "execute flaky", "destroy flaky",
	})
}

func TestRun_RetriesExhaustedBecomesFatal(t *testing.T) {
	rec := &recorder{}
	attempts := 0

	exec := newExecutor(t, 2,
		fakeDescriptor("flaky", rec, func(m *fakeModule) {
			m.execute = func(context.Context, *fakeModule) error {
				attempts++
				return module.Retry("still down", nil)
			}
		}),
	)

	err := exec.Run(context.Background(), requests("flaky"))
	if err == nil {
		t.Fatal("Run() error = nil, want retries-exhausted failure")
	}

	var exhausted *RetriesExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Run() error = %T (%v), want *RetriesExhaustedError", err, err)
	}
	if exhausted.Module != "flaky" {
		t.Errorf("RetriesExhaustedError.Module = %q, want %q", exhausted.Module, "flaky")
	}
	if exhausted.Attempts != 3 {
		t.Errorf("RetriesExhaustedError.Attempts = %d, want 3 (retries=2 means 3 attempts)", exhausted.Attempts)
	}
	if attempts != 3 {
		t.Errorf("executed %d attempts, want 3", attempts)
	}
}

func TestRun_SoftFailureReachesDestroyHooks(t *testing.T) {
	rec := &recorder{}
	var seen *module.Failure

	exec := newExecutor(t, 0,
		fakeDescriptor("notifier", rec, func(m *fakeModule) {
			m.destroy = func(_ context.Context, _ *fakeModule, failure *module.Failure) error {
				seen = failure
				return nil
			}
		}),
		fakeDescriptor("tests", rec, func(m *fakeModule) {
			m.execute = func(context.Context, *fakeModule) error {
				return &module.SoftError{Err: errors.New("tests failed")}
			}
		}),
	)

	err := exec.Run(context.Background(), requests("notifier", "tests"))
	if err == nil {
		t.Fatal("Run() error = nil, want soft failure")
	}
	if !module.IsSoft(err) {
		t.Errorf("IsSoft(%v) = false, want true through the ModuleError chain", err)
	}

	if seen == nil {
		t.Fatal("Destroy received nil failure, want the soft failure")
	}
	if seen.Module != "tests" || !seen.Soft {
		t.Errorf("Failure = %+v, want module %q with Soft=true", seen, "tests")
	}
}

func TestRun_CleanShutdownPassesNilFailure(t *testing.T) {
	rec := &recorder{}
	sawFailure := false

	exec := newExecutor(t, 0,
		fakeDescriptor("a", rec, func(m *fakeModule) {
			m.destroy = func(_ context.Context, _ *fakeModule, failure *module.Failure) error {
				sawFailure = failure != nil
				return nil
			}
		}),
	)

	if err := exec.Run(context.Background(), requests("a")); err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if sawFailure {
		t.Error("Destroy received a failure on clean shutdown, want nil")
	}
}

func TestRun_TeardownErrorsNeverMaskTheOutcome(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")

	exec := newExecutor(t, 0,
		fakeDescriptor("a", rec, func(m *fakeModule) {
			m.destroy = func(context.Context, *fakeModule, *module.Failure) error {
				return errors.New("teardown hiccup")
			}
		}),
		fakeDescriptor("b", rec, func(m *fakeModule) {
			m.destroy = func(context.Context, *fakeModule, *module.Failure) error {
				panic("teardown panic")
			}
		}),
		fakeDescriptor("c", rec, func(m *fakeModule) {
			m.execute = func(context.Context, *fakeModule) error { return boom }
		}),
	)

	err := exec.Run(context.Background(), requests("a", "b", "c"))
	if !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want the original %v, never a teardown error", err, boom)
	}

	// Every teardown still ran despite the error and the panic in between.
	assertEvents(t, rec.events, []string{
		"configure a", "configure b", "configure c",
		"execute a", "execute b", "execute c",
		"destroy c", "destroy b", "destroy a",
	})
}

func TestRun_TeardownErrorOnSuccessStillSucceeds(t *testing.T) {
	rec := &recorder{}
	exec := newExecutor(t, 0,
		fakeDescriptor("a", rec, func(m *fakeModule) {
			m.destroy = func(context.Context, *fakeModule, *module.Failure) error {
				return errors.New("hiccup")
			}
		}),
	)

	if err := exec.Run(context.Background(), requests("a")); err != nil {
		t.Errorf("Run() error = %v, want nil; teardown errors are logged, not returned", err)
	}
}

func TestRun_SameModuleTwiceGetsTwoInstances(t *testing.T) {
	rec := &recorder{}
	instances := 0

	exec := newExecutor(t, 0,
		fakeDescriptor("echo", rec, func(m *fakeModule) {
			instances++
		}),
	)

	if err := exec.Run(context.Background(), requests("echo", "echo")); err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if instances != 2 {
		t.Errorf("factory produced %d instances, want 2", instances)
	}

	assertEvents(t, rec.events, []string{
		"configure echo", "configure echo",
		"execute echo", "execute echo",
		"destroy echo", "destroy echo",
	})
}

func TestRun_CancelledContextStopsBetweenModules(t *testing.T) {
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())

	exec := newExecutor(t, 0,
		fakeDescriptor("a", rec, func(m *fakeModule) {
			m.execute = func(context.Context, *fakeModule) error {
				cancel()
				return nil
			}
		}),
		fakeDescriptor("b", rec, nil),
	)

	err := exec.Run(ctx, requests("a", "b"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	// b must not execute, but both configured modules tear down.
	assertEvents(t, rec.events, []string{
		"configure a", "configure b",
		"execute a",
		"destroy b", "destroy a",
	})
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Loading, "loading"},
		{Configuring, "configuring"},
		{Running, "running"},
		{TearingDown, "tearing-down"},
		{Done, "done"},
		{Retrying, "retrying"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
