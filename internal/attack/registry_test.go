package attack

import (
	"errors"
	"math"
	"testing"

	"otsim/internal/plant"
)

func ptr(v float64) *float64 { return &v }

func testSignals() map[string]struct{} {
	return map[string]struct{}{
		"tank1.level_sensor": {},
		"tank1.flow_in":      {},
	}
}

func newTestRegistry() *Registry {
	return NewRegistry(testSignals(), 1.0, 1)
}

func TestRegisterValidation(t *testing.T) {
	r := newTestRegistry()

	cases := []struct {
		name string
		req  Request
	}{
		{"unknown signal", Request{Kind: KindDoS, TargetSignal: "tank1.pressure", StartTime: 0}},
		{"negative start", Request{Kind: KindDoS, TargetSignal: "tank1.level_sensor", StartTime: -1}},
		{"zero duration", Request{Kind: KindDoS, TargetSignal: "tank1.level_sensor", Duration: ptr(0)}},
		{"fdi missing value", Request{Kind: KindFalseData, TargetSignal: "tank1.level_sensor"}},
		{"replay empty buffer", Request{Kind: KindReplay, TargetSignal: "tank1.level_sensor"}},
		{"ramp missing rate", Request{Kind: KindRamp, TargetSignal: "tank1.level_sensor"}},
		{"noise missing std", Request{Kind: KindNoise, TargetSignal: "tank1.level_sensor"}},
		{"noise negative std", Request{Kind: KindNoise, TargetSignal: "tank1.level_sensor",
			Parameters: Parameters{NoiseStd: ptr(-0.1)}}},
		{"unsupported kind", Request{Kind: "mitm", TargetSignal: "tank1.level_sensor"}},
	}
	for _, tc := range cases {
		_, err := r.Register(tc.req)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: expected ValidationError, got %v", tc.name, err)
		}
	}
	if got := len(r.Snapshot()); got != 0 {
		t.Errorf("failed registrations must register nothing, have %d", got)
	}
}

func TestRegisterAssignsIDAndArmed(t *testing.T) {
	r := newTestRegistry()

	spec, err := r.Register(Request{
		Kind: KindDoS, TargetSignal: "tank1.level_sensor", StartTime: 5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if spec.ID == "" {
		t.Error("expected a generated attack_id")
	}
	if spec.Status != StatusArmed {
		t.Errorf("status = %s, want armed", spec.Status)
	}

	_, err = r.Register(Request{
		AttackID: spec.ID, Kind: KindDoS, TargetSignal: "tank1.level_sensor",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("duplicate id: expected ValidationError, got %v", err)
	}
}

func TestLifecycleWindow(t *testing.T) {
	r := newTestRegistry()
	spec, err := r.Register(Request{
		Kind: KindDoS, TargetSignal: "tank1.level_sensor",
		StartTime: 10, Duration: ptr(20),
	})
	if err != nil {
		t.Fatal(err)
	}

	real := plant.State{"tank1.level_sensor": 5.0}
	steps := []struct {
		t    float64
		want Status
	}{
		{0, StatusArmed}, {9.99, StatusArmed},
		{10, StatusActive}, {20, StatusActive}, {29.99, StatusActive},
		{30, StatusCompleted}, {100, StatusCompleted},
	}
	for _, s := range steps {
		r.Inject(s.t, real)
		got, _ := r.Get(spec.ID)
		if got.Status != s.want {
			t.Errorf("t=%g: status = %s, want %s", s.t, got.Status, s.want)
		}
	}
}

func TestStatusNeverRegresses(t *testing.T) {
	r := newTestRegistry()
	spec, _ := r.Register(Request{
		Kind: KindDoS, TargetSignal: "tank1.level_sensor",
		StartTime: 10, Duration: ptr(20),
	})

	real := plant.State{"tank1.level_sensor": 5.0}
	r.Inject(50, real) // completed
	r.Inject(15, real) // inside the window, but completed is terminal

	got, _ := r.Get(spec.ID)
	if got.Status != StatusCompleted {
		t.Errorf("status regressed to %s", got.Status)
	}
}

func TestDoSTransform(t *testing.T) {
	r := newTestRegistry()
	r.Register(Request{Kind: KindDoS, TargetSignal: "tank1.level_sensor", StartTime: 0})

	obs := r.Inject(1, plant.State{"tank1.level_sensor": 5.0, "tank1.flow_in": 2.0})
	if obs["tank1.level_sensor"] != 0 {
		t.Errorf("dos default observed = %g, want 0", obs["tank1.level_sensor"])
	}
	if obs["tank1.flow_in"] != 2.0 {
		t.Errorf("untargeted signal changed: %g", obs["tank1.flow_in"])
	}

	r2 := newTestRegistry()
	r2.Register(Request{
		Kind: KindDoS, TargetSignal: "tank1.level_sensor", StartTime: 0,
		Parameters: Parameters{BlockedValue: ptr(-1.5)},
	})
	obs = r2.Inject(1, plant.State{"tank1.level_sensor": 5.0})
	if obs["tank1.level_sensor"] != -1.5 {
		t.Errorf("dos blocked_value observed = %g, want -1.5", obs["tank1.level_sensor"])
	}
}

func TestFalseDataTransform(t *testing.T) {
	r := newTestRegistry()
	r.Register(Request{
		Kind: KindFalseData, TargetSignal: "tank1.level_sensor", StartTime: 0,
		Parameters: Parameters{FalseValue: ptr(8.5)},
	})

	obs := r.Inject(0, plant.State{"tank1.level_sensor": 5.0})
	if obs["tank1.level_sensor"] != 8.5 {
		t.Errorf("observed = %g, want 8.5", obs["tank1.level_sensor"])
	}
}

func TestReplayCyclesBuffer(t *testing.T) {
	r := newTestRegistry() // dt = 1
	r.Register(Request{
		Kind: KindReplay, TargetSignal: "tank1.level_sensor", StartTime: 2,
		Parameters: Parameters{ReplayBuffer: []float64{0.5, 0.52, 0.48}},
	})

	real := plant.State{"tank1.level_sensor": 99.0}
	want := []float64{0.5, 0.52, 0.48, 0.5, 0.52}
	for i, w := range want {
		obs := r.Inject(2+float64(i), real)
		if obs["tank1.level_sensor"] != w {
			t.Errorf("step %d: observed = %g, want %g", i, obs["tank1.level_sensor"], w)
		}
	}
}

func TestRampTransform(t *testing.T) {
	r := newTestRegistry()
	r.Register(Request{
		Kind: KindRamp, TargetSignal: "tank1.level_sensor", StartTime: 10, Duration: ptr(20),
		Parameters: Parameters{Rate: ptr(0.1)},
	})

	// Before the window: untouched.
	obs := r.Inject(5, plant.State{"tank1.level_sensor": 4.0})
	if obs["tank1.level_sensor"] != 4.0 {
		t.Errorf("pre-window observed = %g, want 4", obs["tank1.level_sensor"])
	}

	// Inside: offset grows with elapsed time.
	obs = r.Inject(15, plant.State{"tank1.level_sensor": 4.0})
	want := 4.0 + 0.1*5
	if math.Abs(obs["tank1.level_sensor"]-want) > 1e-12 {
		t.Errorf("t=15 observed = %g, want %g", obs["tank1.level_sensor"], want)
	}

	// After: untouched again.
	obs = r.Inject(30, plant.State{"tank1.level_sensor": 4.0})
	if obs["tank1.level_sensor"] != 4.0 {
		t.Errorf("post-window observed = %g, want 4", obs["tank1.level_sensor"])
	}
}

func TestNoiseTransform(t *testing.T) {
	r := newTestRegistry()
	r.Register(Request{
		Kind: KindNoise, TargetSignal: "tank1.level_sensor", StartTime: 0,
		Parameters: Parameters{NoiseStd: ptr(0.0)},
	})
	// Zero std: the transform is the identity.
	obs := r.Inject(0, plant.State{"tank1.level_sensor": 5.0})
	if obs["tank1.level_sensor"] != 5.0 {
		t.Errorf("zero-std noise changed the signal: %g", obs["tank1.level_sensor"])
	}

	r2 := newTestRegistry()
	r2.Register(Request{
		Kind: KindNoise, TargetSignal: "tank1.level_sensor", StartTime: 0,
		Parameters: Parameters{NoiseStd: ptr(1.0)},
	})
	// Seeded rng: some step must differ from the real value.
	changed := false
	for i := 0; i < 10; i++ {
		obs := r2.Inject(float64(i), plant.State{"tank1.level_sensor": 5.0})
		if obs["tank1.level_sensor"] != 5.0 {
			changed = true
		}
	}
	if !changed {
		t.Error("noise with std=1 never changed the signal")
	}
}

func TestLastRegisteredWins(t *testing.T) {
	r := newTestRegistry()
	r.Register(Request{
		Kind: KindFalseData, TargetSignal: "tank1.level_sensor", StartTime: 0,
		Parameters: Parameters{FalseValue: ptr(1.0)},
	})
	r.Register(Request{
		Kind: KindFalseData, TargetSignal: "tank1.level_sensor", StartTime: 0,
		Parameters: Parameters{FalseValue: ptr(2.0)},
	})

	obs := r.Inject(0, plant.State{"tank1.level_sensor": 5.0})
	if obs["tank1.level_sensor"] != 2.0 {
		t.Errorf("observed = %g, want the later registration's 2.0", obs["tank1.level_sensor"])
	}
}

func TestRemoveOnlyWhileArmed(t *testing.T) {
	r := newTestRegistry()
	spec, _ := r.Register(Request{
		Kind: KindDoS, TargetSignal: "tank1.level_sensor", StartTime: 10,
	})

	real := plant.State{"tank1.level_sensor": 5.0}
	r.Inject(0, real) // still armed

	if err := r.Remove(spec.ID); err != nil {
		t.Fatalf("removing an armed attack: %v", err)
	}
	// It never fires after removal.
	obs := r.Inject(20, real)
	if obs["tank1.level_sensor"] != 5.0 {
		t.Error("removed attack still transformed the signal")
	}

	spec2, _ := r.Register(Request{
		Kind: KindDoS, TargetSignal: "tank1.level_sensor", StartTime: 0,
	})
	r.Inject(1, real) // now active

	err := r.Remove(spec2.ID)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("removing an active attack: expected ValidationError, got %v", err)
	}

	if err := r.Remove("no-such-id"); err == nil {
		t.Error("removing an unknown id should fail")
	}
}

func TestSnapshotAndActiveCount(t *testing.T) {
	r := newTestRegistry()
	r.Register(Request{Kind: KindDoS, TargetSignal: "tank1.level_sensor", StartTime: 0})
	r.Register(Request{Kind: KindDoS, TargetSignal: "tank1.flow_in", StartTime: 100})

	r.Inject(1, plant.State{"tank1.level_sensor": 5.0, "tank1.flow_in": 2.0})

	infos := r.Snapshot()
	if len(infos) != 2 {
		t.Fatalf("snapshot has %d entries, want 2", len(infos))
	}
	if infos[0].Status != StatusActive || infos[1].Status != StatusArmed {
		t.Errorf("statuses = %s/%s, want active/armed", infos[0].Status, infos[1].Status)
	}
	if r.ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d, want 1", r.ActiveCount())
	}
}
