package attack

import (
	"math"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"otsim/internal/plant"
)

// Registry owns the attack set for one run. It is shared by reference
// between the simulation loop (Inject) and the management interface
// (Register, Remove, Snapshot); a single mutex serializes every access.
// The lock is only ever held across a registry operation, never across a
// full simulation step or any I/O.
type Registry struct {
	mu      sync.Mutex
	specs   []*Spec // registration order; later entries win on a shared signal
	byID    map[string]*Spec
	signals map[string]struct{}
	dt      float64
	rng     *rand.Rand
}

// NewRegistry builds a registry bound to the model's producible signal set
// and solver step. The seed makes random_noise reproducible.
func NewRegistry(signals map[string]struct{}, dt float64, seed int64) *Registry {
	return &Registry{
		byID:    make(map[string]*Spec),
		signals: signals,
		dt:      dt,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Register validates req and schedules the attack in armed state. On
// validation failure nothing is registered. An empty AttackID gets a
// generated UUID.
func (r *Registry) Register(req Request) (Spec, error) {
	if _, ok := r.signals[req.TargetSignal]; !ok {
		return Spec{}, validationErrf("target signal %q is not produced by the model", req.TargetSignal)
	}
	if req.StartTime < 0 {
		return Spec{}, validationErrf("start_time must be >= 0, got %g", req.StartTime)
	}
	if req.Duration != nil && *req.Duration <= 0 {
		return Spec{}, validationErrf("duration must be > 0 when present, got %g", *req.Duration)
	}
	if err := validateParams(req.Kind, req.Parameters); err != nil {
		return Spec{}, err
	}

	id := req.AttackID
	if id == "" {
		id = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byID[id]; dup {
		return Spec{}, validationErrf("duplicate attack_id %q", id)
	}

	spec := &Spec{
		ID:           id,
		Kind:         req.Kind,
		TargetSignal: req.TargetSignal,
		StartTime:    req.StartTime,
		Duration:     req.Duration,
		Parameters:   req.Parameters,
		Status:       StatusArmed,
	}
	r.specs = append(r.specs, spec)
	r.byID[id] = spec
	return *spec, nil
}

func validateParams(kind Kind, p Parameters) error {
	switch kind {
	case KindDoS:
		// blocked_value is optional and defaults to 0.
		return nil
	case KindFalseData:
		if p.FalseValue == nil {
			return validationErrf("false_data_injection requires parameter false_value")
		}
		return nil
	case KindReplay:
		if len(p.ReplayBuffer) == 0 {
			return validationErrf("replay requires a non-empty replay_buffer")
		}
		return nil
	case KindRamp:
		if p.Rate == nil {
			return validationErrf("ramp requires parameter rate")
		}
		return nil
	case KindNoise:
		if p.NoiseStd == nil {
			return validationErrf("random_noise requires parameter noise_std")
		}
		if *p.NoiseStd < 0 {
			return validationErrf("noise_std must be >= 0, got %g", *p.NoiseStd)
		}
		return nil
	default:
		return validationErrf("unsupported attack kind %q", kind)
	}
}

// Remove deletes an attack that has not yet fired. Removal of an active or
// completed attack is rejected; those remain for forensic inspection.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	spec, ok := r.byID[id]
	if !ok {
		return validationErrf("unknown attack_id %q", id)
	}
	if spec.Status != StatusArmed {
		return validationErrf("attack %q is %s; only armed attacks can be removed", id, spec.Status)
	}

	delete(r.byID, id)
	for i, s := range r.specs {
		if s == spec {
			r.specs = append(r.specs[:i], r.specs[i+1:]...)
			break
		}
	}
	return nil
}

// Inject transforms the real-signal snapshot into the observed view at time
// t, advancing each spec's life-cycle as a side effect. Only active attacks
// transform their target; when several active attacks share a signal the
// latest registration wins (applied last).
func (r *Registry) Inject(t float64, real plant.State) plant.State {
	observed := real.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, spec := range r.specs {
		r.advance(spec, t)
		if spec.Status != StatusActive {
			continue
		}
		v, ok := observed[spec.TargetSignal]
		if !ok {
			continue
		}
		observed[spec.TargetSignal] = r.transform(spec, t, v)
	}
	return observed
}

// advance applies the one-way armed -> active -> completed transitions.
func (r *Registry) advance(spec *Spec, t float64) {
	switch spec.Status {
	case StatusArmed:
		if t >= spec.StartTime {
			spec.Status = StatusActive
		} else {
			return
		}
	case StatusCompleted:
		return
	}
	if spec.Status == StatusActive && spec.Duration != nil && t >= spec.StartTime+*spec.Duration {
		spec.Status = StatusCompleted
	}
}

func (r *Registry) transform(spec *Spec, t, v float64) float64 {
	elapsed := t - spec.StartTime
	p := spec.Parameters

	switch spec.Kind {
	case KindDoS:
		if p.BlockedValue != nil {
			return *p.BlockedValue
		}
		return 0
	case KindFalseData:
		return *p.FalseValue
	case KindReplay:
		// Small epsilon guards against dt accumulation landing just
		// below a step boundary.
		idx := int(math.Floor(elapsed/r.dt+1e-9)) % len(p.ReplayBuffer)
		return p.ReplayBuffer[idx]
	case KindRamp:
		return v + *p.Rate*elapsed
	case KindNoise:
		return v + r.rng.NormFloat64()**p.NoiseStd
	default:
		return v
	}
}

// Snapshot returns the current attack set in registration order.
func (r *Registry) Snapshot() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]Info, 0, len(r.specs))
	for _, s := range r.specs {
		infos = append(infos, Info{
			AttackID:     s.ID,
			Kind:         s.Kind,
			Status:       s.Status,
			TargetSignal: s.TargetSignal,
		})
	}
	return infos
}

// ActiveCount reports how many attacks are currently active.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, s := range r.specs {
		if s.Status == StatusActive {
			n++
		}
	}
	return n
}

// Get returns a copy of one spec.
func (r *Registry) Get(id string) (Spec, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	if !ok {
		return Spec{}, false
	}
	return *s, true
}
