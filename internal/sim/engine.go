// Package sim orchestrates one simulation run: the step pipeline, the run
// state machine, attack life-cycle advancement, and telemetry emission.
package sim

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"otsim/internal/attack"
	"otsim/internal/control"
	"otsim/internal/metrics"
	"otsim/internal/model"
	"otsim/internal/plant"
	"otsim/internal/solver"
	"otsim/internal/telemetry"
)

// RunState is the engine life-cycle state.
type RunState string

const (
	StateCreated   RunState = "created"
	StateRunning   RunState = "running"
	StatePaused    RunState = "paused"
	StateCompleted RunState = "completed"
	StateStopped   RunState = "stopped"
	StateFailed    RunState = "failed"
)

// Terminal reports whether s admits no further transitions.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateStopped || s == StateFailed
}

type command int

const (
	cmdPause command = iota
	cmdResume
	cmdStop
)

// Options tune a run beyond what the model specifies.
type Options struct {
	// Seed drives the random_noise attack transform. Zero means seed from
	// the wall clock.
	Seed int64
	// Tick paces the loop in wall time; zero runs flat out.
	Tick time.Duration
	// TelemetryBuffer is the per-subscriber frame buffer size.
	TelemetryBuffer int
	Logger          *slog.Logger
	Metrics         *metrics.Set
}

// Engine advances one model under closed-loop control while the attack
// registry tampers with the observed signal view. A single goroutine owns
// the run for its lifetime; all shared access goes through the registry's
// and hub's own locks.
type Engine struct {
	log         *slog.Logger
	model       *model.Model
	comps       map[string]plant.Component
	order       []string
	stepper     solver.Stepper
	controllers []*control.PID
	registry    *attack.Registry
	met         *metrics.Set
	hub         *Hub
	tick        time.Duration

	cmds chan command

	mu    sync.Mutex
	state RunState
	x     plant.State
	step  int
	t     float64
	err   error
}

// New builds an engine for m. The model must already be validated; New
// still fails on inconsistencies such as an unknown component kind.
func New(m *model.Model, opts Options) (*Engine, error) {
	comps, order, err := m.BuildComponents()
	if err != nil {
		return nil, err
	}
	stepper, err := solver.New(m.Solver.Method)
	if err != nil {
		return nil, &model.ConfigurationError{Reason: err.Error()}
	}
	signals, err := m.SignalSet()
	if err != nil {
		return nil, err
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	met := opts.Metrics
	if met == nil {
		met = metrics.New()
	}

	e := &Engine{
		log:      log.With("model", m.Name),
		model:    m,
		comps:    comps,
		order:    order,
		stepper:  stepper,
		registry: attack.NewRegistry(signals, m.Solver.Dt, seed),
		met:      met,
		tick:     opts.Tick,
		cmds:     make(chan command, 16),
		state:    StateCreated,
	}
	e.hub = NewHub(opts.TelemetryBuffer, met.FramesDropped.Inc)

	for _, cc := range m.AllControllers() {
		e.controllers = append(e.controllers, control.NewPID(cc))
	}

	// Merge every component's initial sub-state into the global state map.
	e.x = plant.State{}
	for _, cs := range m.Components {
		e.x.Merge(cs.ID, comps[cs.ID].InitialState(cs.InitialState))
	}

	return e, nil
}

// Registry exposes the attack registry for the management interface.
func (e *Engine) Registry() *attack.Registry { return e.registry }

// RegisterAttack schedules an attack, counting accepted registrations.
func (e *Engine) RegisterAttack(req attack.Request) (attack.Spec, error) {
	spec, err := e.registry.Register(req)
	if err != nil {
		return attack.Spec{}, err
	}
	e.met.AttacksRegistered.Inc()
	e.log.Info("attack registered",
		"attack_id", spec.ID, "kind", spec.Kind,
		"target", spec.TargetSignal, "start_time", spec.StartTime)
	return spec, nil
}

// RemoveAttack deletes an attack that is still armed.
func (e *Engine) RemoveAttack(id string) error { return e.registry.Remove(id) }

// Attacks returns the current attack set.
func (e *Engine) Attacks() []attack.Info { return e.registry.Snapshot() }

// Metrics exposes the run's collectors.
func (e *Engine) Metrics() *metrics.Set { return e.met }

// Subscribe attaches a telemetry consumer.
func (e *Engine) Subscribe() (<-chan telemetry.Frame, func()) { return e.hub.Subscribe() }

// LatestFrame returns the most recent telemetry snapshot.
func (e *Engine) LatestFrame() (telemetry.Frame, bool) { return e.hub.Latest() }

// State returns the current run state.
func (e *Engine) State() RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Time returns the current simulation time.
func (e *Engine) Time() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.t
}

// Progress returns completion in [0, 1].
func (e *Engine) Progress() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.t / e.model.Solver.MaxDuration
	if p > 1 {
		p = 1
	}
	return p
}

// Err returns the fatal error of a failed run, nil otherwise.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Pause suspends step evaluation at the next step boundary. Registry
// mutations stay permitted while paused.
func (e *Engine) Pause() { e.send(cmdPause) }

// Resume continues a paused run.
func (e *Engine) Resume() { e.send(cmdResume) }

// Stop moves any non-terminal run to Stopped. Irreversible.
func (e *Engine) Stop() { e.send(cmdStop) }

func (e *Engine) send(c command) {
	select {
	case e.cmds <- c:
	default:
		// Command buffer full; the loop is about to drain it anyway and a
		// stuck loop must never block its callers.
	}
}

func (e *Engine) setState(s RunState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Run drives the loop until the run reaches a terminal state or ctx is
// canceled (treated as stop). It blocks; callers wanting asynchrony start
// it in a goroutine.
func (e *Engine) Run(ctx context.Context) RunState {
	e.setState(StateRunning)
	e.log.Info("run started",
		"method", e.model.Solver.Method,
		"dt", e.model.Solver.Dt,
		"max_duration", e.model.Solver.MaxDuration)

	var ticker *time.Ticker
	if e.tick > 0 {
		ticker = time.NewTicker(e.tick)
		defer ticker.Stop()
	}
	defer e.hub.Close()

	for {
		if done := e.drainCommands(ctx); done {
			return e.finish(StateStopped)
		}

		e.mu.Lock()
		paused := e.state == StatePaused
		e.mu.Unlock()
		if paused {
			// Non-busy wait; the registry remains open for mutations.
			select {
			case c := <-e.cmds:
				if stop := e.apply(c); stop {
					return e.finish(StateStopped)
				}
			case <-ctx.Done():
				return e.finish(StateStopped)
			}
			continue
		}

		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return e.finish(StateStopped)
			}
		}

		if err := e.doStep(); err != nil {
			e.mu.Lock()
			e.err = err
			e.mu.Unlock()
			e.log.Error("run failed", "err", err, "t", e.t)
			return e.finish(StateFailed)
		}

		e.mu.Lock()
		done := e.t >= e.model.Solver.MaxDuration
		e.mu.Unlock()
		if done {
			e.log.Info("run completed", "t", e.t, "steps", e.step)
			return e.finish(StateCompleted)
		}
	}
}

// drainCommands applies all pending commands; reports whether a stop was
// seen. Checked at the top of every step so a stop is observed at the next
// step boundary at the latest.
func (e *Engine) drainCommands(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
	}
	for {
		select {
		case c := <-e.cmds:
			if stop := e.apply(c); stop {
				return true
			}
		default:
			return false
		}
	}
}

func (e *Engine) apply(c command) (stop bool) {
	switch c {
	case cmdPause:
		e.mu.Lock()
		if e.state == StateRunning {
			e.state = StatePaused
			e.log.Info("run paused", "t", e.t)
		}
		e.mu.Unlock()
	case cmdResume:
		e.mu.Lock()
		if e.state == StatePaused {
			e.state = StateRunning
			e.log.Info("run resumed", "t", e.t)
		}
		e.mu.Unlock()
	case cmdStop:
		return true
	}
	return false
}

func (e *Engine) finish(s RunState) RunState {
	e.setState(s)
	if s == StateStopped {
		e.log.Info("run stopped", "t", e.Time())
	}
	return s
}

// doStep executes one step of the pipeline:
//
//  1. compute real signals from true state
//  2. inject attacks, advancing their life-cycle
//  3. compute control from the observed view only
//  4. integrate the true dynamics under that control
//  5. emit the telemetry frame
//  6. advance time
//
// The controller never sees real signals; the physics never sees tampered
// values except through the control output itself. On a solver error no
// frame is emitted and the last-known-good state is kept for inspection.
func (e *Engine) doStep() error {
	dt := e.model.Solver.Dt

	e.mu.Lock()
	t := e.t
	x := e.x
	e.mu.Unlock()

	realSignals := e.signals(x)
	observed := e.registry.Inject(t, realSignals)

	controlOut := make(map[string]float64)
	for _, pid := range e.controllers {
		for k, v := range pid.Compute(observed, dt) {
			controlOut[k] = v
		}
	}

	// Control inputs for the dynamics: the manipulated variables plus each
	// connection's gain-scaled copy of its source signal.
	inputs := make(map[string]float64, len(controlOut)+len(e.model.Connections))
	for k, v := range controlOut {
		inputs[k] = v
	}
	for _, conn := range e.model.Connections {
		inputs[conn.To] = conn.GainValue() * realSignals[conn.From]
	}

	next, err := e.stepper.Step(e.derivatives, x, inputs, t, dt)
	if err != nil {
		return err
	}

	frame := telemetry.Frame{
		T:        t,
		Real:     realSignals,
		Observed: observed,
		Control:  controlOut,
		Attacks:  e.registry.Snapshot(),
	}
	e.hub.Publish(frame)

	e.mu.Lock()
	e.x = next
	e.step++
	e.t = float64(e.step) * dt
	e.mu.Unlock()

	e.met.StepsTotal.Inc()
	e.met.SimTime.Set(e.Time())
	e.met.AttacksActive.Set(float64(e.registry.ActiveCount()))
	return nil
}

// signals merges every component's observable signals, qualified by id.
func (e *Engine) signals(x plant.State) plant.State {
	out := plant.State{}
	for _, id := range e.order {
		out.Merge(id, e.comps[id].Signals(x))
	}
	return out
}

// derivatives merges every component's state derivatives, qualified by id.
func (e *Engine) derivatives(t float64, x plant.State, u map[string]float64) plant.State {
	dx := plant.State{}
	for _, id := range e.order {
		dx.Merge(id, e.comps[id].Derivatives(t, x, u))
	}
	return dx
}
