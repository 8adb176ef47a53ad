// Package control implements the feedback laws closing the loop between
// observed signals and manipulated variables.
package control

import (
	"otsim/internal/model"
	"otsim/internal/plant"
)

// PID is a proportional-integral-derivative controller with output
// saturation and anti-windup. Each instance owns its accumulated state;
// a model may run several independent PIDs.
type PID struct {
	Kp, Ki, Kd float64
	Setpoint   float64
	OutputMin  float64
	OutputMax  float64

	// Controlled names the observed signal driving the error; Manipulated
	// names the control input receiving the output.
	Controlled  string
	Manipulated string

	integral float64
	prevErr  float64
}

// NewPID builds a controller from its model configuration.
func NewPID(cfg model.ControllerConfig) *PID {
	return &PID{
		Kp:          cfg.Kp,
		Ki:          cfg.Ki,
		Kd:          cfg.Kd,
		Setpoint:    cfg.Setpoint,
		OutputMin:   cfg.OutputMin,
		OutputMax:   cfg.OutputMax,
		Controlled:  cfg.ControlledVariable,
		Manipulated: cfg.ManipulatedVariable,
	}
}

// Compute returns the manipulated variable for one step. The controller
// only ever sees the observed signal view. Integral accumulation is skipped
// while the un-clamped output saturates.
func (p *PID) Compute(observed plant.State, dt float64) map[string]float64 {
	err := p.Setpoint - observed[p.Controlled]

	p.integral += err * dt

	derivative := 0.0
	if dt > 0 {
		derivative = (err - p.prevErr) / dt
	}

	u := p.Kp*err + p.Ki*p.integral + p.Kd*derivative

	clamped := u
	if clamped < p.OutputMin {
		clamped = p.OutputMin
	} else if clamped > p.OutputMax {
		clamped = p.OutputMax
	}
	if clamped != u {
		// Saturated: undo this step's integral contribution.
		p.integral -= err * dt
	}

	p.prevErr = err

	return map[string]float64{p.Manipulated: clamped}
}

// Reset clears the integral and derivative memory.
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
}

// SetSetpoint retargets the controller mid-run.
func (p *PID) SetSetpoint(sp float64) {
	p.Setpoint = sp
}
