// Package solver advances named-state maps over a fixed step using Euler
// or 4th-order Runge-Kutta integration.
package solver

import (
	"fmt"

	"otsim/internal/plant"
)

// Deriv computes the state derivative at time t under control u.
type Deriv func(t float64, x plant.State, u map[string]float64) plant.State

// Stepper advances a state vector one fixed step.
type Stepper interface {
	Step(f Deriv, x plant.State, u map[string]float64, t, dt float64) (plant.State, error)
}

// DivergedError reports a non-finite state entry. It is fatal to the run.
type DivergedError struct {
	Variable string
	T        float64
}

func (e *DivergedError) Error() string {
	return fmt.Sprintf("solver: state variable %q diverged (NaN/Inf) at t=%.4f", e.Variable, e.T)
}

// New returns the stepper for a solver method name.
func New(method string) (Stepper, error) {
	switch method {
	case "euler":
		return &Euler{}, nil
	case "rk4":
		return &RK4{}, nil
	default:
		return nil, fmt.Errorf("unknown solver method %q", method)
	}
}

// checkFinite returns a DivergedError when x has a non-finite entry.
func checkFinite(x plant.State, t float64) error {
	if name, bad := x.FirstInvalid(); bad {
		return &DivergedError{Variable: name, T: t}
	}
	return nil
}
