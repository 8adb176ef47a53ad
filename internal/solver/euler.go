package solver

import "otsim/internal/plant"

// Euler is the explicit first-order method: x' = x + dt*f(t, x, u).
// One derivative evaluation per step, local truncation error O(dt^2).
type Euler struct{}

func (e *Euler) Step(f Deriv, x plant.State, u map[string]float64, t, dt float64) (plant.State, error) {
	dx := f(t, x, u)
	if err := checkFinite(dx, t); err != nil {
		return nil, err
	}
	next := make(plant.State, len(x))
	for k, v := range x {
		next[k] = v + dt*dx[k]
	}
	if err := checkFinite(next, t); err != nil {
		return nil, err
	}
	return next, nil
}
