package solver

import "otsim/internal/plant"

// RK4 is the classical 4th-order Runge-Kutta method. Four derivative
// evaluations per step, local truncation error O(dt^5). Preferred over
// Euler for control loops with fast valve dynamics.
type RK4 struct{}

func (r *RK4) Step(f Deriv, x plant.State, u map[string]float64, t, dt float64) (plant.State, error) {
	k1 := f(t, x, u)
	if err := checkFinite(k1, t); err != nil {
		return nil, err
	}

	k2 := f(t+dt/2, shifted(x, k1, dt/2), u)
	if err := checkFinite(k2, t); err != nil {
		return nil, err
	}

	k3 := f(t+dt/2, shifted(x, k2, dt/2), u)
	if err := checkFinite(k3, t); err != nil {
		return nil, err
	}

	k4 := f(t+dt, shifted(x, k3, dt), u)
	if err := checkFinite(k4, t); err != nil {
		return nil, err
	}

	next := make(plant.State, len(x))
	dt6 := dt / 6.0
	for k, v := range x {
		next[k] = v + dt6*(k1[k]+2*k2[k]+2*k3[k]+k4[k])
	}
	if err := checkFinite(next, t); err != nil {
		return nil, err
	}
	return next, nil
}

// shifted returns x + h*dx without mutating x.
func shifted(x, dx plant.State, h float64) plant.State {
	s := make(plant.State, len(x))
	for k, v := range x {
		s[k] = v + h*dx[k]
	}
	return s
}
