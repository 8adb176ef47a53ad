// Package metrics exposes run counters for Prometheus scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Set bundles the collectors for one simulation run.
type Set struct {
	StepsTotal        prometheus.Counter
	FramesDropped     prometheus.Counter
	AttacksRegistered prometheus.Counter
	SimTime           prometheus.Gauge
	AttacksActive     prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a Set backed by its own registry, so parallel runs never
// collide on collector names.
func New() *Set {
	s := &Set{
		StepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "otsim_steps_total",
			Help: "Simulation steps executed.",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "otsim_telemetry_frames_dropped_total",
			Help: "Telemetry frames dropped due to slow subscribers.",
		}),
		AttacksRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "otsim_attacks_registered_total",
			Help: "Attacks accepted by the registry.",
		}),
		SimTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "otsim_sim_time_seconds",
			Help: "Current simulation time.",
		}),
		AttacksActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "otsim_attacks_active",
			Help: "Attacks currently in the active window.",
		}),
		registry: prometheus.NewRegistry(),
	}
	s.registry.MustRegister(s.StepsTotal, s.FramesDropped, s.AttacksRegistered, s.SimTime, s.AttacksActive)
	return s
}

// Gatherer returns the registry for HTTP exposition.
func (s *Set) Gatherer() prometheus.Gatherer {
	return s.registry
}
