// Package telemetry defines the per-step snapshot emitted by the simulation
// loop and the writers delivering it to external consumers.
package telemetry

import (
	"otsim/internal/attack"
	"otsim/internal/plant"
)

// Frame is one per-step telemetry snapshot. Real and Observed are always
// self-consistent: both were taken at the same simulation time T.
type Frame struct {
	T        float64            `json:"t"`
	Real     plant.State        `json:"real"`
	Observed plant.State        `json:"observed"`
	Control  map[string]float64 `json:"control"`
	Attacks  []attack.Info      `json:"attacks"`
}

// Writer is an output sink for telemetry frames.
type Writer interface {
	Write(Frame) error
}
