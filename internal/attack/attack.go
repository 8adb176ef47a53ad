// Package attack holds the registry of scheduled signal attacks and the
// injection transform turning a real-signal snapshot into the observed view
// the controller sees.
package attack

import (
	"fmt"
)

// Kind identifies the attack transform.
type Kind string

const (
	KindDoS       Kind = "dos"
	KindFalseData Kind = "false_data_injection"
	KindReplay    Kind = "replay"
	KindRamp      Kind = "ramp"
	KindNoise     Kind = "random_noise"
)

// Status is the attack life-cycle state. Transitions are one-way:
// armed -> active -> completed, driven purely by simulation time relative
// to the attack window [start_time, start_time+duration).
type Status string

const (
	StatusArmed     Status = "armed"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Parameters carries the kind-specific attack settings. Pointer fields
// distinguish "absent" from zero during validation.
type Parameters struct {
	BlockedValue *float64  `json:"blocked_value,omitempty"`
	FalseValue   *float64  `json:"false_value,omitempty"`
	ReplayBuffer []float64 `json:"replay_buffer,omitempty"`
	Rate         *float64  `json:"rate,omitempty"`
	NoiseStd     *float64  `json:"noise_std,omitempty"`
}

// Request is one registration as consumed from the management interface.
type Request struct {
	AttackID     string     `json:"attack_id,omitempty"`
	Kind         Kind       `json:"kind"`
	TargetSignal string     `json:"target_signal"`
	StartTime    float64    `json:"start_time"`
	Duration     *float64   `json:"duration,omitempty"`
	Parameters   Parameters `json:"parameters"`
}

// Spec is one registered attack. Status is the only field mutated after
// registration, and only under the registry lock.
type Spec struct {
	ID           string     `json:"attack_id"`
	Kind         Kind       `json:"kind"`
	TargetSignal string     `json:"target_signal"`
	StartTime    float64    `json:"start_time"`
	Duration     *float64   `json:"duration,omitempty"`
	Parameters   Parameters `json:"parameters"`
	Status       Status     `json:"status"`
}

// Info is the per-frame attack summary carried in telemetry.
type Info struct {
	AttackID     string `json:"attack_id"`
	Kind         Kind   `json:"kind"`
	Status       Status `json:"status"`
	TargetSignal string `json:"target_signal"`
}

// ValidationError rejects a bad registration or removal. It is local to the
// management call; the run is unaffected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "attack validation: " + e.Reason
}

func validationErrf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
