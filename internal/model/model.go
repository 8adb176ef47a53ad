// Package model defines the static simulation model and its fail-fast JSON
// loader. A Model is validated completely at load time and is immutable once
// a run starts.
package model

import (
	"fmt"

	"otsim/internal/plant"
)

// ConfigurationError reports a malformed or inconsistent model. It is fatal
// at model-load, before any run starts.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "model configuration: " + e.Reason
}

func configErrf(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// SolverConfig selects the integration scheme for a run.
type SolverConfig struct {
	Method      string  `json:"method" yaml:"method" validate:"required,oneof=euler rk4"`
	Dt          float64 `json:"dt" yaml:"dt" validate:"required,gt=0"`
	MaxDuration float64 `json:"max_duration" yaml:"max_duration" validate:"required,gt=0"`
}

// ComponentSpec describes one physical component instance.
type ComponentSpec struct {
	ID           string             `json:"id" validate:"required"`
	Kind         string             `json:"kind" validate:"required"`
	Params       map[string]float64 `json:"params"`
	InitialState map[string]float64 `json:"initial_state"`
}

// Connection copies gain * source signal into a destination input each step.
// Gain defaults to 1 when omitted.
type Connection struct {
	From string   `json:"from" validate:"required"`
	To   string   `json:"to" validate:"required"`
	Gain *float64 `json:"gain"`
}

// GainValue returns the connection gain, defaulting to 1.
func (c Connection) GainValue() float64 {
	if c.Gain == nil {
		return 1.0
	}
	return *c.Gain
}

// ControllerConfig is one PID feedback law.
type ControllerConfig struct {
	Kp                  float64 `json:"Kp"`
	Ki                  float64 `json:"Ki"`
	Kd                  float64 `json:"Kd"`
	Setpoint            float64 `json:"setpoint"`
	OutputMin           float64 `json:"output_min"`
	OutputMax           float64 `json:"output_max"`
	ControlledVariable  string  `json:"controlled_variable" validate:"required"`
	ManipulatedVariable string  `json:"manipulated_variable" validate:"required"`
}

// Model is the static description of one simulated process.
type Model struct {
	Name        string             `json:"name" validate:"required"`
	Solver      SolverConfig       `json:"solver"`
	Components  []ComponentSpec    `json:"components" validate:"required,min=1,dive"`
	Connections []Connection       `json:"connections" validate:"dive"`
	Controller  *ControllerConfig  `json:"controller,omitempty"`
	Controllers []ControllerConfig `json:"controllers,omitempty" validate:"dive"`
}

// AllControllers returns the configured controllers, folding the singular
// form into the list.
func (m *Model) AllControllers() []ControllerConfig {
	out := make([]ControllerConfig, 0, len(m.Controllers)+1)
	if m.Controller != nil {
		out = append(out, *m.Controller)
	}
	out = append(out, m.Controllers...)
	return out
}

// BuildComponents instantiates the model's components in declaration order.
func (m *Model) BuildComponents() (map[string]plant.Component, []string, error) {
	comps := make(map[string]plant.Component, len(m.Components))
	order := make([]string, 0, len(m.Components))
	for _, cs := range m.Components {
		c, err := plant.New(cs.Kind, cs.ID, plant.Params(cs.Params))
		if err != nil {
			return nil, nil, configErrf("component %q: %v", cs.ID, err)
		}
		comps[cs.ID] = c
		order = append(order, cs.ID)
	}
	return comps, order, nil
}

// SignalSet returns every qualified signal name the model produces.
func (m *Model) SignalSet() (map[string]struct{}, error) {
	comps, order, err := m.BuildComponents()
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	for _, id := range order {
		for _, name := range comps[id].SignalNames() {
			set[id+"."+name] = struct{}{}
		}
	}
	return set, nil
}
