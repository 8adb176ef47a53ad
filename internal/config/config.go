// Package config loads run scenarios: which model to simulate, solver
// overrides, pre-registered attacks, and delivery settings. Scenarios are
// YAML, validated against a CUE schema before decoding.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"otsim/internal/attack"
	"otsim/internal/model"
)

// AttackParams mirrors attack.Parameters with YAML tags.
type AttackParams struct {
	BlockedValue *float64  `yaml:"blocked_value"`
	FalseValue   *float64  `yaml:"false_value"`
	ReplayBuffer []float64 `yaml:"replay_buffer"`
	Rate         *float64  `yaml:"rate"`
	NoiseStd     *float64  `yaml:"noise_std"`
}

// AttackConfig is one attack pre-registered before the run starts.
type AttackConfig struct {
	AttackID     string       `yaml:"attack_id"`
	Kind         string       `yaml:"kind"`
	TargetSignal string       `yaml:"target_signal"`
	StartTime    float64      `yaml:"start_time"`
	Duration     *float64     `yaml:"duration"`
	Parameters   AttackParams `yaml:"parameters"`
}

// Request converts the config entry into a registry request.
func (a AttackConfig) Request() attack.Request {
	return attack.Request{
		AttackID:     a.AttackID,
		Kind:         attack.Kind(a.Kind),
		TargetSignal: a.TargetSignal,
		StartTime:    a.StartTime,
		Duration:     a.Duration,
		Parameters: attack.Parameters{
			BlockedValue: a.Parameters.BlockedValue,
			FalseValue:   a.Parameters.FalseValue,
			ReplayBuffer: a.Parameters.ReplayBuffer,
			Rate:         a.Parameters.Rate,
			NoiseStd:     a.Parameters.NoiseStd,
		},
	}
}

// Scenario is the root run configuration.
type Scenario struct {
	Model           string              `yaml:"model"`
	LogLevel        string              `yaml:"log_level"`
	Tick            string              `yaml:"tick"`
	AdminAddr       string              `yaml:"admin_addr"`
	Seed            int64               `yaml:"seed"`
	Export          string              `yaml:"export"`
	TelemetryBuffer int                 `yaml:"telemetry_buffer"`
	Solver          *model.SolverConfig `yaml:"solver"`
	Attacks         []AttackConfig      `yaml:"attacks"`
}

// Default returns the scenario used when no config file is given.
func Default() *Scenario {
	return &Scenario{
		LogLevel:        "info",
		TelemetryBuffer: 64,
	}
}

// TickDuration parses the wall-clock pacing interval; empty means run
// flat out.
func (s *Scenario) TickDuration() (time.Duration, error) {
	if s.Tick == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Tick)
	if err != nil {
		return 0, fmt.Errorf("config: bad tick %q: %w", s.Tick, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: tick must not be negative, got %s", s.Tick)
	}
	return d, nil
}

// Load reads a scenario, validating it against the CUE schema first. An
// empty schemaPath uses the embedded schema.
func Load(path, schemaPath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := ValidateWithCue(data, schemaPath); err != nil {
		return nil, err
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}
