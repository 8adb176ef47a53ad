package model

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"otsim/internal/plant"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads and validates a model definition from a JSON file.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a model from JSON, rejecting unknown fields, and validates
// it completely before returning. Type errors surface here rather than in
// the stepping loop.
func Decode(r io.Reader) (*Model, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var m Model
	if err := dec.Decode(&m); err != nil {
		return nil, configErrf("decode: %v", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks structural constraints (via validator tags) and semantic
// consistency: unique ids, known kinds, resolvable connections, controller
// variables the model actually produces.
func (m *Model) Validate() error {
	if err := validate.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return configErrf("field %s fails %q constraint", e.Namespace(), e.Tag())
		}
		return configErrf("%v", err)
	}

	seen := make(map[string]struct{}, len(m.Components))
	for _, cs := range m.Components {
		if _, dup := seen[cs.ID]; dup {
			return configErrf("duplicate component id %q", cs.ID)
		}
		seen[cs.ID] = struct{}{}
		if !plant.Known(cs.Kind) {
			return configErrf("component %q: unknown kind %q (have %s)",
				cs.ID, cs.Kind, strings.Join(plant.Kinds(), ", "))
		}
	}

	signals, err := m.SignalSet()
	if err != nil {
		return err
	}

	for _, conn := range m.Connections {
		if _, ok := signals[conn.From]; !ok {
			return configErrf("connection source %q is not a signal the model produces", conn.From)
		}
		id, _, ok := strings.Cut(conn.To, ".")
		if !ok {
			return configErrf("connection destination %q is not of the form <component_id>.<input>", conn.To)
		}
		if _, ok := seen[id]; !ok {
			return configErrf("connection destination %q names unknown component %q", conn.To, id)
		}
	}

	for _, cc := range m.AllControllers() {
		if _, ok := signals[cc.ControlledVariable]; !ok {
			return configErrf("controller: controlled variable %q is not a signal the model produces", cc.ControlledVariable)
		}
		if cc.OutputMin >= cc.OutputMax {
			return configErrf("controller %q: output_min must be below output_max", cc.ControlledVariable)
		}
	}

	return nil
}
