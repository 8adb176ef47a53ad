// Package plant defines the component plugin contract and the named-state
// maps shared by the solver, controller, and attack injector.
//
// A component contributes three pure operations: its initial sub-state, its
// state derivatives, and the observable signals derived from state. The
// engine merges all components' partial maps into global maps keyed by
// "<component_id>.<field>".
package plant

import (
	"fmt"
	"math"
	"sort"
)

// State maps a fully-qualified variable name ("tank1.h") to its value.
// The same type carries state variables, derivatives, and signal snapshots.
type State map[string]float64

func (s State) Clone() State {
	c := make(State, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

// Merge copies all entries of other into s, prefixing keys with id when
// id is non-empty.
func (s State) Merge(id string, other State) {
	for k, v := range other {
		if id != "" {
			k = id + "." + k
		}
		s[k] = v
	}
}

// IsValid reports whether every entry is finite.
func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// FirstInvalid returns the name of one non-finite entry, chosen
// deterministically, and false when the state is fully finite.
func (s State) FirstInvalid() (string, bool) {
	names := make([]string, 0, len(s))
	for k, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			names = append(names, k)
		}
	}
	if len(names) == 0 {
		return "", false
	}
	sort.Strings(names)
	return names[0], true
}

// Names returns the sorted variable names.
func (s State) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Params holds a component's kind-specific parameters.
type Params map[string]float64

// Get returns the named parameter or def when absent.
func (p Params) Get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Component is one pluggable unit of physics, constructed with its id and
// parameters fixed for the run. All three operations are pure: they must not
// retain or mutate their arguments. Keys in the returned maps are local field
// names; the engine qualifies them with the component id.
type Component interface {
	// InitialState returns the component's starting sub-state. Values in
	// initial override the plugin's defaults.
	InitialState(initial map[string]float64) State

	// Derivatives returns d/dt for each of the component's state fields.
	// full is the global qualified state; control carries the manipulated
	// variables and connection-derived inputs for this step.
	Derivatives(t float64, full State, control map[string]float64) State

	// Signals returns the component's observable sensor values from the
	// global qualified state.
	Signals(full State) State

	// SignalNames lists the local signal names the component produces,
	// used for model and attack-target validation.
	SignalNames() []string
}

// Factory builds a Component for one ComponentSpec.
type Factory func(id string, params Params) Component

var registry = map[string]Factory{}

// Register makes a component kind available to model loading. Kinds are
// registered from init functions; later registrations overwrite earlier ones.
func Register(kind string, f Factory) {
	registry[kind] = f
}

// New returns a component for kind, or an error for unknown kinds.
func New(kind, id string, params Params) (Component, error) {
	f, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("unknown component kind %q", kind)
	}
	return f(id, params), nil
}

// Known reports whether kind has a registered factory.
func Known(kind string) bool {
	_, ok := registry[kind]
	return ok
}

// Kinds returns the registered kind names, sorted.
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
