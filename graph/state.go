package graph

import (
	"encoding/json"
	"maps"
)

// State is the shared key-value accumulation passed through one execution.
// It is owned exclusively by the scheduler; step executors only ever see a
// snapshot and return an Update.
type State map[string]any

// Update is the partial state contribution of a single step.
type Update map[string]any

// NewState returns an empty state.
func NewState() State {
	return make(State)
}

// Clone returns a copy the scheduler can hand to a step as a read-only
// snapshot. Values are shared; steps must not mutate them.
func (s State) Clone() State {
	if s == nil {
		return NewState()
	}
	out := make(State, len(s))
	maps.Copy(out, s)
	return out
}

// Apply merges an update by key-overwrite and returns the new state.
// The receiver is not mutated.
func (s State) Apply(u Update) State {
	out := s.Clone()
	maps.Copy(out, u)
	return out
}

// MarshalJSONState serializes a state for persistence.
func MarshalJSONState(s State) ([]byte, error) {
	if s == nil {
		s = NewState()
	}
	return json.Marshal(map[string]any(s))
}

// UnmarshalJSONState restores a persisted state.
func UnmarshalJSONState(data []byte) (State, error) {
	if len(data) == 0 {
		return NewState(), nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return State(m), nil
}
