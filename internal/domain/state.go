package domain

import (
	"context"
	"errors"
	"maps"
	"sync"
	"sync/atomic"
)

// State-specific errors.
var (
	// ErrVariationNotFound indicates that a requested variation point has no
	// value in the state.
	ErrVariationNotFound = errors.New("variation point not found in state")
)

// ExperimentState is the flat mapping from variation-point name to the value
// currently in effect, shared between the harness and the function under
// test. Reads are lock-free; writes replace the underlying map atomically,
// so last-writer-wins when two variation points share a name.
//
// One combination's assignments must be fully applied before its invocation
// starts, and two combinations for the same input must not mutate the same
// handle concurrently. Concurrent runs give each combination its own
// Snapshot instead.
type ExperimentState struct {
	// mu serializes writers; readers go through the atomic value only.
	mu sync.Mutex

	// m holds the current map[string]Value for lock-free reads.
	m atomic.Value
}

// NewExperimentState creates an empty state.
func NewExperimentState() *ExperimentState {
	s := new(ExperimentState)
	s.m.Store(make(map[string]Value))
	return s
}

// NewExperimentStateWithVariations creates a state pre-populated with the
// given assignments. The input map is copied.
func NewExperimentStateWithVariations(vars map[string]Value) *ExperimentState {
	copied := make(map[string]Value, len(vars))
	maps.Copy(copied, vars)
	s := new(ExperimentState)
	s.m.Store(copied)
	return s
}

// SetVariation records the value currently selected for a variation point.
// The stored map is never mutated in place; a copy with the assignment
// applied replaces it, so in-flight readers keep a consistent view.
func (s *ExperimentState) SetVariation(name string, value Value) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.m.Load().(map[string]Value) //nolint:errcheck // always initialized with map
	next := make(map[string]Value, len(old)+1)
	maps.Copy(next, old)
	next[name] = value
	s.m.Store(next)
}

// GetVariation returns the value in effect for a variation point.
func (s *ExperimentState) GetVariation(name string) (Value, error) {
	m := s.m.Load().(map[string]Value) //nolint:errcheck // always initialized with map
	v, ok := m[name]
	if !ok {
		return Value{}, ErrVariationNotFound
	}
	return v, nil
}

// Variations returns a copy of every current assignment.
func (s *ExperimentState) Variations() map[string]Value {
	m := s.m.Load().(map[string]Value) //nolint:errcheck // always initialized with map
	out := make(map[string]Value, len(m))
	maps.Copy(out, m)
	return out
}

// Snapshot returns an independent copy of the state. Mutations of the copy
// never affect the original, which is what makes combinations safe to run
// concurrently for the same input.
func (s *ExperimentState) Snapshot() *ExperimentState {
	return NewExperimentStateWithVariations(s.m.Load().(map[string]Value)) //nolint:errcheck // always initialized with map
}

// stateContextKey is the context key for the active experiment state.
type stateContextKey struct{}

// StateIntoContext returns a context carrying the state handle active for
// the current invocation. The runner injects the handle before calling the
// function under test; variation wrappers retrieve it with StateFromContext.
func StateIntoContext(ctx context.Context, state *ExperimentState) context.Context {
	return context.WithValue(ctx, stateContextKey{}, state)
}

// StateFromContext returns the experiment state active for the current
// invocation, or nil when none was injected.
func StateFromContext(ctx context.Context) *ExperimentState {
	state, _ := ctx.Value(stateContextKey{}).(*ExperimentState)
	return state
}
