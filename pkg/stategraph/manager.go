package stategraph

import (
	"encoding/json"
	"fmt"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
)

// Manager owns the shared State during execution. All mutation goes through
// Merge; nodes never write to the state directly. The Manager also maintains
// the versioned checkpoint history for its run.
//
// Merging is deterministic: given the same current state and the same update
// sequence, Merge and Fold always produce the same result. The executor
// relies on this for reproducible runs and trace replay.
type Manager struct {
	reducers *Reducers

	version     int
	checkpoints map[int]*checkpoint.Checkpoint
}

// NewManager creates a Manager using the given reducer registry. A nil
// registry gets an empty one (every key overwrites).
func NewManager(reducers *Reducers) *Manager {
	if reducers == nil {
		reducers = NewReducers()
	}
	return &Manager{
		reducers:    reducers,
		checkpoints: make(map[int]*checkpoint.Checkpoint),
	}
}

// Reducers returns the registry this manager merges with.
func (m *Manager) Reducers() *Reducers {
	return m.reducers
}

// Merge applies a partial update to the current state and returns the new
// state. For every key in update the registered reducer decides the merged
// value; keys absent from update are untouched. The input states are never
// mutated: unchanged values are shared between old and new state.
func (m *Manager) Merge(current State, update State) State {
	if len(update) == 0 {
		if current == nil {
			return State{}
		}
		return current
	}
	next := current.Clone()
	for key, incoming := range update {
		next[key] = m.reducers.Apply(key, next[key], incoming)
	}
	return next
}

// Fold merges a sequence of partial updates in order. Callers pass updates
// in declaration order (frontier order, declared sub-node order), never
// completion order, so repeated runs with identical inputs produce identical
// state regardless of scheduling jitter.
func (m *Manager) Fold(current State, updates []State) State {
	next := current
	for _, u := range updates {
		next = m.Merge(next, u)
	}
	if next == nil {
		return State{}
	}
	return next
}

// Checkpoint deep-freezes the state into a new versioned checkpoint.
// Versions increase monotonically within the manager; the checkpoint is
// immutable after creation.
func (m *Manager) Checkpoint(runID, node string, step int, s State, nextFrontier []string) (*checkpoint.Checkpoint, error) {
	frozen, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("serialize state: %w", err)
	}
	m.version++
	cp := checkpoint.New(runID, node, m.version, step, frozen, nextFrontier)
	m.checkpoints[m.version] = cp
	return cp, nil
}

// Restore rebuilds a State from the checkpoint at the given version.
func (m *Manager) Restore(version int) (State, error) {
	cp, ok := m.checkpoints[version]
	if !ok {
		return nil, fmt.Errorf("restore version %d: %w", version, checkpoint.ErrNotFound)
	}
	var s State
	if err := json.Unmarshal(cp.State, &s); err != nil {
		return nil, fmt.Errorf("restore version %d: %w", version, err)
	}
	if s == nil {
		s = State{}
	}
	return s, nil
}

// LatestVersion returns the most recent checkpoint version, 0 if none exist.
func (m *Manager) LatestVersion() int {
	return m.version
}
