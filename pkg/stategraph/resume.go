package stategraph

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
)

// Resume continues a run from its latest persisted checkpoint. It restores
// the checkpointed state and continues the superstep loop from the
// checkpoint's recorded next frontier. A run whose latest checkpoint has an
// empty next frontier already completed; Resume returns its state as-is.
//
// Checkpointing stays enabled for the continued run, writing to the same
// store under the same runID with monotonically increasing versions.
//
// Example:
//
//	// Previous run crashed after step 3. Resume picks up at step 4.
//	final, err := compiled.Resume(ctx, store, "run-123")
func (cg *CompiledGraph) Resume(ctx Context, store checkpoint.Store, runID string, opts ...RunOption) (State, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	version, err := store.Latest(runID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoCheckpoints, runID)
		}
		return nil, fmt.Errorf("find latest checkpoint: %w", err)
	}
	return cg.ResumeAt(ctx, store, runID, version, opts...)
}

// ResumeAt continues a run from a specific checkpoint version, discarding
// any later progress. Useful for replaying a run from a known-good point.
func (cg *CompiledGraph) ResumeAt(ctx Context, store checkpoint.Store, runID string, version int, opts ...RunOption) (State, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	data, err := store.Load(runID, version)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s version %d", ErrNoCheckpoints, runID, version)
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	if cp.Format != checkpoint.Format {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrCheckpointFormat, cp.Format, checkpoint.Format)
	}

	var state State
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return nil, fmt.Errorf("restore state: %w", err)
	}
	if state == nil {
		state = State{}
	}

	// Completed run: nothing left on the frontier.
	if len(cp.NextFrontier) == 0 {
		return state, nil
	}

	for _, name := range cp.NextFrontier {
		if name != END && !cg.HasNode(name) {
			return state, fmt.Errorf("checkpoint frontier references unknown node %q: %w", name, ErrInvalidGraph)
		}
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.checkpointStore = store
	cfg.runID = runID

	return cg.run(ctx, &cfg, state, cp.NextFrontier, cp.Step, cp.Version)
}
