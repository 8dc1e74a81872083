package stategraph

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
	"github.com/randalmurphal/stategraph/pkg/stategraph/trace"
)

// countingGraph builds a three-node pipeline that increments "n" once per
// node, for checkpoint inspection.
func countingGraph(t *testing.T) *CompiledGraph {
	t.Helper()
	inc := func(name string) Node {
		return Func(name, func(ctx Context, s State) (State, error) {
			return State{"n": s.Int("n", 0) + 1}, nil
		})
	}
	cg, err := New().
		AddNode(inc("first")).
		AddNode(inc("second")).
		AddNode(inc("third")).
		AddEdge("first", "second").
		AddEdge("second", "third").
		AddEdge("third", END).
		SetEntry("first").
		Compile()
	require.NoError(t, err)
	return cg
}

// TestRun_Checkpointing_EveryStep persists one version per superstep.
func TestRun_Checkpointing_EveryStep(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	cg := countingGraph(t)

	out, err := cg.Run(testCtx(), State{}, WithCheckpointing(store, "run-cp"))
	require.NoError(t, err)
	assert.Equal(t, 3, out.Int("n", 0))

	infos, err := store.List("run-cp")
	require.NoError(t, err)
	require.Len(t, infos, 3)
	for i, info := range infos {
		assert.Equal(t, i+1, info.Version)
		assert.Equal(t, i+1, info.Step)
		assert.Equal(t, "run-cp", info.RunID)
	}
}

// TestRun_Checkpointing_CaptureIsImmutable: each version holds the state as
// of its step, unaffected by later progress.
func TestRun_Checkpointing_CaptureIsImmutable(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	cg := countingGraph(t)

	_, err := cg.Run(testCtx(), State{}, WithCheckpointing(store, "run-cp"))
	require.NoError(t, err)

	for version, wantN := range map[int]int{1: 1, 2: 2, 3: 3} {
		data, err := store.Load("run-cp", version)
		require.NoError(t, err)
		cp, err := checkpoint.Unmarshal(data)
		require.NoError(t, err)

		var s State
		require.NoError(t, json.Unmarshal(cp.State, &s))
		assert.Equal(t, wantN, s.Int("n", 0), "version %d", version)
	}
}

// TestRun_CheckpointEvery persists at a cadence rather than every step.
func TestRun_CheckpointEvery(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	cg := countingGraph(t)

	_, err := cg.Run(testCtx(), State{},
		WithCheckpointing(store, "run-cp"),
		WithCheckpointEvery(2))
	require.NoError(t, err)

	infos, err := store.List("run-cp")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, 2, infos[0].Step)
}

// TestRun_Checkpointing_TraceCarriesVersions: trace events reference the
// checkpoint versions bracketing each step.
func TestRun_Checkpointing_TraceCarriesVersions(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	rec := trace.NewRecorder()
	cg := countingGraph(t)

	_, err := cg.Run(testCtx(), State{},
		WithCheckpointing(store, "run-cp"),
		WithTraceSink(rec))
	require.NoError(t, err)

	events := rec.Events()
	require.Len(t, events, 3)
	for i, evt := range events {
		assert.Equal(t, i, evt.CheckpointBefore, "step %d", evt.Step)
		assert.Equal(t, i+1, evt.CheckpointAfter, "step %d", evt.Step)
	}
}

// TestRun_CheckpointFailure_NonFatalByDefault: a broken store logs and
// continues; the run still completes.
func TestRun_CheckpointFailure_NonFatalByDefault(t *testing.T) {
	store := &brokenStore{}
	cg := countingGraph(t)

	out, err := cg.Run(testCtx(), State{}, WithCheckpointing(store, "run-cp"))
	require.NoError(t, err)
	assert.Equal(t, 3, out.Int("n", 0))
}

// TestRun_CheckpointFailure_Fatal aborts the run when persistence is
// declared load-bearing.
func TestRun_CheckpointFailure_Fatal(t *testing.T) {
	store := &brokenStore{}
	cg := countingGraph(t)

	_, err := cg.Run(testCtx(), State{},
		WithCheckpointing(store, "run-cp"),
		WithCheckpointFailureFatal())
	require.Error(t, err)
	assert.ErrorIs(t, err, errStoreBroken)
}

// TestResume_ContinuesAfterCrash: a run that dies mid-graph resumes from its
// last checkpoint and finishes without re-running completed nodes.
func TestResume_ContinuesAfterCrash(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	tr := &tracker{}
	healthy := false

	build := func() *CompiledGraph {
		cg, err := New().
			AddNode(trackingNode("setup", tr)).
			AddNode(Func("flaky", func(ctx Context, s State) (State, error) {
				if !healthy {
					return nil, errors.New("transient outage")
				}
				tr.add("flaky")
				return State{"repaired": true}, nil
			})).
			AddNode(trackingNode("finish", tr)).
			AddEdge("setup", "flaky").
			AddEdge("flaky", "finish").
			AddEdge("finish", END).
			SetEntry("setup").
			Compile()
		require.NoError(t, err)
		return cg
	}

	cg := build()
	_, err := cg.Run(testCtx(), State{"seed": 42}, WithCheckpointing(store, "run-x"))
	require.Error(t, err)
	assert.Equal(t, []string{"setup"}, tr.names())

	// The outage clears; pick up where the run left off.
	healthy = true
	out, err := cg.Resume(testCtx(), store, "run-x")
	require.NoError(t, err)
	assert.Equal(t, []string{"setup", "flaky", "finish"}, tr.names(),
		"setup must not re-run")
	assert.Equal(t, 42, out.Int("seed", 0), "restored state carries over")
	assert.True(t, out.Bool("repaired", false))
}

// TestResume_VersionsContinueMonotonically: the resumed run appends new
// versions after the restored one.
func TestResume_VersionsContinueMonotonically(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	cg := countingGraph(t)

	_, err := cg.Run(testCtx(), State{},
		WithCheckpointing(store, "run-m"),
		WithMaxSteps(2))
	require.Error(t, err) // step limit hit after two checkpoints

	out, err := cg.Resume(testCtx(), store, "run-m")
	require.NoError(t, err)
	assert.Equal(t, 3, out.Int("n", 0))

	latest, err := store.Latest("run-m")
	require.NoError(t, err)
	assert.Equal(t, 3, latest)
}

// TestResume_CompletedRunReturnsState: resuming a finished run is a no-op
// returning the final state.
func TestResume_CompletedRunReturnsState(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	cg := countingGraph(t)

	_, err := cg.Run(testCtx(), State{}, WithCheckpointing(store, "run-done"))
	require.NoError(t, err)

	out, err := cg.Resume(testCtx(), store, "run-done")
	require.NoError(t, err)
	assert.Equal(t, 3, out.Int("n", 0))
}

// TestResumeAt_ReplaysFromEarlierVersion discards later progress.
func TestResumeAt_ReplaysFromEarlierVersion(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	cg := countingGraph(t)

	_, err := cg.Run(testCtx(), State{}, WithCheckpointing(store, "run-r"))
	require.NoError(t, err)

	out, err := cg.ResumeAt(testCtx(), store, "run-r", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Int("n", 0), "second and third re-run from n=1")
}

// TestResume_NoCheckpoints fails with a distinct sentinel.
func TestResume_NoCheckpoints(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	cg := countingGraph(t)

	_, err := cg.Resume(testCtx(), store, "never-ran")
	assert.ErrorIs(t, err, ErrNoCheckpoints)
}

// TestResumeAt_FormatMismatch rejects checkpoints from another format
// generation.
func TestResumeAt_FormatMismatch(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	cg := countingGraph(t)

	cp := checkpoint.New("run-f", "first", 1, 1, []byte(`{}`), []string{"second"})
	cp.Format = 99
	data, err := cp.Marshal()
	require.NoError(t, err)
	require.NoError(t, store.Save("run-f", 1, data))

	_, err = cg.ResumeAt(testCtx(), store, "run-f", 1)
	assert.ErrorIs(t, err, ErrCheckpointFormat)
}

// TestResumeAt_UnknownFrontierNode rejects checkpoints from a different
// graph shape.
func TestResumeAt_UnknownFrontierNode(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	cg := countingGraph(t)

	cp := checkpoint.New("run-g", "first", 1, 1, []byte(`{}`), []string{"not-a-node"})
	data, err := cp.Marshal()
	require.NoError(t, err)
	require.NoError(t, store.Save("run-g", 1, data))

	_, err = cg.ResumeAt(testCtx(), store, "run-g", 1)
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

// errStoreBroken is returned by every brokenStore write.
var errStoreBroken = errors.New("store broken")

// brokenStore fails every save, for checkpoint failure policy tests.
type brokenStore struct{}

func (b *brokenStore) Save(string, int, []byte) error   { return errStoreBroken }
func (b *brokenStore) Load(string, int) ([]byte, error) { return nil, checkpoint.ErrNotFound }
func (b *brokenStore) Latest(string) (int, error)       { return 0, checkpoint.ErrNotFound }
func (b *brokenStore) List(string) ([]checkpoint.Info, error) {
	return nil, nil
}
func (b *brokenStore) DeleteRun(string) error { return nil }
func (b *brokenStore) Close() error           { return nil }
