package benchmarks

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
)

// BenchmarkMemoryStore_Save measures in-memory checkpoint save.
func BenchmarkMemoryStore_Save(b *testing.B) {
	store := checkpoint.NewMemoryStore()
	data := largeCheckpoint(b, 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = store.Save("run-1", i+1, data)
	}
}

// BenchmarkMemoryStore_Load measures in-memory checkpoint load.
func BenchmarkMemoryStore_Load(b *testing.B) {
	store := checkpoint.NewMemoryStore()
	_ = store.Save("run-1", 1, largeCheckpoint(b, 1))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Load("run-1", 1)
	}
}

// BenchmarkSQLiteStore_Save measures SQLite checkpoint save.
func BenchmarkSQLiteStore_Save(b *testing.B) {
	store, cleanup := createSQLiteStore(b)
	defer cleanup()
	data := largeCheckpoint(b, 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = store.Save("run-1", i+1, data)
	}
}

// BenchmarkSQLiteStore_Load measures SQLite checkpoint load.
func BenchmarkSQLiteStore_Load(b *testing.B) {
	store, cleanup := createSQLiteStore(b)
	defer cleanup()
	_ = store.Save("run-1", 1, largeCheckpoint(b, 1))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Load("run-1", 1)
	}
}

// BenchmarkRun_WithCheckpointing measures execution with checkpointing enabled.
func BenchmarkRun_WithCheckpointing(b *testing.B) {
	store := checkpoint.NewMemoryStore()
	compiled := mustCompile(buildLinearGraph(5))
	ctx := stategraph.NewContext(context.Background())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, largeState(),
			stategraph.WithCheckpointing(store, "run-"+nodeID(i%100)),
		)
	}
}

// BenchmarkRun_WithoutCheckpointing baseline without checkpointing.
func BenchmarkRun_WithoutCheckpointing(b *testing.B) {
	compiled := mustCompile(buildLinearGraph(5))
	ctx := stategraph.NewContext(context.Background())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, largeState())
	}
}

// BenchmarkStateMarshal measures state serialization overhead.
func BenchmarkStateMarshal(b *testing.B) {
	state := largeState()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = json.Marshal(state)
	}
}

// BenchmarkStateUnmarshal measures state deserialization overhead.
func BenchmarkStateUnmarshal(b *testing.B) {
	data, _ := json.Marshal(largeState())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var s stategraph.State
		_ = json.Unmarshal(data, &s)
	}
}

// Helper functions

func largeState() stategraph.State {
	return stategraph.State{
		"id":     "bench-id",
		"values": []any{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		"metadata": map[string]any{
			"key1": "value1",
			"key2": "value2",
			"key3": "value3",
		},
		"nested": map[string]any{
			"a": "nested-a",
			"b": 42,
			"c": []any{"c1", "c2", "c3"},
		},
	}
}

func largeCheckpoint(b *testing.B, version int) []byte {
	b.Helper()
	stateJSON, err := json.Marshal(largeState())
	if err != nil {
		b.Fatal(err)
	}
	cp := checkpoint.New("run-1", "node-1", version, version, stateJSON, []string{"next"})
	data, err := cp.Marshal()
	if err != nil {
		b.Fatal(err)
	}
	return data
}

func createSQLiteStore(b *testing.B) (checkpoint.Store, func()) {
	b.Helper()
	tmpFile, err := os.CreateTemp("", "bench-*.db")
	if err != nil {
		b.Fatal(err)
	}
	tmpFile.Close()

	store, err := checkpoint.NewSQLiteStore(tmpFile.Name())
	if err != nil {
		os.Remove(tmpFile.Name())
		b.Fatal(err)
	}

	return store, func() {
		store.Close()
		os.Remove(tmpFile.Name())
	}
}
