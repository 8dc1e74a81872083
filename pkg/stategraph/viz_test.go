package stategraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDOT_ShapesByKind renders each node kind with its own shape.
func TestDOT_ShapesByKind(t *testing.T) {
	router := NewRouter("triage").Default("fan")
	fan := NewParallel("fan", setNode("sub", "x", 1))

	cg, err := New().
		AddNode(setNode("ingest", "in", true)).
		AddNode(router).
		AddNode(fan).
		AddNode(Terminal("archive", func(ctx Context, s State) (State, error) {
			return nil, nil
		})).
		AddEdge("ingest", "triage").
		AddEdge("fan", "archive").
		SetEntry("ingest").
		Compile()
	require.NoError(t, err)

	dot, err := cg.DOT()
	require.NoError(t, err)

	assert.Contains(t, dot, "digraph stategraph")
	assert.Contains(t, dot, `"ingest"`)
	assert.Contains(t, dot, "shape=box")
	assert.Contains(t, dot, "shape=diamond")
	assert.Contains(t, dot, "shape=box3d")
	assert.Contains(t, dot, "shape=doublecircle")
	assert.Contains(t, dot, "penwidth=2", "entry node is highlighted")
}

// TestDOT_EdgeStyles: error edges dashed, conditional edges labeled,
// router-declared targets dotted.
func TestDOT_EdgeStyles(t *testing.T) {
	router := NewRouter("route").
		Route("fix", Equals("broken", true)).
		Default("done")

	cg, err := New().
		AddNode(setNode("work", "x", 1)).
		AddNode(setNode("fix", "y", 1)).
		AddNode(router).
		AddNode(setNode("done", "z", 1)).
		AddConditionalEdge("work", "route", Equals("ready", true)).
		AddErrorEdge("work", "fix").
		AddEdge("fix", "route").
		AddEdge("done", END).
		SetEntry("work").
		Compile()
	require.NoError(t, err)

	dot, err := cg.DOT()
	require.NoError(t, err)

	assert.Contains(t, dot, "style=dashed")
	assert.Contains(t, dot, `"on error"`)
	assert.Contains(t, dot, `"cond"`)
	assert.Contains(t, dot, "style=dotted")
	assert.Contains(t, dot, `"route"`)
	assert.Contains(t, dot, `"__end__"`, "END is rendered when referenced")
}
