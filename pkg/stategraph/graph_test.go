package stategraph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew verifies basic builder creation.
func TestNew(t *testing.T) {
	g := New()
	assert.NotNil(t, g)
	assert.NotNil(t, g.nodes)
	assert.NotNil(t, g.edges)
	assert.Empty(t, g.entry)
}

// TestGraph_AddNode_Chaining tests fluent API chaining.
func TestGraph_AddNode_Chaining(t *testing.T) {
	g := New()
	result := g.AddNode(setNode("a", "k", 1))
	assert.Same(t, g, result)
}

// TestGraph_AddNode_Duplicate records a DuplicateNode validation error
// surfaced at compile time.
func TestGraph_AddNode_Duplicate(t *testing.T) {
	_, err := New().
		AddNode(setNode("a", "k", 1)).
		AddNode(setNode("a", "k", 2)).
		AddEdge("a", END).
		SetEntry("a").
		Compile()

	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, DuplicateNode, verr.Code)
	assert.Equal(t, "a", verr.Node)
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

// TestGraph_AddNode_NilPanics verifies nil nodes panic.
func TestGraph_AddNode_NilPanics(t *testing.T) {
	assert.Panics(t, func() {
		New().AddNode(nil)
	})
}

// TestGraph_AddNode_ReservedName_Panics verifies reserved names panic.
func TestGraph_AddNode_ReservedName_Panics(t *testing.T) {
	for _, name := range []string{"END", "end", "End", "__end__"} {
		assert.Panics(t, func() {
			New().AddNode(setNode(name, "k", 1))
		}, "name %q", name)
	}
}

// TestGraph_AddNode_Whitespace_Panics verifies whitespace names panic.
func TestGraph_AddNode_Whitespace_Panics(t *testing.T) {
	assert.Panics(t, func() {
		New().AddNode(setNode("has space", "k", 1))
	})
}

// TestGraph_AddEdge_UnknownEndpoint records UnknownNode for either end.
func TestGraph_AddEdge_UnknownEndpoint(t *testing.T) {
	_, err := New().
		AddNode(setNode("a", "k", 1)).
		AddEdge("a", "ghost").
		AddEdge("phantom", "a").
		AddEdge("a", END).
		SetEntry("a").
		Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidGraph)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, UnknownNode, verr.Code)
}

// TestGraph_AddEdge_ENDTarget is always legal.
func TestGraph_AddEdge_ENDTarget(t *testing.T) {
	_, err := New().
		AddNode(setNode("a", "k", 1)).
		AddEdge("a", END).
		SetEntry("a").
		Compile()
	assert.NoError(t, err)
}

// TestGraph_AddConditionalEdge_NilPredicate_Panics verifies nil conditions
// panic rather than silently acting unconditional.
func TestGraph_AddConditionalEdge_NilPredicate_Panics(t *testing.T) {
	g := New().AddNode(setNode("a", "k", 1))
	assert.Panics(t, func() {
		g.AddConditionalEdge("a", END, nil)
	})
}

// TestGraph_SetEntry_Twice records EntryRedeclared.
func TestGraph_SetEntry_Twice(t *testing.T) {
	_, err := New().
		AddNode(setNode("a", "k", 1)).
		AddNode(setNode("b", "k", 2)).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntry("a").
		SetEntry("b").
		Compile()

	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, EntryRedeclared, verr.Code)
}

// TestGraph_ErrorsAccumulate verifies multiple construction mistakes all
// surface in one joined compile error.
func TestGraph_ErrorsAccumulate(t *testing.T) {
	_, err := New().
		AddNode(setNode("a", "k", 1)).
		AddNode(setNode("a", "k", 2)). // duplicate
		AddEdge("a", "ghost").         // unknown target
		AddEdge("a", END).
		SetEntry("a").
		Compile()

	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, string(DuplicateNode))
	assert.Contains(t, msg, string(UnknownNode))
}
