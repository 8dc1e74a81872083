package stategraph

import (
	"context"
	"sync"
	"time"
)

// recorder of node execution order, safe for concurrent frontiers.
type tracker struct {
	mu    sync.Mutex
	order []string
}

func (t *tracker) add(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.order = append(t.order, name)
}

func (t *tracker) names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// trackingNode records its execution and appends its name to the "visited"
// state key.
func trackingNode(name string, tr *tracker) Node {
	return Func(name, func(ctx Context, s State) (State, error) {
		tr.add(name)
		return State{"visited": []any{name}}, nil
	})
}

// setNode writes a single key.
func setNode(name, key string, value any) Node {
	return Func(name, func(ctx Context, s State) (State, error) {
		return State{key: value}, nil
	})
}

// failingNode returns err on every invocation and counts calls.
func failingNode(name string, err error, calls *int32) Node {
	var mu sync.Mutex
	return Func(name, func(ctx Context, s State) (State, error) {
		if calls != nil {
			mu.Lock()
			*calls++
			mu.Unlock()
		}
		return nil, err
	})
}

// sleepNode sleeps without watching its context, then writes a key.
func sleepNode(name string, d time.Duration, key string, value any) Node {
	return Func(name, func(ctx Context, s State) (State, error) {
		time.Sleep(d)
		return State{key: value}, nil
	})
}

// panicNode panics with the given value.
func panicNode(name string, value any) Node {
	return Func(name, func(ctx Context, s State) (State, error) {
		panic(value)
	})
}

// testCtx creates a plain test context.
func testCtx() Context {
	return NewContext(context.Background())
}

// linearGraph builds entry -> a -> b -> END.
func linearGraph(tr *tracker) *Graph {
	return New().
		AddNode(trackingNode("a", tr)).
		AddNode(trackingNode("b", tr)).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntry("a")
}
