package stategraph

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/stategraph/pkg/stategraph/cond"
)

// ErrNoRoute indicates a router had no matching route and no default.
var ErrNoRoute = errors.New("no route matched")

// loopKeyPrefix namespaces the per-route loop counters carried in State.
const loopKeyPrefix = "__loop__:"

func loopKey(router, target string) string {
	return loopKeyPrefix + router + ":" + target
}

// LoopCount returns the number of loop iterations a router has taken through
// a target, as recorded in the state.
func LoopCount(s State, router, target string) int {
	return s.Int(loopKey(router, target), 0)
}

// Expr builds an edge or route predicate from a boolean expression over the
// state, e.g. `score > 0.8 && category == "news"`. State keys appear as
// top-level variables. Panics on a malformed expression; conditions are
// written as literals at graph-build time, so that is a programmer error.
func Expr(src string) Predicate {
	p := cond.MustCompile(src)
	return func(snapshot State) bool {
		return p(map[string]any(snapshot))
	}
}

// Equals builds a predicate matching a literal value on one state key.
func Equals(key string, want any) Predicate {
	return func(snapshot State) bool {
		return snapshot[key] == want
	}
}

// route is one declared router outcome.
type route struct {
	target   string
	when     Predicate
	loop     bool
	maxLoops int
	fallback string
}

// RouterNode is a node whose computation is purely a routing decision. It
// evaluates its routes in declaration order and returns a Command naming the
// first match; a Default route fires when nothing matches.
//
// Loop routes re-enter a target repeatedly while a condition holds, bounded
// by a route-local iteration limit that is independent of the executor's
// global step limit. The iteration counter lives in the state under a
// reserved key, never in the node, so the router itself stays stateless and
// checkpoints capture loop progress.
//
// Example:
//
//	router := stategraph.NewRouter("triage").
//	    Route("urgent", stategraph.Expr(`priority > 8`)).
//	    Loop("refine", stategraph.Equals("done", false), 3, "give-up").
//	    Default("archive")
type RouterNode struct {
	name   string
	routes []route
	dflt   string
	hasDef bool
}

// NewRouter creates an empty router. Panics if name is empty.
func NewRouter(name string) *RouterNode {
	if name == "" {
		panic("stategraph: router name cannot be empty")
	}
	return &RouterNode{name: name}
}

// Route declares a conditional route. Routes are evaluated in declaration
// order; the first whose condition holds wins. Panics on a nil condition.
func (r *RouterNode) Route(target string, when Predicate) *RouterNode {
	if when == nil {
		panic("stategraph: route condition cannot be nil")
	}
	r.routes = append(r.routes, route{target: target, when: when})
	return r
}

// Loop declares a bounded loop route: while the condition holds the router
// keeps sending execution to target, at most maxLoops times; once the bound
// is reached it routes to fallback instead and resets the counter. Panics on
// a nil condition or a non-positive bound.
func (r *RouterNode) Loop(target string, while Predicate, maxLoops int, fallback string) *RouterNode {
	if while == nil {
		panic("stategraph: loop condition cannot be nil")
	}
	if maxLoops < 1 {
		panic("stategraph: loop bound must be at least 1")
	}
	r.routes = append(r.routes, route{
		target:   target,
		when:     while,
		loop:     true,
		maxLoops: maxLoops,
		fallback: fallback,
	})
	return r
}

// Default declares the route taken when no condition matches. Without one,
// an unmatched router fails the invocation rather than silently stalling.
func (r *RouterNode) Default(target string) *RouterNode {
	r.dflt = target
	r.hasDef = true
	return r
}

// Name implements Node.
func (r *RouterNode) Name() string { return r.name }

// Kind implements Node.
func (r *RouterNode) Kind() Kind { return KindRouter }

// Targets returns every node the router can send execution to, for
// compile-time reachability analysis.
func (r *RouterNode) Targets() []string {
	out := make([]string, 0, len(r.routes)+1)
	for _, rt := range r.routes {
		out = append(out, rt.target)
		if rt.loop && rt.fallback != "" {
			out = append(out, rt.fallback)
		}
	}
	if r.hasDef {
		out = append(out, r.dflt)
	}
	return out
}

// Invoke implements Node. The routing decision is returned as a Command so
// it overrides any edges declared from the router.
func (r *RouterNode) Invoke(_ Context, snapshot State) (Result, error) {
	for _, rt := range r.routes {
		if !rt.when(snapshot) {
			continue
		}
		if !rt.loop {
			return Goto(rt.target), nil
		}
		key := loopKey(r.name, rt.target)
		count := snapshot.Int(key, 0)
		if count < rt.maxLoops {
			return UpdateAndGoto(State{key: count + 1}, rt.target), nil
		}
		return UpdateAndGoto(State{key: 0}, rt.fallback), nil
	}
	if r.hasDef {
		return Goto(r.dflt), nil
	}
	return Result{}, fmt.Errorf("router %s: %w", r.name, ErrNoRoute)
}
