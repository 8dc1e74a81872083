package stategraph

import (
	"fmt"
	"strings"
	"sync"
)

// Predicate is a pure condition over a state snapshot, used by conditional
// edges and router routes. Predicates must not mutate the snapshot.
type Predicate func(snapshot State) bool

// edge is a declared transition. Edges with the same source are evaluated in
// declaration order; the first whose condition holds (or the unconditional
// edge) is taken. An onError edge is only considered when the source node's
// invocation failed.
type edge struct {
	to      string
	when    Predicate
	onError bool
}

// Graph is a mutable builder for execution graphs. Use New, then chain
// AddNode, AddEdge, and SetEntry calls, and finally Compile.
//
// Construction mistakes with a typed cause (duplicate node names, edges to
// undeclared nodes, a redeclared entry point) are recorded as
// *ValidationError values and surfaced joined at Compile, so a fluent chain
// never has to stop to check errors. Nil nodes and empty names panic: those
// are programmer errors, not graph-shape errors.
//
// Graph is not safe for concurrent building. Construct in one goroutine,
// then Compile; the CompiledGraph is immutable and freely shareable.
//
// Example:
//
//	g := stategraph.New().
//	    AddFunc("fetch", fetchNode).
//	    AddFunc("process", processNode).
//	    AddEdge("fetch", "process").
//	    AddEdge("process", stategraph.END).
//	    SetEntry("fetch")
//
//	compiled, err := g.Compile()
type Graph struct {
	mu       sync.Mutex
	nodes    map[string]Node
	order    []string
	edges    map[string][]edge
	entry    string
	entrySet bool
	errs     []error
}

// New creates a new graph builder.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]Node),
		edges: make(map[string][]edge),
	}
}

// AddNode adds a node to the graph under its own name.
// Returns the graph for method chaining.
//
// A duplicate name records a DuplicateNode validation error. Panics if n is
// nil or has an empty or reserved name.
func (g *Graph) AddNode(n Node) *Graph {
	if n == nil {
		panic("stategraph: node cannot be nil")
	}
	name := n.Name()
	if name == "" {
		panic("stategraph: node name cannot be empty")
	}
	if strings.EqualFold(name, "end") || strings.EqualFold(name, END) {
		panic("stategraph: node name cannot be reserved word 'END'")
	}
	if strings.ContainsAny(name, " \t\n\r") {
		panic("stategraph: node name cannot contain whitespace")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[name]; exists {
		g.errs = append(g.errs, &ValidationError{
			Code:   DuplicateNode,
			Node:   name,
			Detail: "already declared",
		})
		return g
	}
	g.nodes[name] = n
	g.order = append(g.order, name)
	return g
}

// AddFunc adds a plain function node. Shorthand for AddNode(Func(name, fn)).
func (g *Graph) AddFunc(name string, fn NodeFunc) *Graph {
	return g.AddNode(Func(name, fn))
}

// AddEdge adds an unconditional edge. The target can be a node name or END.
// Either endpoint referencing an undeclared node records an UnknownNode
// validation error, so declare nodes before their edges.
func (g *Graph) AddEdge(from, to string) *Graph {
	return g.addEdge(from, edge{to: to})
}

// AddConditionalEdge adds an edge guarded by a predicate over the post-merge
// state. Edges from the same source are evaluated in declaration order; the
// first satisfied edge wins. Panics if when is nil (use AddEdge for
// unconditional edges).
func (g *Graph) AddConditionalEdge(from, to string, when Predicate) *Graph {
	if when == nil {
		panic("stategraph: edge condition cannot be nil")
	}
	return g.addEdge(from, edge{to: to, when: when})
}

// AddErrorEdge adds an edge taken only when the source node's invocation
// fails after retries. Without an error edge, an unrecovered node error
// aborts the whole execution.
func (g *Graph) AddErrorEdge(from, to string) *Graph {
	return g.addEdge(from, edge{to: to, onError: true})
}

func (g *Graph) addEdge(from string, e edge) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	ok := true
	if _, exists := g.nodes[from]; !exists {
		g.errs = append(g.errs, &ValidationError{
			Code:   UnknownNode,
			Node:   from,
			Detail: fmt.Sprintf("edge source %q is not declared", from),
		})
		ok = false
	}
	if e.to != END {
		if _, exists := g.nodes[e.to]; !exists {
			g.errs = append(g.errs, &ValidationError{
				Code:   UnknownNode,
				Node:   e.to,
				Detail: fmt.Sprintf("edge target %q is not declared", e.to),
			})
			ok = false
		}
	}
	if ok {
		g.edges[from] = append(g.edges[from], e)
	}
	return g
}

// SetEntry designates the entry point node. May be called at most once;
// a second call records an EntryRedeclared validation error.
func (g *Graph) SetEntry(name string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.entrySet {
		g.errs = append(g.errs, &ValidationError{
			Code:   EntryRedeclared,
			Node:   name,
			Detail: fmt.Sprintf("entry point already set to %q", g.entry),
		})
		return g
	}
	g.entry = name
	g.entrySet = true
	return g
}
