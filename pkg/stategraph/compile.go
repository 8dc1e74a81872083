package stategraph

import (
	"errors"
	"fmt"
)

// routeDeclarer is implemented by nodes whose successors are declared inside
// the node itself rather than as graph edges (RouterNode). Compile consults
// it for reachability analysis, so router targets do not register as
// unreachable. Nodes that rely on fully dynamic Commands should still declare
// edges for the targets they can reach; reachability cannot see through an
// arbitrary Command.
type routeDeclarer interface {
	Targets() []string
}

// Compile validates the graph and creates an immutable, executable
// CompiledGraph. All accumulated construction errors and all validation
// failures are joined into a single error.
//
// Validation checks (in order):
//  1. Construction errors recorded by the builder (duplicates, unknown
//     edge endpoints, redeclared entry).
//  2. Entry point is set and references an existing node.
//  3. Every non-entry node is reachable from the entry point, following
//     declared edges and router-declared targets. Unreachable nodes are
//     hard errors, not warnings.
//
// Compilation does not reject cycles. Cycle safety is a runtime concern,
// bounded by route-local loop guards and the executor's step limit;
// intentional loops (retry-until-condition) are a first-class use case.
func (g *Graph) Compile() (*CompiledGraph, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	errs := make([]error, len(g.errs))
	copy(errs, g.errs)

	if !g.entrySet || g.entry == "" {
		errs = append(errs, &ValidationError{
			Code:   EntryNotSet,
			Detail: "SetEntry was not called",
		})
	} else if _, exists := g.nodes[g.entry]; !exists {
		errs = append(errs, &ValidationError{
			Code:   UnknownNode,
			Node:   g.entry,
			Detail: "entry point is not declared",
		})
	} else {
		reachable := g.findReachable()
		// Report in declaration order so the error output is stable.
		for _, name := range g.order {
			if !reachable[name] {
				errs = append(errs, &ValidationError{
					Code:   UnreachableNode,
					Node:   name,
					Detail: fmt.Sprintf("not reachable from entry %q", g.entry),
				})
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return g.build(), nil
}

// findReachable runs a breadth-first search from the entry point following
// declared edges (error edges included) and router-declared targets.
func (g *Graph) findReachable() map[string]bool {
	reachable := map[string]bool{g.entry: true}
	queue := []string{g.entry}

	visit := func(target string) {
		if target == END || reachable[target] {
			return
		}
		if _, exists := g.nodes[target]; !exists {
			return
		}
		reachable[target] = true
		queue = append(queue, target)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, e := range g.edges[current] {
			visit(e.to)
		}
		if rd, ok := g.nodes[current].(routeDeclarer); ok {
			for _, target := range rd.Targets() {
				visit(target)
			}
		}
	}
	return reachable
}

// build creates the immutable CompiledGraph from the builder state.
func (g *Graph) build() *CompiledGraph {
	nodes := make(map[string]Node, len(g.nodes))
	for name, n := range g.nodes {
		nodes[name] = n
	}
	order := make([]string, len(g.order))
	copy(order, g.order)

	edges := make(map[string][]edge, len(g.edges))
	for from, list := range g.edges {
		cp := make([]edge, len(list))
		copy(cp, list)
		edges[from] = cp
	}

	return &CompiledGraph{
		nodes: nodes,
		order: order,
		edges: edges,
		entry: g.entry,
	}
}
