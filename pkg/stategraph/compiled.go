package stategraph

// CompiledGraph is an immutable, executable graph produced by Compile.
// It is safe for concurrent use; multiple Run calls may share one instance.
type CompiledGraph struct {
	nodes map[string]Node
	order []string
	edges map[string][]edge
	entry string
}

// Entry returns the entry node name.
func (cg *CompiledGraph) Entry() string {
	return cg.entry
}

// NodeNames returns all node names in declaration order.
func (cg *CompiledGraph) NodeNames() []string {
	out := make([]string, len(cg.order))
	copy(out, cg.order)
	return out
}

// HasNode reports whether a node exists in the graph.
func (cg *CompiledGraph) HasNode(name string) bool {
	_, exists := cg.nodes[name]
	return exists
}

// Node returns the node with the given name, or nil.
func (cg *CompiledGraph) Node(name string) Node {
	return cg.nodes[name]
}

// EdgeInfo describes one declared edge for introspection and visualization.
type EdgeInfo struct {
	From        string
	To          string
	Conditional bool
	OnError     bool
}

// EdgesFrom returns the declared edges leaving a node, in declaration order.
func (cg *CompiledGraph) EdgesFrom(name string) []EdgeInfo {
	list := cg.edges[name]
	out := make([]EdgeInfo, 0, len(list))
	for _, e := range list {
		out = append(out, EdgeInfo{
			From:        name,
			To:          e.to,
			Conditional: e.when != nil,
			OnError:     e.onError,
		})
	}
	return out
}

// errorTarget returns the first error-routed edge target for a node, if any.
func (cg *CompiledGraph) errorTarget(name string) (string, bool) {
	for _, e := range cg.edges[name] {
		if e.onError {
			return e.to, true
		}
	}
	return "", false
}

// routeEdges evaluates a node's non-error edges against the post-merge state
// in declaration order and returns the chosen target, or "" when the node
// has no satisfied outgoing edge (the node exits the frontier without a
// successor).
func (cg *CompiledGraph) routeEdges(name string, s State) string {
	for _, e := range cg.edges[name] {
		if e.onError {
			continue
		}
		if e.when == nil || e.when(s) {
			return e.to
		}
	}
	return ""
}
