package stategraph

// END is the terminal target identifier.
// Use this as an edge or Command target to indicate the graph should terminate.
const END = "__end__"

// Kind identifies the built-in node varieties. The executor dispatches every
// kind through the same Invoke contract; Kind exists for introspection and
// visualization, not for type-specific branching.
type Kind int

const (
	// KindPlain is an ordinary unit of work.
	KindPlain Kind = iota
	// KindRouter is a node whose computation is purely a routing decision.
	KindRouter
	// KindParallel is a fan-out node wrapping independently invoked sub-nodes.
	KindParallel
	// KindTerminal is a node that never has successors, regardless of edges.
	KindTerminal
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindRouter:
		return "router"
	case KindParallel:
		return "parallel"
	case KindTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Command is an explicit routing override returned by a node. When a node
// returns a Command, the executor applies Update (if any) and schedules the
// Goto targets directly, bypassing edge evaluation entirely.
//
// Command is strictly higher priority than any statically declared edge from
// the same node. A node that returns a Command in a step never has its edges
// evaluated in that step; this is a contract, not an implementation detail.
//
// An empty Goto means the node has no successor.
type Command struct {
	// Update is a partial-state update applied before routing.
	Update State

	// Goto names the next node(s) to schedule. Targets must be declared
	// nodes or END.
	Goto []string
}

// Result is the outcome of a node invocation: either a partial-state update,
// or a Command that both updates state and overrides routing.
type Result struct {
	// Update is a partial-state update merged via the registered reducers.
	// Ignored when Command is set (use Command.Update instead).
	Update State

	// Command, when non-nil, overrides edge evaluation for this node.
	Command *Command
}

// Node is the polymorphic unit of work. Nodes own no shared state: they
// receive a read-only snapshot and return a partial update or a Command,
// never a mutated reference.
//
// Nodes are constructed once at graph-build time and may be invoked zero or
// more times during execution (more than once only via loop edges).
type Node interface {
	// Name returns the unique node name.
	Name() string

	// Kind returns the node's type tag.
	Kind() Kind

	// Invoke runs the node against a state snapshot.
	Invoke(ctx Context, snapshot State) (Result, error)
}

// NodeFunc is the signature for plain function nodes. The returned State is
// a partial update, not a replacement: only the keys it contains are merged.
//
// Example:
//
//	stategraph.Func("count", func(ctx stategraph.Context, s stategraph.State) (stategraph.State, error) {
//	    n, _ := s["count"].(int)
//	    return stategraph.State{"count": n + 1}, nil
//	})
type NodeFunc func(ctx Context, snapshot State) (State, error)

// funcNode adapts a NodeFunc to the Node interface.
type funcNode struct {
	name string
	kind Kind
	fn   NodeFunc
}

// Func wraps a function as a plain node.
//
// Panics if name is empty or fn is nil; these are programmer errors, caught
// at construction rather than at Compile.
func Func(name string, fn NodeFunc) Node {
	return newFuncNode(name, KindPlain, fn)
}

// Terminal wraps a function as a terminal node. Terminal nodes remove
// themselves from the frontier without successors, even when edges are
// declared from them.
func Terminal(name string, fn NodeFunc) Node {
	return newFuncNode(name, KindTerminal, fn)
}

func newFuncNode(name string, kind Kind, fn NodeFunc) Node {
	if name == "" {
		panic("stategraph: node name cannot be empty")
	}
	if fn == nil {
		panic("stategraph: node function cannot be nil")
	}
	return &funcNode{name: name, kind: kind, fn: fn}
}

func (n *funcNode) Name() string { return n.name }

func (n *funcNode) Kind() Kind { return n.kind }

func (n *funcNode) Invoke(ctx Context, snapshot State) (Result, error) {
	update, err := n.fn(ctx, snapshot)
	if err != nil {
		return Result{}, err
	}
	return Result{Update: update}, nil
}

// Goto builds a Result carrying a pure routing Command.
func Goto(targets ...string) Result {
	return Result{Command: &Command{Goto: targets}}
}

// UpdateAndGoto builds a Result carrying a Command that both updates state
// and overrides routing.
func UpdateAndGoto(update State, targets ...string) Result {
	return Result{Command: &Command{Update: update, Goto: targets}}
}
