/*
Package stategraph provides graph-based task orchestration over a shared,
reducer-merged state.

# Overview

stategraph is a Go library for building and executing directed graphs where
nodes perform work against a state snapshot and edges define flow. Execution
proceeds in supersteps over a frontier of nodes, so branches of the graph run
concurrently while state merging stays deterministic. It ships with
checkpointing, retry and circuit-breaker protection, bounded loops, parallel
fan-out, and OpenTelemetry observability.

# Basic Usage

Create a graph with nodes and edges, then compile and run:

	func process(ctx stategraph.Context, s stategraph.State) (stategraph.State, error) {
	    input := s.String("input", "")
	    return stategraph.State{"output": "Processed: " + input}, nil
	}

	func main() {
	    graph := stategraph.New().
	        AddFunc("process", process).
	        AddEdge("process", stategraph.END).
	        SetEntry("process")

	    compiled, err := graph.Compile()
	    if err != nil {
	        log.Fatal(err)
	    }

	    ctx := stategraph.NewContext(context.Background())
	    final, err := compiled.Run(ctx, stategraph.State{"input": "hello"})
	    if err != nil {
	        log.Fatal(err)
	    }
	    fmt.Println(final["output"]) // "Processed: hello"
	}

Nodes return partial updates: only the keys they name are merged, through the
per-key reducers registered for the run (overwrite by default, Append for
ordered sequences, MergeMaps for nested maps).

# Conditional Branching

Guard edges with predicates over the post-merge state, or use a RouterNode
when the decision deserves a node of its own:

	graph.AddConditionalEdge("review", "publish", stategraph.Expr(`approved == true`)).
	    AddEdge("review", "revise")

	router := stategraph.NewRouter("triage").
	    Route("urgent", stategraph.Expr(`priority > 8`)).
	    Route("spam", stategraph.Equals("category", "spam")).
	    Default("inbox")

Edges from the same source are evaluated in declaration order; the first
satisfied edge wins. A node can also return a Command to override its edges
entirely for one step.

# Loops

Routers declare bounded loops: a while condition, a route-local iteration
limit, and a fallback target once the limit is reached:

	stategraph.NewRouter("check").
	    Loop("refine", stategraph.Equals("done", false), 3, "give-up").
	    Default(stategraph.END)

The executor's global step limit (default 1000, WithMaxSteps) backstops every
loop regardless of its own bound.

# Parallel Fan-Out

A ParallelNode invokes sub-nodes concurrently against the same snapshot and
folds the surviving updates in declared order:

	fan := stategraph.NewParallel("enrich", fetchA, fetchB, fetchC).
	    WithStrategy(stategraph.StrategyMajority).
	    WithMaxWorkers(2).
	    WithSubTimeout(5 * time.Second)

# Checkpointing

Enable crash recovery with a checkpoint store:

	store, err := checkpoint.NewSQLiteStore("./checkpoints.db")
	defer store.Close()

	final, err := compiled.Run(ctx, initial,
	    stategraph.WithCheckpointing(store, "run-123"))

	// Resume after crash
	final, err = compiled.Resume(ctx, store, "run-123")

Checkpoints are versioned snapshots of the merged state, written after each
step (or every n steps with WithCheckpointEvery). Resume continues from the
latest checkpoint's recorded frontier.

# Failure Handling

Wrap invocations with retries and per-node circuit breakers:

	final, err := compiled.Run(ctx, initial,
	    stategraph.WithRetryPolicy(failure.DefaultPolicy),
	    stategraph.WithCircuitBreaker(failure.DefaultBreaker))

A node that still fails is routed through its error edge when one is
declared (AddErrorEdge); otherwise the run aborts with an *InvocationError
carrying the attempt count.

# Observability

Enable logging, trace events, metrics, and spans per run:

	rec := trace.NewRecorder()
	final, err := compiled.Run(ctx, initial,
	    stategraph.WithRunLogger(logger),
	    stategraph.WithTraceSink(rec),
	    stategraph.WithMetrics(observability.NewMetricsRecorder()),
	    stategraph.WithTracing(observability.NewSpanManager()))

Every node invocation produces one ordered trace event with its outcome,
attempt count, and the checkpoint versions bracketing it.
*/
package stategraph
