package stategraph

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph/failure"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
	"github.com/randalmurphal/stategraph/pkg/stategraph/trace"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// ErrorKey is the reserved state key the executor writes when an invocation
// failure is routed through an error edge. The value is a map with "node",
// "error", and "attempts" entries describing the failure, so the handler
// node can inspect what went wrong.
const ErrorKey = "__error__"

// Run executes the graph with the given initial state.
//
// Execution proceeds in supersteps. The frontier starts as {entry}; each
// step invokes every frontier member against the same pre-step snapshot
// (concurrently when the frontier has more than one member), folds their
// partial updates in frontier order through the reducer registry, then
// routes each member (Command first, error edges on failure, then declared
// edges) to build the next frontier. Execution ends when the frontier
// empties.
//
// On success, returns the final merged state. On error, returns the last
// successfully merged state alongside the error.
//
// Example:
//
//	ctx := stategraph.NewContext(context.Background())
//	final, err := compiled.Run(ctx, stategraph.State{"input": "x"},
//	    stategraph.WithMaxSteps(50))
func (cg *CompiledGraph) Run(ctx Context, initial State, opts ...RunOption) (State, error) {
	if ctx == nil {
		return initial, ErrNilContext
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return cg.run(ctx, &cfg, initial, []string{cg.entry}, 0, 0)
}

// invokeOutcome is the result of one frontier member's invocation.
type invokeOutcome struct {
	update   State
	command  *Command
	attempts int
	err      error
	start    time.Time
	end      time.Time
}

// run is the shared superstep loop behind Run and Resume. startStep and
// startVersion are non-zero when continuing from a checkpoint.
func (cg *CompiledGraph) run(ctx Context, cfg *runConfig, initial State, frontier []string, startStep, startVersion int) (State, error) {
	base, ok := ctx.(*executionContext)
	if !ok {
		base = NewContext(ctx).(*executionContext)
	}
	base = base.withServices(cfg.reducers, cfg.sink, cfg.metrics)
	if cfg.logger != nil {
		base.logger = cfg.logger
	}
	if cfg.runID != "" {
		base.runID = cfg.runID
	}
	runID := base.runID

	mgr := NewManager(base.reducers)
	mgr.version = startVersion
	handler := failure.NewHandler(cfg.retry, cfg.breaker)

	// Run-level deadline. Node contexts derive from runCtx so an elapsed
	// run deadline cancels every in-flight invocation.
	var runCtx context.Context = base
	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(base, cfg.timeout)
		defer cancel()
	}

	startTime := time.Now()
	observability.LogRunStart(base.logger, runID, cg.entry)

	var runSpan oteltrace.Span
	spanCtx := runCtx
	if cfg.tracingEnabled {
		spanCtx, runSpan = cfg.spans.StartRunSpan(runCtx, "stategraph", runID)
	}

	state := initial
	if state == nil {
		state = State{}
	}
	frontier = normalizeFrontier(frontier)
	step := startStep

	finalState, steps, runErr := cg.runLoop(spanCtx, base, cfg, mgr, handler, state, frontier, step, runID)

	duration := time.Since(startTime)
	cfg.metrics.RecordGraphRun(base, runErr == nil, duration, steps)
	if cfg.tracingEnabled {
		cfg.spans.EndSpanWithError(runSpan, runErr)
	}
	if runErr != nil {
		observability.LogRunError(base.logger, runID, runErr, float64(duration.Milliseconds()), lastNodeOf(runErr))
	} else {
		observability.LogRunComplete(base.logger, runID, float64(duration.Milliseconds()), steps)
	}

	return finalState, runErr
}

// runLoop drives the supersteps. Returns the final state, the number of
// steps executed, and any terminal error.
func (cg *CompiledGraph) runLoop(
	runCtx context.Context,
	base *executionContext,
	cfg *runConfig,
	mgr *Manager,
	handler *failure.Handler,
	state State,
	frontier []string,
	step int,
	runID string,
) (State, int, error) {
	steps := 0

	for len(frontier) > 0 {
		step++
		steps++
		if step > cfg.maxSteps {
			return state, steps, &StepLimitError{Limit: cfg.maxSteps, Frontier: frontier, State: state}
		}

		if err := runCtx.Err(); err != nil {
			return state, steps, cg.contextError(cfg, frontier[0], state, err)
		}

		cpBefore := mgr.LatestVersion()
		outcomes := cg.invokeFrontier(runCtx, base, cfg, handler, frontier, step, state)

		// If the run context died mid-step, classify as run timeout or
		// cancellation rather than blaming individual nodes.
		if err := runCtx.Err(); err != nil {
			state = cg.foldSuccesses(mgr, state, outcomes)
			cg.emitStepEvents(base, cfg, runID, frontier, step, outcomes, cpBefore, mgr.LatestVersion())
			return state, steps, cg.contextError(cfg, frontier[0], state, err)
		}

		// Fold updates in frontier order: successful updates, Command
		// updates, and error detail for failures that have an error edge.
		updates := make([]State, 0, len(frontier))
		for i, name := range frontier {
			out := outcomes[i]
			switch {
			case out.err == nil && out.command != nil:
				updates = append(updates, out.command.Update)
			case out.err == nil:
				updates = append(updates, out.update)
			default:
				if _, ok := cg.errorTarget(name); ok && routableError(out.err) {
					updates = append(updates, State{
						ErrorKey: map[string]any{
							"node":     name,
							"error":    out.err.Error(),
							"attempts": out.attempts,
						},
					})
				}
			}
		}
		state = mgr.Fold(state, updates)

		// Route each member in frontier order. The next frontier is the
		// de-duplicated union of successors in resolution order.
		next := make([]string, 0, len(frontier))
		var stepErr error
		for i, name := range frontier {
			out := outcomes[i]
			if out.err != nil {
				target, ok := cg.errorTarget(name)
				if ok && routableError(out.err) {
					next = append(next, target)
					continue
				}
				if stepErr == nil {
					stepErr = cg.escalate(name, out, state)
				}
				continue
			}
			if cg.nodes[name].Kind() == KindTerminal {
				continue
			}
			if out.command != nil {
				for _, target := range out.command.Goto {
					if target != END && !cg.HasNode(target) {
						if stepErr == nil {
							stepErr = &RoutingError{Node: name, Target: target}
						}
						continue
					}
					next = append(next, target)
				}
				continue
			}
			if target := cg.routeEdges(name, state); target != "" {
				next = append(next, target)
			}
		}
		next = normalizeFrontier(next)

		if stepErr != nil {
			cg.emitStepEvents(base, cfg, runID, frontier, step, outcomes, cpBefore, mgr.LatestVersion())
			return state, steps, stepErr
		}

		// Checkpoint after the merge, at the configured cadence.
		cpAfter := cpBefore
		if cfg.checkpointStore != nil && step%cfg.checkpointEvery == 0 {
			version, err := cg.saveCheckpoint(base, cfg, mgr, runID, frontier, step, state, next)
			if err != nil {
				cg.emitStepEvents(base, cfg, runID, frontier, step, outcomes, cpBefore, mgr.LatestVersion())
				return state, steps, err
			}
			cpAfter = version
			if cfg.tracingEnabled && version > cpBefore {
				cfg.spans.AddSpanEvent(runCtx, "checkpoint_saved",
					attribute.Int("checkpoint.version", version),
					attribute.Int("step", step))
			}
		}

		cg.emitStepEvents(base, cfg, runID, frontier, step, outcomes, cpBefore, cpAfter)
		frontier = next
	}

	return state, steps, nil
}

// invokeFrontier invokes every frontier member against the same pre-step
// snapshot. Members run concurrently when the frontier has more than one;
// outcomes are indexed by frontier position so later folding never depends
// on completion order.
func (cg *CompiledGraph) invokeFrontier(
	runCtx context.Context,
	base *executionContext,
	cfg *runConfig,
	handler *failure.Handler,
	frontier []string,
	step int,
	state State,
) []invokeOutcome {
	outcomes := make([]invokeOutcome, len(frontier))
	if len(frontier) == 1 {
		outcomes[0] = cg.invokeNode(runCtx, base, cfg, handler, frontier[0], step, state)
		return outcomes
	}

	var wg sync.WaitGroup
	for i, name := range frontier {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			outcomes[i] = cg.invokeNode(runCtx, base, cfg, handler, name, step, state)
		}(i, name)
	}
	wg.Wait()
	return outcomes
}

// invokeNode runs one node under the retry policy and breaker, with panic
// recovery and the per-node deadline applied to every attempt.
func (cg *CompiledGraph) invokeNode(
	runCtx context.Context,
	base *executionContext,
	cfg *runConfig,
	handler *failure.Handler,
	name string,
	step int,
	state State,
) invokeOutcome {
	out := invokeOutcome{start: time.Now()}
	node := cg.nodes[name]

	observability.LogNodeStart(base.logger, name, step)
	nodeCtx := runCtx
	var nodeSpan oteltrace.Span
	if cfg.tracingEnabled {
		nodeCtx, nodeSpan = cfg.spans.StartNodeSpan(runCtx, name, step)
	}

	result, attempts, err := failure.Invoke(nodeCtx, handler, name, func(actx context.Context, attempt int) (Result, error) {
		return cg.attemptNode(actx, base, cfg, node, name, step, attempt, state)
	})

	out.end = time.Now()
	out.attempts = attempts
	out.err = err
	if err == nil {
		out.update = result.Update
		out.command = result.Command
	}

	cfg.metrics.RecordNodeInvocation(base, name, out.end.Sub(out.start), attempts, err)
	if cfg.tracingEnabled {
		cfg.spans.EndSpanWithError(nodeSpan, err)
	}
	if err != nil {
		observability.LogNodeError(base.logger, name, err, attempts)
	} else {
		observability.LogNodeComplete(base.logger, name, float64(out.end.Sub(out.start).Milliseconds()))
	}
	return out
}

// attemptNode performs a single invocation attempt. The per-node deadline is
// enforced hard: when it elapses the attempt returns a node-scoped
// *TimeoutError even if the node function never observes its context.
func (cg *CompiledGraph) attemptNode(
	actx context.Context,
	base *executionContext,
	cfg *runConfig,
	node Node,
	name string,
	step, attempt int,
	state State,
) (Result, error) {
	ictx := actx
	if cfg.nodeTimeout > 0 {
		var cancel context.CancelFunc
		ictx, cancel = context.WithTimeout(actx, cfg.nodeTimeout)
		defer cancel()
	}
	nctx := base.withInvocation(ictx, name, step, attempt)
	snapshot := state.Clone()

	type attemptResult struct {
		result Result
		err    error
	}
	done := make(chan attemptResult, 1)
	go func() {
		result, err := safeInvoke(node, nctx, snapshot)
		done <- attemptResult{result, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && cfg.nodeTimeout > 0 && errors.Is(ictx.Err(), context.DeadlineExceeded) && actx.Err() == nil {
			return Result{}, &TimeoutError{Scope: "node", Node: name, Limit: cfg.nodeTimeout, Cause: context.DeadlineExceeded}
		}
		return r.result, r.err
	case <-ictx.Done():
		if cfg.nodeTimeout > 0 && errors.Is(ictx.Err(), context.DeadlineExceeded) && actx.Err() == nil {
			return Result{}, &TimeoutError{Scope: "node", Node: name, Limit: cfg.nodeTimeout, Cause: context.DeadlineExceeded}
		}
		return Result{}, ictx.Err()
	}
}

// safeInvoke calls the node with panic recovery.
func safeInvoke(node Node, ctx Context, snapshot State) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{}
			err = &PanicError{
				Node:  node.Name(),
				Value: r,
				Stack: string(debug.Stack()),
			}
		}
	}()
	return node.Invoke(ctx, snapshot)
}

// saveCheckpoint freezes the post-merge state into a new version, persists
// it, and returns the version. Persistence failures are logged and ignored
// unless WithCheckpointFailureFatal is set.
func (cg *CompiledGraph) saveCheckpoint(
	base *executionContext,
	cfg *runConfig,
	mgr *Manager,
	runID string,
	frontier []string,
	step int,
	state State,
	nextFrontier []string,
) (int, error) {
	label := strings.Join(frontier, ",")
	cp, err := mgr.Checkpoint(runID, label, step, state, nextFrontier)
	if err != nil {
		if cfg.checkpointFailureFatal {
			return 0, err
		}
		observability.LogCheckpointError(base.logger, label, "serialize", err)
		return mgr.LatestVersion(), nil
	}

	data, err := cp.Marshal()
	if err != nil {
		if cfg.checkpointFailureFatal {
			return 0, err
		}
		observability.LogCheckpointError(base.logger, label, "marshal", err)
		return cp.Version, nil
	}

	if err := cfg.checkpointStore.Save(runID, cp.Version, data); err != nil {
		if cfg.checkpointFailureFatal {
			return 0, err
		}
		observability.LogCheckpointError(base.logger, label, "save", err)
		return cp.Version, nil
	}

	observability.LogCheckpoint(base.logger, label, cp.Version, len(data))
	cfg.metrics.RecordCheckpoint(base, label, int64(len(data)))
	return cp.Version, nil
}

// emitStepEvents publishes one trace event per frontier member, in frontier
// order, bracketed by the checkpoint versions around the step.
func (cg *CompiledGraph) emitStepEvents(
	base *executionContext,
	cfg *runConfig,
	runID string,
	frontier []string,
	step int,
	outcomes []invokeOutcome,
	cpBefore, cpAfter int,
) {
	for i, name := range frontier {
		out := outcomes[i]
		evt := trace.Event{
			RunID:            runID,
			Node:             name,
			Step:             step,
			Attempts:         out.attempts,
			Start:            out.start,
			End:              out.end,
			Duration:         out.end.Sub(out.start),
			Outcome:          outcomeOf(out.err),
			CheckpointBefore: cpBefore,
			CheckpointAfter:  cpAfter,
		}
		if out.err != nil {
			evt.Err = out.err.Error()
		}
		cfg.sink.Emit(evt)
	}
}

// outcomeOf classifies an invocation error for the trace.
func outcomeOf(err error) trace.Outcome {
	switch {
	case err == nil:
		return trace.OutcomeSuccess
	case errors.Is(err, ErrExecutionTimeout) || errors.Is(err, context.DeadlineExceeded):
		return trace.OutcomeTimeout
	case errors.Is(err, context.Canceled):
		return trace.OutcomeCancelled
	default:
		return trace.OutcomeError
	}
}

// foldSuccesses merges only the successful outcomes, in frontier order.
// Used when the run dies mid-step so the returned state reflects every
// update that completed.
func (cg *CompiledGraph) foldSuccesses(mgr *Manager, state State, outcomes []invokeOutcome) State {
	updates := make([]State, 0, len(outcomes))
	for _, out := range outcomes {
		if out.err != nil {
			continue
		}
		if out.command != nil {
			updates = append(updates, out.command.Update)
		} else {
			updates = append(updates, out.update)
		}
	}
	return mgr.Fold(state, updates)
}

// escalate converts a failed outcome into the error returned from Run.
// Timeouts and open circuits surface as themselves; everything else is
// wrapped in an InvocationError carrying the attempt count.
func (cg *CompiledGraph) escalate(name string, out invokeOutcome, state State) error {
	var timeoutErr *TimeoutError
	if errors.As(out.err, &timeoutErr) {
		timeoutErr.State = state
		return timeoutErr
	}
	var openErr *failure.CircuitOpenError
	if errors.As(out.err, &openErr) {
		return openErr
	}
	return &InvocationError{Node: name, Attempts: out.attempts, Err: out.err}
}

// routableError reports whether a failure may be routed through an error
// edge. Timeouts are terminal for their scope and never re-routed.
func routableError(err error) bool {
	return !errors.Is(err, ErrExecutionTimeout) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, context.Canceled)
}

// contextError classifies a dead run context as a run-scoped timeout or an
// external cancellation, carrying the last merged state either way.
func (cg *CompiledGraph) contextError(cfg *runConfig, node string, state State, cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) {
		return &TimeoutError{Scope: "run", Limit: cfg.timeout, State: state, Cause: cause}
	}
	return &CancellationError{Node: node, State: state, Cause: cause}
}

// normalizeFrontier de-duplicates the frontier preserving first-seen order
// and drops END and empty targets.
func normalizeFrontier(frontier []string) []string {
	out := make([]string, 0, len(frontier))
	seen := make(map[string]struct{}, len(frontier))
	for _, name := range frontier {
		if name == "" || name == END {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// lastNodeOf extracts the node a terminal error points at, for run-level
// logging.
func lastNodeOf(err error) string {
	var invErr *InvocationError
	if errors.As(err, &invErr) {
		return invErr.Node
	}
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return timeoutErr.Node
	}
	var stepErr *StepLimitError
	if errors.As(err, &stepErr) && len(stepErr.Frontier) > 0 {
		return stepErr.Frontier[0]
	}
	var cancelErr *CancellationError
	if errors.As(err, &cancelErr) {
		return cancelErr.Node
	}
	var routeErr *RoutingError
	if errors.As(err, &routeErr) {
		return routeErr.Node
	}
	return ""
}
