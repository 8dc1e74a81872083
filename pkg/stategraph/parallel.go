package stategraph

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph/trace"
)

// Strategy is a parallel aggregation strategy.
type Strategy string

const (
	// StrategyAll waits for every sub-node. Any failure fails the whole
	// node unless failure tolerance is enabled.
	StrategyAll Strategy = "all"
	// StrategyFirst returns as soon as one sub-node succeeds, cancelling
	// the rest. Cancellation of the losers is the normal path, not an
	// error.
	StrategyFirst Strategy = "first"
	// StrategyMajority returns once more than half of the sub-nodes have
	// succeeded, or fails as soon as a majority becomes mathematically
	// unreachable, whichever comes first.
	StrategyMajority Strategy = "majority"
)

// ParallelNode fans out to independently invoked sub-nodes. Every sub-node
// sees the same state snapshot; the surviving sub-updates are folded in
// declared sub-node order through the execution's reducers, never in
// completion order, so results are reproducible regardless of scheduling.
//
// Sub-nodes do not route: a Command returned by a sub-node contributes its
// Update and nothing else. Routing after the fan-out belongs to the parallel
// node's own edges.
//
// Example:
//
//	fan := stategraph.NewParallel("enrich", fetchA, fetchB, fetchC).
//	    WithStrategy(stategraph.StrategyMajority).
//	    WithMaxWorkers(2).
//	    WithSubTimeout(5 * time.Second)
type ParallelNode struct {
	name       string
	subs       []Node
	strategy   Strategy
	maxWorkers int
	subTimeout time.Duration
	tolerate   bool
}

// NewParallel creates a parallel node over the given sub-nodes, with
// strategy "all". Panics if name is empty or no sub-nodes are given.
func NewParallel(name string, subs ...Node) *ParallelNode {
	if name == "" {
		panic("stategraph: parallel node name cannot be empty")
	}
	if len(subs) == 0 {
		panic("stategraph: parallel node needs at least one sub-node")
	}
	for _, sub := range subs {
		if sub == nil {
			panic("stategraph: parallel sub-node cannot be nil")
		}
	}
	return &ParallelNode{name: name, subs: subs, strategy: StrategyAll}
}

// WithStrategy sets the aggregation strategy.
func (p *ParallelNode) WithStrategy(s Strategy) *ParallelNode {
	p.strategy = s
	return p
}

// WithMaxWorkers bounds how many sub-nodes run at once. Zero means
// unbounded.
func (p *ParallelNode) WithMaxWorkers(n int) *ParallelNode {
	p.maxWorkers = n
	return p
}

// WithSubTimeout sets a deadline applied to each sub-node invocation
// independently.
func (p *ParallelNode) WithSubTimeout(d time.Duration) *ParallelNode {
	p.subTimeout = d
	return p
}

// TolerateFailures makes strategy "all" accept partial results: sub-node
// failures are dropped instead of failing the whole node, as long as at
// least one sub-node succeeds.
func (p *ParallelNode) TolerateFailures() *ParallelNode {
	p.tolerate = true
	return p
}

// Name implements Node.
func (p *ParallelNode) Name() string { return p.name }

// Kind implements Node.
func (p *ParallelNode) Kind() Kind { return KindParallel }

// SubNames returns the sub-node names in declared order.
func (p *ParallelNode) SubNames() []string {
	out := make([]string, len(p.subs))
	for i, sub := range p.subs {
		out[i] = sub.Name()
	}
	return out
}

// subResult is one sub-node's outcome, stored at its declared index.
type subResult struct {
	update State
	err    error
	start  time.Time
	end    time.Time
}

// Invoke implements Node.
func (p *ParallelNode) Invoke(ctx Context, snapshot State) (Result, error) {
	n := len(p.subs)
	pctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sem chan struct{}
	if p.maxWorkers > 0 {
		sem = make(chan struct{}, p.maxWorkers)
	}

	results := make([]subResult, n)
	completions := make(chan int, n)
	var wg sync.WaitGroup

	for i, sub := range p.subs {
		wg.Add(1)
		go func(i int, sub Node) {
			defer wg.Done()
			r := subResult{start: time.Now()}

			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-pctx.Done():
					r.err = pctx.Err()
					r.end = time.Now()
					results[i] = r
					completions <- i
					return
				}
			}

			r.update, r.err = p.invokeSub(ctx, pctx, sub, snapshot)
			r.end = time.Now()
			results[i] = r
			completions <- i
		}(i, sub)
	}

	// Aggregation decision. Completion order matters only here; the fold
	// below is strictly by declared index.
	need := n
	if p.strategy == StrategyMajority {
		need = n/2 + 1
	}
	succeeded, failed := 0, 0
	winner := -1
	decided := false
	var aggErr error
	var causes []error

	// Only slots whose completion has been received may be read here; a
	// worker that has not sent on completions yet may still be writing its
	// slot.
	for done := 0; done < n && !decided; done++ {
		i := <-completions
		if results[i].err == nil {
			succeeded++
			if winner < 0 {
				winner = i
			}
		} else {
			failed++
			if !errors.Is(results[i].err, context.Canceled) {
				causes = append(causes, results[i].err)
			}
		}

		switch p.strategy {
		case StrategyFirst:
			if succeeded >= 1 {
				decided = true
			} else if failed == n {
				aggErr = p.aggregationError(succeeded, failed, causes)
				decided = true
			}
		case StrategyMajority:
			if succeeded >= need {
				decided = true
			} else if n-failed < need {
				aggErr = p.aggregationError(succeeded, failed, causes)
				decided = true
			}
		}
	}

	// Cancel the losers and wait for every worker, so their trace events
	// are emitted before the parallel node itself completes. Past wg.Wait
	// every slot is safe to read.
	cancel()
	wg.Wait()
	close(completions)
	for i := range completions {
		if results[i].err == nil {
			succeeded++
		} else {
			failed++
			if !errors.Is(results[i].err, context.Canceled) {
				causes = append(causes, results[i].err)
			}
		}
	}

	p.emitSubEvents(ctx, results)
	ctx.Metrics().RecordParallelBranches(ctx, p.name, n, succeeded)

	if aggErr != nil {
		return Result{}, aggErr
	}
	if p.strategy == StrategyAll {
		if failed > 0 && !p.tolerate {
			return Result{}, p.aggregationError(succeeded, failed, causes)
		}
		if succeeded == 0 {
			return Result{}, p.aggregationError(succeeded, failed, causes)
		}
	}

	// Fold survivors in declared sub-node order. Under "first" only the
	// winning sub-node survives.
	updates := make([]State, 0, n)
	for i := range p.subs {
		if p.strategy == StrategyFirst && i != winner {
			continue
		}
		if results[i].err == nil {
			updates = append(updates, results[i].update)
		}
	}
	merged := NewManager(ctx.Reducers()).Fold(State{}, updates)
	return Result{Update: merged}, nil
}

// invokeSub runs one sub-node with its own deadline. The deadline is
// enforced hard: an elapsed sub-timeout surfaces as a parallel-scoped
// *TimeoutError even if the sub-node never observes its context.
func (p *ParallelNode) invokeSub(ctx Context, pctx context.Context, sub Node, snapshot State) (State, error) {
	ictx := pctx
	if p.subTimeout > 0 {
		var cancel context.CancelFunc
		ictx, cancel = context.WithTimeout(pctx, p.subTimeout)
		defer cancel()
	}
	sctx := subContext(ctx, ictx, sub.Name())

	type subDone struct {
		result Result
		err    error
	}
	done := make(chan subDone, 1)
	go func() {
		result, err := safeInvoke(sub, sctx, snapshot.Clone())
		done <- subDone{result, err}
	}()

	select {
	case d := <-done:
		if d.err != nil {
			return nil, d.err
		}
		if d.result.Command != nil {
			return d.result.Command.Update, nil
		}
		return d.result.Update, nil
	case <-ictx.Done():
		if p.subTimeout > 0 && errors.Is(ictx.Err(), context.DeadlineExceeded) && pctx.Err() == nil {
			return nil, &TimeoutError{Scope: "parallel", Node: sub.Name(), Limit: p.subTimeout, Cause: context.DeadlineExceeded}
		}
		return nil, ictx.Err()
	}
}

// emitSubEvents publishes one trace event per sub-node, in declared order.
// Losing branches under first/majority show up as cancelled, not failed.
func (p *ParallelNode) emitSubEvents(ctx Context, results []subResult) {
	for i, sub := range p.subs {
		r := results[i]
		evt := trace.Event{
			RunID:    ctx.RunID(),
			Node:     sub.Name(),
			Step:     ctx.Step(),
			Attempts: 1,
			Start:    r.start,
			End:      r.end,
			Duration: r.end.Sub(r.start),
			Outcome:  outcomeOf(r.err),
		}
		if r.err != nil {
			evt.Err = r.err.Error()
		}
		ctx.Sink().Emit(evt)
	}
}

// aggregationError snapshots the decision point into an *AggregationError.
// Causes arrive pre-collected from completions already received, so building
// the error never touches a slot a running worker still owns.
func (p *ParallelNode) aggregationError(succeeded, failed int, causes []error) error {
	return &AggregationError{
		Node:      p.name,
		Strategy:  string(p.strategy),
		Succeeded: succeeded,
		Failed:    failed,
		Causes:    causes,
	}
}

// subContext derives a Context for a sub-node invocation, carrying the
// cancellable deadline context while keeping the execution's services.
func subContext(parent Context, std context.Context, node string) Context {
	if ec, ok := parent.(*executionContext); ok {
		return ec.withInvocation(std, node, ec.step, 1)
	}
	return &executionContext{
		Context:  std,
		logger:   parent.Logger().With("node", node),
		reducers: parent.Reducers(),
		sink:     parent.Sink(),
		metrics:  parent.Metrics(),
		runID:    parent.RunID(),
		node:     node,
		step:     parent.Step(),
		attempt:  1,
	}
}
