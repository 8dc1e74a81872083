package stategraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
	"github.com/randalmurphal/stategraph/pkg/stategraph/trace"
)

// Context provides execution context to nodes. It extends context.Context
// with orchestrator services and per-invocation metadata.
//
// Context is immutable after creation. The executor creates derived contexts
// for each invocation with updated node, step, and attempt fields and an
// enriched logger.
type Context interface {
	context.Context

	// Services

	// Logger returns the configured logger, enriched with run and node
	// context. Never nil; defaults to slog.Default().
	Logger() *slog.Logger

	// Reducers returns the reducer registry for this execution. Parallel
	// nodes use it to fold sub-node updates deterministically.
	Reducers() *Reducers

	// Sink returns the trace sink for this execution. Never nil; defaults
	// to a discard sink.
	Sink() trace.Sink

	// Metrics returns the metrics recorder for this execution. Never nil;
	// defaults to a no-op recorder.
	Metrics() observability.MetricsRecorder

	// Metadata

	// RunID returns the unique identifier for this execution run.
	// Auto-generated if not configured.
	RunID() string

	// NodeName returns the node currently being invoked.
	// Empty before execution starts.
	NodeName() string

	// Step returns the current execution step (1-based).
	// Zero before execution starts.
	Step() int

	// Attempt returns the retry attempt number (1 = first attempt).
	Attempt() int
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger   *slog.Logger
	reducers *Reducers
	sink     trace.Sink
	metrics  observability.MetricsRecorder
	runID    string
	node     string
	step     int
	attempt  int
}

func (c *executionContext) Logger() *slog.Logger { return c.logger }

func (c *executionContext) Reducers() *Reducers { return c.reducers }

func (c *executionContext) Sink() trace.Sink { return c.sink }

func (c *executionContext) Metrics() observability.MetricsRecorder { return c.metrics }

func (c *executionContext) RunID() string { return c.runID }

func (c *executionContext) NodeName() string { return c.node }

func (c *executionContext) Step() int { return c.step }

func (c *executionContext) Attempt() int { return c.attempt }

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context. The executor enriches it with
// run_id, node, step, and attempt fields per invocation.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithContextRunID sets the run identifier. Auto-generated when unset.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
	}
}

// NewContext creates an execution context from a standard context.
//
// Example:
//
//	ctx := stategraph.NewContext(context.Background(),
//	    stategraph.WithLogger(myLogger),
//	    stategraph.WithContextRunID("run-123"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context:  ctx,
		logger:   slog.Default(),
		reducers: NewReducers(),
		sink:     trace.Discard{},
		metrics:  observability.NoopMetrics{},
		runID:    uuid.New().String(),
		attempt:  1,
	}
	for _, opt := range opts {
		opt(ec)
	}
	return ec
}

// withInvocation returns a derived context for one node invocation, with an
// enriched logger. The std parameter carries any per-invocation deadline.
func (c *executionContext) withInvocation(std context.Context, node string, step, attempt int) *executionContext {
	return &executionContext{
		Context:  std,
		logger:   observability.EnrichLogger(c.logger, c.runID, node, step, attempt),
		reducers: c.reducers,
		sink:     c.sink,
		metrics:  c.metrics,
		runID:    c.runID,
		node:     node,
		step:     step,
		attempt:  attempt,
	}
}

// withServices returns a copy with the executor's run-scoped services set.
func (c *executionContext) withServices(reducers *Reducers, sink trace.Sink, metrics observability.MetricsRecorder) *executionContext {
	out := *c
	if reducers != nil {
		out.reducers = reducers
	}
	if sink != nil {
		out.sink = sink
	}
	if metrics != nil {
		out.metrics = metrics
	}
	return &out
}
