package stategraph

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
	"github.com/randalmurphal/stategraph/pkg/stategraph/failure"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
	"github.com/randalmurphal/stategraph/pkg/stategraph/trace"
)

// runConfig holds configuration for one execution.
type runConfig struct {
	maxSteps    int
	timeout     time.Duration
	nodeTimeout time.Duration

	reducers *Reducers

	checkpointStore        checkpoint.Store
	runID                  string
	checkpointEvery        int
	checkpointFailureFatal bool

	retry   failure.Policy
	breaker *failure.BreakerConfig

	sink   trace.Sink
	logger *slog.Logger

	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		maxSteps:        1000,
		checkpointEvery: 1,
		retry:           failure.NoRetry,
		sink:            trace.Discard{},
		metrics:         observability.NoopMetrics{},
		spans:           observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithMaxSteps sets the maximum number of execution steps. Default: 1000.
//
// This is the global backstop against unbounded cycles, independent of any
// route-local loop guard. Exceeding it returns a *StepLimitError.
func WithMaxSteps(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxSteps = n
		}
	}
}

// WithTimeout sets the overall execution deadline. Exceeding it cancels all
// in-flight invocations and returns a *TimeoutError carrying the last
// successfully merged state. Default: no deadline.
func WithTimeout(d time.Duration) RunOption {
	return func(c *runConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithNodeTimeout sets a per-invocation deadline applied to every node.
// Default: no deadline.
func WithNodeTimeout(d time.Duration) RunOption {
	return func(c *runConfig) {
		if d > 0 {
			c.nodeTimeout = d
		}
	}
}

// WithReducers sets the reducer registry used to merge node updates.
func WithReducers(r *Reducers) RunOption {
	return func(c *runConfig) {
		if r != nil {
			c.reducers = r
		}
	}
}

// WithReducer registers a single per-key reducer, creating the registry if
// needed. May be repeated.
func WithReducer(key string, r Reducer) RunOption {
	return func(c *runConfig) {
		if c.reducers == nil {
			c.reducers = NewReducers()
		}
		c.reducers.Register(key, r)
	}
}

// WithRunID sets the run identifier used for logging, trace events, and
// checkpoint addressing. Defaults to the context's auto-generated run ID.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		if id != "" {
			c.runID = id
		}
	}
}

// WithCheckpointing enables checkpoint persistence for the run. A checkpoint
// is taken after every merge (subject to WithCheckpointEvery) and saved to
// the store under runID.
func WithCheckpointing(store checkpoint.Store, runID string) RunOption {
	return func(c *runConfig) {
		c.checkpointStore = store
		c.runID = runID
	}
}

// WithCheckpointEvery sets the checkpoint cadence: persist one checkpoint
// every n steps. Default: 1 (every step).
func WithCheckpointEvery(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.checkpointEvery = n
		}
	}
}

// WithCheckpointFailureFatal makes checkpoint persistence failures abort the
// run. By default they are logged and execution continues.
func WithCheckpointFailureFatal() RunOption {
	return func(c *runConfig) {
		c.checkpointFailureFatal = true
	}
}

// WithRetryPolicy sets the retry policy wrapping every node invocation.
// Default: no retries.
func WithRetryPolicy(p failure.Policy) RunOption {
	return func(c *runConfig) {
		c.retry = p
	}
}

// WithCircuitBreaker enables per-node circuit breakers with the given
// configuration. Default: disabled.
func WithCircuitBreaker(cfg failure.BreakerConfig) RunOption {
	return func(c *runConfig) {
		c.breaker = &cfg
	}
}

// WithTraceSink sets the sink receiving the run's ordered execution events.
// Default: events are discarded.
func WithTraceSink(s trace.Sink) RunOption {
	return func(c *runConfig) {
		if s != nil {
			c.sink = s
		}
	}
}

// WithRunLogger overrides the context's logger for this run.
func WithRunLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder. Default: no-op.
func WithMetrics(m observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables OpenTelemetry span creation for the run and each node
// invocation, using the given span manager.
func WithTracing(sm observability.SpanManager) RunOption {
	return func(c *runConfig) {
		if sm != nil {
			c.spans = sm
			c.tracingEnabled = true
		}
	}
}
