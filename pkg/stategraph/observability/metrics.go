package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records execution metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeInvocation records one node invocation with its duration,
	// attempt count, and error status.
	RecordNodeInvocation(ctx context.Context, node string, duration time.Duration, attempts int, err error)

	// RecordGraphRun records a graph run completion.
	RecordGraphRun(ctx context.Context, success bool, duration time.Duration, steps int)

	// RecordCheckpoint records a checkpoint save operation.
	RecordCheckpoint(ctx context.Context, node string, sizeBytes int64)

	// RecordParallelBranches records a parallel fan-out and how many of its
	// sub-nodes succeeded.
	RecordParallelBranches(ctx context.Context, node string, total, succeeded int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	nodeInvocations  metric.Int64Counter
	nodeLatency      metric.Float64Histogram
	nodeErrors       metric.Int64Counter
	nodeRetries      metric.Int64Counter
	graphRuns        metric.Int64Counter
	graphLatency     metric.Float64Histogram
	graphSteps       metric.Int64Histogram
	checkpointSize   metric.Int64Histogram
	parallelBranches metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("stategraph")

	nodeInvocations, err := meter.Int64Counter("stategraph.node.invocations",
		metric.WithDescription("Number of node invocations"),
	)
	if err != nil {
		return nil, err
	}

	nodeLatency, err := meter.Float64Histogram("stategraph.node.latency_ms",
		metric.WithDescription("Node invocation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	nodeErrors, err := meter.Int64Counter("stategraph.node.errors",
		metric.WithDescription("Number of node invocation errors"),
	)
	if err != nil {
		return nil, err
	}

	nodeRetries, err := meter.Int64Counter("stategraph.node.retries",
		metric.WithDescription("Number of retry attempts beyond the first"),
	)
	if err != nil {
		return nil, err
	}

	graphRuns, err := meter.Int64Counter("stategraph.graph.runs",
		metric.WithDescription("Number of graph runs"),
	)
	if err != nil {
		return nil, err
	}

	graphLatency, err := meter.Float64Histogram("stategraph.graph.latency_ms",
		metric.WithDescription("Graph run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	graphSteps, err := meter.Int64Histogram("stategraph.graph.steps",
		metric.WithDescription("Steps executed per graph run"),
	)
	if err != nil {
		return nil, err
	}

	checkpointSize, err := meter.Int64Histogram("stategraph.checkpoint.size_bytes",
		metric.WithDescription("Checkpoint size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	parallelBranches, err := meter.Int64Histogram("stategraph.parallel.branches",
		metric.WithDescription("Sub-nodes per parallel fan-out"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		nodeInvocations:  nodeInvocations,
		nodeLatency:      nodeLatency,
		nodeErrors:       nodeErrors,
		nodeRetries:      nodeRetries,
		graphRuns:        graphRuns,
		graphLatency:     graphLatency,
		graphSteps:       graphSteps,
		checkpointSize:   checkpointSize,
		parallelBranches: parallelBranches,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordNodeInvocation records one node invocation.
func (m *otelMetrics) RecordNodeInvocation(ctx context.Context, node string, duration time.Duration, attempts int, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("node", node),
	}
	m.nodeInvocations.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.nodeLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if attempts > 1 {
		m.nodeRetries.Add(ctx, int64(attempts-1), metric.WithAttributes(attrs...))
	}
	if err != nil {
		m.nodeErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordGraphRun records a graph run.
func (m *otelMetrics) RecordGraphRun(ctx context.Context, success bool, duration time.Duration, steps int) {
	attrs := []attribute.KeyValue{
		attribute.Bool("success", success),
	}
	m.graphRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.graphLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	m.graphSteps.Record(ctx, int64(steps), metric.WithAttributes(attrs...))
}

// RecordCheckpoint records a checkpoint save.
func (m *otelMetrics) RecordCheckpoint(ctx context.Context, node string, sizeBytes int64) {
	attrs := []attribute.KeyValue{
		attribute.String("node", node),
	}
	m.checkpointSize.Record(ctx, sizeBytes, metric.WithAttributes(attrs...))
}

// RecordParallelBranches records a parallel fan-out.
func (m *otelMetrics) RecordParallelBranches(ctx context.Context, node string, total, succeeded int) {
	attrs := []attribute.KeyValue{
		attribute.String("node", node),
		attribute.Int("succeeded", succeeded),
	}
	m.parallelBranches.Record(ctx, int64(total), metric.WithAttributes(attrs...))
}
