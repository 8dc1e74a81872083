// Package observability provides structured logging, metrics, and
// distributed tracing for graph execution.
//
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
)

// EnrichLogger adds execution context to a logger.
// Returns a new logger with run_id, node, step, and attempt fields.
func EnrichLogger(logger *slog.Logger, runID, node string, step, attempt int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("node", node),
		slog.Int("step", step),
		slog.Int("attempt", attempt),
	)
}

// LogRunStart logs the start of a graph run.
func LogRunStart(logger *slog.Logger, runID, entry string) {
	if logger == nil {
		return
	}
	logger.Info("graph run starting",
		slog.String("run_id", runID),
		slog.String("entry", entry),
	)
}

// LogRunComplete logs successful graph run completion.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, steps int) {
	if logger == nil {
		return
	}
	logger.Info("graph run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("steps", steps),
	)
}

// LogRunError logs graph run failure.
func LogRunError(logger *slog.Logger, runID string, err error, durationMs float64, lastNode string) {
	if logger == nil {
		return
	}
	logger.Error("graph run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_node", lastNode),
	)
}

// LogNodeStart logs node invocation start.
func LogNodeStart(logger *slog.Logger, node string, step int) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("node", node),
		slog.Int("step", step),
	)
}

// LogNodeComplete logs successful node completion.
func LogNodeComplete(logger *slog.Logger, node string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node", node),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeError logs node invocation failure.
func LogNodeError(logger *slog.Logger, node string, err error, attempts int) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node", node),
		slog.Int("attempts", attempts),
		slog.String("error", err.Error()),
	)
}

// LogCheckpoint logs checkpoint creation.
func LogCheckpoint(logger *slog.Logger, node string, version, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint saved",
		slog.String("node", node),
		slog.Int("version", version),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogCheckpointError logs checkpoint failure (non-fatal by default).
func LogCheckpointError(logger *slog.Logger, node string, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("checkpoint failed",
		slog.String("node", node),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}
