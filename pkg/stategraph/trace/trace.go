// Package trace defines the ordered execution event log the executor emits.
// The core only produces events; collecting, rendering, or storing them is
// the sink implementation's concern.
package trace

import (
	"log/slog"
	"sync"
	"time"
)

// Outcome classifies how an invocation ended.
type Outcome string

const (
	// OutcomeSuccess: the invocation completed and its update was merged.
	OutcomeSuccess Outcome = "success"
	// OutcomeError: the invocation failed after retries.
	OutcomeError Outcome = "error"
	// OutcomeTimeout: the invocation's deadline elapsed.
	OutcomeTimeout Outcome = "timeout"
	// OutcomeCancelled: the invocation was cancelled, typically a losing
	// branch under a first/majority aggregation. Not an error.
	OutcomeCancelled Outcome = "cancelled"
)

// Event is one append-only log entry describing a single node invocation.
// CheckpointBefore and CheckpointAfter reference the checkpoint versions
// bracketing the invocation; both are zero when checkpointing is disabled.
type Event struct {
	RunID    string        `json:"run_id"`
	Node     string        `json:"node"`
	Step     int           `json:"step"`
	Attempts int           `json:"attempts"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"`
	Outcome  Outcome       `json:"outcome"`
	Err      string        `json:"error,omitempty"`

	CheckpointBefore int `json:"checkpoint_before,omitempty"`
	CheckpointAfter  int `json:"checkpoint_after,omitempty"`
}

// Sink consumes execution events. Emit is called in event order from the
// executor; implementations must be safe for concurrent use because parallel
// sub-node events arrive from worker goroutines.
type Sink interface {
	Emit(evt Event)
}

// Discard is a Sink that drops every event.
type Discard struct{}

// Emit implements Sink.
func (Discard) Emit(Event) {}

// Recorder is an in-memory Sink that keeps every event in arrival order.
// Useful in tests and for replaying a run against its trace.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit implements Sink.
func (r *Recorder) Emit(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

// Events returns a copy of all recorded events in order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ByNode returns the recorded events for one node, in order.
func (r *Recorder) ByNode(node string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, evt := range r.events {
		if evt.Node == node {
			out = append(out, evt)
		}
	}
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Reset discards all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// SlogSink logs each event through a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink writing to the given logger.
// A nil logger falls back to slog.Default().
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Emit implements Sink.
func (s *SlogSink) Emit(evt Event) {
	attrs := []any{
		slog.String("run_id", evt.RunID),
		slog.String("node", evt.Node),
		slog.Int("step", evt.Step),
		slog.Int("attempts", evt.Attempts),
		slog.String("outcome", string(evt.Outcome)),
		slog.Duration("duration", evt.Duration),
	}
	if evt.Err != "" {
		attrs = append(attrs, slog.String("error", evt.Err))
	}
	if evt.Outcome == OutcomeSuccess || evt.Outcome == OutcomeCancelled {
		s.logger.Debug("node event", attrs...)
		return
	}
	s.logger.Warn("node event", attrs...)
}

// Multi fans one event out to several sinks, in order.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

type multiSink []Sink

// Emit implements Sink.
func (m multiSink) Emit(evt Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(evt)
		}
	}
}
