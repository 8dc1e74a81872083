package stategraph

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors. The rich struct errors below unwrap to these so callers
// can use errors.Is without holding onto the struct types.
var (
	// ErrInvalidGraph indicates the graph failed compile-time validation.
	ErrInvalidGraph = errors.New("invalid graph")

	// ErrStepLimit indicates the executor exceeded its configured step limit.
	ErrStepLimit = errors.New("step limit exceeded")

	// ErrExecutionTimeout indicates a deadline elapsed (node, parallel
	// branch, or whole run).
	ErrExecutionTimeout = errors.New("execution timeout")

	// ErrAggregation indicates a parallel node could not satisfy its
	// aggregation strategy.
	ErrAggregation = errors.New("aggregation failed")

	// ErrNilContext indicates Run was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrNoCheckpoints indicates Resume found no checkpoints for the run.
	ErrNoCheckpoints = errors.New("no checkpoints for run")

	// ErrCheckpointFormat indicates a checkpoint was written with an
	// incompatible format version.
	ErrCheckpointFormat = errors.New("checkpoint format mismatch")
)

// ValidationCode classifies graph construction and compilation failures.
type ValidationCode string

const (
	// DuplicateNode: a node name was declared twice.
	DuplicateNode ValidationCode = "duplicate_node"
	// UnknownNode: an edge or entry point references an undeclared node.
	UnknownNode ValidationCode = "unknown_node"
	// EntryNotSet: Compile was called without SetEntry.
	EntryNotSet ValidationCode = "entry_not_set"
	// EntryRedeclared: SetEntry was called more than once.
	EntryRedeclared ValidationCode = "entry_redeclared"
	// UnreachableNode: a node cannot be reached from the entry point.
	UnreachableNode ValidationCode = "unreachable_node"
)

// ValidationError reports a malformed graph. Validation errors are always
// raised before execution starts and are never retried.
type ValidationError struct {
	// Code classifies the failure.
	Code ValidationCode
	// Node is the offending node name, when one is identifiable.
	Node string
	// Detail is a human-readable description.
	Detail string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("graph validation: %s: node %q: %s", e.Code, e.Node, e.Detail)
	}
	return fmt.Sprintf("graph validation: %s: %s", e.Code, e.Detail)
}

// Unwrap returns ErrInvalidGraph for errors.Is support.
func (e *ValidationError) Unwrap() error { return ErrInvalidGraph }

// InvocationError reports that a node's own logic failed after the retry
// policy was exhausted. Exactly one InvocationError surfaces per failed
// invocation, regardless of how many attempts were made.
type InvocationError struct {
	// Node is the node that failed.
	Node string
	// Attempts is the number of invocation attempts made.
	Attempts int
	// Err is the error from the final attempt.
	Err error
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("node %s failed after %d attempt(s): %v", e.Node, e.Attempts, e.Err)
}

// Unwrap returns the final attempt's error.
func (e *InvocationError) Unwrap() error { return e.Err }

// TimeoutError reports an elapsed deadline. Timeouts are terminal for their
// scope and are never retried; the last successfully merged state is carried
// for inspection.
type TimeoutError struct {
	// Scope is "node", "parallel", or "run".
	Scope string
	// Node is the affected node, empty for run scope.
	Node string
	// Limit is the deadline that elapsed.
	Limit time.Duration
	// State is the last successfully merged state.
	State State
	// Cause is the underlying context error.
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("%s timeout after %s at node %s", e.Scope, e.Limit, e.Node)
	}
	return fmt.Sprintf("%s timeout after %s", e.Scope, e.Limit)
}

// Unwrap returns ErrExecutionTimeout and the underlying context error, so
// both errors.Is(err, ErrExecutionTimeout) and
// errors.Is(err, context.DeadlineExceeded) hold.
func (e *TimeoutError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrExecutionTimeout, e.Cause}
	}
	return []error{ErrExecutionTimeout}
}

// StepLimitError is the backstop against unbounded cycles: the global step
// counter exceeded its configured maximum. It carries the state and frontier
// at termination.
type StepLimitError struct {
	// Limit is the configured maximum step count.
	Limit int
	// Frontier is the node set that would have executed next.
	Frontier []string
	// State is the state at termination.
	State State
}

// Error implements the error interface.
func (e *StepLimitError) Error() string {
	return fmt.Sprintf("exceeded step limit (%d) with frontier [%s]", e.Limit, strings.Join(e.Frontier, ", "))
}

// Unwrap returns ErrStepLimit for errors.Is support.
func (e *StepLimitError) Unwrap() error { return ErrStepLimit }

// AggregationError reports that a parallel node could not satisfy its
// aggregation strategy, e.g. a required sub-node failed under "all" or a
// majority became mathematically unreachable.
type AggregationError struct {
	// Node is the parallel node.
	Node string
	// Strategy is the configured aggregation strategy.
	Strategy string
	// Succeeded and Failed count sub-node outcomes at the decision point.
	Succeeded int
	Failed    int
	// Causes holds the sub-node errors that drove the decision.
	Causes []error
}

// Error implements the error interface.
func (e *AggregationError) Error() string {
	return fmt.Sprintf("parallel node %s: strategy %q unsatisfiable (%d succeeded, %d failed)",
		e.Node, e.Strategy, e.Succeeded, e.Failed)
}

// Unwrap returns ErrAggregation plus the sub-node causes.
func (e *AggregationError) Unwrap() []error {
	return append([]error{ErrAggregation}, e.Causes...)
}

// RoutingError reports an invalid routing decision at runtime: a Command or
// router targeting an undeclared node.
type RoutingError struct {
	// Node is the node whose routing failed.
	Node string
	// Target is the invalid target.
	Target string
}

// Error implements the error interface.
func (e *RoutingError) Error() string {
	return fmt.Sprintf("node %s routed to unknown node %q", e.Node, e.Target)
}

// PanicError captures a panic raised inside a node invocation, including the
// stack trace at the point of panic.
type PanicError struct {
	// Node is the node that panicked.
	Node string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.Node, e.Value)
}

// CancellationError captures the state when execution was cancelled from
// outside (caller cancelled the context, as opposed to a deadline).
type CancellationError struct {
	// Node is the node that was about to execute or was executing.
	Node string
	// State is the last successfully merged state.
	State State
	// Cause is the underlying context error.
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled at node %s: %v", e.Node, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error { return e.Cause }
