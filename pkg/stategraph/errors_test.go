package stategraph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestValidationError_Unwrap: validation errors match ErrInvalidGraph.
func TestValidationError_Unwrap(t *testing.T) {
	err := &ValidationError{Code: UnknownNode, Node: "ghost", Detail: "edge references undeclared node"}
	assert.ErrorIs(t, err, ErrInvalidGraph)
	assert.Contains(t, err.Error(), "unknown_node")
	assert.Contains(t, err.Error(), `"ghost"`)
}

// TestInvocationError_Unwrap surfaces the final attempt's error.
func TestInvocationError_Unwrap(t *testing.T) {
	cause := errors.New("db unavailable")
	err := &InvocationError{Node: "save", Attempts: 3, Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "save")
	assert.Contains(t, err.Error(), "3 attempt(s)")
}

// TestTimeoutError_Unwrap matches both the package sentinel and the
// underlying context error.
func TestTimeoutError_Unwrap(t *testing.T) {
	err := &TimeoutError{Scope: "node", Node: "slow", Limit: time.Second, Cause: context.DeadlineExceeded}
	assert.ErrorIs(t, err, ErrExecutionTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "node timeout")
	assert.Contains(t, err.Error(), "slow")

	// Run-scope timeouts have no node.
	run := &TimeoutError{Scope: "run", Limit: time.Minute}
	assert.ErrorIs(t, run, ErrExecutionTimeout)
	assert.NotContains(t, run.Error(), "at node")
}

// TestStepLimitError carries the frontier and matches ErrStepLimit.
func TestStepLimitError(t *testing.T) {
	err := &StepLimitError{Limit: 10, Frontier: []string{"a", "b"}, State: State{"n": 10}}
	assert.ErrorIs(t, err, ErrStepLimit)
	assert.Contains(t, err.Error(), "(10)")
	assert.Contains(t, err.Error(), "[a, b]")
}

// TestAggregationError_Unwrap matches the sentinel and every sub-node cause.
func TestAggregationError_Unwrap(t *testing.T) {
	c1 := errors.New("fetch failed")
	c2 := errors.New("parse failed")
	err := &AggregationError{Node: "fan", Strategy: "all", Succeeded: 1, Failed: 2, Causes: []error{c1, c2}}

	assert.ErrorIs(t, err, ErrAggregation)
	assert.ErrorIs(t, err, c1)
	assert.ErrorIs(t, err, c2)
	assert.Contains(t, err.Error(), `"all"`)
	assert.Contains(t, err.Error(), "1 succeeded, 2 failed")
}

// TestRoutingError_Message names the node and the bad target.
func TestRoutingError_Message(t *testing.T) {
	err := &RoutingError{Node: "router", Target: "nowhere"}
	assert.Contains(t, err.Error(), "router")
	assert.Contains(t, err.Error(), `"nowhere"`)
}

// TestPanicError_Message carries the panic value.
func TestPanicError_Message(t *testing.T) {
	err := &PanicError{Node: "boom", Value: "nil map write", Stack: "goroutine 1 ..."}
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "nil map write")
}

// TestCancellationError_Unwrap matches context.Canceled.
func TestCancellationError_Unwrap(t *testing.T) {
	err := &CancellationError{Node: "work", Cause: context.Canceled}
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "work")
}
