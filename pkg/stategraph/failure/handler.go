package failure

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Handler wraps node invocations with the retry policy and, when configured,
// per-node circuit breakers. One Handler serves a whole execution; it is
// safe for concurrent use by parallel frontier members.
type Handler struct {
	policy     Policy
	breakerCfg *BreakerConfig

	mu       sync.Mutex
	breakers map[string]*breaker
}

// NewHandler creates a handler with the given retry policy. A nil breaker
// config disables circuit breaking.
func NewHandler(policy Policy, breakerCfg *BreakerConfig) *Handler {
	return &Handler{
		policy:     policy,
		breakerCfg: breakerCfg,
		breakers:   make(map[string]*breaker),
	}
}

// Policy returns the handler's retry policy.
func (h *Handler) Policy() Policy { return h.policy }

func (h *Handler) breakerFor(node string) *breaker {
	if h.breakerCfg == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.breakers[node]
	if !ok {
		b = newBreaker(node, *h.breakerCfg)
		h.breakers[node] = b
	}
	return b
}

// Invoke runs fn for a node under the handler's retry policy and breaker.
// It returns fn's value, the number of attempts actually made, and the final
// error. Attempt numbers passed to fn start at 1.
//
// Backoff between attempts respects context cancellation. An open breaker
// yields a *CircuitOpenError with zero attempts made.
func Invoke[T any](ctx context.Context, h *Handler, node string, fn func(ctx context.Context, attempt int) (T, error)) (T, int, error) {
	var zero T
	b := h.breakerFor(node)
	max := h.policy.maxAttempts()

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= max; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, attempts, lastErr
			}
			return zero, attempts, err
		}
		if b != nil {
			if err := b.allow(); err != nil {
				return zero, attempts, err
			}
		}

		attempts++
		value, err := fn(ctx, attempt)
		if err == nil {
			if b != nil {
				b.onSuccess()
			}
			return value, attempts, nil
		}
		lastErr = err
		if b != nil && breakerCounts(err) {
			b.onFailure()
		}

		if !h.policy.retryable(err) || attempt == max {
			break
		}
		if delay := h.policy.Delay(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return zero, attempts, lastErr
			case <-time.After(delay):
			}
		}
	}
	return zero, attempts, lastErr
}

// breakerCounts reports whether a failure counts toward the node's breaker
// threshold. Timeouts and cancellations reflect deadlines and caller intent,
// not node health, so they never trip the circuit.
func breakerCounts(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
