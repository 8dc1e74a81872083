// Package failure implements the retry and circuit-breaker model that wraps
// every node invocation: exponential backoff with jitter for transient
// failures, and per-node breakers that short-circuit after repeated ones.
package failure

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Policy configures retry behavior for node invocations. Retries apply only
// to invocation failures; context cancellation, deadlines, and open circuits
// are never retried.
type Policy struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	// Values below 1 are treated as 1.
	MaxAttempts int

	// InitialDelay is the backoff before the second attempt.
	InitialDelay time.Duration

	// MaxDelay caps the backoff duration.
	MaxDelay time.Duration

	// Multiplier is applied to the backoff after each attempt.
	Multiplier float64

	// Jitter is the random jitter factor (0.0-1.0) applied to each delay.
	Jitter float64

	// RetryableFunc optionally overrides the default retryability check.
	RetryableFunc func(error) bool
}

// DefaultPolicy is the standard retry configuration.
var DefaultPolicy = Policy{
	MaxAttempts:  3,
	InitialDelay: 1 * time.Second,
	MaxDelay:     30 * time.Second,
	Multiplier:   2.0,
	Jitter:       0.1,
}

// NoRetry disables retries.
var NoRetry = Policy{MaxAttempts: 1}

// Delay returns the backoff before the given attempt (attempt 1 is the
// first retry, i.e. the delay before the second invocation).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.InitialDelay <= 0 {
		return 0
	}
	d := float64(p.InitialDelay)
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	for i := 1; i < attempt; i++ {
		d *= mult
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * (rand.Float64()*2 - 1)
	}
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}

// retryable reports whether an error is worth another attempt.
func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	if p.RetryableFunc != nil {
		return p.RetryableFunc(err)
	}
	return true
}

func (p Policy) maxAttempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}
