package failure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestPolicy_Delay_ExponentialGrowth doubles per attempt under the default
// multiplier.
func TestPolicy_Delay_ExponentialGrowth(t *testing.T) {
	p := Policy{InitialDelay: 100 * time.Millisecond, Multiplier: 2.0}

	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3))
}

// TestPolicy_Delay_CappedAtMax never exceeds MaxDelay.
func TestPolicy_Delay_CappedAtMax(t *testing.T) {
	p := Policy{InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2.0}

	assert.Equal(t, 3*time.Second, p.Delay(5))
	assert.Equal(t, 3*time.Second, p.Delay(10))
}

// TestPolicy_Delay_JitterBounds keeps jittered delays within the factor.
func TestPolicy_Delay_JitterBounds(t *testing.T) {
	p := Policy{InitialDelay: time.Second, Multiplier: 1.0, Jitter: 0.5}

	for i := 0; i < 50; i++ {
		d := p.Delay(1)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
}

// TestPolicy_Delay_ZeroCases: no initial delay or invalid attempt means no
// backoff.
func TestPolicy_Delay_ZeroCases(t *testing.T) {
	assert.Equal(t, time.Duration(0), NoRetry.Delay(1))
	assert.Equal(t, time.Duration(0), DefaultPolicy.Delay(0))
}

// TestPolicy_Delay_DefaultMultiplier: a non-positive multiplier behaves as a
// constant backoff.
func TestPolicy_Delay_DefaultMultiplier(t *testing.T) {
	p := Policy{InitialDelay: 100 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, p.Delay(3))
}

// TestPolicy_Retryable excludes cancellation, deadlines, and open circuits.
func TestPolicy_Retryable(t *testing.T) {
	p := DefaultPolicy

	assert.True(t, p.retryable(errors.New("transient")))
	assert.False(t, p.retryable(context.Canceled))
	assert.False(t, p.retryable(context.DeadlineExceeded))
	assert.False(t, p.retryable(ErrCircuitOpen))
	assert.False(t, p.retryable(&CircuitOpenError{Node: "n"}))
}

// TestPolicy_RetryableFunc overrides the default check for everything else.
func TestPolicy_RetryableFunc(t *testing.T) {
	fatal := errors.New("fatal")
	p := Policy{
		MaxAttempts:   3,
		RetryableFunc: func(err error) bool { return !errors.Is(err, fatal) },
	}

	assert.True(t, p.retryable(errors.New("transient")))
	assert.False(t, p.retryable(fatal))
	// The built-in exclusions still apply before the custom check.
	assert.False(t, p.retryable(context.Canceled))
}

// TestPolicy_MaxAttempts_Floor treats values below 1 as 1.
func TestPolicy_MaxAttempts_Floor(t *testing.T) {
	assert.Equal(t, 1, Policy{}.maxAttempts())
	assert.Equal(t, 1, Policy{MaxAttempts: -2}.maxAttempts())
	assert.Equal(t, 3, Policy{MaxAttempts: 3}.maxAttempts())
}
