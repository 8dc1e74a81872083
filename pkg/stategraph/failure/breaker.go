package failure

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen indicates an invocation was short-circuited by an open
// circuit breaker.
var ErrCircuitOpen = errors.New("circuit open")

// CircuitOpenError reports a short-circuited invocation: the node's breaker
// is open and no attempt was made.
type CircuitOpenError struct {
	// Node is the node whose breaker is open.
	Node string
	// Until is when the cool-down window ends and a half-open trial is
	// allowed.
	Until time.Time
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("node %s: circuit open until %s", e.Node, e.Until.Format(time.RFC3339))
}

// Unwrap returns ErrCircuitOpen for errors.Is support.
func (e *CircuitOpenError) Unwrap() error { return ErrCircuitOpen }

// BreakerConfig configures per-node circuit breakers.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// breaker. Values below 1 are treated as 1.
	FailureThreshold int

	// Cooldown is how long an open breaker short-circuits invocations
	// before allowing a single half-open trial.
	Cooldown time.Duration
}

// DefaultBreaker is the standard breaker configuration.
var DefaultBreaker = BreakerConfig{
	FailureThreshold: 5,
	Cooldown:         30 * time.Second,
}

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// breaker is a per-node circuit breaker. Closed counts consecutive failures;
// at the threshold it opens and short-circuits until the cool-down elapses,
// then allows exactly one half-open trial: success closes it, failure
// reopens it.
type breaker struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	node     string
	state    breakerState
	failures int
	openedAt time.Time

	now func() time.Time // injectable clock for tests
}

func newBreaker(node string, cfg BreakerConfig) *breaker {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}
	return &breaker{cfg: cfg, node: node, now: time.Now}
}

// allow reports whether an invocation may proceed. When the breaker is open
// and the cool-down has not elapsed, it returns a *CircuitOpenError; when
// the cool-down has elapsed, it transitions to half-open and admits one
// trial.
func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		until := b.openedAt.Add(b.cfg.Cooldown)
		if b.now().Before(until) {
			return &CircuitOpenError{Node: b.node, Until: until}
		}
		b.state = stateHalfOpen
		return nil
	case stateHalfOpen:
		// One in-flight trial at a time; concurrent callers short-circuit.
		return &CircuitOpenError{Node: b.node, Until: b.openedAt.Add(b.cfg.Cooldown)}
	default:
		return nil
	}
}

func (b *breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
	b.failures = 0
}

func (b *breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.openedAt = b.now()
		return
	}
	b.failures++
	if b.failures >= b.cfg.FailureThreshold {
		b.state = stateOpen
		b.openedAt = b.now()
	}
}
