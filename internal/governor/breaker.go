package governor

import (
	"sync"
	"time"
)

// CircuitState is the current admission state of the Breaker.
type CircuitState string

// Circuit breaker states.
const (
	CircuitClosed   CircuitState = "CLOSED"
	CircuitOpen     CircuitState = "OPEN"
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

// BreakerConfig controls the circuit breaker thresholds.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that trips the
	// breaker from CLOSED to OPEN.
	FailureThreshold int
	// RecoveryTimeout is how long the breaker stays OPEN before admitting a
	// single half-open probe.
	RecoveryTimeout time.Duration
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 300 * time.Second
	}
	return c
}

// CircuitSnapshot is a point-in-time view of the breaker.
type CircuitSnapshot struct {
	State               CircuitState
	ConsecutiveFailures int
	OpenedAt            time.Time
}

// Transition describes a completed state change. Zero value means no change.
type Transition struct {
	From, To CircuitState
	Reason   string
}

func (t Transition) Changed() bool { return t.To != "" }

// Breaker is a circuit breaker over a single logical target. State is owned
// exclusively by the Breaker and mutated only through Allow and
// RecordOutcome; both are safe for concurrent use by many workers. While
// HALF_OPEN at most one caller is admitted until that probe resolves.
type Breaker struct {
	mu    sync.Mutex
	cfg   BreakerConfig
	clock Clock

	state         CircuitState
	consecFails   int
	openedAt      time.Time
	probeInFlight bool
}

// NewBreaker constructs a Breaker starting CLOSED.
func NewBreaker(cfg BreakerConfig, clock Clock) *Breaker {
	return &Breaker{
		cfg:   cfg.withDefaults(),
		clock: clock,
		state: CircuitClosed,
	}
}

// Allow reports whether a new attempt may proceed. An OPEN breaker whose
// recovery timeout has elapsed moves to HALF_OPEN and admits exactly one
// probe; concurrent callers receive false until that probe resolves. The
// returned Transition is non-zero when the call moved the breaker.
func (b *Breaker) Allow() (bool, Transition) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitClosed:
		return true, Transition{}
	case CircuitOpen:
		if b.clock.Now().Sub(b.openedAt) < b.cfg.RecoveryTimeout {
			return false, Transition{}
		}
		b.state = CircuitHalfOpen
		b.probeInFlight = true
		return true, Transition{From: CircuitOpen, To: CircuitHalfOpen, Reason: "recovery timeout elapsed"}
	case CircuitHalfOpen:
		if b.probeInFlight {
			return false, Transition{}
		}
		b.probeInFlight = true
		return true, Transition{}
	}
	return false, Transition{}
}

// RecordOutcome feeds the result of one real attempt into the breaker. It
// must be called exactly once per attempt that Allow admitted.
func (b *Breaker) RecordOutcome(success bool) Transition {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		return b.recordSuccess()
	}
	return b.recordFailure()
}

func (b *Breaker) recordSuccess() Transition {
	switch b.state {
	case CircuitClosed:
		b.consecFails = 0
	case CircuitHalfOpen:
		b.probeInFlight = false
		b.state = CircuitClosed
		b.consecFails = 0
		return Transition{From: CircuitHalfOpen, To: CircuitClosed, Reason: "probe succeeded"}
	}
	return Transition{}
}

func (b *Breaker) recordFailure() Transition {
	// The counter is monotonic until a success resets it, including while
	// OPEN or HALF_OPEN, so backoff keeps growing under sustained failure.
	b.consecFails++

	switch b.state {
	case CircuitClosed:
		if b.consecFails >= b.cfg.FailureThreshold {
			b.state = CircuitOpen
			b.openedAt = b.clock.Now()
			return Transition{From: CircuitClosed, To: CircuitOpen, Reason: "failure threshold reached"}
		}
	case CircuitHalfOpen:
		// A single probe failure reopens with a fresh timer.
		b.probeInFlight = false
		b.state = CircuitOpen
		b.openedAt = b.clock.Now()
		return Transition{From: CircuitHalfOpen, To: CircuitOpen, Reason: "probe failed"}
	}
	return Transition{}
}

// ConsecutiveFailures returns the current monotonic-until-reset counter.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecFails
}

// Snapshot returns a consistent view of the breaker state.
func (b *Breaker) Snapshot() CircuitSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return CircuitSnapshot{
		State:               b.state,
		ConsecutiveFailures: b.consecFails,
		OpenedAt:            b.openedAt,
	}
}
