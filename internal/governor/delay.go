package governor

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// DelayConfig controls the adaptive wait computation.
type DelayConfig struct {
	// BaseDelay is the wait between attempts when nothing is failing.
	BaseDelay time.Duration
	// MinDelay and MaxDelay clamp the final jittered wait.
	MinDelay time.Duration
	MaxDelay time.Duration
	// ErrorBackoffBase seeds the exponential backoff under failure.
	ErrorBackoffBase time.Duration
	// BackoffCap bounds the 2^failures multiplier.
	BackoffCap int
}

func (c DelayConfig) withDefaults() DelayConfig {
	if c.BaseDelay <= 0 {
		c.BaseDelay = 2 * time.Second
	}
	if c.MinDelay <= 0 {
		c.MinDelay = 2 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 8 * time.Second
	}
	if c.ErrorBackoffBase <= 0 {
		c.ErrorBackoffBase = 5 * time.Second
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 8
	}
	return c
}

// DelayDecision is the computed wait for the next attempt. It is advice for
// the caller about to sleep, derived fresh each time and never stored.
type DelayDecision struct {
	Wait   time.Duration
	Reason string
}

// DelayController computes adaptive inter-request delays from the failure
// streak and current health. It is stateless apart from its RNG; safe for
// concurrent use only if callers serialize, which the Governor does.
type DelayController struct {
	cfg DelayConfig
	rng *rand.Rand
}

// NewDelayController constructs a controller seeded from seed. Pass a fixed
// seed in tests for reproducible jitter.
func NewDelayController(cfg DelayConfig, seed int64) *DelayController {
	return &DelayController{
		cfg: cfg.withDefaults(),
		rng: rand.New(rand.NewSource(seed)),
	}
}

// healthMultiplier scales the wait by how degraded the target looks.
func healthMultiplier(state HealthState) float64 {
	switch state {
	case HealthWarning:
		return 1.5
	case HealthCritical:
		return 2.0
	case HealthBlocked:
		return 4.0
	default:
		return 1.0
	}
}

// baseWait is the deterministic pre-jitter wait. Split out so tests can
// bracket the jittered result.
func (d *DelayController) baseWait(consecutiveFailures int, health HealthState) time.Duration {
	wait := d.cfg.BaseDelay
	if consecutiveFailures > 0 {
		mult := math.Min(math.Pow(2, float64(consecutiveFailures)), float64(d.cfg.BackoffCap))
		wait = time.Duration(float64(d.cfg.ErrorBackoffBase) * mult)
	}
	return time.Duration(float64(wait) * healthMultiplier(health))
}

// NextDelay computes the wait before the next attempt: exponential backoff
// on the failure streak, scaled by health, jittered uniformly in [0.5, 1.5],
// then clamped to [MinDelay, MaxDelay].
func (d *DelayController) NextDelay(consecutiveFailures int, health HealthState) DelayDecision {
	wait := d.baseWait(consecutiveFailures, health)

	jitter := 0.5 + d.rng.Float64()
	wait = time.Duration(float64(wait) * jitter)

	if wait < d.cfg.MinDelay {
		wait = d.cfg.MinDelay
	}
	if wait > d.cfg.MaxDelay {
		wait = d.cfg.MaxDelay
	}

	reason := "base pacing"
	switch {
	case consecutiveFailures > 0 && health != HealthHealthy:
		reason = fmt.Sprintf("backoff after %d failures, health %s", consecutiveFailures, health)
	case consecutiveFailures > 0:
		reason = fmt.Sprintf("backoff after %d failures", consecutiveFailures)
	case health != HealthHealthy:
		reason = fmt.Sprintf("health %s", health)
	}

	return DelayDecision{Wait: wait, Reason: reason}
}
