package governor

import (
	"fmt"
	"sync"
	"time"
)

// Notifier receives state-change notifications from the Governor. Methods
// must not block; the progress hub adapter satisfies that.
type Notifier interface {
	CircuitTransition(t Transition)
	HealthChange(from, to HealthState, snap HealthSnapshot)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) CircuitTransition(Transition)                          {}
func (NopNotifier) HealthChange(HealthState, HealthState, HealthSnapshot) {}

// ResultCache is the slice of the result cache the Governor exposes to
// workers.
type ResultCache interface {
	Get(key string) ([]byte, bool)
	Put(key string, payload []byte)
}

// Decision tells a worker whether to attempt a fetch and how long to wait
// first. It is plain data; a denial is not an error.
type Decision struct {
	Proceed bool
	Wait    time.Duration
	Reason  string
	Circuit CircuitState
	Health  HealthState
}

// Status is a combined point-in-time view for the API and sinks.
type Status struct {
	Health  HealthSnapshot
	Circuit CircuitSnapshot
}

// Config aggregates the tunables of the governor components.
type Config struct {
	Breaker BreakerConfig
	Monitor MonitorConfig
	Delay   DelayConfig
	// DelaySeed seeds jitter; zero means seed from the clock.
	DelaySeed int64
}

// Governor is the facade the worker pool talks to. It owns the breaker, the
// health monitor, and the delay controller, and surfaces every decision as
// data. It never stops a worker itself and it never returns an error.
type Governor struct {
	breaker *Breaker
	monitor *Monitor
	clock   Clock

	delayMu sync.Mutex
	delay   *DelayController

	healthMu   sync.Mutex
	lastHealth HealthState

	cache    ResultCache
	notifier Notifier
}

// Option customizes a Governor at construction.
type Option func(*Governor)

// WithCache attaches a result cache to the facade.
func WithCache(c ResultCache) Option {
	return func(g *Governor) { g.cache = c }
}

// WithNotifier routes state-change notifications to n.
func WithNotifier(n Notifier) Option {
	return func(g *Governor) { g.notifier = n }
}

// New constructs a Governor from cfg. The zero Config yields the documented
// defaults throughout.
func New(cfg Config, clock Clock, opts ...Option) *Governor {
	seed := cfg.DelaySeed
	if seed == 0 {
		seed = clock.Now().UnixNano()
	}
	g := &Governor{
		breaker:    NewBreaker(cfg.Breaker, clock),
		monitor:    NewMonitor(cfg.Monitor),
		delay:      NewDelayController(cfg.Delay, seed),
		clock:      clock,
		lastHealth: HealthHealthy,
		notifier:   NopNotifier{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ShouldProceed decides whether a worker may attempt a fetch now. When the
// circuit admits the attempt, Wait carries the adaptive delay to sleep
// before fetching; when it denies, Wait carries the base delay to sleep
// before asking again.
func (g *Governor) ShouldProceed() Decision {
	allowed, tr := g.breaker.Allow()
	if tr.Changed() {
		g.notifier.CircuitTransition(tr)
	}

	health := g.monitor.Snapshot()

	if !allowed {
		g.delayMu.Lock()
		dd := g.delay.NextDelay(0, health.State)
		g.delayMu.Unlock()
		return Decision{
			Proceed: false,
			Wait:    dd.Wait,
			Reason:  "circuit open",
			Circuit: g.breaker.Snapshot().State,
			Health:  health.State,
		}
	}

	fails := g.breaker.ConsecutiveFailures()
	g.delayMu.Lock()
	dd := g.delay.NextDelay(fails, health.State)
	g.delayMu.Unlock()

	return Decision{
		Proceed: true,
		Wait:    dd.Wait,
		Reason:  dd.Reason,
		Circuit: g.breaker.Snapshot().State,
		Health:  health.State,
	}
}

// ReportOutcome records one completed attempt in the monitor and the
// breaker, then fires circuit and health notifications for any change the
// outcome caused. Must be called exactly once per admitted attempt.
func (g *Governor) ReportOutcome(success bool, latency time.Duration, blockSignal bool) {
	kind := FailureNone
	if !success {
		kind = FailureTransient
		if blockSignal {
			kind = FailureBlockSignal
		}
	}
	g.monitor.RecordAttempt(AttemptRecord{
		At:          g.clock.Now(),
		Success:     success,
		Kind:        kind,
		Latency:     latency,
		BlockSignal: blockSignal,
	})

	if tr := g.breaker.RecordOutcome(success); tr.Changed() {
		g.notifier.CircuitTransition(tr)
	}

	snap := g.monitor.Snapshot()
	g.healthMu.Lock()
	prev := g.lastHealth
	g.lastHealth = snap.State
	g.healthMu.Unlock()
	if prev != snap.State {
		g.notifier.HealthChange(prev, snap.State, snap)
	}
}

// CachedResult looks up a previously cached payload.
func (g *Governor) CachedResult(key string) ([]byte, bool) {
	if g.cache == nil {
		return nil, false
	}
	return g.cache.Get(key)
}

// CacheResult stores a successful payload for reuse.
func (g *Governor) CacheResult(key string, payload []byte) {
	if g.cache == nil {
		return
	}
	g.cache.Put(key, payload)
}

// Snapshot returns the combined health and circuit view.
func (g *Governor) Snapshot() Status {
	return Status{
		Health:  g.monitor.Snapshot(),
		Circuit: g.breaker.Snapshot(),
	}
}

// String renders a short operator-facing summary.
func (s Status) String() string {
	return fmt.Sprintf("health=%s circuit=%s error_rate=%.2f avg_latency=%s failures=%d",
		s.Health.State, s.Circuit.State, s.Health.ErrorRate, s.Health.AvgLatency, s.Circuit.ConsecutiveFailures)
}
