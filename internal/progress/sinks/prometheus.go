package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"promptharvest/internal/progress"
)

// PrometheusSink exports fleet metrics. It owns all collectors: attempt
// counters, latency, the circuit and health state gauges, and the resource
// gauges fed by the guard.
type PrometheusSink struct {
	attempts       *prometheus.CounterVec
	blockSignals   prometheus.Counter
	cacheHits      prometheus.Counter
	attemptLatency prometheus.Histogram

	circuitState       prometheus.Gauge
	circuitTransitions *prometheus.CounterVec
	healthState        prometheus.Gauge

	memoryMB   prometheus.Gauge
	cpuPercent prometheus.Gauge

	runsStarted  prometheus.Counter
	runsFinished prometheus.Counter
}

// Numeric encodings for the state gauges. Higher is worse.
var (
	circuitStateValues = map[string]float64{
		"CLOSED":    0,
		"HALF_OPEN": 1,
		"OPEN":      2,
	}
	healthStateValues = map[string]float64{
		"HEALTHY":  0,
		"WARNING":  1,
		"CRITICAL": 2,
		"BLOCKED":  3,
	}
)

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_attempts_total",
			Help: "Fetch attempts partitioned by result.",
		}, []string{"result"}),
		blockSignals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_block_signals_total",
			Help: "Attempts the target actively refused.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_cache_hits_total",
			Help: "Attempts served from the result cache.",
		}),
		attemptLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvest_attempt_latency_seconds",
			Help:    "Latency of real fetch attempts.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		circuitState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harvest_circuit_state",
			Help: "Circuit state: 0 closed, 1 half-open, 2 open.",
		}),
		circuitTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_circuit_transitions_total",
			Help: "Circuit transitions partitioned by destination state.",
		}, []string{"to"}),
		healthState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harvest_health_state",
			Help: "Health state: 0 healthy, 1 warning, 2 critical, 3 blocked.",
		}),
		memoryMB: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harvest_process_memory_mb",
			Help: "Process RSS from the last breaching guard sample.",
		}),
		cpuPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harvest_process_cpu_percent",
			Help: "Process CPU from the last breaching guard sample.",
		}),
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_runs_started_total",
			Help: "Harvest runs started.",
		}),
		runsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_runs_finished_total",
			Help: "Harvest runs finished.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.attempts,
		s.blockSignals,
		s.cacheHits,
		s.attemptLatency,
		s.circuitState,
		s.circuitTransitions,
		s.healthState,
		s.memoryMB,
		s.cpuPercent,
		s.runsStarted,
		s.runsFinished,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Kind {
	case progress.KindRunStart:
		s.runsStarted.Inc()
	case progress.KindRunDone:
		s.runsFinished.Inc()
	case progress.KindAttempt:
		result := "failure"
		if evt.Success {
			result = "success"
		}
		s.attempts.WithLabelValues(result).Inc()
		if evt.BlockSignal {
			s.blockSignals.Inc()
		}
		if evt.FromCache {
			s.cacheHits.Inc()
			return
		}
		if evt.Latency > 0 {
			s.attemptLatency.Observe(evt.Latency.Seconds())
		}
	case progress.KindCircuitChange:
		if v, ok := circuitStateValues[evt.To]; ok {
			s.circuitState.Set(v)
		}
		s.circuitTransitions.WithLabelValues(evt.To).Inc()
	case progress.KindHealthChange:
		if v, ok := healthStateValues[evt.To]; ok {
			s.healthState.Set(v)
		}
	case progress.KindResourceWarning:
		s.memoryMB.Set(evt.MemoryMB)
		s.cpuPercent.Set(evt.CPUPercent)
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
