package governor

import (
	"sync"
	"time"
)

// HealthState classifies the recent quality of interaction with the target.
type HealthState string

// Health states, worst to best.
const (
	HealthBlocked  HealthState = "BLOCKED"
	HealthCritical HealthState = "CRITICAL"
	HealthWarning  HealthState = "WARNING"
	HealthHealthy  HealthState = "HEALTHY"
)

// MonitorConfig controls the rolling health window and its thresholds.
type MonitorConfig struct {
	// WindowSize is the number of most recent attempts retained.
	WindowSize int
	// CriticalErrorRate is the error rate above which health is CRITICAL.
	CriticalErrorRate float64
	// WarningErrorRate is the error rate above which health is WARNING.
	WarningErrorRate float64
	// SlowLatency is the average latency above which health is WARNING.
	SlowLatency time.Duration
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.WindowSize <= 0 {
		c.WindowSize = 50
	}
	if c.CriticalErrorRate <= 0 {
		c.CriticalErrorRate = 0.5
	}
	if c.WarningErrorRate <= 0 {
		c.WarningErrorRate = 0.2
	}
	if c.SlowLatency <= 0 {
		c.SlowLatency = 30 * time.Second
	}
	return c
}

// HealthSnapshot is the derived view over the current window.
type HealthSnapshot struct {
	State        HealthState
	ErrorRate    float64
	AvgLatency   time.Duration
	BlockSignals int
	SampleCount  int
}

// Monitor maintains the rolling window of attempt records and classifies
// health from it. Classification is a pure function of the window contents
// and the thresholds; two monitors holding the same records always agree.
type Monitor struct {
	mu  sync.Mutex
	cfg MonitorConfig
	win *window
}

// NewMonitor constructs a Monitor with an empty window, which reads HEALTHY.
func NewMonitor(cfg MonitorConfig) *Monitor {
	cfg = cfg.withDefaults()
	return &Monitor{cfg: cfg, win: newWindow(cfg.WindowSize)}
}

// RecordAttempt appends one attempt to the window, evicting the oldest entry
// once the window is full.
func (m *Monitor) RecordAttempt(rec AttemptRecord) {
	m.mu.Lock()
	m.win.append(rec)
	m.mu.Unlock()
}

// Snapshot classifies the current window. Precedence is strict: any block
// signal in the window wins, then the critical error rate, then the warning
// conditions. An empty window is HEALTHY.
func (m *Monitor) Snapshot() HealthSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.win.len()
	if n == 0 {
		return HealthSnapshot{State: HealthHealthy}
	}

	var (
		failures int
		blocks   int
		totalLat time.Duration
	)
	m.win.each(func(rec AttemptRecord) {
		if !rec.Success {
			failures++
		}
		if rec.BlockSignal {
			blocks++
		}
		totalLat += rec.Latency
	})

	snap := HealthSnapshot{
		ErrorRate:    float64(failures) / float64(n),
		AvgLatency:   totalLat / time.Duration(n),
		BlockSignals: blocks,
		SampleCount:  n,
	}

	switch {
	case blocks > 0:
		snap.State = HealthBlocked
	case snap.ErrorRate > m.cfg.CriticalErrorRate:
		snap.State = HealthCritical
	case snap.AvgLatency > m.cfg.SlowLatency || snap.ErrorRate > m.cfg.WarningErrorRate:
		snap.State = HealthWarning
	default:
		snap.State = HealthHealthy
	}
	return snap
}
