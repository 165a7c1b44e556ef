// Package guard watches the process's own memory and CPU footprint and
// triggers registered cleanups when either crosses its ceiling. It advises
// and reclaims; it never pauses or stops workers.
package guard

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Config controls sampling cadence and the breach ceilings.
type Config struct {
	// SampleInterval is how often the process is measured.
	SampleInterval time.Duration
	// MaxMemoryMB is the RSS ceiling in mebibytes.
	MaxMemoryMB float64
	// MaxCPUPercent is the process CPU ceiling.
	MaxCPUPercent float64
}

func (c Config) withDefaults() Config {
	if c.SampleInterval <= 0 {
		c.SampleInterval = 30 * time.Second
	}
	if c.MaxMemoryMB <= 0 {
		c.MaxMemoryMB = 1024
	}
	if c.MaxCPUPercent <= 0 {
		c.MaxCPUPercent = 85
	}
	return c
}

// Sample is one measurement of the process.
type Sample struct {
	At         time.Time
	MemoryMB   float64
	CPUPercent float64
}

// Cleanup is a registered reclamation hook, run when a ceiling is breached.
// Hooks must be fast and idempotent; they run on the sampler goroutine.
type Cleanup struct {
	Name string
	Run  func()
}

// Notifier receives breach notifications. Implementations must not block.
type Notifier interface {
	ResourceWarning(s Sample, reason string)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) ResourceWarning(Sample, string) {}

// Guard samples the current process at a fixed interval. If a tick fires
// while the previous sample is still running, that tick is skipped rather
// than queued, so slow reads never pile up.
type Guard struct {
	cfg      Config
	proc     *process.Process
	logger   *zap.Logger
	notifier Notifier

	mu       sync.Mutex
	cleanups []Cleanup
	last     Sample

	sampling atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}

	// measureFn is swapped in tests to avoid real process reads.
	measureFn func() (Sample, error)
}

// New constructs a Guard for the current process.
func New(cfg Config, logger *zap.Logger, notifier Notifier) (*Guard, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("attach to own process: %w", err)
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	g := &Guard{
		cfg:      cfg.withDefaults(),
		proc:     proc,
		logger:   logger.Named("guard"),
		notifier: notifier,
	}
	g.measureFn = g.measure
	return g, nil
}

// OnBreach registers a cleanup hook. Hooks run in registration order.
func (g *Guard) OnBreach(name string, fn func()) {
	g.mu.Lock()
	g.cleanups = append(g.cleanups, Cleanup{Name: name, Run: fn})
	g.mu.Unlock()
}

// Start launches the sampling loop. Stop it via Stop or by canceling ctx.
func (g *Guard) Start(ctx context.Context) {
	ctx, g.cancel = context.WithCancel(ctx)
	g.done = make(chan struct{})
	go g.loop(ctx)
}

// Stop halts sampling and waits for the loop to exit.
func (g *Guard) Stop() {
	if g.cancel == nil {
		return
	}
	g.cancel()
	<-g.done
}

// Last returns the most recent completed sample.
func (g *Guard) Last() Sample {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

func (g *Guard) loop(ctx context.Context) {
	defer close(g.done)
	ticker := time.NewTicker(g.cfg.SampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !g.sampling.CompareAndSwap(false, true) {
				g.logger.Debug("previous sample still running, skipping tick")
				continue
			}
			g.sampleOnce()
			g.sampling.Store(false)
		}
	}
}

func (g *Guard) sampleOnce() {
	s, err := g.measureFn()
	if err != nil {
		g.logger.Warn("resource sample failed", zap.Error(err))
		return
	}

	g.mu.Lock()
	g.last = s
	cleanups := append([]Cleanup(nil), g.cleanups...)
	g.mu.Unlock()

	reason := ""
	switch {
	case s.MemoryMB > g.cfg.MaxMemoryMB:
		reason = fmt.Sprintf("memory %.0fMB exceeds ceiling %.0fMB", s.MemoryMB, g.cfg.MaxMemoryMB)
	case s.CPUPercent > g.cfg.MaxCPUPercent:
		reason = fmt.Sprintf("cpu %.1f%% exceeds ceiling %.1f%%", s.CPUPercent, g.cfg.MaxCPUPercent)
	}
	if reason == "" {
		return
	}

	g.logger.Warn("resource ceiling breached",
		zap.String("reason", reason),
		zap.Float64("memory_mb", s.MemoryMB),
		zap.Float64("cpu_percent", s.CPUPercent),
	)
	g.notifier.ResourceWarning(s, reason)
	for _, c := range cleanups {
		g.logger.Info("running cleanup", zap.String("cleanup", c.Name))
		c.Run()
	}
}

func (g *Guard) measure() (Sample, error) {
	mem, err := g.proc.MemoryInfo()
	if err != nil {
		return Sample{}, fmt.Errorf("memory info: %w", err)
	}
	cpu, err := g.proc.CPUPercent()
	if err != nil {
		return Sample{}, fmt.Errorf("cpu percent: %w", err)
	}
	return Sample{
		At:         time.Now(),
		MemoryMB:   float64(mem.RSS) / (1 << 20),
		CPUPercent: cpu,
	}, nil
}
