package guard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingNotifier struct {
	mu       sync.Mutex
	warnings []string
}

func (n *recordingNotifier) ResourceWarning(_ Sample, reason string) {
	n.mu.Lock()
	n.warnings = append(n.warnings, reason)
	n.mu.Unlock()
}

func (n *recordingNotifier) Warnings() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.warnings...)
}

// TestGuardRunsCleanupsOnMemoryBreach verifies a breach fires the notifier
// and every registered cleanup, in order.
func TestGuardRunsCleanupsOnMemoryBreach(t *testing.T) {
	t.Parallel()

	rec := &recordingNotifier{}
	g, err := New(Config{SampleInterval: 5 * time.Millisecond, MaxMemoryMB: 100, MaxCPUPercent: 85}, zap.NewNop(), rec)
	require.NoError(t, err)

	var order []string
	var mu sync.Mutex
	g.OnBreach("purge-cache", func() {
		mu.Lock()
		order = append(order, "purge-cache")
		mu.Unlock()
	})
	g.OnBreach("shrink-pool", func() {
		mu.Lock()
		order = append(order, "shrink-pool")
		mu.Unlock()
	})

	g.measureFn = func() (Sample, error) {
		return Sample{At: time.Now(), MemoryMB: 200, CPUPercent: 10}, nil
	}

	g.Start(context.Background())
	defer g.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) >= 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	require.Equal(t, []string{"purge-cache", "shrink-pool"}, order[:2])
	mu.Unlock()
	require.Contains(t, rec.Warnings()[0], "memory")
}

// TestGuardCPUBreach verifies the CPU ceiling is enforced when memory is
// fine.
func TestGuardCPUBreach(t *testing.T) {
	t.Parallel()

	rec := &recordingNotifier{}
	g, err := New(Config{SampleInterval: 5 * time.Millisecond, MaxMemoryMB: 1024, MaxCPUPercent: 85}, zap.NewNop(), rec)
	require.NoError(t, err)

	g.measureFn = func() (Sample, error) {
		return Sample{At: time.Now(), MemoryMB: 50, CPUPercent: 99}, nil
	}

	g.Start(context.Background())
	defer g.Stop()

	require.Eventually(t, func() bool {
		return len(rec.Warnings()) > 0
	}, time.Second, 5*time.Millisecond)
	require.Contains(t, rec.Warnings()[0], "cpu")
}

// TestGuardNoBreachNoAction verifies nothing fires while usage stays under
// the ceilings, and that Last reflects the newest sample.
func TestGuardNoBreachNoAction(t *testing.T) {
	t.Parallel()

	rec := &recordingNotifier{}
	g, err := New(Config{SampleInterval: 5 * time.Millisecond, MaxMemoryMB: 1024, MaxCPUPercent: 85}, zap.NewNop(), rec)
	require.NoError(t, err)

	var ran atomic.Bool
	g.OnBreach("never", func() { ran.Store(true) })
	g.measureFn = func() (Sample, error) {
		return Sample{At: time.Now(), MemoryMB: 50, CPUPercent: 10}, nil
	}

	g.Start(context.Background())
	require.Eventually(t, func() bool {
		return g.Last().MemoryMB == 50
	}, time.Second, 5*time.Millisecond)
	g.Stop()

	require.False(t, ran.Load())
	require.Empty(t, rec.Warnings())
}

// TestGuardSkipsOverlappingSamples verifies a slow sample causes later ticks
// to be skipped instead of queued behind it.
func TestGuardSkipsOverlappingSamples(t *testing.T) {
	t.Parallel()

	g, err := New(Config{SampleInterval: 5 * time.Millisecond, MaxMemoryMB: 1024, MaxCPUPercent: 85}, zap.NewNop(), nil)
	require.NoError(t, err)

	var calls atomic.Int32
	release := make(chan struct{})
	g.measureFn = func() (Sample, error) {
		calls.Add(1)
		<-release
		return Sample{At: time.Now()}, nil
	}

	g.Start(context.Background())

	// Many intervals elapse while the first sample is stuck.
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, int32(1), calls.Load(), "overlapping ticks must be skipped")

	close(release)
	g.Stop()
}

// TestGuardStopIdempotentBeforeStart verifies Stop on an unstarted guard is
// a no-op.
func TestGuardStopIdempotentBeforeStart(t *testing.T) {
	t.Parallel()

	g, err := New(Config{}, zap.NewNop(), nil)
	require.NoError(t, err)
	g.Stop()
}
