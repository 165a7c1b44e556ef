package governor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func recordN(m *Monitor, n int, rec AttemptRecord) {
	for i := 0; i < n; i++ {
		m.RecordAttempt(rec)
	}
}

// TestMonitorEmptyWindowHealthy verifies a monitor with no samples reads
// HEALTHY.
func TestMonitorEmptyWindowHealthy(t *testing.T) {
	t.Parallel()

	m := NewMonitor(MonitorConfig{})
	snap := m.Snapshot()
	require.Equal(t, HealthHealthy, snap.State)
	require.Zero(t, snap.SampleCount)
}

// TestMonitorClassification walks each health band via its defining
// condition.
func TestMonitorClassification(t *testing.T) {
	t.Parallel()

	ok := AttemptRecord{Success: true, Latency: time.Second}
	fail := AttemptRecord{Success: false, Kind: FailureTransient, Latency: time.Second}
	slow := AttemptRecord{Success: true, Latency: 40 * time.Second}

	tests := []struct {
		name string
		fill func(m *Monitor)
		want HealthState
	}{
		{
			name: "all successes",
			fill: func(m *Monitor) { recordN(m, 10, ok) },
			want: HealthHealthy,
		},
		{
			name: "error rate above warning",
			fill: func(m *Monitor) {
				recordN(m, 7, ok)
				recordN(m, 3, fail)
			},
			want: HealthWarning,
		},
		{
			name: "slow average latency",
			fill: func(m *Monitor) { recordN(m, 10, slow) },
			want: HealthWarning,
		},
		{
			name: "error rate above critical",
			fill: func(m *Monitor) {
				recordN(m, 4, ok)
				recordN(m, 6, fail)
			},
			want: HealthCritical,
		},
		{
			name: "single block signal wins over everything",
			fill: func(m *Monitor) {
				recordN(m, 9, ok)
				m.RecordAttempt(AttemptRecord{Success: false, Kind: FailureBlockSignal, BlockSignal: true})
			},
			want: HealthBlocked,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := NewMonitor(MonitorConfig{WindowSize: 20})
			tc.fill(m)
			require.Equal(t, tc.want, m.Snapshot().State)
		})
	}
}

// TestMonitorBoundaryRates verifies the thresholds are strict greater-than:
// exactly 50% error rate is not CRITICAL, exactly 20% is not WARNING.
func TestMonitorBoundaryRates(t *testing.T) {
	t.Parallel()

	ok := AttemptRecord{Success: true, Latency: time.Second}
	fail := AttemptRecord{Success: false, Kind: FailureTransient, Latency: time.Second}

	m := NewMonitor(MonitorConfig{WindowSize: 20})
	recordN(m, 5, ok)
	recordN(m, 5, fail)
	require.Equal(t, HealthWarning, m.Snapshot().State, "error rate of exactly 0.5 should be WARNING, not CRITICAL")

	m2 := NewMonitor(MonitorConfig{WindowSize: 20})
	recordN(m2, 8, ok)
	recordN(m2, 2, fail)
	require.Equal(t, HealthHealthy, m2.Snapshot().State, "error rate of exactly 0.2 should stay HEALTHY")
}

// TestMonitorWindowEviction verifies old failures age out once the window
// rolls over, so health recovers without any explicit reset.
func TestMonitorWindowEviction(t *testing.T) {
	t.Parallel()

	m := NewMonitor(MonitorConfig{WindowSize: 10})
	fail := AttemptRecord{Success: false, Kind: FailureTransient, Latency: time.Second}
	ok := AttemptRecord{Success: true, Latency: time.Second}

	recordN(m, 10, fail)
	require.Equal(t, HealthCritical, m.Snapshot().State)

	recordN(m, 10, ok)
	snap := m.Snapshot()
	require.Equal(t, HealthHealthy, snap.State)
	require.Zero(t, snap.ErrorRate)
	require.Equal(t, 10, snap.SampleCount)
}

// TestMonitorBlockSignalAgesOut verifies BLOCKED clears once the offending
// record leaves the window.
func TestMonitorBlockSignalAgesOut(t *testing.T) {
	t.Parallel()

	m := NewMonitor(MonitorConfig{WindowSize: 5})
	m.RecordAttempt(AttemptRecord{Success: false, Kind: FailureBlockSignal, BlockSignal: true})
	require.Equal(t, HealthBlocked, m.Snapshot().State)

	recordN(m, 5, AttemptRecord{Success: true, Latency: time.Second})
	require.Equal(t, HealthHealthy, m.Snapshot().State)
}

// TestMonitorAggregates spot-checks the derived numbers.
func TestMonitorAggregates(t *testing.T) {
	t.Parallel()

	m := NewMonitor(MonitorConfig{WindowSize: 10})
	m.RecordAttempt(AttemptRecord{Success: true, Latency: 2 * time.Second})
	m.RecordAttempt(AttemptRecord{Success: false, Kind: FailureTransient, Latency: 4 * time.Second})

	snap := m.Snapshot()
	require.InDelta(t, 0.5, snap.ErrorRate, 1e-9)
	require.Equal(t, 3*time.Second, snap.AvgLatency)
	require.Equal(t, 2, snap.SampleCount)
}
