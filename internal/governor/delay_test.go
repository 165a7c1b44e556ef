package governor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestDelayJitterBracketsBase verifies the jittered wait always lands inside
// [0.5, 1.5] of the deterministic pre-jitter wait, modulo the clamp.
func TestDelayJitterBracketsBase(t *testing.T) {
	t.Parallel()

	cfg := DelayConfig{
		BaseDelay:        2 * time.Second,
		MinDelay:         time.Millisecond,
		MaxDelay:         time.Hour,
		ErrorBackoffBase: 5 * time.Second,
		BackoffCap:       8,
	}
	d := NewDelayController(cfg, 1)

	for failures := 0; failures <= 6; failures++ {
		for _, health := range []HealthState{HealthHealthy, HealthWarning, HealthCritical, HealthBlocked} {
			base := d.baseWait(failures, health)
			for i := 0; i < 50; i++ {
				dd := d.NextDelay(failures, health)
				require.GreaterOrEqual(t, dd.Wait, time.Duration(float64(base)*0.5),
					"failures=%d health=%s", failures, health)
				require.LessOrEqual(t, dd.Wait, time.Duration(float64(base)*1.5),
					"failures=%d health=%s", failures, health)
			}
		}
	}
}

// TestDelayBackoffMultiplierCapped verifies the exponential multiplier stops
// at the cap.
func TestDelayBackoffMultiplierCapped(t *testing.T) {
	t.Parallel()

	cfg := DelayConfig{
		BaseDelay:        2 * time.Second,
		MinDelay:         time.Millisecond,
		MaxDelay:         time.Hour,
		ErrorBackoffBase: 5 * time.Second,
		BackoffCap:       8,
	}
	d := NewDelayController(cfg, 1)

	require.Equal(t, 10*time.Second, d.baseWait(1, HealthHealthy))
	require.Equal(t, 20*time.Second, d.baseWait(2, HealthHealthy))
	require.Equal(t, 40*time.Second, d.baseWait(3, HealthHealthy))
	// 2^4 = 16 exceeds the cap of 8.
	require.Equal(t, 40*time.Second, d.baseWait(4, HealthHealthy))
	require.Equal(t, 40*time.Second, d.baseWait(10, HealthHealthy))
}

// TestDelayHealthMultipliers verifies each health band scales the wait by
// its documented factor.
func TestDelayHealthMultipliers(t *testing.T) {
	t.Parallel()

	cfg := DelayConfig{
		BaseDelay:        4 * time.Second,
		MinDelay:         time.Millisecond,
		MaxDelay:         time.Hour,
		ErrorBackoffBase: 5 * time.Second,
		BackoffCap:       8,
	}
	d := NewDelayController(cfg, 1)

	require.Equal(t, 4*time.Second, d.baseWait(0, HealthHealthy))
	require.Equal(t, 6*time.Second, d.baseWait(0, HealthWarning))
	require.Equal(t, 8*time.Second, d.baseWait(0, HealthCritical))
	require.Equal(t, 16*time.Second, d.baseWait(0, HealthBlocked))
}

// TestDelayClampedToBounds verifies the final wait never leaves
// [MinDelay, MaxDelay] even when jitter pulls it out.
func TestDelayClampedToBounds(t *testing.T) {
	t.Parallel()

	d := NewDelayController(DelayConfig{
		BaseDelay:        2 * time.Second,
		MinDelay:         2 * time.Second,
		MaxDelay:         8 * time.Second,
		ErrorBackoffBase: 5 * time.Second,
		BackoffCap:       8,
	}, 7)

	for i := 0; i < 200; i++ {
		dd := d.NextDelay(0, HealthHealthy)
		require.GreaterOrEqual(t, dd.Wait, 2*time.Second)
		require.LessOrEqual(t, dd.Wait, 8*time.Second)

		dd = d.NextDelay(6, HealthBlocked)
		require.Equal(t, 8*time.Second, dd.Wait, "heavy backoff must clamp to MaxDelay")
	}
}

// TestDelayNoFailuresUsesBase verifies a clean streak paces from BaseDelay,
// not the error backoff.
func TestDelayNoFailuresUsesBase(t *testing.T) {
	t.Parallel()

	cfg := DelayConfig{
		BaseDelay:        3 * time.Second,
		MinDelay:         time.Millisecond,
		MaxDelay:         time.Hour,
		ErrorBackoffBase: time.Minute,
		BackoffCap:       8,
	}
	d := NewDelayController(cfg, 1)
	require.Equal(t, 3*time.Second, d.baseWait(0, HealthHealthy))
}

// TestDelayReason verifies the decision explains itself.
func TestDelayReason(t *testing.T) {
	t.Parallel()

	d := NewDelayController(DelayConfig{}, 1)

	require.Equal(t, "base pacing", d.NextDelay(0, HealthHealthy).Reason)
	require.Contains(t, d.NextDelay(3, HealthHealthy).Reason, "3 failures")
	require.Contains(t, d.NextDelay(0, HealthBlocked).Reason, "BLOCKED")
	require.Contains(t, d.NextDelay(2, HealthCritical).Reason, "CRITICAL")
}
