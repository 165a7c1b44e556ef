package progress

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"promptharvest/internal/governor"
)

func TestEventValidate(t *testing.T) {
	t.Parallel()

	runID := UUIDToBytes(uuid.New())
	now := time.Now()

	tests := []struct {
		name    string
		evt     Event
		wantErr string
	}{
		{"valid run start", Event{RunID: runID, TS: now, Kind: KindRunStart}, ""},
		{"valid attempt", Event{RunID: runID, TS: now, Kind: KindAttempt, URL: "https://example.com"}, ""},
		{"valid circuit change", Event{RunID: runID, TS: now, Kind: KindCircuitChange, From: "CLOSED", To: "OPEN"}, ""},
		{"valid resource warning", Event{RunID: runID, TS: now, Kind: KindResourceWarning, Reason: "memory"}, ""},
		{"missing run id", Event{TS: now, Kind: KindRunStart}, "run id"},
		{"missing timestamp", Event{RunID: runID, Kind: KindRunStart}, "timestamp"},
		{"attempt without url", Event{RunID: runID, TS: now, Kind: KindAttempt}, "url"},
		{"change without states", Event{RunID: runID, TS: now, Kind: KindHealthChange}, "from and to"},
		{"warning without reason", Event{RunID: runID, TS: now, Kind: KindResourceWarning}, "reason"},
		{"unknown kind", Event{RunID: runID, TS: now, Kind: "BOGUS"}, "unknown kind"},
		{"negative latency", Event{RunID: runID, TS: now, Kind: KindRunStart, Latency: -1}, "latency"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.evt.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

type captureEmitter struct {
	events []Event
}

func (c *captureEmitter) Emit(evt Event) { c.events = append(c.events, evt) }

func TestNotifierBridgesGovernorStates(t *testing.T) {
	t.Parallel()

	em := &captureEmitter{}
	n := NewNotifier(uuid.New(), em)

	n.CircuitTransition(governor.Transition{
		From:   governor.CircuitClosed,
		To:     governor.CircuitOpen,
		Reason: "failure threshold reached",
	})
	n.HealthChange(governor.HealthHealthy, governor.HealthBlocked,
		governor.HealthSnapshot{State: governor.HealthBlocked, BlockSignals: 1})

	require.Len(t, em.events, 2)
	require.Equal(t, KindCircuitChange, em.events[0].Kind)
	require.Equal(t, "OPEN", em.events[0].To)
	require.NoError(t, em.events[0].Validate())
	require.Equal(t, KindHealthChange, em.events[1].Kind)
	require.Equal(t, "block signal in window", em.events[1].Reason)
	require.NoError(t, em.events[1].Validate())
}
