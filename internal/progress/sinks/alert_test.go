package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"promptharvest/internal/progress"
	pubmem "promptharvest/internal/publisher/memory"
)

func TestAlertSinkPublishesSevereEventsOnly(t *testing.T) {
	t.Parallel()

	pub := pubmem.New()
	sink := NewAlertSink(pub, "harvest-alerts", zap.NewNop())

	runID := progress.UUIDToBytes(uuid.New())
	now := time.Unix(1700000000, 0).UTC()

	batch := []progress.Event{
		{RunID: runID, TS: now, Kind: progress.KindCircuitChange, From: "CLOSED", To: "OPEN", Reason: "failure threshold reached"},
		{RunID: runID, TS: now, Kind: progress.KindCircuitChange, From: "HALF_OPEN", To: "CLOSED", Reason: "probe succeeded"},
		{RunID: runID, TS: now, Kind: progress.KindHealthChange, From: "HEALTHY", To: "BLOCKED", Reason: "block signal in window"},
		{RunID: runID, TS: now, Kind: progress.KindHealthChange, From: "BLOCKED", To: "HEALTHY", Reason: "window recovered"},
		{RunID: runID, TS: now, Kind: progress.KindResourceWarning, Reason: "memory 1500MB exceeds ceiling 1024MB", MemoryMB: 1500},
		{RunID: runID, TS: now, Kind: progress.KindAttempt, URL: "https://example.com", Success: false},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	msgs := pub.Messages()
	require.Len(t, msgs, 3)

	kinds := make([]string, len(msgs))
	for i, m := range msgs {
		require.Equal(t, "harvest-alerts", m.Topic)
		kinds[i] = m.Payload.(Alert).Kind
	}
	require.Equal(t, []string{"circuit_open", "target_blocking", "resource_breach"}, kinds)
}

func TestAlertSinkNilPublisher(t *testing.T) {
	t.Parallel()

	sink := NewAlertSink(nil, "t", nil)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: progress.UUIDToBytes(uuid.New()), TS: time.Now(), Kind: progress.KindCircuitChange, From: "CLOSED", To: "OPEN"},
	}))
}
