package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"promptharvest/internal/progress"
	"promptharvest/internal/storage"
	storagemem "promptharvest/internal/storage/memory"
)

func TestStoreSinkPersistsAttemptsAndTransitions(t *testing.T) {
	t.Parallel()

	mem := storagemem.New()
	sink := NewStoreSink(mem, zap.NewNop())

	id := uuid.New()
	runID := progress.UUIDToBytes(id)
	now := time.Unix(1700000000, 0).UTC()

	batch := []progress.Event{
		{
			RunID: runID, TS: now, Kind: progress.KindAttempt,
			URL: "https://example.com/1", Success: true, Latency: time.Second,
		},
		{
			RunID: runID, TS: now.Add(time.Minute), Kind: progress.KindAttempt,
			URL: "https://example.com/2", Success: false, BlockSignal: true, Marker: "captcha",
		},
		{
			RunID: runID, TS: now, Kind: progress.KindCircuitChange,
			From: "CLOSED", To: "OPEN", Reason: "failure threshold reached",
		},
		{
			RunID: runID, TS: now, Kind: progress.KindHealthChange,
			From: "HEALTHY", To: "BLOCKED", Reason: "block signal in window",
		},
		// Non-persistable kinds pass through silently.
		{RunID: runID, TS: now, Kind: progress.KindRunStart},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	attempts, err := mem.ListAttempts(context.Background(), id, 10, 0)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	require.Equal(t, "captcha", attempts[0].Marker)

	changes := mem.StateChanges(id)
	require.Len(t, changes, 2)
	require.Equal(t, storage.ScopeCircuit, changes[0].Scope)
	require.Equal(t, storage.ScopeHealth, changes[1].Scope)
}

func TestStoreSinkNilStore(t *testing.T) {
	t.Parallel()

	sink := NewStoreSink(nil, nil)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: progress.UUIDToBytes(uuid.New()), TS: time.Now(), Kind: progress.KindRunStart},
	}))
}
