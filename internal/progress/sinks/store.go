package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"promptharvest/internal/progress"
	"promptharvest/internal/storage"
)

// StoreSink persists attempts and state transitions through a
// storage.AttemptStore.
type StoreSink struct {
	store  storage.AttemptStore
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink over the provided store.
func NewStoreSink(store storage.AttemptStore, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{store: store, logger: logger}
}

// Consume writes each persistable event in the batch. It respects ctx
// deadlines and returns the first store error verbatim.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.store == nil {
		return nil
	}
	for _, evt := range batch {
		switch evt.Kind {
		case progress.KindAttempt:
			err := s.store.InsertAttempt(ctx, storage.Attempt{
				RunID:       evt.RunUUID(),
				At:          evt.TS,
				URL:         evt.URL,
				Success:     evt.Success,
				Latency:     evt.Latency,
				BlockSignal: evt.BlockSignal,
				Marker:      evt.Marker,
				FromCache:   evt.FromCache,
				Note:        evt.Note,
			})
			if err != nil {
				return fmt.Errorf("persist attempt: %w", err)
			}
		case progress.KindCircuitChange, progress.KindHealthChange:
			scope := storage.ScopeCircuit
			if evt.Kind == progress.KindHealthChange {
				scope = storage.ScopeHealth
			}
			err := s.store.InsertStateChange(ctx, storage.StateChange{
				RunID:  evt.RunUUID(),
				At:     evt.TS,
				Scope:  scope,
				From:   evt.From,
				To:     evt.To,
				Reason: evt.Reason,
			})
			if err != nil {
				return fmt.Errorf("persist state change: %w", err)
			}
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
