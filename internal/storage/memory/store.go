// Package memory provides an in-memory AttemptStore for development and
// tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"promptharvest/internal/storage"
)

// Store keeps the attempt log in process memory. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	attempts []storage.Attempt
	changes  []storage.StateChange
}

// New constructs an empty Store.
func New() *Store {
	return &Store{}
}

// InsertAttempt appends one attempt row.
func (s *Store) InsertAttempt(_ context.Context, a storage.Attempt) error {
	s.mu.Lock()
	s.attempts = append(s.attempts, a)
	s.mu.Unlock()
	return nil
}

// InsertStateChange appends one transition row.
func (s *Store) InsertStateChange(_ context.Context, c storage.StateChange) error {
	s.mu.Lock()
	s.changes = append(s.changes, c)
	s.mu.Unlock()
	return nil
}

// ListAttempts returns the newest attempts for a run, newest first.
func (s *Store) ListAttempts(_ context.Context, runID uuid.UUID, limit, offset int) ([]storage.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []storage.Attempt
	for i := len(s.attempts) - 1; i >= 0; i-- {
		if s.attempts[i].RunID == runID {
			matched = append(matched, s.attempts[i])
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// GetRunSummary aggregates one run or returns storage.ErrNotFound.
func (s *Store) GetRunSummary(_ context.Context, runID uuid.UUID) (storage.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := storage.RunSummary{RunID: runID}
	for _, a := range s.attempts {
		if a.RunID != runID {
			continue
		}
		sum.Attempts++
		if !a.Success {
			sum.Failures++
		}
		if a.BlockSignal {
			sum.BlockSignals++
		}
		if sum.FirstAt.IsZero() || a.At.Before(sum.FirstAt) {
			sum.FirstAt = a.At
		}
		if a.At.After(sum.LastAt) {
			sum.LastAt = a.At
		}
	}
	if sum.Attempts == 0 {
		return storage.RunSummary{}, storage.ErrNotFound
	}
	return sum, nil
}

// StateChanges returns a copy of the recorded transitions, for tests and the
// recommendations endpoint.
func (s *Store) StateChanges(runID uuid.UUID) []storage.StateChange {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []storage.StateChange
	for _, c := range s.changes {
		if c.RunID == runID {
			out = append(out, c)
		}
	}
	return out
}
