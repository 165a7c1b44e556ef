// Package storage declares the persistence interface for the attempt log:
// every fetch attempt and every circuit or health transition, keyed by run.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Attempt models one persisted fetch attempt.
type Attempt struct {
	// RunID is the owning harvest run.
	RunID uuid.UUID
	// At is when the attempt completed.
	At time.Time
	// URL is the attempted page.
	URL string
	// Success is the outcome.
	Success bool
	// Latency is the attempt duration.
	Latency time.Duration
	// BlockSignal marks attempts the target actively refused.
	BlockSignal bool
	// Marker is the matched block marker, empty otherwise.
	Marker string
	// FromCache marks attempts served without touching the target.
	FromCache bool
	// Note optionally stores error text.
	Note string
}

// StateChange models one persisted circuit or health transition.
type StateChange struct {
	// RunID is the owning harvest run.
	RunID uuid.UUID
	// At is when the transition happened.
	At time.Time
	// Scope is "circuit" or "health".
	Scope string
	// From and To are the old and new states.
	From string
	To   string
	// Reason explains the transition.
	Reason string
}

// Transition scopes persisted in state_changes.scope.
const (
	ScopeCircuit = "circuit"
	ScopeHealth  = "health"
)

// RunSummary aggregates one run for API responses.
type RunSummary struct {
	RunID        uuid.UUID
	Attempts     int64
	Failures     int64
	BlockSignals int64
	FirstAt      time.Time
	LastAt       time.Time
}

// AttemptStore persists the attempt log.
type AttemptStore interface {
	// InsertAttempt appends one attempt row.
	InsertAttempt(ctx context.Context, a Attempt) error
	// InsertStateChange appends one transition row.
	InsertStateChange(ctx context.Context, c StateChange) error
	// ListAttempts returns the newest attempts for a run.
	ListAttempts(ctx context.Context, runID uuid.UUID, limit, offset int) ([]Attempt, error)
	// GetRunSummary aggregates one run or returns ErrNotFound.
	GetRunSummary(ctx context.Context, runID uuid.UUID) (RunSummary, error)
}
