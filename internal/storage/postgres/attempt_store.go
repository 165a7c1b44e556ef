// Package postgres provides the Postgres-backed attempt log.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"promptharvest/internal/storage"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// AttemptStore implements storage.AttemptStore on Postgres.
type AttemptStore struct {
	pool db
}

// New creates an AttemptStore backed by a new connection pool.
func New(ctx context.Context, cfg Config) (*AttemptStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &AttemptStore{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool db) (*AttemptStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &AttemptStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *AttemptStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// InsertAttempt appends one attempt row.
func (s *AttemptStore) InsertAttempt(ctx context.Context, a storage.Attempt) error {
	query := `
INSERT INTO attempts (
	run_id,
	at,
	url,
	success,
	latency_ms,
	block_signal,
	marker,
	from_cache,
	note
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err := s.pool.Exec(ctx, query,
		a.RunID,
		a.At,
		a.URL,
		a.Success,
		a.Latency.Milliseconds(),
		a.BlockSignal,
		a.Marker,
		a.FromCache,
		a.Note,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// InsertStateChange appends one transition row.
func (s *AttemptStore) InsertStateChange(ctx context.Context, c storage.StateChange) error {
	query := `
INSERT INTO state_changes (
	run_id,
	at,
	scope,
	from_state,
	to_state,
	reason
) VALUES ($1,$2,$3,$4,$5,$6)`

	_, err := s.pool.Exec(ctx, query, c.RunID, c.At, c.Scope, c.From, c.To, c.Reason)
	if err != nil {
		return fmt.Errorf("insert state change: %w", err)
	}
	return nil
}

// ListAttempts returns the newest attempts for a run.
func (s *AttemptStore) ListAttempts(ctx context.Context, runID uuid.UUID, limit, offset int) ([]storage.Attempt, error) {
	query := `
SELECT run_id, at, url, success, latency_ms, block_signal, marker, from_cache, note
FROM attempts
WHERE run_id = $1
ORDER BY at DESC
LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, runID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []storage.Attempt
	for rows.Next() {
		var (
			a         storage.Attempt
			latencyMS int64
		)
		if err := rows.Scan(
			&a.RunID,
			&a.At,
			&a.URL,
			&a.Success,
			&latencyMS,
			&a.BlockSignal,
			&a.Marker,
			&a.FromCache,
			&a.Note,
		); err != nil {
			return nil, fmt.Errorf("scan attempt row: %w", err)
		}
		a.Latency = time.Duration(latencyMS) * time.Millisecond
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempt rows: %w", err)
	}
	return out, nil
}

// GetRunSummary aggregates one run or returns storage.ErrNotFound.
func (s *AttemptStore) GetRunSummary(ctx context.Context, runID uuid.UUID) (storage.RunSummary, error) {
	query := `
SELECT
	count(*),
	count(*) FILTER (WHERE NOT success),
	count(*) FILTER (WHERE block_signal),
	min(at),
	max(at)
FROM attempts
WHERE run_id = $1
HAVING count(*) > 0`

	sum := storage.RunSummary{RunID: runID}
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&sum.Attempts,
		&sum.Failures,
		&sum.BlockSignals,
		&sum.FirstAt,
		&sum.LastAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.RunSummary{}, storage.ErrNotFound
		}
		return storage.RunSummary{}, fmt.Errorf("get run summary: %w", err)
	}
	return sum, nil
}
