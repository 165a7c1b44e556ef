// Package worker executes the fetch pipeline: cache, governor admission,
// adaptive wait, rate limit, fetch, classify, report. The pool groups tasks
// into batches with a pause between them so bursts never look mechanical.
package worker

import (
	"context"
	"errors"
	"net/http"
	"time"

	"promptharvest/internal/governor"
)

// Task is one page to harvest.
type Task struct {
	// URL is the absolute page URL.
	URL string
	// Headers are extra request headers for this task.
	Headers http.Header
}

// Result is the outcome of processing one task.
type Result struct {
	Task Task
	// Body is the retrieved document; nil when Err is set.
	Body []byte
	// FromCache reports the body came from the result cache.
	FromCache bool
	// Latency is the real fetch duration; zero for cache hits.
	Latency time.Duration
	// Err is the terminal error for this task, nil on success.
	Err error
}

// ErrQueueClosed signals the work queue is closed and drained.
var ErrQueueClosed = errors.New("queue closed")

// ErrCircuitOpen signals the governor denied admission for this cycle.
var ErrCircuitOpen = errors.New("circuit open")

// ErrRunAbandoned signals the pool gave up after too many consecutive
// denied cycles.
var ErrRunAbandoned = errors.New("run abandoned after consecutive open cycles")

// Queue hands out tasks. Implementations return ErrQueueClosed once closed
// and drained.
type Queue interface {
	Dequeue(ctx context.Context) (Task, error)
}

// Admission is the slice of the governor the worker needs.
type Admission interface {
	ShouldProceed() governor.Decision
	ReportOutcome(success bool, latency time.Duration, blockSignal bool)
	CachedResult(key string) ([]byte, bool)
	CacheResult(key string, payload []byte)
}

// Pacer is the per-host rate limit floor.
type Pacer interface {
	Wait(ctx context.Context, url string) error
}

// Hasher digests successful bodies for the attempt log.
type Hasher interface {
	Hash(data []byte) (string, error)
}
