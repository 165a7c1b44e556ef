// Package memory provides the in-memory work queue feeding the pool.
package memory

import (
	"context"
	"fmt"
	"sync"

	"promptharvest/internal/worker"
)

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan worker.Task
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan worker.Task, capacity),
	}
}

// Enqueue pushes a task into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, task worker.Task) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- task:
		return nil
	}
}

// Dequeue pops the next task, respecting context cancellation. Once the
// queue is closed and drained it returns worker.ErrQueueClosed.
func (q *Queue) Dequeue(ctx context.Context) (worker.Task, error) {
	select {
	case <-ctx.Done():
		return worker.Task{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case task, ok := <-q.ch:
		if !ok {
			return worker.Task{}, worker.ErrQueueClosed
		}
		return task, nil
	}
}

// Close closes the underlying channel for shutdown. Buffered tasks remain
// dequeueable until drained.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
