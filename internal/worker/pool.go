package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"promptharvest/internal/progress"
)

// PoolConfig controls fan-out and batch pacing.
type PoolConfig struct {
	// Workers is the number of concurrent pipeline goroutines.
	Workers int
	// BatchSize is how many tasks run before the inter-batch pause.
	BatchSize int
	// BatchPause is the quiet period between batches.
	BatchPause time.Duration
	// MaxOpenCycles abandons the run after this many consecutive denied
	// admission cycles across all workers.
	MaxOpenCycles int
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.Workers <= 0 {
		c.Workers = 3
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.BatchPause <= 0 {
		c.BatchPause = 10 * time.Second
	}
	if c.MaxOpenCycles <= 0 {
		c.MaxOpenCycles = 3
	}
	return c
}

// Pool drains the queue through a bounded set of workers, one batch at a
// time. Cancellation is honored before every delay and fetch cycle; a fetch
// already in flight finishes on its own timeout.
type Pool struct {
	cfg     PoolConfig
	queue   Queue
	worker  *Worker
	emitter progress.Emitter
	runID   [16]byte
	logger  *zap.Logger

	openCycles atomic.Int64
}

// NewPool constructs a Pool over one shared Worker.
func NewPool(cfg PoolConfig, queue Queue, w *Worker, emitter progress.Emitter, runID [16]byte, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		cfg:     cfg.withDefaults(),
		queue:   queue,
		worker:  w,
		emitter: emitter,
		runID:   runID,
		logger:  logger,
	}
}

// Run drains the queue until it is closed, the context is canceled, or the
// circuit stays open past MaxOpenCycles. It returns nil on a drained queue,
// ErrRunAbandoned on an abandoned run, and the context error on shutdown.
func (p *Pool) Run(ctx context.Context) error {
	p.emitRun(progress.KindRunStart)
	defer p.emitRun(progress.KindRunDone)

	for {
		batch, done, err := p.nextBatch(ctx)
		if err != nil {
			return err
		}
		if len(batch) > 0 {
			p.logger.Info("starting batch", zap.Int("tasks", len(batch)))
			if err := p.runBatch(ctx, batch); err != nil {
				return err
			}
		}
		if done {
			return nil
		}
		p.logger.Debug("batch pause", zap.Duration("pause", p.cfg.BatchPause))
		if err := sleepCtx(ctx, p.cfg.BatchPause); err != nil {
			return err
		}
	}
}

// nextBatch dequeues up to BatchSize tasks. done reports the queue is
// closed and drained.
func (p *Pool) nextBatch(ctx context.Context) ([]Task, bool, error) {
	var batch []Task
	for len(batch) < p.cfg.BatchSize {
		task, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) {
				return batch, true, nil
			}
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			return nil, false, err
		}
		batch = append(batch, task)
	}
	return batch, false, nil
}

func (p *Pool) runBatch(ctx context.Context, batch []Task) error {
	batchCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	tasks := make(chan Task)
	var wg sync.WaitGroup
	workers := p.cfg.Workers
	if workers > len(batch) {
		workers = len(batch)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				p.runTask(batchCtx, task, cancel)
			}
		}()
	}

	for _, task := range batch {
		select {
		case tasks <- task:
		case <-batchCtx.Done():
		}
		if batchCtx.Err() != nil {
			break
		}
	}
	close(tasks)
	wg.Wait()

	if cause := context.Cause(batchCtx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return ctx.Err()
}

// runTask retries one task through denied admission cycles, counting them
// toward the abandonment ceiling. Any terminal outcome resets the ceiling.
func (p *Pool) runTask(ctx context.Context, task Task, cancel context.CancelCauseFunc) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, err := p.worker.Process(ctx, task)
		switch {
		case errors.Is(err, ErrCircuitOpen):
			if p.openCycles.Add(1) >= int64(p.cfg.MaxOpenCycles) {
				p.logger.Warn("abandoning run",
					zap.Int("open_cycles", p.cfg.MaxOpenCycles),
				)
				cancel(ErrRunAbandoned)
				return
			}
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return
		default:
			// Success or a terminal task failure. The governor already saw
			// the outcome; failed tasks are not retried here.
			p.openCycles.Store(0)
			return
		}
	}
}

func (p *Pool) emitRun(kind progress.Kind) {
	if p.emitter == nil {
		return
	}
	p.emitter.Emit(progress.Event{
		RunID: p.runID,
		TS:    time.Now().UTC(),
		Kind:  kind,
	})
}
