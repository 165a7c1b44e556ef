package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"promptharvest/internal/fetch"
	"promptharvest/internal/governor"
	"promptharvest/internal/progress"
)

// Config controls Worker behavior.
type Config struct {
	// FetchTimeout bounds one fetch once it is in flight. An in-flight
	// fetch runs on a context detached from the run context, so shutdown
	// waits for it instead of tearing down a half-done request.
	FetchTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 60 * time.Second
	}
	return c
}

// Worker processes single tasks through the full pipeline.
type Worker struct {
	gov     Admission
	matcher *governor.BlockMatcher
	pacer   Pacer
	fetcher fetch.Fetcher
	hasher  Hasher
	emitter progress.Emitter
	runID   [16]byte
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Worker. pacer, hasher, and emitter may be nil.
func New(
	gov Admission,
	matcher *governor.BlockMatcher,
	pacer Pacer,
	fetcher fetch.Fetcher,
	hasher Hasher,
	emitter progress.Emitter,
	runID [16]byte,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if matcher == nil {
		matcher = governor.NewBlockMatcher(nil)
	}
	return &Worker{
		gov:     gov,
		matcher: matcher,
		pacer:   pacer,
		fetcher: fetcher,
		hasher:  hasher,
		emitter: emitter,
		runID:   runID,
		cfg:     cfg.withDefaults(),
		logger:  logger,
	}
}

// Process runs one task through the pipeline. It returns ErrCircuitOpen when
// the governor denied admission for this cycle (after sleeping the advised
// backoff), and the context error when canceled. Any other error is the
// task's terminal failure, already reported to the governor.
func (w *Worker) Process(ctx context.Context, task Task) (Result, error) {
	if body, ok := w.gov.CachedResult(task.URL); ok {
		w.logger.Debug("cache hit", zap.String("url", task.URL))
		w.emitAttempt(task.URL, true, 0, false, "", true, "")
		return Result{Task: task, Body: body, FromCache: true}, nil
	}

	decision := w.gov.ShouldProceed()
	if !decision.Proceed {
		w.logger.Debug("admission denied",
			zap.String("url", task.URL),
			zap.Duration("wait", decision.Wait),
			zap.String("health", string(decision.Health)),
		)
		if err := sleepCtx(ctx, decision.Wait); err != nil {
			return Result{}, err
		}
		return Result{}, ErrCircuitOpen
	}

	if err := sleepCtx(ctx, decision.Wait); err != nil {
		return Result{}, err
	}
	if w.pacer != nil {
		if err := w.pacer.Wait(ctx, task.URL); err != nil {
			return Result{}, fmt.Errorf("pacing wait: %w", err)
		}
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	// The fetch itself runs detached from the run context so cancellation
	// never abandons a request mid-flight; the timeout still bounds it.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	resp, err := w.fetcher.Fetch(fetchCtx, fetch.Request{URL: task.URL, Headers: task.Headers})
	latency := time.Since(start)

	if err != nil {
		return w.finishFailure(task, latency, err)
	}
	if marker, hit := w.matcher.Match(string(resp.Body), resp.URL); hit {
		blockErr := &governor.BlockSignalError{Marker: marker, Source: resp.URL}
		return w.finishFailure(task, latency, blockErr)
	}

	w.gov.ReportOutcome(true, latency, false)
	w.gov.CacheResult(task.URL, resp.Body)

	digest := ""
	if w.hasher != nil {
		if sum, err := w.hasher.Hash(resp.Body); err == nil {
			digest = sum
		}
	}
	w.emitAttempt(task.URL, true, latency, false, "", false, digest)
	return Result{Task: task, Body: resp.Body, Latency: latency}, nil
}

func (w *Worker) finishFailure(task Task, latency time.Duration, err error) (Result, error) {
	kind := governor.Classify(err)
	blocked := kind == governor.FailureBlockSignal

	w.gov.ReportOutcome(false, latency, blocked)

	marker := ""
	if blocked {
		var blockErr *governor.BlockSignalError
		if errors.As(err, &blockErr) {
			marker = blockErr.Marker
		}
		w.logger.Warn("target is blocking",
			zap.String("url", task.URL),
			zap.String("marker", marker),
		)
	} else {
		w.logger.Debug("fetch failed", zap.String("url", task.URL), zap.Error(err))
	}
	w.emitAttempt(task.URL, false, latency, blocked, marker, false, err.Error())
	return Result{Task: task, Latency: latency, Err: err}, err
}

func (w *Worker) emitAttempt(url string, success bool, latency time.Duration, blocked bool, marker string, fromCache bool, note string) {
	if w.emitter == nil {
		return
	}
	w.emitter.Emit(progress.Event{
		RunID:       w.runID,
		TS:          time.Now().UTC(),
		Kind:        progress.KindAttempt,
		URL:         url,
		Success:     success,
		Latency:     latency,
		BlockSignal: blocked,
		Marker:      marker,
		FromCache:   fromCache,
		Note:        note,
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
