// Package main wires together the harvest service binary.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"promptharvest/internal/api"
	"promptharvest/internal/cache"
	"promptharvest/internal/clock/system"
	"promptharvest/internal/config"
	"promptharvest/internal/fetch"
	collyfetch "promptharvest/internal/fetch/colly"
	"promptharvest/internal/fetch/headless"
	"promptharvest/internal/governor"
	"promptharvest/internal/guard"
	"promptharvest/internal/hash/sha256"
	"promptharvest/internal/id/uuid"
	"promptharvest/internal/logging"
	"promptharvest/internal/policy/ratelimit"
	"promptharvest/internal/progress"
	"promptharvest/internal/progress/sinks"
	pubsubpublisher "promptharvest/internal/publisher/pubsub"
	queuememory "promptharvest/internal/queue/memory"
	"promptharvest/internal/storage"
	storagememory "promptharvest/internal/storage/memory"
	"promptharvest/internal/storage/postgres"
	"promptharvest/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	targetsPath := flag.String("targets", "", "Path to a newline-delimited URL list")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	targets, err := loadTargets(*targetsPath, flag.Args())
	if err != nil {
		logger.Fatal("load targets failed", zap.Error(err))
	}
	if len(targets) == 0 {
		logger.Fatal("no targets given; pass -targets or URL arguments")
	}

	runID, err := uuid.New().NewRawID()
	if err != nil {
		logger.Fatal("generate run id failed", zap.Error(err))
	}
	logger.Info("harvest run starting",
		zap.String("run_id", runID.String()),
		zap.Int("targets", len(targets)),
	)

	registry := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		logger.Fatal("metrics init failed", zap.Error(err))
	}

	var store storage.AttemptStore
	if cfg.DB.DSN != "" {
		pgStore, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: int32(cfg.DB.MaxConns),
			MinConns: int32(cfg.DB.MinConns),
		})
		if err != nil {
			logger.Fatal("database init failed", zap.Error(err))
		}
		defer pgStore.Close()
		store = pgStore
	} else {
		store = storagememory.New()
	}

	sinkList := []progress.Sink{
		sinks.NewLogSink(logger.Named("events")),
		promSink,
		sinks.NewStoreSink(store, logger.Named("store")),
	}
	if cfg.PubSub.ProjectID != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("pubsub init failed", zap.Error(err))
		}
		defer client.Close() //nolint:errcheck // best-effort close
		sinkList = append(sinkList, sinks.NewAlertSink(
			pubsubpublisher.New(client),
			cfg.PubSub.TopicName,
			logger.Named("alerts"),
		))
	}

	hub := progress.NewHub(progress.Config{Logger: logger.Named("progress")}, sinkList...)
	notifier := progress.NewNotifier(runID, hub)

	clk := system.New()
	resultCache := cache.New(cfg.CacheSettings(), clk)
	defer resultCache.Close()

	gov := governor.New(cfg.GovernorSettings(), clk,
		governor.WithCache(resultCache),
		governor.WithNotifier(notifier),
	)

	resourceGuard, err := guard.New(cfg.GuardSettings(), logger.Named("guard"), notifier)
	if err != nil {
		logger.Fatal("resource guard init failed", zap.Error(err))
	}
	resourceGuard.OnBreach("result cache purge", resultCache.Purge)
	resourceGuard.Start(ctx)
	defer resourceGuard.Stop()

	agents := fetch.NewUserAgentPool(nil, 0)
	fetchers := []fetch.Fetcher{
		collyfetch.New(collyfetch.Config{
			Timeout:       time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
			RespectRobots: cfg.Fetch.RespectRobots,
		}, agents),
	}
	if cfg.Headless.Enabled {
		browser, err := headless.NewChromedp(headless.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		}, agents)
		if err != nil {
			logger.Warn("headless fetcher init failed", zap.Error(err))
		} else {
			fetchers = append(fetchers, browser)
		}
	}
	chain := fetch.NewChain(logger.Named("fetch"), fetchers...)
	if len(fetchers) > 1 {
		chain = chain.WithPromoter(fetch.NewPromoter(0))
	}

	pacerLogger := logger.Named("pacer")
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.RateLimit.DefaultRPS,
		DefaultBurst: cfg.RateLimit.DefaultBurst,
		OnDelay: func(host string, d time.Duration) {
			pacerLogger.Debug("pacing wait", zap.String("host", host), zap.Duration("wait", d))
		},
	})

	// All targets enqueue before the pool starts, so the buffer must hold
	// the full run.
	depth := cfg.Fleet.QueueDepth
	if len(targets) > depth {
		depth = len(targets)
	}
	queue := queuememory.NewQueue(depth)
	for _, url := range targets {
		if err := queue.Enqueue(ctx, worker.Task{URL: url}); err != nil {
			logger.Fatal("enqueue target failed", zap.String("url", url), zap.Error(err))
		}
	}
	queue.Close()

	w := worker.New(
		gov,
		governor.NewBlockMatcher(nil),
		limiter,
		chain,
		sha256.New(),
		hub,
		progress.UUIDToBytes(runID),
		cfg.WorkerSettings(),
		logger.Named("worker"),
	)
	pool := worker.NewPool(
		cfg.PoolSettings(),
		queue,
		w,
		hub,
		progress.UUIDToBytes(runID),
		logger.Named("pool"),
	)

	apiServer := api.NewServer(gov, resourceGuard, store, runID, api.Config{
		AuthEnabled:   cfg.Auth.Enabled,
		APIKey:        cfg.Auth.APIKey,
		Gatherer:      registry,
		MaxMemoryMB:   cfg.Guard.MaxMemoryMB,
		MaxCPUPercent: cfg.Guard.MaxCPUPercent,
	}, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	poolDone := make(chan error, 1)
	go func() {
		poolDone <- pool.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	select {
	case err := <-poolDone:
		switch {
		case err == nil:
			logger.Info("harvest run complete", zap.String("run_id", runID.String()))
		case errors.Is(err, worker.ErrRunAbandoned):
			logger.Warn("harvest run abandoned", zap.String("run_id", runID.String()))
		default:
			logger.Error("harvest run failed", zap.Error(err))
		}
		// Keep serving status until the operator stops the process.
		<-ctx.Done()
	case <-ctx.Done():
		<-poolDone
	}
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	resourceGuard.Stop()
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Error("event hub close error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// loadTargets merges the -targets file with positional URL arguments. Blank
// lines and #-comments are skipped.
func loadTargets(path string, args []string) ([]string, error) {
	targets := append([]string(nil), args...)
	if path == "" {
		return targets, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open targets file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}
	return targets, nil
}
