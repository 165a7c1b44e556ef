// Package api exposes the HTTP interface for the harvest service: health
// probes, Prometheus metrics, the live governor status, operator
// recommendations, and the persisted attempt log.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	googleuuid "github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"promptharvest/internal/governor"
	"promptharvest/internal/guard"
	"promptharvest/internal/storage"
)

// StatusSource yields the combined governor view.
type StatusSource interface {
	Snapshot() governor.Status
}

// ResourceSource yields the latest guard sample.
type ResourceSource interface {
	Last() guard.Sample
}

// Config carries the server knobs the handlers need.
type Config struct {
	AuthEnabled bool
	APIKey      string
	// Gatherer serves /metrics; nil falls back to the default gatherer.
	Gatherer prometheus.Gatherer
	// MaxMemoryMB and MaxCPUPercent mirror the guard ceilings so the
	// recommendation handler can warn before a breach.
	MaxMemoryMB   float64
	MaxCPUPercent float64
}

// Server wires HTTP handlers to the governor, the guard, and the attempt
// store. guard and store may be nil; their routes degrade gracefully.
type Server struct {
	router    chi.Router
	status    StatusSource
	resources ResourceSource
	store     storage.AttemptStore
	runID     googleuuid.UUID
	startedAt time.Time
	cfg       Config
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	status StatusSource,
	resources ResourceSource,
	store storage.AttemptStore,
	runID googleuuid.UUID,
	cfg Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		status:    status,
		resources: resources,
		store:     store,
		runID:     runID,
		startedAt: time.Now().UTC(),
		cfg:       cfg,
		logger:    logger,
	}

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.AuthEnabled {
		r.Use(apiKeyMiddleware(cfg.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.getStatus)
		r.Get("/recommendations", s.getRecommendations)
		r.Route("/runs/{run_id}", func(r chi.Router) {
			r.Get("/attempts", s.listAttempts)
			r.Get("/summary", s.getRunSummary)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type statusResponse struct {
	RunID         string          `json:"run_id"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Circuit       circuitStatus   `json:"circuit"`
	Health        healthStatus    `json:"health"`
	Resources     *resourceStatus `json:"resources,omitempty"`
	Summary       string          `json:"summary"`
}

type circuitStatus struct {
	State               string     `json:"state"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	OpenedAt            *time.Time `json:"opened_at,omitempty"`
}

type healthStatus struct {
	State        string  `json:"state"`
	ErrorRate    float64 `json:"error_rate"`
	AvgLatencyMs int64   `json:"avg_latency_ms"`
	BlockSignals int     `json:"block_signals"`
	SampleCount  int     `json:"sample_count"`
}

type resourceStatus struct {
	MemoryMB   float64   `json:"memory_mb"`
	CPUPercent float64   `json:"cpu_percent"`
	SampledAt  time.Time `json:"sampled_at"`
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	status := s.status.Snapshot()

	resp := statusResponse{
		RunID:         s.runID.String(),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Circuit: circuitStatus{
			State:               string(status.Circuit.State),
			ConsecutiveFailures: status.Circuit.ConsecutiveFailures,
		},
		Health: healthStatus{
			State:        string(status.Health.State),
			ErrorRate:    status.Health.ErrorRate,
			AvgLatencyMs: status.Health.AvgLatency.Milliseconds(),
			BlockSignals: status.Health.BlockSignals,
			SampleCount:  status.Health.SampleCount,
		},
		Summary: status.String(),
	}
	if !status.Circuit.OpenedAt.IsZero() {
		openedAt := status.Circuit.OpenedAt
		resp.Circuit.OpenedAt = &openedAt
	}
	if s.resources != nil {
		if sample := s.resources.Last(); !sample.At.IsZero() {
			resp.Resources = &resourceStatus{
				MemoryMB:   sample.MemoryMB,
				CPUPercent: sample.CPUPercent,
				SampledAt:  sample.At,
			}
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listAttempts(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusNotImplemented, "attempt log not configured")
		return
	}
	runID, err := googleuuid.Parse(chi.URLParam(r, "run_id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	attempts, err := s.store.ListAttempts(r.Context(), runID, limit, offset)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list attempts")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":   runID.String(),
		"attempts": attempts,
	})
}

func (s *Server) getRunSummary(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusNotImplemented, "attempt log not configured")
		return
	}
	runID, err := googleuuid.Parse(chi.URLParam(r, "run_id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	summary, err := s.store.GetRunSummary(r.Context(), runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to summarize run")
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
		return def
	}
	return n
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := googleuuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
