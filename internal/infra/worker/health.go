package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"donation-relay/internal/observability/logging"
)

// HealthServer provides HTTP endpoints for health checks.
//   - /health: Liveness probe (always returns 200 OK)
//   - /health/ready: Readiness probe (200 once the relay is polling, 503 before)
//   - /health/cycle: Outcome of the most recent poll cycle
//
// The server supports graceful shutdown via context cancellation.
//
// Example usage:
//
//	healthServer := NewHealthServer(":9091", logger)
//	g.Go(func() error { return healthServer.Start(ctx) })
//	// after the watermark is seeded and destinations are ready
//	healthServer.SetReady(true)
type HealthServer struct {
	addr    string
	logger  *slog.Logger
	isReady *atomic.Bool
	server  *http.Server

	mu    sync.Mutex
	cycle CycleStatus
}

// CycleStatus describes recent poll cycle outcomes.
type CycleStatus struct {
	LastRun             time.Time `json:"last_run,omitzero"`
	LastSuccess         time.Time `json:"last_success,omitzero"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Announced           int       `json:"announced_total"`
}

// healthResponse is the JSON response format for health check endpoints.
type healthResponse struct {
	Status string `json:"status"`
}

// NewHealthServer creates a health check server that is not ready and not
// started.
func NewHealthServer(addr string, logger *slog.Logger) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	isReady := &atomic.Bool{}
	isReady.Store(false)

	return &HealthServer{
		addr:    addr,
		logger:  logger,
		isReady: isReady,
	}
}

// Handler returns the health endpoints.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleLiveness)
	mux.HandleFunc("GET /health/ready", h.handleReadiness)
	mux.HandleFunc("GET /health/cycle", h.handleCycle)
	return mux
}

// Start serves until ctx is cancelled, then shuts down within 5 seconds.
// It returns nil after a graceful shutdown.
func (h *HealthServer) Start(ctx context.Context) error {
	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      h.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		h.logger.Info("health server starting", slog.String("addr", h.addr))
		errChan <- h.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		h.logger.Info("health server shutting down")
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			h.logger.Error("health server shutdown failed", slog.Any("error", err))
			return err
		}
		h.logger.Info("health server stopped")
		return nil

	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		h.logger.Error("health server failed", slog.Any("error", err))
		return err
	}
}

// SetReady sets the readiness state reported by /health/ready.
func (h *HealthServer) SetReady(ready bool) {
	h.isReady.Store(ready)
	h.logger.Info("health server readiness changed", slog.Bool("ready", ready))
}

// RecordCycle stores the outcome of one poll cycle.
func (h *HealthServer) RecordCycle(announced int, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	h.cycle.LastRun = now
	h.cycle.Announced += announced
	if err != nil {
		h.cycle.ConsecutiveFailures++
		h.cycle.LastError = logging.SanitizeError(err)
		return
	}
	h.cycle.ConsecutiveFailures = 0
	h.cycle.LastError = ""
	h.cycle.LastSuccess = now
}

// Cycle returns a copy of the recorded cycle status.
func (h *HealthServer) Cycle() CycleStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cycle
}

// handleLiveness always returns 200 OK with {"status":"ok"}.
func (h *HealthServer) handleLiveness(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// handleReadiness returns 200 OK once ready and 503 before that.
func (h *HealthServer) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if h.isReady.Load() {
		h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
		return
	}
	h.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "not ready"})
}

// handleCycle reports the cycle status. Cycle failures do not change the
// status code; the relay keeps polling through them.
func (h *HealthServer) handleCycle(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Cycle())
}

func (h *HealthServer) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode health response", slog.Any("error", err))
	}
}
