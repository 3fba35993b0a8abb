package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Checker reports whether the configured agent backend can be used.
type Checker interface {
	BackendName() string
	Available(ctx context.Context) bool
}

// Server exposes Prometheus metrics and health endpoints while the CLI runs.
type Server struct {
	httpServer *http.Server
	checker    Checker
	version    string
	startTime  time.Time
	ready      atomic.Bool
}

// New creates the metrics listener for addr.
func New(addr, version string, checker Checker) *Server {
	s := &Server{
		checker:   checker,
		version:   version,
		startTime: time.Now(),
	}
	s.ready.Store(true)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get("/health", s.health)
	r.Get("/ready", s.readiness)
	r.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	slog.Info("metrics server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	return s.httpServer.Shutdown(ctx)
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: s.version,
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
	})
}

type readyResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
}

// readiness probes the backend CLI on every request.
func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	resp := readyResponse{Status: "ready", Backend: s.checker.BackendName()}
	switch {
	case !s.ready.Load():
		resp.Status = "shutting_down"
		writeJSON(w, http.StatusServiceUnavailable, resp)
	case !s.checker.Available(r.Context()):
		resp.Status = "backend_unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
