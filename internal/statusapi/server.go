// Package statusapi serves doze's local observability endpoints: the
// agent's last published snapshot, a health probe, and Prometheus
// metrics. It binds to loopback by default and carries no
// authentication, so it must not be exposed beyond the host.
package statusapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"doze/internal/config"
	"doze/internal/logging"
	"doze/internal/statestore"
)

// Server exposes doze status over a local HTTP listener.
type Server struct {
	cfg     config.APIConfig
	store   statestore.Store
	health  func() error
	version string
	logger  *logging.Logger

	httpServer *http.Server
}

// NewServer creates a status server. health is consulted by the
// /healthz probe; nil means always healthy.
func NewServer(cfg config.APIConfig, store statestore.Store, health func() error, version string, logger *logging.Logger) *Server {
	return &Server{
		cfg:     cfg,
		store:   store,
		health:  health,
		version: version,
		logger:  logger,
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": s.version,
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot, found, err := s.store.LoadSnapshot()
	if err != nil {
		s.logger.Warn("api.status.load_failed", "Could not load snapshot", map[string]interface{}{
			"error": err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "snapshot unavailable")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no snapshot published yet")
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// Start begins serving in the background. The listener is created
// synchronously so bind errors surface immediately.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Listen, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("api.serve.failed", "Status API stopped unexpectedly", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	s.logger.Info("api.started", "Status API listening", map[string]interface{}{
		"listen": listener.Addr().String(),
	})
	return nil
}

// Stop shuts the listener down, waiting for in-flight requests up to
// the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}
