// Package metrics exposes Prometheus metrics for the optimizer and the HTTP server serving them
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ReadinessFunc reports whether the process can serve; nil means ready
type ReadinessFunc func() error

// Server serves /metrics and /health
type Server struct {
	port   int
	ready  ReadinessFunc
	server *http.Server
	log    zerolog.Logger
}

// NewServer creates a metrics server; ready may be nil
func NewServer(port int, ready ReadinessFunc, log zerolog.Logger) *Server {
	return &Server{
		port:  port,
		ready: ready,
		log:   log.With().Str("component", "metrics_server").Logger(),
	}
}

// Handler returns the mux served by Start
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.health)
	return mux
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	if s.ready != nil {
		if err := s.ready(); err != nil {
			http.Error(w, fmt.Sprintf("%v: %v", ErrNotReady, err), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Start serves in the background
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info().Int("port", s.port).Msg("Starting metrics server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("Metrics server error")
		}
	}()

	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown metrics server: %w", err)
	}

	s.log.Info().Msg("Metrics server shutdown complete")
	return nil
}
