// Package api serves the optimizer control surface over HTTP
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ajitpratap0/hybridopt/internal/metrics"
)

// Server represents the REST API server
type Server struct {
	router *gin.Engine
	addr   string
	server *http.Server
	log    zerolog.Logger
}

// Config contains server configuration. Coordinator and Scheduler are required;
// Store, Strategy and Health are optional.
type Config struct {
	Host        string
	Port        int
	Coordinator Coordinator
	Scheduler   Scheduler
	Store       ResultStore
	Strategy    StrategyView
	Health      func(ctx context.Context) error
	Logger      zerolog.Logger
}

// NewServer creates a new API server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Coordinator == nil || cfg.Scheduler == nil {
		return nil, fmt.Errorf("coordinator and scheduler are required")
	}

	gin.SetMode(gin.ReleaseMode)
	log := cfg.Logger.With().Str("component", "api").Logger()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(metrics.GinMiddleware())

	h := NewHandler(cfg.Coordinator, cfg.Scheduler, cfg.Store, cfg.Strategy, cfg.Health)
	router.GET("/health", h.Health)
	h.RegisterRoutes(router.Group("/api/v1"))

	return &Server{
		router: router,
		addr:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		log:    log,
	}, nil
}

// Router exposes the gin engine, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until Stop is called
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info().Str("addr", s.addr).Msg("Starting API server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info().Msg("Stopping API server")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
	}
	return nil
}

// LoggerMiddleware logs one line per request
func LoggerMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Warn()
		}
		event = event.
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP())

		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Msg("API request")
	}
}
