// Package server implements the C9 HTTP boundary: a chi router fronting
// internal/aggregator, matching the teacher's handler conventions
// (zerolog-scoped Handler structs, a writeJSON/writeError pair) while
// serving this module's own routes (spec §6).
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/questrade-sentinel/internal/aggregator"
	"github.com/aristath/questrade-sentinel/internal/config"
	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/aristath/questrade-sentinel/internal/evaluator"
	"github.com/aristath/questrade-sentinel/internal/events"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// Config bundles everything the HTTP boundary needs to serve requests.
type Config struct {
	Port       int
	Log        zerolog.Logger
	Aggregator *aggregator.Aggregator
	Config     *config.FileConfigStore
	Models     *evaluator.Registry
	Clock      domain.Clock
	Bus        *events.Bus
	DevMode    bool
}

// Server wraps the chi router and the underlying http.Server.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// New builds the router and wires every handler group.
func New(cfg Config) *Server {
	if cfg.Clock == nil {
		cfg.Clock = domain.SystemClock{}
	}
	log := cfg.Log.With().Str("component", "http_server").Logger()

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(correlationMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Correlation-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := &Handler{agg: cfg.Aggregator, config: cfg.Config, models: cfg.Models, clock: cfg.Clock, log: log}
	h.RegisterRoutes(r)

	if cfg.Bus != nil {
		r.Get("/api/events", NewEventsStreamHandler(cfg.Bus, log).ServeHTTP)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              httpAddr(cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

func httpAddr(port int) string {
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf(":%d", port)
}

// Start runs the HTTP server; it blocks until Shutdown stops it, returning
// http.ErrServerClosed in that case (matching net/http's convention).
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
