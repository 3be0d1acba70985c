// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware, and routes,
// and decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go opens the record store (sqlite, postgres or memory) and passes it in:
//
//	repository.Store → SegmentService → SegmentHandler
//	repository.Store → HealthHandler
//
// This is the "composition root" pattern: all dependencies are wired
// in one place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/user-segments/internal/handler"
	"github.com/sakif/user-segments/internal/middleware"
	"github.com/sakif/user-segments/internal/repository"
	"github.com/sakif/user-segments/internal/service"
)

// Config holds server configuration.
type Config struct {
	Port            int
	RateLimitRPS    float64
	RateLimitBurst  int
	ShutdownTimeout time.Duration
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store it is given. When Start returns, the store has
// been closed, flushing SQLite's WAL or draining the Postgres pool.
type Server struct {
	router  *chi.Mux
	config  Config
	logger  *slog.Logger
	store   repository.Store
	metrics *middleware.Metrics
}

// New creates a new Server over an already opened store.
//
// Each layer only receives what it needs:
// - Service gets the repository interfaces (not the concrete store)
// - Handlers get the service, or just a Pinger for health checks
func New(cfg Config, logger *slog.Logger, store repository.Store) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		store:   store,
		metrics: middleware.NewMetrics(),
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, for tests and for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// POST   /api/users/segment        → Users matching an ad-hoc filter set
// POST   /api/segments             → Save a segment
// GET    /api/segments             → List saved segments
// GET    /api/segments/{id}        → Get one saved segment
// GET    /api/segments/{id}/users  → Users matching a saved segment now
// GET    /healthz                  → Store reachability
// GET    /metrics                  → Prometheus metrics
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added:
// 1. RequestID: assigns a unique ID to each request and echoes it back
// 2. RealIP: extracts real client IP from proxy headers
// 3. Logger: logs each request with its ID and timing info
// 4. Recoverer: turns panics into 500s. Inside Logger, so the 500 is logged
// 5. Metrics: counts requests per route pattern
// 6. CORS: answers preflight requests from any origin
//
// The rate limiter is mounted on /api only, so health checks and metric
// scrapes are never throttled.
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(middleware.RequestIDHeader)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(s.metrics.Middleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	segmentService := service.NewSegmentService(s.store, s.store, s.logger)
	segmentHandler := handler.NewSegmentHandler(segmentService, s.logger)
	healthHandler := handler.NewHealthHandler(s.store, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(s.config.RateLimitRPS, s.config.RateLimitBurst))

		r.Post("/users/segment", segmentHandler.HandleQueryUsers)

		r.Route("/segments", func(r chi.Router) {
			r.Post("/", segmentHandler.HandleCreate)
			r.Get("/", segmentHandler.HandleList)
			r.Get("/{id}", segmentHandler.HandleGetByID)
			r.Get("/{id}/users", segmentHandler.HandleSegmentUsers)
		})
	})
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
// main.go cancels ctx on SIGINT/SIGTERM. Then:
// 1. Stop accepting new HTTP connections
// 2. Wait up to ShutdownTimeout for in-flight requests to finish
// 3. Close the store
//
// WHY errgroup?
// Two goroutines share one fate: the listener and the shutdown watcher.
// errgroup.WithContext cancels the watcher's context if the listener dies
// (port already in use), and Wait returns the first real error.
func (s *Server) Start(ctx context.Context) error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down", slog.Duration("timeout", s.config.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	})

	return g.Wait()
}
