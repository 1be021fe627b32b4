package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/memory-anchor/internal/config"
	"github.com/kozaktomas/memory-anchor/internal/display"
	"github.com/kozaktomas/memory-anchor/internal/enrollment"
	"github.com/kozaktomas/memory-anchor/internal/logger"
	"github.com/kozaktomas/memory-anchor/internal/metrics"
	"github.com/kozaktomas/memory-anchor/internal/registry"
	"github.com/kozaktomas/memory-anchor/internal/scanner"
	"github.com/kozaktomas/memory-anchor/internal/web/handlers"
	"github.com/kozaktomas/memory-anchor/internal/web/middleware"
)

// Deps are the application services the API exposes.
type Deps struct {
	Registry   *registry.Registry
	Enrollment *enrollment.Service
	Scanner    *scanner.Controller
	Events     *display.Broadcaster
	Images     handlers.ImageOpener // nil when image storage is disabled
	Metrics    *metrics.Metrics
	Logger     *logger.Logger
}

// Server represents the web server
type Server struct {
	config     *config.Config
	deps       Deps
	log        *logger.Logger
	router     *chi.Mux
	httpServer *http.Server
	// closeStreams ends open SSE connections on shutdown
	closeStreams func()
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, deps Deps) *Server {
	r := chi.NewRouter()

	s := &Server{
		config: cfg,
		deps:   deps,
		log:    logger.OrNop(deps.Logger).With("service", "web"),
		router: r,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// no WriteTimeout: the scan event stream stays open
		IdleTimeout: 60 * time.Second,
	}
	s.httpServer.RegisterOnShutdown(s.closeStreams)

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("starting web server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
