package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/memory-anchor/internal/web/handlers"
	"github.com/kozaktomas/memory-anchor/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	d := s.deps

	// Create handlers
	configHandler := handlers.NewConfigHandler(s.config)
	facesHandler := handlers.NewFacesHandler(d.Registry, d.Enrollment, d.Images)
	scanHandler := handlers.NewScanHandler(d.Scanner, d.Events, d.Registry, d.Metrics.AddSSESubscribers)
	s.closeStreams = scanHandler.CloseStreams
	registryHandler := handlers.NewRegistryHandler(d.Registry)

	// Health check and metrics (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Handle("/metrics", d.Metrics.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireToken(s.config.Web.APIToken))

		// The event stream is long-lived and must not get the request timeout.
		r.Get("/scan/events", scanHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(time.Minute))

			r.Get("/config", configHandler.Get)

			// Faces
			r.Get("/faces", facesHandler.List)
			r.Post("/faces", facesHandler.Create)
			r.Get("/faces/{id}", facesHandler.Get)
			r.Delete("/faces/{id}", facesHandler.Delete)
			r.Get("/faces/{id}/image", facesHandler.Image)
			r.Get("/faces/{id}/similar", facesHandler.Similar)

			// Scanning
			r.Post("/scan/start", scanHandler.Start)
			r.Post("/scan/stop", scanHandler.Stop)
			r.Get("/scan/state", scanHandler.State)

			// Registry backup
			r.Get("/registry/export", registryHandler.Export)
		})
	})
}
