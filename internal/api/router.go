// Package api exposes the operational HTTP surface: probes, the preview
// page, and the administrative state wipe.
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vidrelay/vidrelay/internal/api/handler"
	mw "github.com/vidrelay/vidrelay/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	healthHandler *handler.HealthHandler,
	previewHandler *handler.PreviewHandler,
	adminHandler *handler.AdminHandler,
	apiKey string,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health endpoints (no auth)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	// Preview page must be unauthenticated; it is opened from chat clients.
	r.Get("/p", previewHandler.Show)

	// API v1 (authenticated)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(apiKey))

		r.Delete("/state", adminHandler.WipeState)
	})

	return r
}
