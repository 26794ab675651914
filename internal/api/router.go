package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// System metrics (no auth required for basic monitoring)
		r.Get("/metrics", s.handleMetrics)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires authentication - user must be logged in to request a ticket
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Pair endpoints
			r.Route("/pairs", func(r chi.Router) {
				r.Get("/", s.handleListPairs)
				r.Post("/", s.handleCreatePair)
				r.Get("/discover", s.handleDiscoverPairs)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetPair)
					r.Patch("/", s.handleRenamePair)
					r.Delete("/", s.handleDeletePair)
					r.Get("/state", s.handleGetClimateState)
					r.Get("/sources", s.handleGetClimateSources)
					r.Get("/history", s.handleGetClimateHistory)
					r.Post("/commands", s.handleClimateCommand)
				})
			})

			// Activity trail
			r.Get("/audit", s.handleListAudit)

			// WebSocket (auth via ticket, validated in handler)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
