// internal/api/router.go
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SetupDataRouter wires the ingestion and operations API. Device
// submissions authenticate with an API key; the diagnostic and dashboard
// reads require an operator JWT.
func SetupDataRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.HandleHealthz)
	r.Post("/api/v1/auth/token", h.HandleToken)

	r.Group(func(r chi.Router) {
		r.Use(h.Auth.APIKeyMiddleware)
		r.Post("/api/v1/readings", h.HandleSubmitReading)
		r.Post("/api/v1/buffer/sweep", h.HandleSweep)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.Auth.JWTMiddleware)
		r.Get("/api/v1/buffer/status", h.HandleBufferStatus)
		r.Get("/api/v1/readings/recent", h.HandleRecentReadings)
		r.Get("/api/v1/alerts", h.HandleAlerts)
	})

	return r
}

// SetupUIRouter serves the live websocket feed for dashboard clients.
func SetupUIRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ws", h.HandleWebSocket)

	return r
}
