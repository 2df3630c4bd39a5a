package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires every endpoint onto one chi router: ingestion, queries,
// the websocket upgrade, and operational probes.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/ingest", h.HandleIngest)
		r.Get("/events", h.HandleEvents)
		r.Get("/analytics", h.HandleAnalytics)
		r.Get("/intersection/{id}/patterns", h.HandlePatterns)
		r.Get("/highway/{id}/summary", h.HandleCorridorSummary)
		r.Get("/demo/generate", h.HandleDemoGenerate)
	})

	r.Get("/ws", h.HandleWebSocket)
	r.Get("/healthz", h.HandleHealthz)
	r.Handle("/metrics", h.metrics.Handler())

	return r
}
