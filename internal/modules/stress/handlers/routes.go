package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all stress testing routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/risk/scenarios", h.HandleGetScenarios)
	r.Post("/risk/stress-test", h.HandleRunStressTest)
}
