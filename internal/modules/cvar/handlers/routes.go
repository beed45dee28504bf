package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all tail-risk routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/risk/cvar", h.HandleCalculate)
	r.Post("/risk/cvar/contributions", h.HandleContributions)
}
