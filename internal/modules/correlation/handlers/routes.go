package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all correlation analysis routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/correlation", func(r chi.Router) {
		r.Post("/matrix", h.HandleCalculateMatrix)
		r.Post("/rolling", h.HandleCalculateRolling)
	})

	r.Get("/portfolios/{id}/correlation", func(w http.ResponseWriter, r *http.Request) {
		h.HandleCalculatePortfolio(w, r, chi.URLParam(r, "id"))
	})
}
