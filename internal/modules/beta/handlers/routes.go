package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all beta calculation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolios/{id}/beta", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			h.HandleCalculate(w, r, chi.URLParam(r, "id"))
		})
		r.Get("/multi", func(w http.ResponseWriter, r *http.Request) {
			h.HandleCalculateMultiMarket(w, r, chi.URLParam(r, "id"))
		})
		r.Get("/rolling", func(w http.ResponseWriter, r *http.Request) {
			h.HandleCalculateRolling(w, r, chi.URLParam(r, "id"))
		})
	})
}
