// Package handlers provides HTTP handlers for beta calculation operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/meridianquant/riskdesk/internal/domain"
	"github.com/meridianquant/riskdesk/internal/modules/beta"
)

const defaultLookbackDays = 365

// Handler handles beta calculation HTTP requests
type Handler struct {
	service *beta.Service
	log     zerolog.Logger
}

// NewHandler creates a new beta handler
func NewHandler(service *beta.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "beta").Logger(),
	}
}

// HandleCalculate handles GET /api/portfolios/{id}/beta
func (h *Handler) HandleCalculate(w http.ResponseWriter, r *http.Request, portfolioID string) {
	days := queryInt(r, "days", defaultLookbackDays)
	market := r.URL.Query().Get("market")
	if market == "" {
		market = beta.PrimaryMarketSymbol
	}

	result, err := h.service.Calculate(portfolioID, days, market)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", portfolioID).Msg("Failed to calculate beta")
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": result})
}

// HandleCalculateMultiMarket handles GET /api/portfolios/{id}/beta/multi
func (h *Handler) HandleCalculateMultiMarket(w http.ResponseWriter, r *http.Request, portfolioID string) {
	days := queryInt(r, "days", defaultLookbackDays)

	result, err := h.service.CalculateMultiMarket(portfolioID, days)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", portfolioID).Msg("Failed to calculate multi-market beta")
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": result})
}

// HandleCalculateRolling handles GET /api/portfolios/{id}/beta/rolling
func (h *Handler) HandleCalculateRolling(w http.ResponseWriter, r *http.Request, portfolioID string) {
	days := queryInt(r, "days", defaultLookbackDays)
	window := queryInt(r, "window", 30)
	market := r.URL.Query().Get("market")
	if market == "" {
		market = beta.PrimaryMarketSymbol
	}

	points, err := h.service.CalculateRolling(portfolioID, days, window, market)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", portfolioID).Msg("Failed to calculate rolling beta")
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": points})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInsufficientData), errors.Is(err, domain.ErrInsufficientPositions):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
