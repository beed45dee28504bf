// Package handlers provides HTTP handlers for correlation analysis operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/meridianquant/riskdesk/internal/domain"
	"github.com/meridianquant/riskdesk/internal/modules/correlation"
)

const defaultLookbackDays = 365

// Handler handles correlation analysis HTTP requests
type Handler struct {
	service *correlation.Service
	log     zerolog.Logger
}

// NewHandler creates a new correlation handler
func NewHandler(service *correlation.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "correlation").Logger(),
	}
}

type matrixRequest struct {
	Symbols []string `json:"symbols"`
	Days    int      `json:"days"`
}

// HandleCalculateMatrix handles POST /api/correlation/matrix
func (h *Handler) HandleCalculateMatrix(w http.ResponseWriter, r *http.Request) {
	var req matrixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Symbols) < 2 {
		http.Error(w, "At least 2 symbols required", http.StatusBadRequest)
		return
	}
	if req.Days <= 0 {
		req.Days = defaultLookbackDays
	}

	result, err := h.service.CalculateMatrix(req.Symbols, req.Days)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to calculate correlation matrix")
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": result})
}

type rollingRequest struct {
	Symbol1       string `json:"symbol1"`
	Symbol2       string `json:"symbol2"`
	Days          int    `json:"days"`
	RollingWindow int    `json:"rollingWindow"`
}

// HandleCalculateRolling handles POST /api/correlation/rolling
func (h *Handler) HandleCalculateRolling(w http.ResponseWriter, r *http.Request) {
	var req rollingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Symbol1 == "" || req.Symbol2 == "" {
		http.Error(w, "symbol1 and symbol2 are required", http.StatusBadRequest)
		return
	}
	if req.Days <= 0 {
		req.Days = defaultLookbackDays
	}
	if req.RollingWindow <= 0 {
		req.RollingWindow = 30
	}

	points, err := h.service.CalculateRolling(req.Symbol1, req.Symbol2, req.Days, req.RollingWindow)
	if err != nil {
		h.log.Error().Err(err).
			Str("symbol1", req.Symbol1).
			Str("symbol2", req.Symbol2).
			Msg("Failed to calculate rolling correlation")
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": points})
}

// HandleCalculatePortfolio handles GET /api/portfolios/{id}/correlation
func (h *Handler) HandleCalculatePortfolio(w http.ResponseWriter, r *http.Request, portfolioID string) {
	days := queryInt(r, "days", defaultLookbackDays)

	result, err := h.service.CalculatePortfolio(portfolioID, days)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", portfolioID).Msg("Failed to calculate portfolio correlations")
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": result})
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
