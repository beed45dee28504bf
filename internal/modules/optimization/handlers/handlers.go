// Package handlers provides HTTP handlers for portfolio optimization.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/meridianquant/riskdesk/internal/domain"
	"github.com/meridianquant/riskdesk/internal/modules/optimization"
)

const defaultLookbackDays = 365

// Handler handles optimization HTTP requests
type Handler struct {
	optimizer *optimization.Optimizer
	stats     *optimization.StatsBuilder
	log       zerolog.Logger
}

// NewHandler creates a new optimization handler
func NewHandler(optimizer *optimization.Optimizer, stats *optimization.StatsBuilder, log zerolog.Logger) *Handler {
	return &Handler{
		optimizer: optimizer,
		stats:     stats,
		log:       log.With().Str("handler", "optimization").Logger(),
	}
}

type optimizeRequest struct {
	Symbols    []string           `json:"symbols"`
	Days       int                `json:"days"`
	Strategy   string             `json:"strategy"`
	MinWeights map[string]float64 `json:"minWeights"`
	MaxWeights map[string]float64 `json:"maxWeights"`
}

// HandleOptimize handles POST /api/optimization/optimize
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
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
	if req.Strategy == "" {
		req.Strategy = optimization.StrategyMaxSharpe
	}

	expectedReturns, covMatrix, err := h.stats.Build(req.Symbols, req.Days)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build optimizer statistics")
		h.writeError(w, err)
		return
	}

	result, err := h.optimizer.Optimize(expectedReturns, covMatrix, req.Symbols, req.MinWeights, req.MaxWeights, req.Strategy)
	if err != nil {
		h.log.Error().Err(err).Str("strategy", req.Strategy).Msg("Optimization failed")
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
	case errors.Is(err, domain.ErrInsufficientData):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
