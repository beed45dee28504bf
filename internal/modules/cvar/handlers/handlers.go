// Package handlers provides HTTP handlers for tail-risk (VaR/CVaR) operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/meridianquant/riskdesk/internal/domain"
	"github.com/meridianquant/riskdesk/internal/modules/cvar"
)

const defaultLookbackDays = 365

// Handler handles tail-risk HTTP requests
type Handler struct {
	service *cvar.Service
	log     zerolog.Logger
}

// NewHandler creates a new CVaR handler
func NewHandler(service *cvar.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "cvar").Logger(),
	}
}

type calculateRequest struct {
	Returns         []float64 `json:"returns"`
	PortfolioID     string    `json:"portfolioId"`
	Days            int       `json:"days"`
	PortfolioValue  float64   `json:"portfolioValue"`
	ConfidenceLevel float64   `json:"confidenceLevel"`
}

// HandleCalculate handles POST /api/risk/cvar. The caller provides either a
// raw return series with a portfolio value, or a portfolio ID to resolve both
// from stored positions and price history.
func (h *Handler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ConfidenceLevel <= 0 || req.ConfidenceLevel >= 100 {
		req.ConfidenceLevel = 95
	}

	var result *cvar.Result
	var err error
	switch {
	case req.PortfolioID != "":
		days := req.Days
		if days <= 0 {
			days = defaultLookbackDays
		}
		result, err = h.service.CalculateForPortfolio(req.PortfolioID, days)
	case len(req.Returns) > 0:
		result, err = h.service.Calculate(req.Returns, req.PortfolioValue)
	default:
		http.Error(w, "Either returns or portfolioId is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to calculate CVaR")
		h.writeError(w, err)
		return
	}

	parametric := h.service.CalculateParametric(result.Returns, result.PortfolioValue, req.ConfidenceLevel)
	worst := h.service.IdentifyWorstScenarios(result.Returns)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"historical":     result,
			"parametric":     parametric,
			"worstScenarios": worst,
		},
	})
}

type contributionsRequest struct {
	AssetReturns   map[string][]float64 `json:"assetReturns"`
	Weights        map[string]float64   `json:"portfolioWeights"`
	PortfolioValue float64              `json:"portfolioValue"`
}

// HandleContributions handles POST /api/risk/cvar/contributions
func (h *Handler) HandleContributions(w http.ResponseWriter, r *http.Request) {
	var req contributionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Weights) == 0 {
		http.Error(w, "portfolioWeights is required", http.StatusBadRequest)
		return
	}

	contributions := h.service.CalculateContributions(req.AssetReturns, req.Weights, req.PortfolioValue)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": contributions})
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
