// Package handlers provides HTTP handlers for stress testing operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/meridianquant/riskdesk/internal/domain"
	"github.com/meridianquant/riskdesk/internal/events"
	"github.com/meridianquant/riskdesk/internal/modules/stress"
)

// Handler handles stress testing HTTP requests
type Handler struct {
	service *stress.Service
	bus     *events.Bus
	log     zerolog.Logger
}

// NewHandler creates a new stress testing handler
func NewHandler(service *stress.Service, bus *events.Bus, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		bus:     bus,
		log:     log.With().Str("handler", "stress").Logger(),
	}
}

// HandleGetScenarios handles GET /api/risk/scenarios
func (h *Handler) HandleGetScenarios(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": h.service.HistoricalScenarios(),
	})
}

type stressTestRequest struct {
	PortfolioID string            `json:"portfolioId"`
	Positions   []domain.Position `json:"positions"`
	Leverage    float64           `json:"leverage"`
	Scenarios   []stress.Scenario `json:"scenarios"`
}

// HandleRunStressTest handles POST /api/risk/stress-test. Positions come
// either inline or from a stored portfolio; scenarios default to the
// predefined historical set.
func (h *Handler) HandleRunStressTest(w http.ResponseWriter, r *http.Request) {
	var req stressTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var summary *stress.Summary
	var err error
	switch {
	case req.PortfolioID != "":
		summary, err = h.service.RunForPortfolio(req.PortfolioID, req.Leverage, req.Scenarios)
	case len(req.Positions) > 0:
		summary = h.service.Run(stress.Request{
			Positions: req.Positions,
			Leverage:  req.Leverage,
			Scenarios: req.Scenarios,
		})
	default:
		http.Error(w, "Either positions or portfolioId is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", req.PortfolioID).Msg("Failed to run stress test")
		h.writeError(w, err)
		return
	}

	if h.bus != nil && summary.WorstCase != nil {
		h.bus.Publish(events.StressTestCompleted, "stress", map[string]interface{}{
			"portfolioId":     req.PortfolioID,
			"scenarios":       len(summary.Scenarios),
			"worstCase":       summary.WorstCase.ScenarioName,
			"resilienceScore": summary.ResilienceScore,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": summary})
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
