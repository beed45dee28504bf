// Package handlers provides HTTP handlers for rebalancing operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridianquant/riskdesk/internal/domain"
	"github.com/meridianquant/riskdesk/internal/events"
	"github.com/meridianquant/riskdesk/internal/modules/rebalancing"
)

// PlanRecorder persists executed rebalancing plans.
type PlanRecorder interface {
	RecordRebalance(id, portfolioID, reason string, totalValue float64, actions int, executedAt time.Time) error
}

// Handler handles rebalancing HTTP requests
type Handler struct {
	service   *rebalancing.Service
	positions domain.PositionStore
	recorder  PlanRecorder
	bus       *events.Bus
	log       zerolog.Logger
}

// NewHandler creates a new rebalancing handler
func NewHandler(service *rebalancing.Service, positions domain.PositionStore, recorder PlanRecorder, bus *events.Bus, log zerolog.Logger) *Handler {
	return &Handler{
		service:   service,
		positions: positions,
		recorder:  recorder,
		bus:       bus,
		log:       log.With().Str("handler", "rebalancing").Logger(),
	}
}

type analyzeRequest struct {
	PortfolioID   string                     `json:"portfolioId"`
	Positions     []domain.Position          `json:"positions"`
	TargetWeights []rebalancing.TargetWeight `json:"targetWeights"`
	Config        rebalancing.Config         `json:"config"`
	LastRebalance *time.Time                 `json:"lastRebalanceDate"`
}

// HandleAnalyze handles POST /api/rebalancing/analyze. Positions come either
// inline or from a stored portfolio; for stored portfolios the last rebalance
// date is resolved from history unless given explicitly.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.TargetWeights) == 0 {
		http.Error(w, "targetWeights is required", http.StatusBadRequest)
		return
	}

	positions := req.Positions
	lastRebalance := req.LastRebalance
	if req.PortfolioID != "" {
		var err error
		positions, err = h.positions.GetPositions(req.PortfolioID)
		if err != nil {
			h.log.Error().Err(err).Str("portfolio_id", req.PortfolioID).Msg("Failed to get positions")
			h.writeError(w, err)
			return
		}
		if lastRebalance == nil {
			if last, ok, err := h.positions.GetLastRebalanceDate(req.PortfolioID); err != nil {
				h.log.Error().Err(err).Str("portfolio_id", req.PortfolioID).Msg("Failed to get last rebalance date")
				h.writeError(w, err)
				return
			} else if ok {
				lastRebalance = &last
			}
		}
	}

	plan := h.service.Analyze(rebalancing.AnalyzeRequest{
		Positions:         positions,
		TargetWeights:     req.TargetWeights,
		Config:            req.Config,
		LastRebalanceDate: lastRebalance,
	})

	if h.bus != nil && plan.NeedsRebalancing {
		h.bus.Publish(events.PlanGenerated, "rebalancing", map[string]interface{}{
			"plan_id":  plan.ID,
			"actions":  len(plan.Actions),
			"priority": plan.Priority,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": plan})
}

type executeRequest struct {
	PortfolioID string            `json:"portfolioId"`
	Plan        *rebalancing.Plan `json:"plan"`
	DryRun      bool              `json:"dryRun"`
}

// HandleExecute handles POST /api/rebalancing/execute. Non-dry-run
// executions are recorded in rebalance history.
func (h *Handler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Plan == nil {
		http.Error(w, "plan is required", http.StatusBadRequest)
		return
	}

	orders := h.service.Execute(req.Plan, req.DryRun)

	if !req.DryRun && h.recorder != nil && req.PortfolioID != "" {
		err := h.recorder.RecordRebalance(
			req.Plan.ID, req.PortfolioID, req.Plan.Reason,
			req.Plan.TotalValue, len(req.Plan.Actions), time.Now().UTC(),
		)
		if err != nil {
			h.log.Error().Err(err).Str("plan_id", req.Plan.ID).Msg("Failed to record rebalance")
			h.writeError(w, err)
			return
		}
	}

	if h.bus != nil {
		h.bus.Publish(events.OrdersGenerated, "rebalancing", map[string]interface{}{
			"plan_id": req.Plan.ID,
			"orders":  len(orders),
			"dry_run": req.DryRun,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": orders})
}

// HandleNextDate handles GET /api/rebalancing/next-date
func (h *Handler) HandleNextDate(w http.ResponseWriter, r *http.Request) {
	lastRaw := r.URL.Query().Get("last")
	last, err := time.Parse(time.RFC3339, lastRaw)
	if err != nil {
		http.Error(w, "last must be an RFC3339 timestamp", http.StatusBadRequest)
		return
	}

	frequency := rebalancing.Frequency(r.URL.Query().Get("frequency"))
	if frequency == "" {
		frequency = rebalancing.FrequencyMonthly
	}

	next := h.service.NextRebalancingDate(last, frequency)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{"nextDate": next.Format(time.RFC3339)},
	})
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
