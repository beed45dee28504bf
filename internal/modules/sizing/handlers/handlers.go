// Package handlers provides HTTP handlers for position sizing operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/meridianquant/riskdesk/internal/domain"
	"github.com/meridianquant/riskdesk/internal/events"
	"github.com/meridianquant/riskdesk/internal/modules/sizing"
)

// Handler handles position sizing HTTP requests
type Handler struct {
	service *sizing.Service
	bus     *events.Bus
	log     zerolog.Logger
}

// NewHandler creates a new sizing handler
func NewHandler(service *sizing.Service, bus *events.Bus, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		bus:     bus,
		log:     log.With().Str("handler", "sizing").Logger(),
	}
}

type recommendRequest struct {
	UserID      string   `json:"userId"`
	Symbol      string   `json:"symbol"`
	Balance     float64  `json:"balance"`
	Price       float64  `json:"price"`
	RiskPercent float64  `json:"riskPercent"`
	Days        int      `json:"days"`
	ATR         *float64 `json:"atr"`
}

// HandleRecommend handles POST /api/sizing/recommend
func (h *Handler) HandleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Balance <= 0 || req.Price <= 0 {
		http.Error(w, "balance and price must be positive", http.StatusBadRequest)
		return
	}

	rec, err := h.service.Recommend(sizing.RecommendRequest{
		UserID:      req.UserID,
		Symbol:      req.Symbol,
		Balance:     req.Balance,
		Price:       req.Price,
		RiskPercent: req.RiskPercent,
		Days:        req.Days,
		ATR:         req.ATR,
	})
	if err != nil {
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to recommend position size")
		h.writeError(w, err)
		return
	}

	if h.bus != nil {
		h.bus.Publish(events.SizingRecommended, "sizing", map[string]interface{}{
			"method":   rec.Method,
			"quantity": rec.Quantity,
			"symbol":   req.Symbol,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": rec})
}

// HandleKelly handles POST /api/sizing/kelly
func (h *Handler) HandleKelly(w http.ResponseWriter, r *http.Request) {
	var in sizing.KellyInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{"quantity": h.service.CalculateKelly(in)},
	})
}

// HandleFixedFractional handles POST /api/sizing/fixed-fractional
func (h *Handler) HandleFixedFractional(w http.ResponseWriter, r *http.Request) {
	var in sizing.FixedFractionalInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{"quantity": h.service.CalculateFixedFractional(in)},
	})
}

// HandleVolatility handles POST /api/sizing/volatility
func (h *Handler) HandleVolatility(w http.ResponseWriter, r *http.Request) {
	var in sizing.VolatilityInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{"quantity": h.service.CalculateVolatilityAdjusted(in)},
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
	case errors.Is(err, domain.ErrInsufficientData):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
