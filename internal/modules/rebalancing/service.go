// Package rebalancing decides whether a portfolio needs rebalancing and
// turns target weights into concrete trade actions and orders.
package rebalancing

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meridianquant/riskdesk/internal/domain"
)

// Strategy selects the trigger logic for a rebalancing analysis.
type Strategy string

const (
	StrategyPeriodic      Strategy = "periodic"
	StrategyThreshold     Strategy = "threshold"
	StrategyOpportunistic Strategy = "opportunistic"
	StrategyHybrid        Strategy = "hybrid"
)

// Frequency is the periodic rebalancing cadence.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
)

// Transaction cost model constants.
const (
	MakerFee         = 0.001
	SlippageEstimate = 0.0005
)

// Deviation triggers and trade floor, in percentage points and dollars.
const (
	DefaultThresholdPercent = 5.0
	OpportunisticThreshold  = 8.0
	DefaultMinTradeSize     = 10.0
)

// Priority ladder on the maximum weight deviation.
const (
	highPriorityDeviation   = 10.0
	mediumPriorityDeviation = 7.0
)

// Config tunes a rebalancing analysis. Zero values fall back to the
// defaults (threshold strategy, monthly frequency, 5% threshold, $10 floor).
type Config struct {
	Strategy         Strategy  `json:"strategy"`
	Frequency        Frequency `json:"frequency"`
	ThresholdPercent float64   `json:"thresholdPercent"`
	MinTradeSize     float64   `json:"minTradeSize"`
}

func (c Config) withDefaults() Config {
	if c.Strategy == "" {
		c.Strategy = StrategyThreshold
	}
	if c.Frequency == "" {
		c.Frequency = FrequencyMonthly
	}
	if c.ThresholdPercent <= 0 {
		c.ThresholdPercent = DefaultThresholdPercent
	}
	if c.MinTradeSize <= 0 {
		c.MinTradeSize = DefaultMinTradeSize
	}
	return c
}

// TargetWeight is one entry of the target allocation. Targets are a slice,
// not a map, so per-symbol results keep the caller's input order.
type TargetWeight struct {
	Symbol string  `json:"symbol"`
	Weight float64 `json:"weight"`
}

// Action is one trade needed to move a symbol toward its target weight.
type Action struct {
	Symbol          string  `json:"symbol"`
	Side            string  `json:"side"`
	CurrentWeight   float64 `json:"currentWeight"`
	TargetWeight    float64 `json:"targetWeight"`
	CurrentValue    float64 `json:"currentValue"`
	TargetValue     float64 `json:"targetValue"`
	DeltaValue      float64 `json:"deltaValue"`
	DeltaQuantity   float64 `json:"deltaQuantity"`
	TransactionCost float64 `json:"transactionCost"`
}

// Plan is the outcome of a rebalancing analysis.
type Plan struct {
	ID                string    `json:"id"`
	NeedsRebalancing  bool      `json:"needsRebalancing"`
	Reason            string    `json:"reason"`
	Actions           []Action  `json:"actions"`
	TotalValue        float64   `json:"totalValue"`
	TotalCost         float64   `json:"totalCost"`
	EstimatedSlippage float64   `json:"estimatedSlippage"`
	MaxDeviation      float64   `json:"maxDeviation"`
	Priority          string    `json:"priority"`
	NetBenefit        float64   `json:"netBenefit"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Order is one limit order derived from a plan action.
type Order struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Type      string    `json:"type"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"createdAt"`
}

// AnalyzeRequest is the input of a rebalancing analysis.
type AnalyzeRequest struct {
	Positions         []domain.Position
	TargetWeights     []TargetWeight
	Config            Config
	LastRebalanceDate *time.Time
}

// Service runs rebalancing analyses. Analyses are pure computations over
// their inputs; persistence of executed plans belongs to the caller.
type Service struct {
	log zerolog.Logger
}

// NewService creates a new rebalancing service.
func NewService(log zerolog.Logger) *Service {
	return &Service{log: log.With().Str("service", "rebalancing").Logger()}
}

// Analyze decides whether the portfolio needs rebalancing under the
// configured strategy and, if so, derives the per-symbol trade actions.
// A zero-value portfolio short-circuits to an empty, non-rebalancing plan.
func (s *Service) Analyze(req AnalyzeRequest) *Plan {
	cfg := req.Config.withDefaults()

	plan := &Plan{
		ID:        uuid.New().String(),
		Actions:   []Action{},
		Priority:  "low",
		CreatedAt: time.Now().UTC(),
	}

	totalValue := domain.TotalValue(req.Positions)
	plan.TotalValue = totalValue
	if totalValue == 0 {
		plan.Reason = "Portfolio has no value"
		return plan
	}

	currentWeights := make(map[string]float64, len(req.Positions))
	for _, p := range req.Positions {
		currentWeights[p.Symbol] += p.Value() / totalValue
	}

	needed, reason := s.needsRebalancing(cfg, currentWeights, req.TargetWeights, req.LastRebalanceDate)
	plan.NeedsRebalancing = needed
	plan.Reason = reason
	if !needed {
		return plan
	}

	prices := make(map[string]float64, len(req.Positions))
	for _, p := range req.Positions {
		prices[p.Symbol] = p.CurrentPrice
	}

	totalDelta := 0.0
	for _, target := range req.TargetWeights {
		currentWeight := currentWeights[target.Symbol]
		currentValue := currentWeight * totalValue
		targetValue := totalValue * target.Weight
		deltaValue := targetValue - currentValue

		deviation := math.Abs(currentWeight-target.Weight) * 100
		if deviation > plan.MaxDeviation {
			plan.MaxDeviation = deviation
		}

		if math.Abs(deltaValue) < cfg.MinTradeSize {
			continue
		}

		side := "buy"
		if deltaValue < 0 {
			side = "sell"
		}

		deltaQuantity := 0.0
		if price := prices[target.Symbol]; price != 0 {
			deltaQuantity = deltaValue / price
		}

		cost := math.Abs(deltaValue) * (MakerFee + SlippageEstimate)
		plan.Actions = append(plan.Actions, Action{
			Symbol:          target.Symbol,
			Side:            side,
			CurrentWeight:   currentWeight,
			TargetWeight:    target.Weight,
			CurrentValue:    currentValue,
			TargetValue:     targetValue,
			DeltaValue:      deltaValue,
			DeltaQuantity:   deltaQuantity,
			TransactionCost: cost,
		})

		plan.TotalCost += cost
		totalDelta += math.Abs(deltaValue)
	}

	plan.EstimatedSlippage = totalDelta / totalValue * SlippageEstimate
	plan.Priority = priorityFor(plan.MaxDeviation)
	plan.NetBenefit = plan.MaxDeviation - plan.TotalCost/totalValue

	s.log.Info().
		Str("plan_id", plan.ID).
		Str("strategy", string(cfg.Strategy)).
		Int("actions", len(plan.Actions)).
		Float64("max_deviation", plan.MaxDeviation).
		Str("priority", plan.Priority).
		Msg("Rebalancing plan generated")

	return plan
}

// Execute converts plan actions into limit orders. Dry-run returns the full
// order list without side effects; persistence of executed plans is the
// caller's responsibility either way.
func (s *Service) Execute(plan *Plan, dryRun bool) []Order {
	orders := make([]Order, 0, len(plan.Actions))
	now := time.Now().UTC()

	for _, action := range plan.Actions {
		quantity := math.Abs(action.DeltaQuantity)
		if quantity == 0 {
			continue
		}
		orders = append(orders, Order{
			ID:        uuid.New().String(),
			Symbol:    action.Symbol,
			Side:      action.Side,
			Type:      "LIMIT",
			Quantity:  quantity,
			Price:     action.TargetValue / quantity,
			CreatedAt: now,
		})
	}

	s.log.Info().
		Str("plan_id", plan.ID).
		Int("orders", len(orders)).
		Bool("dry_run", dryRun).
		Msg("Rebalancing plan executed")

	return orders
}

// NextRebalancingDate returns the next scheduled rebalance after lastDate
// under the given frequency.
func (s *Service) NextRebalancingDate(lastDate time.Time, frequency Frequency) time.Time {
	return lastDate.AddDate(0, 0, frequencyDays(frequency))
}

func (s *Service) needsRebalancing(cfg Config, current map[string]float64, targets []TargetWeight, lastRebalance *time.Time) (bool, string) {
	switch cfg.Strategy {
	case StrategyPeriodic:
		return periodicTrigger(cfg.Frequency, lastRebalance)
	case StrategyThreshold:
		return deviationTrigger(current, targets, cfg.ThresholdPercent)
	case StrategyOpportunistic:
		return deviationTrigger(current, targets, OpportunisticThreshold)
	case StrategyHybrid:
		if needed, reason := periodicTrigger(cfg.Frequency, lastRebalance); needed {
			return true, reason
		}
		return deviationTrigger(current, targets, cfg.ThresholdPercent)
	default:
		return false, fmt.Sprintf("Unknown strategy %q", cfg.Strategy)
	}
}

func periodicTrigger(frequency Frequency, lastRebalance *time.Time) (bool, string) {
	if lastRebalance == nil {
		return true, "No previous rebalance recorded"
	}

	required := frequencyDays(frequency)
	elapsed := int(time.Since(*lastRebalance).Hours() / 24)
	if elapsed >= required {
		return true, fmt.Sprintf("%d days since last rebalance (%s schedule requires %d)", elapsed, frequency, required)
	}
	return false, fmt.Sprintf("Only %d of %d days elapsed since last rebalance", elapsed, required)
}

func deviationTrigger(current map[string]float64, targets []TargetWeight, thresholdPercent float64) (bool, string) {
	maxDeviation := 0.0
	maxSymbol := ""
	for _, target := range targets {
		deviation := math.Abs(current[target.Symbol]-target.Weight) * 100
		if deviation > maxDeviation {
			maxDeviation = deviation
			maxSymbol = target.Symbol
		}
	}

	if maxDeviation > thresholdPercent {
		return true, fmt.Sprintf("%s deviates %.1f%% from target (threshold %.1f%%)", maxSymbol, maxDeviation, thresholdPercent)
	}
	return false, fmt.Sprintf("Max deviation %.1f%% within threshold %.1f%%", maxDeviation, thresholdPercent)
}

func frequencyDays(frequency Frequency) int {
	switch frequency {
	case FrequencyDaily:
		return 1
	case FrequencyWeekly:
		return 7
	case FrequencyQuarterly:
		return 90
	default:
		return 30
	}
}

func priorityFor(maxDeviation float64) string {
	switch {
	case maxDeviation >= highPriorityDeviation:
		return "high"
	case maxDeviation >= mediumPriorityDeviation:
		return "medium"
	default:
		return "low"
	}
}
