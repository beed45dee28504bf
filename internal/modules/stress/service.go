// Package stress evaluates shock scenarios against position snapshots and
// aggregates portfolio-level loss, risk flags and recovery estimates.
package stress

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/meridianquant/riskdesk/internal/domain"
	"github.com/meridianquant/riskdesk/pkg/formulas"
)

// Risk thresholds on the leveraged loss percentage.
const (
	LiquidationThreshold = 80.0
	MarginCallThreshold  = 50.0
)

// concentrationFactor flags positions whose loss share exceeds this multiple
// of the average in the worst-case scenario.
const concentrationFactor = 1.5

// PositionImpact is the effect of one scenario on one position. Values carry
// the leverage amplification applied to the whole test.
type PositionImpact struct {
	Symbol         string  `json:"symbol"`
	CurrentValue   float64 `json:"currentValue"`
	StressedValue  float64 `json:"stressedValue"`
	Loss           float64 `json:"loss"`
	LossPercentage float64 `json:"lossPercentage"`
}

// ScenarioResult is the portfolio-level outcome of one scenario.
type ScenarioResult struct {
	ScenarioName    string           `json:"scenarioName"`
	Description     string           `json:"description"`
	TotalLoss       float64          `json:"totalLoss"`
	LossPercentage  float64          `json:"lossPercentage"`
	PositionImpacts []PositionImpact `json:"positionImpacts"`
	LiquidationRisk bool             `json:"liquidationRisk"`
	MarginCallRisk  bool             `json:"marginCallRisk"`
	RecoveryDays    int              `json:"recoveryDays"`
}

// Summary aggregates all scenario outcomes of one stress test.
type Summary struct {
	Scenarios             []ScenarioResult `json:"scenarios"`
	WorstCase             *ScenarioResult  `json:"worstCase"`
	BestCase              *ScenarioResult  `json:"bestCase"`
	AverageLoss           float64          `json:"averageLoss"`
	AverageLossPercentage float64          `json:"averageLossPercentage"`
	ResilienceScore       float64          `json:"resilienceScore"`
	Recommendations       []string         `json:"recommendations"`
}

// Request parameterizes a stress test. Leverage defaults to 1; Scenarios
// defaults to the predefined historical set.
type Request struct {
	Positions []domain.Position
	Leverage  float64
	Scenarios []Scenario
}

// Service runs stress tests.
type Service struct {
	positions domain.PositionStore
	log       zerolog.Logger
}

// NewService creates a new stress testing service.
func NewService(positions domain.PositionStore, log zerolog.Logger) *Service {
	return &Service{
		positions: positions,
		log:       log.With().Str("service", "stress").Logger(),
	}
}

// HistoricalScenarios returns a copy of the predefined scenario set.
func (s *Service) HistoricalScenarios() []Scenario {
	out := make([]Scenario, len(historicalScenarios))
	copy(out, historicalScenarios)
	return out
}

// CreateCustomScenario builds a scenario from an arbitrary symbol-to-shock
// map. Callers can include a DefaultShockKey entry for unlisted symbols.
func (s *Service) CreateCustomScenario(name, description string, priceShocks map[string]float64) Scenario {
	shocks := make(map[string]float64, len(priceShocks))
	for symbol, shock := range priceShocks {
		shocks[symbol] = shock
	}
	return Scenario{Name: name, Description: description, PriceShocks: shocks}
}

// RunForPortfolio loads the portfolio's position snapshot and runs the test.
func (s *Service) RunForPortfolio(portfolioID string, leverage float64, scenarios []Scenario) (*Summary, error) {
	positions, err := s.positions.GetPositions(portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions for %s: %w", portfolioID, err)
	}
	return s.Run(Request{Positions: positions, Leverage: leverage, Scenarios: scenarios}), nil
}

// Run evaluates every scenario against the position snapshot. Scenarios are
// independent; results are reported in scenario-list order. Both loss and
// loss percentage are amplified linearly by leverage, while the recovery
// estimate uses the unleveraged loss.
func (s *Service) Run(req Request) *Summary {
	leverage := req.Leverage
	if leverage <= 0 {
		leverage = 1
	}
	scenarios := req.Scenarios
	if len(scenarios) == 0 {
		scenarios = historicalScenarios
	}

	results := make([]ScenarioResult, 0, len(scenarios))
	for _, scenario := range scenarios {
		results = append(results, evaluateScenario(scenario, req.Positions, leverage))
	}

	summary := &Summary{Scenarios: results}
	if len(results) > 0 {
		worst, best := &results[0], &results[0]
		lossSum, pctSum := 0.0, 0.0
		for i := range results {
			r := &results[i]
			lossSum += r.TotalLoss
			pctSum += r.LossPercentage
			if r.TotalLoss > worst.TotalLoss {
				worst = r
			}
			if r.TotalLoss < best.TotalLoss {
				best = r
			}
		}
		summary.WorstCase = worst
		summary.BestCase = best
		summary.AverageLoss = lossSum / float64(len(results))
		summary.AverageLossPercentage = pctSum / float64(len(results))
	}
	summary.ResilienceScore = formulas.Clamp(100-summary.AverageLossPercentage, 0, 100)
	summary.Recommendations = buildRecommendations(summary, leverage)

	s.log.Info().
		Int("scenarios", len(results)).
		Float64("leverage", leverage).
		Float64("resilience_score", summary.ResilienceScore).
		Msg("Stress test completed")

	return summary
}

func evaluateScenario(scenario Scenario, positions []domain.Position, leverage float64) ScenarioResult {
	impacts := make([]PositionImpact, 0, len(positions))
	totalValue, totalLoss := 0.0, 0.0

	// Impacts follow the input position order.
	for _, p := range positions {
		currentValue := p.Value()
		stressedPrice := p.CurrentPrice * (1 + scenario.shockFor(p.Symbol)/100)
		stressedValue := p.Quantity * stressedPrice
		loss := (currentValue - stressedValue) * leverage

		lossPct := 0.0
		if currentValue != 0 {
			lossPct = loss / currentValue * 100
		}

		impacts = append(impacts, PositionImpact{
			Symbol:         p.Symbol,
			CurrentValue:   currentValue,
			StressedValue:  stressedValue,
			Loss:           loss,
			LossPercentage: lossPct,
		})

		totalValue += currentValue
		totalLoss += loss
	}

	lossPct := 0.0
	if totalValue != 0 {
		lossPct = totalLoss / totalValue * 100
	}
	unleveragedPct := lossPct / leverage

	return ScenarioResult{
		ScenarioName:    scenario.Name,
		Description:     scenario.Description,
		TotalLoss:       totalLoss,
		LossPercentage:  lossPct,
		PositionImpacts: impacts,
		LiquidationRisk: lossPct >= LiquidationThreshold,
		MarginCallRisk:  lossPct >= MarginCallThreshold,
		RecoveryDays:    estimateRecoveryDays(unleveragedPct),
	}
}

// estimateRecoveryDays maps the unleveraged loss percentage to a fixed
// recovery horizon.
func estimateRecoveryDays(lossPct float64) int {
	switch {
	case lossPct < 20:
		return 30
	case lossPct < 40:
		return 90
	case lossPct < 60:
		return 180
	case lossPct < 80:
		return 365
	default:
		return 730
	}
}

func buildRecommendations(summary *Summary, leverage float64) []string {
	var recs []string

	if leverage > 1 {
		recs = append(recs, fmt.Sprintf(
			"Leverage of %.1fx amplifies every scenario loss linearly; consider reducing exposure", leverage))
	}

	liquidations, marginCalls := 0, 0
	for _, r := range summary.Scenarios {
		if r.LiquidationRisk {
			liquidations++
		}
		if r.MarginCallRisk {
			marginCalls++
		}
	}
	if liquidations > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d scenario(s) would put the account at liquidation risk; reduce position size or leverage", liquidations))
	} else if marginCalls > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d scenario(s) would trigger margin-call risk; keep additional collateral available", marginCalls))
	}

	if summary.AverageLossPercentage > 30 {
		recs = append(recs, fmt.Sprintf(
			"Average scenario loss of %.1f%% is high; diversify into less correlated assets", summary.AverageLossPercentage))
	}

	if summary.WorstCase != nil {
		if summary.WorstCase.LossPercentage > 50 {
			recs = append(recs, fmt.Sprintf(
				"Worst case (%s) loses %.1f%% of portfolio value; consider hedging tail risk",
				summary.WorstCase.ScenarioName, summary.WorstCase.LossPercentage))
		}
		for _, symbol := range concentratedSymbols(summary.WorstCase) {
			recs = append(recs, fmt.Sprintf(
				"Position %s drives a disproportionate share of the worst-case loss; consider trimming it", symbol))
		}
	}

	if len(recs) == 0 {
		recs = append(recs, "Portfolio shows adequate resilience across the tested scenarios")
	}
	return recs
}

// concentratedSymbols lists positions whose loss percentage exceeds 1.5x the
// average position loss percentage in the given scenario.
func concentratedSymbols(result *ScenarioResult) []string {
	if len(result.PositionImpacts) == 0 {
		return nil
	}

	sum := 0.0
	for _, impact := range result.PositionImpacts {
		sum += impact.LossPercentage
	}
	avg := sum / float64(len(result.PositionImpacts))
	if avg <= 0 {
		return nil
	}

	var symbols []string
	for _, impact := range result.PositionImpacts {
		if impact.LossPercentage > concentrationFactor*avg {
			symbols = append(symbols, impact.Symbol)
		}
	}
	return symbols
}
