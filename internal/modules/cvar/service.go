// Package cvar computes historical and parametric Value-at-Risk and
// Conditional Value-at-Risk from daily return series.
package cvar

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/meridianquant/riskdesk/internal/domain"
	"github.com/meridianquant/riskdesk/internal/valuation"
	"github.com/meridianquant/riskdesk/pkg/formulas"
)

// MinSamples is the minimum return count for a tail-risk estimate.
const MinSamples = 10

// worstScenarioFraction selects the tail reported by IdentifyWorstScenarios.
const worstScenarioFraction = 0.05

// Result holds VaR and CVaR at the 95% and 99% confidence levels, expressed
// as positive loss amounts in portfolio currency.
type Result struct {
	VaR95          float64   `json:"var95"`
	VaR99          float64   `json:"var99"`
	CVaR95         float64   `json:"cvar95"`
	CVaR99         float64   `json:"cvar99"`
	TailRisk95     float64   `json:"tailRisk95"`
	TailRisk99     float64   `json:"tailRisk99"`
	PortfolioValue float64   `json:"portfolioValue"`
	Returns        []float64 `json:"returns"`

	AnnualizedVolatility float64 `json:"annualizedVolatility"`
	MaxDrawdown          float64 `json:"maxDrawdown"`
}

// Service computes tail-risk measures.
type Service struct {
	valuation *valuation.Service
	log       zerolog.Logger
}

// NewService creates a new CVaR calculation service.
func NewService(valuation *valuation.Service, log zerolog.Logger) *Service {
	return &Service{
		valuation: valuation,
		log:       log.With().Str("service", "cvar").Logger(),
	}
}

// Calculate computes historical VaR and CVaR at the 95% and 99% confidence
// levels from a return series. Fails with ErrInsufficientData below
// MinSamples observations. CVaR is the tail average at or beyond the VaR
// percentile, so cvar95 >= var95, cvar99 >= var99 and cvar99 >= cvar95 hold
// by construction.
func (s *Service) Calculate(returns []float64, portfolioValue float64) (*Result, error) {
	if len(returns) < MinSamples {
		return nil, fmt.Errorf("need %d returns for tail-risk estimate, have %d: %w",
			MinSamples, len(returns), domain.ErrInsufficientData)
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	var95, cvar95 := historicalTail(sorted, 95, portfolioValue)
	var99, cvar99 := historicalTail(sorted, 99, portfolioValue)

	result := &Result{
		VaR95:          var95,
		VaR99:          var99,
		CVaR95:         cvar95,
		CVaR99:         cvar99,
		TailRisk95:     tailRatio(cvar95, var95),
		TailRisk99:     tailRatio(cvar99, var99),
		PortfolioValue: portfolioValue,
		Returns:        returns,

		AnnualizedVolatility: formulas.AnnualizedVolatility(returns),
		MaxDrawdown:          formulas.MaxDrawdown(returns),
	}

	s.log.Debug().
		Float64("var95", var95).
		Float64("cvar95", cvar95).
		Int("samples", len(returns)).
		Msg("Calculated historical CVaR")

	return result, nil
}

// CalculateForPortfolio resolves the portfolio's value-weighted return series
// and current value, then runs the historical estimate on them.
func (s *Service) CalculateForPortfolio(portfolioID string, days int) (*Result, error) {
	points, positions, err := s.valuation.PortfolioReturns(portfolioID, days)
	if err != nil {
		return nil, err
	}
	return s.Calculate(domain.Returns(points), domain.TotalValue(positions))
}

// CalculateParametric estimates the loss at the given confidence level under
// a normal-returns assumption (variance-covariance method).
func (s *Service) CalculateParametric(returns []float64, portfolioValue, confidenceLevel float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	mean := formulas.Mean(returns)
	std := formulas.StdDev(returns)
	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(1 - confidenceLevel/100)

	return -(mean + z*std) * portfolioValue
}

// IdentifyWorstScenarios returns the worst 5% of return observations, most
// negative first. Always reports at least one observation.
func (s *Service) IdentifyWorstScenarios(returns []float64) []float64 {
	if len(returns) == 0 {
		return []float64{}
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	count := int(math.Ceil(float64(len(sorted)) * worstScenarioFraction))
	if count < 1 {
		count = 1
	}

	return sorted[:count]
}

// CalculateContributions attributes portfolio CVaR to assets as
// weight x standalone asset CVaR, each expressed as a positive loss amount.
func (s *Service) CalculateContributions(assetReturns map[string][]float64, weights map[string]float64, portfolioValue float64) map[string]float64 {
	contributions := make(map[string]float64, len(weights))
	for symbol, weight := range weights {
		returns, ok := assetReturns[symbol]
		if !ok || len(returns) == 0 {
			contributions[symbol] = 0
			continue
		}

		sorted := make([]float64, len(returns))
		copy(sorted, returns)
		sort.Float64s(sorted)

		_, assetCVaR := historicalTail(sorted, 95, portfolioValue)
		contributions[symbol] = weight * assetCVaR
	}
	return contributions
}

// historicalTail computes (VaR, CVaR) at a confidence level from an
// ascending-sorted return series, as positive loss amounts.
func historicalTail(sorted []float64, confidenceLevel, portfolioValue float64) (float64, float64) {
	index := int(float64(len(sorted)) * (1 - confidenceLevel/100))
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	varLoss := -sorted[index] * portfolioValue

	tail := sorted[:index+1]
	sum := 0.0
	for _, r := range tail {
		sum += r
	}
	cvarLoss := -(sum / float64(len(tail))) * portfolioValue

	return varLoss, cvarLoss
}

func tailRatio(cvar, varLoss float64) float64 {
	if varLoss == 0 {
		return 0
	}
	return cvar / varLoss
}
