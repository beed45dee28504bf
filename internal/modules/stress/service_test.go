package stress

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianquant/riskdesk/internal/domain"
)

type stubPositions struct {
	positions []domain.Position
}

func (s *stubPositions) GetPositions(portfolioID string) ([]domain.Position, error) {
	if s.positions == nil {
		return nil, domain.ErrNotFound
	}
	return s.positions, nil
}

func (s *stubPositions) GetLastRebalanceDate(portfolioID string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func testPositions() []domain.Position {
	return []domain.Position{
		{Symbol: "BTC", Quantity: 1, CurrentPrice: 60000},
		{Symbol: "ETH", Quantity: 10, CurrentPrice: 3000},
		{Symbol: "SOL", Quantity: 100, CurrentPrice: 100},
	}
}

func crashScenario() Scenario {
	return Scenario{
		Name: "Crash",
		PriceShocks: map[string]float64{
			"BTC":          -50,
			"ETH":          -60,
			DefaultShockKey: -70,
		},
	}
}

func TestRunSingleScenario(t *testing.T) {
	svc := NewService(&stubPositions{}, zerolog.Nop())

	summary := svc.Run(Request{
		Positions: testPositions(),
		Scenarios: []Scenario{crashScenario()},
	})

	require.Len(t, summary.Scenarios, 1)
	result := summary.Scenarios[0]

	// BTC 60000*0.5 + ETH 30000*0.6 + SOL 10000*0.7 = 55000 loss on 100000.
	assert.InDelta(t, 55000, result.TotalLoss, 1e-6)
	assert.InDelta(t, 55, result.LossPercentage, 1e-9)
	assert.False(t, result.LiquidationRisk)
	assert.True(t, result.MarginCallRisk)
	assert.Equal(t, 180, result.RecoveryDays)

	require.Len(t, result.PositionImpacts, 3)
	assert.Equal(t, "BTC", result.PositionImpacts[0].Symbol, "impacts keep input order")
	assert.InDelta(t, 30000, result.PositionImpacts[0].Loss, 1e-6)
	assert.InDelta(t, 7000, result.PositionImpacts[2].Loss, 1e-6, "SOL takes the default shock")
}

func TestRunShockFallback(t *testing.T) {
	svc := NewService(&stubPositions{}, zerolog.Nop())

	// No default entry: unlisted symbols are unshocked.
	summary := svc.Run(Request{
		Positions: []domain.Position{
			{Symbol: "BTC", Quantity: 1, CurrentPrice: 100},
			{Symbol: "XYZ", Quantity: 1, CurrentPrice: 100},
		},
		Scenarios: []Scenario{{
			Name:        "BTC only",
			PriceShocks: map[string]float64{"BTC": -50},
		}},
	})

	result := summary.Scenarios[0]
	assert.InDelta(t, 50, result.TotalLoss, 1e-9)
	assert.InDelta(t, 0, result.PositionImpacts[1].Loss, 1e-9)
}

func TestRunLeverageAmplification(t *testing.T) {
	svc := NewService(&stubPositions{}, zerolog.Nop())

	base := svc.Run(Request{Positions: testPositions(), Scenarios: []Scenario{crashScenario()}})
	leveraged := svc.Run(Request{Positions: testPositions(), Leverage: 2, Scenarios: []Scenario{crashScenario()}})

	assert.InDelta(t, 2*base.Scenarios[0].TotalLoss, leveraged.Scenarios[0].TotalLoss, 1e-6)
	assert.InDelta(t, 2*base.Scenarios[0].LossPercentage, leveraged.Scenarios[0].LossPercentage, 1e-9)

	// 110% leveraged loss triggers both risk flags; recovery uses the
	// unleveraged 55%.
	assert.True(t, leveraged.Scenarios[0].LiquidationRisk)
	assert.True(t, leveraged.Scenarios[0].MarginCallRisk)
	assert.Equal(t, base.Scenarios[0].RecoveryDays, leveraged.Scenarios[0].RecoveryDays)
}

func TestRunSummaryAggregates(t *testing.T) {
	svc := NewService(&stubPositions{}, zerolog.Nop())

	mild := Scenario{Name: "Mild", PriceShocks: map[string]float64{DefaultShockKey: -10}}
	severe := Scenario{Name: "Severe", PriceShocks: map[string]float64{DefaultShockKey: -80}}

	summary := svc.Run(Request{
		Positions: testPositions(),
		Scenarios: []Scenario{mild, severe},
	})

	require.NotNil(t, summary.WorstCase)
	require.NotNil(t, summary.BestCase)
	assert.Equal(t, "Severe", summary.WorstCase.ScenarioName)
	assert.Equal(t, "Mild", summary.BestCase.ScenarioName)

	assert.InDelta(t, (10000+80000)/2.0, summary.AverageLoss, 1e-6)
	assert.InDelta(t, 45, summary.AverageLossPercentage, 1e-9)
	assert.InDelta(t, 55, summary.ResilienceScore, 1e-9)
}

func TestRunResultsKeepScenarioOrder(t *testing.T) {
	svc := NewService(&stubPositions{}, zerolog.Nop())

	scenarios := svc.HistoricalScenarios()
	summary := svc.Run(Request{Positions: testPositions(), Scenarios: scenarios})

	require.Len(t, summary.Scenarios, len(scenarios))
	for i, scenario := range scenarios {
		assert.Equal(t, scenario.Name, summary.Scenarios[i].ScenarioName)
	}
}

func TestRunDefaultScenarioSet(t *testing.T) {
	svc := NewService(&stubPositions{}, zerolog.Nop())

	summary := svc.Run(Request{Positions: testPositions()})
	assert.Len(t, summary.Scenarios, 8)
}

func TestRunEmptyPortfolio(t *testing.T) {
	svc := NewService(&stubPositions{}, zerolog.Nop())

	summary := svc.Run(Request{Positions: nil, Scenarios: []Scenario{crashScenario()}})

	result := summary.Scenarios[0]
	assert.Equal(t, 0.0, result.TotalLoss)
	assert.Equal(t, 0.0, result.LossPercentage)
	assert.Equal(t, 100.0, summary.ResilienceScore)
}

func TestEstimateRecoveryDays(t *testing.T) {
	tests := []struct {
		lossPct float64
		want    int
	}{
		{10, 30},
		{19.9, 30},
		{20, 90},
		{39.9, 90},
		{40, 180},
		{60, 365},
		{79.9, 365},
		{80, 730},
		{95, 730},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, estimateRecoveryDays(tt.lossPct), "loss %.1f%%", tt.lossPct)
	}
}

func TestRecommendations(t *testing.T) {
	svc := NewService(&stubPositions{}, zerolog.Nop())

	t.Run("leveraged severe portfolio", func(t *testing.T) {
		summary := svc.Run(Request{
			Positions: testPositions(),
			Leverage:  3,
			Scenarios: []Scenario{crashScenario()},
		})

		require.NotEmpty(t, summary.Recommendations)
		assert.Contains(t, summary.Recommendations[0], "Leverage")
	})

	t.Run("resilient portfolio", func(t *testing.T) {
		summary := svc.Run(Request{
			Positions: testPositions(),
			Scenarios: []Scenario{{Name: "Tiny", PriceShocks: map[string]float64{DefaultShockKey: -1}}},
		})

		require.Len(t, summary.Recommendations, 1)
		assert.Contains(t, summary.Recommendations[0], "resilience")
	})
}

func TestConcentratedSymbols(t *testing.T) {
	result := &ScenarioResult{
		PositionImpacts: []PositionImpact{
			{Symbol: "BTC", LossPercentage: 90},
			{Symbol: "ETH", LossPercentage: 10},
			{Symbol: "SOL", LossPercentage: 10},
		},
	}

	assert.Equal(t, []string{"BTC"}, concentratedSymbols(result))
}

func TestRunForPortfolio(t *testing.T) {
	svc := NewService(&stubPositions{positions: testPositions()}, zerolog.Nop())

	summary, err := svc.RunForPortfolio("p1", 1, []Scenario{crashScenario()})
	require.NoError(t, err)
	assert.Len(t, summary.Scenarios, 1)

	missing := NewService(&stubPositions{}, zerolog.Nop())
	_, err = missing.RunForPortfolio("missing", 1, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
