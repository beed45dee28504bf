package rebalancing

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianquant/riskdesk/internal/domain"
)

func newTestService() *Service {
	return NewService(zerolog.Nop())
}

// 60/40 portfolio worth 100k.
func drifted() []domain.Position {
	return []domain.Position{
		{Symbol: "BTC", Quantity: 1, CurrentPrice: 60000},
		{Symbol: "ETH", Quantity: 20, CurrentPrice: 2000},
	}
}

func equalTargets() []TargetWeight {
	return []TargetWeight{
		{Symbol: "BTC", Weight: 0.5},
		{Symbol: "ETH", Weight: 0.5},
	}
}

func TestAnalyzeThresholdTriggered(t *testing.T) {
	svc := newTestService()

	plan := svc.Analyze(AnalyzeRequest{
		Positions:     drifted(),
		TargetWeights: equalTargets(),
		Config:        Config{Strategy: StrategyThreshold},
	})

	assert.True(t, plan.NeedsRebalancing)
	assert.Contains(t, plan.Reason, "BTC")
	assert.InDelta(t, 10, plan.MaxDeviation, 1e-9)
	assert.Equal(t, "high", plan.Priority)

	require.Len(t, plan.Actions, 2)
	assert.Equal(t, "BTC", plan.Actions[0].Symbol, "actions keep target order")
	assert.Equal(t, "sell", plan.Actions[0].Side)
	assert.InDelta(t, -10000, plan.Actions[0].DeltaValue, 1e-6)
	assert.Equal(t, "buy", plan.Actions[1].Side)
	assert.InDelta(t, 10000, plan.Actions[1].DeltaValue, 1e-6)

	// 20k traded at 0.0015 per dollar.
	assert.InDelta(t, 30, plan.TotalCost, 1e-6)
	assert.InDelta(t, 0.0001, plan.EstimatedSlippage, 1e-12)
	assert.InDelta(t, 10-30.0/100000, plan.NetBenefit, 1e-9)
}

func TestAnalyzeThresholdWithinBand(t *testing.T) {
	svc := newTestService()

	// 52/48 vs 50/50: 2% deviation, below the 5% default.
	plan := svc.Analyze(AnalyzeRequest{
		Positions: []domain.Position{
			{Symbol: "BTC", Quantity: 1, CurrentPrice: 52000},
			{Symbol: "ETH", Quantity: 24, CurrentPrice: 2000},
		},
		TargetWeights: equalTargets(),
		Config:        Config{Strategy: StrategyThreshold},
	})

	assert.False(t, plan.NeedsRebalancing)
	assert.Empty(t, plan.Actions)
	assert.Contains(t, plan.Reason, "within threshold")
}

func TestAnalyzePeriodic(t *testing.T) {
	svc := newTestService()

	t.Run("no previous rebalance", func(t *testing.T) {
		plan := svc.Analyze(AnalyzeRequest{
			Positions:     drifted(),
			TargetWeights: equalTargets(),
			Config:        Config{Strategy: StrategyPeriodic, Frequency: FrequencyMonthly},
		})
		assert.True(t, plan.NeedsRebalancing)
		assert.Contains(t, plan.Reason, "No previous rebalance")
	})

	t.Run("schedule elapsed", func(t *testing.T) {
		last := time.Now().AddDate(0, 0, -31)
		plan := svc.Analyze(AnalyzeRequest{
			Positions:         drifted(),
			TargetWeights:     equalTargets(),
			Config:            Config{Strategy: StrategyPeriodic, Frequency: FrequencyMonthly},
			LastRebalanceDate: &last,
		})
		assert.True(t, plan.NeedsRebalancing)
	})

	t.Run("too recent", func(t *testing.T) {
		last := time.Now().AddDate(0, 0, -5)
		plan := svc.Analyze(AnalyzeRequest{
			Positions:         drifted(),
			TargetWeights:     equalTargets(),
			Config:            Config{Strategy: StrategyPeriodic, Frequency: FrequencyMonthly},
			LastRebalanceDate: &last,
		})
		assert.False(t, plan.NeedsRebalancing)
	})
}

func TestAnalyzeOpportunistic(t *testing.T) {
	svc := newTestService()

	// 10% deviation exceeds the fixed 8% trigger.
	plan := svc.Analyze(AnalyzeRequest{
		Positions:     drifted(),
		TargetWeights: equalTargets(),
		Config:        Config{Strategy: StrategyOpportunistic},
	})
	assert.True(t, plan.NeedsRebalancing)

	// 56/44: 6% deviation stays below 8% even though threshold default is 5%.
	plan = svc.Analyze(AnalyzeRequest{
		Positions: []domain.Position{
			{Symbol: "BTC", Quantity: 1, CurrentPrice: 56000},
			{Symbol: "ETH", Quantity: 22, CurrentPrice: 2000},
		},
		TargetWeights: equalTargets(),
		Config:        Config{Strategy: StrategyOpportunistic},
	})
	assert.False(t, plan.NeedsRebalancing)
}

func TestAnalyzeHybrid(t *testing.T) {
	svc := newTestService()
	last := time.Now().AddDate(0, 0, -31)

	// Periodic leg triggers even with zero deviation.
	plan := svc.Analyze(AnalyzeRequest{
		Positions: []domain.Position{
			{Symbol: "BTC", Quantity: 1, CurrentPrice: 50000},
			{Symbol: "ETH", Quantity: 25, CurrentPrice: 2000},
		},
		TargetWeights:     equalTargets(),
		Config:            Config{Strategy: StrategyHybrid, Frequency: FrequencyMonthly},
		LastRebalanceDate: &last,
	})
	assert.True(t, plan.NeedsRebalancing)

	// Threshold leg triggers when the schedule has not elapsed.
	recent := time.Now().AddDate(0, 0, -2)
	plan = svc.Analyze(AnalyzeRequest{
		Positions:         drifted(),
		TargetWeights:     equalTargets(),
		Config:            Config{Strategy: StrategyHybrid, Frequency: FrequencyMonthly},
		LastRebalanceDate: &recent,
	})
	assert.True(t, plan.NeedsRebalancing)
}

func TestAnalyzeMinTradeSize(t *testing.T) {
	svc := newTestService()

	// Both $6 deltas sit under the $10 floor, so no actions survive.
	plan := svc.Analyze(AnalyzeRequest{
		Positions: []domain.Position{
			{Symbol: "BTC", Quantity: 1, CurrentPrice: 506},
			{Symbol: "ETH", Quantity: 1, CurrentPrice: 494},
		},
		TargetWeights: equalTargets(),
		Config:        Config{Strategy: StrategyThreshold, ThresholdPercent: 0.1},
	})

	require.True(t, plan.NeedsRebalancing)
	assert.Empty(t, plan.Actions)
}

func TestAnalyzeZeroValuePortfolio(t *testing.T) {
	svc := newTestService()

	plan := svc.Analyze(AnalyzeRequest{
		Positions:     nil,
		TargetWeights: equalTargets(),
		Config:        Config{Strategy: StrategyThreshold},
	})

	assert.False(t, plan.NeedsRebalancing)
	assert.Empty(t, plan.Actions)
	assert.Equal(t, 0.0, plan.TotalValue)
}

func TestAnalyzeNewSymbolInTargets(t *testing.T) {
	svc := newTestService()

	// SOL is not held yet: full target value is a buy, priced by quantity 0.
	plan := svc.Analyze(AnalyzeRequest{
		Positions: []domain.Position{
			{Symbol: "BTC", Quantity: 1, CurrentPrice: 100000},
		},
		TargetWeights: []TargetWeight{
			{Symbol: "BTC", Weight: 0.9},
			{Symbol: "SOL", Weight: 0.1},
		},
		Config: Config{Strategy: StrategyThreshold},
	})

	require.True(t, plan.NeedsRebalancing)
	require.Len(t, plan.Actions, 2)
	assert.Equal(t, "SOL", plan.Actions[1].Symbol)
	assert.Equal(t, "buy", plan.Actions[1].Side)
	assert.InDelta(t, 10000, plan.Actions[1].DeltaValue, 1e-6)
	assert.Equal(t, 0.0, plan.Actions[1].DeltaQuantity, "no price known for unheld symbol")
}

func TestPriorityLadder(t *testing.T) {
	tests := []struct {
		deviation float64
		want      string
	}{
		{12, "high"},
		{10, "high"},
		{8, "medium"},
		{7, "medium"},
		{5, "low"},
		{1, "low"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, priorityFor(tt.deviation), "deviation %.1f", tt.deviation)
	}
}

func TestExecute(t *testing.T) {
	svc := newTestService()

	plan := svc.Analyze(AnalyzeRequest{
		Positions:     drifted(),
		TargetWeights: equalTargets(),
		Config:        Config{Strategy: StrategyThreshold},
	})
	require.True(t, plan.NeedsRebalancing)

	orders := svc.Execute(plan, true)
	require.Len(t, orders, 2)

	for i, order := range orders {
		action := plan.Actions[i]
		assert.Equal(t, action.Symbol, order.Symbol)
		assert.Equal(t, action.Side, order.Side)
		assert.Equal(t, "LIMIT", order.Type)
		assert.InDelta(t, mathAbs(action.DeltaQuantity), order.Quantity, 1e-12)
		assert.InDelta(t, action.TargetValue/mathAbs(action.DeltaQuantity), order.Price, 1e-6)
		assert.NotEmpty(t, order.ID)
	}
}

func TestNextRebalancingDate(t *testing.T) {
	svc := newTestService()
	last := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		frequency Frequency
		wantDays  int
	}{
		{FrequencyDaily, 1},
		{FrequencyWeekly, 7},
		{FrequencyMonthly, 30},
		{FrequencyQuarterly, 90},
	}

	for _, tt := range tests {
		next := svc.NextRebalancingDate(last, tt.frequency)
		assert.Equal(t, last.AddDate(0, 0, tt.wantDays), next, "frequency %s", tt.frequency)
	}
}

func mathAbs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
