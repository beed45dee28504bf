package sizing

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianquant/riskdesk/internal/domain"
)

type stubTrades struct {
	outcomes []domain.TradeOutcome
}

func (s *stubTrades) GetTradeOutcomes(userID string, days int) ([]domain.TradeOutcome, error) {
	return s.outcomes, nil
}

type stubCandles struct {
	candles []domain.Candle
}

func (s *stubCandles) GetDailyCandles(symbol string, from, to time.Time) ([]domain.Candle, error) {
	return s.candles, nil
}

func newTestService(outcomes []domain.TradeOutcome, candles []domain.Candle) *Service {
	return NewService(&stubTrades{outcomes: outcomes}, &stubCandles{candles: candles}, zerolog.Nop())
}

func outcomesWithEdge(count int) []domain.TradeOutcome {
	outcomes := make([]domain.TradeOutcome, count)
	for i := range outcomes {
		// 60% winners at +200, 40% losers at -100.
		if i%5 < 3 {
			outcomes[i] = domain.TradeOutcome{Symbol: "BTC", PnL: 200}
		} else {
			outcomes[i] = domain.TradeOutcome{Symbol: "BTC", PnL: -100}
		}
	}
	return outcomes
}

func TestCalculateKelly(t *testing.T) {
	svc := newTestService(nil, nil)

	tests := []struct {
		name string
		in   KellyInput
		want float64
	}{
		{
			// kelly = (0.6*200 - 0.4*100)/200 = 0.4; quarter-Kelly 0.1.
			name: "positive edge quarter kelly",
			in:   KellyInput{WinRate: 0.6, AvgWin: 200, AvgLoss: 100, Balance: 10000, Price: 100},
			want: 10000 * 0.1 / 100,
		},
		{
			// kelly = (0.9*1000 - 0.1*10)/1000 = 0.899; full Kelly clamps to 0.5.
			name: "full kelly clamped to half",
			in:   KellyInput{WinRate: 0.9, AvgWin: 1000, AvgLoss: 10, Balance: 10000, Price: 100, FractionalKelly: 1},
			want: 10000 * 0.5 / 100,
		},
		{
			// Negative edge clamps to 0, floored to the minimum size.
			name: "negative edge floors",
			in:   KellyInput{WinRate: 0.3, AvgWin: 100, AvgLoss: 200, Balance: 10000, Price: 100},
			want: MinPositionSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, svc.CalculateKelly(tt.in), 1e-9)
		})
	}
}

func TestCalculateKellyInvalidInputs(t *testing.T) {
	svc := newTestService(nil, nil)

	invalid := []KellyInput{
		{WinRate: 0, AvgWin: 100, AvgLoss: 50, Balance: 10000, Price: 100},
		{WinRate: 1, AvgWin: 100, AvgLoss: 50, Balance: 10000, Price: 100},
		{WinRate: 1.5, AvgWin: 100, AvgLoss: 50, Balance: 10000, Price: 100},
		{WinRate: 0.6, AvgWin: 0, AvgLoss: 50, Balance: 10000, Price: 100},
		{WinRate: 0.6, AvgWin: 100, AvgLoss: -5, Balance: 10000, Price: 100},
	}

	for _, in := range invalid {
		assert.Equal(t, 0.0, svc.CalculateKelly(in), "input %+v", in)
	}
}

func TestCalculateFixedFractional(t *testing.T) {
	svc := newTestService(nil, nil)

	// 2% of 10000 = 200 at risk; no stop -> spread over full price.
	assert.InDelta(t, 2.0, svc.CalculateFixedFractional(FixedFractionalInput{
		Balance: 10000, RiskPercent: 2, Price: 100,
	}), 1e-9)

	// Stop at 90: distance 10 -> 200/10 = 20 units.
	assert.InDelta(t, 20.0, svc.CalculateFixedFractional(FixedFractionalInput{
		Balance: 10000, RiskPercent: 2, Price: 100, StopLossPrice: 90,
	}), 1e-9)

	assert.Equal(t, 0.0, svc.CalculateFixedFractional(FixedFractionalInput{
		Balance: 0, RiskPercent: 2, Price: 100,
	}))
}

func TestCalculateVolatilityAdjusted(t *testing.T) {
	svc := newTestService(nil, nil)

	// Risk 200 over a 2x5=10 stop distance.
	assert.InDelta(t, 20.0, svc.CalculateVolatilityAdjusted(VolatilityInput{
		Balance: 10000, Price: 100, ATR: 5, TargetRiskPercent: 2,
	}), 1e-9)

	// ATR <= 0 falls back to fixed-fractional on the full price.
	assert.InDelta(t, 2.0, svc.CalculateVolatilityAdjusted(VolatilityInput{
		Balance: 10000, Price: 100, ATR: 0, TargetRiskPercent: 2,
	}), 1e-9)
}

func TestGetHistoricalStats(t *testing.T) {
	svc := newTestService(outcomesWithEdge(20), nil)

	stats, err := svc.GetHistoricalStats("u1", 90)
	require.NoError(t, err)

	assert.Equal(t, 20, stats.TotalTrades)
	assert.InDelta(t, 0.6, stats.WinRate, 1e-9)
	assert.InDelta(t, 200, stats.AvgWin, 1e-9)
	assert.InDelta(t, 100, stats.AvgLoss, 1e-9)
}

func TestGetHistoricalStatsEmpty(t *testing.T) {
	svc := newTestService(nil, nil)

	stats, err := svc.GetHistoricalStats("u1", 90)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.TotalTrades)
	assert.Equal(t, 0.0, stats.WinRate)
}

func TestRecommendPrefersKelly(t *testing.T) {
	svc := newTestService(outcomesWithEdge(25), nil)

	rec, err := svc.Recommend(RecommendRequest{
		UserID: "u1", Balance: 10000, Price: 100,
	})
	require.NoError(t, err)

	assert.Equal(t, "kelly", rec.Method)
	assert.InDelta(t, 10.0, rec.Quantity, 1e-9)
	assert.Equal(t, 25, rec.Details["totalTrades"])
}

func TestRecommendFallsBackToVolatility(t *testing.T) {
	svc := newTestService(outcomesWithEdge(10), nil)
	atr := 5.0

	rec, err := svc.Recommend(RecommendRequest{
		UserID: "u1", Balance: 10000, Price: 100, RiskPercent: 2, ATR: &atr,
	})
	require.NoError(t, err)

	assert.Equal(t, "volatility-adjusted", rec.Method)
	assert.InDelta(t, 20.0, rec.Quantity, 1e-9)
}

func TestRecommendFallsBackToFixedFractional(t *testing.T) {
	svc := newTestService(nil, nil)

	rec, err := svc.Recommend(RecommendRequest{
		UserID: "u1", Balance: 10000, Price: 100, RiskPercent: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, "fixed-fractional", rec.Method)
	assert.InDelta(t, 2.0, rec.Quantity, 1e-9)
	assert.Equal(t, 2.0, rec.Details["riskPercent"])
}

func TestATRFromCandles(t *testing.T) {
	// Constant 10-point range: ATR converges to 10.
	candles := make([]domain.Candle, 30)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		candles[i] = domain.Candle{
			Date:  base.AddDate(0, 0, i),
			High:  110,
			Low:   100,
			Close: 105,
		}
	}
	svc := newTestService(nil, candles)

	atr, err := svc.ATRFromCandles("BTC", 60, 14)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, atr, 1e-6)
}

func TestATRFromCandlesThinHistory(t *testing.T) {
	svc := newTestService(nil, []domain.Candle{{High: 110, Low: 100, Close: 105}})

	atr, err := svc.ATRFromCandles("BTC", 60, 14)
	require.NoError(t, err)
	assert.Equal(t, 0.0, atr)
}
