package optimization

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianquant/riskdesk/internal/domain"
)

func TestOptimizeMinVolatility(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())

	// Uncorrelated assets, second one four times as risky: the minimum
	// variance portfolio overweights the first.
	result, err := opt.Optimize(
		map[string]float64{"AAA": 0.001, "BBB": 0.001},
		[][]float64{
			{0.0001, 0},
			{0, 0.0004},
		},
		[]string{"AAA", "BBB"},
		nil, nil,
		StrategyMinVolatility,
	)
	require.NoError(t, err)

	sum := result.Weights["AAA"] + result.Weights["BBB"]
	assert.InDelta(t, 1.0, sum, 1e-3, "weights must sum to 1")
	assert.Greater(t, result.Weights["AAA"], result.Weights["BBB"])
	// Analytic solution is 0.8 / 0.2.
	assert.InDelta(t, 0.8, result.Weights["AAA"], 0.05)
}

func TestOptimizeMaxSharpe(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())

	// Equal risk, very different return: max-Sharpe concentrates in the
	// higher-return asset.
	result, err := opt.Optimize(
		map[string]float64{"AAA": 0.002, "BBB": 0.0001},
		[][]float64{
			{0.0001, 0},
			{0, 0.0001},
		},
		[]string{"AAA", "BBB"},
		nil, nil,
		StrategyMaxSharpe,
	)
	require.NoError(t, err)

	assert.Greater(t, result.Weights["AAA"], result.Weights["BBB"])
	assert.Greater(t, result.SharpeRatio, 0.0)
}

func TestOptimizeRespectsBounds(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())

	result, err := opt.Optimize(
		map[string]float64{"AAA": 0.002, "BBB": 0.0001},
		[][]float64{
			{0.0001, 0},
			{0, 0.0001},
		},
		[]string{"AAA", "BBB"},
		map[string]float64{"BBB": 0.3},
		map[string]float64{"AAA": 0.7},
		StrategyMaxSharpe,
	)
	require.NoError(t, err)

	assert.LessOrEqual(t, result.Weights["AAA"], 0.7+1e-6)
	assert.GreaterOrEqual(t, result.Weights["BBB"], 0.3-1e-6)
}

func TestOptimizeValidation(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())

	_, err := opt.Optimize(nil, nil, nil, nil, nil, StrategyMaxSharpe)
	assert.Error(t, err)

	_, err = opt.Optimize(
		map[string]float64{"AAA": 0.001},
		[][]float64{{0.0001, 0}},
		[]string{"AAA"},
		nil, nil,
		StrategyMaxSharpe,
	)
	assert.Error(t, err, "ragged covariance matrix")

	_, err = opt.Optimize(
		map[string]float64{"AAA": 0.001},
		[][]float64{{0.0001}},
		[]string{"AAA"},
		nil, nil,
		"efficient_frontier",
	)
	assert.Error(t, err, "unknown strategy")
}

type stubReturns struct {
	series map[string][]float64
}

func (s *stubReturns) GetDailyReturns(symbol string, from, to time.Time) ([]domain.ReturnPoint, error) {
	values := s.series[symbol]
	points := make([]domain.ReturnPoint, len(values))
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, v := range values {
		points[i] = domain.ReturnPoint{Date: base.AddDate(0, 0, i), Return: v}
	}
	return points, nil
}

func TestStatsBuilder(t *testing.T) {
	builder := NewStatsBuilder(&stubReturns{series: map[string][]float64{
		"AAA": {0.01, 0.02, 0.03, 0.02},
		"BBB": {0.02, 0.04, 0.06, 0.04},
	}}, zerolog.Nop())

	expected, cov, err := builder.Build([]string{"AAA", "BBB"}, 30)
	require.NoError(t, err)

	assert.InDelta(t, 0.02, expected["AAA"], 1e-9)
	assert.InDelta(t, 0.04, expected["BBB"], 1e-9)

	require.Len(t, cov, 2)
	assert.Equal(t, cov[0][1], cov[1][0], "covariance matrix must be symmetric")
	assert.Greater(t, cov[0][0], 0.0)
	// BBB moves exactly twice AAA: cov(A,B) = 2 var(A).
	assert.InDelta(t, 2*cov[0][0], cov[0][1], 1e-12)
}

func TestStatsBuilderThinHistory(t *testing.T) {
	builder := NewStatsBuilder(&stubReturns{series: map[string][]float64{
		"AAA": {0.01},
	}}, zerolog.Nop())

	_, _, err := builder.Build([]string{"AAA"}, 30)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}
