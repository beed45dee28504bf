package optimization

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridianquant/riskdesk/internal/domain"
	"github.com/meridianquant/riskdesk/pkg/formulas"
)

// StatsBuilder derives the optimizer inputs (expected returns and sample
// covariance) from stored daily return series.
type StatsBuilder struct {
	returns domain.ReturnSeriesProvider
	log     zerolog.Logger
}

// NewStatsBuilder creates a new statistics builder.
func NewStatsBuilder(returns domain.ReturnSeriesProvider, log zerolog.Logger) *StatsBuilder {
	return &StatsBuilder{
		returns: returns,
		log:     log.With().Str("component", "optimization_stats").Logger(),
	}
}

// Build fetches per-symbol returns over the last `days` days, aligns them on
// their most recent observations and returns mean returns plus the sample
// covariance matrix in symbol order.
func (b *StatsBuilder) Build(symbols []string, days int) (map[string]float64, [][]float64, error) {
	if len(symbols) == 0 {
		return nil, nil, fmt.Errorf("no symbols provided")
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	series := make([][]float64, len(symbols))
	length := -1
	for i, symbol := range symbols {
		points, err := b.returns.GetDailyReturns(symbol, from, to)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to fetch returns for %s: %w", symbol, err)
		}
		if len(points) < 2 {
			return nil, nil, fmt.Errorf("not enough history for %s: %w", symbol, domain.ErrInsufficientData)
		}
		series[i] = domain.Returns(points)
		if length < 0 || len(series[i]) < length {
			length = len(series[i])
		}
	}

	for i := range series {
		series[i] = series[i][len(series[i])-length:]
	}

	expectedReturns := make(map[string]float64, len(symbols))
	for i, symbol := range symbols {
		expectedReturns[symbol] = formulas.Mean(series[i])
	}

	cov := make([][]float64, len(symbols))
	for i := range cov {
		cov[i] = make([]float64, len(symbols))
		for j := range cov[i] {
			if j < i {
				cov[i][j] = cov[j][i]
				continue
			}
			cov[i][j] = formulas.Covariance(series[i], series[j])
		}
	}

	b.log.Debug().Int("symbols", len(symbols)).Int("samples", length).Msg("Built optimizer statistics")

	return expectedReturns, cov, nil
}
