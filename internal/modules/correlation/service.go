// Package correlation computes pairwise Pearson correlation and derived
// diversification metrics from daily return series.
package correlation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridianquant/riskdesk/internal/domain"
	"github.com/meridianquant/riskdesk/pkg/formulas"
)

// Thresholds for pair classification.
const (
	HighCorrelationThreshold = 0.7
	LowCorrelationThreshold  = 0.3
	maxReportedPairs         = 10
)

// Pair is one classified symbol pair.
type Pair struct {
	Symbol1     string  `json:"symbol1"`
	Symbol2     string  `json:"symbol2"`
	Correlation float64 `json:"correlation"`
}

// Result is the correlation matrix plus derived diversification metrics.
type Result struct {
	Symbols              []string         `json:"symbols"`
	Matrix               [][]float64      `json:"matrix"`
	AvgCorrelation       float64          `json:"avgCorrelation"`
	MaxCorrelation       float64          `json:"maxCorrelation"`
	MinCorrelation       float64          `json:"minCorrelation"`
	DiversificationScore float64          `json:"diversificationScore"`
	HighlyCorrelated     []Pair           `json:"highlyCorrelated"`
	Uncorrelated         []Pair           `json:"uncorrelated"`
	Period               domain.DateRange `json:"period"`
}

// RollingPoint is one observation of a rolling correlation series.
type RollingPoint struct {
	Date        time.Time `json:"date"`
	Correlation float64   `json:"correlation"`
}

// Service computes correlation analyses. Safe for concurrent use; every
// operation is a pure computation over freshly fetched inputs.
type Service struct {
	returns   domain.ReturnSeriesProvider
	positions domain.PositionStore
	log       zerolog.Logger
}

// NewService creates a new correlation analysis service.
func NewService(returns domain.ReturnSeriesProvider, positions domain.PositionStore, log zerolog.Logger) *Service {
	return &Service{
		returns:   returns,
		positions: positions,
		log:       log.With().Str("service", "correlation").Logger(),
	}
}

// CalculateMatrix computes the pairwise Pearson correlation matrix for the
// given symbols over the last `days` days, plus diversification metrics.
// Pairs with fewer than 2 aligned samples or zero variance contribute a
// correlation of 0, never NaN. An empty return alignment yields a zero-score
// result rather than an error.
func (s *Service) CalculateMatrix(symbols []string, days int) (*Result, error) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	series := make([][]float64, len(symbols))
	for i, symbol := range symbols {
		points, err := s.returns.GetDailyReturns(symbol, from, to)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch returns for %s: %w", symbol, err)
		}
		series[i] = domain.Returns(points)
	}

	n := len(symbols)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1.0
	}

	// Each off-diagonal pair is computed once and mirrored.
	var pairs []Pair
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			x, y := alignTails(series[i], series[j])
			corr := formulas.Correlation(x, y)
			matrix[i][j] = corr
			matrix[j][i] = corr
			pairs = append(pairs, Pair{Symbol1: symbols[i], Symbol2: symbols[j], Correlation: corr})
		}
	}

	result := &Result{
		Symbols: symbols,
		Matrix:  matrix,
		Period:  domain.DateRange{From: from, To: to},
	}
	s.applyMetrics(result, pairs)

	s.log.Debug().
		Int("symbols", n).
		Float64("avg_correlation", result.AvgCorrelation).
		Float64("diversification_score", result.DiversificationScore).
		Msg("Calculated correlation matrix")

	return result, nil
}

// CalculateRolling computes a rolling Pearson correlation between two symbols
// over the last `days` days, one point per window end-date.
func (s *Service) CalculateRolling(symbol1, symbol2 string, days, rollingWindow int) ([]RollingPoint, error) {
	if rollingWindow < 2 {
		return nil, fmt.Errorf("rolling window must be at least 2: %w", domain.ErrInsufficientData)
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	points1, err := s.returns.GetDailyReturns(symbol1, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch returns for %s: %w", symbol1, err)
	}
	points2, err := s.returns.GetDailyReturns(symbol2, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch returns for %s: %w", symbol2, err)
	}

	length := len(points1)
	if len(points2) < length {
		length = len(points2)
	}
	if length < rollingWindow {
		return nil, fmt.Errorf("need %d aligned samples, have %d: %w", rollingWindow, length, domain.ErrInsufficientData)
	}

	// Align tails so both series end at the most recent observation.
	aligned1 := points1[len(points1)-length:]
	aligned2 := points2[len(points2)-length:]

	x := domain.Returns(aligned1)
	y := domain.Returns(aligned2)

	rolling := make([]RollingPoint, 0, length-rollingWindow+1)
	for end := rollingWindow; end <= length; end++ {
		start := end - rollingWindow
		rolling = append(rolling, RollingPoint{
			Date:        aligned1[end-1].Date,
			Correlation: formulas.Correlation(x[start:end], y[start:end]),
		})
	}

	return rolling, nil
}

// CalculatePortfolio resolves symbols from the latest position snapshot of a
// portfolio and computes the correlation matrix over them. Portfolios with
// fewer than 2 positions fail with ErrInsufficientPositions.
func (s *Service) CalculatePortfolio(portfolioID string, days int) (*Result, error) {
	positions, err := s.positions.GetPositions(portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions for %s: %w", portfolioID, err)
	}

	if len(positions) < 2 {
		return nil, fmt.Errorf("portfolio %s has %d positions, need at least 2: %w",
			portfolioID, len(positions), domain.ErrInsufficientPositions)
	}

	symbols := make([]string, len(positions))
	for i, p := range positions {
		symbols[i] = p.Symbol
	}

	return s.CalculateMatrix(symbols, days)
}

// applyMetrics derives the diversification metrics from the off-diagonal pairs.
func (s *Service) applyMetrics(result *Result, pairs []Pair) {
	if len(pairs) == 0 {
		result.HighlyCorrelated = []Pair{}
		result.Uncorrelated = []Pair{}
		return
	}

	sum := 0.0
	maxCorr := pairs[0].Correlation
	minCorr := pairs[0].Correlation
	var high, low []Pair

	for _, p := range pairs {
		sum += p.Correlation
		if p.Correlation > maxCorr {
			maxCorr = p.Correlation
		}
		if p.Correlation < minCorr {
			minCorr = p.Correlation
		}
		if p.Correlation > HighCorrelationThreshold {
			high = append(high, p)
		}
		if math.Abs(p.Correlation) < LowCorrelationThreshold {
			low = append(low, p)
		}
	}

	avg := sum / float64(len(pairs))

	// Strongest first for correlated pairs, weakest first for uncorrelated.
	sort.Slice(high, func(i, j int) bool { return high[i].Correlation > high[j].Correlation })
	sort.Slice(low, func(i, j int) bool {
		return math.Abs(low[i].Correlation) < math.Abs(low[j].Correlation)
	})
	if len(high) > maxReportedPairs {
		high = high[:maxReportedPairs]
	}
	if len(low) > maxReportedPairs {
		low = low[:maxReportedPairs]
	}
	if high == nil {
		high = []Pair{}
	}
	if low == nil {
		low = []Pair{}
	}

	result.AvgCorrelation = avg
	result.MaxCorrelation = maxCorr
	result.MinCorrelation = minCorr
	result.DiversificationScore = formulas.Clamp(100*(1-avg), 0, 100)
	result.HighlyCorrelated = high
	result.Uncorrelated = low
}

// alignTails truncates two series to a common length, keeping the most recent
// observations of each.
func alignTails(x, y []float64) ([]float64, []float64) {
	length := len(x)
	if len(y) < length {
		length = len(y)
	}
	return x[len(x)-length:], y[len(y)-length:]
}
