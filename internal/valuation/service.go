// Package valuation derives portfolio-level return series from position
// snapshots and per-symbol daily returns.
package valuation

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridianquant/riskdesk/internal/domain"
)

// Service builds value-weighted portfolio return series. Per-symbol series
// are aligned on their most recent observations before weighting.
type Service struct {
	returns   domain.ReturnSeriesProvider
	positions domain.PositionStore
	log       zerolog.Logger
}

// NewService creates a new valuation service.
func NewService(returns domain.ReturnSeriesProvider, positions domain.PositionStore, log zerolog.Logger) *Service {
	return &Service{
		returns:   returns,
		positions: positions,
		log:       log.With().Str("service", "valuation").Logger(),
	}
}

// PortfolioReturns returns the value-weighted daily return series of a
// portfolio over the last `days` days, along with the position snapshot the
// weights were taken from. Positions with no return history are excluded
// from the weighting.
func (s *Service) PortfolioReturns(portfolioID string, days int) ([]domain.ReturnPoint, []domain.Position, error) {
	positions, err := s.positions.GetPositions(portfolioID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get positions for %s: %w", portfolioID, err)
	}
	if len(positions) == 0 {
		return []domain.ReturnPoint{}, positions, nil
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	series := make([][]domain.ReturnPoint, 0, len(positions))
	held := make([]domain.Position, 0, len(positions))
	for _, p := range positions {
		points, err := s.returns.GetDailyReturns(p.Symbol, from, to)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to fetch returns for %s: %w", p.Symbol, err)
		}
		if len(points) == 0 {
			s.log.Warn().Str("symbol", p.Symbol).Msg("No return history, excluding from portfolio series")
			continue
		}
		series = append(series, points)
		held = append(held, p)
	}
	if len(series) == 0 {
		return []domain.ReturnPoint{}, positions, nil
	}

	length := len(series[0])
	for _, points := range series[1:] {
		if len(points) < length {
			length = len(points)
		}
	}

	total := 0.0
	for _, p := range held {
		total += p.Value()
	}
	if total == 0 {
		return []domain.ReturnPoint{}, positions, nil
	}

	combined := make([]domain.ReturnPoint, length)
	anchor := series[0][len(series[0])-length:]
	for t := 0; t < length; t++ {
		combined[t].Date = anchor[t].Date
	}
	for i, points := range series {
		weight := held[i].Value() / total
		tail := points[len(points)-length:]
		for t := 0; t < length; t++ {
			combined[t].Return += weight * tail[t].Return
		}
	}

	return combined, positions, nil
}
