package domain

import "time"

// ReturnSeriesProvider supplies per-symbol daily return sequences for a date
// range. Implementations return series already de-nulled: no leading null from
// a difference operation, ordered by date ascending.
type ReturnSeriesProvider interface {
	GetDailyReturns(symbol string, from, to time.Time) ([]ReturnPoint, error)
}

// CandleProvider supplies daily OHLC history, ordered by date ascending.
type CandleProvider interface {
	GetDailyCandles(symbol string, from, to time.Time) ([]Candle, error)
}

// PositionStore is the portfolio/position collaborator contract.
type PositionStore interface {
	// GetPositions returns the latest position snapshot for a portfolio.
	// Returns ErrNotFound when the portfolio does not exist.
	GetPositions(portfolioID string) ([]Position, error)

	// GetLastRebalanceDate returns the most recent rebalance timestamp for a
	// portfolio. ok is false when no rebalance has been recorded.
	GetLastRebalanceDate(portfolioID string) (t time.Time, ok bool, err error)
}

// TradeHistory supplies closed trade outcomes for position-sizing statistics.
type TradeHistory interface {
	GetTradeOutcomes(userID string, days int) ([]TradeOutcome, error)
}
