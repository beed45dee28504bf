// Package domain contains the core data model shared by all analytical engines.
// The domain layer is pure: no infrastructure dependencies.
package domain

import "time"

// Position represents a single portfolio position.
// Quantity is signed: positive = long, negative = short.
type Position struct {
	Symbol       string  `json:"symbol"`
	Quantity     float64 `json:"quantity"`
	CurrentPrice float64 `json:"currentPrice"`
}

// Value returns the market value of the position (quantity x current price).
func (p Position) Value() float64 {
	return p.Quantity * p.CurrentPrice
}

// TotalValue sums the market value of a set of positions.
func TotalValue(positions []Position) float64 {
	total := 0.0
	for _, p := range positions {
		total += p.Value()
	}
	return total
}

// ReturnPoint is one observation of a daily return series.
// The return is (close_t - close_{t-1}) / close_{t-1}; the first observation of
// a price series has no return and is never represented as a sentinel zero.
type ReturnPoint struct {
	Date   time.Time `json:"date"`
	Return float64   `json:"return"`
}

// Returns extracts the raw return values from a series, preserving order.
func Returns(series []ReturnPoint) []float64 {
	out := make([]float64, len(series))
	for i, p := range series {
		out[i] = p.Return
	}
	return out
}

// Candle is one daily OHLC observation, used for ATR-based volatility sizing.
type Candle struct {
	Date  time.Time `json:"date"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// TradeOutcome is one closed trade, used to derive historical win/loss statistics.
type TradeOutcome struct {
	Symbol   string    `json:"symbol"`
	PnL      float64   `json:"pnl"`
	ClosedAt time.Time `json:"closedAt"`
}

// DateRange describes the period a calculation covered.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}
