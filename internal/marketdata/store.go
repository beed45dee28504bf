// Package marketdata provides the historical price store backing the return
// series queries used by the analytical engines.
package marketdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridianquant/riskdesk/internal/domain"
)

// Schema is the market data database schema.
const Schema = `
CREATE TABLE IF NOT EXISTS daily_prices (
	symbol TEXT NOT NULL,
	date   INTEGER NOT NULL,
	open   REAL,
	high   REAL,
	low    REAL,
	close  REAL NOT NULL,
	volume INTEGER,
	PRIMARY KEY (symbol, date)
);
CREATE INDEX IF NOT EXISTS idx_daily_prices_symbol_date ON daily_prices(symbol, date);
`

// Store provides access to historical daily price data.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStore creates a new market data store accessor.
func NewStore(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With().Str("component", "marketdata").Logger(),
	}
}

// DailyPrice represents a daily OHLCV price point.
type DailyPrice struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume *int64    `json:"volume,omitempty"`
}

// UpsertDailyPrice inserts or replaces one daily price observation.
func (s *Store) UpsertDailyPrice(symbol string, p DailyPrice) error {
	query := `
		INSERT INTO daily_prices (symbol, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume
	`

	day := p.Date.UTC().Truncate(24 * time.Hour)
	var volume interface{}
	if p.Volume != nil {
		volume = *p.Volume
	}

	if _, err := s.db.Exec(query, symbol, day.Unix(), p.Open, p.High, p.Low, p.Close, volume); err != nil {
		return fmt.Errorf("failed to upsert daily price for %s: %w", symbol, err)
	}
	return nil
}

// GetDailyPrices fetches daily price data for a symbol in [from, to],
// ordered by date ascending.
func (s *Store) GetDailyPrices(symbol string, from, to time.Time) ([]DailyPrice, error) {
	query := `
		SELECT date, open, high, low, close, volume
		FROM daily_prices
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := s.db.Query(query, symbol, from.UTC().Unix(), to.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var prices []DailyPrice
	for rows.Next() {
		var p DailyPrice
		var dateUnix int64
		var open, high, low sql.NullFloat64
		var volume sql.NullInt64

		if err := rows.Scan(&dateUnix, &open, &high, &low, &p.Close, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}

		p.Date = time.Unix(dateUnix, 0).UTC()
		p.Open = open.Float64
		p.High = high.Float64
		p.Low = low.Float64
		if volume.Valid {
			p.Volume = &volume.Int64
		}

		prices = append(prices, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	return prices, nil
}

// GetDailyReturns returns the daily return series for a symbol over [from, to].
// The return for day t is (close_t - close_{t-1}) / close_{t-1}; the first
// price observation has no return and is dropped, never emitted as zero.
func (s *Store) GetDailyReturns(symbol string, from, to time.Time) ([]domain.ReturnPoint, error) {
	prices, err := s.GetDailyPrices(symbol, from, to)
	if err != nil {
		return nil, err
	}

	if len(prices) < 2 {
		return []domain.ReturnPoint{}, nil
	}

	returns := make([]domain.ReturnPoint, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1].Close
		if prev == 0 {
			continue
		}
		returns = append(returns, domain.ReturnPoint{
			Date:   prices[i].Date,
			Return: (prices[i].Close - prev) / prev,
		})
	}

	return returns, nil
}

// GetDailyCandles returns daily OHLC candles for a symbol over [from, to],
// ordered by date ascending.
func (s *Store) GetDailyCandles(symbol string, from, to time.Time) ([]domain.Candle, error) {
	prices, err := s.GetDailyPrices(symbol, from, to)
	if err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, len(prices))
	for i, p := range prices {
		candles[i] = domain.Candle{
			Date:  p.Date,
			High:  p.High,
			Low:   p.Low,
			Close: p.Close,
		}
	}
	return candles, nil
}

// LatestDate returns the most recent price date stored for a symbol.
// ok is false when the symbol has no stored prices.
func (s *Store) LatestDate(symbol string) (time.Time, bool, error) {
	var dateUnix sql.NullInt64
	err := s.db.QueryRow(
		`SELECT MAX(date) FROM daily_prices WHERE symbol = ?`, symbol,
	).Scan(&dateUnix)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query latest price date: %w", err)
	}
	if !dateUnix.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(dateUnix.Int64, 0).UTC(), true, nil
}

// Symbols returns all symbols with stored prices.
func (s *Store) Symbols() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT symbol FROM daily_prices ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}

	return symbols, nil
}
