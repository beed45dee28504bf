package marketdata

import (
	"time"

	"github.com/rs/zerolog"
)

// ReplaySource is the in-tree price source stand-in. It carries the latest
// stored candle forward to today, which keeps return series contiguous in
// deployments without exchange connectivity.
type ReplaySource struct {
	store *Store
	log   zerolog.Logger
}

// NewReplaySource creates a new replay price source.
func NewReplaySource(store *Store, log zerolog.Logger) *ReplaySource {
	return &ReplaySource{
		store: store,
		log:   log.With().Str("component", "replay_source").Logger(),
	}
}

// FetchDailyPrices returns the symbol's most recent candle re-dated to
// today. Symbols without history yield no prices.
func (s *ReplaySource) FetchDailyPrices(symbol string, since int) ([]DailyPrice, error) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -since)

	prices, err := s.store.GetDailyPrices(symbol, from, to)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		s.log.Debug().Str("symbol", symbol).Msg("No recent history to replay")
		return nil, nil
	}

	latest := prices[len(prices)-1]
	today := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	if latest.Date.Equal(today) {
		return nil, nil
	}

	latest.Date = today
	return []DailyPrice{latest}, nil
}
