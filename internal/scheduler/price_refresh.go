package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/meridianquant/riskdesk/internal/events"
	"github.com/meridianquant/riskdesk/internal/marketdata"
)

// PriceSource supplies the latest daily candles for tracked symbols.
// Exchange connectivity lives behind this interface; the in-tree
// implementation replays stored prices.
type PriceSource interface {
	FetchDailyPrices(symbol string, since int) ([]marketdata.DailyPrice, error)
}

// PriceRefreshJob pulls fresh daily prices for every tracked symbol into the
// market data store.
type PriceRefreshJob struct {
	store  *marketdata.Store
	source PriceSource
	bus    *events.Bus
	log    zerolog.Logger
}

// NewPriceRefreshJob creates a new price refresh job.
func NewPriceRefreshJob(store *marketdata.Store, source PriceSource, bus *events.Bus, log zerolog.Logger) *PriceRefreshJob {
	return &PriceRefreshJob{
		store:  store,
		source: source,
		bus:    bus,
		log:    log.With().Str("job", "price_refresh").Logger(),
	}
}

// Name returns the job name
func (j *PriceRefreshJob) Name() string {
	return "price_refresh"
}

// Run refreshes prices for all tracked symbols. Per-symbol failures are
// logged and skipped so one bad symbol cannot stall the whole refresh.
func (j *PriceRefreshJob) Run() error {
	symbols, err := j.store.Symbols()
	if err != nil {
		return fmt.Errorf("failed to list tracked symbols: %w", err)
	}

	updated, failed := 0, 0
	for _, symbol := range symbols {
		prices, err := j.source.FetchDailyPrices(symbol, 7)
		if err != nil {
			j.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to fetch prices")
			failed++
			continue
		}
		for _, price := range prices {
			if err := j.store.UpsertDailyPrice(symbol, price); err != nil {
				j.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to store price")
				failed++
				continue
			}
			updated++
		}
	}

	j.log.Info().Int("updated", updated).Int("failed", failed).Msg("Price refresh finished")

	if j.bus != nil {
		j.bus.Publish(events.PricesRefreshed, "scheduler", map[string]interface{}{
			"symbols": len(symbols),
			"updated": updated,
			"failed":  failed,
		})
	}

	if failed > 0 && updated == 0 {
		err := fmt.Errorf("price refresh failed for all %d symbols", failed)
		if j.bus != nil {
			j.bus.PublishError("scheduler", err)
		}
		return err
	}
	return nil
}
