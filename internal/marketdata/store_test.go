package marketdata

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(Schema)
	require.NoError(t, err)

	return NewStore(db, zerolog.Nop())
}

func day(offset int) time.Time {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

func seedCloses(t *testing.T, store *Store, symbol string, closes []float64) {
	t.Helper()
	for i, c := range closes {
		err := store.UpsertDailyPrice(symbol, DailyPrice{
			Date:  day(i),
			Open:  c,
			High:  c * 1.01,
			Low:   c * 0.99,
			Close: c,
		})
		require.NoError(t, err)
	}
}

func TestGetDailyReturns(t *testing.T) {
	store := setupStore(t)
	seedCloses(t, store, "BTCUSDT", []float64{100, 110, 99, 99})

	returns, err := store.GetDailyReturns("BTCUSDT", day(0), day(10))
	require.NoError(t, err)

	// First price observation is dropped, not emitted as a zero return.
	require.Len(t, returns, 3)
	assert.InDelta(t, 0.10, returns[0].Return, 1e-9)
	assert.InDelta(t, -0.10, returns[1].Return, 1e-9)
	assert.InDelta(t, 0.0, returns[2].Return, 1e-9)
	assert.True(t, returns[0].Date.After(day(0).Add(-time.Second)))
}

func TestGetDailyReturnsTooFewPrices(t *testing.T) {
	store := setupStore(t)
	seedCloses(t, store, "ETHUSDT", []float64{2000})

	returns, err := store.GetDailyReturns("ETHUSDT", day(0), day(10))
	require.NoError(t, err)
	assert.Empty(t, returns)
}

func TestGetDailyReturnsWindowFilter(t *testing.T) {
	store := setupStore(t)
	seedCloses(t, store, "BTCUSDT", []float64{100, 110, 121, 133.1})

	// Window starting at day 2 only sees two prices -> one return.
	returns, err := store.GetDailyReturns("BTCUSDT", day(2), day(3))
	require.NoError(t, err)
	require.Len(t, returns, 1)
	assert.InDelta(t, 0.10, returns[0].Return, 1e-6)
}

func TestUpsertOverwrites(t *testing.T) {
	store := setupStore(t)
	seedCloses(t, store, "SOLUSDT", []float64{50})

	err := store.UpsertDailyPrice("SOLUSDT", DailyPrice{Date: day(0), Close: 55})
	require.NoError(t, err)

	prices, err := store.GetDailyPrices("SOLUSDT", day(0), day(0))
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, 55.0, prices[0].Close)
}

func TestLatestDateAndSymbols(t *testing.T) {
	store := setupStore(t)

	_, ok, err := store.LatestDate("BTCUSDT")
	require.NoError(t, err)
	assert.False(t, ok)

	seedCloses(t, store, "BTCUSDT", []float64{100, 101})
	seedCloses(t, store, "ETHUSDT", []float64{2000})

	latest, ok, err := store.LatestDate("BTCUSDT")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, day(1), latest)

	symbols, err := store.Symbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, symbols)
}
