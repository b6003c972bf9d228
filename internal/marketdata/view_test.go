package marketdata

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moviex/internal/domain"
	"moviex/internal/infra/storage"
)

var viewNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func setupView(t *testing.T) (*View, *storage.Store) {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	v := New(store, nil)
	v.now = func() time.Time { return viewNow }
	return v, store
}

func seedInstrument(t *testing.T, store *storage.Store, lastPrice string) {
	t.Helper()
	inst, err := domain.NewInstrument("m1", "DUNE", "Dune", 1000, dec(lastPrice), "")
	require.NoError(t, err)
	require.NoError(t, store.CreateInstrument(inst))
}

func seedTrade(t *testing.T, store *storage.Store, id, price string, qty int64, age time.Duration) {
	t.Helper()
	require.NoError(t, store.InsertTrade(&domain.Trade{
		ID: id, InstrumentID: "m1",
		BuyOrderID: "b", SellOrderID: "s", BuyerID: "x", SellerID: "y",
		Price: dec(price), Quantity: qty,
		ExecutedAt: viewNow.Add(-age),
	}))
}

func TestPriceSeriesBucketsVWAP(t *testing.T) {
	v, store := setupView(t)
	seedInstrument(t, store, "90")

	// Two trades in one bucket, one in a later bucket.
	seedTrade(t, store, "t1", "100", 10, 55*time.Minute)
	seedTrade(t, store, "t2", "110", 10, 51*time.Minute)
	seedTrade(t, store, "t3", "120", 5, 10*time.Minute)

	points, err := v.PriceSeries("m1", time.Hour, 10*time.Minute)
	require.NoError(t, err)
	require.Len(t, points, 2)

	// (100*10 + 110*10) / 20 = 105
	assert.True(t, points[0].Price.Equal(dec("105")), "vwap: %s", points[0].Price)
	assert.Equal(t, int64(20), points[0].Volume)
	assert.True(t, points[1].Price.Equal(dec("120")))
	assert.Equal(t, int64(5), points[1].Volume)
	assert.True(t, points[0].Time.Before(points[1].Time))
}

func TestPriceSeriesFlatFallback(t *testing.T) {
	v, store := setupView(t)
	seedInstrument(t, store, "42")

	points, err := v.PriceSeries("m1", time.Hour, time.Minute)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.True(t, points[0].Price.Equal(dec("42")))
	assert.Equal(t, int64(0), points[0].Volume)
}

func TestPriceSeriesUnknownInstrument(t *testing.T) {
	v, _ := setupView(t)

	_, err := v.PriceSeries("ghost", time.Hour, time.Minute)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPriceSeriesExcludesTradesOutsideWindow(t *testing.T) {
	v, store := setupView(t)
	seedInstrument(t, store, "90")

	seedTrade(t, store, "old", "100", 10, 2*time.Hour)
	seedTrade(t, store, "recent", "120", 5, 10*time.Minute)

	points, err := v.PriceSeries("m1", time.Hour, 10*time.Minute)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.True(t, points[0].Price.Equal(dec("120")))
}

func TestStatsOverWindow(t *testing.T) {
	v, store := setupView(t)
	seedInstrument(t, store, "120")

	seedTrade(t, store, "t1", "100", 10, 50*time.Minute)
	seedTrade(t, store, "t2", "120", 5, 10*time.Minute)

	stats, err := v.Stats("m1", time.Hour)
	require.NoError(t, err)
	assert.True(t, stats.LastPrice.Equal(dec("120")))
	assert.True(t, stats.OpenPrice.Equal(dec("100")), "open: %s", stats.OpenPrice)
	assert.True(t, stats.ChangePct.Equal(dec("20")), "change: %s", stats.ChangePct)
	assert.Equal(t, int64(15), stats.Volume)
	assert.Equal(t, 2, stats.TradeCount)
}

func TestStatsQuietWindow(t *testing.T) {
	v, store := setupView(t)
	seedInstrument(t, store, "90")

	stats, err := v.Stats("m1", time.Hour)
	require.NoError(t, err)
	assert.True(t, stats.OpenPrice.Equal(dec("90")))
	assert.True(t, stats.ChangePct.IsZero())
	assert.Equal(t, int64(0), stats.Volume)
	assert.Equal(t, 0, stats.TradeCount)
}
