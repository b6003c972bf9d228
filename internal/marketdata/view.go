// Package marketdata provides read-only projections for external consumers:
// book depth, recent trades, bucketed price series, and per-instrument stats.
// Nothing here mutates exchange state.
package marketdata

import (
	"time"

	"github.com/shopspring/decimal"

	"moviex/internal/book"
	"moviex/internal/domain"
	"moviex/internal/infra/storage"
)

// DepthFn resolves the live depth snapshot for an instrument. The exchange
// service supplies it; the view never touches books directly.
type DepthFn func(instrumentID string, levels int) (book.DepthSnapshot, error)

// PricePoint is one bucket of the price series: volume-weighted average
// price of the trades that fell into the bucket.
type PricePoint struct {
	Time   time.Time       `json:"time"`
	Price  decimal.Decimal `json:"price"`
	Volume int64           `json:"volume"`
}

// Stats summarizes one instrument over a trailing window.
type Stats struct {
	InstrumentID string          `json:"instrument_id"`
	LastPrice    decimal.Decimal `json:"last_price"`
	OpenPrice    decimal.Decimal `json:"open_price"`
	ChangePct    decimal.Decimal `json:"change_pct"`
	Volume       int64           `json:"volume"`
	TradeCount   int             `json:"trade_count"`
}

// View serves market data queries from the store and the live books.
type View struct {
	store *storage.Store
	depth DepthFn
	now   func() time.Time
}

// New creates a view. depth may be nil when only trade-backed queries are used.
func New(store *storage.Store, depth DepthFn) *View {
	return &View{store: store, depth: depth, now: time.Now}
}

// Depth returns the aggregated top-N levels of both sides.
func (v *View) Depth(instrumentID string, levels int) (book.DepthSnapshot, error) {
	return v.depth(instrumentID, levels)
}

// RecentTrades returns the most recent trades, newest first.
func (v *View) RecentTrades(instrumentID string, limit int) ([]domain.Trade, error) {
	return v.store.RecentTrades(instrumentID, limit)
}

// PriceSeries buckets the window's trades by interval and returns the
// volume-weighted average price per bucket. A window with no trades yields a
// single flat point at the instrument's current last price; freshly listed
// instruments chart as a flat line, not an error.
func (v *View) PriceSeries(instrumentID string, window, bucket time.Duration) ([]PricePoint, error) {
	if bucket <= 0 {
		bucket = time.Minute
	}
	to := v.now()
	from := to.Add(-window)

	trades, err := v.store.TradesInWindow(instrumentID, from, to)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		inst, err := v.store.GetInstrument(instrumentID)
		if err != nil {
			return nil, err
		}
		if inst == nil {
			return nil, domain.ErrNotFound
		}
		return []PricePoint{{Time: to, Price: inst.LastPrice}}, nil
	}

	type acc struct {
		notional decimal.Decimal
		volume   int64
	}
	buckets := make(map[int64]*acc)
	var indexes []int64
	for i := range trades {
		t := &trades[i]
		idx := int64(t.ExecutedAt.Sub(from) / bucket)
		a, ok := buckets[idx]
		if !ok {
			a = &acc{notional: decimal.Zero}
			buckets[idx] = a
			indexes = append(indexes, idx)
		}
		a.notional = a.notional.Add(t.Notional())
		a.volume += t.Quantity
	}

	points := make([]PricePoint, 0, len(indexes))
	for _, idx := range indexes {
		a := buckets[idx]
		points = append(points, PricePoint{
			Time:   from.Add(time.Duration(idx) * bucket),
			Price:  a.notional.Div(decimal.NewFromInt(a.volume)),
			Volume: a.volume,
		})
	}
	return points, nil
}

// Stats computes last price, window open, percentage change, volume and trade
// count over the trailing window.
func (v *View) Stats(instrumentID string, window time.Duration) (*Stats, error) {
	inst, err := v.store.GetInstrument(instrumentID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, domain.ErrNotFound
	}

	to := v.now()
	trades, err := v.store.TradesInWindow(instrumentID, to.Add(-window), to)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		InstrumentID: instrumentID,
		LastPrice:    inst.LastPrice,
		OpenPrice:    inst.LastPrice,
		ChangePct:    decimal.Zero,
	}
	for i := range trades {
		stats.Volume += trades[i].Quantity
	}
	stats.TradeCount = len(trades)
	if len(trades) > 0 {
		stats.OpenPrice = trades[0].Price
		if stats.OpenPrice.IsPositive() {
			stats.ChangePct = stats.LastPrice.Sub(stats.OpenPrice).
				Div(stats.OpenPrice).
				Mul(decimal.NewFromInt(100))
		}
	}
	return stats, nil
}
