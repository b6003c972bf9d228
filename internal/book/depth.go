package book

import (
	"github.com/shopspring/decimal"

	"moviex/internal/domain"
)

// Level aggregates remaining quantity at one price point.
type Level struct {
	Price      decimal.Decimal `json:"price"`
	Quantity   int64           `json:"quantity"`   // summed remaining at this price
	Orders     int             `json:"orders"`     // order count at this price
	Cumulative int64           `json:"cumulative"` // running sum in priority order
}

// DepthSnapshot is the aggregated view of both sides, top N levels each.
type DepthSnapshot struct {
	InstrumentID string  `json:"instrument_id"`
	Bids         []Level `json:"bids"`
	Asks         []Level `json:"asks"`
}

// Depth aggregates open remaining quantity by price. Levels are returned in
// the same priority order as the book; levels <= 0 returns all of them.
func (b *Book) Depth(levels int) DepthSnapshot {
	return DepthSnapshot{
		InstrumentID: b.instrumentID,
		Bids:         aggregate(b.bids, levels),
		Asks:         aggregate(b.asks, levels),
	}
}

func aggregate(side []*domain.Order, levels int) []Level {
	out := make([]Level, 0, max(levels, 0))
	var cumulative int64

	for _, o := range side {
		remaining := o.RemainingQty()
		if remaining <= 0 {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Price.Equal(o.Price) {
			out[n-1].Quantity += remaining
			out[n-1].Orders++
			out[n-1].Cumulative += remaining
			cumulative += remaining
			continue
		}
		if levels > 0 && len(out) == levels {
			break
		}
		cumulative += remaining
		out = append(out, Level{
			Price:      o.Price,
			Quantity:   remaining,
			Orders:     1,
			Cumulative: cumulative,
		})
	}
	return out
}
