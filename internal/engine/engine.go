// Package engine implements order matching over a single instrument's book.
//
// A matching pass is a pure transformation: it walks the top of both sides
// while they cross, emits trades at the maker's limit price, and updates fill
// state on the in-book orders. It never touches storage; the settlement
// ledger commits its output.
package engine

import (
	"time"

	"github.com/google/uuid"

	"moviex/internal/book"
	"moviex/internal/domain"
)

// Result is the output of one matching pass.
type Result struct {
	Trades  []*domain.Trade
	Touched []*domain.Order // every order whose fill state changed, in first-touch order
}

// Engine produces trades from crossed book state.
// Identical book state always yields an identical trade sequence.
type Engine struct {
	newID func() string
	now   func() time.Time
}

// New creates an engine with production id/clock sources.
func New() *Engine {
	return &Engine{
		newID: func() string { return uuid.NewString() },
		now:   time.Now,
	}
}

// NewWithClock creates an engine with injected id and clock sources, for
// deterministic tests and replay.
func NewWithClock(newID func() string, now func() time.Time) *Engine {
	return &Engine{newID: newID, now: now}
}

// Match runs one pass over the book. It repeats while the best bid crosses
// the best ask, trading min(remaining, remaining) at the maker's price, and
// removes fully filled orders from the book. Partially filled orders keep
// their timestamp and stay at the front of their side.
func (e *Engine) Match(b *book.Book) *Result {
	res := &Result{}
	touched := make(map[string]bool)

	for {
		bid := b.BestBid()
		ask := b.BestAsk()
		if bid == nil || ask == nil {
			break
		}
		if bid.Price.LessThan(ask.Price) {
			break
		}

		// The resting side sets the price: whichever top-of-book order
		// arrived earlier is the maker.
		maker := bid
		if isMaker(ask, bid) {
			maker = ask
		}

		qty := bid.RemainingQty()
		if ask.RemainingQty() < qty {
			qty = ask.RemainingQty()
		}

		trade := &domain.Trade{
			ID:           e.newID(),
			InstrumentID: b.InstrumentID(),
			BuyOrderID:   bid.ID,
			SellOrderID:  ask.ID,
			BuyerID:      bid.TraderID,
			SellerID:     ask.TraderID,
			Price:        maker.Price,
			Quantity:     qty,
			ExecutedAt:   e.now(),
		}
		res.Trades = append(res.Trades, trade)

		bid.Fill(qty)
		ask.Fill(qty)
		for _, o := range []*domain.Order{bid, ask} {
			if !touched[o.ID] {
				touched[o.ID] = true
				res.Touched = append(res.Touched, o)
			}
			if o.Status == domain.OrderStatusFilled {
				b.Remove(o.ID)
			}
		}
	}
	return res
}

// isMaker reports whether a rested before b, by timestamp then arrival
// sequence.
func isMaker(a, b *domain.Order) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Seq < b.Seq
}
