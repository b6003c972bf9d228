// Package book implements the per-instrument limit order book.
//
// Each side holds open (including partially filled) orders in price-time
// priority: bids by price descending, asks by price ascending, earlier
// submission first at equal price. The book is pure in-memory state; it does
// not persist or publish anything.
package book

import (
	"sort"

	"moviex/internal/domain"
)

// Book maintains the bid and ask sides for a single instrument.
// Not safe for concurrent use; the owner serializes access per instrument.
type Book struct {
	instrumentID string
	bids         []*domain.Order // price desc, time asc
	asks         []*domain.Order // price asc, time asc
	byID         map[string]*domain.Order
	nextSeq      uint64
}

// New creates an empty book for one instrument.
func New(instrumentID string) *Book {
	return &Book{
		instrumentID: instrumentID,
		byID:         make(map[string]*domain.Order),
		nextSeq:      1,
	}
}

// InstrumentID returns the instrument this book is for.
func (b *Book) InstrumentID() string {
	return b.instrumentID
}

// Insert adds an open order at its price-time position.
// Orders arriving without a sequence number are stamped with the book's
// arrival counter; rebuilt orders keep their persisted sequence.
func (b *Book) Insert(o *domain.Order) error {
	if !o.Price.IsPositive() || o.Quantity <= 0 {
		return &domain.InvalidOrderError{Field: "order", Reason: "price and quantity must be positive"}
	}
	if _, exists := b.byID[o.ID]; exists {
		return &domain.InvalidOrderError{Field: "id", Reason: "order already in book"}
	}

	if o.Seq == 0 {
		o.Seq = b.nextSeq
	}
	if o.Seq >= b.nextSeq {
		b.nextSeq = o.Seq + 1
	}

	side := &b.asks
	if o.Side == domain.SideBuy {
		side = &b.bids
	}

	idx := sort.Search(len(*side), func(i int) bool {
		return ranksAfter((*side)[i], o)
	})
	*side = append(*side, nil)
	copy((*side)[idx+1:], (*side)[idx:])
	(*side)[idx] = o

	b.byID[o.ID] = o
	return nil
}

// ranksAfter reports whether existing has strictly lower priority than o,
// i.e. o must be placed before it.
func ranksAfter(existing, o *domain.Order) bool {
	cmp := existing.Price.Cmp(o.Price)
	if cmp != 0 {
		if o.Side == domain.SideBuy {
			return cmp < 0 // bids: higher price first
		}
		return cmp > 0 // asks: lower price first
	}
	// Same price: earlier submission first, then arrival sequence.
	if !existing.CreatedAt.Equal(o.CreatedAt) {
		return existing.CreatedAt.After(o.CreatedAt)
	}
	return existing.Seq > o.Seq
}

// Remove takes an order out of the book (cancel or full fill).
func (b *Book) Remove(orderID string) (*domain.Order, error) {
	o, exists := b.byID[orderID]
	if !exists {
		return nil, domain.ErrNotFound
	}
	delete(b.byID, orderID)

	side := &b.asks
	if o.Side == domain.SideBuy {
		side = &b.bids
	}
	for i, cur := range *side {
		if cur.ID == orderID {
			*side = append((*side)[:i], (*side)[i+1:]...)
			break
		}
	}
	return o, nil
}

// Get returns the order with the given id, or nil.
func (b *Book) Get(orderID string) *domain.Order {
	return b.byID[orderID]
}

// BestBid returns the top-priority buy order, or nil if the side is empty.
func (b *Book) BestBid() *domain.Order {
	if len(b.bids) == 0 {
		return nil
	}
	return b.bids[0]
}

// BestAsk returns the top-priority sell order, or nil if the side is empty.
func (b *Book) BestAsk() *domain.Order {
	if len(b.asks) == 0 {
		return nil
	}
	return b.asks[0]
}

// Len returns the total number of resting orders.
func (b *Book) Len() int {
	return len(b.byID)
}
