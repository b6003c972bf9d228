package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a limit order for a single instrument.
// FilledQty is monotonically non-decreasing while the order is open and is
// frozen once the order reaches a terminal status.
type Order struct {
	ID           string          `gorm:"primaryKey" json:"id"`
	TraderID     string          `gorm:"index" json:"trader_id"`
	InstrumentID string          `gorm:"index:idx_orders_book" json:"instrument_id"`
	Side         string          `json:"side"` // "buy", "sell"
	Price        decimal.Decimal `gorm:"type:numeric" json:"price"`
	Quantity     int64           `json:"quantity"`
	FilledQty    int64           `json:"filled_quantity"`
	Status       string          `gorm:"index:idx_orders_book" json:"status"` // "open", "filled", "cancelled"
	Seq          uint64          `json:"seq"`                                 // book arrival sequence, tie-break after timestamp
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

const (
	SideBuy  = "buy"
	SideSell = "sell"

	OrderStatusOpen      = "open"
	OrderStatusFilled    = "filled"
	OrderStatusCancelled = "cancelled"
)

// NewOrder validates and builds an open order.
func NewOrder(id, traderID, instrumentID, side string, price decimal.Decimal, quantity int64) (*Order, error) {
	if side != SideBuy && side != SideSell {
		return nil, &InvalidOrderError{Field: "side", Reason: "must be buy or sell"}
	}
	if !price.IsPositive() {
		return nil, &InvalidOrderError{Field: "price", Reason: "must be positive"}
	}
	if quantity <= 0 {
		return nil, &InvalidOrderError{Field: "quantity", Reason: "must be positive"}
	}
	return &Order{
		ID:           id,
		TraderID:     traderID,
		InstrumentID: instrumentID,
		Side:         side,
		Price:        price,
		Quantity:     quantity,
		Status:       OrderStatusOpen,
		CreatedAt:    time.Now(),
	}, nil
}

// RemainingQty returns the unfilled quantity.
func (o *Order) RemainingQty() int64 {
	return o.Quantity - o.FilledQty
}

// IsOpen checks if the order is still active (includes partial fills).
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusOpen
}

// IsTerminal reports whether the order can no longer change.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusFilled || o.Status == OrderStatusCancelled
}

// Fill increments the filled quantity and transitions to filled when complete.
// The caller guarantees qty <= RemainingQty.
func (o *Order) Fill(qty int64) {
	o.FilledQty += qty
	if o.FilledQty >= o.Quantity {
		o.FilledQty = o.Quantity
		o.Status = OrderStatusFilled
	}
}
