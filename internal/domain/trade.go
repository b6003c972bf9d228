package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is an append-only execution record. Price always equals the resting
// (maker) order's limit price at match time.
type Trade struct {
	ID           string          `gorm:"primaryKey" json:"id"`
	InstrumentID string          `gorm:"index:idx_trades_feed" json:"instrument_id"`
	BuyOrderID   string          `gorm:"index" json:"buy_order_id"`
	SellOrderID  string          `gorm:"index" json:"sell_order_id"`
	BuyerID      string          `json:"buyer_id"`
	SellerID     string          `json:"seller_id"`
	Price        decimal.Decimal `gorm:"type:numeric" json:"price"`
	Quantity     int64           `json:"quantity"`
	ExecutedAt   time.Time       `gorm:"index:idx_trades_feed" json:"executed_at"`
}

// Notional returns price × quantity, the cash leg of the trade.
func (t *Trade) Notional() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}
