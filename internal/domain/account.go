package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is a trader's cash account with reservation accounting.
// Reserved cash backs open buy orders; Balance - Reserved is spendable.
// Mutated only through the settlement ledger and order admission.
type Wallet struct {
	TraderID  string          `gorm:"primaryKey" json:"trader_id"`
	Balance   decimal.Decimal `gorm:"type:numeric" json:"balance"`
	Reserved  decimal.Decimal `gorm:"type:numeric" json:"reserved"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Available returns the spendable balance (total - reserved).
func (w *Wallet) Available() decimal.Decimal {
	return w.Balance.Sub(w.Reserved)
}

// Reserve locks cash for an open buy order.
func (w *Wallet) Reserve(amount decimal.Decimal) error {
	if amount.GreaterThan(w.Available()) {
		return ErrInsufficientFunds
	}
	w.Reserved = w.Reserved.Add(amount)
	return nil
}

// Release unlocks reserved cash (cancel of the unfilled remainder).
// Clamped at zero so a release can never drive Reserved negative.
func (w *Wallet) Release(amount decimal.Decimal) {
	w.Reserved = w.Reserved.Sub(amount)
	if w.Reserved.IsNegative() {
		w.Reserved = decimal.Zero
	}
}

// SettleBuy consumes the reservation made at the buyer's limit price and
// debits the actual execution price. The difference between locked and price
// is the taker's price improvement and stays in Balance.
func (w *Wallet) SettleBuy(locked, cost decimal.Decimal) {
	w.Release(locked)
	w.Balance = w.Balance.Sub(cost)
}

// Credit adds proceeds from a sale.
func (w *Wallet) Credit(amount decimal.Decimal) {
	w.Balance = w.Balance.Add(amount)
}

// Position tracks a trader's holdings in one instrument.
// Reserved shares back open sell orders. AvgCost is the volume-weighted
// average acquisition price; it resets when the position flattens.
type Position struct {
	TraderID     string          `gorm:"primaryKey" json:"trader_id"`
	InstrumentID string          `gorm:"primaryKey" json:"instrument_id"`
	Quantity     int64           `json:"quantity"`
	Reserved     int64           `json:"reserved"`
	AvgCost      decimal.Decimal `gorm:"type:numeric" json:"avg_cost"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Available returns shares not locked by open sell orders.
func (p *Position) Available() int64 {
	return p.Quantity - p.Reserved
}

// Reserve locks shares for an open sell order.
func (p *Position) Reserve(qty int64) error {
	if qty > p.Available() {
		return ErrInsufficientHoldings
	}
	p.Reserved += qty
	return nil
}

// Release unlocks reserved shares.
func (p *Position) Release(qty int64) {
	p.Reserved -= qty
	if p.Reserved < 0 {
		p.Reserved = 0
	}
}

// ApplyBuy increases the position and recomputes the volume-weighted average
// cost: (oldQty*oldAvg + qty*price) / (oldQty+qty).
func (p *Position) ApplyBuy(qty int64, price decimal.Decimal) {
	oldValue := p.AvgCost.Mul(decimal.NewFromInt(p.Quantity))
	newValue := price.Mul(decimal.NewFromInt(qty))
	p.Quantity += qty
	p.AvgCost = oldValue.Add(newValue).Div(decimal.NewFromInt(p.Quantity))
}

// ApplySell consumes reserved shares and decreases the position.
// Average cost is unchanged until the position reaches zero, then resets.
func (p *Position) ApplySell(qty int64) {
	p.Release(qty)
	p.Quantity -= qty
	if p.Quantity <= 0 {
		p.Quantity = 0
		p.AvgCost = decimal.Zero
	}
}

// MarketValue returns Quantity × price.
func (p *Position) MarketValue(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(p.Quantity))
}

// UnrealizedPnL returns (price - AvgCost) × Quantity.
func (p *Position) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	return price.Sub(p.AvgCost).Mul(decimal.NewFromInt(p.Quantity))
}
