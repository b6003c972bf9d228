package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceAlert fires when an instrument's last traded price crosses a target.
// Direction is derived from the price at registration time.
type PriceAlert struct {
	ID           string          `gorm:"primaryKey" json:"id"`
	TraderID     string          `gorm:"index" json:"trader_id"`
	InstrumentID string          `gorm:"index" json:"instrument_id"`
	TargetPrice  decimal.Decimal `gorm:"type:numeric" json:"target"`
	Direction    string          `json:"direction"` // "UP" or "DOWN"
	Persistent   bool            `json:"persistent"`
	Active       bool            `gorm:"index" json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewPriceAlert creates an alert. Direction is automatically determined:
// - UP: targetPrice > currentPrice (waiting for price to rise)
// - DOWN: targetPrice < currentPrice (waiting for price to fall)
func NewPriceAlert(id, traderID, instrumentID string, targetPrice, currentPrice decimal.Decimal, persistent bool) (*PriceAlert, error) {
	if !targetPrice.IsPositive() {
		return nil, &InvalidOrderError{Field: "target", Reason: "must be positive"}
	}
	direction := "UP"
	if targetPrice.LessThan(currentPrice) {
		direction = "DOWN"
	}
	return &PriceAlert{
		ID:           id,
		TraderID:     traderID,
		InstrumentID: instrumentID,
		TargetPrice:  targetPrice,
		Direction:    direction,
		Persistent:   persistent,
		Active:       true,
	}, nil
}

// CheckCondition checks if the alert condition is met.
// Returns true when:
// - Direction is UP and currentPrice >= targetPrice
// - Direction is DOWN and currentPrice <= targetPrice
func (a *PriceAlert) CheckCondition(currentPrice decimal.Decimal) bool {
	if !a.Active {
		return false
	}
	switch a.Direction {
	case "UP":
		return currentPrice.GreaterThanOrEqual(a.TargetPrice)
	case "DOWN":
		return currentPrice.LessThanOrEqual(a.TargetPrice)
	default:
		return false
	}
}

// Trigger deactivates a one-shot alert after it fires.
func (a *PriceAlert) Trigger() {
	if !a.Persistent {
		a.Active = false
	}
}
