package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Instrument is one tradeable movie listing. LastPrice starts at the listing
// price and thereafter tracks the most recent trade.
type Instrument struct {
	ID          string          `gorm:"primaryKey" json:"id"`
	Symbol      string          `gorm:"uniqueIndex" json:"symbol"` // stored uppercase
	Name        string          `json:"name"`
	TotalSupply int64           `json:"total_supply"`
	LastPrice   decimal.Decimal `gorm:"type:numeric" json:"last_price"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewInstrument validates and builds a listing.
func NewInstrument(id, symbol, name string, totalSupply int64, initialPrice decimal.Decimal, description string) (*Instrument, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, &InvalidOrderError{Field: "symbol", Reason: "must not be empty"}
	}
	if name == "" {
		return nil, &InvalidOrderError{Field: "name", Reason: "must not be empty"}
	}
	if totalSupply <= 0 {
		return nil, &InvalidOrderError{Field: "total_supply", Reason: "must be positive"}
	}
	if !initialPrice.IsPositive() {
		return nil, &InvalidOrderError{Field: "initial_price", Reason: "must be positive"}
	}
	return &Instrument{
		ID:          id,
		Symbol:      symbol,
		Name:        name,
		TotalSupply: totalSupply,
		LastPrice:   initialPrice,
		Description: description,
		CreatedAt:   time.Now(),
	}, nil
}
