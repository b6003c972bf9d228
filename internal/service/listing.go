package service

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"moviex/internal/domain"
	"moviex/internal/infra/storage"
)

// PortfolioEntry is one position valued at the instrument's last price.
type PortfolioEntry struct {
	Position      domain.Position `json:"position"`
	Symbol        string          `json:"symbol"`
	LastPrice     decimal.Decimal `json:"last_price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// Portfolio is a trader's wallet plus valued positions.
type Portfolio struct {
	Wallet    domain.Wallet    `json:"wallet"`
	Positions []PortfolioEntry `json:"positions"`
}

// CreateInstrument lists a new movie. The creator is granted the entire
// share supply; float enters the market through their sell orders.
func (e *Exchange) CreateInstrument(creatorID, symbol, name string, totalSupply int64, initialPrice decimal.Decimal, description string) (*domain.Instrument, error) {
	inst, err := domain.NewInstrument(uuid.NewString(), symbol, name, totalSupply, initialPrice, description)
	if err != nil {
		return nil, err
	}

	existing, err := e.store.GetInstrumentBySymbol(inst.Symbol)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &domain.InvalidOrderError{Field: "symbol", Reason: "already listed"}
	}

	err = e.store.Transaction(func(tx *storage.Store) error {
		if err := tx.CreateInstrument(inst); err != nil {
			return err
		}
		pos := &domain.Position{
			TraderID:     creatorID,
			InstrumentID: inst.ID,
			Quantity:     totalSupply,
			AvgCost:      initialPrice,
		}
		return tx.SavePosition(pos)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("instrument listed",
		slog.String("symbol", inst.Symbol),
		slog.Int64("supply", totalSupply),
		slog.String("price", initialPrice.String()))
	return inst, nil
}

// ListInstruments returns all listings ordered by symbol.
func (e *Exchange) ListInstruments() ([]domain.Instrument, error) {
	return e.store.ListInstruments()
}

// GetInstrument returns one listing by id.
func (e *Exchange) GetInstrument(instrumentID string) (*domain.Instrument, error) {
	inst, err := e.store.GetInstrument(instrumentID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, domain.ErrNotFound
	}
	return inst, nil
}

// GetPortfolio values every position a trader holds at the current last
// price and pairs it with their wallet.
func (e *Exchange) GetPortfolio(traderID string) (*Portfolio, error) {
	wallet, err := e.GetWallet(traderID)
	if err != nil {
		return nil, err
	}
	positions, err := e.store.PositionsByTrader(traderID)
	if err != nil {
		return nil, err
	}

	entries := make([]PortfolioEntry, 0, len(positions))
	for i := range positions {
		pos := positions[i]
		inst, err := e.store.GetInstrument(pos.InstrumentID)
		if err != nil {
			return nil, err
		}
		if inst == nil {
			continue
		}
		entries = append(entries, PortfolioEntry{
			Position:      pos,
			Symbol:        inst.Symbol,
			LastPrice:     inst.LastPrice,
			MarketValue:   pos.MarketValue(inst.LastPrice),
			UnrealizedPnL: pos.UnrealizedPnL(inst.LastPrice),
		})
	}

	return &Portfolio{Wallet: *wallet, Positions: entries}, nil
}

// OrdersByTrader returns a trader's order history, newest first.
func (e *Exchange) OrdersByTrader(traderID string, limit int) ([]domain.Order, error) {
	return e.store.OrdersByTrader(traderID, limit)
}

// RegisterAlert creates a price alert against the instrument's current last
// price; direction is derived from where the target sits relative to it.
func (e *Exchange) RegisterAlert(traderID, instrumentID string, target decimal.Decimal, persistent bool) (*domain.PriceAlert, error) {
	inst, err := e.store.GetInstrument(instrumentID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, domain.ErrNotFound
	}

	alert, err := domain.NewPriceAlert(uuid.NewString(), traderID, instrumentID, target, inst.LastPrice, persistent)
	if err != nil {
		return nil, err
	}
	if err := e.store.CreateAlert(alert); err != nil {
		return nil, err
	}
	return alert, nil
}
