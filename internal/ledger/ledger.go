// Package ledger applies matching output to durable state.
//
// One matching pass commits as a single database transaction: trade records,
// order fill state, both traders' positions and wallets, and the instrument's
// last traded price all land together or not at all.
package ledger

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"moviex/internal/domain"
	"moviex/internal/engine"
	"moviex/internal/infra/storage"
)

// Ledger settles matching passes against the store.
type Ledger struct {
	store *storage.Store
}

// New creates a ledger bound to the store.
func New(store *storage.Store) *Ledger {
	return &Ledger{store: store}
}

// Commit persists every effect of one matching pass atomically. A pass with
// no trades is a no-op. Storage failures are wrapped as retriable conflicts;
// the caller re-runs the full pass against fresh state.
func (l *Ledger) Commit(res *engine.Result) error {
	if len(res.Trades) == 0 {
		return nil
	}

	orders := make(map[string]*domain.Order, len(res.Touched))
	for _, o := range res.Touched {
		orders[o.ID] = o
	}

	err := l.store.Transaction(func(tx *storage.Store) error {
		for _, trade := range res.Trades {
			if err := tx.InsertTrade(trade); err != nil {
				return err
			}
			buy := orders[trade.BuyOrderID]
			if err := settleBuyer(tx, trade, buy.Price); err != nil {
				return err
			}
			if err := settleSeller(tx, trade); err != nil {
				return err
			}
		}

		for _, o := range res.Touched {
			if err := tx.SaveOrder(o); err != nil {
				return err
			}
		}

		// Last trade in the pass wins.
		last := res.Trades[len(res.Trades)-1]
		inst, err := tx.GetInstrument(last.InstrumentID)
		if err != nil {
			return err
		}
		if inst == nil {
			return domain.ErrNotFound
		}
		inst.LastPrice = last.Price
		return tx.SaveInstrument(inst)
	})
	if err != nil {
		slog.Warn("settlement commit failed",
			slog.String("instrument", res.Trades[0].InstrumentID),
			slog.Int("trades", len(res.Trades)),
			slog.Any("error", err))
		return domain.NewConflictError("commit", err)
	}
	return nil
}

// settleBuyer consumes the buyer's reservation at their limit price, debits
// the actual notional, and applies the fill to the position. Price
// improvement (maker price below the buy limit) stays in the buyer's balance.
func settleBuyer(tx *storage.Store, trade *domain.Trade, buyLimit decimal.Decimal) error {
	qty := decimal.NewFromInt(trade.Quantity)
	locked := buyLimit.Mul(qty)
	cost := trade.Notional()

	wallet, err := tx.GetWallet(trade.BuyerID)
	if err != nil {
		return err
	}
	if wallet == nil {
		wallet = &domain.Wallet{TraderID: trade.BuyerID, Balance: decimal.Zero, Reserved: decimal.Zero}
	}
	wallet.SettleBuy(locked, cost)
	if err := tx.SaveWallet(wallet); err != nil {
		return err
	}

	pos, err := tx.GetPosition(trade.BuyerID, trade.InstrumentID)
	if err != nil {
		return err
	}
	if pos == nil {
		pos = &domain.Position{TraderID: trade.BuyerID, InstrumentID: trade.InstrumentID, AvgCost: decimal.Zero}
	}
	pos.ApplyBuy(trade.Quantity, trade.Price)
	return tx.SavePosition(pos)
}

// settleSeller credits the proceeds and releases the reserved shares.
func settleSeller(tx *storage.Store, trade *domain.Trade) error {
	wallet, err := tx.GetWallet(trade.SellerID)
	if err != nil {
		return err
	}
	if wallet == nil {
		wallet = &domain.Wallet{TraderID: trade.SellerID, Balance: decimal.Zero, Reserved: decimal.Zero}
	}
	wallet.Credit(trade.Notional())
	if err := tx.SaveWallet(wallet); err != nil {
		return err
	}

	pos, err := tx.GetPosition(trade.SellerID, trade.InstrumentID)
	if err != nil {
		return err
	}
	if pos == nil {
		pos = &domain.Position{TraderID: trade.SellerID, InstrumentID: trade.InstrumentID, AvgCost: decimal.Zero}
	}
	pos.ApplySell(trade.Quantity)
	return tx.SavePosition(pos)
}
