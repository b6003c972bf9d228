// Package service wires the order book, matching engine and settlement
// ledger into the collaborator-facing exchange facade.
//
// Concurrency model: single-writer-per-instrument. Every submit/cancel holds
// that instrument's mutex across reserve → insert → match → settle → notify,
// so a pass always sees a stable book and a cancel is ordered strictly
// before or after any in-flight pass. Different instruments proceed in
// parallel; no operation takes two instrument locks, so there is no deadlock.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"moviex/internal/book"
	"moviex/internal/domain"
	"moviex/internal/engine"
	"moviex/internal/infra"
	"moviex/internal/infra/storage"
	"moviex/internal/ledger"
)

// MatchEvent carries one committed matching pass to live consumers.
type MatchEvent struct {
	InstrumentID string          `json:"instrument_id"`
	Trades       []*domain.Trade `json:"trades"`
	LastPrice    decimal.Decimal `json:"last_price"`
}

// AlertEvent fires when a price alert condition is met.
type AlertEvent struct {
	Alert domain.PriceAlert `json:"alert"`
	Price decimal.Decimal   `json:"price"`
}

// Notifier receives change notifications after each committed pass.
// Implementations must not block; fan-out happens on the matching path.
type Notifier interface {
	PublishMatch(ev MatchEvent)
	PublishAlert(ev AlertEvent)
}

// Options tunes exchange behavior.
type Options struct {
	StartingCash      decimal.Decimal // seeded into wallets on first touch
	SettlementRetries int             // full-pass retries on commit conflict
}

// market is the per-instrument serialization unit: one mutex, one book.
type market struct {
	mu   sync.Mutex
	book *book.Book
}

// Exchange is the order matching and trade settlement core.
type Exchange struct {
	store    *storage.Store
	ledger   *ledger.Ledger
	engine   *engine.Engine
	notifier Notifier
	opts     Options

	mu      sync.Mutex // guards markets map only
	markets map[string]*market
}

// New creates the exchange. notifier may be nil.
func New(store *storage.Store, notifier Notifier, opts Options) *Exchange {
	if opts.SettlementRetries <= 0 {
		opts.SettlementRetries = 3
	}
	return &Exchange{
		store:    store,
		ledger:   ledger.New(store),
		engine:   engine.New(),
		notifier: notifier,
		opts:     opts,
		markets:  make(map[string]*market),
	}
}

// market returns the serialization unit for an instrument, rebuilding the
// book from open orders on first touch (restart recovery).
func (e *Exchange) market(instrumentID string) (*market, error) {
	e.mu.Lock()
	m, ok := e.markets[instrumentID]
	if !ok {
		m = &market{book: book.New(instrumentID)}
		m.mu.Lock() // hold until the book is rebuilt
		e.markets[instrumentID] = m
	}
	e.mu.Unlock()

	if !ok {
		err := rebuildBook(m.book, e.store)
		m.mu.Unlock()
		if err != nil {
			e.mu.Lock()
			delete(e.markets, instrumentID)
			e.mu.Unlock()
			return nil, err
		}
	}
	return m, nil
}

// rebuildBook loads open orders in submission order into an empty book.
func rebuildBook(b *book.Book, store *storage.Store) error {
	open, err := store.OpenOrdersByInstrument(b.InstrumentID())
	if err != nil {
		return err
	}
	for i := range open {
		o := open[i]
		if err := b.Insert(&o); err != nil {
			return err
		}
	}
	return nil
}

// SubmitOrder validates and admits a limit order, reserving funds or shares,
// then runs a matching pass and settles any resulting trades.
func (e *Exchange) SubmitOrder(traderID, instrumentID, side string, price decimal.Decimal, quantity int64) (*domain.Order, error) {
	inst, err := e.store.GetInstrument(instrumentID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		infra.OrdersRejected.WithLabelValues("unknown_instrument").Inc()
		return nil, &domain.InvalidOrderError{Field: "instrument_id", Reason: "unknown instrument"}
	}

	order, err := domain.NewOrder(uuid.NewString(), traderID, instrumentID, side, price, quantity)
	if err != nil {
		infra.OrdersRejected.WithLabelValues("validation").Inc()
		return nil, err
	}

	m, err := e.market(instrumentID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	defer func() { infra.MatchingDuration.Observe(time.Since(start).Seconds()) }()

	// Stamp the arrival sequence by inserting first; admission failure takes
	// the order back out before anyone can observe it.
	if err := m.book.Insert(order); err != nil {
		return nil, err
	}
	if err := e.admit(order); err != nil {
		m.book.Remove(order.ID)
		infra.OrdersRejected.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}
	infra.OrdersSubmitted.Inc()

	if err := e.runPass(m); err != nil {
		return order, err
	}
	return order, nil
}

// admit atomically persists the order and its reservation: buy orders lock
// limit × quantity cash, sell orders lock the shares.
func (e *Exchange) admit(order *domain.Order) error {
	return e.store.Transaction(func(tx *storage.Store) error {
		if order.Side == domain.SideBuy {
			wallet, err := e.walletForUpdate(tx, order.TraderID)
			if err != nil {
				return err
			}
			notional := order.Price.Mul(decimal.NewFromInt(order.Quantity))
			if err := wallet.Reserve(notional); err != nil {
				return err
			}
			if err := tx.SaveWallet(wallet); err != nil {
				return err
			}
		} else {
			pos, err := tx.GetPosition(order.TraderID, order.InstrumentID)
			if err != nil {
				return err
			}
			if pos == nil {
				return domain.ErrInsufficientHoldings
			}
			if err := pos.Reserve(order.Quantity); err != nil {
				return err
			}
			if err := tx.SavePosition(pos); err != nil {
				return err
			}
		}
		return tx.CreateOrder(order)
	})
}

// walletForUpdate fetches a wallet, seeding a fresh one with starting cash.
func (e *Exchange) walletForUpdate(tx *storage.Store, traderID string) (*domain.Wallet, error) {
	wallet, err := tx.GetWallet(traderID)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		wallet = &domain.Wallet{
			TraderID: traderID,
			Balance:  e.opts.StartingCash,
			Reserved: decimal.Zero,
		}
	}
	return wallet, nil
}

// runPass matches and settles until the book no longer crosses. A commit
// conflict rebuilds the book from storage and re-runs the whole pass; after
// the retry budget the conflict is surfaced and the book left consistent
// with storage.
func (e *Exchange) runPass(m *market) error {
	for attempt := 0; ; attempt++ {
		res := e.engine.Match(m.book)
		if len(res.Trades) == 0 {
			return nil
		}

		err := e.ledger.Commit(res)
		if err == nil {
			infra.TradesExecuted.Add(float64(len(res.Trades)))
			for _, t := range res.Trades {
				infra.SharesTraded.Add(float64(t.Quantity))
			}
			e.publish(m.book.InstrumentID(), res)
			return nil
		}

		// Commit failed: in-memory fills never happened. Reload open state.
		reset := book.New(m.book.InstrumentID())
		if rerr := rebuildBook(reset, e.store); rerr != nil {
			return errors.Join(err, rerr)
		}
		m.book = reset

		if !domain.IsRetriable(err) || attempt+1 >= e.opts.SettlementRetries {
			return fmt.Errorf("%w: %v", domain.ErrSettlementConflict, err)
		}
		infra.SettlementRetries.Inc()
		slog.Warn("retrying matching pass after settlement conflict",
			slog.String("instrument", m.book.InstrumentID()),
			slog.Int("attempt", attempt+1))
	}
}

// publish fans the committed pass out to the notifier and evaluates alerts.
func (e *Exchange) publish(instrumentID string, res *engine.Result) {
	last := res.Trades[len(res.Trades)-1].Price

	if e.notifier != nil {
		e.notifier.PublishMatch(MatchEvent{
			InstrumentID: instrumentID,
			Trades:       res.Trades,
			LastPrice:    last,
		})
	}
	e.evaluateAlerts(instrumentID, last)
}

func (e *Exchange) evaluateAlerts(instrumentID string, price decimal.Decimal) {
	alerts, err := e.store.ActiveAlertsByInstrument(instrumentID)
	if err != nil {
		slog.Warn("alert lookup failed", slog.Any("error", err))
		return
	}
	for i := range alerts {
		a := &alerts[i]
		if !a.CheckCondition(price) {
			continue
		}
		a.Trigger()
		if err := e.store.SaveAlert(a); err != nil {
			slog.Warn("alert save failed", slog.String("alert", a.ID), slog.Any("error", err))
			continue
		}
		if e.notifier != nil {
			e.notifier.PublishAlert(AlertEvent{Alert: *a, Price: price})
		}
	}
}

// CancelOrder cancels an open order and releases the unfilled remainder's
// reservation. Terminal orders report their state without mutating anything.
func (e *Exchange) CancelOrder(orderID string) error {
	persisted, err := e.store.GetOrder(orderID)
	if err != nil {
		return err
	}
	if persisted == nil {
		return domain.ErrNotFound
	}

	m, err := e.market(persisted.InstrumentID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// The live object may have filled while we were acquiring the lock.
	order := m.book.Get(orderID)
	if order == nil {
		current, err := e.store.GetOrder(orderID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		switch current.Status {
		case domain.OrderStatusFilled:
			return domain.ErrAlreadyFilled
		case domain.OrderStatusCancelled:
			return domain.ErrAlreadyCancelled
		}
		return domain.ErrNotFound
	}

	remaining := order.RemainingQty()
	order.Status = domain.OrderStatusCancelled

	err = e.store.Transaction(func(tx *storage.Store) error {
		if order.Side == domain.SideBuy {
			wallet, err := e.walletForUpdate(tx, order.TraderID)
			if err != nil {
				return err
			}
			wallet.Release(order.Price.Mul(decimal.NewFromInt(remaining)))
			if err := tx.SaveWallet(wallet); err != nil {
				return err
			}
		} else {
			pos, err := tx.GetPosition(order.TraderID, order.InstrumentID)
			if err != nil {
				return err
			}
			if pos != nil {
				pos.Release(remaining)
				if err := tx.SavePosition(pos); err != nil {
					return err
				}
			}
		}
		return tx.SaveOrder(order)
	})
	if err != nil {
		order.Status = domain.OrderStatusOpen
		return err
	}

	m.book.Remove(orderID)
	infra.OrdersCancelled.Inc()
	return nil
}

// Depth returns the aggregated top-N levels of the instrument's book.
func (e *Exchange) Depth(instrumentID string, levels int) (book.DepthSnapshot, error) {
	m, err := e.market(instrumentID)
	if err != nil {
		return book.DepthSnapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.book.Depth(levels), nil
}

// GetOrder returns an order by id.
func (e *Exchange) GetOrder(orderID string) (*domain.Order, error) {
	o, err := e.store.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

// GetPosition returns a trader's holding in one instrument; traders with no
// fills yet see an empty position, not an error.
func (e *Exchange) GetPosition(traderID, instrumentID string) (*domain.Position, error) {
	pos, err := e.store.GetPosition(traderID, instrumentID)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &domain.Position{
			TraderID:     traderID,
			InstrumentID: instrumentID,
			AvgCost:      decimal.Zero,
		}
	}
	return pos, nil
}

// GetWallet returns a trader's wallet. Unseen traders see the starting cash
// they would be seeded with on first order.
func (e *Exchange) GetWallet(traderID string) (*domain.Wallet, error) {
	wallet, err := e.store.GetWallet(traderID)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		wallet = &domain.Wallet{
			TraderID: traderID,
			Balance:  e.opts.StartingCash,
			Reserved: decimal.Zero,
		}
	}
	return wallet, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrInsufficientHoldings):
		return "insufficient_holdings"
	case errors.Is(err, domain.ErrInvalidOrder):
		return "validation"
	default:
		return "storage"
	}
}
