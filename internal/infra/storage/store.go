package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"moviex/internal/domain"
)

// Store wraps the SQLite database behind the exchange's persistence needs.
type Store struct {
	db *gorm.DB
}

// NewStore opens (or creates) the database at path and migrates the schema.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Pure Go SQLite
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an already opened connection (tests).
func NewStoreWithDB(db *gorm.DB) (*Store, error) {
	if err := migrate(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Instrument{},
		&domain.Order{},
		&domain.Trade{},
		&domain.Position{},
		&domain.Wallet{},
		&domain.PriceAlert{},
	)
}

// Transaction runs fn against a store bound to one database transaction.
// Either every write inside fn commits, or none do.
func (s *Store) Transaction(fn func(tx *Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// ======================================================================================
// Instrument Operations
// ======================================================================================

// CreateInstrument inserts a new listing. Symbol uniqueness is enforced by
// the schema.
func (s *Store) CreateInstrument(inst *domain.Instrument) error {
	return s.db.Create(inst).Error
}

// GetInstrument retrieves an instrument by id. Not found is not an error.
func (s *Store) GetInstrument(id string) (*domain.Instrument, error) {
	var inst domain.Instrument
	err := s.db.First(&inst, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &inst, err
}

// GetInstrumentBySymbol retrieves an instrument by its uppercase symbol.
func (s *Store) GetInstrumentBySymbol(symbol string) (*domain.Instrument, error) {
	var inst domain.Instrument
	err := s.db.First(&inst, "symbol = ?", symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &inst, err
}

// ListInstruments returns all listings ordered by symbol.
func (s *Store) ListInstruments() ([]domain.Instrument, error) {
	var insts []domain.Instrument
	err := s.db.Order("symbol asc").Find(&insts).Error
	return insts, err
}

// SaveInstrument persists instrument mutations (last price).
func (s *Store) SaveInstrument(inst *domain.Instrument) error {
	inst.UpdatedAt = time.Now()
	return s.db.Save(inst).Error
}

// ======================================================================================
// Order Operations
// ======================================================================================

// CreateOrder inserts a newly admitted order.
func (s *Store) CreateOrder(o *domain.Order) error {
	return s.db.Create(o).Error
}

// GetOrder retrieves an order by id. Not found is not an error.
func (s *Store) GetOrder(id string) (*domain.Order, error) {
	var o domain.Order
	err := s.db.First(&o, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &o, err
}

// SaveOrder persists fill/status mutations.
func (s *Store) SaveOrder(o *domain.Order) error {
	o.UpdatedAt = time.Now()
	return s.db.Save(o).Error
}

// OpenOrdersByInstrument returns the open orders for one instrument in
// submission order, used to rebuild the in-memory book.
func (s *Store) OpenOrdersByInstrument(instrumentID string) ([]domain.Order, error) {
	var orders []domain.Order
	err := s.db.
		Where("instrument_id = ? AND status = ?", instrumentID, domain.OrderStatusOpen).
		Order("created_at asc, seq asc").
		Find(&orders).Error
	return orders, err
}

// OrdersByTrader returns a trader's orders, newest first.
func (s *Store) OrdersByTrader(traderID string, limit int) ([]domain.Order, error) {
	var orders []domain.Order
	q := s.db.Where("trader_id = ?", traderID).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&orders).Error
	return orders, err
}

// ======================================================================================
// Trade Operations
// ======================================================================================

// InsertTrade appends an execution record. Trades are never updated.
func (s *Store) InsertTrade(t *domain.Trade) error {
	return s.db.Create(t).Error
}

// RecentTrades returns the most recent trades for an instrument, newest first.
func (s *Store) RecentTrades(instrumentID string, limit int) ([]domain.Trade, error) {
	var trades []domain.Trade
	q := s.db.Where("instrument_id = ?", instrumentID).Order("executed_at desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&trades).Error
	return trades, err
}

// TradesInWindow returns trades executed in [from, to), oldest first.
func (s *Store) TradesInWindow(instrumentID string, from, to time.Time) ([]domain.Trade, error) {
	var trades []domain.Trade
	err := s.db.
		Where("instrument_id = ? AND executed_at >= ? AND executed_at < ?", instrumentID, from, to).
		Order("executed_at asc").
		Find(&trades).Error
	return trades, err
}

// TradesByOrder returns every trade referencing the order on either side.
func (s *Store) TradesByOrder(orderID string) ([]domain.Trade, error) {
	var trades []domain.Trade
	err := s.db.
		Where("buy_order_id = ? OR sell_order_id = ?", orderID, orderID).
		Order("executed_at asc").
		Find(&trades).Error
	return trades, err
}

// ======================================================================================
// Wallet / Position Operations
// ======================================================================================

// GetWallet retrieves a trader's wallet. Not found is not an error.
func (s *Store) GetWallet(traderID string) (*domain.Wallet, error) {
	var w domain.Wallet
	err := s.db.First(&w, "trader_id = ?", traderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &w, err
}

// SaveWallet creates or updates a wallet row.
func (s *Store) SaveWallet(w *domain.Wallet) error {
	w.UpdatedAt = time.Now()
	return s.db.Save(w).Error
}

// GetPosition retrieves a trader's holding in one instrument. Not found is
// not an error.
func (s *Store) GetPosition(traderID, instrumentID string) (*domain.Position, error) {
	var p domain.Position
	err := s.db.First(&p, "trader_id = ? AND instrument_id = ?", traderID, instrumentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &p, err
}

// SavePosition creates or updates a position row.
func (s *Store) SavePosition(p *domain.Position) error {
	p.UpdatedAt = time.Now()
	return s.db.Save(p).Error
}

// PositionsByTrader returns every non-empty position a trader holds.
func (s *Store) PositionsByTrader(traderID string) ([]domain.Position, error) {
	var positions []domain.Position
	err := s.db.
		Where("trader_id = ? AND (quantity > 0 OR reserved > 0)", traderID).
		Order("instrument_id asc").
		Find(&positions).Error
	return positions, err
}

// ======================================================================================
// Alert Operations
// ======================================================================================

// CreateAlert registers a price alert.
func (s *Store) CreateAlert(a *domain.PriceAlert) error {
	return s.db.Create(a).Error
}

// ActiveAlertsByInstrument returns the alerts to evaluate after a pass.
func (s *Store) ActiveAlertsByInstrument(instrumentID string) ([]domain.PriceAlert, error) {
	var alerts []domain.PriceAlert
	err := s.db.
		Where("instrument_id = ? AND active = ?", instrumentID, true).
		Find(&alerts).Error
	return alerts, err
}

// SaveAlert persists alert state changes.
func (s *Store) SaveAlert(a *domain.PriceAlert) error {
	a.UpdatedAt = time.Now()
	return s.db.Save(a).Error
}
