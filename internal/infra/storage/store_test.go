package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"moviex/internal/domain"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	return s
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestInstrumentRoundTrip(t *testing.T) {
	s := setupTestStore(t)

	inst, err := domain.NewInstrument("m1", "gravity", "Gravity", 1000, dec("25"), "space drama")
	if err != nil {
		t.Fatalf("NewInstrument failed: %v", err)
	}
	if inst.Symbol != "GRAVITY" {
		t.Errorf("symbol should be uppercased, got %s", inst.Symbol)
	}
	if err := s.CreateInstrument(inst); err != nil {
		t.Fatalf("CreateInstrument failed: %v", err)
	}

	fetched, err := s.GetInstrument("m1")
	if err != nil {
		t.Fatalf("GetInstrument failed: %v", err)
	}
	if fetched == nil || !fetched.LastPrice.Equal(dec("25")) {
		t.Errorf("unexpected instrument: %+v", fetched)
	}

	bySym, _ := s.GetInstrumentBySymbol("GRAVITY")
	if bySym == nil || bySym.ID != "m1" {
		t.Errorf("symbol lookup failed: %+v", bySym)
	}

	missing, err := s.GetInstrument("nope")
	if err != nil || missing != nil {
		t.Errorf("missing instrument should be (nil, nil), got %+v, %v", missing, err)
	}
}

func TestOpenOrdersOrdering(t *testing.T) {
	s := setupTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mk := func(id string, offset time.Duration, seq uint64, status string) {
		o := &domain.Order{
			ID: id, TraderID: "t1", InstrumentID: "m1",
			Side: domain.SideBuy, Price: dec("10"), Quantity: 5,
			Status: status, Seq: seq, CreatedAt: base.Add(offset),
		}
		if err := s.CreateOrder(o); err != nil {
			t.Fatalf("CreateOrder(%s) failed: %v", id, err)
		}
	}
	mk("late", 2*time.Second, 3, domain.OrderStatusOpen)
	mk("early", 0, 1, domain.OrderStatusOpen)
	mk("cancelled", time.Second, 2, domain.OrderStatusCancelled)

	open, err := s.OpenOrdersByInstrument("m1")
	if err != nil {
		t.Fatalf("OpenOrdersByInstrument failed: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("expected 2 open orders, got %d", len(open))
	}
	if open[0].ID != "early" || open[1].ID != "late" {
		t.Errorf("orders not in submission order: %s, %s", open[0].ID, open[1].ID)
	}
}

func TestRecentTradesNewestFirst(t *testing.T) {
	s := setupTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"t1", "t2", "t3"} {
		trade := &domain.Trade{
			ID: id, InstrumentID: "m1",
			BuyOrderID: "b", SellOrderID: "s", BuyerID: "a", SellerID: "b",
			Price: dec("10"), Quantity: 1,
			ExecutedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.InsertTrade(trade); err != nil {
			t.Fatalf("InsertTrade failed: %v", err)
		}
	}

	trades, err := s.RecentTrades("m1", 2)
	if err != nil {
		t.Fatalf("RecentTrades failed: %v", err)
	}
	if len(trades) != 2 || trades[0].ID != "t3" || trades[1].ID != "t2" {
		t.Errorf("expected newest first with limit, got %+v", trades)
	}

	window, err := s.TradesInWindow("m1", base, base.Add(90*time.Second))
	if err != nil {
		t.Fatalf("TradesInWindow failed: %v", err)
	}
	if len(window) != 2 || window[0].ID != "t1" {
		t.Errorf("window query wrong: %+v", window)
	}
}

func TestWalletAndPositionUpsert(t *testing.T) {
	s := setupTestStore(t)

	w := &domain.Wallet{TraderID: "t1", Balance: dec("100"), Reserved: decimal.Zero}
	if err := s.SaveWallet(w); err != nil {
		t.Fatalf("SaveWallet failed: %v", err)
	}
	w.Balance = dec("80")
	if err := s.SaveWallet(w); err != nil {
		t.Fatalf("SaveWallet update failed: %v", err)
	}
	fetched, _ := s.GetWallet("t1")
	if fetched == nil || !fetched.Balance.Equal(dec("80")) {
		t.Errorf("unexpected wallet: %+v", fetched)
	}

	p := &domain.Position{TraderID: "t1", InstrumentID: "m1", Quantity: 10, AvgCost: dec("5")}
	if err := s.SavePosition(p); err != nil {
		t.Fatalf("SavePosition failed: %v", err)
	}
	pos, _ := s.GetPosition("t1", "m1")
	if pos == nil || pos.Quantity != 10 {
		t.Errorf("unexpected position: %+v", pos)
	}

	none, err := s.GetPosition("t1", "other")
	if err != nil || none != nil {
		t.Errorf("missing position should be (nil, nil), got %+v, %v", none, err)
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	s := setupTestStore(t)
	boom := errors.New("boom")

	err := s.Transaction(func(tx *Store) error {
		if err := tx.SaveWallet(&domain.Wallet{TraderID: "t1", Balance: dec("100")}); err != nil {
			return err
		}
		if err := tx.InsertTrade(&domain.Trade{ID: "tr1", InstrumentID: "m1", Price: dec("1"), Quantity: 1, ExecutedAt: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if w, _ := s.GetWallet("t1"); w != nil {
		t.Error("wallet write should have rolled back")
	}
	if trades, _ := s.RecentTrades("m1", 10); len(trades) != 0 {
		t.Error("trade write should have rolled back")
	}
}

func TestAlertQueries(t *testing.T) {
	s := setupTestStore(t)

	active, _ := domain.NewPriceAlert("a1", "t1", "m1", dec("50"), dec("40"), false)
	if err := s.CreateAlert(active); err != nil {
		t.Fatalf("CreateAlert failed: %v", err)
	}
	inactive, _ := domain.NewPriceAlert("a2", "t1", "m1", dec("60"), dec("40"), false)
	inactive.Active = false
	s.CreateAlert(inactive)

	alerts, err := s.ActiveAlertsByInstrument("m1")
	if err != nil {
		t.Fatalf("ActiveAlertsByInstrument failed: %v", err)
	}
	if len(alerts) != 1 || alerts[0].ID != "a1" {
		t.Errorf("expected only the active alert, got %+v", alerts)
	}
}
