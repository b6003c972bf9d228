package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moviex/internal/domain"
	"moviex/internal/infra/storage"
	"moviex/internal/marketdata"
	"moviex/internal/service"
)

func setupServer(t *testing.T) *Server {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	hub := NewHub()
	exchange := service.New(store, hub, service.Options{
		StartingCash: decimal.NewFromInt(10000),
	})
	view := marketdata.New(store, exchange.Depth)
	return NewServer(exchange, view, hub, Options{Addr: ":0"})
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func createTestInstrument(t *testing.T, s *Server) domain.Instrument {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/v1/instruments", map[string]any{
		"creator_id":    "studio",
		"symbol":        "DUNE",
		"name":          "Dune",
		"total_supply":  1000,
		"initial_price": "90",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var inst domain.Instrument
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&inst))
	return inst
}

func TestInstrumentLifecycle(t *testing.T) {
	s := setupServer(t)
	inst := createTestInstrument(t, s)
	assert.Equal(t, "DUNE", inst.Symbol)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/instruments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.Instrument
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 1)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/instruments/"+inst.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/instruments/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderSubmitMatchAndQuery(t *testing.T) {
	s := setupServer(t)
	inst := createTestInstrument(t, s)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/orders", map[string]any{
		"trader_id":     "buyer",
		"instrument_id": inst.ID,
		"side":          "buy",
		"price":         "100",
		"quantity":      10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var buy domain.Order
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&buy))

	rec = doJSON(t, s, http.MethodPost, "/api/v1/orders", map[string]any{
		"trader_id":     "studio",
		"instrument_id": inst.ID,
		"side":          "sell",
		"price":         "90",
		"quantity":      10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, s, http.MethodGet, "/api/v1/orders/"+buy.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.Order
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, domain.OrderStatusFilled, got.Status)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/instruments/"+inst.ID+"/trades", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var trades []domain.Trade
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&trades))
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Price.Equal(decimal.NewFromInt(100)))
}

func TestOrderErrorMapping(t *testing.T) {
	s := setupServer(t)
	inst := createTestInstrument(t, s)

	// Unknown instrument maps to 400 via order validation.
	rec := doJSON(t, s, http.MethodPost, "/api/v1/orders", map[string]any{
		"trader_id": "buyer", "instrument_id": "ghost",
		"side": "buy", "price": "10", "quantity": 1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Oversized buy maps to 422.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/orders", map[string]any{
		"trader_id": "buyer", "instrument_id": inst.ID,
		"side": "buy", "price": "1000", "quantity": 100,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Cancelling a missing order maps to 404.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/orders/ghost/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelConflictMapping(t *testing.T) {
	s := setupServer(t)
	inst := createTestInstrument(t, s)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/orders", map[string]any{
		"trader_id": "buyer", "instrument_id": inst.ID,
		"side": "buy", "price": "100", "quantity": 5,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var buy domain.Order
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&buy))

	doJSON(t, s, http.MethodPost, "/api/v1/orders", map[string]any{
		"trader_id": "studio", "instrument_id": inst.ID,
		"side": "sell", "price": "100", "quantity": 5,
	})

	rec = doJSON(t, s, http.MethodPost, "/api/v1/orders/"+buy.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDepthAndPortfolioEndpoints(t *testing.T) {
	s := setupServer(t)
	inst := createTestInstrument(t, s)

	doJSON(t, s, http.MethodPost, "/api/v1/orders", map[string]any{
		"trader_id": "buyer", "instrument_id": inst.ID,
		"side": "buy", "price": "80", "quantity": 5,
	})

	rec := doJSON(t, s, http.MethodGet, "/api/v1/instruments/"+inst.ID+"/depth?levels=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap struct {
		Bids []struct {
			Quantity int64 `json:"quantity"`
		} `json:"bids"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, int64(5), snap.Bids[0].Quantity)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/traders/studio/portfolio", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pf service.Portfolio
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&pf))
	require.Len(t, pf.Positions, 1)
	assert.Equal(t, int64(1000), pf.Positions[0].Position.Quantity)
}

func TestStatsAndSeriesEndpoints(t *testing.T) {
	s := setupServer(t)
	inst := createTestInstrument(t, s)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/instruments/"+inst.ID+"/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats marketdata.Stats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.True(t, stats.LastPrice.Equal(decimal.NewFromInt(90)))

	rec = doJSON(t, s, http.MethodGet, "/api/v1/instruments/"+inst.ID+"/series?window=1h&bucket=5m", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var points []marketdata.PricePoint
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&points))
	require.Len(t, points, 1)
	assert.True(t, points[0].Price.Equal(decimal.NewFromInt(90)))
}

func TestRegisterAlertEndpoint(t *testing.T) {
	s := setupServer(t)
	inst := createTestInstrument(t, s)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/alerts", map[string]any{
		"trader_id":     "watcher",
		"instrument_id": inst.ID,
		"target":        "120",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var alert domain.PriceAlert
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&alert))
	assert.Equal(t, "UP", alert.Direction)
}

func TestHealthEndpoint(t *testing.T) {
	s := setupServer(t)

	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
