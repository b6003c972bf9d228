// Package api exposes the exchange over REST and WebSocket. It is a thin
// collaborator layer: it parses requests, calls the service, and maps the
// domain error taxonomy onto HTTP status codes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"

	"moviex/internal/domain"
	"moviex/internal/marketdata"
	"moviex/internal/service"
)

// Options tunes the API server.
type Options struct {
	Addr           string
	AllowedOrigins []string
	DepthLevels    int           // default levels for depth queries
	StatsWindow    time.Duration // trailing window for instrument stats
}

// Server handles REST API and WebSocket connections.
type Server struct {
	exchange *service.Exchange
	view     *marketdata.View
	hub      *Hub
	router   *mux.Router
	opts     Options
	httpSrv  *http.Server
}

// NewServer creates the API server around an exchange and its market data view.
func NewServer(exchange *service.Exchange, view *marketdata.View, hub *Hub, opts Options) *Server {
	if opts.DepthLevels <= 0 {
		opts.DepthLevels = 10
	}
	if opts.StatsWindow <= 0 {
		opts.StatsWindow = 24 * time.Hour
	}
	s := &Server{
		exchange: exchange,
		view:     view,
		hub:      hub,
		router:   mux.NewRouter(),
		opts:     opts,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Instrument endpoints
	api.HandleFunc("/instruments", s.handleListInstruments).Methods("GET")
	api.HandleFunc("/instruments", s.handleCreateInstrument).Methods("POST")
	api.HandleFunc("/instruments/{id}", s.handleGetInstrument).Methods("GET")
	api.HandleFunc("/instruments/{id}/depth", s.handleGetDepth).Methods("GET")
	api.HandleFunc("/instruments/{id}/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/instruments/{id}/series", s.handleGetSeries).Methods("GET")
	api.HandleFunc("/instruments/{id}/stats", s.handleGetStats).Methods("GET")

	// Order endpoints
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{id}/cancel", s.handleCancelOrder).Methods("POST")

	// Trader endpoints
	api.HandleFunc("/traders/{id}/portfolio", s.handleGetPortfolio).Methods("GET")
	api.HandleFunc("/traders/{id}/orders", s.handleGetTraderOrders).Methods("GET")
	api.HandleFunc("/traders/{id}/positions/{instrumentID}", s.handleGetPosition).Methods("GET")

	// Alerts
	api.HandleFunc("/alerts", s.handleRegisterAlert).Methods("POST")

	// WebSocket live updates
	s.router.HandleFunc("/ws", s.hub.handleWebSocket)

	// Operational endpoints
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the hub and serves HTTP until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	s.httpSrv = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           c.Handler(s.router),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("api server starting", slog.String("addr", s.opts.Addr))
	if err := s.httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Hub returns the server's notifier for wiring into the exchange.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ==============================
// REST Handlers
// ==============================

type submitOrderRequest struct {
	TraderID     string          `json:"trader_id"`
	InstrumentID string          `json:"instrument_id"`
	Side         string          `json:"side"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int64           `json:"quantity"`
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	order, err := s.exchange.SubmitOrder(req.TraderID, req.InstrumentID, req.Side, req.Price, req.Quantity)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]
	if err := s.exchange.CancelOrder(orderID); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "order_id": orderID})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.exchange.GetOrder(mux.Vars(r)["id"])
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

type createInstrumentRequest struct {
	CreatorID    string          `json:"creator_id"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	TotalSupply  int64           `json:"total_supply"`
	InitialPrice decimal.Decimal `json:"initial_price"`
	Description  string          `json:"description"`
}

func (s *Server) handleCreateInstrument(w http.ResponseWriter, r *http.Request) {
	var req createInstrumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	inst, err := s.exchange.CreateInstrument(req.CreatorID, req.Symbol, req.Name, req.TotalSupply, req.InitialPrice, req.Description)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, inst)
}

func (s *Server) handleListInstruments(w http.ResponseWriter, r *http.Request) {
	instruments, err := s.exchange.ListInstruments()
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, instruments)
}

func (s *Server) handleGetInstrument(w http.ResponseWriter, r *http.Request) {
	inst, err := s.exchange.GetInstrument(mux.Vars(r)["id"])
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, inst)
}

func (s *Server) handleGetDepth(w http.ResponseWriter, r *http.Request) {
	levels := queryInt(r, "levels", s.opts.DepthLevels)
	snapshot, err := s.view.Depth(mux.Vars(r)["id"], levels)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	trades, err := s.view.RecentTrades(mux.Vars(r)["id"], limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, trades)
}

func (s *Server) handleGetSeries(w http.ResponseWriter, r *http.Request) {
	window := queryDuration(r, "window", s.opts.StatsWindow)
	bucket := queryDuration(r, "bucket", time.Hour)
	points, err := s.view.PriceSeries(mux.Vars(r)["id"], window, bucket)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, points)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.view.Stats(mux.Vars(r)["id"], s.opts.StatsWindow)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, err := s.exchange.GetPortfolio(mux.Vars(r)["id"])
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, portfolio)
}

func (s *Server) handleGetTraderOrders(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	orders, err := s.exchange.OrdersByTrader(mux.Vars(r)["id"], limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	pos, err := s.exchange.GetPosition(vars["id"], vars["instrumentID"])
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, pos)
}

type registerAlertRequest struct {
	TraderID     string          `json:"trader_id"`
	InstrumentID string          `json:"instrument_id"`
	Target       decimal.Decimal `json:"target"`
	Persistent   bool            `json:"persistent"`
}

func (s *Server) handleRegisterAlert(w http.ResponseWriter, r *http.Request) {
	var req registerAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	alert, err := s.exchange.RegisterAlert(req.TraderID, req.InstrumentID, req.Target, req.Persistent)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, alert)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("response encode failed", slog.Any("error", err))
	}
}

func respondError(w http.ResponseWriter, status int, message, detail string) {
	respondJSON(w, status, map[string]string{"error": message, "detail": detail})
}

// respondDomainError maps the error taxonomy onto HTTP status codes.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found", err.Error())
	case errors.Is(err, domain.ErrAlreadyFilled), errors.Is(err, domain.ErrAlreadyCancelled):
		respondError(w, http.StatusConflict, "order is terminal", err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrInsufficientHoldings):
		respondError(w, http.StatusUnprocessableEntity, "insufficient balance", err.Error())
	case errors.Is(err, domain.ErrInvalidOrder):
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
	case errors.Is(err, domain.ErrSettlementConflict):
		respondError(w, http.StatusServiceUnavailable, "settlement conflict, retry later", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func queryDuration(r *http.Request, key string, def time.Duration) time.Duration {
	if v := r.URL.Query().Get(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
