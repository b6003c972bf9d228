package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the exchange core. Registered on the default
// registry and exposed by the API server's /metrics endpoint.
var (
	OrdersSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "moviex",
		Name:      "orders_submitted_total",
		Help:      "Orders accepted into the book.",
	})

	OrdersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moviex",
		Name:      "orders_rejected_total",
		Help:      "Orders rejected before entering the book.",
	}, []string{"reason"})

	OrdersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "moviex",
		Name:      "orders_cancelled_total",
		Help:      "Orders cancelled by their owner.",
	})

	TradesExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "moviex",
		Name:      "trades_executed_total",
		Help:      "Trades committed by the settlement ledger.",
	})

	SharesTraded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "moviex",
		Name:      "shares_traded_total",
		Help:      "Total traded share quantity.",
	})

	SettlementRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "moviex",
		Name:      "settlement_retries_total",
		Help:      "Matching passes re-run after a settlement conflict.",
	})

	MatchingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "moviex",
		Name:      "matching_pass_seconds",
		Help:      "Wall time of one insert-match-settle pass.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
	})
)
