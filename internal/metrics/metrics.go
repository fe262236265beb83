// Package metrics provides Prometheus metrics for the trade-in backend.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_tradein_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tcg_tradein_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Resolver Metrics
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_tradein_resolutions_total",
			Help: "Card resolutions by winning strategy",
		},
		[]string{"strategy"}, // "sku", "title", "tag", "none"
	)

	StrategyAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_tradein_strategy_attempts_total",
			Help: "Strategy attempts by outcome",
		},
		[]string{"strategy", "outcome"}, // outcome: "hit", "miss", "timeout", "catalog_error"
	)

	StrategyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tcg_tradein_strategy_duration_seconds",
			Help:    "Time spent in one resolver strategy",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		},
		[]string{"strategy"},
	)

	CatalogRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_tradein_catalog_requests_total",
			Help: "Catalog lookups issued by field",
		},
		[]string{"field"}, // "title", "sku", "tag"
	)

	// Resolution Cache Metrics
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_tradein_cache_lookups_total",
			Help: "Resolution cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss", "coalesced"
	)

	CacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_tradein_cache_evictions_total",
			Help: "Resolution cache entries removed by reason",
		},
		[]string{"reason"}, // "capacity", "expired"
	)

	CacheCorruptionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcg_tradein_cache_corruptions_total",
			Help: "Persisted cache entries discarded because they failed to decode",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tcg_tradein_cache_entries",
			Help: "Number of entries in the in-memory resolution cache",
		},
	)

	// Trade Metrics
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_tradein_batches_total",
			Help: "Trade batches by mode and terminal state",
		},
		[]string{"mode", "state"},
	)

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tcg_tradein_batch_duration_seconds",
			Help:    "Wall-clock time of a trade batch",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"mode"},
	)

	TradeLinesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_tradein_lines_total",
			Help: "Trade lines by status",
		},
		[]string{"status"}, // "matched", "unmatched", "timeout"
	)

	InventoryAdjustmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_tradein_inventory_adjustments_total",
			Help: "Inventory adjustments by result",
		},
		[]string{"result"}, // "success", "failed"
	)

	PayoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_tradein_payouts_total",
			Help: "Payouts by method and result",
		},
		[]string{"method", "result"},
	)

	PayoutAmountUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_tradein_payout_amount_usd_total",
			Help: "Total USD paid out by method",
		},
		[]string{"method"},
	)

	// Store API Metrics
	StoreAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_tradein_store_api_requests_total",
			Help: "Store admin API requests by endpoint and result",
		},
		[]string{"endpoint", "result"},
	)

	StoreAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tcg_tradein_store_api_latency_seconds",
			Help:    "Store admin API call latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"endpoint"},
	)
)
