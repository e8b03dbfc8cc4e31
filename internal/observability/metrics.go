package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the deposits detector.
type Metrics struct {
	// --- Feed ---
	FeedCycles      *prometheus.CounterVec
	UpdatesReceived *prometheus.CounterVec
	UpdatesSkipped  *prometheus.CounterVec
	Watermark       *prometheus.GaugeVec
	RateLimited     *prometheus.CounterVec

	// --- Items ---
	ItemsProcessed *prometheus.CounterVec
	ItemDuration   prometheus.Histogram

	// --- Ledger ---
	Credits           *prometheus.CounterVec
	LedgerCallDur     prometheus.Histogram
	LedgerBreakerOpen prometheus.Gauge

	// --- Failure handling ---
	ConsecutiveFailures *prometheus.GaugeVec
	BackoffDelay        prometheus.Histogram

	// --- Idempotency keys ---
	KeyCacheHits   prometheus.Counter
	KeyCacheMisses prometheus.Counter

	// --- Events ---
	EventsPublished *prometheus.CounterVec

	// --- Maintenance ---
	Reprocess *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		FeedCycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deposits_feed_cycles_total",
			Help: "Feed fetch cycles by result (drained, failed, rate_limited)",
		}, []string{"account_id", "result"}),

		UpdatesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deposits_updates_received_total",
			Help: "Deposit updates received from the feed",
		}, []string{"account_id"}),

		UpdatesSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deposits_updates_skipped_total",
			Help: "Deposit updates skipped (at_or_below_watermark, broker_kind)",
		}, []string{"account_id", "reason"}),

		Watermark: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "deposits_watermark",
			Help: "Last persisted deposit update id per account",
		}, []string{"account_id"}),

		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deposits_feed_rate_limited_total",
			Help: "Feed calls rejected by upstream rate limiting",
		}, []string{"account_id"}),

		ItemsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deposits_items_processed_total",
			Help: "Per-item pipeline results",
		}, []string{"result"}),

		ItemDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "deposits_item_duration_seconds",
			Help:    "Validate, credit and announce latency for one update",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		Credits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deposits_ledger_credits_total",
			Help: "Ledger credit outcomes",
		}, []string{"outcome"}),

		LedgerCallDur: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "deposits_ledger_call_duration_seconds",
			Help:    "Ledger CashInOut round-trip latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		LedgerBreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "deposits_ledger_breaker_open",
			Help: "1 when the ledger circuit breaker is open",
		}),

		ConsecutiveFailures: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "deposits_consecutive_failures",
			Help: "Current consecutive failure counter per account",
		}, []string{"account_id"}),

		BackoffDelay: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "deposits_backoff_delay_seconds",
			Help:    "Delays chosen by the backoff policy",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024, 1800},
		}),

		KeyCacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "deposits_key_cache_hits_total",
			Help: "Idempotency key lookups served from the in-memory cache",
		}),

		KeyCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "deposits_key_cache_misses_total",
			Help: "Idempotency key lookups that reached the durable store",
		}),

		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deposits_events_published_total",
			Help: "Completion events published by result",
		}, []string{"result"}),

		Reprocess: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deposits_reprocess_requests_total",
			Help: "Maintenance reprocess requests by result",
		}, []string{"result"}),
	}
}
