package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cache lookup results.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Outcomes shared by provider and persistence counters.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeCreated = "created"
	OutcomeViewed  = "viewed"
)

var (
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compare_cache_lookups_total",
			Help: "Result cache lookups by result (hit|miss).",
		},
		[]string{"result"},
	)

	providerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compare_provider_calls_total",
			Help: "Generator calls by outcome (success|error).",
		},
		[]string{"outcome"},
	)

	// Generator latency is dominated by token generation, so buckets run long.
	providerLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "compare_provider_duration_seconds",
			Help:    "Latency of generator calls in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		},
	)

	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "compare_rate_limited_total",
			Help: "Requests refused because the provider quota was exhausted.",
		},
	)

	persistOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compare_persist_total",
			Help: "Comparison upserts by outcome (created|viewed|error).",
		},
		[]string{"outcome"},
	)

	quotaRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "compare_quota_remaining",
			Help: "Provider quota left in the current window.",
		},
		[]string{"window"},
	)
)

func init() {
	prometheus.MustRegister(cacheLookups, providerCalls, providerLatency, rateLimited, persistOps, quotaRemaining)
}

// ObserveCacheLookup counts a cache hit or miss.
func ObserveCacheLookup(hit bool) {
	if hit {
		cacheLookups.WithLabelValues(CacheHit).Inc()
		return
	}
	cacheLookups.WithLabelValues(CacheMiss).Inc()
}

// ObserveProviderCall records one generator call.
func ObserveProviderCall(d time.Duration, err error) {
	providerLatency.Observe(d.Seconds())
	if err != nil {
		providerCalls.WithLabelValues(OutcomeError).Inc()
		return
	}
	providerCalls.WithLabelValues(OutcomeSuccess).Inc()
}

// ObserveRateLimited counts a refused request.
func ObserveRateLimited() { rateLimited.Inc() }

// ObservePersist counts a comparison upsert outcome.
func ObservePersist(outcome string) { persistOps.WithLabelValues(outcome).Inc() }

// SetQuotaRemaining publishes the quota left per window.
func SetQuotaRemaining(perMinute, perDay int) {
	quotaRemaining.WithLabelValues("minute").Set(float64(perMinute))
	quotaRemaining.WithLabelValues("day").Set(float64(perDay))
}
