package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Labels use the registered route (c.FullPath), so /comparisons/:key stays
// one series however many keys are requested.
var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "HTTP request latency by method and route.",
			// Compare calls wait on the provider, so the tail reaches tens of seconds.
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "route"},
	)
	httpInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_inflight",
		Help: "HTTP requests currently being served.",
	})
	httpResponseBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response body size by method and route.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8), // 256B..4MiB
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(httpRequests, httpDuration, httpInflight, httpResponseBytes)
}

// unmatchedRoute labels requests no route matched, keeping 404 scans from
// minting one series per URL.
const unmatchedRoute = "unmatched"

// Metrics records request count, latency, in-flight gauge and response size.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		m := c.Request.Method
		httpRequests.WithLabelValues(m, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(m, route).Observe(time.Since(start).Seconds())
		if n := c.Writer.Size(); n >= 0 {
			httpResponseBytes.WithLabelValues(m, route).Observe(float64(n))
		}
	}
}
