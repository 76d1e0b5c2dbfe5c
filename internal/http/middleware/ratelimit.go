package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// EdgeLimiter throttles each client with its own token bucket before any
// handler runs. It guards the service itself; the provider quota is a
// separate, global concern enforced by the arbitration layer.
//
// Buckets idle for longer than the TTL are dropped during a periodic sweep
// piggybacked on lookups. Safe for concurrent use.
type EdgeLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	lookups int
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

const sweepEvery = 4096

// NewEdgeLimiter allows rps tokens per second with the given burst per
// client. burst < 1 is raised to 1.
func NewEdgeLimiter(rps float64, burst int) *EdgeLimiter {
	if burst < 1 {
		burst = 1
	}
	return &EdgeLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		ttl:     10 * time.Minute,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (l *EdgeLimiter) bucketFor(key string) *rate.Limiter {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	// Sweep before the lookup so a stale bucket for key is replaced.
	if l.lookups++; l.lookups >= sweepEvery {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) >= l.ttl {
				delete(l.buckets, k)
			}
		}
		l.lookups = 0
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

// Len reports the number of live buckets.
func (l *EdgeLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// IsRateBypass reports whether IdempotencyValidator marked the request as a
// replay.
func IsRateBypass(c *gin.Context) bool {
	v, _ := c.Get(ctxKeyRateBypass)
	b, _ := v.(bool)
	return b
}

// Handler rejects over-limit clients with 429 and a Retry-After derived from
// the refill rate.
func (l *EdgeLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}
		if l.bucketFor(ClientIDFrom(c)).AllowN(l.now(), 1) {
			c.Next()
			return
		}
		c.Header("Retry-After", strconv.Itoa(l.retryAfterSeconds()))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": RequestIDFrom(c),
			"code":       "too_many_requests",
			"message":    "too many requests from this client",
		})
	}
}

func (l *EdgeLimiter) retryAfterSeconds() int {
	if l.limit <= 0 || l.limit == rate.Inf {
		return 1
	}
	return max(1, int(math.Ceil(1/float64(l.limit))))
}
