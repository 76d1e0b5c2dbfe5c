// Package httpapi wires the Gin engine: middleware chain, health and metrics
// endpoints, optional Swagger UI, and the versioned comparison API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-compare-backend/docs"
	"github.com/tbourn/go-compare-backend/internal/config"
	"github.com/tbourn/go-compare-backend/internal/http/handlers"
	"github.com/tbourn/go-compare-backend/internal/http/middleware"
)

const maxBodyBytes = 1 << 20

// Deps are the services behind the API. Idempotency may be nil.
type Deps struct {
	Arbiter     handlers.Arbiter
	Comparisons handlers.ComparisonReader
	Idempotency handlers.IdempotencyStore
}

// RegisterRoutes installs middleware and routes on r.
//
// Order:
//  1. otelgin, so every request has a span
//  2. RequestID and ClientID, needed by everything below
//  3. AccessLog, then Recovery so panics are logged with the request ID
//  4. body limit, gzip, Prometheus
//  5. Idempotency-Key validation, then the edge limiter (replays bypass it)
//  6. CORS and security headers
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID(), middleware.ClientID())
	r.Use(middleware.AccessLog(middleware.LogOptions{
		MaskHeaders: []string{"Proxy-Authorization"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(middleware.Metrics())

	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idempotencyLookup(deps.Idempotency)))
	r.Use(middleware.NewEdgeLimiter(cfg.RateRPS, cfg.RateBurst).Handler())

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(deps.Arbiter, deps.Comparisons, deps.Idempotency)
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/compare", h.Compare)
		api.POST("/chat", h.Chat)
		api.GET("/quota", h.Quota)

		api.GET("/comparisons/recent", h.RecentComparisons)
		api.GET("/comparisons/popular", h.PopularComparisons)
		api.GET("/comparisons/:key", h.GetComparison)
	}
}

func idempotencyLookup(store handlers.IdempotencyStore) middleware.IdempotencyLookup {
	if store == nil {
		return nil
	}
	return func(ctx context.Context, clientID, key string, now time.Time) (bool, error) {
		rec, err := store.Lookup(ctx, clientID, key, now)
		return rec != nil, err
	}
}

// corsMiddleware allows every origin when none are configured. Otherwise
// only allowlisted origins are echoed back.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			middleware.HeaderClientID, middleware.HeaderIdempotencyKey, middleware.HeaderRequestID,
		},
		ExposeHeaders: []string{middleware.HeaderRequestID, "Retry-After", handlers.HeaderReplay, "ETag"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		base.AllowAllOrigins = true
		// Also answer requests without an Origin header, e.g. curl and probes.
		star := func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		}
		return []gin.HandlerFunc{star, cors.New(base)}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{cors.New(base)}
}

// limitBody caps request bodies; reads past maxBytes fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix treats "" and "/" as the root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
