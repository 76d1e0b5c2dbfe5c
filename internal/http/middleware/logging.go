// Package middleware holds the Gin middleware shared by every route:
// correlation and client identity, redacted access logs, panic recovery,
// Prometheus instrumentation, security headers, Idempotency-Key handling
// and per-client edge rate limiting.
//
// Recommended order: RequestID, ClientID, AccessLog, Recovery. Panics and
// error envelopes then carry the correlation ID and are logged once.
package middleware

import (
	"net/http"
	"regexp"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// HeaderRequestID carries the correlation ID in both directions.
	HeaderRequestID = "X-Request-ID"
	// HeaderClientID lets callers name themselves for quota and idempotency
	// purposes. Absent or malformed values fall back to the remote IP.
	HeaderClientID = "X-Client-ID"

	ctxKeyRequestID = "requestID"
	ctxKeyClientID  = "clientID"
	ctxKeyLogger    = "logger"

	maxClientIDLen = 128
	maxQueryLogLen = 2048
)

var clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:@]+$`)

// RequestID reuses an incoming X-Request-ID or mints a UUIDv4, echoes it on
// the response and stores it in the context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, rid)
		c.Writer.Header().Set(HeaderRequestID, rid)
		c.Next()
	}
}

// ClientID resolves the caller identity once per request.
func ClientID() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ctxKeyClientID, resolveClientID(c))
		c.Next()
	}
}

// ClientIDFrom returns the identity stored by ClientID, resolving it on the
// spot when the middleware did not run.
func ClientIDFrom(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyClientID); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return resolveClientID(c)
}

func resolveClientID(c *gin.Context) string {
	if c.Request != nil {
		h := strings.TrimSpace(c.GetHeader(HeaderClientID))
		if h != "" && len(h) <= maxClientIDLen && clientIDPattern.MatchString(h) {
			return "client:" + h
		}
		return "ip:" + c.ClientIP()
	}
	return "ip:unknown"
}

// RequestIDFrom returns the correlation ID or "".
func RequestIDFrom(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyRequestID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return c.Writer.Header().Get(HeaderRequestID)
}

// LogOptions tunes AccessLog.
type LogOptions struct {
	// MaskHeaders are replaced by "[REDACTED]" in addition to Authorization,
	// Cookie, Set-Cookie and the provider key headers.
	MaskHeaders []string
	// Logger is the base logger; the zero value uses the global logger.
	Logger *zerolog.Logger
}

// AccessLog attaches a request-scoped logger to the context and emits one
// structured line per request once the handler chain returns. Query strings
// and header values pass through Redact first; bodies are never logged.
//
// Level follows the outcome: error for 5xx or collected gin errors, warn for
// 4xx, info otherwise.
func AccessLog(opts LogOptions) gin.HandlerFunc {
	masked := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
		"x-api-key":     {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()
		base := log.Logger
		if opts.Logger != nil {
			base = *opts.Logger
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		l := base.With().
			Str("request_id", RequestIDFrom(c)).
			Str("client_id", Redact(ClientIDFrom(c))).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		c.Set(ctxKeyLogger, &l)

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := masked[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = Redact(strings.Join(vv, ", "))
		}
		query := Redact(truncate(c.Request.URL.RawQuery, maxQueryLogLen))

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case len(c.Errors) > 0:
			ev = l.Error().Str("errors", c.Errors.String())
		case status >= http.StatusInternalServerError:
			ev = l.Error()
		case status >= http.StatusBadRequest:
			ev = l.Warn()
		default:
			ev = l.Info()
		}
		ev.Str("query", query).
			Str("remote_ip", c.ClientIP()).
			Int64("bytes_in", c.Request.ContentLength).
			Int("status", status).
			Int("bytes_out", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}

// Recovery turns a panic into the standard JSON 500 envelope and logs the
// stack with the correlation ID.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := RequestIDFrom(c)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", rid).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(HeaderRequestID, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when
// AccessLog did not run. The result is never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(ctxKeyLogger); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.Logger
	return &l
}

// truncate caps s at max bytes. max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
