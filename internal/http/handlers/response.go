// Package handlers holds the Gin handlers of the public API. Handlers stay
// thin: bind and validate input, call a service, and map the outcome onto
// a JSON body or the ErrorResponse envelope.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-compare-backend/internal/http/middleware"
	"github.com/tbourn/go-compare-backend/internal/quota"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable machine-readable code, see errors.go
	Code string `json:"code" example:"no_products_found"`
	// Human-readable message
	Message string `json:"message" example:"could not identify two products to compare"`
	// Remaining provider quota; only set on rate_limited
	Limits *quota.Remaining `json:"limits,omitempty"`
}

// fail aborts with the envelope. 5xx responses are logged on the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	failWith(c, status, ErrorResponse{Code: code, Message: msg})
}

func failWith(c *gin.Context, status int, resp ErrorResponse) {
	resp.RequestID = middleware.RequestIDFrom(c)
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", resp.Code).
			Str("message", resp.Message).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, resp)
}

// Fail exposes fail to the router for fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, body any) { c.JSON(http.StatusOK, body) }
