package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-compare-backend/internal/http/middleware"
	"github.com/tbourn/go-compare-backend/internal/quota"
	"github.com/tbourn/go-compare-backend/internal/services"
)

// HeaderReplay is set to "true" when a response was served from an earlier
// request with the same Idempotency-Key.
const HeaderReplay = "Idempotent-Replay"

// CompareRequest is the body of POST /compare.
type CompareRequest struct {
	Query               string             `json:"query" example:"MacBook Air vs Dell XPS 13"`
	ConversationHistory []services.Message `json:"conversationHistory"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message             string             `json:"message" example:"iPhone 15 or Pixel 8?"`
	ConversationHistory []services.Message `json:"conversationHistory"`
}

// CompareResponse is a structured comparison plus request metadata.
type CompareResponse struct {
	services.ComparisonPayload
	ComparisonKey string          `json:"comparisonKey" example:"macbook-air-vs-dell-xps-13"`
	Cached        bool            `json:"cached"`
	Limits        quota.Remaining `json:"limits"`
}

// ChatResponse is a Markdown or free-form reply.
type ChatResponse struct {
	Response      string          `json:"response"`
	ComparisonKey string          `json:"comparisonKey,omitempty"`
	Cached        bool            `json:"cached"`
	Limits        quota.Remaining `json:"limits"`
}

// Compare godoc
// @ID          compareProducts
// @Summary     Compare two products
// @Description Splits the query into two products and returns a structured comparison. Repeated queries are served from cache without spending quota.
// @Tags        Compare
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false  "Replay key for client retries"  example(3f2a-retry-1)
// @Param       X-Client-ID      header  string  false  "Caller identity (defaults to remote IP)"
// @Param       body             body    handlers.CompareRequest  true  "Query"
//
// @Success     200  {object}  handlers.CompareResponse
// @Header      200  {string}  Idempotent-Replay  "true when replayed"
// @Failure     400  {object}  handlers.ErrorResponse  "Empty query, query too long or no product pair"
// @Failure     429  {object}  handlers.ErrorResponse  "Provider quota exhausted"
// @Header      429  {integer} Retry-After  "Seconds until the window resets"
// @Failure     500  {object}  handlers.ErrorResponse  "Generator failed (provider_failure) or internal error"
// @Router      /compare [post]
func (h *Handlers) Compare(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if h.replay(c) {
		return
	}

	res, err := h.arb.Handle(c.Request.Context(), services.Request{
		Query:   req.Query,
		History: req.ConversationHistory,
	})
	if err != nil {
		h.failArbitration(c, err)
		return
	}
	if res.Comparison == nil {
		fail(c, http.StatusInternalServerError, ErrCodeProviderFailure, "generator returned no comparison")
		return
	}
	h.remember(c, res.ComparisonKey)
	ok(c, CompareResponse{
		ComparisonPayload: *res.Comparison,
		ComparisonKey:     res.ComparisonKey,
		Cached:            res.Cached,
		Limits:            res.Remaining,
	})
}

// Chat godoc
// @ID          chat
// @Summary     Conversational comparison
// @Description Answers with a Markdown comparison when the message names two products, otherwise with a free-form reply. The last five history messages are used as context.
// @Tags        Compare
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.ChatRequest  true  "Message and optional history"
// @Success     200  {object}  handlers.ChatResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     429  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /chat [post]
func (h *Handlers) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	res, err := h.arb.Handle(c.Request.Context(), services.Request{
		Query:         req.Message,
		History:       req.ConversationHistory,
		AllowFreeForm: true,
	})
	if err != nil {
		h.failArbitration(c, err)
		return
	}
	ok(c, ChatResponse{
		Response:      res.Content,
		ComparisonKey: res.ComparisonKey,
		Cached:        res.Cached,
		Limits:        res.Remaining,
	})
}

func (h *Handlers) failArbitration(c *gin.Context, err error) {
	var rl *services.RateLimitedError
	switch {
	case errors.As(err, &rl):
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(rl.RetryAfter)))
		limits := rl.Remaining
		failWith(c, http.StatusTooManyRequests, ErrorResponse{
			Code:    ErrCodeRateLimited,
			Message: "rate limit exceeded, please try again in a few moments",
			Limits:  &limits,
		})
	case errors.Is(err, services.ErrEmptyQuery):
		fail(c, http.StatusBadRequest, ErrCodeEmptyQuery, "query is required")
	case errors.Is(err, services.ErrQueryTooLong):
		fail(c, http.StatusBadRequest, ErrCodeQueryTooLong, "query is too long")
	case errors.Is(err, services.ErrNoProductsFound):
		fail(c, http.StatusBadRequest, ErrCodeNoProducts, "could not identify two products to compare; try \"Product A vs Product B\"")
	case errors.Is(err, services.ErrProviderFailure):
		fail(c, http.StatusInternalServerError, ErrCodeProviderFailure, "failed to generate comparison, please try again")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
	}
}

// replay answers from the comparison stored for this Idempotency-Key. It
// returns false when there is nothing to replay yet, e.g. because the first
// request is still persisting.
func (h *Handlers) replay(c *gin.Context) bool {
	if h.idem == nil || !middleware.IsReplay(c) {
		return false
	}
	key, _ := middleware.GetIdempotencyKey(c)
	ctx := c.Request.Context()
	rec, err := h.idem.Lookup(ctx, middleware.ClientIDFrom(c), key, time.Now().UTC())
	if err != nil || rec == nil {
		return false
	}
	cmp, err := h.comps.Get(ctx, rec.ComparisonKey)
	if err != nil {
		return false
	}
	var p services.ComparisonPayload
	if err := json.Unmarshal([]byte(cmp.GeneratedContent), &p); err != nil {
		return false
	}
	c.Header(HeaderReplay, "true")
	ok(c, CompareResponse{
		ComparisonPayload: p,
		ComparisonKey:     cmp.Key,
		Cached:            true,
		Limits:            h.arb.QuotaSnapshot().Remaining(),
	})
	return true
}

func (h *Handlers) remember(c *gin.Context, comparisonKey string) {
	key, has := middleware.GetIdempotencyKey(c)
	if h.idem == nil || !has || comparisonKey == "" {
		return
	}
	if err := h.idem.Remember(c.Request.Context(), middleware.ClientIDFrom(c), key, comparisonKey, http.StatusOK); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record not stored")
	}
}

func retryAfterSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}
