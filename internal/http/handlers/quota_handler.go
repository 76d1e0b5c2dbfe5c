package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-compare-backend/internal/quota"
)

// QuotaResponse reports the provider quota.
type QuotaResponse struct {
	Limits        quota.Remaining `json:"limits"`
	MinuteResetAt time.Time       `json:"minuteResetAt"`
	DayResetAt    time.Time       `json:"dayResetAt"`
}

// Quota godoc
// @ID          getQuota
// @Summary     Remaining provider quota
// @Description Cache hits do not spend quota, so this only moves on fresh generations.
// @Tags        Compare
// @Produce     json
// @Success     200  {object}  handlers.QuotaResponse
// @Router      /quota [get]
func (h *Handlers) Quota(c *gin.Context) {
	s := h.arb.QuotaSnapshot()
	ok(c, QuotaResponse{
		Limits:        s.Remaining(),
		MinuteResetAt: s.MinuteResetAt,
		DayResetAt:    s.DayResetAt,
	})
}
