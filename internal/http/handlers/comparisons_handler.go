package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-compare-backend/internal/domain"
	"github.com/tbourn/go-compare-backend/internal/services"
	"github.com/tbourn/go-compare-backend/internal/utils"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// ProductRef is the product summary embedded in list items.
type ProductRef struct {
	Name  string `json:"name" example:"MacBook Air"`
	Slug  string `json:"slug" example:"macbook-air"`
	Brand string `json:"brand,omitempty" example:"MacBook"`
}

// ComparisonSummary is one list item; the generated content is left out.
type ComparisonSummary struct {
	Key          string     `json:"key" example:"macbook-air-vs-dell-xps-13"`
	Title        string     `json:"title" example:"MacBook Air vs Dell XPS 13"`
	Product1     ProductRef `json:"product1"`
	Product2     ProductRef `json:"product2"`
	ViewCount    int64      `json:"viewCount" example:"2"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastViewedAt time.Time  `json:"lastViewedAt"`
}

// ListComparisonsResponse wraps list results.
type ListComparisonsResponse struct {
	Comparisons []ComparisonSummary `json:"comparisons"`
}

// RecentComparisons godoc
// @ID          recentComparisons
// @Summary     Recently viewed comparisons
// @Description Most recently viewed first. Supports a weak ETag via If-None-Match.
// @Tags        Comparisons
// @Produce     json
// @Param       If-None-Match  header  string  false  "Return 304 if the ETag matches"
// @Param       limit          query   int     false  "Max items"  minimum(1) maximum(100) default(10)
// @Success     200  {object}  handlers.ListComparisonsResponse
// @Header      200  {string}  ETag  "Weak ETag of the comparison set"
// @Success     304  {string}  string  "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /comparisons/recent [get]
func (h *Handlers) RecentComparisons(c *gin.Context) {
	if h.notModified(c, "recent") {
		return
	}
	items, err := h.comps.Recent(c.Request.Context(), listLimit(c))
	h.writeList(c, items, err)
}

// PopularComparisons godoc
// @ID          popularComparisons
// @Summary     Most viewed comparisons
// @Tags        Comparisons
// @Produce     json
// @Param       If-None-Match  header  string  false  "Return 304 if the ETag matches"
// @Param       limit          query   int     false  "Max items"  minimum(1) maximum(100) default(10)
// @Success     200  {object}  handlers.ListComparisonsResponse
// @Success     304  {string}  string  "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /comparisons/popular [get]
func (h *Handlers) PopularComparisons(c *gin.Context) {
	if h.notModified(c, "popular") {
		return
	}
	items, err := h.comps.Popular(c.Request.Context(), listLimit(c))
	h.writeList(c, items, err)
}

// GetComparison godoc
// @ID          getComparison
// @Summary     Get a stored comparison
// @Tags        Comparisons
// @Produce     json
// @Param       key  path  string  true  "Comparison key"  example(macbook-air-vs-dell-xps-13)
// @Success     200  {object}  domain.Comparison
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /comparisons/{key} [get]
func (h *Handlers) GetComparison(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	cmp, err := h.comps.Get(c.Request.Context(), key)
	switch {
	case errors.Is(err, services.ErrComparisonNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "comparison not found")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to load comparison")
	default:
		ok(c, cmp)
	}
}

// notModified sets a weak ETag built from the row count and latest view
// time and reports whether If-None-Match already matches it. Stats errors
// skip the ETag rather than failing the request.
func (h *Handlers) notModified(c *gin.Context, list string) bool {
	count, last, err := h.comps.Stats(c.Request.Context())
	if err != nil {
		return false
	}
	var ts int64
	if last != nil {
		ts = last.UnixNano()
	}
	etag := fmt.Sprintf(`W/"comparisons:%s:%d:%d:%d"`, list, listLimit(c), count, ts)
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

func (h *Handlers) writeList(c *gin.Context, items []domain.Comparison, err error) {
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to list comparisons")
		return
	}
	out := make([]ComparisonSummary, 0, len(items))
	for _, cmp := range items {
		out = append(out, ComparisonSummary{
			Key:          cmp.Key,
			Title:        cmp.Title,
			Product1:     productRef(cmp.Product1),
			Product2:     productRef(cmp.Product2),
			ViewCount:    cmp.ViewCount,
			CreatedAt:    cmp.CreatedAt,
			LastViewedAt: cmp.LastViewedAt,
		})
	}
	ok(c, ListComparisonsResponse{Comparisons: out})
}

func productRef(p *domain.Product) ProductRef {
	if p == nil {
		return ProductRef{}
	}
	return ProductRef{Name: p.Name, Slug: p.Slug, Brand: p.Brand}
}

func listLimit(c *gin.Context) int {
	return utils.IntInRange(c.Query("limit"), defaultListLimit, 1, maxListLimit)
}
