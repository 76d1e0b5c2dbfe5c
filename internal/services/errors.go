// Package services defines the business logic for product comparisons: the
// arbitration flow in front of the generator and the deduplicating store
// behind it. This file centralizes service-level errors so that handlers can
// map them to HTTP status codes with errors.Is / errors.As.
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/tbourn/go-compare-backend/internal/quota"
)

var (
	// ErrEmptyQuery is returned when the query is blank after trimming.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrQueryTooLong is returned when the query exceeds the configured
	// rune limit.
	ErrQueryTooLong = errors.New("query too long")

	// ErrNoProductsFound is returned when no product pair can be extracted
	// from a compare query.
	ErrNoProductsFound = errors.New("could not identify two products to compare")

	// ErrProviderFailure wraps generator errors and unusable generator output.
	// Quota is not consumed when it is returned.
	ErrProviderFailure = errors.New("generator failed")

	// ErrPersistenceFailure wraps store errors while recording a comparison.
	ErrPersistenceFailure = errors.New("failed to persist comparison")

	// ErrComparisonNotFound indicates that no comparison exists for a key.
	ErrComparisonNotFound = errors.New("comparison not found")
)

// RateLimitedError is returned when the provider quota is exhausted.
type RateLimitedError struct {
	Remaining  quota.Remaining
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded (remaining: %d/min, %d/day)", e.Remaining.PerMinute, e.Remaining.PerDay)
}
