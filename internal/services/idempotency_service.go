package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/tbourn/go-compare-backend/internal/domain"
	"github.com/tbourn/go-compare-backend/internal/repo"
)

const defaultIdempotencyTTL = 24 * time.Hour

// IdempotencyService remembers which comparison answered a client's
// Idempotency-Key.
type IdempotencyService struct {
	DB  *gorm.DB
	TTL time.Duration // defaults to 24h
}

// Lookup returns the live record for (clientID, key), or nil when there is
// none.
func (s *IdempotencyService) Lookup(ctx context.Context, clientID, key string, now time.Time) (*domain.Idempotency, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, clientID, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// Remember records that key was answered by comparisonKey. A concurrent
// retry that already recorded the key is not an error.
func (s *IdempotencyService) Remember(ctx context.Context, clientID, key, comparisonKey string, status int) error {
	ctx, span := otel.Tracer("services/IdempotencyService").Start(ctx, "Remember")
	defer span.End()

	ttl := s.TTL
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	_, err := repo.CreateIdempotency(ctx, s.DB, clientID, key, comparisonKey, status, ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// Purge deletes expired records.
func (s *IdempotencyService) Purge(ctx context.Context, now time.Time) (int64, error) {
	return repo.DeleteExpiredIdempotency(ctx, s.DB, now)
}
