package handlers

import (
	"context"
	"time"

	"github.com/tbourn/go-compare-backend/internal/domain"
	"github.com/tbourn/go-compare-backend/internal/quota"
	"github.com/tbourn/go-compare-backend/internal/services"
)

// Arbiter answers compare and chat queries.
type Arbiter interface {
	Handle(ctx context.Context, req services.Request) (*services.Result, error)
	QuotaSnapshot() quota.Snapshot
}

// ComparisonReader serves stored comparisons.
type ComparisonReader interface {
	Get(ctx context.Context, key string) (*domain.Comparison, error)
	Recent(ctx context.Context, limit int) ([]domain.Comparison, error)
	Popular(ctx context.Context, limit int) ([]domain.Comparison, error)
	Stats(ctx context.Context) (int64, *time.Time, error)
}

// IdempotencyStore records which comparison answered an Idempotency-Key.
type IdempotencyStore interface {
	Lookup(ctx context.Context, clientID, key string, now time.Time) (*domain.Idempotency, error)
	Remember(ctx context.Context, clientID, key, comparisonKey string, status int) error
}

// Handlers groups the API endpoints. Idem may be nil, which disables
// Idempotency-Key replay.
type Handlers struct {
	arb   Arbiter
	comps ComparisonReader
	idem  IdempotencyStore
}

// New wires handlers to their services.
func New(arb Arbiter, comps ComparisonReader, idem IdempotencyStore) *Handlers {
	return &Handlers{arb: arb, comps: comps, idem: idem}
}
