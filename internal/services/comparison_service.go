// Package services – ComparisonService
//
// ComparisonService is the deduplicating store for generated comparisons.
// The same ordered pair of product names always resolves to one row keyed by
// slug.ComparisonKey; repeated upserts only bump the view counter. Concurrent
// callers are safe because uniqueness and counting happen in SQL.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-compare-backend/internal/domain"
	"github.com/tbourn/go-compare-backend/internal/observability"
	"github.com/tbourn/go-compare-backend/internal/repo"
	"github.com/tbourn/go-compare-backend/internal/slug"
)

const defaultProductCategory = "Electronics"

// ComparisonService persists and lists comparisons.
type ComparisonService struct {
	DB  *gorm.DB
	Log zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *ComparisonService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Upsert records one view of the comparison name1 vs name2. The first call
// for a key creates both products and the comparison with view_count 1 and
// the given content; later calls increment view_count and never touch the
// stored content.
func (s *ComparisonService) Upsert(ctx context.Context, name1, name2, content, query string) (*domain.Comparison, error) {
	tr := otel.Tracer("services/ComparisonService")
	ctx, span := tr.Start(ctx, "Upsert")
	defer span.End()

	key, err := slug.ComparisonKey(name1, name2)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	span.SetAttributes(attribute.String("comparison.key", key))

	existing, err := repo.FindComparisonByKey(ctx, s.DB, key)
	switch {
	case err == nil:
		return s.view(ctx, existing.Key)
	case !errors.Is(err, repo.ErrNotFound):
		return nil, s.fail(span, key, err)
	}

	created, err := s.create(ctx, key, name1, name2, content, query)
	if err != nil {
		return nil, s.fail(span, key, err)
	}
	if created != nil {
		observability.ObservePersist(observability.OutcomeCreated)
		return created, nil
	}
	// Another writer inserted the row between our lookup and insert.
	return s.view(ctx, key)
}

func (s *ComparisonService) create(ctx context.Context, key, name1, name2, content, query string) (*domain.Comparison, error) {
	var p1, p2 *domain.Product
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		p1, err = repo.UpsertProductBySlug(gctx, s.DB, newProduct(name1))
		return err
	})
	g.Go(func() (err error) {
		p2, err = repo.UpsertProductBySlug(gctx, s.DB, newProduct(name2))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := s.now()
	c := &domain.Comparison{
		Key:              key,
		Title:            strings.TrimSpace(name1) + " vs " + strings.TrimSpace(name2),
		Product1ID:       p1.ID,
		Product2ID:       p2.ID,
		ViewCount:        1,
		LastViewedAt:     now,
		GeneratedContent: content,
		Query:            query,
	}
	ok, err := repo.CreateComparison(ctx, s.DB, c)
	if err != nil || !ok {
		return nil, err
	}
	c.Product1, c.Product2 = p1, p2
	return c, nil
}

func (s *ComparisonService) view(ctx context.Context, key string) (*domain.Comparison, error) {
	if err := repo.IncrementViewCount(ctx, s.DB, key, s.now()); err != nil {
		observability.ObservePersist(observability.OutcomeError)
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	observability.ObservePersist(observability.OutcomeViewed)
	c, err := repo.FindComparisonByKey(ctx, s.DB, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	return c, nil
}

func (s *ComparisonService) fail(span trace.Span, key string, err error) error {
	observability.ObservePersist(observability.OutcomeError)
	span.RecordError(err)
	s.Log.Error().Err(err).Str("comparison_key", key).Msg("comparison upsert failed")
	return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
}

// Get returns the comparison stored under key.
func (s *ComparisonService) Get(ctx context.Context, key string) (*domain.Comparison, error) {
	c, err := repo.FindComparisonByKey(ctx, s.DB, strings.TrimSpace(key))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrComparisonNotFound
	}
	return c, err
}

// Recent lists comparisons by last view, newest first.
func (s *ComparisonService) Recent(ctx context.Context, limit int) ([]domain.Comparison, error) {
	return repo.ListRecentComparisons(ctx, s.DB, clampLimit(limit))
}

// Popular lists comparisons by view count, highest first.
func (s *ComparisonService) Popular(ctx context.Context, limit int) ([]domain.Comparison, error) {
	return repo.ListPopularComparisons(ctx, s.DB, clampLimit(limit))
}

// Stats returns the row count and latest view time, for ETags.
func (s *ComparisonService) Stats(ctx context.Context) (int64, *time.Time, error) {
	return repo.ComparisonsStats(ctx, s.DB)
}

var brandCaser = cases.Title(language.Und)

// newProduct derives product metadata from a raw name. The brand is the
// first word, title-cased only when typed all lower case ("dell" but not
// "iPhone").
func newProduct(name string) *domain.Product {
	name = strings.TrimSpace(name)
	brand := name
	if f := strings.Fields(name); len(f) > 0 {
		brand = f[0]
		if strings.ToLower(brand) == brand {
			brand = brandCaser.String(brand)
		}
	}
	return &domain.Product{
		Slug:     slug.Normalize(name),
		Name:     name,
		Brand:    brand,
		Category: defaultProductCategory,
	}
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return 10
	case n > 100:
		return 100
	default:
		return n
	}
}
