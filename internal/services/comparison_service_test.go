package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-compare-backend/internal/domain"
)

func newComparisonService(t *testing.T) *ComparisonService {
	return &ComparisonService{DB: newFileDB(t), Log: zerolog.Nop()}
}

func TestComparisonService_UpsertCreatesThenCounts(t *testing.T) {
	s := newComparisonService(t)
	ctx := context.Background()

	c, err := s.Upsert(ctx, "MacBook Air", "Dell XPS 13", "first content", "MacBook Air vs Dell XPS 13")
	require.NoError(t, err)
	assert.Equal(t, "macbook-air-vs-dell-xps-13", c.Key)
	assert.Equal(t, "MacBook Air vs Dell XPS 13", c.Title)
	assert.EqualValues(t, 1, c.ViewCount)
	require.NotNil(t, c.Product1)
	assert.Equal(t, "MacBook", c.Product1.Brand)
	assert.Equal(t, "Electronics", c.Product1.Category)

	// Case and punctuation variants resolve to the same record.
	c2, err := s.Upsert(ctx, "macbook air!", "DELL  XPS 13", "second content", "q2")
	require.NoError(t, err)
	assert.Equal(t, c.ID, c2.ID)
	assert.EqualValues(t, 2, c2.ViewCount)
	assert.Equal(t, "first content", c2.GeneratedContent, "content is write-once")
	assert.False(t, c2.LastViewedAt.Before(c.LastViewedAt))

	var products int64
	s.DB.Model(&domain.Product{}).Count(&products)
	assert.EqualValues(t, 2, products)
}

func TestComparisonService_OrderSensitive(t *testing.T) {
	s := newComparisonService(t)
	ctx := context.Background()

	a, err := s.Upsert(ctx, "iPhone 15", "Pixel 8", "x", "")
	require.NoError(t, err)
	b, err := s.Upsert(ctx, "Pixel 8", "iPhone 15", "y", "")
	require.NoError(t, err)
	assert.NotEqual(t, a.Key, b.Key)
	assert.Equal(t, a.Product1ID, b.Product2ID, "products are shared by slug")
}

func TestComparisonService_ConcurrentUpsertsConverge(t *testing.T) {
	s := newComparisonService(t)
	ctx := context.Background()
	const n = 20
	firsts := []string{"Kindle Paperwhite", "KINDLE paperwhite!", "kindle  Paperwhite", "Kindle-Paperwhite.", " kindle paperwhite "}
	seconds := []string{"Kobo Clara", "kobo CLARA", "Kobo, Clara", "KOBO  clara?"}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			if _, err := s.Upsert(ctx, firsts[i%len(firsts)], seconds[i%len(seconds)], "content", "q"); err != nil {
				errs <- err
			}
		}(i)
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent upsert: %v", err)
	}

	var rows []domain.Comparison
	require.NoError(t, s.DB.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "kindle-paperwhite-vs-kobo-clara", rows[0].Key)
	assert.EqualValues(t, n, rows[0].ViewCount)

	var products []domain.Product
	require.NoError(t, s.DB.Order("slug").Find(&products).Error)
	require.Len(t, products, 2)
	assert.Equal(t, "kindle-paperwhite", products[0].Slug)
	assert.Equal(t, "kobo-clara", products[1].Slug)
}

func TestComparisonService_EmptyIdentifier(t *testing.T) {
	s := newComparisonService(t)
	_, err := s.Upsert(context.Background(), "!!!", "Pixel", "", "")
	assert.ErrorIs(t, err, ErrPersistenceFailure)
}

func TestComparisonService_StoreErrorIsWrapped(t *testing.T) {
	s := newComparisonService(t)
	sqlDB, _ := s.DB.DB()
	require.NoError(t, sqlDB.Close())

	_, err := s.Upsert(context.Background(), "A", "B", "", "")
	assert.ErrorIs(t, err, ErrPersistenceFailure)
}

func TestComparisonService_GetRecentPopular(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	s := newComparisonService(t)
	s.Now = func() time.Time { return now }
	ctx := context.Background()

	_, err := s.Get(ctx, "nope")
	assert.True(t, errors.Is(err, ErrComparisonNotFound))

	for _, pair := range [][2]string{{"A", "B"}, {"C", "D"}, {"A", "B"}, {"E", "F"}} {
		now = now.Add(time.Minute)
		_, err := s.Upsert(ctx, pair[0], pair[1], "c", "")
		require.NoError(t, err)
	}

	got, err := s.Get(ctx, "a-vs-b")
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.ViewCount)

	recent, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "e-vs-f", recent[0].Key)
	assert.Equal(t, "a-vs-b", recent[1].Key)

	popular, err := s.Popular(ctx, 0)
	require.NoError(t, err)
	require.Len(t, popular, 3)
	assert.Equal(t, "a-vs-b", popular[0].Key)

	n, last, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.True(t, last.Equal(now))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 10, clampLimit(0))
	assert.Equal(t, 10, clampLimit(-3))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, 100, clampLimit(1000))
}

func TestNewProduct_Brand(t *testing.T) {
	assert.Equal(t, "Dell", newProduct("dell xps 13").Brand)
	assert.Equal(t, "iPhone", newProduct(" iPhone 15 ").Brand)
	assert.Equal(t, "iphone-15", newProduct(" iPhone 15 ").Slug)
	assert.Equal(t, defaultProductCategory, newProduct("x").Category)
}
