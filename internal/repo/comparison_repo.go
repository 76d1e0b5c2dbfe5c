// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Comparison
// and Product models.
//
// Deduplication relies on the database, not on in-process locks:
//   - products.slug and comparisons.key carry unique indexes
//   - CreateComparison is an insert-if-absent (ON CONFLICT DO NOTHING)
//   - IncrementViewCount is a relative SQL update (view_count = view_count + 1)
//
// so concurrent writers for the same pair converge on one row.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-compare-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// FindComparisonByKey loads a comparison and both products by key.
func FindComparisonByKey(ctx context.Context, db *gorm.DB, key string) (*domain.Comparison, error) {
	var c domain.Comparison
	err := db.WithContext(ctx).
		Preload("Product1").
		Preload("Product2").
		Where("key = ?", key).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateComparison inserts c unless a row with the same key exists. It
// reports whether this call created the row. ID, ViewCount and timestamps are
// filled in when zero.
func CreateComparison(ctx context.Context, db *gorm.DB, c *domain.Comparison) (bool, error) {
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.ViewCount == 0 {
		c.ViewCount = 1
	}
	if c.LastViewedAt.IsZero() {
		c.LastViewedAt = now
	}
	res := db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).
		Create(c)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// IncrementViewCount atomically adds one view to the comparison with key and
// stamps last_viewed_at. It returns ErrNotFound when no row matched.
func IncrementViewCount(ctx context.Context, db *gorm.DB, key string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Comparison{}).
		Where("key = ?", key).
		UpdateColumns(map[string]any{
			"view_count":     gorm.Expr("view_count + ?", 1),
			"last_viewed_at": at.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertProductBySlug inserts p or, when the slug exists, refreshes its name.
// It returns the stored row, whose ID may differ from p.ID.
func UpsertProductBySlug(ctx context.Context, db *gorm.DB, p *domain.Product) (*domain.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	tx := db.WithContext(ctx)
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		return nil, err
	}
	var out domain.Product
	if err := tx.Where("slug = ?", p.Slug).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRecentComparisons returns up to limit comparisons, most recently viewed
// first, then newest first.
func ListRecentComparisons(ctx context.Context, db *gorm.DB, limit int) ([]domain.Comparison, error) {
	return listComparisons(ctx, db, limit, "last_viewed_at DESC, created_at DESC")
}

// ListPopularComparisons returns up to limit comparisons by view count.
func ListPopularComparisons(ctx context.Context, db *gorm.DB, limit int) ([]domain.Comparison, error) {
	return listComparisons(ctx, db, limit, "view_count DESC, last_viewed_at DESC")
}

func listComparisons(ctx context.Context, db *gorm.DB, limit int, order string) ([]domain.Comparison, error) {
	var out []domain.Comparison
	err := db.WithContext(ctx).
		Preload("Product1").
		Preload("Product2").
		Order(order).
		Limit(limit).
		Find(&out).Error
	return out, err
}
