// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-compare-backend/internal/domain"
)

// ComparisonsStats returns the number of comparisons and the latest
// last_viewed_at among them. Every upsert moves last_viewed_at, so the pair
// changes whenever a listing would.
//
// When there are no rows, count is 0 and lastViewed is nil.
func ComparisonsStats(ctx context.Context, db *gorm.DB) (count int64, lastViewed *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Comparison{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Avoid MAX() -> TEXT in SQLite.
	var row struct {
		LastViewedAt time.Time
	}
	if err = db.WithContext(ctx).Model(&domain.Comparison{}).
		Select("last_viewed_at").Order("last_viewed_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.LastViewedAt, nil
}
