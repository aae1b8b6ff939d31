// Package repo implements the data persistence layer, backed by GORM. This
// file provides small aggregate queries used for conditional responses
// (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-coach-session/internal/domain"
)

// KVStats returns the number of entries under prefix and the greatest
// UpdatedAt among them. When there are none, count is 0 and maxUpdatedAt nil.
func KVStats(ctx context.Context, db *gorm.DB, prefix string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := prefixScope(db.WithContext(ctx).Model(&domain.KVEntry{}), prefix)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	q = prefixScope(db.WithContext(ctx).Model(&domain.KVEntry{}), prefix)
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
