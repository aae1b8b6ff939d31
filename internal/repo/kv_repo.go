// Package repo implements the data persistence layer, backed by GORM. This
// file provides a string-keyed blob store used to cache prior transcripts and
// session summaries.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-coach-session/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound.
var ErrNotFound = gorm.ErrRecordNotFound

// GetKV returns the entry stored under key, or ErrNotFound.
func GetKV(ctx context.Context, db *gorm.DB, key string) (*domain.KVEntry, error) {
	var e domain.KVEntry
	err := db.WithContext(ctx).Where("key = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// PutKV inserts or replaces the value stored under key.
func PutKV(ctx context.Context, db *gorm.DB, key string, value []byte) error {
	now := time.Now().UTC()
	e := &domain.KVEntry{Key: key, Value: value, CreatedAt: now, UpdatedAt: now}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(e).Error
}

// DeleteKV removes key. It returns ErrNotFound if nothing was stored.
func DeleteKV(ctx context.Context, db *gorm.DB, key string) error {
	res := db.WithContext(ctx).Where("key = ?", key).Delete(&domain.KVEntry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountKV returns the number of entries whose key starts with prefix.
func CountKV(ctx context.Context, db *gorm.DB, prefix string) (int64, error) {
	var n int64
	err := prefixScope(db.WithContext(ctx).Model(&domain.KVEntry{}), prefix).Count(&n).Error
	return n, err
}

// ListKVPage returns entries whose key starts with prefix, most recently
// updated first.
func ListKVPage(ctx context.Context, db *gorm.DB, prefix string, offset, limit int) ([]domain.KVEntry, error) {
	var out []domain.KVEntry
	err := prefixScope(db.WithContext(ctx), prefix).
		Order("updated_at DESC").
		Order("key ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

func prefixScope(db *gorm.DB, prefix string) *gorm.DB {
	return db.Where(`key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
