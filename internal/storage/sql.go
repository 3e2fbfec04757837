package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is a single persisted key/value pair.
type Entry struct {
	Key              string `gorm:"column:entry_key;primaryKey;size:380;not null"`
	Value            string `gorm:"column:entry_value;type:text;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "kv_entries"
}

// SQLStore persists entries in a relational table through GORM.
type SQLStore struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewSQLStore wraps an open database handle. The kv_entries table must already be migrated.
func NewSQLStore(db *gorm.DB, clock func() time.Time) *SQLStore {
	if clock == nil {
		clock = time.Now
	}
	return &SQLStore{db: db, clock: clock}
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	normalized, err := normalizeKey(key)
	if err != nil {
		return "", false, err
	}
	if s == nil || s.db == nil {
		return "", false, ErrUnavailable
	}
	var entry Entry
	err = s.db.WithContext(ctx).
		Where("entry_key = ?", normalized).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Value, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	normalized, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return ErrUnavailable
	}
	entry := Entry{
		Key:              normalized,
		Value:            value,
		UpdatedAtSeconds: s.clock().UTC().Unix(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entry_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"entry_value", "updated_at_s"}),
		}).
		Create(&entry).Error
}

func (s *SQLStore) Remove(ctx context.Context, key string) error {
	normalized, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return ErrUnavailable
	}
	return s.db.WithContext(ctx).
		Where("entry_key = ?", normalized).
		Delete(&Entry{}).Error
}
