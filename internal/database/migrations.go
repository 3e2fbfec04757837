package database

import (
	"errors"
	"strings"
	"time"

	"github.com/Sanskarlajurkar07/memeverse/internal/storage"
	"github.com/Sanskarlajurkar07/memeverse/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationPurgeEmptyEntries  = "2026-09-14_purge_empty_kv_entries"
	migrationLowercaseUserEmail = "2026-09-21_lowercase_user_emails"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationPurgeEmptyEntries, apply: purgeEmptyEntries},
		{name: migrationLowercaseUserEmail, apply: lowercaseUserEmails},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// purgeEmptyEntries drops mutation log rows holding no value; readers treat them as absent anyway.
func purgeEmptyEntries(db *gorm.DB) error {
	return db.Where("entry_value = ? OR entry_value IS NULL", "").Delete(&storage.Entry{}).Error
}

func lowercaseUserEmails(db *gorm.DB) error {
	var stored []users.User
	if err := db.Where("email <> lower(email)").Find(&stored).Error; err != nil {
		return err
	}
	for _, user := range stored {
		lowered := strings.ToLower(strings.TrimSpace(user.Email))
		if err := db.Model(&users.User{}).Where("user_id = ?", user.ID).Update("email", lowered).Error; err != nil {
			return err
		}
	}
	return nil
}
