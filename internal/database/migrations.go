package database

import (
	"errors"
	"time"

	"github.com/sigillo-app/backend/internal/finance"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationNormalizeLegacyPayoutStatuses = "2026-04-20_normalize_legacy_payout_statuses"

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
		{name: migrationNormalizeLegacyPayoutStatuses, apply: normalizeLegacyPayoutStatuses},
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

// normalizeLegacyPayoutStatuses rewrites historical payout status spellings
// onto the current enum so raw SQL reporting sees a single vocabulary.
func normalizeLegacyPayoutStatuses(db *gorm.DB) error {
	rewrites := map[string]finance.PayoutStatus{
		"pending":    finance.PayoutCreated,
		"processing": finance.PayoutCreated,
		"completed":  finance.PayoutPaid,
		"cancelled":  finance.PayoutCanceled,
		"failed":     finance.PayoutCanceled,
	}
	for legacy, normalized := range rewrites {
		if err := db.Model(&finance.Payout{}).
			Where("status = ?", legacy).
			Update("status", string(normalized)).Error; err != nil {
			return err
		}
	}
	return nil
}
