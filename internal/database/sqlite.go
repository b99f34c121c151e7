package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"github.com/sigillo-app/backend/internal/accounts"
	"github.com/sigillo-app/backend/internal/catalog"
	"github.com/sigillo-app/backend/internal/finance"
	"github.com/sigillo-app/backend/internal/messaging"
	"github.com/sigillo-app/backend/internal/submissions"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&accounts.Account{},
		&accounts.Client{},
		&accounts.Notary{},
		&accounts.NotaryCompetence{},
		&catalog.Service{},
		&catalog.Option{},
		&submissions.Submission{},
		&messaging.Message{},
		&finance.Payout{},
		&finance.WebserviceCost{},
		&finance.AdCost{},
		&finance.OtherCost{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
