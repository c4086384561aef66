// Package repository is the persistence layer: gorm-backed stores for jobs,
// documents, extraction fields and export records.
package repository

import (
	"log/slog"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/billscan/billscan/internal/common"
	"github.com/billscan/billscan/internal/entity"
)

// Open connects to the configured database and migrates the schema. A
// postgres:// DSN selects postgres; anything else falls back to the embedded
// sqlite file.
func Open(cfg common.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	var dial gorm.Dialector
	switch {
	case strings.HasPrefix(cfg.DSN, "postgres://"), strings.HasPrefix(cfg.DSN, "postgresql://"):
		log.Info("connecting to postgres")
		dial = postgres.Open(cfg.DSN)
	default:
		log.Info("using embedded sqlite database", "path", cfg.SQLitePath)
		dial = sqlite.Open(cfg.SQLitePath)
	}

	db, err := gorm.Open(dial, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return nil, common.InternalError("open database", err)
	}

	if err := Migrate(db); err != nil {
		log.Error("failed to migrate schema", "error", err)
		return nil, err
	}
	log.Info("database ready")
	return db, nil
}

// Migrate creates or updates the schema for all entities.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&entity.Job{},
		&entity.Document{},
		&entity.ExtractionField{},
		&entity.ExportRecord{},
	)
	if err != nil {
		return common.InternalError("migrate schema", err)
	}
	return nil
}
