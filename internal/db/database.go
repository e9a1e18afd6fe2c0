package db

import (
	"fmt"
	"log"

	"gift-backend/internal/config"
	"gift-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the configured database. Call Migrate before first use.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	database, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	log.Printf("✅ Database connected successfully (driver=%s)", cfg.Driver)
	return database, nil
}

// Migrate creates or updates the pipeline tables
func Migrate(database *gorm.DB) error {
	log.Println("🚀 Starting database schema migration with GORM AutoMigrate...")
	if err := database.AutoMigrate(
		&models.ConsumedNullifier{},
		&models.GiftClaim{},
		&models.GiftAuditEvent{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Println("✅ Database migration completed")
	return nil
}
