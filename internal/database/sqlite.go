package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/codyseavey/tcg-tradein/backend/internal/logger"
	"github.com/codyseavey/tcg-tradein/backend/internal/models"
)

var DB *gorm.DB

// Initialize opens the database at dbPath and keeps the handle in DB
func Initialize(dbPath string) error {
	db, err := Open(dbPath)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open opens a sqlite database and brings its schema up to date. An
// in-memory DSN is pinned to one connection so every query sees the same data.
func Open(dsn string) (*gorm.DB, error) {
	log := logger.Named("database")

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}

	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	log.Info().Str("path", dsn).Msg("database connected")

	if err := cleanupDuplicateInventoryLevels(db); err != nil {
		return nil, fmt.Errorf("cleanup inventory levels: %w", err)
	}

	err = db.AutoMigrate(
		&models.ProductRecord{},
		&models.VariantRecord{},
		&models.InventoryLevel{},
		&models.CustomerRecord{},
		&models.PayoutRecord{},
		&models.Submission{},
		&models.ResolutionCacheRecord{},
	)
	if err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		return nil, fmt.Errorf("data migrations: %w", err)
	}

	log.Info().Msg("database migration completed")
	return db, nil
}

func GetDB() *gorm.DB {
	return DB
}
