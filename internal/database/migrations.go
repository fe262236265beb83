package database

import (
	"gorm.io/gorm"

	"github.com/codyseavey/tcg-tradein/backend/internal/logger"
)

// cleanupDuplicateInventoryLevels removes duplicate inventory_levels rows before the unique
// (item, location) index is added. This runs BEFORE AutoMigrate to prevent constraint violations.
func cleanupDuplicateInventoryLevels(db *gorm.DB) error {
	if !db.Migrator().HasTable("inventory_levels") {
		return nil
	}

	// Keep the most recent row per item and location
	result := db.Exec(`
		DELETE FROM inventory_levels
		WHERE id NOT IN (
			SELECT MAX(id)
			FROM inventory_levels
			GROUP BY inventory_item_id, location_id
		)
	`)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		logger.Named("database").Info().Int64("rows", result.RowsAffected).Msg("cleaned up duplicate inventory_levels entries")
	}
	return nil
}

// RunMigrations runs any custom data migrations after schema changes
func RunMigrations(db *gorm.DB) error {
	if err := backfillNormalizedSKU(db); err != nil {
		return err
	}
	if err := normalizeProductTags(db); err != nil {
		return err
	}
	return nil
}

// backfillNormalizedSKU fills normalized_sku for variants written before the column existed.
// Safe to run repeatedly: only empty values are touched. Must match models.NormalizeSKU.
func backfillNormalizedSKU(db *gorm.DB) error {
	result := db.Exec(`
		UPDATE catalog_variants
		SET normalized_sku = UPPER(REPLACE(REPLACE(REPLACE(sku, '-', ''), '/', ''), ' ', ''))
		WHERE (normalized_sku IS NULL OR normalized_sku = '') AND sku <> ''
	`)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		logger.Named("database").Info().Int64("rows", result.RowsAffected).Msg("backfilled normalized SKUs")
	}
	return nil
}

// normalizeProductTags lower-cases tags and wraps them in commas so a tag
// lookup can match ",tag," with LIKE
func normalizeProductTags(db *gorm.DB) error {
	log := logger.Named("database")

	result := db.Exec(`UPDATE catalog_products SET tags = LOWER(tags) WHERE tags <> LOWER(tags)`)
	if result.Error != nil {
		log.Warn().Err(result.Error).Msg("failed to lower-case product tags")
	}

	result = db.Exec(`
		UPDATE catalog_products
		SET tags = ',' || tags || ','
		WHERE tags <> '' AND (SUBSTR(tags, 1, 1) <> ',' OR SUBSTR(tags, -1, 1) <> ',')
	`)
	if result.Error != nil {
		return result.Error
	}
	return nil
}
