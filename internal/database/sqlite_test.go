package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codyseavey/tcg-tradein/backend/internal/models"
)

func TestOpenCreatesSchema(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)

	for _, table := range []string{
		"catalog_products", "catalog_variants", "inventory_levels", "customers",
		"payout_records", "submissions", "resolution_cache_entries",
	} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestRunMigrations(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.ProductRecord{ID: "p1", Title: "Nami", Tags: "One Piece,Leader"}).Error)
	require.NoError(t, db.Create(&models.VariantRecord{ProductID: "p1", SKU: "op01-016 / p", InventoryItemID: "inv-1"}).Error)
	require.NoError(t, db.Create(&models.VariantRecord{ProductID: "p1", SKU: "OP01-016", NormalizedSKU: "KEEP", InventoryItemID: "inv-2"}).Error)

	require.NoError(t, RunMigrations(db))
	require.NoError(t, RunMigrations(db), "migrations are idempotent")

	var p models.ProductRecord
	require.NoError(t, db.First(&p, "id = ?", "p1").Error)
	assert.Equal(t, ",one piece,leader,", p.Tags)

	var v1, v2 models.VariantRecord
	require.NoError(t, db.First(&v1, "inventory_item_id = ?", "inv-1").Error)
	require.NoError(t, db.First(&v2, "inventory_item_id = ?", "inv-2").Error)
	assert.Equal(t, models.NormalizeSKU("op01-016 / p"), v1.NormalizedSKU)
	assert.Equal(t, "KEEP", v2.NormalizedSKU)
}
