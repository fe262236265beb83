package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codyseavey/tcg-tradein/backend/internal/models"
)

const localSearchLimit = 50

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LocalCatalog serves catalog lookups and inventory from the sqlite database
type LocalCatalog struct {
	db *gorm.DB
}

// NewLocalCatalog creates a catalog over db
func NewLocalCatalog(db *gorm.DB) *LocalCatalog {
	return &LocalCatalog{db: db}
}

// FindByTitle matches a case-insensitive substring of the product title
func (c *LocalCatalog) FindByTitle(ctx context.Context, text string) ([]models.CatalogProduct, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(text))) + "%"
	return c.find(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where(`LOWER(title) LIKE ? ESCAPE '\'`, pattern)
	})
}

// FindBySKU matches variant SKUs ignoring case and separators
func (c *LocalCatalog) FindBySKU(ctx context.Context, sku string) ([]models.CatalogProduct, error) {
	normalized := models.NormalizeSKU(sku)
	if normalized == "" {
		return nil, nil
	}
	return c.find(ctx, func(q *gorm.DB) *gorm.DB {
		sub := q.Session(&gorm.Session{NewDB: true}).Model(&models.VariantRecord{}).Select("product_id").Where("normalized_sku = ?", normalized)
		return q.Where("id IN (?)", sub)
	})
}

// FindByTag matches one tag exactly, ignoring case
func (c *LocalCatalog) FindByTag(ctx context.Context, tag string) ([]models.CatalogProduct, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return nil, nil
	}
	pattern := "%," + likeEscaper.Replace(tag) + ",%"
	return c.find(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where(`tags LIKE ? ESCAPE '\'`, pattern)
	})
}

func (c *LocalCatalog) find(ctx context.Context, scope func(*gorm.DB) *gorm.DB) ([]models.CatalogProduct, error) {
	var rows []models.ProductRecord
	err := scope(c.db.WithContext(ctx)).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Order("id ASC").
		Limit(localSearchLimit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("local catalog query: %w", err)
	}

	products := make([]models.CatalogProduct, 0, len(rows))
	for _, r := range rows {
		products = append(products, toCatalogProduct(r))
	}
	return products, nil
}

// AdjustAvailable adds delta to the available count of an item at a
// location, creating the level row on first use
func (c *LocalCatalog) AdjustAvailable(ctx context.Context, inventoryItemID, locationID string, delta int) error {
	db := c.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.VariantRecord{}).Where("inventory_item_id = ?", inventoryItemID).Count(&count).Error; err != nil {
		return fmt.Errorf("look up inventory item: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("unknown inventory item %q", inventoryItemID)
	}

	level := models.InventoryLevel{
		InventoryItemID: inventoryItemID,
		LocationID:      locationID,
		Available:       delta,
		UpdatedAt:       time.Now(),
	}
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "inventory_item_id"}, {Name: "location_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"available":  gorm.Expr("available + ?", delta),
			"updated_at": level.UpdatedAt,
		}),
	}).Create(&level).Error
	if err != nil {
		return fmt.Errorf("adjust inventory %s@%s: %w", inventoryItemID, locationID, err)
	}
	return nil
}

// Available returns the stocked count of an item at a location
func (c *LocalCatalog) Available(ctx context.Context, inventoryItemID, locationID string) (int, error) {
	var level models.InventoryLevel
	err := c.db.WithContext(ctx).
		Where("inventory_item_id = ? AND location_id = ?", inventoryItemID, locationID).
		First(&level).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return level.Available, nil
}

// UpsertProduct writes a product and replaces its variants
func (c *LocalCatalog) UpsertProduct(ctx context.Context, p models.CatalogProduct) error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("product id is required")
	}
	rec := toProductRecord(p)

	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		variants := rec.Variants
		rec.Variants = nil
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "product_type", "vendor", "tags", "updated_at"}),
		}).Create(&rec).Error
		if err != nil {
			return fmt.Errorf("save product %s: %w", p.ID, err)
		}
		if err := tx.Where("product_id = ?", rec.ID).Delete(&models.VariantRecord{}).Error; err != nil {
			return fmt.Errorf("clear variants of %s: %w", p.ID, err)
		}
		if len(variants) == 0 {
			return nil
		}
		if err := tx.Create(&variants).Error; err != nil {
			return fmt.Errorf("save variants of %s: %w", p.ID, err)
		}
		return nil
	})
}

func toProductRecord(p models.CatalogProduct) models.ProductRecord {
	rec := models.ProductRecord{
		ID:          p.ID,
		Title:       p.Title,
		ProductType: p.ProductType,
		Vendor:      p.Vendor,
		Tags:        joinTags(p.Tags),
	}
	for i, v := range p.Variants {
		itemID := v.InventoryItemID
		if itemID == "" {
			itemID = fmt.Sprintf("%s-%d", p.ID, i+1)
		}
		rec.Variants = append(rec.Variants, models.VariantRecord{
			ProductID:       p.ID,
			Position:        i + 1,
			Title:           v.Title,
			SKU:             v.SKU,
			NormalizedSKU:   models.NormalizeSKU(v.SKU),
			Price:           v.Price.String(),
			InventoryItemID: itemID,
		})
	}
	return rec
}

func toCatalogProduct(r models.ProductRecord) models.CatalogProduct {
	p := models.CatalogProduct{
		ID:          r.ID,
		Title:       r.Title,
		ProductType: r.ProductType,
		Vendor:      r.Vendor,
		Tags:        splitTags(r.Tags),
	}
	sort.SliceStable(r.Variants, func(i, j int) bool { return r.Variants[i].Position < r.Variants[j].Position })
	for _, v := range r.Variants {
		price, err := models.ParseMoney(v.Price)
		if err != nil {
			price = models.Zero
		}
		p.Variants = append(p.Variants, models.Variant{
			Title:           v.Title,
			SKU:             v.SKU,
			Price:           price,
			InventoryItemID: v.InventoryItemID,
		})
	}
	return p
}

func joinTags(tags []string) string {
	var clean []string
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && !strings.Contains(t, ",") {
			clean = append(clean, t)
		}
	}
	if len(clean) == 0 {
		return ""
	}
	return "," + strings.Join(clean, ",") + ","
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
