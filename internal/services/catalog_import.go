package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/codyseavey/tcg-tradein/backend/internal/models"
)

var importValidator = validator.New(validator.WithRequiredStructEnabled())

// ImportStats summarizes one catalog import
type ImportStats struct {
	Products int
	Variants int
	Skipped  []string
}

// ImportProducts reads a JSON array of catalog products from r and upserts
// them into the local catalog. Products failing validation (no id or title,
// a comma inside a tag) are skipped. With dryRun nothing is written.
func ImportProducts(ctx context.Context, c *LocalCatalog, r io.Reader, dryRun bool) (ImportStats, error) {
	var products []models.CatalogProduct
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return ImportStats{}, fmt.Errorf("decode catalog file: %w", err)
	}

	var stats ImportStats
	for i, p := range products {
		if err := importValidator.Struct(p); err != nil {
			stats.Skipped = append(stats.Skipped, fmt.Sprintf("product %d (%q): %v", i, p.ID, err))
			continue
		}
		if !dryRun {
			if err := c.UpsertProduct(ctx, p); err != nil {
				return stats, err
			}
		}
		stats.Products++
		stats.Variants += len(p.Variants)
	}
	return stats, nil
}

// ImportProductsFile is ImportProducts over a file on disk
func ImportProductsFile(ctx context.Context, c *LocalCatalog, path string, dryRun bool) (ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportStats{}, fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()
	return ImportProducts(ctx, c, f, dryRun)
}
