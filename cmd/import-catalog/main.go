// import-catalog loads catalog products from a JSON file into the local
// sqlite catalog used when the server runs with catalog.mode=local.
//
// Usage: go run ./cmd/import-catalog -db=<path> -file=<products.json> [-dry-run]
//
// The file holds an array of products:
//
//	[{"id": "op09-001", "title": "Shanks", "tags": ["one piece"],
//	  "variants": [{"sku": "OP09-001", "price": "4.00"}]}]
//
// Existing products with the same id are replaced along with their variants.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/codyseavey/tcg-tradein/backend/internal/database"
	"github.com/codyseavey/tcg-tradein/backend/internal/logger"
	"github.com/codyseavey/tcg-tradein/backend/internal/services"
)

func main() {
	dbPath := flag.String("db", "", "Path to SQLite database (required)")
	file := flag.String("file", "", "Path to products JSON file (required)")
	dryRun := flag.Bool("dry-run", false, "Validate the file without writing")
	flag.Parse()

	if *dbPath == "" || *file == "" {
		fmt.Fprintln(os.Stderr, "Usage: import-catalog -db=<path> -file=<products.json> [-dry-run]")
		os.Exit(1)
	}

	logger.Init(logger.Options{Level: "info", Format: "console", Service: "import-catalog"})
	log := logger.Named("import")

	db, err := database.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}

	stats, err := services.ImportProductsFile(context.Background(), services.NewLocalCatalog(db), *file, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Int("imported", stats.Products).Msg("import failed")
	}

	for _, reason := range stats.Skipped {
		log.Warn().Msg("skipped " + reason)
	}
	log.Info().
		Bool("dry_run", *dryRun).
		Int("products", stats.Products).
		Int("variants", stats.Variants).
		Int("skipped", len(stats.Skipped)).
		Msg("catalog import finished")
}
