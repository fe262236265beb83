package services

import (
	"context"
	"time"

	"github.com/codyseavey/tcg-tradein/backend/internal/models"
)

// CatalogLookup searches the store catalog. Implementations must honor ctx.
// An empty result is not an error.
type CatalogLookup interface {
	FindByTitle(ctx context.Context, text string) ([]models.CatalogProduct, error)
	FindBySKU(ctx context.Context, sku string) ([]models.CatalogProduct, error)
	FindByTag(ctx context.Context, tag string) ([]models.CatalogProduct, error)
}

// InventoryAdjuster changes the available count of an inventory item
type InventoryAdjuster interface {
	AdjustAvailable(ctx context.Context, inventoryItemID, locationID string, delta int) error
}

// PayoutIssuer pays the customer. Store credit needs a customer from a CustomerDirectory.
type PayoutIssuer interface {
	IssueStoreCredit(ctx context.Context, customerID string, amount models.Money, note string) (models.PayoutReceipt, error)
	IssueGiftCard(ctx context.Context, amount models.Money, note string) (models.PayoutReceipt, error)
	IssueCash(ctx context.Context, amount models.Money, note string) (models.PayoutReceipt, error)
}

// CustomerDirectory resolves a customer identity for store credit
type CustomerDirectory interface {
	FindOrCreateByEmail(ctx context.Context, email string) (models.Customer, error)
}

// SubmissionStore persists finished batches
type SubmissionStore interface {
	SaveSubmission(ctx context.Context, result *models.BatchResult) error
	GetSubmission(ctx context.Context, id string) (*models.BatchResult, error)
}

// CacheBackingStore is an optional persistent tier behind the in-memory
// resolution cache. Load returns an error wrapping ErrCacheCorruption for an
// entry it could not decode and removes that entry.
type CacheBackingStore interface {
	Load(ctx context.Context, key string) (models.CacheEntry, bool, error)
	Save(ctx context.Context, entry models.CacheEntry) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
