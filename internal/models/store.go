package models

import (
	"time"
)

// ProductRecord is a catalog product in the local sqlite catalog
type ProductRecord struct {
	ID          string          `json:"id" gorm:"primaryKey"`
	Title       string          `json:"title" gorm:"not null;index"`
	ProductType string          `json:"product_type"`
	Vendor      string          `json:"vendor"`
	Tags        string          `json:"tags"` // ",tag one,tag two," lowercase, for LIKE matching
	Variants    []VariantRecord `json:"variants" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (ProductRecord) TableName() string { return "catalog_products" }

// VariantRecord is one variant row of a local catalog product
type VariantRecord struct {
	ID              uint   `json:"id" gorm:"primaryKey"`
	ProductID       string `json:"product_id" gorm:"not null;index"`
	Position        int    `json:"position"`
	Title           string `json:"title"`
	SKU             string `json:"sku" gorm:"index"`
	NormalizedSKU   string `json:"-" gorm:"index"`
	Price           string `json:"price" gorm:"not null;default:'0'"`
	InventoryItemID string `json:"inventory_item_id" gorm:"uniqueIndex"`
}

func (VariantRecord) TableName() string { return "catalog_variants" }

// InventoryLevel is the available count of one inventory item at one location
type InventoryLevel struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	InventoryItemID string    `json:"inventory_item_id" gorm:"not null;uniqueIndex:idx_item_location"`
	LocationID      string    `json:"location_id" gorm:"not null;uniqueIndex:idx_item_location"`
	Available       int       `json:"available"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CustomerRecord is a customer known to the local ledger
type CustomerRecord struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
}

func (CustomerRecord) TableName() string { return "customers" }

// PayoutRecord is a payout issued by the local ledger
type PayoutRecord struct {
	ID         string       `json:"id" gorm:"primaryKey"`
	Method     PayoutMethod `json:"method" gorm:"not null;index"`
	CustomerID string       `json:"customer_id" gorm:"index"`
	Amount     string       `json:"amount" gorm:"not null"`
	Note       string       `json:"note"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Submission is a finished batch persisted for later lookup
type Submission struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	Mode        BatchMode  `json:"mode" gorm:"not null;index"`
	State       BatchState `json:"state" gorm:"not null;index"`
	FinalPayout string     `json:"final_payout"`
	Payload     string     `json:"-" gorm:"type:text"` // JSON-encoded BatchResult
	CreatedAt   time.Time  `json:"created_at"`
}

// ResolutionCacheRecord is a persisted resolution cache entry
type ResolutionCacheRecord struct {
	Key        string    `gorm:"primaryKey"`
	Payload    string    `gorm:"type:text"` // JSON-encoded ResolutionResult
	InsertedAt time.Time `gorm:"not null;index"`
}

func (ResolutionCacheRecord) TableName() string { return "resolution_cache_entries" }
