package models

import "strings"

// Variant is one purchasable variant of a catalog product
type Variant struct {
	Title           string `json:"title,omitempty"`
	SKU             string `json:"sku" validate:"max=64"`
	Price           Money  `json:"price"`
	InventoryItemID string `json:"inventory_item_id,omitempty" validate:"max=128"`
}

// CatalogProduct is a read-only view of a product owned by the store catalog.
// The resolver never mutates it; inventory changes go through an InventoryAdjuster.
type CatalogProduct struct {
	ID          string    `json:"id" validate:"required,max=128"`
	Title       string    `json:"title" validate:"required"`
	ProductType string    `json:"product_type,omitempty"`
	Vendor      string    `json:"vendor,omitempty"`
	Tags        []string  `json:"tags,omitempty" validate:"dive,excludesall=0x2C"`
	Variants    []Variant `json:"variants" validate:"dive"`
}

// HasTag reports whether the product carries tag (case-insensitive)
func (p *CatalogProduct) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if strings.EqualFold(strings.TrimSpace(t), strings.TrimSpace(tag)) {
			return true
		}
	}
	return false
}

// VariantBySKU returns the variant whose SKU equals sku ignoring case and
// separators, or nil
func (p *CatalogProduct) VariantBySKU(sku string) *Variant {
	want := NormalizeSKU(sku)
	if want == "" {
		return nil
	}
	for i := range p.Variants {
		if NormalizeSKU(p.Variants[i].SKU) == want {
			return &p.Variants[i]
		}
	}
	return nil
}

// DefaultVariant returns the first variant, or nil for a product without variants
func (p *CatalogProduct) DefaultVariant() *Variant {
	if len(p.Variants) == 0 {
		return nil
	}
	return &p.Variants[0]
}

// NormalizeSKU upper-cases a SKU and drops '-', '/' and spaces so that
// "op01-120" and "OP01120" compare equal
func NormalizeSKU(s string) string {
	return strings.ToUpper(strings.NewReplacer("-", "", "/", "", " ", "").Replace(s))
}
