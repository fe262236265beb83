package models

import "time"

// Strategy is one catalog lookup method tried by the resolver
type Strategy string

const (
	StrategySKU   Strategy = "sku"
	StrategyTitle Strategy = "title"
	StrategyTag   Strategy = "tag"
	StrategyNone  Strategy = "none"
)

// IsLookup reports whether s is one of the three real lookup strategies
func (s Strategy) IsLookup() bool {
	return s == StrategySKU || s == StrategyTitle || s == StrategyTag
}

// CardQuery is one customer-submitted card. It is treated as immutable once
// a batch starts.
type CardQuery struct {
	RawName     string    `json:"card_name"`
	SuppliedSKU string    `json:"sku,omitempty"`
	Quantity    int       `json:"quantity"`
	Condition   Condition `json:"condition,omitempty"`
}

// ResolutionResult is what the resolver produced for one query. Product and
// Variant point into the catalog response and are shared by every reader of
// a cached result.
type ResolutionResult struct {
	Found    bool            `json:"found"`
	Product  *CatalogProduct `json:"product,omitempty"`
	Variant  *Variant        `json:"variant,omitempty"`
	Strategy Strategy        `json:"strategy"`
	Score    *float64        `json:"score,omitempty"`
}

// NotFound is the resolution for a query no strategy could match
func NotFound() ResolutionResult {
	return ResolutionResult{Strategy: StrategyNone}
}

// CacheEntry is one memoized resolution
type CacheEntry struct {
	Key        string           `json:"key"`
	Result     ResolutionResult `json:"result"`
	InsertedAt time.Time        `json:"inserted_at"`
}

// AuditOutcome classifies an audit entry
type AuditOutcome string

const (
	OutcomeHit            AuditOutcome = "hit"
	OutcomeMiss           AuditOutcome = "miss"
	OutcomeTimeout        AuditOutcome = "timeout"
	OutcomeCatalogError   AuditOutcome = "catalog_error"
	OutcomeCacheHit       AuditOutcome = "cache_hit"
	OutcomeCoalesced      AuditOutcome = "coalesced"
	OutcomeBatchTimeout   AuditOutcome = "batch_timeout"
	OutcomeInventoryError AuditOutcome = "inventory_error"
	OutcomeInventoryOK    AuditOutcome = "inventory_adjusted"
	OutcomePayoutIssued   AuditOutcome = "payout_issued"
	OutcomePayoutSkipped  AuditOutcome = "payout_skipped"
	OutcomePayoutFailed   AuditOutcome = "payout_failed"
)

// AuditEntry is one step taken while running a batch. CardIndex is -1 for
// steps that belong to the whole batch (payout).
type AuditEntry struct {
	CardIndex int          `json:"card_index"`
	CardName  string       `json:"card_name,omitempty"`
	Strategy  Strategy     `json:"strategy,omitempty"`
	Token     string       `json:"token,omitempty"`
	Outcome   AuditOutcome `json:"outcome"`
	Error     string       `json:"error,omitempty"`
	At        time.Time    `json:"at"`
	ElapsedMS int64        `json:"elapsed_ms"`
}
