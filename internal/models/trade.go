package models

import "time"

// BatchMode selects whether a batch only prices cards or actually pays out
type BatchMode string

const (
	ModeEstimate BatchMode = "estimate"
	ModeCommit   BatchMode = "commit"
)

// BatchState is the lifecycle of one batch run:
// INIT -> RESOLVING -> VALUATED -> (PAYOUT_PENDING -> PAYOUT_DONE|PAYOUT_FAILED | ESTIMATE_DONE)
type BatchState string

const (
	StateInit          BatchState = "INIT"
	StateResolving     BatchState = "RESOLVING"
	StateValuated      BatchState = "VALUATED"
	StatePayoutPending BatchState = "PAYOUT_PENDING"
	StatePayoutDone    BatchState = "PAYOUT_DONE"
	StatePayoutFailed  BatchState = "PAYOUT_FAILED"
	StateEstimateDone  BatchState = "ESTIMATE_DONE"
)

// LineStatus says how a trade line was resolved
type LineStatus string

const (
	LineMatched   LineStatus = "matched"
	LineUnmatched LineStatus = "unmatched"
	LineTimeout   LineStatus = "timeout"
)

// TradeLine is the valuation of one submitted card. Unit values are per copy;
// Line* values are scaled by Quantity. All values are zero for unmatched lines.
type TradeLine struct {
	Index          int        `json:"index"`
	CardName       string     `json:"card_name"`
	Condition      Condition  `json:"condition,omitempty"`
	MatchedTitle   string     `json:"matched_title,omitempty"`
	ProductID      string     `json:"product_id,omitempty"`
	SKU            string     `json:"sku,omitempty"`
	Quantity       int        `json:"quantity"`
	RetailPrice    Money      `json:"retail_price"`
	SuggestedValue Money      `json:"suggested_value"`
	MaximumValue   Money      `json:"maximum_value"`
	LineRetail     Money      `json:"line_retail"`
	LineSuggested  Money      `json:"line_suggested"`
	LineMaximum    Money      `json:"line_maximum"`
	StrategyUsed   Strategy   `json:"strategy_used"`
	Score          *float64   `json:"score,omitempty"`
	Status         LineStatus `json:"status"`
}

// PayoutMethod is how the customer is paid
type PayoutMethod string

const (
	PayoutStoreCredit PayoutMethod = "store_credit"
	PayoutGiftCard    PayoutMethod = "gift_card"
	PayoutCash        PayoutMethod = "cash"
)

// IsValid reports whether m is a known payout method
func (m PayoutMethod) IsValid() bool {
	return m == PayoutStoreCredit || m == PayoutGiftCard || m == PayoutCash
}

// PayoutRequest carries the payout fields of a commit-mode batch
type PayoutRequest struct {
	Method        PayoutMethod `json:"method"`
	CustomerEmail string       `json:"customer_email,omitempty"`
	Note          string       `json:"note,omitempty"`
}

// PayoutReceipt is what the payout issuer returned
type PayoutReceipt struct {
	Method     PayoutMethod `json:"method"`
	Reference  string       `json:"reference"`
	Amount     Money        `json:"amount"`
	CustomerID string       `json:"customer_id,omitempty"`
	IssuedAt   time.Time    `json:"issued_at"`
}

// Customer is a resolved customer identity used for store credit
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// BatchResult is the output of one batch run
type BatchResult struct {
	SubmissionID   string         `json:"submission_id"`
	Mode           BatchMode      `json:"mode"`
	State          BatchState     `json:"state"`
	Lines          []TradeLine    `json:"lines"`
	SuggestedTotal Money          `json:"suggested_total"`
	MaximumTotal   Money          `json:"maximum_total"`
	RetailTotal    Money          `json:"retail_total"`
	FinalPayout    Money          `json:"final_payout"`
	Payout         *PayoutReceipt `json:"payout,omitempty"`
	AuditLog       []AuditEntry   `json:"audit_log"`
	CreatedAt      time.Time      `json:"created_at"`
}
