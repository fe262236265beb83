package services

import (
	"errors"
	"fmt"

	"github.com/codyseavey/tcg-tradein/backend/internal/models"
)

var (
	// ErrValidation matches every *ValidationError through errors.Is
	ErrValidation = errors.New("validation failed")

	// ErrResolutionTimeout is recorded when a strategy or the whole batch ran out of time
	ErrResolutionTimeout = errors.New("resolution timed out")

	// ErrCatalogUnavailable is recorded when the catalog returned an error for a lookup
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrPayoutFailure matches every *PayoutError through errors.Is
	ErrPayoutFailure = errors.New("payout failed")

	// ErrCacheCorruption is returned by a CacheBackingStore for an entry it could not decode
	ErrCacheCorruption = errors.New("cache entry corrupted")

	// ErrSubmissionNotFound is returned by a SubmissionStore for an unknown id
	ErrSubmissionNotFound = errors.New("submission not found")
)

// ValidationError rejects a batch before any catalog call is made
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Payout steps reported by PayoutError
const (
	PayoutStepCustomerLookup = "customer_lookup"
	PayoutStepIssue          = "issue"
)

// PayoutError is fatal to a commit-mode batch. Inventory already adjusted for
// the batch is not rolled back.
type PayoutError struct {
	Step   string
	Method models.PayoutMethod
	Err    error
}

func (e *PayoutError) Error() string {
	return fmt.Sprintf("payout failed at %s (%s): %v", e.Step, e.Method, e.Err)
}

func (e *PayoutError) Unwrap() error { return e.Err }

func (e *PayoutError) Is(target error) bool { return target == ErrPayoutFailure }
