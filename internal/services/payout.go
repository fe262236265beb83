package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codyseavey/tcg-tradein/backend/internal/logger"
	"github.com/codyseavey/tcg-tradein/backend/internal/metrics"
	"github.com/codyseavey/tcg-tradein/backend/internal/models"
)

// PayoutDispatcher routes a payout to the issuer call for its method. It
// never falls back to another method when one fails.
type PayoutDispatcher struct {
	issuer    PayoutIssuer
	customers CustomerDirectory
	now       func() time.Time
	log       *logger.Logger
}

// NewPayoutDispatcher creates a dispatcher. customers is only needed for store credit.
func NewPayoutDispatcher(issuer PayoutIssuer, customers CustomerDirectory) *PayoutDispatcher {
	return &PayoutDispatcher{
		issuer:    issuer,
		customers: customers,
		now:       time.Now,
		log:       logger.Named("payout"),
	}
}

// Issue pays amount using req.Method. Every failure is a *PayoutError.
func (d *PayoutDispatcher) Issue(ctx context.Context, req models.PayoutRequest, amount models.Money) (models.PayoutReceipt, error) {
	receipt, err := d.issue(ctx, req, amount)
	if err != nil {
		metrics.PayoutsTotal.WithLabelValues(string(req.Method), "failed").Inc()
		d.log.Error().Err(err).Str("method", string(req.Method)).Str("amount", amount.String()).Msg("payout failed")
		return models.PayoutReceipt{}, err
	}

	metrics.PayoutsTotal.WithLabelValues(string(req.Method), "success").Inc()
	metrics.PayoutAmountUSD.WithLabelValues(string(req.Method)).Add(amount.InexactFloat64())
	d.log.Info().
		Str("method", string(req.Method)).
		Str("amount", amount.String()).
		Str("reference", receipt.Reference).
		Msg("payout issued")
	return receipt, nil
}

func (d *PayoutDispatcher) issue(ctx context.Context, req models.PayoutRequest, amount models.Money) (models.PayoutReceipt, error) {
	if d.issuer == nil {
		return models.PayoutReceipt{}, &PayoutError{Step: PayoutStepIssue, Method: req.Method, Err: fmt.Errorf("no payout issuer configured")}
	}

	var (
		receipt models.PayoutReceipt
		err     error
		custID  string
	)
	switch req.Method {
	case models.PayoutStoreCredit:
		if d.customers == nil {
			return receipt, &PayoutError{Step: PayoutStepCustomerLookup, Method: req.Method, Err: fmt.Errorf("no customer directory configured")}
		}
		email := strings.ToLower(strings.TrimSpace(req.CustomerEmail))
		customer, cerr := d.customers.FindOrCreateByEmail(ctx, email)
		if cerr != nil {
			return receipt, &PayoutError{Step: PayoutStepCustomerLookup, Method: req.Method, Err: cerr}
		}
		custID = customer.ID
		receipt, err = d.issuer.IssueStoreCredit(ctx, custID, amount, req.Note)
	case models.PayoutGiftCard:
		receipt, err = d.issuer.IssueGiftCard(ctx, amount, req.Note)
	case models.PayoutCash:
		receipt, err = d.issuer.IssueCash(ctx, amount, req.Note)
	default:
		err = fmt.Errorf("unsupported payout method %q", req.Method)
	}
	if err != nil {
		return models.PayoutReceipt{}, &PayoutError{Step: PayoutStepIssue, Method: req.Method, Err: err}
	}

	receipt.Method = req.Method
	receipt.Amount = amount
	if receipt.CustomerID == "" {
		receipt.CustomerID = custID
	}
	if receipt.IssuedAt.IsZero() {
		receipt.IssuedAt = d.now()
	}
	return receipt, nil
}
