package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codyseavey/tcg-tradein/backend/internal/models"
)

// LocalLedger records payouts and customers in the sqlite database. It is
// the payout backend for stores without an admin API.
type LocalLedger struct {
	db *gorm.DB
}

// NewLocalLedger creates a ledger over db
func NewLocalLedger(db *gorm.DB) *LocalLedger {
	return &LocalLedger{db: db}
}

// FindOrCreateByEmail returns the customer for email, creating one on first use
func (l *LocalLedger) FindOrCreateByEmail(ctx context.Context, email string) (models.Customer, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return models.Customer{}, errors.New("email is required")
	}

	rec := models.CustomerRecord{}
	err := l.db.WithContext(ctx).
		Where(models.CustomerRecord{Email: email}).
		Attrs(models.CustomerRecord{ID: uuid.NewString()}).
		FirstOrCreate(&rec).Error
	if err != nil {
		return models.Customer{}, fmt.Errorf("find or create customer %s: %w", email, err)
	}
	return models.Customer{ID: rec.ID, Email: rec.Email}, nil
}

// IssueStoreCredit records store credit for an existing customer
func (l *LocalLedger) IssueStoreCredit(ctx context.Context, customerID string, amount models.Money, note string) (models.PayoutReceipt, error) {
	var count int64
	if err := l.db.WithContext(ctx).Model(&models.CustomerRecord{}).Where("id = ?", customerID).Count(&count).Error; err != nil {
		return models.PayoutReceipt{}, fmt.Errorf("look up customer: %w", err)
	}
	if count == 0 {
		return models.PayoutReceipt{}, fmt.Errorf("unknown customer %q", customerID)
	}
	return l.record(ctx, models.PayoutStoreCredit, customerID, amount, note)
}

// IssueGiftCard records a gift card payout
func (l *LocalLedger) IssueGiftCard(ctx context.Context, amount models.Money, note string) (models.PayoutReceipt, error) {
	return l.record(ctx, models.PayoutGiftCard, "", amount, note)
}

// IssueCash records a cash payout
func (l *LocalLedger) IssueCash(ctx context.Context, amount models.Money, note string) (models.PayoutReceipt, error) {
	return l.record(ctx, models.PayoutCash, "", amount, note)
}

func (l *LocalLedger) record(ctx context.Context, method models.PayoutMethod, customerID string, amount models.Money, note string) (models.PayoutReceipt, error) {
	if !amount.IsPositive() {
		return models.PayoutReceipt{}, fmt.Errorf("payout amount must be positive, got %s", amount)
	}

	rec := models.PayoutRecord{
		ID:         uuid.NewString(),
		Method:     method,
		CustomerID: customerID,
		Amount:     amount.String(),
		Note:       note,
		CreatedAt:  time.Now(),
	}
	if err := l.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return models.PayoutReceipt{}, fmt.Errorf("record %s payout: %w", method, err)
	}

	return models.PayoutReceipt{
		Method:     method,
		Reference:  rec.ID,
		Amount:     amount,
		CustomerID: customerID,
		IssuedAt:   rec.CreatedAt,
	}, nil
}

// Payouts lists recorded payouts, newest first
func (l *LocalLedger) Payouts(ctx context.Context, limit int) ([]models.PayoutRecord, error) {
	var rows []models.PayoutRecord
	err := l.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
