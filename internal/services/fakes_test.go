package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/codyseavey/tcg-tradein/backend/internal/models"
)

// fakeCatalog answers lookups from maps keyed by token. Keys of fail, block
// and stall are "field:token" or "field:*".
type fakeCatalog struct {
	mu      sync.Mutex
	byTitle map[string][]models.CatalogProduct
	bySKU   map[string][]models.CatalogProduct
	byTag   map[string][]models.CatalogProduct
	fail    map[string]error
	// block waits for ctx to end
	block map[string]bool
	// stall ignores ctx and waits for release to be closed
	stall   map[string]bool
	release chan struct{}
	// gate, when set, delays every lookup until it is closed
	gate chan struct{}
	// delay holds a lookup for a while before answering
	delay map[string]time.Duration
	calls []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		byTitle: map[string][]models.CatalogProduct{},
		bySKU:   map[string][]models.CatalogProduct{},
		byTag:   map[string][]models.CatalogProduct{},
		fail:    map[string]error{},
		block:   map[string]bool{},
		stall:   map[string]bool{},
		delay:   map[string]time.Duration{},
		release: make(chan struct{}),
	}
}

func (f *fakeCatalog) FindByTitle(ctx context.Context, text string) ([]models.CatalogProduct, error) {
	return f.find(ctx, "title", text, f.byTitle)
}

func (f *fakeCatalog) FindBySKU(ctx context.Context, sku string) ([]models.CatalogProduct, error) {
	return f.find(ctx, "sku", sku, f.bySKU)
}

func (f *fakeCatalog) FindByTag(ctx context.Context, tag string) ([]models.CatalogProduct, error) {
	return f.find(ctx, "tag", tag, f.byTag)
}

func (f *fakeCatalog) find(ctx context.Context, field, token string, m map[string][]models.CatalogProduct) ([]models.CatalogProduct, error) {
	f.mu.Lock()
	f.calls = append(f.calls, field+":"+token)
	match := func(set map[string]bool) bool { return set[field+":"+token] || set[field+":*"] }
	blocked, stalled := match(f.block), match(f.stall)
	err := f.fail[field+":"+token]
	if err == nil {
		err = f.fail[field+":*"]
	}
	res := m[token]
	gate := f.gate
	wait := f.delay[field+":"+token]
	f.mu.Unlock()

	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if stalled {
		<-f.release
		return nil, errors.New("stalled lookup released")
	}
	if blocked {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (f *fakeCatalog) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeCatalog) CallCount(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

type adjustment struct {
	ItemID     string
	LocationID string
	Delta      int
}

type fakeInventory struct {
	mu      sync.Mutex
	applied []adjustment
	fail    map[string]error
}

func (f *fakeInventory) AdjustAvailable(_ context.Context, itemID, locationID string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[itemID]; err != nil {
		return err
	}
	f.applied = append(f.applied, adjustment{ItemID: itemID, LocationID: locationID, Delta: delta})
	return nil
}

type issued struct {
	Method     models.PayoutMethod
	CustomerID string
	Amount     string
	Note       string
}

type fakePayouts struct {
	mu     sync.Mutex
	issued []issued
	err    error
}

func (f *fakePayouts) record(method models.PayoutMethod, customerID string, amount models.Money, note string) (models.PayoutReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.PayoutReceipt{}, f.err
	}
	f.issued = append(f.issued, issued{Method: method, CustomerID: customerID, Amount: amount.String(), Note: note})
	return models.PayoutReceipt{
		Method:     method,
		Reference:  fmt.Sprintf("ref-%d", len(f.issued)),
		Amount:     amount,
		CustomerID: customerID,
		IssuedAt:   time.Now(),
	}, nil
}

func (f *fakePayouts) IssueStoreCredit(_ context.Context, customerID string, amount models.Money, note string) (models.PayoutReceipt, error) {
	return f.record(models.PayoutStoreCredit, customerID, amount, note)
}

func (f *fakePayouts) IssueGiftCard(_ context.Context, amount models.Money, note string) (models.PayoutReceipt, error) {
	return f.record(models.PayoutGiftCard, "", amount, note)
}

func (f *fakePayouts) IssueCash(_ context.Context, amount models.Money, note string) (models.PayoutReceipt, error) {
	return f.record(models.PayoutCash, "", amount, note)
}

type fakeCustomers struct {
	err error
}

func (f *fakeCustomers) FindOrCreateByEmail(_ context.Context, email string) (models.Customer, error) {
	if f.err != nil {
		return models.Customer{}, f.err
	}
	return models.Customer{ID: "cust-" + email, Email: email}, nil
}

type fakeSubmissions struct {
	mu    sync.Mutex
	saved map[string]*models.BatchResult
}

func (f *fakeSubmissions) SaveSubmission(_ context.Context, r *models.BatchResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = map[string]*models.BatchResult{}
	}
	f.saved[r.SubmissionID] = r
	return nil
}

func (f *fakeSubmissions) GetSubmission(_ context.Context, id string) (*models.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.saved[id]; ok {
		return r, nil
	}
	return nil, ErrSubmissionNotFound
}

// single builds a one-variant single-card product
func single(id, title, sku, price string) models.CatalogProduct {
	return models.CatalogProduct{
		ID:          id,
		Title:       title,
		ProductType: "Single",
		Variants: []models.Variant{{
			Title:           "Near Mint",
			SKU:             sku,
			Price:           models.MustMoney(price),
			InventoryItemID: "inv-" + id,
		}},
	}
}
