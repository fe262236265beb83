package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/codyseavey/tcg-tradein/backend/internal/logger"
	"github.com/codyseavey/tcg-tradein/backend/internal/metrics"
	"github.com/codyseavey/tcg-tradein/backend/internal/models"
)

const (
	storeAPIDefaultTimeout = 10 * time.Second
	storeAPIErrorBodyLimit = 512
)

// StoreAPIConfig configures a StoreAPIClient
type StoreAPIConfig struct {
	BaseURL           string
	Token             string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// StoreAPIClient talks to the store's admin API. It serves as the catalog,
// inventory, payout and customer collaborator in remote mode.
type StoreAPIClient struct {
	client      *http.Client
	baseURL     string
	token       string
	rateLimiter *rate.Limiter
	log         *logger.Logger
}

type productsResponse struct {
	Products []models.CatalogProduct `json:"products"`
}

type adjustRequest struct {
	InventoryItemID string `json:"inventory_item_id"`
	LocationID      string `json:"location_id,omitempty"`
	Delta           int    `json:"delta"`
}

type payoutBody struct {
	CustomerID string       `json:"customer_id,omitempty"`
	Amount     models.Money `json:"amount"`
	Note       string       `json:"note,omitempty"`
}

type payoutResponse struct {
	Reference string    `json:"reference"`
	IssuedAt  time.Time `json:"issued_at"`
}

// NewStoreAPIClient creates a client. The limiter is applied before every call.
func NewStoreAPIClient(cfg StoreAPIConfig) *StoreAPIClient {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = storeAPIDefaultTimeout
	}

	return &StoreAPIClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		token:       cfg.Token,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		log:         logger.Named("store_api"),
	}
}

// FindByTitle searches products by title text
func (c *StoreAPIClient) FindByTitle(ctx context.Context, text string) ([]models.CatalogProduct, error) {
	return c.search(ctx, "title", text)
}

// FindBySKU searches products by variant SKU
func (c *StoreAPIClient) FindBySKU(ctx context.Context, sku string) ([]models.CatalogProduct, error) {
	return c.search(ctx, "sku", sku)
}

// FindByTag searches products by tag
func (c *StoreAPIClient) FindByTag(ctx context.Context, tag string) ([]models.CatalogProduct, error) {
	return c.search(ctx, "tag", tag)
}

func (c *StoreAPIClient) search(ctx context.Context, field, q string) ([]models.CatalogProduct, error) {
	params := url.Values{}
	params.Set("field", field)
	params.Set("q", q)

	var resp productsResponse
	if err := c.do(ctx, "search_"+field, http.MethodGet, "/products/search?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

// AdjustAvailable changes the available count of an inventory item at a location
func (c *StoreAPIClient) AdjustAvailable(ctx context.Context, inventoryItemID, locationID string, delta int) error {
	body := adjustRequest{InventoryItemID: inventoryItemID, LocationID: locationID, Delta: delta}
	return c.do(ctx, "inventory_adjust", http.MethodPost, "/inventory/adjust", body, nil)
}

// IssueStoreCredit credits a customer account
func (c *StoreAPIClient) IssueStoreCredit(ctx context.Context, customerID string, amount models.Money, note string) (models.PayoutReceipt, error) {
	return c.payout(ctx, models.PayoutStoreCredit, "/payouts/store-credit", payoutBody{CustomerID: customerID, Amount: amount, Note: note})
}

// IssueGiftCard creates a gift card for amount
func (c *StoreAPIClient) IssueGiftCard(ctx context.Context, amount models.Money, note string) (models.PayoutReceipt, error) {
	return c.payout(ctx, models.PayoutGiftCard, "/payouts/gift-card", payoutBody{Amount: amount, Note: note})
}

// IssueCash records a cash payout
func (c *StoreAPIClient) IssueCash(ctx context.Context, amount models.Money, note string) (models.PayoutReceipt, error) {
	return c.payout(ctx, models.PayoutCash, "/payouts/cash", payoutBody{Amount: amount, Note: note})
}

func (c *StoreAPIClient) payout(ctx context.Context, method models.PayoutMethod, path string, body payoutBody) (models.PayoutReceipt, error) {
	var resp payoutResponse
	if err := c.do(ctx, "payout_"+string(method), http.MethodPost, path, body, &resp); err != nil {
		return models.PayoutReceipt{}, err
	}
	if resp.Reference == "" {
		return models.PayoutReceipt{}, fmt.Errorf("store API %s payout returned no reference", method)
	}
	return models.PayoutReceipt{
		Method:     method,
		Reference:  resp.Reference,
		Amount:     body.Amount,
		CustomerID: body.CustomerID,
		IssuedAt:   resp.IssuedAt,
	}, nil
}

// FindOrCreateByEmail resolves the customer for an email address
func (c *StoreAPIClient) FindOrCreateByEmail(ctx context.Context, email string) (models.Customer, error) {
	var customer models.Customer
	if err := c.do(ctx, "customer_find_or_create", http.MethodPost, "/customers/find-or-create", map[string]string{"email": email}, &customer); err != nil {
		return models.Customer{}, err
	}
	if customer.ID == "" {
		return models.Customer{}, fmt.Errorf("store API returned no customer id for %q", email)
	}
	return customer, nil
}

// do sends one JSON request and decodes the response into out when it is non-nil
func (c *StoreAPIClient) do(ctx context.Context, endpoint, method, path string, body, out any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		// Wait gives up early when the deadline would pass before a token
		// frees up; hold until it does so callers see the context error
		if _, ok := ctx.Deadline(); ok && ctx.Err() == nil {
			<-ctx.Done()
		}
		if ctx.Err() != nil {
			return fmt.Errorf("rate limiter: %w", ctx.Err())
		}
		return fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.StoreAPILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StoreAPIRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("store API %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.StoreAPIRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, storeAPIErrorBodyLimit))
		c.log.Warn().Str("endpoint", endpoint).Int("status", resp.StatusCode).Msg("store API request failed")
		return fmt.Errorf("store API %s: status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	metrics.StoreAPIRequestsTotal.WithLabelValues(endpoint, "success").Inc()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}
