package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/codyseavey/tcg-tradein/backend/internal/logger"
	"github.com/codyseavey/tcg-tradein/backend/internal/metrics"
	"github.com/codyseavey/tcg-tradein/backend/internal/models"
)

const (
	DefaultPayoutCeiling = "13500.00"
	DefaultBatchTimeout  = 60 * time.Second
	DefaultConcurrency   = 4
)

// BatchRequest is one customer submission
type BatchRequest struct {
	Cards         []models.CardQuery    `json:"cards"`
	Mode          models.BatchMode      `json:"mode"`
	Payout        *models.PayoutRequest `json:"payout,omitempty"`
	OverrideTotal *models.Money         `json:"override_total,omitempty"`
}

// TradeDeps are the side-effecting collaborators of a commit-mode batch. Any
// of them may be nil in an estimate-only deployment.
type TradeDeps struct {
	Inventory   InventoryAdjuster
	Payouts     PayoutIssuer
	Customers   CustomerDirectory
	Submissions SubmissionStore
}

// TradeOptions configures a TradeProcessor
type TradeOptions struct {
	PayoutCeiling models.Money
	// SkipCeilingCheck accepts an override above PayoutCeiling. A negative
	// override is rejected either way.
	SkipCeilingCheck bool
	BatchTimeout     time.Duration
	Concurrency      int
	LocationID       string
	Now              func() time.Time
	NewID            func() string
	Logger           *logger.Logger
}

// TradeProcessor prices a batch of cards and, in commit mode, takes them into
// inventory and pays the customer
type TradeProcessor struct {
	resolver    *Resolver
	rates       *RateSchedule
	inventory   InventoryAdjuster
	payouts     *PayoutDispatcher
	submissions SubmissionStore
	opt         TradeOptions
	log         *logger.Logger
}

// NewTradeProcessor creates a processor
func NewTradeProcessor(resolver *Resolver, rates *RateSchedule, deps TradeDeps, opt TradeOptions) *TradeProcessor {
	if opt.PayoutCeiling.IsZero() {
		opt.PayoutCeiling = models.MustMoney(DefaultPayoutCeiling)
	}
	if opt.BatchTimeout <= 0 {
		opt.BatchTimeout = DefaultBatchTimeout
	}
	if opt.Concurrency <= 0 {
		opt.Concurrency = DefaultConcurrency
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.NewID == nil {
		opt.NewID = uuid.NewString
	}
	if opt.Logger == nil {
		opt.Logger = logger.Named("trade")
	}
	if rates == nil {
		rates = NewRateSchedule()
	}
	return &TradeProcessor{
		resolver:    resolver,
		rates:       rates,
		inventory:   deps.Inventory,
		payouts:     NewPayoutDispatcher(deps.Payouts, deps.Customers),
		submissions: deps.Submissions,
		opt:         opt,
		log:         opt.Logger,
	}
}

// Validate checks a request without touching the catalog
func (p *TradeProcessor) Validate(req BatchRequest) error {
	if req.Mode != models.ModeEstimate && req.Mode != models.ModeCommit {
		return invalid("mode", "must be %q or %q", models.ModeEstimate, models.ModeCommit)
	}
	if len(req.Cards) == 0 {
		return invalid("cards", "at least one card is required")
	}
	for i, c := range req.Cards {
		field := fmt.Sprintf("cards[%d]", i)
		if strings.TrimSpace(c.RawName) == "" && strings.TrimSpace(c.SuppliedSKU) == "" {
			return invalid(field+".card_name", "card name or sku is required")
		}
		if c.Quantity < 0 {
			return invalid(field+".quantity", "must not be negative, got %d", c.Quantity)
		}
		if !c.Condition.IsValid() {
			return invalid(field+".condition", "unknown condition %q", c.Condition)
		}
	}

	if req.OverrideTotal != nil {
		if req.OverrideTotal.IsNegative() {
			return invalid("override_total", "must not be negative, got %s", req.OverrideTotal)
		}
		if !p.opt.SkipCeilingCheck && req.OverrideTotal.GreaterThan(p.opt.PayoutCeiling.Decimal) {
			return invalid("override_total", "%s exceeds the payout ceiling of %s", req.OverrideTotal, p.opt.PayoutCeiling)
		}
	}

	if req.Mode == models.ModeCommit {
		if req.Payout == nil || req.Payout.Method == "" {
			return invalid("payout.method", "required in commit mode")
		}
		if !req.Payout.Method.IsValid() {
			return invalid("payout.method", "unknown payout method %q", req.Payout.Method)
		}
		if req.Payout.Method == models.PayoutStoreCredit && !strings.Contains(req.Payout.CustomerEmail, "@") {
			return invalid("payout.customer_email", "a customer email is required for store credit")
		}
	}
	return nil
}

// ProcessBatch resolves and prices every card. Lines come back in input
// order. Estimate mode never adjusts inventory or pays out. In commit mode a
// payout failure returns the partial result together with a *PayoutError.
func (p *TradeProcessor) ProcessBatch(ctx context.Context, req BatchRequest) (*models.BatchResult, error) {
	if err := p.Validate(req); err != nil {
		return nil, err
	}

	started := time.Now()
	cards := make([]models.CardQuery, len(req.Cards))
	for i, c := range req.Cards {
		if c.Quantity == 0 {
			c.Quantity = 1
		}
		cards[i] = c
	}

	result := &models.BatchResult{
		Mode:      req.Mode,
		State:     models.StateInit,
		CreatedAt: p.opt.Now(),
	}
	if req.Mode == models.ModeCommit {
		result.SubmissionID = p.opt.NewID()
	}
	log := p.log.With().Str("mode", string(req.Mode)).Str("submission_id", result.SubmissionID).Int("cards", len(cards)).Logger()

	result.State = models.StateResolving
	resolutions, batchTimedOut := p.resolveAll(ctx, cards, req.Mode == models.ModeEstimate)

	var audit []models.AuditEntry
	result.Lines = make([]models.TradeLine, len(cards))
	for i, card := range cards {
		res := resolutions[i]
		if res == nil {
			audit = append(audit, models.AuditEntry{
				CardIndex: i,
				CardName:  card.RawName,
				Outcome:   models.OutcomeTimeout,
				Error:     fmt.Errorf("%w: batch deadline reached before the card was resolved", ErrResolutionTimeout).Error(),
				At:        p.opt.Now(),
			})
			result.Lines[i] = zeroLine(i, card, models.LineTimeout)
			continue
		}
		audit = append(audit, res.Audit...)
		result.Lines[i] = p.valuate(i, card, res)
	}
	if batchTimedOut {
		audit = append(audit, models.AuditEntry{
			CardIndex: -1,
			Outcome:   models.OutcomeBatchTimeout,
			Error:     fmt.Errorf("%w: batch exceeded %s", ErrResolutionTimeout, p.opt.BatchTimeout).Error(),
			At:        p.opt.Now(),
		})
		log.Warn().Dur("timeout", p.opt.BatchTimeout).Msg("batch deadline reached")
	}

	for _, l := range result.Lines {
		result.SuggestedTotal = result.SuggestedTotal.Add(l.LineSuggested)
		result.MaximumTotal = result.MaximumTotal.Add(l.LineMaximum)
		result.RetailTotal = result.RetailTotal.Add(l.LineRetail)
		metrics.TradeLinesTotal.WithLabelValues(string(l.Status)).Inc()
	}
	result.FinalPayout = result.SuggestedTotal
	if req.OverrideTotal != nil {
		result.FinalPayout = models.NewMoney(req.OverrideTotal.Decimal)
	}
	result.State = models.StateValuated

	var err error
	if req.Mode == models.ModeEstimate {
		result.State = models.StateEstimateDone
	} else {
		audit, err = p.commit(ctx, req, result, resolutions, audit)
	}

	sort.SliceStable(audit, func(i, j int) bool { return audit[i].At.Before(audit[j].At) })
	result.AuditLog = audit

	if req.Mode == models.ModeCommit && p.submissions != nil {
		if serr := p.submissions.SaveSubmission(ctx, result); serr != nil {
			log.Error().Err(serr).Msg("failed to save submission")
		}
	}

	metrics.BatchesTotal.WithLabelValues(string(req.Mode), string(result.State)).Inc()
	metrics.BatchDuration.WithLabelValues(string(req.Mode)).Observe(time.Since(started).Seconds())
	log.Info().
		Str("state", string(result.State)).
		Str("suggested_total", result.SuggestedTotal.String()).
		Str("final_payout", result.FinalPayout.String()).
		Dur("took", time.Since(started)).
		Msg("batch processed")

	return result, err
}

// resolveAll runs card resolutions in parallel under the batch deadline. A
// nil entry means the card never started before the deadline.
func (p *TradeProcessor) resolveAll(ctx context.Context, cards []models.CardQuery, preview bool) ([]*Resolution, bool) {
	bctx, cancel := context.WithTimeout(ctx, p.opt.BatchTimeout)
	defer cancel()

	resolutions := make([]*Resolution, len(cards))
	var g errgroup.Group
	g.SetLimit(p.opt.Concurrency)
	for i := range cards {
		g.Go(func() error {
			if bctx.Err() != nil {
				return nil
			}
			res := p.resolver.Resolve(bctx, cards[i], ResolveOptions{Preview: preview, CardIndex: i})
			resolutions[i] = &res
			return nil
		})
	}
	_ = g.Wait()

	return resolutions, bctx.Err() != nil
}

func (p *TradeProcessor) valuate(i int, card models.CardQuery, res *Resolution) models.TradeLine {
	r := res.Result
	if !r.Found || r.Variant == nil || r.Product == nil {
		status := models.LineUnmatched
		if res.TimedOut {
			status = models.LineTimeout
		}
		return zeroLine(i, card, status)
	}

	price := r.Variant.Price
	quote := p.rates.Quote(price)
	return models.TradeLine{
		Index:          i,
		CardName:       card.RawName,
		Condition:      card.Condition,
		MatchedTitle:   r.Product.Title,
		ProductID:      r.Product.ID,
		SKU:            r.Variant.SKU,
		Quantity:       card.Quantity,
		RetailPrice:    price,
		SuggestedValue: quote.SuggestedValue,
		MaximumValue:   quote.MaximumValue,
		LineRetail:     price.Times(card.Quantity),
		LineSuggested:  quote.SuggestedValue.Times(card.Quantity),
		LineMaximum:    quote.MaximumValue.Times(card.Quantity),
		StrategyUsed:   r.Strategy,
		Score:          r.Score,
		Status:         models.LineMatched,
	}
}

func zeroLine(i int, card models.CardQuery, status models.LineStatus) models.TradeLine {
	return models.TradeLine{
		Index:        i,
		CardName:     card.RawName,
		Condition:    card.Condition,
		Quantity:     card.Quantity,
		StrategyUsed: models.StrategyNone,
		Status:       status,
	}
}

// commit adjusts inventory for every matched line and then pays out.
// Inventory failures are recorded and skipped; a payout failure is returned
// and inventory already adjusted stays adjusted.
func (p *TradeProcessor) commit(ctx context.Context, req BatchRequest, result *models.BatchResult, resolutions []*Resolution, audit []models.AuditEntry) ([]models.AuditEntry, error) {
	result.State = models.StatePayoutPending

	for i, line := range result.Lines {
		if line.Status != models.LineMatched {
			continue
		}
		itemID := resolutions[i].Result.Variant.InventoryItemID
		if p.inventory == nil || itemID == "" {
			p.log.Debug().Int("line", i).Msg("no inventory item to adjust")
			continue
		}

		at := p.opt.Now()
		entry := models.AuditEntry{CardIndex: i, CardName: line.CardName, Token: itemID, Outcome: models.OutcomeInventoryOK, At: at}
		if err := p.inventory.AdjustAvailable(ctx, itemID, p.opt.LocationID, line.Quantity); err != nil {
			entry.Outcome = models.OutcomeInventoryError
			entry.Error = err.Error()
			metrics.InventoryAdjustmentsTotal.WithLabelValues("failed").Inc()
			p.log.Error().Err(err).Str("inventory_item_id", itemID).Int("delta", line.Quantity).Msg("inventory adjustment failed")
		} else {
			metrics.InventoryAdjustmentsTotal.WithLabelValues("success").Inc()
		}
		entry.ElapsedMS = p.opt.Now().Sub(at).Milliseconds()
		audit = append(audit, entry)
	}

	if result.FinalPayout.IsZero() {
		audit = append(audit, models.AuditEntry{CardIndex: -1, Outcome: models.OutcomePayoutSkipped, Token: string(req.Payout.Method), At: p.opt.Now()})
		result.State = models.StatePayoutDone
		return audit, nil
	}

	at := p.opt.Now()
	receipt, err := p.payouts.Issue(ctx, *req.Payout, result.FinalPayout)
	entry := models.AuditEntry{CardIndex: -1, Token: string(req.Payout.Method), At: at, ElapsedMS: p.opt.Now().Sub(at).Milliseconds()}
	if err != nil {
		entry.Outcome = models.OutcomePayoutFailed
		entry.Error = err.Error()
		result.State = models.StatePayoutFailed
		return append(audit, entry), err
	}

	entry.Outcome = models.OutcomePayoutIssued
	result.Payout = &receipt
	result.State = models.StatePayoutDone
	return append(audit, entry), nil
}
