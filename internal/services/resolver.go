package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/codyseavey/tcg-tradein/backend/internal/logger"
	"github.com/codyseavey/tcg-tradein/backend/internal/metrics"
	"github.com/codyseavey/tcg-tradein/backend/internal/models"
)

const (
	DefaultPreviewTimeout = 3 * time.Second
	DefaultCommitTimeout  = 15 * time.Second

	minTokenLength = 2
)

var (
	denseCodePattern = regexp.MustCompile(`^[A-Z0-9]{6,}$`)
	slashPairPattern = regexp.MustCompile(`\d+/\d+`)

	orderSKUFirst   = []models.Strategy{models.StrategySKU, models.StrategyTitle, models.StrategyTag}
	orderTagFirst   = []models.Strategy{models.StrategyTag, models.StrategySKU, models.StrategyTitle}
	orderShortTitle = []models.Strategy{models.StrategyTitle, models.StrategyTag, models.StrategySKU}
	orderTitleFirst = []models.Strategy{models.StrategyTitle, models.StrategySKU, models.StrategyTag}
)

// ResolverOptions configures a Resolver
type ResolverOptions struct {
	PreviewTimeout time.Duration
	CommitTimeout  time.Duration
	// Cache is optional; without one every resolve runs the full cascade
	Cache  *ResolutionCache
	Scorer *MatchScorer
	Now    func() time.Time
	Logger *logger.Logger
}

// ResolveOptions are per-call settings
type ResolveOptions struct {
	Preview bool
	// Order overrides the heuristic strategy order
	Order []models.Strategy
	// Timeout overrides the per-strategy timeout of the mode
	Timeout   time.Duration
	CardIndex int
}

// Resolution is the outcome of resolving one card together with the steps
// that produced it
type Resolution struct {
	Result   models.ResolutionResult
	Source   CacheSource
	TimedOut bool
	Audit    []models.AuditEntry
}

// Resolver finds the catalog product for a card name by trying the SKU,
// title and tag lookups in turn
type Resolver struct {
	catalog        CatalogLookup
	cache          *ResolutionCache
	scorer         *MatchScorer
	previewTimeout time.Duration
	commitTimeout  time.Duration
	now            func() time.Time
	log            *logger.Logger
}

// NewResolver creates a resolver over catalog
func NewResolver(catalog CatalogLookup, opt ResolverOptions) *Resolver {
	if opt.PreviewTimeout <= 0 {
		opt.PreviewTimeout = DefaultPreviewTimeout
	}
	if opt.CommitTimeout <= 0 {
		opt.CommitTimeout = DefaultCommitTimeout
	}
	if opt.Scorer == nil {
		opt.Scorer = NewMatchScorer(DefaultMinScore, DefaultMaxCandidates)
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.Logger == nil {
		opt.Logger = logger.Named("resolver")
	}
	return &Resolver{
		catalog:        catalog,
		cache:          opt.Cache,
		scorer:         opt.Scorer,
		previewTimeout: opt.PreviewTimeout,
		commitTimeout:  opt.CommitTimeout,
		now:            opt.Now,
		log:            opt.Logger,
	}
}

// StrategyOrder picks the lookup order for a query from its shape
func StrategyOrder(q models.CardQuery) []models.Strategy {
	raw := strings.TrimSpace(q.RawName)
	dense := strings.NewReplacer("-", "", "_", "").Replace(raw)

	switch {
	case strings.TrimSpace(q.SuppliedSKU) != "":
		return orderSKUFirst
	case denseCodePattern.MatchString(dense) && strings.ContainsAny(dense, "0123456789"):
		return orderSKUFirst
	case strings.Contains(raw, "#") || slashPairPattern.MatchString(raw):
		return orderTagFirst
	case utf8.RuneCountInString(raw) < 10:
		return orderShortTitle
	default:
		return orderTitleFirst
	}
}

// Resolve finds the product for q. It never returns an error: timeouts and
// catalog failures end as a not-found result with the cause in the audit trail.
func (r *Resolver) Resolve(ctx context.Context, q models.CardQuery, opt ResolveOptions) Resolution {
	tokens := Normalize(q.RawName)
	order := r.order(q, opt.Order)
	timeout := opt.Timeout
	if timeout <= 0 {
		timeout = r.commitTimeout
		if opt.Preview {
			timeout = r.previewTimeout
		}
	}

	if r.cache == nil {
		res, audit, _, timedOut := r.cascade(ctx, q, tokens, order, timeout, opt.CardIndex)
		metrics.ResolutionsTotal.WithLabelValues(string(res.Strategy)).Inc()
		return Resolution{Result: res, Source: SourceLoaded, TimedOut: timedOut, Audit: audit}
	}

	var (
		mu      sync.Mutex
		loadLog []models.AuditEntry
	)
	key := CacheKey(tokens.Full, q.SuppliedSKU, opt.Preview)
	start := r.now()

	loaded, source, err := r.cache.Do(ctx, key, func(ctx context.Context) Loaded {
		res, audit, cacheable, timedOut := r.cascade(ctx, q, tokens, order, timeout, opt.CardIndex)
		mu.Lock()
		loadLog = audit
		mu.Unlock()
		return Loaded{Result: res, Cacheable: cacheable, TimedOut: timedOut}
	})
	res := loaded.Result

	entry := models.AuditEntry{
		CardIndex: opt.CardIndex,
		CardName:  q.RawName,
		Token:     key,
		At:        start,
		ElapsedMS: r.now().Sub(start).Milliseconds(),
	}

	switch {
	case err != nil:
		entry.Outcome = models.OutcomeTimeout
		entry.Error = err.Error()
		return Resolution{Result: models.NotFound(), TimedOut: true, Audit: []models.AuditEntry{entry}}
	case source == SourceHit:
		entry.Strategy = res.Strategy
		entry.Outcome = models.OutcomeCacheHit
		return Resolution{Result: res, Source: source, Audit: []models.AuditEntry{entry}}
	case source == SourceCoalesced:
		entry.Strategy = res.Strategy
		entry.Outcome = models.OutcomeCoalesced
		audit := []models.AuditEntry{entry}
		if loaded.TimedOut {
			timeoutEntry := entry
			timeoutEntry.Outcome = models.OutcomeTimeout
			timeoutEntry.Error = fmt.Errorf("%w: shared lookup for %q timed out", ErrResolutionTimeout, key).Error()
			audit = append(audit, timeoutEntry)
		}
		return Resolution{Result: res, Source: source, TimedOut: loaded.TimedOut, Audit: audit}
	}

	metrics.ResolutionsTotal.WithLabelValues(string(res.Strategy)).Inc()
	mu.Lock()
	defer mu.Unlock()
	return Resolution{Result: res, Source: source, TimedOut: loaded.TimedOut, Audit: loadLog}
}

func (r *Resolver) order(q models.CardQuery, explicit []models.Strategy) []models.Strategy {
	if len(explicit) == 0 {
		return StrategyOrder(q)
	}
	seen := map[models.Strategy]bool{}
	out := make([]models.Strategy, 0, len(explicit))
	for _, s := range explicit {
		if s.IsLookup() && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return StrategyOrder(q)
	}
	return out
}

// cascade tries each strategy in order and stops at the first hit. Hits are
// cacheable; a miss is cacheable only when every strategy ran to completion
// without a timeout or catalog error.
func (r *Resolver) cascade(ctx context.Context, q models.CardQuery, tokens NormalizedTokens, order []models.Strategy, timeout time.Duration, idx int) (models.ResolutionResult, []models.AuditEntry, bool, bool) {
	var audit []models.AuditEntry
	cacheable, timedOut := true, false

	for _, s := range order {
		if err := ctx.Err(); err != nil {
			// The caller gave up; record it once and stop
			if len(audit) == 0 || audit[len(audit)-1].Outcome != models.OutcomeTimeout {
				audit = append(audit, models.AuditEntry{
					CardIndex: idx,
					CardName:  q.RawName,
					Strategy:  s,
					Outcome:   models.OutcomeTimeout,
					Error:     fmt.Errorf("%w: %v", ErrResolutionTimeout, err).Error(),
					At:        r.now(),
				})
			}
			return models.NotFound(), audit, false, true
		}

		res, entry := r.tryStrategy(ctx, s, q, tokens, timeout, idx)
		audit = append(audit, entry)
		metrics.StrategyAttemptsTotal.WithLabelValues(string(s), string(entry.Outcome)).Inc()

		switch entry.Outcome {
		case models.OutcomeHit:
			return res, audit, true, timedOut
		case models.OutcomeTimeout:
			cacheable, timedOut = false, true
		case models.OutcomeCatalogError:
			cacheable = false
		}
	}

	return models.NotFound(), audit, cacheable, timedOut
}

func (r *Resolver) tryStrategy(ctx context.Context, s models.Strategy, q models.CardQuery, tokens NormalizedTokens, timeout time.Duration, idx int) (models.ResolutionResult, models.AuditEntry) {
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := r.now()
	observe := time.Now()
	entry := models.AuditEntry{CardIndex: idx, CardName: q.RawName, Strategy: s, Outcome: models.OutcomeMiss, At: start}
	done := func(res models.ResolutionResult) (models.ResolutionResult, models.AuditEntry) {
		entry.ElapsedMS = r.now().Sub(start).Milliseconds()
		metrics.StrategyDuration.WithLabelValues(string(s)).Observe(time.Since(observe).Seconds())
		return res, entry
	}

	candidates := candidateTokens(s, q, tokens)
	var (
		failed  int
		lastErr error
	)
	for _, tok := range candidates {
		products, err := r.lookup(sctx, s, tok)
		if err != nil {
			if sctx.Err() != nil {
				entry.Outcome = models.OutcomeTimeout
				entry.Token = tok
				entry.Error = fmt.Errorf("%w: %s lookup for %q: %v", ErrResolutionTimeout, s, tok, sctx.Err()).Error()
				r.log.Debug().Str("strategy", string(s)).Str("token", tok).Msg("strategy timed out")
				return done(models.NotFound())
			}
			failed++
			lastErr = err
			r.log.Warn().Err(err).Str("strategy", string(s)).Str("token", tok).Msg("catalog lookup failed")
			continue
		}

		if res, ok := r.pick(s, tok, tokens, products); ok {
			entry.Outcome = models.OutcomeHit
			entry.Token = tok
			return done(res)
		}
	}

	if len(candidates) > 0 && failed == len(candidates) {
		entry.Outcome = models.OutcomeCatalogError
		entry.Error = fmt.Errorf("%w: %v", ErrCatalogUnavailable, lastErr).Error()
	}
	return done(models.NotFound())
}

// lookup runs one catalog call and gives up when ctx ends even if the
// catalog does not
func (r *Resolver) lookup(ctx context.Context, s models.Strategy, token string) ([]models.CatalogProduct, error) {
	metrics.CatalogRequestsTotal.WithLabelValues(string(s)).Inc()

	type reply struct {
		products []models.CatalogProduct
		err      error
	}
	ch := make(chan reply, 1)
	go func() {
		var rep reply
		switch s {
		case models.StrategySKU:
			rep.products, rep.err = r.catalog.FindBySKU(ctx, token)
		case models.StrategyTitle:
			rep.products, rep.err = r.catalog.FindByTitle(ctx, token)
		case models.StrategyTag:
			rep.products, rep.err = r.catalog.FindByTag(ctx, token)
		default:
			rep.err = fmt.Errorf("unknown strategy %q", s)
		}
		ch <- rep
	}()

	select {
	case rep := <-ch:
		return rep.products, rep.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// pick chooses one product from a lookup response. Several products are
// ranked by the scorer and the best one at or above the minimum score wins.
func (r *Resolver) pick(s models.Strategy, token string, tokens NormalizedTokens, products []models.CatalogProduct) (models.ResolutionResult, bool) {
	usable := make([]models.CatalogProduct, 0, len(products))
	for _, p := range products {
		if len(p.Variants) > 0 {
			usable = append(usable, p)
		}
	}

	var (
		chosen models.CatalogProduct
		score  *float64
	)
	switch len(usable) {
	case 0:
		return models.ResolutionResult{}, false
	case 1:
		chosen = usable[0]
	default:
		shortlist := r.scorer.Shortlist(tokens.Display, usable)
		if len(shortlist) == 0 {
			return models.ResolutionResult{}, false
		}
		chosen = shortlist[0].Product
		sc := shortlist[0].Score
		score = &sc
	}

	product := chosen
	variant := product.DefaultVariant()
	if s == models.StrategySKU {
		if v := product.VariantBySKU(token); v != nil {
			variant = v
		}
	}
	return models.ResolutionResult{
		Found:    true,
		Product:  &product,
		Variant:  variant,
		Strategy: s,
		Score:    score,
	}, true
}

// candidateTokens lists the search strings for one strategy, skipping
// duplicates and anything shorter than two characters
func candidateTokens(s models.Strategy, q models.CardQuery, tokens NormalizedTokens) []string {
	var raw []string
	switch s {
	case models.StrategyTitle:
		raw = append([]string{tokens.Display}, tokens.Tokens...)
	case models.StrategySKU:
		raw = append([]string{strings.TrimSpace(q.SuppliedSKU)}, tokens.Tokens...)
	case models.StrategyTag:
		raw = tokens.Tokens
	}

	seen := map[string]bool{}
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if utf8.RuneCountInString(t) < minTokenLength || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
