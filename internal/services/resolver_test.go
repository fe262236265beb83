package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codyseavey/tcg-tradein/backend/internal/logger"
	"github.com/codyseavey/tcg-tradein/backend/internal/models"
)

func newTestResolver(t *testing.T, catalog CatalogLookup, withCache bool) *Resolver {
	t.Helper()
	opt := ResolverOptions{
		PreviewTimeout: 200 * time.Millisecond,
		CommitTimeout:  200 * time.Millisecond,
		Logger:         logger.Nop(),
	}
	if withCache {
		opt.Cache = newTestCache(t, CacheOptions{})
	}
	return NewResolver(catalog, opt)
}

func outcomes(audit []models.AuditEntry) []models.AuditOutcome {
	out := make([]models.AuditOutcome, len(audit))
	for i, e := range audit {
		out[i] = e.Outcome
	}
	return out
}

func TestStrategyOrder(t *testing.T) {
	sku := []models.Strategy{models.StrategySKU, models.StrategyTitle, models.StrategyTag}
	tag := []models.Strategy{models.StrategyTag, models.StrategySKU, models.StrategyTitle}
	short := []models.Strategy{models.StrategyTitle, models.StrategyTag, models.StrategySKU}
	title := []models.Strategy{models.StrategyTitle, models.StrategySKU, models.StrategyTag}

	tests := []struct {
		name  string
		query models.CardQuery
		want  []models.Strategy
	}{
		{"dense code", models.CardQuery{RawName: "EB03-026"}, sku},
		{"dense code with underscore", models.CardQuery{RawName: "OP01_120"}, sku},
		{"supplied sku", models.CardQuery{RawName: "Lightning Bolt", SuppliedSKU: "M10-146"}, sku},
		{"uppercase word without digits", models.CardQuery{RawName: "LIGHTNING"}, short},
		{"lowercase code is not dense", models.CardQuery{RawName: "eb03026"}, short},
		{"hash", models.CardQuery{RawName: "Pikachu #25"}, tag},
		{"number pair", models.CardQuery{RawName: "Charizard 4/102"}, tag},
		{"short name", models.CardQuery{RawName: "Pikachu"}, short},
		{"long name", models.CardQuery{RawName: "Lightning Bolt"}, title},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StrategyOrder(tt.query))
		})
	}
}

func TestResolver_HeuristicOrderDecidesWinner(t *testing.T) {
	catalog := newFakeCatalog()
	titleHit := single("title", "Lightning Bolt", "M10-146", "1.00")
	skuHit := single("sku", "Lightning Bolt (Promo)", "LB-PROMO", "5.00")
	tagHit := single("tag", "Lightning Bolt (Foil)", "LB-FOIL", "9.00")

	catalog.byTitle["Lightning Bolt"] = []models.CatalogProduct{titleHit}
	catalog.bySKU["LightningBolt"] = []models.CatalogProduct{skuHit}
	catalog.byTag["LightningBolt"] = []models.CatalogProduct{tagHit}

	catalog.byTitle["Charizard 4/102"] = []models.CatalogProduct{titleHit}
	catalog.byTag["4/102"] = []models.CatalogProduct{tagHit}

	catalog.byTitle["EB03-026"] = []models.CatalogProduct{titleHit}
	catalog.bySKU["EB03026"] = []models.CatalogProduct{skuHit}

	r := newTestResolver(t, catalog, false)

	tests := []struct {
		raw      string
		strategy models.Strategy
		product  string
	}{
		{"Lightning Bolt", models.StrategyTitle, "title"},
		{"Charizard 4/102", models.StrategyTag, "tag"},
		{"EB03-026", models.StrategySKU, "sku"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			res := r.Resolve(context.Background(), models.CardQuery{RawName: tt.raw}, ResolveOptions{Preview: true})
			require.True(t, res.Result.Found)
			assert.Equal(t, tt.strategy, res.Result.Strategy)
			assert.Equal(t, tt.product, res.Result.Product.ID)
			require.Len(t, res.Audit, 1)
			assert.Equal(t, models.OutcomeHit, res.Audit[0].Outcome)
		})
	}
}

func TestResolver_FallsThroughStrategies(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.bySKU["LightningBolt"] = []models.CatalogProduct{single("1", "Lightning Bolt", "LightningBolt", "5.99")}

	r := newTestResolver(t, catalog, false)
	res := r.Resolve(context.Background(), models.CardQuery{RawName: "Lightning Bolt"}, ResolveOptions{})

	require.True(t, res.Result.Found)
	assert.Equal(t, models.StrategySKU, res.Result.Strategy)
	assert.Equal(t, []models.AuditOutcome{models.OutcomeMiss, models.OutcomeHit}, outcomes(res.Audit))
	assert.Equal(t, []string{"title:Lightning Bolt", "title:LightningBolt", "sku:LightningBolt"}, catalog.Calls())
}

func TestResolver_NotFound(t *testing.T) {
	r := newTestResolver(t, newFakeCatalog(), false)
	res := r.Resolve(context.Background(), models.CardQuery{RawName: "Nonexistent Card"}, ResolveOptions{})

	assert.False(t, res.Result.Found)
	assert.Equal(t, models.StrategyNone, res.Result.Strategy)
	assert.Nil(t, res.Result.Product)
	assert.False(t, res.TimedOut)
	assert.Equal(t, []models.AuditOutcome{models.OutcomeMiss, models.OutcomeMiss, models.OutcomeMiss}, outcomes(res.Audit))
}

func TestResolver_StrategyTimeoutMovesOn(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.block["title:*"] = true
	catalog.bySKU["LightningBolt"] = []models.CatalogProduct{single("1", "Lightning Bolt", "LightningBolt", "5.99")}

	r := newTestResolver(t, catalog, false)
	res := r.Resolve(context.Background(), models.CardQuery{RawName: "Lightning Bolt"}, ResolveOptions{Timeout: 30 * time.Millisecond})

	require.True(t, res.Result.Found)
	assert.Equal(t, models.StrategySKU, res.Result.Strategy)
	assert.True(t, res.TimedOut)
	require.Len(t, res.Audit, 2)
	assert.Equal(t, models.OutcomeTimeout, res.Audit[0].Outcome)
	assert.Equal(t, models.StrategyTitle, res.Audit[0].Strategy)
	assert.Contains(t, res.Audit[0].Error, ErrResolutionTimeout.Error())
}

func TestResolver_CatalogIgnoringContextCannotBlock(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.stall["title:*"] = true
	catalog.stall["sku:*"] = true
	catalog.stall["tag:*"] = true
	defer close(catalog.release)

	r := newTestResolver(t, catalog, false)

	start := time.Now()
	res := r.Resolve(context.Background(), models.CardQuery{RawName: "Lightning Bolt"}, ResolveOptions{Timeout: 20 * time.Millisecond})

	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, res.Result.Found)
	assert.True(t, res.TimedOut)
	assert.Equal(t, []models.AuditOutcome{models.OutcomeTimeout, models.OutcomeTimeout, models.OutcomeTimeout}, outcomes(res.Audit))
}

func TestResolver_CatalogErrorsAreNotFoundAndNotCached(t *testing.T) {
	catalog := newFakeCatalog()
	boom := errors.New("502 bad gateway")
	catalog.fail["title:*"] = boom
	catalog.fail["sku:*"] = boom
	catalog.fail["tag:*"] = boom

	r := newTestResolver(t, catalog, true)
	q := models.CardQuery{RawName: "Lightning Bolt"}

	res := r.Resolve(context.Background(), q, ResolveOptions{Preview: true})
	assert.False(t, res.Result.Found)
	assert.False(t, res.TimedOut)
	assert.Equal(t, []models.AuditOutcome{models.OutcomeCatalogError, models.OutcomeCatalogError, models.OutcomeCatalogError}, outcomes(res.Audit))
	assert.Contains(t, res.Audit[0].Error, ErrCatalogUnavailable.Error())

	first := len(catalog.Calls())
	r.Resolve(context.Background(), q, ResolveOptions{Preview: true})
	assert.Equal(t, 2*first, len(catalog.Calls()), "failed resolution must not be cached")
}

func TestResolver_CachedResolutionIsIdempotent(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.byTitle["Lightning Bolt"] = []models.CatalogProduct{single("1", "Lightning Bolt", "M10-146", "5.99")}

	r := newTestResolver(t, catalog, true)
	q := models.CardQuery{RawName: "Lightning Bolt"}

	first := r.Resolve(context.Background(), q, ResolveOptions{Preview: true})
	second := r.Resolve(context.Background(), q, ResolveOptions{Preview: true})

	assert.Equal(t, 1, len(catalog.Calls()))
	assert.Equal(t, first.Result, second.Result)
	assert.Equal(t, SourceLoaded, first.Source)
	assert.Equal(t, SourceHit, second.Source)
	assert.Equal(t, []models.AuditOutcome{models.OutcomeCacheHit}, outcomes(second.Audit))

	// Same name with different spacing shares the cache entry
	r.Resolve(context.Background(), models.CardQuery{RawName: "  Lightning   Bolt "}, ResolveOptions{Preview: true})
	assert.Equal(t, 1, len(catalog.Calls()))

	// Committed resolutions are cached separately
	r.Resolve(context.Background(), q, ResolveOptions{})
	assert.Equal(t, 2, len(catalog.Calls()))
}

func TestResolver_CoalescesConcurrentResolutions(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.byTitle["Lightning Bolt"] = []models.CatalogProduct{single("1", "Lightning Bolt", "M10-146", "5.99")}
	catalog.gate = make(chan struct{})

	r := newTestResolver(t, catalog, true)
	q := models.CardQuery{RawName: "Lightning Bolt"}

	const callers = 8
	results := make([]Resolution, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Resolve(context.Background(), q, ResolveOptions{CardIndex: i})
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(catalog.gate)
	wg.Wait()

	assert.Equal(t, 1, catalog.CallCount("title:"))
	for _, res := range results {
		require.True(t, res.Result.Found)
		assert.Equal(t, "1", res.Result.Product.ID)
	}
}

func TestResolver_SharedLookupOutlivesFirstCaller(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.byTitle["Lightning Bolt"] = []models.CatalogProduct{single("1", "Lightning Bolt", "M10-146", "5.99")}
	catalog.delay["title:Lightning Bolt"] = 80 * time.Millisecond

	r := newTestResolver(t, catalog, true)
	q := models.CardQuery{RawName: "Lightning Bolt"}

	leaderCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	leader := make(chan Resolution, 1)
	go func() { leader <- r.Resolve(leaderCtx, q, ResolveOptions{CardIndex: 0}) }()
	require.Eventually(t, func() bool { return catalog.CallCount("title:") == 1 }, time.Second, time.Millisecond)

	waiter := r.Resolve(context.Background(), q, ResolveOptions{CardIndex: 1})

	t.Run("caller with a short deadline times out", func(t *testing.T) {
		res := <-leader
		assert.False(t, res.Result.Found)
		assert.True(t, res.TimedOut)
		assert.Equal(t, []models.AuditOutcome{models.OutcomeTimeout}, outcomes(res.Audit))
	})

	t.Run("caller without a deadline gets the shared result", func(t *testing.T) {
		require.True(t, waiter.Result.Found)
		assert.Equal(t, "1", waiter.Result.Product.ID)
		assert.Equal(t, SourceCoalesced, waiter.Source)
		assert.False(t, waiter.TimedOut)
	})

	assert.Equal(t, 1, catalog.CallCount("title:"))
	again := r.Resolve(context.Background(), q, ResolveOptions{})
	assert.Equal(t, SourceHit, again.Source)
}

func TestResolver_CoalescedCallerSeesTimeout(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.block["title:*"] = true
	catalog.block["sku:*"] = true
	catalog.block["tag:*"] = true

	r := newTestResolver(t, catalog, true)
	q := models.CardQuery{RawName: "Lightning Bolt"}
	opt := ResolveOptions{Timeout: 20 * time.Millisecond}

	leader := make(chan Resolution, 1)
	go func() { leader <- r.Resolve(context.Background(), q, opt) }()
	require.Eventually(t, func() bool { return len(catalog.Calls()) > 0 }, time.Second, time.Millisecond)

	waiter := r.Resolve(context.Background(), q, opt)
	first := <-leader

	assert.True(t, first.TimedOut)
	assert.Equal(t, SourceLoaded, first.Source)

	assert.False(t, waiter.Result.Found)
	assert.True(t, waiter.TimedOut)
	assert.Equal(t, SourceCoalesced, waiter.Source)
	assert.Equal(t, []models.AuditOutcome{models.OutcomeCoalesced, models.OutcomeTimeout}, outcomes(waiter.Audit))
	assert.Contains(t, waiter.Audit[1].Error, ErrResolutionTimeout.Error())
}

func TestResolver_ScoresMultipleCandidates(t *testing.T) {
	catalog := newFakeCatalog()
	box := single("box", "Charizard Booster Box", "BOX-1", "140.00")
	box.ProductType = "Sealed Booster Box"
	card := single("card", "Charizard 4/102 Base Set", "BS-4", "350.00")
	catalog.byTag["4/102"] = []models.CatalogProduct{box, card}

	r := newTestResolver(t, catalog, false)
	res := r.Resolve(context.Background(), models.CardQuery{RawName: "Charizard 4/102"}, ResolveOptions{})

	require.True(t, res.Result.Found)
	assert.Equal(t, "card", res.Result.Product.ID)
	require.NotNil(t, res.Result.Score)
	assert.Equal(t, 1.0, *res.Result.Score)
}

func TestResolver_LowScoresAreAMiss(t *testing.T) {
	catalog := newFakeCatalog()
	a := single("a", "Booster Box", "A", "1.00")
	a.ProductType = "Sealed"
	b := single("b", "Booster Pack", "B", "1.00")
	b.ProductType = "Sealed"
	catalog.byTitle["Lightning Bolt"] = []models.CatalogProduct{a, b}

	r := newTestResolver(t, catalog, false)
	res := r.Resolve(context.Background(), models.CardQuery{RawName: "Lightning Bolt"}, ResolveOptions{Order: []models.Strategy{models.StrategyTitle}})

	assert.False(t, res.Result.Found)
}

func TestResolver_SKUStrategyPicksMatchingVariant(t *testing.T) {
	catalog := newFakeCatalog()
	p := models.CatalogProduct{
		ID:    "luffy",
		Title: "Monkey D. Luffy",
		Variants: []models.Variant{
			{Title: "Regular", SKU: "OP01-120", Price: models.MustMoney("10.00")},
			{Title: "Parallel", SKU: "OP01-120-P", Price: models.MustMoney("80.00")},
		},
	}
	catalog.bySKU["OP01-120-P"] = []models.CatalogProduct{p}

	r := newTestResolver(t, catalog, false)
	res := r.Resolve(context.Background(), models.CardQuery{RawName: "Luffy parallel", SuppliedSKU: "OP01-120-P"}, ResolveOptions{})

	require.True(t, res.Result.Found)
	assert.Equal(t, models.StrategySKU, res.Result.Strategy)
	assert.Equal(t, "OP01-120-P", res.Result.Variant.SKU)
	assert.Equal(t, "80.00", res.Result.Variant.Price.String())
}

func TestResolver_SkipsProductsWithoutVariants(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.byTitle["Lightning Bolt"] = []models.CatalogProduct{{ID: "empty", Title: "Lightning Bolt"}}

	r := newTestResolver(t, catalog, false)
	res := r.Resolve(context.Background(), models.CardQuery{RawName: "Lightning Bolt"}, ResolveOptions{Order: []models.Strategy{models.StrategyTitle}})

	assert.False(t, res.Result.Found)
}

func TestResolver_ExplicitOrder(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.byTitle["Lightning Bolt"] = []models.CatalogProduct{single("title", "Lightning Bolt", "A", "1.00")}
	catalog.byTag["LightningBolt"] = []models.CatalogProduct{single("tag", "Lightning Bolt", "B", "1.00")}

	r := newTestResolver(t, catalog, false)
	res := r.Resolve(context.Background(), models.CardQuery{RawName: "Lightning Bolt"}, ResolveOptions{
		Order: []models.Strategy{models.StrategyTag, models.StrategyNone, models.StrategyTag},
	})

	require.True(t, res.Result.Found)
	assert.Equal(t, "tag", res.Result.Product.ID)
	assert.Equal(t, []string{"tag:LightningBolt"}, catalog.Calls())
}

func TestResolver_CancelledContext(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.byTitle["Lightning Bolt"] = []models.CatalogProduct{single("1", "Lightning Bolt", "A", "1.00")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestResolver(t, catalog, false)
	res := r.Resolve(ctx, models.CardQuery{RawName: "Lightning Bolt"}, ResolveOptions{})

	assert.False(t, res.Result.Found)
	assert.True(t, res.TimedOut)
	assert.Equal(t, []models.AuditOutcome{models.OutcomeTimeout}, outcomes(res.Audit))
	assert.Empty(t, catalog.Calls())
}
