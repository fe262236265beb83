package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/codyseavey/tcg-tradein/backend/internal/logger"
	"github.com/codyseavey/tcg-tradein/backend/internal/metrics"
	"github.com/codyseavey/tcg-tradein/backend/internal/models"
)

const (
	DefaultCacheTTL      = 5 * time.Minute
	DefaultCacheCapacity = 1000
)

// CacheSource tells a caller of ResolutionCache.Do where its result came from
type CacheSource string

const (
	SourceHit       CacheSource = "hit"       // already cached
	SourceLoaded    CacheSource = "loaded"    // this caller ran the loader
	SourceCoalesced CacheSource = "coalesced" // another caller's in-flight load was shared
)

// Loaded is what a LoadFunc produced for one key
type Loaded struct {
	Result models.ResolutionResult
	// Cacheable=false keeps Result out of the cache (timeouts, catalog errors)
	// while still handing it to every waiter
	Cacheable bool
	// TimedOut is passed on to coalesced waiters so they record the timeout too
	TimedOut bool
}

// LoadFunc resolves a cache miss. It runs on a context detached from the
// caller that started it, so it must bound its own running time.
type LoadFunc func(ctx context.Context) Loaded

// CacheOptions configures a ResolutionCache
type CacheOptions struct {
	TTL      time.Duration
	Capacity int
	// TrueLRU refreshes recency on reads. Off by default: the oldest inserted
	// entry is evicted first no matter how often it was read.
	TrueLRU bool
	// Backing is an optional persistent tier consulted on an in-memory miss
	Backing CacheBackingStore
	Now     func() time.Time
	Logger  *logger.Logger
}

// ResolutionCache memoizes resolutions by normalized query and collapses
// concurrent lookups of one key into a single catalog cascade
type ResolutionCache struct {
	entries *lru.Cache[string, models.CacheEntry]
	flights singleflight.Group
	ttl     time.Duration
	trueLRU bool
	backing CacheBackingStore
	now     func() time.Time
	log     *logger.Logger
}

type flightResult struct {
	loaded Loaded
	source CacheSource
}

// NewResolutionCache creates a cache. Zero TTL and capacity take the defaults.
func NewResolutionCache(opt CacheOptions) (*ResolutionCache, error) {
	if opt.TTL <= 0 {
		opt.TTL = DefaultCacheTTL
	}
	if opt.Capacity <= 0 {
		opt.Capacity = DefaultCacheCapacity
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.Logger == nil {
		opt.Logger = logger.Named("cache")
	}

	c := &ResolutionCache{
		ttl:     opt.TTL,
		trueLRU: opt.TrueLRU,
		backing: opt.Backing,
		now:     opt.Now,
		log:     opt.Logger,
	}

	entries, err := lru.NewWithEvict(opt.Capacity, func(_ string, e models.CacheEntry) {
		reason := "capacity"
		if c.expired(e) {
			reason = "expired"
		}
		metrics.CacheEvictionsTotal.WithLabelValues(reason).Inc()
	})
	if err != nil {
		return nil, fmt.Errorf("create resolution cache: %w", err)
	}
	c.entries = entries
	return c, nil
}

// CacheKey builds the cache key for a query. Preview and committed
// resolutions are kept apart.
func CacheKey(normalizedFull, suppliedSKU string, preview bool) string {
	mode := "commit"
	if preview {
		mode = "preview"
	}
	return fmt.Sprintf("%s|%s|%s", strings.ToLower(normalizedFull), strings.ToLower(suppliedSKU), mode)
}

// Get returns a live entry for key, falling back to the backing tier. An
// expired entry is removed and reported as a miss.
func (c *ResolutionCache) Get(ctx context.Context, key string) (models.ResolutionResult, bool) {
	var (
		e  models.CacheEntry
		ok bool
	)
	if c.trueLRU {
		e, ok = c.entries.Get(key)
	} else {
		e, ok = c.entries.Peek(key)
	}
	if ok {
		if !c.expired(e) {
			return e.Result, true
		}
		c.entries.Remove(key)
		c.updateGauge()
	}

	if c.backing == nil {
		return models.ResolutionResult{}, false
	}

	e, ok, err := c.backing.Load(ctx, key)
	switch {
	case errors.Is(err, ErrCacheCorruption):
		metrics.CacheCorruptionsTotal.Inc()
		c.log.Warn().Err(err).Str("key", key).Msg("discarded corrupted cache entry")
		return models.ResolutionResult{}, false
	case err != nil:
		c.log.Warn().Err(err).Str("key", key).Msg("cache backing store lookup failed")
		return models.ResolutionResult{}, false
	case !ok || c.expired(e):
		return models.ResolutionResult{}, false
	}

	c.entries.Add(key, e)
	c.updateGauge()
	return e.Result, true
}

// Put stores result under key, replacing any previous entry. Beyond capacity
// the oldest entry is evicted.
func (c *ResolutionCache) Put(ctx context.Context, key string, result models.ResolutionResult) {
	e := models.CacheEntry{Key: key, Result: result, InsertedAt: c.now()}
	c.entries.Add(key, e)
	c.updateGauge()

	if c.backing != nil {
		if err := c.backing.Save(ctx, e); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("failed to persist cache entry")
		}
	}
}

// Do returns the cached result for key or runs load exactly once across all
// concurrent callers of the same key. The load does not inherit the
// cancellation of the caller that started it: one caller giving up never
// decides the result of the others. A caller whose ctx ends while waiting
// gets ErrResolutionTimeout; the load keeps running for the others.
func (c *ResolutionCache) Do(ctx context.Context, key string, load LoadFunc) (Loaded, CacheSource, error) {
	if res, ok := c.Get(ctx, key); ok {
		metrics.CacheLookupsTotal.WithLabelValues(string(SourceHit)).Inc()
		return Loaded{Result: res, Cacheable: true}, SourceHit, nil
	}
	if err := ctx.Err(); err != nil {
		return Loaded{Result: models.NotFound(), TimedOut: true}, "", fmt.Errorf("%w: before loading %q: %v", ErrResolutionTimeout, key, err)
	}

	ran := false
	lctx := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(key, func() (any, error) {
		ran = true
		// A load for key may have finished between the Get above and DoChan
		if res, ok := c.Get(lctx, key); ok {
			return flightResult{loaded: Loaded{Result: res, Cacheable: true}, source: SourceHit}, nil
		}
		loaded := load(lctx)
		if loaded.Cacheable {
			c.Put(lctx, key, loaded.Result)
		}
		return flightResult{loaded: loaded, source: SourceLoaded}, nil
	})

	select {
	case r := <-ch:
		fr := r.Val.(flightResult)
		source := fr.source
		if !ran {
			source = SourceCoalesced
		}
		metrics.CacheLookupsTotal.WithLabelValues(lookupLabel(source)).Inc()
		return fr.loaded, source, nil
	case <-ctx.Done():
		return Loaded{Result: models.NotFound(), TimedOut: true}, "", fmt.Errorf("%w: waiting for %q: %v", ErrResolutionTimeout, key, ctx.Err())
	}
}

// ClearExpired drops every entry older than the TTL and returns how many
// in-memory entries were removed
func (c *ResolutionCache) ClearExpired(ctx context.Context) int {
	removed := 0
	for _, k := range c.entries.Keys() {
		if e, ok := c.entries.Peek(k); ok && c.expired(e) {
			c.entries.Remove(k)
			removed++
		}
	}
	c.updateGauge()

	if c.backing != nil {
		n, err := c.backing.DeleteBefore(ctx, c.now().Add(-c.ttl))
		if err != nil {
			c.log.Warn().Err(err).Msg("failed to purge expired persisted cache entries")
		} else if n > 0 {
			c.log.Debug().Int64("purged", n).Msg("purged expired persisted cache entries")
		}
	}
	return removed
}

// Len returns the number of in-memory entries, expired ones included
func (c *ResolutionCache) Len() int {
	return c.entries.Len()
}

// Purge empties the in-memory tier
func (c *ResolutionCache) Purge() {
	c.entries.Purge()
	c.updateGauge()
}

func (c *ResolutionCache) expired(e models.CacheEntry) bool {
	return c.now().Sub(e.InsertedAt) >= c.ttl
}

func (c *ResolutionCache) updateGauge() {
	metrics.CacheEntries.Set(float64(c.entries.Len()))
}

func lookupLabel(s CacheSource) string {
	if s == SourceLoaded {
		return "miss"
	}
	return string(s)
}
