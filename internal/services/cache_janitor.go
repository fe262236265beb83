package services

import (
	"context"
	"time"

	"github.com/codyseavey/tcg-tradein/backend/internal/logger"
)

// DefaultJanitorInterval is how often expired cache entries are swept
const DefaultJanitorInterval = time.Minute

// CacheJanitor periodically drops expired resolution cache entries. Reads
// already ignore expired entries; the sweep only bounds memory and the
// persisted table.
type CacheJanitor struct {
	cache    *ResolutionCache
	interval time.Duration
	log      *logger.Logger
}

// NewCacheJanitor creates a janitor for cache
func NewCacheJanitor(cache *ResolutionCache, interval time.Duration) *CacheJanitor {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	return &CacheJanitor{
		cache:    cache,
		interval: interval,
		log:      logger.Named("cache-janitor"),
	}
}

// Start sweeps every interval until ctx is cancelled
func (j *CacheJanitor) Start(ctx context.Context) {
	j.log.Info().Dur("interval", j.interval).Msg("cache janitor started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info().Msg("cache janitor stopping")
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and returns the number of in-memory entries removed
func (j *CacheJanitor) Sweep(ctx context.Context) int {
	removed := j.cache.ClearExpired(ctx)
	if removed > 0 {
		j.log.Debug().Int("removed", removed).Int("remaining", j.cache.Len()).Msg("swept expired cache entries")
	}
	return removed
}
