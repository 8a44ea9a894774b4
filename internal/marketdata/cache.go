package marketdata

import (
	"context"
	"sync"
	"time"

	"solana-alerts/internal/domain"
	"solana-alerts/internal/observability"
)

// CachedGateway wraps a Gateway with a TTL read-through cache keyed by mint.
// Expired entries are dropped by a scheduled sweep rather than lazily, so the
// map never accumulates mints nobody asks about anymore.
type CachedGateway struct {
	upstream Gateway
	ttl      time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	data      *domain.TokenMarketData
	fetchedAt time.Time
}

// NewCachedGateway creates a caching gateway. Entries live for ttl.
func NewCachedGateway(upstream Gateway, ttl time.Duration) *CachedGateway {
	return &CachedGateway{
		upstream: upstream,
		ttl:      ttl,
		entries:  make(map[string]cacheEntry),
	}
}

// Compile-time interface check.
var _ Gateway = (*CachedGateway)(nil)

// GetPrice returns the current USD price for a mint.
func (g *CachedGateway) GetPrice(ctx context.Context, mint string) (float64, bool, error) {
	md, err := g.GetMarketData(ctx, mint)
	if err != nil {
		if err == ErrNoData {
			return 0, false, nil
		}
		return 0, false, err
	}
	return md.PriceUSD, true, nil
}

// GetMarketData returns the cached snapshot when fresh, otherwise fetches
// from the upstream gateway. ErrNoData is not cached: an unknown token may
// become known a moment later.
func (g *CachedGateway) GetMarketData(ctx context.Context, mint string) (*domain.TokenMarketData, error) {
	g.mu.RLock()
	entry, ok := g.entries[mint]
	g.mu.RUnlock()

	if ok && time.Since(entry.fetchedAt) < g.ttl {
		dataCopy := *entry.data
		return &dataCopy, nil
	}

	start := time.Now()
	md, err := g.upstream.GetMarketData(ctx, mint)
	switch {
	case err == ErrNoData:
		observability.RecordGatewayRequest("no_data", time.Since(start).Seconds())
		return nil, err
	case err != nil:
		observability.RecordGatewayRequest("error", time.Since(start).Seconds())
		return nil, err
	}
	observability.RecordGatewayRequest("ok", time.Since(start).Seconds())

	g.mu.Lock()
	g.entries[mint] = cacheEntry{data: md, fetchedAt: time.Now()}
	observability.UpdatePriceCacheEntries(len(g.entries))
	g.mu.Unlock()

	dataCopy := *md
	return &dataCopy, nil
}

// Run evicts expired entries on a fixed schedule until ctx is done.
func (g *CachedGateway) Run(ctx context.Context, sweepInterval time.Duration) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.evictExpired()
		}
	}
}

func (g *CachedGateway) evictExpired() {
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	for mint, entry := range g.entries {
		if now.Sub(entry.fetchedAt) >= g.ttl {
			delete(g.entries, mint)
		}
	}
	observability.UpdatePriceCacheEntries(len(g.entries))
}

// Len returns the number of cached entries, expired or not.
func (g *CachedGateway) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}
