package marketdata

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"solana-alerts/internal/domain"
)

// stubGateway returns canned data and counts upstream calls.
type stubGateway struct {
	calls atomic.Int32
	data  map[string]*domain.TokenMarketData
	err   error
}

func (g *stubGateway) GetPrice(ctx context.Context, mint string) (float64, bool, error) {
	md, err := g.GetMarketData(ctx, mint)
	if err != nil {
		if err == ErrNoData {
			return 0, false, nil
		}
		return 0, false, err
	}
	return md.PriceUSD, true, nil
}

func (g *stubGateway) GetMarketData(_ context.Context, mint string) (*domain.TokenMarketData, error) {
	g.calls.Add(1)
	if g.err != nil {
		return nil, g.err
	}
	md, ok := g.data[mint]
	if !ok {
		return nil, ErrNoData
	}
	dataCopy := *md
	return &dataCopy, nil
}

func TestCachedGateway_ReadThrough(t *testing.T) {
	upstream := &stubGateway{data: map[string]*domain.TokenMarketData{
		"mint1": {Mint: "mint1", PriceUSD: 1.5},
	}}
	cache := NewCachedGateway(upstream, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		md, err := cache.GetMarketData(ctx, "mint1")
		if err != nil {
			t.Fatalf("GetMarketData failed: %v", err)
		}
		if md.PriceUSD != 1.5 {
			t.Errorf("expected 1.5, got %f", md.PriceUSD)
		}
	}

	if n := upstream.calls.Load(); n != 1 {
		t.Errorf("expected 1 upstream call, got %d", n)
	}
}

func TestCachedGateway_NoDataNotCached(t *testing.T) {
	upstream := &stubGateway{data: map[string]*domain.TokenMarketData{}}
	cache := NewCachedGateway(upstream, time.Minute)
	ctx := context.Background()

	if _, _, err := cache.GetPrice(ctx, "mint1"); err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}

	// Token appears upstream; the earlier miss must not mask it.
	upstream.data["mint1"] = &domain.TokenMarketData{Mint: "mint1", PriceUSD: 2.0}

	price, ok, err := cache.GetPrice(ctx, "mint1")
	if err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if !ok || price != 2.0 {
		t.Errorf("expected fresh 2.0, got ok=%v price=%f", ok, price)
	}
}

func TestCachedGateway_Eviction(t *testing.T) {
	upstream := &stubGateway{data: map[string]*domain.TokenMarketData{
		"mint1": {Mint: "mint1", PriceUSD: 1.0},
	}}
	cache := NewCachedGateway(upstream, 10*time.Millisecond)
	ctx := context.Background()

	if _, err := cache.GetMarketData(ctx, "mint1"); err != nil {
		t.Fatalf("GetMarketData failed: %v", err)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected 1 cached entry, got %d", cache.Len())
	}

	time.Sleep(20 * time.Millisecond)
	cache.evictExpired()

	if cache.Len() != 0 {
		t.Errorf("expected cache swept empty, got %d entries", cache.Len())
	}

	// Expired entry forces a refetch.
	if _, err := cache.GetMarketData(ctx, "mint1"); err != nil {
		t.Fatalf("GetMarketData failed: %v", err)
	}
	if n := upstream.calls.Load(); n != 2 {
		t.Errorf("expected 2 upstream calls, got %d", n)
	}
}
