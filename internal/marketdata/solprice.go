package marketdata

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"solana-alerts/internal/observability"
)

// WrappedSOLMint is the mint address of wrapped SOL, used as the lookup key
// for the SOL/USD reference price.
const WrappedSOLMint = "So11111111111111111111111111111111111111112"

// DefaultSOLRefreshInterval is how often the reference price is refreshed.
const DefaultSOLRefreshInterval = 30 * time.Second

// SOLPriceTracker keeps a read-mostly SOL/USD reference price refreshed in
// the background. Readers never block on a refresh; they see the last known
// value. Concurrent refresh attempts are collapsed into one upstream call.
type SOLPriceTracker struct {
	gateway    Gateway
	interval   time.Duration
	logger     *zap.Logger
	refreshing atomic.Bool

	mu        sync.RWMutex
	price     float64
	updatedAt time.Time
}

// NewSOLPriceTracker creates a tracker. interval <= 0 uses the default.
func NewSOLPriceTracker(gateway Gateway, interval time.Duration, logger *zap.Logger) *SOLPriceTracker {
	if interval <= 0 {
		interval = DefaultSOLRefreshInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SOLPriceTracker{
		gateway:  gateway,
		interval: interval,
		logger:   logger,
	}
}

// Price returns the last known SOL/USD price. The boolean is false until the
// first successful refresh.
func (t *SOLPriceTracker) Price() (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.price, !t.updatedAt.IsZero()
}

// Refresh fetches the price once. Redundant concurrent calls return
// immediately; a failed fetch keeps the previous value.
func (t *SOLPriceTracker) Refresh(ctx context.Context) {
	if !t.refreshing.CompareAndSwap(false, true) {
		return
	}
	defer t.refreshing.Store(false)

	price, ok, err := t.gateway.GetPrice(ctx, WrappedSOLMint)
	if err != nil {
		t.logger.Warn("sol price refresh failed", zap.Error(err))
		return
	}
	if !ok || price <= 0 {
		t.logger.Warn("sol price unavailable upstream")
		return
	}

	t.mu.Lock()
	t.price = price
	t.updatedAt = time.Now()
	t.mu.Unlock()

	observability.UpdateSOLPrice(price)
}

// Run refreshes immediately and then on the configured interval until ctx
// is done.
func (t *SOLPriceTracker) Run(ctx context.Context) {
	t.Refresh(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Refresh(ctx)
		}
	}
}
