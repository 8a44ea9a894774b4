package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-alerts/internal/domain"
	"solana-alerts/internal/marketdata"
	"solana-alerts/internal/observability"
	"solana-alerts/internal/storage"
)

// tokenInfoTTL bounds how long the monitor trusts its cached supply and
// metadata for the watched token before refetching from the gateway.
const tokenInfoTTL = time.Minute

// SOLPriceSource provides the last known SOL/USD price. The boolean is false
// until a first refresh has succeeded.
type SOLPriceSource interface {
	Price() (float64, bool)
}

// Monitor is the live evaluation path. It consumes swap events for the token
// holding the subscription slot, converts the swap price to USD and market
// cap, archives the observation and evaluates that token's alerts.
type Monitor struct {
	alerts       storage.AlertStore
	observations storage.ObservationStore // nil disables archiving
	gateway      marketdata.Gateway
	solPrice     SOLPriceSource
	trigger      *Triggerer
	selector     *TargetSelector
	logger       *zap.Logger

	token *domain.MonitoredToken // state of the watched token, single goroutine

	lastMu sync.Mutex
	last   *domain.SwapObservation
}

// NewMonitor creates the stream consumer. observations may be nil.
func NewMonitor(
	alerts storage.AlertStore,
	observations storage.ObservationStore,
	gateway marketdata.Gateway,
	solPrice SOLPriceSource,
	trigger *Triggerer,
	selector *TargetSelector,
	logger *zap.Logger,
) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		alerts:       alerts,
		observations: observations,
		gateway:      gateway,
		solPrice:     solPrice,
		trigger:      trigger,
		selector:     selector,
		logger:       logger,
	}
}

// Run consumes events until ctx is done or the channel closes.
func (m *Monitor) Run(ctx context.Context, events <-chan domain.SwapEvent) {
	// Detached so cancellation stops the loop without aborting the
	// in-flight event's store writes.
	work := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := m.HandleEvent(work, ev); err != nil {
				observability.RecordEvaluationError("stream")
				m.logger.Warn("swap event dropped",
					zap.String("mint", ev.Mint), zap.Error(err))
			}
		}
	}
}

// HandleEvent evaluates one swap event. A missing SOL price or missing token
// info skips the event; absent data never triggers anything.
func (m *Monitor) HandleEvent(ctx context.Context, ev domain.SwapEvent) error {
	observability.RecordSwapEvent()

	solUSD, ok := m.solPrice.Price()
	if !ok {
		m.logger.Debug("swap event skipped, no SOL price yet",
			zap.String("mint", ev.Mint))
		return nil
	}

	token, err := m.tokenInfo(ctx, ev.Mint)
	if err != nil {
		return fmt.Errorf("token info: %w", err)
	}

	priceUSD := ev.PriceSOL * solUSD
	marketCap := CalculateMarketCap(token.CirculatingSupply, solUSD, ev.PriceSOL)

	obs := &domain.SwapObservation{
		Mint:        ev.Mint,
		PriceSOL:    ev.PriceSOL,
		PriceUSD:    priceUSD,
		MarketCap:   marketCap,
		TxSignature: ev.TxSignature,
		TimestampMs: ev.TimestampMs,
	}
	m.lastMu.Lock()
	m.last = obs
	m.lastMu.Unlock()

	m.archive(ctx, obs)

	alerts, err := m.alerts.ListActiveByMint(ctx, ev.Mint)
	if err != nil {
		return fmt.Errorf("list alerts: %w", err)
	}
	if len(alerts) == 0 {
		return nil
	}

	fired := 0
	for _, a := range alerts {
		observed, ok := ObservedValue(a, priceUSD, marketCap, token.CirculatingSupply > 0)
		if !ok || !ShouldTrigger(a, observed) {
			continue
		}
		won, err := m.trigger.Fire(ctx, "stream", a, observed)
		if err != nil {
			m.logger.Warn("trigger failed",
				zap.String("alert_id", a.ID), zap.Error(err))
			continue
		}
		if won {
			fired++
		}
	}

	if fired > 0 {
		remaining, err := m.alerts.ListActiveByMint(ctx, ev.Mint)
		if err != nil {
			return fmt.Errorf("list remaining alerts: %w", err)
		}
		if len(remaining) == 0 && m.selector != nil {
			if err := m.selector.OnTokenAlertsExhausted(ctx, ev.Mint); err != nil {
				m.logger.Warn("target switch failed",
					zap.String("mint", ev.Mint), zap.Error(err))
			}
		}
	}
	return nil
}

// tokenInfo returns cached supply and metadata for the watched token,
// refetching when the token changed or the cache went stale.
func (m *Monitor) tokenInfo(ctx context.Context, mint string) (*domain.MonitoredToken, error) {
	if m.token != nil && m.token.Mint == mint &&
		time.Since(m.token.UpdatedAt) < tokenInfoTTL {
		return m.token, nil
	}

	data, err := m.gateway.GetMarketData(ctx, mint)
	if err != nil {
		// A stale snapshot for the same token beats dropping the event.
		if m.token != nil && m.token.Mint == mint {
			return m.token, nil
		}
		return nil, err
	}

	m.token = &domain.MonitoredToken{
		Mint:              mint,
		Name:              data.Name,
		Symbol:            data.Symbol,
		CirculatingSupply: data.CirculatingSupply,
		LastPriceUSD:      data.PriceUSD,
		UpdatedAt:         time.Now(),
	}
	return m.token, nil
}

// LastObservation returns the most recent derived observation, or nil
// before the first processed event.
func (m *Monitor) LastObservation() *domain.SwapObservation {
	m.lastMu.Lock()
	defer m.lastMu.Unlock()
	return m.last
}

// archive stores the derived observation; failures are logged, never fatal.
func (m *Monitor) archive(ctx context.Context, obs *domain.SwapObservation) {
	if m.observations == nil {
		return
	}
	if err := m.observations.Insert(ctx, obs); err != nil {
		m.logger.Warn("observation archive failed",
			zap.String("mint", obs.Mint), zap.Error(err))
	}
}
