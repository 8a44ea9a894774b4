package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-alerts/internal/marketdata"
	"solana-alerts/internal/observability"
	"solana-alerts/internal/storage"
)

// DefaultSweepInterval is the cadence of the periodic alert sweep.
const DefaultSweepInterval = time.Minute

// Engine is the periodic evaluation path. Every interval it walks the mints
// that still carry active alerts, fetches one market snapshot per mint and
// evaluates that mint's alerts against it.
type Engine struct {
	alerts   storage.AlertStore
	gateway  marketdata.Gateway
	trigger  *Triggerer
	selector *TargetSelector
	interval time.Duration
	logger   *zap.Logger
}

// NewEngine creates the sweep engine. selector may be nil; interval <= 0
// selects the default.
func NewEngine(alerts storage.AlertStore, gateway marketdata.Gateway, trigger *Triggerer, selector *TargetSelector, interval time.Duration, logger *zap.Logger) *Engine {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		alerts:   alerts,
		gateway:  gateway,
		trigger:  trigger,
		selector: selector,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps immediately, then on every tick until ctx is done. Each sweep
// runs on a detached context so cancellation stops the loop without aborting
// the in-flight cycle's store writes.
func (e *Engine) Run(ctx context.Context) {
	work := context.WithoutCancel(ctx)

	if err := e.Sweep(work); err != nil {
		e.logger.Error("alert sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Sweep(work); err != nil {
				e.logger.Error("alert sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs one evaluation pass. A failure inside one mint's group is
// logged and skipped; it never aborts the other groups.
func (e *Engine) Sweep(ctx context.Context) error {
	start := time.Now()

	mints, err := e.alerts.DistinctActiveMints(ctx)
	if err != nil {
		observability.RecordSweep("error", time.Since(start).Seconds())
		return fmt.Errorf("list active mints: %w", err)
	}

	triggered := 0
	for _, mint := range mints {
		n, err := e.sweepMint(ctx, mint)
		if err != nil {
			observability.RecordEvaluationError("sweep")
			e.logger.Warn("sweep skipped token",
				zap.String("mint", mint), zap.Error(err))
			continue
		}
		triggered += n
	}

	if active, err := e.alerts.CountActive(ctx); err == nil {
		observability.UpdateActiveAlerts(active)
	}
	observability.RecordSweep("ok", time.Since(start).Seconds())

	if triggered > 0 {
		e.logger.Info("alert sweep completed",
			zap.Int("mints", len(mints)),
			zap.Int("triggered", triggered),
			zap.Duration("took", time.Since(start)))
	}
	return nil
}

// sweepMint evaluates one mint's active alerts against a single snapshot.
// Returns the number of alerts this sweep fired.
func (e *Engine) sweepMint(ctx context.Context, mint string) (int, error) {
	alerts, err := e.alerts.ListActiveByMint(ctx, mint)
	if err != nil {
		return 0, fmt.Errorf("list alerts: %w", err)
	}
	if len(alerts) == 0 {
		return 0, nil
	}

	data, err := e.gateway.GetMarketData(ctx, mint)
	if errors.Is(err, marketdata.ErrNoData) {
		// Absent data is not a zero value; nothing triggers this cycle.
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("market data: %w", err)
	}

	fired := 0
	for _, a := range alerts {
		observed, ok := ObservedValue(a, data.PriceUSD, data.MarketCap, data.MarketCap > 0)
		if !ok || !ShouldTrigger(a, observed) {
			continue
		}
		won, err := e.trigger.Fire(ctx, "sweep", a, observed)
		if err != nil {
			e.logger.Warn("trigger failed",
				zap.String("alert_id", a.ID), zap.Error(err))
			continue
		}
		if won {
			fired++
		}
	}

	if fired > 0 {
		remaining, err := e.alerts.ListActiveByMint(ctx, mint)
		if err != nil {
			return fired, fmt.Errorf("list remaining alerts: %w", err)
		}
		if len(remaining) == 0 && e.selector != nil {
			if err := e.selector.OnTokenAlertsExhausted(ctx, mint); err != nil {
				e.logger.Warn("target switch failed",
					zap.String("mint", mint), zap.Error(err))
			}
		}
	}
	return fired, nil
}
