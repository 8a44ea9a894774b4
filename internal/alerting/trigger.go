package alerting

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"solana-alerts/internal/domain"
	"solana-alerts/internal/observability"
	"solana-alerts/internal/storage"
)

// Notifier enqueues delivery for a fired alert.
type Notifier interface {
	EnqueueAlert(ctx context.Context, a *domain.Alert, observed float64) error
}

// Triggerer funnels every evaluation path through the store's conditional
// update. Whichever path loses the race observes a lost transition and stays
// silent, so each alert produces exactly one notification entry.
type Triggerer struct {
	alerts   storage.AlertStore
	notifier Notifier
	logger   *zap.Logger
}

// NewTriggerer creates the shared trigger funnel.
func NewTriggerer(alerts storage.AlertStore, notifier Notifier, logger *zap.Logger) *Triggerer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Triggerer{alerts: alerts, notifier: notifier, logger: logger}
}

// Fire attempts the triggered transition for a and, when this call wins it,
// enqueues the notification. path labels the evaluation path for metrics
// ("sweep" or "stream"). Returns whether this call won.
func (t *Triggerer) Fire(ctx context.Context, path string, a *domain.Alert, observed float64) (bool, error) {
	won, err := t.alerts.MarkTriggered(ctx, a.ID)
	if err != nil {
		return false, fmt.Errorf("mark triggered: %w", err)
	}
	if !won {
		return false, nil
	}

	observability.RecordAlertTriggered(path)
	t.logger.Info("alert triggered",
		zap.String("alert_id", a.ID),
		zap.String("mint", a.Mint),
		zap.String("type", string(a.ThresholdType)),
		zap.String("comparison", string(a.Comparison)),
		zap.Float64("observed", observed),
		zap.String("threshold", a.Threshold.String()),
		zap.String("path", path))

	if err := t.notifier.EnqueueAlert(ctx, a, observed); err != nil {
		// The trigger itself is durable; only this delivery is lost.
		return true, fmt.Errorf("enqueue notification: %w", err)
	}
	return true, nil
}
