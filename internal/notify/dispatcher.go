package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"solana-alerts/internal/domain"
	"solana-alerts/internal/observability"
	"solana-alerts/internal/storage"
)

const (
	// DefaultDispatchInterval is the cadence of the delivery sweep.
	DefaultDispatchInterval = 30 * time.Second

	// DefaultBatchSize bounds how many entries one sweep delivers.
	DefaultBatchSize = 10
)

// Dispatcher owns the notification queue. Enqueueing and delivery are
// decoupled: a trigger inserts exactly one pending entry, and the periodic
// sweep drains pending entries to the channel senders with bounded retries.
type Dispatcher struct {
	queue     storage.NotificationStore
	senders   map[domain.Channel]Sender
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
}

// NewDispatcher creates a dispatcher. interval and batchSize <= 0 select
// the defaults. Channels without a sender fail their entries on delivery.
func NewDispatcher(queue storage.NotificationStore, senders map[domain.Channel]Sender, interval time.Duration, batchSize int, logger *zap.Logger) *Dispatcher {
	if interval <= 0 {
		interval = DefaultDispatchInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:     queue,
		senders:   senders,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

// EnqueueAlert renders and inserts one pending entry for a fired alert.
func (d *Dispatcher) EnqueueAlert(ctx context.Context, a *domain.Alert, observed float64) error {
	subject, body := renderMessage(a, observed, time.Now())

	entry := &domain.NotificationEntry{
		ID:        uuid.NewString(),
		AlertID:   a.ID,
		Channel:   a.Channel,
		Recipient: a.Recipient,
		Subject:   subject,
		Body:      body,
		Status:    domain.NotificationPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := d.queue.Insert(ctx, entry); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	observability.RecordNotificationEnqueued()
	d.logger.Info("notification enqueued",
		zap.String("notification_id", entry.ID),
		zap.String("alert_id", a.ID),
		zap.String("channel", string(a.Channel)))
	return nil
}

// Run dispatches immediately, then on every tick until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	// Detached so cancellation stops the loop without aborting the
	// in-flight batch's queue updates.
	work := context.WithoutCancel(ctx)

	if err := d.DispatchPending(work); err != nil {
		d.logger.Error("notification dispatch failed", zap.Error(err))
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.DispatchPending(work); err != nil {
				d.logger.Error("notification dispatch failed", zap.Error(err))
			}
		}
	}
}

// DispatchPending delivers one batch of pending entries, oldest first.
// A failed delivery counts an attempt; the store flips the entry to failed
// once attempts reach the cap.
func (d *Dispatcher) DispatchPending(ctx context.Context) error {
	entries, err := d.queue.ListDispatchable(ctx, domain.MaxSendAttempts, d.batchSize)
	if err != nil {
		return fmt.Errorf("list dispatchable: %w", err)
	}

	for _, e := range entries {
		d.deliver(ctx, e)
	}

	if pending, err := d.queue.CountPending(ctx); err == nil {
		observability.UpdatePendingNotifications(pending)
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, e *domain.NotificationEntry) {
	sender, ok := d.senders[e.Channel]
	if !ok {
		d.fail(ctx, e, fmt.Errorf("no sender configured for channel %q", e.Channel))
		return
	}

	if err := sender.Send(ctx, e.Recipient, e.Subject, e.Body); err != nil {
		d.fail(ctx, e, err)
		return
	}

	if err := d.queue.MarkSent(ctx, e.ID); err != nil {
		d.logger.Error("mark sent failed",
			zap.String("notification_id", e.ID), zap.Error(err))
		return
	}
	observability.RecordNotificationDelivery(string(e.Channel), "sent")
	d.logger.Info("notification delivered",
		zap.String("notification_id", e.ID),
		zap.String("channel", string(e.Channel)))
}

func (d *Dispatcher) fail(ctx context.Context, e *domain.NotificationEntry, cause error) {
	observability.RecordNotificationDelivery(string(e.Channel), "error")
	d.logger.Warn("notification delivery failed",
		zap.String("notification_id", e.ID),
		zap.String("channel", string(e.Channel)),
		zap.Int("attempt", e.Attempts+1),
		zap.Error(cause))

	if err := d.queue.RecordFailure(ctx, e.ID, domain.MaxSendAttempts); err != nil {
		d.logger.Error("record failure failed",
			zap.String("notification_id", e.ID), zap.Error(err))
	}
}
