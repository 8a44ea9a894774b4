package storage

import (
	"context"

	"solana-alerts/internal/domain"
)

// AlertStore provides access to alerts storage.
//
// MarkTriggered is the at-most-once trigger mechanism: it flips an alert to
// triggered with a single conditional update and reports whether this call
// won the transition. Both evaluation paths (periodic sweep and live stream)
// go through it; the loser of a race observes false and must not notify.
type AlertStore interface {
	// Insert adds a new alert. Returns ErrDuplicateKey if the ID exists.
	Insert(ctx context.Context, a *domain.Alert) error

	// GetByID retrieves an alert by ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Alert, error)

	// ListByOwner retrieves all alerts belonging to an owner, oldest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Alert, error)

	// ListActive retrieves all alerts with is_active and not is_triggered,
	// oldest first.
	ListActive(ctx context.Context) ([]*domain.Alert, error)

	// ListActiveByMint retrieves active, untriggered alerts for one mint,
	// oldest first.
	ListActiveByMint(ctx context.Context, mint string) ([]*domain.Alert, error)

	// DistinctActiveMints retrieves the mints that still have active,
	// untriggered alerts, ordered by the creation time of their oldest alert.
	DistinctActiveMints(ctx context.Context) ([]string, error)

	// OldestActive retrieves the single oldest active, untriggered alert.
	// Returns ErrNotFound when no alert is active.
	OldestActive(ctx context.Context) (*domain.Alert, error)

	// CountActive returns the number of active, untriggered alerts.
	CountActive(ctx context.Context) (int, error)

	// MarkTriggered atomically sets is_triggered=true, is_active=false and
	// triggered_at=now on an alert that is still active and untriggered.
	// Returns true when exactly one row changed, false when another path
	// already triggered the alert (a no-op, not an error).
	MarkTriggered(ctx context.Context, id string) (bool, error)

	// Deactivate clears is_active and stamps cleared_at without marking the
	// alert triggered. Returns ErrNotFound if the alert does not exist.
	Deactivate(ctx context.Context, id string) error

	// Delete removes an alert. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error
}

// NotificationStore provides access to notification_queue storage.
type NotificationStore interface {
	// Insert adds a new pending entry. Returns ErrDuplicateKey if the ID exists.
	Insert(ctx context.Context, e *domain.NotificationEntry) error

	// GetByID retrieves an entry by ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.NotificationEntry, error)

	// ListDispatchable retrieves up to limit pending entries with
	// attempts < maxAttempts, oldest first.
	ListDispatchable(ctx context.Context, maxAttempts, limit int) ([]*domain.NotificationEntry, error)

	// MarkSent sets status=sent and stamps sent_at on a pending entry.
	MarkSent(ctx context.Context, id string) error

	// RecordFailure increments attempts and, once attempts reaches
	// maxAttempts, flips status to failed. A single conditional update so
	// the counter stays monotonic under concurrent sweeps.
	RecordFailure(ctx context.Context, id string, maxAttempts int) error

	// CountPending returns the number of pending entries.
	CountPending(ctx context.Context) (int, error)
}

// ObservationStore archives swap-derived price points for history.
type ObservationStore interface {
	// Insert appends one observation.
	Insert(ctx context.Context, o *domain.SwapObservation) error

	// GetByMint retrieves observations for a mint within [start, end]
	// (inclusive, milliseconds), ordered by timestamp ASC.
	GetByMint(ctx context.Context, mint string, start, end int64) ([]*domain.SwapObservation, error)
}
