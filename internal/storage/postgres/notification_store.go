package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-alerts/internal/domain"
	"solana-alerts/internal/storage"
)

// NotificationStore implements storage.NotificationStore using PostgreSQL.
type NotificationStore struct {
	pool *Pool
}

// NewNotificationStore creates a new NotificationStore.
func NewNotificationStore(pool *Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.NotificationStore = (*NotificationStore)(nil)

const notificationColumns = `
	id, alert_id, channel, recipient, subject, body, status, attempts,
	created_at, sent_at
`

// Insert adds a new pending entry. Returns ErrDuplicateKey if the ID exists.
func (s *NotificationStore) Insert(ctx context.Context, e *domain.NotificationEntry) error {
	query := `
		INSERT INTO notification_queue (
			id, alert_id, channel, recipient, subject, body, status, attempts, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		e.ID,
		e.AlertID,
		string(e.Channel),
		e.Recipient,
		e.Subject,
		e.Body,
		string(e.Status),
		e.Attempts,
		e.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert notification entry: %w", err)
	}
	return nil
}

// GetByID retrieves an entry by ID. Returns ErrNotFound if not exists.
func (s *NotificationStore) GetByID(ctx context.Context, id string) (*domain.NotificationEntry, error) {
	query := `SELECT ` + notificationColumns + ` FROM notification_queue WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	e, err := scanNotification(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get notification entry by id: %w", err)
	}
	return e, nil
}

// ListDispatchable retrieves up to limit pending entries with
// attempts < maxAttempts, oldest first.
func (s *NotificationStore) ListDispatchable(ctx context.Context, maxAttempts, limit int) ([]*domain.NotificationEntry, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notification_queue
		WHERE status = 'pending' AND attempts < $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("list dispatchable entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.NotificationEntry
	for rows.Next() {
		e, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notification rows: %w", err)
	}
	return entries, nil
}

// MarkSent sets status=sent and stamps sent_at on a pending entry.
func (s *NotificationStore) MarkSent(ctx context.Context, id string) error {
	query := `
		UPDATE notification_queue
		SET status = 'sent', sent_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`

	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

// RecordFailure increments attempts and flips to failed at the cap.
// One conditional UPDATE so attempts stays monotonic and terminal entries
// are never touched again.
func (s *NotificationStore) RecordFailure(ctx context.Context, id string, maxAttempts int) error {
	query := `
		UPDATE notification_queue
		SET attempts = attempts + 1,
		    status = CASE WHEN attempts + 1 >= $2 THEN 'failed' ELSE 'pending' END
		WHERE id = $1 AND status = 'pending'
	`

	if _, err := s.pool.Exec(ctx, query, id, maxAttempts); err != nil {
		return fmt.Errorf("record notification failure: %w", err)
	}
	return nil
}

// CountPending returns the number of pending entries.
func (s *NotificationStore) CountPending(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notification_queue WHERE status = 'pending'`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending entries: %w", err)
	}
	return n, nil
}

// scanNotification scans a single row into a NotificationEntry.
func scanNotification(row pgx.Row) (*domain.NotificationEntry, error) {
	var e domain.NotificationEntry
	var channel, status string

	err := row.Scan(
		&e.ID,
		&e.AlertID,
		&channel,
		&e.Recipient,
		&e.Subject,
		&e.Body,
		&status,
		&e.Attempts,
		&e.CreatedAt,
		&e.SentAt,
	)
	if err != nil {
		return nil, err
	}

	e.Channel = domain.Channel(channel)
	e.Status = domain.NotificationStatus(status)
	return &e, nil
}
