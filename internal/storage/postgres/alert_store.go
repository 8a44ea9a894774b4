package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-alerts/internal/domain"
	"solana-alerts/internal/storage"
)

// AlertStore implements storage.AlertStore using PostgreSQL.
type AlertStore struct {
	pool *Pool
}

// NewAlertStore creates a new AlertStore.
func NewAlertStore(pool *Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlertStore = (*AlertStore)(nil)

const alertColumns = `
	id, owner_id, mint, threshold_type, threshold, comparison, channel,
	recipient, circulating_supply, market_cap_snapshot,
	is_active, is_triggered, triggered_at, cleared_at, created_at
`

// Insert adds a new alert. Returns ErrDuplicateKey if the ID exists.
func (s *AlertStore) Insert(ctx context.Context, a *domain.Alert) error {
	query := `
		INSERT INTO alerts (
			id, owner_id, mint, threshold_type, threshold, comparison, channel,
			recipient, circulating_supply, market_cap_snapshot,
			is_active, is_triggered, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.pool.Exec(ctx, query,
		a.ID,
		a.OwnerID,
		a.Mint,
		string(a.ThresholdType),
		a.Threshold,
		string(a.Comparison),
		string(a.Channel),
		a.Recipient,
		a.CirculatingSupply,
		a.MarketCapSnapshot,
		a.IsActive,
		a.IsTriggered,
		a.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// GetByID retrieves an alert by ID. Returns ErrNotFound if not exists.
func (s *AlertStore) GetByID(ctx context.Context, id string) (*domain.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	a, err := scanAlert(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get alert by id: %w", err)
	}
	return a, nil
}

// ListByOwner retrieves all alerts belonging to an owner, oldest first.
func (s *AlertStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE owner_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list alerts by owner: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// ListActive retrieves all active, untriggered alerts, oldest first.
func (s *AlertStore) ListActive(ctx context.Context) ([]*domain.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE is_active AND NOT is_triggered
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// ListActiveByMint retrieves active, untriggered alerts for one mint, oldest first.
func (s *AlertStore) ListActiveByMint(ctx context.Context, mint string) ([]*domain.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE mint = $1 AND is_active AND NOT is_triggered
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("list active alerts by mint: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// DistinctActiveMints retrieves mints with active, untriggered alerts,
// ordered by the creation time of each mint's oldest alert.
func (s *AlertStore) DistinctActiveMints(ctx context.Context) ([]string, error) {
	query := `
		SELECT mint
		FROM alerts
		WHERE is_active AND NOT is_triggered
		GROUP BY mint
		ORDER BY MIN(created_at) ASC, mint ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("distinct active mints: %w", err)
	}
	defer rows.Close()

	var mints []string
	for rows.Next() {
		var mint string
		if err := rows.Scan(&mint); err != nil {
			return nil, fmt.Errorf("scan mint row: %w", err)
		}
		mints = append(mints, mint)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mint rows: %w", err)
	}
	return mints, nil
}

// OldestActive retrieves the single oldest active, untriggered alert.
func (s *AlertStore) OldestActive(ctx context.Context) (*domain.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE is_active AND NOT is_triggered
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query)
	a, err := scanAlert(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("oldest active alert: %w", err)
	}
	return a, nil
}

// CountActive returns the number of active, untriggered alerts.
func (s *AlertStore) CountActive(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM alerts WHERE is_active AND NOT is_triggered`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active alerts: %w", err)
	}
	return n, nil
}

// MarkTriggered atomically transitions an active, untriggered alert to
// triggered. The WHERE clause carries the optimistic-concurrency guard:
// whichever evaluation path reaches this update first affects one row,
// every later call affects zero.
func (s *AlertStore) MarkTriggered(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE alerts
		SET is_triggered = TRUE, is_active = FALSE, triggered_at = NOW()
		WHERE id = $1 AND is_active AND NOT is_triggered
	`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("mark alert triggered: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Deactivate clears is_active and stamps cleared_at without marking the
// alert triggered.
func (s *AlertStore) Deactivate(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alerts SET is_active = FALSE, cleared_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deactivate alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Delete removes an alert.
func (s *AlertStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanAlert scans a single row into an Alert.
func scanAlert(row pgx.Row) (*domain.Alert, error) {
	var a domain.Alert
	var thresholdType, comparison, channel string

	err := row.Scan(
		&a.ID,
		&a.OwnerID,
		&a.Mint,
		&thresholdType,
		&a.Threshold,
		&comparison,
		&channel,
		&a.Recipient,
		&a.CirculatingSupply,
		&a.MarketCapSnapshot,
		&a.IsActive,
		&a.IsTriggered,
		&a.TriggeredAt,
		&a.ClearedAt,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.ThresholdType = domain.ThresholdType(thresholdType)
	a.Comparison = domain.Comparison(comparison)
	a.Channel = domain.Channel(channel)
	return &a, nil
}

// scanAlerts scans multiple rows into a slice of Alert.
func scanAlerts(rows pgx.Rows) ([]*domain.Alert, error) {
	var alerts []*domain.Alert

	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rows: %w", err)
	}
	return alerts, nil
}
