package clickhouse

import (
	"context"
	"fmt"

	"solana-alerts/internal/domain"
	"solana-alerts/internal/storage"
)

// ObservationStore implements storage.ObservationStore using ClickHouse.
// Observations are append-only; the table carries no uniqueness constraint.
type ObservationStore struct {
	conn *Conn
}

// NewObservationStore creates a new ObservationStore.
func NewObservationStore(conn *Conn) *ObservationStore {
	return &ObservationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

// Insert appends one observation.
func (s *ObservationStore) Insert(ctx context.Context, o *domain.SwapObservation) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO swap_observations (
			mint, timestamp_ms, price_sol, price_usd, market_cap, tx_signature
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		o.Mint, uint64(o.TimestampMs), o.PriceSOL, o.PriceUSD, o.MarketCap, o.TxSignature,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByMint retrieves observations for a mint within [start, end] (inclusive),
// ordered by timestamp ASC.
func (s *ObservationStore) GetByMint(ctx context.Context, mint string, start, end int64) ([]*domain.SwapObservation, error) {
	query := `
		SELECT mint, timestamp_ms, price_sol, price_usd, market_cap, tx_signature
		FROM swap_observations
		WHERE mint = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var result []*domain.SwapObservation
	for rows.Next() {
		var o domain.SwapObservation
		var ts uint64
		if err := rows.Scan(&o.Mint, &ts, &o.PriceSOL, &o.PriceUSD, &o.MarketCap, &o.TxSignature); err != nil {
			return nil, fmt.Errorf("scan observation row: %w", err)
		}
		o.TimestampMs = int64(ts)
		result = append(result, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observation rows: %w", err)
	}
	return result, nil
}
