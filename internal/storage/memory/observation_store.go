package memory

import (
	"context"
	"sort"
	"sync"

	"solana-alerts/internal/domain"
	"solana-alerts/internal/storage"
)

// ObservationStore is an in-memory implementation of storage.ObservationStore.
type ObservationStore struct {
	mu     sync.RWMutex
	byMint map[string][]*domain.SwapObservation
}

// NewObservationStore creates a new in-memory observation store.
func NewObservationStore() *ObservationStore {
	return &ObservationStore{byMint: make(map[string][]*domain.SwapObservation)}
}

// Insert appends one observation.
func (s *ObservationStore) Insert(_ context.Context, o *domain.SwapObservation) error {
	if o == nil || o.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obsCopy := *o
	s.byMint[o.Mint] = append(s.byMint[o.Mint], &obsCopy)
	return nil
}

// GetByMint retrieves observations for a mint within [start, end] (inclusive),
// ordered by timestamp ASC.
func (s *ObservationStore) GetByMint(_ context.Context, mint string, start, end int64) ([]*domain.SwapObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SwapObservation
	for _, o := range s.byMint[mint] {
		if o.TimestampMs >= start && o.TimestampMs <= end {
			obsCopy := *o
			result = append(result, &obsCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}

var _ storage.ObservationStore = (*ObservationStore)(nil)
