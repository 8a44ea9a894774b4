package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-alerts/internal/domain"
	"solana-alerts/internal/storage"
)

// NotificationStore is an in-memory implementation of storage.NotificationStore.
type NotificationStore struct {
	mu      sync.RWMutex
	entries map[string]*domain.NotificationEntry
}

// NewNotificationStore creates a new in-memory notification store.
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{entries: make(map[string]*domain.NotificationEntry)}
}

// Insert adds a new pending entry. Returns ErrDuplicateKey if the ID exists.
func (s *NotificationStore) Insert(_ context.Context, e *domain.NotificationEntry) error {
	if e == nil || e.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[e.ID]; exists {
		return storage.ErrDuplicateKey
	}

	entryCopy := *e
	s.entries[e.ID] = &entryCopy
	return nil
}

// GetByID retrieves an entry by ID. Returns ErrNotFound if not exists.
func (s *NotificationStore) GetByID(_ context.Context, id string) (*domain.NotificationEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	entryCopy := *e
	return &entryCopy, nil
}

// ListDispatchable retrieves up to limit pending entries with
// attempts < maxAttempts, oldest first.
func (s *NotificationStore) ListDispatchable(_ context.Context, maxAttempts, limit int) ([]*domain.NotificationEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.NotificationEntry
	for _, e := range s.entries {
		if e.Status == domain.NotificationPending && e.Attempts < maxAttempts {
			entryCopy := *e
			result = append(result, &entryCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MarkSent sets status=sent and stamps sent_at on a pending entry.
func (s *NotificationStore) MarkSent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[id]
	if !exists {
		return storage.ErrNotFound
	}
	if e.Status != domain.NotificationPending {
		return nil
	}

	now := time.Now()
	e.Status = domain.NotificationSent
	e.SentAt = &now
	return nil
}

// RecordFailure increments attempts and flips status to failed once the
// attempt cap is reached. Terminal entries are left untouched.
func (s *NotificationStore) RecordFailure(_ context.Context, id string, maxAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[id]
	if !exists {
		return storage.ErrNotFound
	}
	if e.Status != domain.NotificationPending {
		return nil
	}

	e.Attempts++
	if e.Attempts >= maxAttempts {
		e.Status = domain.NotificationFailed
	}
	return nil
}

// CountPending returns the number of pending entries.
func (s *NotificationStore) CountPending(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.entries {
		if e.Status == domain.NotificationPending {
			n++
		}
	}
	return n, nil
}

var _ storage.NotificationStore = (*NotificationStore)(nil)
