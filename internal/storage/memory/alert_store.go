package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-alerts/internal/domain"
	"solana-alerts/internal/storage"
)

// AlertStore is an in-memory implementation of storage.AlertStore.
type AlertStore struct {
	mu     sync.RWMutex
	alerts map[string]*domain.Alert
}

// NewAlertStore creates a new in-memory alert store.
func NewAlertStore() *AlertStore {
	return &AlertStore{alerts: make(map[string]*domain.Alert)}
}

// Insert adds a new alert. Returns ErrDuplicateKey if the ID exists.
func (s *AlertStore) Insert(_ context.Context, a *domain.Alert) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.alerts[a.ID]; exists {
		return storage.ErrDuplicateKey
	}

	alertCopy := *a
	s.alerts[a.ID] = &alertCopy
	return nil
}

// GetByID retrieves an alert by ID. Returns ErrNotFound if not exists.
func (s *AlertStore) GetByID(_ context.Context, id string) (*domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.alerts[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	alertCopy := *a
	return &alertCopy, nil
}

// ListByOwner retrieves all alerts belonging to an owner, oldest first.
func (s *AlertStore) ListByOwner(_ context.Context, ownerID string) ([]*domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Alert
	for _, a := range s.alerts {
		if a.OwnerID == ownerID {
			alertCopy := *a
			result = append(result, &alertCopy)
		}
	}
	sortByCreation(result)
	return result, nil
}

// ListActive retrieves all active, untriggered alerts, oldest first.
func (s *AlertStore) ListActive(_ context.Context) ([]*domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Alert
	for _, a := range s.alerts {
		if a.IsActive && !a.IsTriggered {
			alertCopy := *a
			result = append(result, &alertCopy)
		}
	}
	sortByCreation(result)
	return result, nil
}

// ListActiveByMint retrieves active, untriggered alerts for one mint, oldest first.
func (s *AlertStore) ListActiveByMint(_ context.Context, mint string) ([]*domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Alert
	for _, a := range s.alerts {
		if a.Mint == mint && a.IsActive && !a.IsTriggered {
			alertCopy := *a
			result = append(result, &alertCopy)
		}
	}
	sortByCreation(result)
	return result, nil
}

// DistinctActiveMints retrieves mints with active, untriggered alerts,
// ordered by the creation time of their oldest alert.
func (s *AlertStore) DistinctActiveMints(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	oldest := make(map[string]*domain.Alert)
	for _, a := range s.alerts {
		if !a.IsActive || a.IsTriggered {
			continue
		}
		cur, seen := oldest[a.Mint]
		if !seen || earlier(a, cur) {
			oldest[a.Mint] = a
		}
	}

	heads := make([]*domain.Alert, 0, len(oldest))
	for _, a := range oldest {
		heads = append(heads, a)
	}
	sortByCreation(heads)

	mints := make([]string, len(heads))
	for i, a := range heads {
		mints[i] = a.Mint
	}
	return mints, nil
}

// OldestActive retrieves the single oldest active, untriggered alert.
func (s *AlertStore) OldestActive(_ context.Context) (*domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.Alert
	for _, a := range s.alerts {
		if !a.IsActive || a.IsTriggered {
			continue
		}
		if best == nil || earlier(a, best) {
			best = a
		}
	}
	if best == nil {
		return nil, storage.ErrNotFound
	}

	alertCopy := *best
	return &alertCopy, nil
}

// CountActive returns the number of active, untriggered alerts.
func (s *AlertStore) CountActive(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, a := range s.alerts {
		if a.IsActive && !a.IsTriggered {
			n++
		}
	}
	return n, nil
}

// MarkTriggered atomically transitions an active, untriggered alert to
// triggered. Returns true only for the call that won the transition.
func (s *AlertStore) MarkTriggered(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.alerts[id]
	if !exists || !a.IsActive || a.IsTriggered {
		return false, nil
	}

	now := time.Now()
	a.IsActive = false
	a.IsTriggered = true
	a.TriggeredAt = &now
	return true, nil
}

// Deactivate clears is_active without marking the alert triggered.
func (s *AlertStore) Deactivate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.alerts[id]
	if !exists {
		return storage.ErrNotFound
	}

	now := time.Now()
	a.IsActive = false
	a.ClearedAt = &now
	return nil
}

// Delete removes an alert.
func (s *AlertStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.alerts[id]; !exists {
		return storage.ErrNotFound
	}
	delete(s.alerts, id)
	return nil
}

// earlier orders alerts by creation time, ID as tie-break.
func earlier(a, b *domain.Alert) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func sortByCreation(alerts []*domain.Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		return earlier(alerts[i], alerts[j])
	})
}

var _ storage.AlertStore = (*AlertStore)(nil)
