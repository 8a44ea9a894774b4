package alerting

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"solana-alerts/internal/domain"
	"solana-alerts/internal/observability"
	"solana-alerts/internal/storage"
)

// Streamer is the single-subscription live feed the selector manages.
type Streamer interface {
	Subscribe(ctx context.Context, mint string) error
	Unsubscribe()
	Connected() bool
	CurrentMint() string
}

// MonitoringStatus describes the live-monitoring slot for the status endpoint.
type MonitoringStatus struct {
	Mint         string `json:"mint,omitempty"`
	Connected    bool   `json:"connected"`
	ActiveAlerts int    `json:"active_alerts"`
	UniqueTokens int    `json:"unique_tokens"`
}

// TargetSelector owns the stream's single subscription slot. The first token
// to claim the slot keeps it; new alerts on other tokens wait in the sweep
// path until the slot frees up. All decisions are serialized by one mutex.
type TargetSelector struct {
	mu     sync.Mutex
	alerts storage.AlertStore
	stream Streamer
	logger *zap.Logger
}

// NewTargetSelector creates a selector over the given feed.
func NewTargetSelector(alerts storage.AlertStore, stream Streamer, logger *zap.Logger) *TargetSelector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TargetSelector{alerts: alerts, stream: stream, logger: logger}
}

// ResumeOnStartup points the slot at the oldest active alert's token, so a
// restart resumes monitoring where the longest-waiting alert needs it.
// A database with no active alerts leaves the slot free.
func (s *TargetSelector) ResumeOnStartup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldest, err := s.alerts.OldestActive(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("oldest active alert: %w", err)
	}
	return s.subscribe(ctx, oldest.Mint)
}

// OnAlertCreated claims the slot for the new alert's token when the slot is
// free. An occupied slot is never preempted; a held-but-disconnected slot is
// revived for its current token instead.
func (s *TargetSelector) OnAlertCreated(ctx context.Context, a *domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.stream.CurrentMint()
	switch {
	case current == "":
		return s.subscribe(ctx, a.Mint)
	case !s.stream.Connected():
		return s.subscribe(ctx, current)
	default:
		return nil
	}
}

// OnTokenAlertsExhausted switches the slot away from a token whose active
// alerts are all gone. The replacement is the oldest remaining active
// alert's token; with none left the slot is released.
func (s *TargetSelector) OnTokenAlertsExhausted(ctx context.Context, mint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream.CurrentMint() != mint {
		return nil
	}

	oldest, err := s.alerts.OldestActive(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		s.stream.Unsubscribe()
		observability.UpdateStreamConnected(false)
		s.logger.Info("monitoring slot released", zap.String("mint", mint))
		return nil
	}
	if err != nil {
		return fmt.Errorf("oldest active alert: %w", err)
	}
	if oldest.Mint == mint {
		// Not actually exhausted; an alert raced back in.
		return nil
	}
	return s.subscribe(ctx, oldest.Mint)
}

// Status reports the current monitoring slot.
func (s *TargetSelector) Status(ctx context.Context) (*MonitoringStatus, error) {
	active, err := s.alerts.CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("count active alerts: %w", err)
	}
	mints, err := s.alerts.DistinctActiveMints(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active mints: %w", err)
	}
	return &MonitoringStatus{
		Mint:         s.stream.CurrentMint(),
		Connected:    s.stream.Connected(),
		ActiveAlerts: active,
		UniqueTokens: len(mints),
	}, nil
}

func (s *TargetSelector) subscribe(ctx context.Context, mint string) error {
	if err := s.stream.Subscribe(ctx, mint); err != nil {
		observability.UpdateStreamConnected(false)
		return fmt.Errorf("subscribe %s: %w", mint, err)
	}
	observability.UpdateStreamConnected(true)
	s.logger.Info("monitoring target selected", zap.String("mint", mint))
	return nil
}
