package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-alerts/internal/domain"
	"solana-alerts/internal/marketdata"
	"solana-alerts/internal/observability"
	"solana-alerts/internal/storage"
)

// mintByteLen is the decoded length of a Solana address.
const mintByteLen = 32

// ValidateMint checks that mint is a base58-encoded 32-byte address.
func ValidateMint(mint string) error {
	raw, err := base58.Decode(mint)
	if err != nil {
		return fmt.Errorf("%w: mint is not base58: %v", storage.ErrInvalidInput, err)
	}
	if len(raw) != mintByteLen {
		return fmt.Errorf("%w: mint decodes to %d bytes, want %d",
			storage.ErrInvalidInput, len(raw), mintByteLen)
	}
	return nil
}

// CreateAlertInput carries the user-supplied fields of a new alert.
type CreateAlertInput struct {
	OwnerID       string
	Mint          string
	ThresholdType domain.ThresholdType
	Threshold     decimal.Decimal
	Comparison    domain.Comparison
	Channel       domain.Channel
	Recipient     string
}

func (in *CreateAlertInput) validate() error {
	if in.OwnerID == "" {
		return fmt.Errorf("%w: owner_id is required", storage.ErrInvalidInput)
	}
	if err := ValidateMint(in.Mint); err != nil {
		return err
	}
	if !domain.ValidThresholdType(in.ThresholdType) {
		return fmt.Errorf("%w: unknown threshold type %q", storage.ErrInvalidInput, in.ThresholdType)
	}
	if !in.Threshold.IsPositive() {
		return fmt.Errorf("%w: threshold must be positive", storage.ErrInvalidInput)
	}
	if !domain.ValidComparison(in.Comparison) {
		return fmt.Errorf("%w: unknown comparison %q", storage.ErrInvalidInput, in.Comparison)
	}
	if !domain.ValidChannel(in.Channel) {
		return fmt.Errorf("%w: unknown channel %q", storage.ErrInvalidInput, in.Channel)
	}
	if in.Recipient == "" {
		return fmt.Errorf("%w: recipient is required", storage.ErrInvalidInput)
	}
	return nil
}

// Service is the alert management API surface.
type Service struct {
	alerts   storage.AlertStore
	gateway  marketdata.Gateway
	selector *TargetSelector
	logger   *zap.Logger
}

// NewService creates the alert service.
func NewService(alerts storage.AlertStore, gateway marketdata.Gateway, selector *TargetSelector, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{alerts: alerts, gateway: gateway, selector: selector, logger: logger}
}

// CreateAlert validates, snapshots current market data and persists a new
// active alert, then offers its token to the monitoring slot. The snapshot
// is best effort; an unreachable gateway does not block creation.
func (s *Service) CreateAlert(ctx context.Context, in CreateAlertInput) (*domain.Alert, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	a := &domain.Alert{
		ID:            uuid.NewString(),
		OwnerID:       in.OwnerID,
		Mint:          in.Mint,
		ThresholdType: in.ThresholdType,
		Threshold:     in.Threshold,
		Comparison:    in.Comparison,
		Channel:       in.Channel,
		Recipient:     in.Recipient,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}

	data, err := s.gateway.GetMarketData(ctx, in.Mint)
	switch {
	case err == nil:
		a.CirculatingSupply = &data.CirculatingSupply
		a.MarketCapSnapshot = &data.MarketCap
	case errors.Is(err, marketdata.ErrNoData):
		// Unknown token; alert waits for data to appear.
	default:
		s.logger.Warn("market data snapshot failed",
			zap.String("mint", in.Mint), zap.Error(err))
	}

	if err := s.alerts.Insert(ctx, a); err != nil {
		return nil, fmt.Errorf("insert alert: %w", err)
	}
	observability.RecordAlertCreated()

	if s.selector != nil {
		if err := s.selector.OnAlertCreated(ctx, a); err != nil {
			// The alert is persisted; the sweep covers it regardless.
			s.logger.Warn("live monitoring unavailable",
				zap.String("mint", a.Mint), zap.Error(err))
		}
	}

	s.logger.Info("alert created",
		zap.String("alert_id", a.ID),
		zap.String("owner_id", a.OwnerID),
		zap.String("mint", a.Mint),
		zap.String("type", string(a.ThresholdType)),
		zap.String("threshold", a.Threshold.String()))
	return a, nil
}

// GetAlert retrieves one alert by ID.
func (s *Service) GetAlert(ctx context.Context, id string) (*domain.Alert, error) {
	return s.alerts.GetByID(ctx, id)
}

// ListAlerts retrieves an owner's alerts, oldest first.
func (s *Service) ListAlerts(ctx context.Context, ownerID string) ([]*domain.Alert, error) {
	return s.alerts.ListByOwner(ctx, ownerID)
}

// DeactivateAlert clears an alert without triggering it, then lets the
// monitoring slot move on if this was its token's last active alert.
func (s *Service) DeactivateAlert(ctx context.Context, id string) error {
	a, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.alerts.Deactivate(ctx, id); err != nil {
		return err
	}
	s.logger.Info("alert deactivated", zap.String("alert_id", id))
	return s.releaseIfExhausted(ctx, a.Mint)
}

// DeleteAlert removes an alert entirely.
func (s *Service) DeleteAlert(ctx context.Context, id string) error {
	a, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.alerts.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("alert deleted", zap.String("alert_id", id))
	return s.releaseIfExhausted(ctx, a.Mint)
}

// GetMonitoringStatus reports the live monitoring slot.
func (s *Service) GetMonitoringStatus(ctx context.Context) (*MonitoringStatus, error) {
	if s.selector == nil {
		active, err := s.alerts.CountActive(ctx)
		if err != nil {
			return nil, err
		}
		mints, err := s.alerts.DistinctActiveMints(ctx)
		if err != nil {
			return nil, err
		}
		return &MonitoringStatus{ActiveAlerts: active, UniqueTokens: len(mints)}, nil
	}
	return s.selector.Status(ctx)
}

func (s *Service) releaseIfExhausted(ctx context.Context, mint string) error {
	if s.selector == nil {
		return nil
	}
	remaining, err := s.alerts.ListActiveByMint(ctx, mint)
	if err != nil {
		return fmt.Errorf("list remaining alerts: %w", err)
	}
	if len(remaining) > 0 {
		return nil
	}
	return s.selector.OnTokenAlertsExhausted(ctx, mint)
}
