// Package marketdata unifies upstream price and metadata providers behind a
// single gateway interface with cached lookups.
package marketdata

import (
	"context"
	"errors"

	"solana-alerts/internal/domain"
)

// ErrNoData is returned when a provider has no market data for a token.
// Callers must treat it as "skip this cycle", never as a trigger condition.
var ErrNoData = errors.New("no market data for token")

// Gateway provides current market values for a token.
type Gateway interface {
	// GetPrice returns the current USD price for a mint. The boolean is
	// false when the provider has no data (absent, not zero).
	GetPrice(ctx context.Context, mint string) (float64, bool, error)

	// GetMarketData returns the full market snapshot for a mint.
	// Returns ErrNoData when the provider knows nothing about it.
	GetMarketData(ctx context.Context, mint string) (*domain.TokenMarketData, error)
}
