package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ThresholdType selects which market value an alert watches.
type ThresholdType string

const (
	ThresholdPrice     ThresholdType = "price"
	ThresholdMarketCap ThresholdType = "market_cap"
)

// Comparison is the direction of a threshold crossing.
type Comparison string

const (
	ComparisonAbove Comparison = "above"
	ComparisonBelow Comparison = "below"
)

// Channel is the delivery channel for a triggered alert.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelTelegram Channel = "telegram"
	ChannelDiscord  Channel = "discord"
)

// Alert is a persisted user-defined condition on a token's price or market cap.
// Corresponds to the alerts table in PostgreSQL.
//
// An alert is evaluated only while IsActive && !IsTriggered. The transition
// to triggered happens exactly once, via a conditional single-row update.
type Alert struct {
	ID            string
	OwnerID       string
	Mint          string // token mint address (base58)
	ThresholdType ThresholdType
	Threshold     decimal.Decimal
	Comparison    Comparison
	Channel       Channel
	Recipient     string // email address, telegram chat ID or discord channel ID

	// Snapshots taken at creation time from the market data gateway.
	CirculatingSupply *float64
	MarketCapSnapshot *float64

	IsActive    bool
	IsTriggered bool
	TriggeredAt *time.Time
	ClearedAt   *time.Time
	CreatedAt   time.Time
}

// ValidThresholdType reports whether t is a known threshold type.
func ValidThresholdType(t ThresholdType) bool {
	return t == ThresholdPrice || t == ThresholdMarketCap
}

// ValidComparison reports whether c is a known comparison direction.
func ValidComparison(c Comparison) bool {
	return c == ComparisonAbove || c == ComparisonBelow
}

// ValidChannel reports whether c is a known delivery channel.
func ValidChannel(c Channel) bool {
	return c == ChannelEmail || c == ChannelTelegram || c == ChannelDiscord
}
