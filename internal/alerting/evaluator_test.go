package alerting

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"solana-alerts/internal/domain"
)

func alertWith(tt domain.ThresholdType, cmp domain.Comparison, threshold string) *domain.Alert {
	return &domain.Alert{
		ID:            "a1",
		ThresholdType: tt,
		Threshold:     decimal.RequireFromString(threshold),
		Comparison:    cmp,
	}
}

func TestShouldTrigger_StrictInequality(t *testing.T) {
	tests := []struct {
		name      string
		cmp       domain.Comparison
		threshold string
		observed  float64
		want      bool
	}{
		{"above, observed below", domain.ComparisonAbove, "1.5", 1.4, false},
		{"above, observed equal", domain.ComparisonAbove, "1.5", 1.5, false},
		{"above, observed above", domain.ComparisonAbove, "1.5", 1.5000001, true},
		{"below, observed above", domain.ComparisonBelow, "1.5", 1.6, false},
		{"below, observed equal", domain.ComparisonBelow, "1.5", 1.5, false},
		{"below, observed below", domain.ComparisonBelow, "1.5", 1.4999999, true},
		{"above, large threshold equal", domain.ComparisonAbove, "300000", 300000, false},
		{"below, large threshold equal", domain.ComparisonBelow, "300000", 300000, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := alertWith(domain.ThresholdPrice, tc.cmp, tc.threshold)
			if got := ShouldTrigger(a, tc.observed); got != tc.want {
				t.Errorf("ShouldTrigger(%s %s, %v) = %v, want %v",
					tc.cmp, tc.threshold, tc.observed, got, tc.want)
			}
		})
	}
}

func TestCalculateMarketCap(t *testing.T) {
	// 1,000,000 supply, SOL at $150, token at 0.002 SOL.
	got := CalculateMarketCap(1_000_000, 150, 0.002)
	want := 300_000.0
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("CalculateMarketCap = %v, want %v", got, want)
	}

	if got := CalculateMarketCap(0, 150, 0.002); got != 0 {
		t.Errorf("zero supply market cap = %v, want 0", got)
	}
}

func TestObservedValue(t *testing.T) {
	price := alertWith(domain.ThresholdPrice, domain.ComparisonAbove, "1")
	if v, ok := ObservedValue(price, 2.5, 999, true); !ok || v != 2.5 {
		t.Errorf("price alert observed = (%v, %v), want (2.5, true)", v, ok)
	}

	mcap := alertWith(domain.ThresholdMarketCap, domain.ComparisonAbove, "1")
	if v, ok := ObservedValue(mcap, 2.5, 999, true); !ok || v != 999 {
		t.Errorf("market cap alert observed = (%v, %v), want (999, true)", v, ok)
	}

	// Market cap unavailable means the alert is silent, not compared to zero.
	if _, ok := ObservedValue(mcap, 2.5, 0, false); ok {
		t.Error("unavailable market cap should report ok=false")
	}
}
