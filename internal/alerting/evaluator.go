// Package alerting evaluates user alerts against market values and owns the
// trigger transition. Both evaluation paths, the periodic sweep and the live
// stream, share one evaluator and one trigger funnel.
package alerting

import (
	"github.com/shopspring/decimal"

	"solana-alerts/internal/domain"
)

// CalculateMarketCap computes market cap in USD from a swap-derived price.
// priceSOL is the token price quoted in SOL; solPriceUSD converts it.
func CalculateMarketCap(circulatingSupply, solPriceUSD, priceSOL float64) float64 {
	return circulatingSupply * solPriceUSD * priceSOL
}

// ObservedValue picks the market value an alert watches. The boolean is
// false when that value is unavailable this cycle.
func ObservedValue(a *domain.Alert, priceUSD, marketCap float64, haveMarketCap bool) (float64, bool) {
	switch a.ThresholdType {
	case domain.ThresholdPrice:
		return priceUSD, true
	case domain.ThresholdMarketCap:
		return marketCap, haveMarketCap
	}
	return 0, false
}

// ShouldTrigger reports whether observed strictly crosses the alert's
// threshold. Equality never triggers, in either direction.
func ShouldTrigger(a *domain.Alert, observed float64) bool {
	cmp := decimal.NewFromFloat(observed).Cmp(a.Threshold)
	switch a.Comparison {
	case domain.ComparisonAbove:
		return cmp > 0
	case domain.ComparisonBelow:
		return cmp < 0
	}
	return false
}
