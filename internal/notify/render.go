package notify

import (
	"fmt"
	"strconv"
	"time"

	"solana-alerts/internal/domain"
)

// shortMint abbreviates a mint address for message subjects.
func shortMint(mint string) string {
	if len(mint) <= 12 {
		return mint
	}
	return mint[:4] + "..." + mint[len(mint)-4:]
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// renderMessage builds the subject and body for a fired alert.
func renderMessage(a *domain.Alert, observed float64, at time.Time) (subject, body string) {
	kind := "Price"
	if a.ThresholdType == domain.ThresholdMarketCap {
		kind = "Market cap"
	}

	subject = fmt.Sprintf("%s alert: %s %s %s",
		kind, shortMint(a.Mint), a.Comparison, a.Threshold.String())

	body = fmt.Sprintf(
		"Token %s crossed your %s threshold.\n\n"+
			"Condition: %s %s %s USD\n"+
			"Observed:  %s USD\n"+
			"Time:      %s\n",
		a.Mint, kind,
		kind, a.Comparison, a.Threshold.String(),
		formatValue(observed),
		at.UTC().Format(time.RFC3339),
	)
	return subject, body
}
