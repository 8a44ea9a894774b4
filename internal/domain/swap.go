package domain

// SwapEvent is one swap delivered by the live feed for the subscribed token.
type SwapEvent struct {
	Mint        string
	PriceSOL    float64 // token price in SOL (quote asset)
	TxSignature string
	TimestampMs int64
}

// SwapObservation is a derived price point archived for history.
// Corresponds to the swap_observations table in ClickHouse.
type SwapObservation struct {
	Mint        string
	PriceSOL    float64
	PriceUSD    float64
	MarketCap   float64
	TxSignature string
	TimestampMs int64
}
