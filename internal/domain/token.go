package domain

import "time"

// MonitoredToken is the in-memory state of the token currently held by the
// stream subscription slot. Rebuilt from a gateway fetch whenever the watched
// token changes; never persisted.
type MonitoredToken struct {
	Mint              string
	Name              string
	Symbol            string
	CirculatingSupply float64
	LastPriceUSD      float64
	UpdatedAt         time.Time
}

// TokenMarketData is a gateway snapshot of a token's market values.
type TokenMarketData struct {
	Mint              string
	Name              string
	Symbol            string
	PriceUSD          float64
	MarketCap         float64
	CirculatingSupply float64
	TotalSupply       float64
}
