package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"solana-alerts/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultMaxDelay   = 5 * time.Second

	defaultBaseURL = "https://api.dexscreener.com"
)

// DexScreenerClient implements Gateway against a DexScreener-style pair API.
type DexScreenerClient struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
	logger     *zap.Logger
}

// DexScreenerOption configures DexScreenerClient.
type DexScreenerOption func(*DexScreenerClient)

// WithBaseURL overrides the API base URL (tests point it at a local server).
func WithBaseURL(u string) DexScreenerOption {
	return func(c *DexScreenerClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) DexScreenerOption {
	return func(c *DexScreenerClient) {
		c.client = client
	}
}

// WithMaxRetries sets maximum retry attempts per lookup.
func WithMaxRetries(n int) DexScreenerOption {
	return func(c *DexScreenerClient) {
		c.maxRetries = n
	}
}

// NewDexScreenerClient creates a new DexScreener API client.
func NewDexScreenerClient(logger *zap.Logger, opts ...DexScreenerOption) *DexScreenerClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &DexScreenerClient{
		baseURL:    defaultBaseURL,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ Gateway = (*DexScreenerClient)(nil)

// GetPrice returns the current USD price for a mint.
func (c *DexScreenerClient) GetPrice(ctx context.Context, mint string) (float64, bool, error) {
	md, err := c.GetMarketData(ctx, mint)
	if err != nil {
		if err == ErrNoData {
			return 0, false, nil
		}
		return 0, false, err
	}
	return md.PriceUSD, true, nil
}

// GetMarketData returns the full market snapshot for a mint, taken from the
// pair with the deepest USD liquidity.
func (c *DexScreenerClient) GetMarketData(ctx context.Context, mint string) (*domain.TokenMarketData, error) {
	var resp pairsResponse
	url := fmt.Sprintf("%s/latest/dex/tokens/%s", c.baseURL, mint)
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	best := bestPair(resp.Pairs, mint)
	if best == nil {
		return nil, ErrNoData
	}

	priceUSD, err := strconv.ParseFloat(best.PriceUSD, 64)
	if err != nil {
		return nil, fmt.Errorf("parse priceUsd %q: %w", best.PriceUSD, err)
	}

	md := &domain.TokenMarketData{
		Mint:      mint,
		Name:      best.BaseToken.Name,
		Symbol:    best.BaseToken.Symbol,
		PriceUSD:  priceUSD,
		MarketCap: best.MarketCap,
	}
	// Providers report market cap rather than supply; derive circulating
	// supply from it so market-cap math has a consistent input.
	if priceUSD > 0 && best.MarketCap > 0 {
		md.CirculatingSupply = best.MarketCap / priceUSD
	}
	if priceUSD > 0 && best.FDV > 0 {
		md.TotalSupply = best.FDV / priceUSD
	}
	return md, nil
}

// getJSON performs a GET with bounded retries and exponential delay.
func (c *DexScreenerClient) getJSON(ctx context.Context, url string, out interface{}) error {
	var lastErr error
	delay := c.retryDelay

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http get: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			return ErrNoData
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
			c.logger.Debug("market data fetch retry",
				zap.String("url", url),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt))
			continue
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("fetch after %d attempts: %w", c.maxRetries+1, lastErr)
}

// bestPair picks the pair with the deepest USD liquidity whose base token
// is the requested mint.
func bestPair(pairs []pair, mint string) *pair {
	var best *pair
	for i := range pairs {
		p := &pairs[i]
		if p.BaseToken.Address != mint || p.PriceUSD == "" {
			continue
		}
		if best == nil || p.Liquidity.USD > best.Liquidity.USD {
			best = p
		}
	}
	return best
}

// DexScreener API response types.

type pairsResponse struct {
	Pairs []pair `json:"pairs"`
}

type pair struct {
	BaseToken struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD  string  `json:"priceUsd"`
	MarketCap float64 `json:"marketCap"`
	FDV       float64 `json:"fdv"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
}
