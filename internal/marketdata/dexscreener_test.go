package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

const testMint = "TokenMint1111111111111111111111111111111111"

func pairsJSON(mint string, priceUSD string, marketCap, liquidity float64) string {
	return fmt.Sprintf(`{
		"baseToken": {"address": %q, "name": "Test Token", "symbol": "TT"},
		"priceUsd": %q,
		"marketCap": %f,
		"fdv": %f,
		"liquidity": {"usd": %f}
	}`, mint, priceUSD, marketCap, marketCap*2, liquidity)
}

func TestDexScreenerClient_GetMarketData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest/dex/tokens/"+testMint {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		// Two pairs: the deeper one must win.
		fmt.Fprintf(w, `{"pairs": [%s, %s]}`,
			pairsJSON(testMint, "0.5", 400000, 1000),
			pairsJSON(testMint, "2.0", 800000, 50000),
		)
	}))
	defer server.Close()

	client := NewDexScreenerClient(nil, WithBaseURL(server.URL))

	md, err := client.GetMarketData(context.Background(), testMint)
	if err != nil {
		t.Fatalf("GetMarketData failed: %v", err)
	}

	if md.PriceUSD != 2.0 {
		t.Errorf("expected price from deepest pair (2.0), got %f", md.PriceUSD)
	}
	if md.MarketCap != 800000 {
		t.Errorf("expected market cap 800000, got %f", md.MarketCap)
	}
	if math.Abs(md.CirculatingSupply-400000) > 1e-6 {
		t.Errorf("expected derived supply 400000, got %f", md.CirculatingSupply)
	}
	if md.Symbol != "TT" {
		t.Errorf("expected symbol TT, got %s", md.Symbol)
	}
}

func TestDexScreenerClient_NoPairs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"pairs": []}`)
	}))
	defer server.Close()

	client := NewDexScreenerClient(nil, WithBaseURL(server.URL))

	_, err := client.GetMarketData(context.Background(), testMint)
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}

	_, ok, err := client.GetPrice(context.Background(), testMint)
	if err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if ok {
		t.Error("absent data must report ok=false, not a zero price")
	}
}

func TestDexScreenerClient_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"pairs": [%s]}`, pairsJSON(testMint, "1.0", 100000, 1000))
	}))
	defer server.Close()

	client := NewDexScreenerClient(nil, WithBaseURL(server.URL), WithMaxRetries(3))
	client.retryDelay = 0

	md, err := client.GetMarketData(context.Background(), testMint)
	if err != nil {
		t.Fatalf("GetMarketData failed after retries: %v", err)
	}
	if md.PriceUSD != 1.0 {
		t.Errorf("expected price 1.0, got %f", md.PriceUSD)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestDexScreenerClient_ExhaustedRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewDexScreenerClient(nil, WithBaseURL(server.URL), WithMaxRetries(1))
	client.retryDelay = 0

	_, err := client.GetMarketData(context.Background(), testMint)
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
}
