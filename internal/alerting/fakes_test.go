package alerting

import (
	"context"
	"sync"

	"solana-alerts/internal/domain"
	"solana-alerts/internal/marketdata"
)

// Valid base58 mint addresses used across the package tests.
const (
	mintWSOL   = "So11111111111111111111111111111111111111112"
	mintSystem = "11111111111111111111111111111111"
	mintUSDC   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

type fakeGateway struct {
	mu   sync.Mutex
	data map[string]*domain.TokenMarketData
	errs map[string]error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		data: make(map[string]*domain.TokenMarketData),
		errs: make(map[string]error),
	}
}

func (g *fakeGateway) GetPrice(_ context.Context, mint string) (float64, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.errs[mint]; err != nil {
		return 0, false, err
	}
	d, ok := g.data[mint]
	if !ok {
		return 0, false, nil
	}
	return d.PriceUSD, true, nil
}

func (g *fakeGateway) GetMarketData(_ context.Context, mint string) (*domain.TokenMarketData, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.errs[mint]; err != nil {
		return nil, err
	}
	d, ok := g.data[mint]
	if !ok {
		return nil, marketdata.ErrNoData
	}
	return d, nil
}

type enqueuedNotification struct {
	alertID  string
	observed float64
}

type fakeNotifier struct {
	mu      sync.Mutex
	entries []enqueuedNotification
	err     error
}

func (n *fakeNotifier) EnqueueAlert(_ context.Context, a *domain.Alert, observed float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.entries = append(n.entries, enqueuedNotification{alertID: a.ID, observed: observed})
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.entries)
}

type fakeStreamer struct {
	mu        sync.Mutex
	mint      string
	connected bool
	subs      []string
	unsubs    int
	subErr    error
}

func (s *fakeStreamer) Subscribe(_ context.Context, mint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subErr != nil {
		return s.subErr
	}
	s.mint = mint
	s.connected = true
	s.subs = append(s.subs, mint)
	return nil
}

func (s *fakeStreamer) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mint = ""
	s.connected = false
	s.unsubs++
}

func (s *fakeStreamer) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeStreamer) CurrentMint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mint
}

type fakeSOLPrice struct {
	price float64
	ok    bool
}

func (p *fakeSOLPrice) Price() (float64, bool) {
	return p.price, p.ok
}

// shutdownNotifier cancels the given context from inside EnqueueAlert and
// records whether its own context was cancelled along with it.
type shutdownNotifier struct {
	cancel  context.CancelFunc
	ctxErr  error
	entries int
}

func (n *shutdownNotifier) EnqueueAlert(ctx context.Context, _ *domain.Alert, _ float64) error {
	n.cancel()
	n.ctxErr = ctx.Err()
	n.entries++
	return nil
}
