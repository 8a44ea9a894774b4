// Package stream maintains the live swap-event feed. The provider allows
// exactly one token subscription per connection; the monitoring target
// selector owns the decision of which token holds that slot.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"solana-alerts/internal/domain"
	"solana-alerts/internal/observability"
)

// Config configures stream client behavior.
type Config struct {
	// PingInterval is the keep-alive ping cadence while connected.
	PingInterval time.Duration
	// ReadTimeout is the provider-silence window; no message for this long
	// is treated as connection loss.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
	// ReconnectDelay is the fixed delay between reconnect attempts.
	ReconnectDelay time.Duration
	// MaxReconnectAttempts bounds consecutive reconnect attempts. Beyond
	// it the client stays disconnected until Subscribe is called again.
	MaxReconnectAttempts int
	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration
}

// DefaultConfig returns default stream configuration.
func DefaultConfig() Config {
	return Config{
		PingInterval:         30 * time.Second,
		ReadTimeout:          90 * time.Second,
		WriteTimeout:         10 * time.Second,
		ReconnectDelay:       5 * time.Second,
		MaxReconnectAttempts: 5,
		HandshakeTimeout:     10 * time.Second,
	}
}

// Client is a single-subscription swap feed client.
type Client struct {
	endpoint string
	config   Config
	logger   *zap.Logger

	conn   *websocket.Conn
	connMu sync.Mutex

	mu          sync.Mutex
	mint        string // currently subscribed mint, "" when the slot is free
	running     bool
	connected   bool
	sessionDone chan struct{}

	closed     atomic.Bool
	reconnects atomic.Int64

	events chan domain.SwapEvent
	wg     sync.WaitGroup
}

// NewClient creates a stream client. It does not connect; the first
// Subscribe call does.
func NewClient(endpoint string, config *Config, logger *zap.Logger) *Client {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		events:   make(chan domain.SwapEvent, 1024),
	}
}

// Events returns the channel of swap events for the subscribed token.
// The channel stays open across reconnects and subscription switches.
func (c *Client) Events() <-chan domain.SwapEvent {
	return c.events
}

// Connected reports whether the feed connection is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// CurrentMint returns the mint holding the subscription slot, "" when idle.
func (c *Client) CurrentMint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mint
}

// Reconnects returns the total number of reconnect attempts made.
func (c *Client) Reconnects() int64 {
	return c.reconnects.Load()
}

// Subscribe points the single subscription slot at mint. When idle it
// connects and starts the session; when already subscribed it switches the
// subscription on the live connection. Subscribing also revives a client
// whose reconnect attempts were exhausted.
func (c *Client) Subscribe(ctx context.Context, mint string) error {
	if c.closed.Load() {
		return fmt.Errorf("stream client closed")
	}
	if mint == "" {
		return fmt.Errorf("empty mint")
	}

	c.mu.Lock()
	prev := c.mint
	running := c.running
	c.mint = mint
	if !running {
		c.running = true
		c.sessionDone = make(chan struct{})
	}
	c.mu.Unlock()

	if running {
		if prev == mint {
			return nil
		}
		// Switch on the live connection. A write failure here surfaces to
		// the read loop as a dead connection and reconnect handles it.
		if prev != "" {
			if err := c.writeControl(unsubscribeMethod, prev); err != nil {
				return fmt.Errorf("unsubscribe %s: %w", prev, err)
			}
		}
		if err := c.writeControl(subscribeMethod, mint); err != nil {
			return fmt.Errorf("subscribe %s: %w", mint, err)
		}
		c.logger.Info("stream subscription switched",
			zap.String("from", prev), zap.String("to", mint))
		return nil
	}

	if err := c.connect(ctx); err != nil {
		c.endSession()
		return err
	}
	if err := c.writeControl(subscribeMethod, mint); err != nil {
		c.closeConn()
		c.endSession()
		return fmt.Errorf("subscribe %s: %w", mint, err)
	}

	c.mu.Lock()
	c.connected = true
	done := c.sessionDone
	c.mu.Unlock()

	c.wg.Add(2)
	go c.readLoop(done)
	go c.pingLoop(done)

	c.logger.Info("stream subscribed", zap.String("mint", mint))
	return nil
}

// Unsubscribe releases the subscription slot and tears down the connection.
func (c *Client) Unsubscribe() {
	c.mu.Lock()
	mint := c.mint
	running := c.running
	c.mint = ""
	c.mu.Unlock()

	if !running {
		return
	}

	if mint != "" {
		// Best effort; the connection is going away regardless.
		if err := c.writeControl(unsubscribeMethod, mint); err != nil {
			c.logger.Debug("unsubscribe write failed", zap.Error(err))
		}
	}
	c.closeConn()
	c.logger.Info("stream unsubscribed", zap.String("mint", mint))
}

// Close shuts the client down entirely.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.mu.Lock()
	c.mint = ""
	c.mu.Unlock()

	c.closeConn()
	c.wg.Wait()
	close(c.events)
	return nil
}

// connect establishes the websocket connection.
func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.config.HandshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	return nil
}

func (c *Client) closeConn() {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()
}

// endSession marks the session finished and wakes the ping loop.
func (c *Client) endSession() {
	c.mu.Lock()
	c.running = false
	c.connected = false
	if c.sessionDone != nil {
		select {
		case <-c.sessionDone:
		default:
			close(c.sessionDone)
		}
	}
	c.mu.Unlock()
}

// writeControl sends a subscribe/unsubscribe request for one mint.
func (c *Client) writeControl(method, mint string) error {
	req := feedRequest{Method: method, Keys: []string{mint}}

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(req)
}

// readLoop reads feed messages until the session ends. On connection loss it
// drives bounded reconnection with a fixed delay; exhausting the attempts
// leaves the client disconnected until the next Subscribe.
func (c *Client) readLoop(done chan struct{}) {
	defer c.wg.Done()
	defer c.endSession()

	for {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			if c.CurrentMint() == "" {
				// Deliberate unsubscribe closed the connection.
				return
			}

			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
			observability.UpdateStreamConnected(false)

			if !c.reconnect(done) {
				c.logger.Warn("stream reconnect attempts exhausted, falling back to periodic sweep")
				return
			}
			continue
		}

		c.handleMessage(message, done)
	}
}

// reconnect re-dials and resubscribes with fixed delay and bounded attempts.
func (c *Client) reconnect(done chan struct{}) bool {
	for attempt := 1; attempt <= c.config.MaxReconnectAttempts; attempt++ {
		select {
		case <-done:
			return false
		case <-time.After(c.config.ReconnectDelay):
		}

		if c.closed.Load() || c.CurrentMint() == "" {
			return false
		}

		c.reconnects.Add(1)
		observability.RecordStreamReconnect()
		c.closeConn()

		ctx, cancel := context.WithTimeout(context.Background(), c.config.HandshakeTimeout)
		err := c.connect(ctx)
		cancel()
		if err != nil {
			c.logger.Warn("stream reconnect failed",
				zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		mint := c.CurrentMint()
		if mint == "" {
			return false
		}
		if err := c.writeControl(subscribeMethod, mint); err != nil {
			c.logger.Warn("stream resubscribe failed",
				zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
		observability.UpdateStreamConnected(true)

		c.logger.Info("stream reconnected",
			zap.String("mint", mint), zap.Int("attempt", attempt))
		return true
	}
	return false
}

// handleMessage parses a feed message and emits a swap event for the
// subscribed mint. Trades carry raw amounts; price in SOL is derived.
func (c *Client) handleMessage(message []byte, done chan struct{}) {
	var msg feedMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Debug("undecodable feed message", zap.Error(err))
		return
	}

	if msg.Mint == "" || msg.Mint != c.CurrentMint() {
		return
	}
	if msg.SolAmount <= 0 || msg.TokenAmount <= 0 {
		return
	}

	ts := msg.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	event := domain.SwapEvent{
		Mint:        msg.Mint,
		PriceSOL:    msg.SolAmount / msg.TokenAmount,
		TxSignature: msg.Signature,
		TimestampMs: ts,
	}

	// Block rather than drop; the buffer absorbs bursts.
	select {
	case c.events <- event:
	case <-done:
	}
}

// pingLoop sends keep-alive pings while the session lasts.
func (c *Client) pingLoop(done chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Likely a dead connection; the read loop handles it.
					c.logger.Debug("ping write failed", zap.Error(err))
				}
			}
			c.connMu.Unlock()
		}
	}
}

// Feed wire types.

const (
	subscribeMethod   = "subscribeTokenTrade"
	unsubscribeMethod = "unsubscribeTokenTrade"
)

type feedRequest struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys"`
}

type feedMessage struct {
	Mint        string  `json:"mint"`
	TxType      string  `json:"txType"`
	SolAmount   float64 `json:"solAmount"`
	TokenAmount float64 `json:"tokenAmount"`
	Signature   string  `json:"signature"`
	Timestamp   int64   `json:"timestamp"`
}
