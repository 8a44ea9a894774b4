package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"solana-alerts/internal/domain"
	"solana-alerts/internal/storage/memory"
)

type sentMessage struct {
	recipient string
	subject   string
	body      string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *fakeSender) Send(_ context.Context, recipient, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{recipient, subject, body})
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func testAlert() *domain.Alert {
	return &domain.Alert{
		ID:            "alert-1",
		OwnerID:       "owner-1",
		Mint:          "So11111111111111111111111111111111111111112",
		ThresholdType: domain.ThresholdPrice,
		Threshold:     decimal.RequireFromString("1.5"),
		Comparison:    domain.ComparisonAbove,
		Channel:       domain.ChannelEmail,
		Recipient:     "user@example.com",
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestDispatcher_EnqueueAndDeliver(t *testing.T) {
	ctx := context.Background()
	queue := memory.NewNotificationStore()
	email := &fakeSender{}
	d := NewDispatcher(queue, map[domain.Channel]Sender{domain.ChannelEmail: email}, 0, 0, nil)

	if err := d.EnqueueAlert(ctx, testAlert(), 1.75); err != nil {
		t.Fatalf("EnqueueAlert: %v", err)
	}
	if err := d.DispatchPending(ctx); err != nil {
		t.Fatalf("DispatchPending: %v", err)
	}

	if email.count() != 1 {
		t.Fatalf("sent = %d, want 1", email.count())
	}
	msg := email.sent[0]
	if msg.recipient != "user@example.com" {
		t.Errorf("recipient = %q", msg.recipient)
	}
	if !strings.Contains(msg.subject, "above 1.5") {
		t.Errorf("subject = %q, want threshold condition", msg.subject)
	}
	if !strings.Contains(msg.body, "1.75") {
		t.Errorf("body = %q, want observed value", msg.body)
	}

	pending, err := queue.CountPending(ctx)
	if err != nil {
		t.Fatalf("CountPending: %v", err)
	}
	if pending != 0 {
		t.Errorf("pending = %d, want 0", pending)
	}
}

func TestDispatcher_RetriesThenFails(t *testing.T) {
	ctx := context.Background()
	queue := memory.NewNotificationStore()
	email := &fakeSender{err: errors.New("smtp down")}
	d := NewDispatcher(queue, map[domain.Channel]Sender{domain.ChannelEmail: email}, 0, 0, nil)

	if err := d.EnqueueAlert(ctx, testAlert(), 1.75); err != nil {
		t.Fatalf("EnqueueAlert: %v", err)
	}

	// Attempts beyond the cap must change nothing.
	for i := 0; i < domain.MaxSendAttempts+2; i++ {
		if err := d.DispatchPending(ctx); err != nil {
			t.Fatalf("DispatchPending %d: %v", i, err)
		}
	}

	entries, err := queue.ListDispatchable(ctx, domain.MaxSendAttempts, 10)
	if err != nil {
		t.Fatalf("ListDispatchable: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("dispatchable after cap = %d, want 0", len(entries))
	}

	pending, _ := queue.CountPending(ctx)
	if pending != 0 {
		t.Errorf("pending = %d, want 0 after permanent failure", pending)
	}
}

func TestDispatcher_RecoversBeforeCap(t *testing.T) {
	ctx := context.Background()
	queue := memory.NewNotificationStore()
	email := &fakeSender{err: errors.New("smtp down")}
	d := NewDispatcher(queue, map[domain.Channel]Sender{domain.ChannelEmail: email}, 0, 0, nil)

	d.EnqueueAlert(ctx, testAlert(), 1.75)

	// Two failures, then the sender recovers.
	d.DispatchPending(ctx)
	d.DispatchPending(ctx)
	email.mu.Lock()
	email.err = nil
	email.mu.Unlock()
	d.DispatchPending(ctx)

	if email.count() != 1 {
		t.Errorf("sent = %d, want 1", email.count())
	}
}

func TestDispatcher_BatchBound(t *testing.T) {
	ctx := context.Background()
	queue := memory.NewNotificationStore()
	email := &fakeSender{}
	d := NewDispatcher(queue, map[domain.Channel]Sender{domain.ChannelEmail: email}, 0, 0, nil)

	for i := 0; i < DefaultBatchSize+5; i++ {
		if err := d.EnqueueAlert(ctx, testAlert(), 1.75); err != nil {
			t.Fatalf("EnqueueAlert %d: %v", i, err)
		}
	}

	if err := d.DispatchPending(ctx); err != nil {
		t.Fatalf("DispatchPending: %v", err)
	}
	if email.count() != DefaultBatchSize {
		t.Errorf("sent after one sweep = %d, want %d", email.count(), DefaultBatchSize)
	}

	if err := d.DispatchPending(ctx); err != nil {
		t.Fatalf("DispatchPending second: %v", err)
	}
	if email.count() != DefaultBatchSize+5 {
		t.Errorf("sent after two sweeps = %d, want %d", email.count(), DefaultBatchSize+5)
	}
}

func TestDispatcher_MissingSenderFailsEntry(t *testing.T) {
	ctx := context.Background()
	queue := memory.NewNotificationStore()
	d := NewDispatcher(queue, map[domain.Channel]Sender{}, 0, 0, nil)

	a := testAlert()
	a.Channel = domain.ChannelDiscord
	a.Recipient = "123456"
	d.EnqueueAlert(ctx, a, 1.75)

	for i := 0; i < domain.MaxSendAttempts; i++ {
		d.DispatchPending(ctx)
	}

	entries, _ := queue.ListDispatchable(ctx, domain.MaxSendAttempts, 10)
	if len(entries) != 0 {
		t.Errorf("dispatchable = %d, want 0", len(entries))
	}
}

// shutdownSender cancels the given context from inside Send and records
// whether its own context was cancelled along with it.
type shutdownSender struct {
	cancel context.CancelFunc
	ctxErr error
	sends  int
}

func (s *shutdownSender) Send(ctx context.Context, _, _, _ string) error {
	s.cancel()
	s.ctxErr = ctx.Err()
	s.sends++
	return nil
}

func TestDispatcher_RunCompletesBatchDuringShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := memory.NewNotificationStore()
	email := &shutdownSender{cancel: cancel}
	d := NewDispatcher(queue, map[domain.Channel]Sender{domain.ChannelEmail: email}, time.Minute, 0, nil)

	if err := d.EnqueueAlert(ctx, testAlert(), 1.75); err != nil {
		t.Fatalf("EnqueueAlert: %v", err)
	}

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}

	// The batch in flight at shutdown still delivers and records its
	// outcome on a live context.
	if email.sends != 1 {
		t.Fatalf("sends = %d, want 1", email.sends)
	}
	if email.ctxErr != nil {
		t.Errorf("send context cancelled mid-batch: %v", email.ctxErr)
	}
	pending, err := queue.CountPending(ctx)
	if err != nil {
		t.Fatalf("CountPending: %v", err)
	}
	if pending != 0 {
		t.Errorf("pending = %d, want 0 after delivery", pending)
	}
}
