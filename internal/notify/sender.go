// Package notify delivers queued alert notifications over email, Telegram
// and Discord. The dispatcher owns the queue; senders only know how to
// deliver one message to one recipient.
package notify

import "context"

// Sender delivers one message on a single channel. recipient is
// channel-specific: an email address, a Telegram chat ID or a Discord
// channel ID.
type Sender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}
