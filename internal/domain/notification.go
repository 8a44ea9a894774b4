package domain

import "time"

// NotificationStatus is the delivery state of a queue entry.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// MaxSendAttempts bounds delivery retries per queue entry. An entry whose
// sender fails this many times becomes failed permanently.
const MaxSendAttempts = 3

// NotificationEntry is one queued delivery for a triggered alert.
// Corresponds to the notification_queue table in PostgreSQL.
//
// Attempts is monotonically non-decreasing; status moves pending→sent or
// pending→failed only. Exactly one entry is created per trigger.
type NotificationEntry struct {
	ID        string
	AlertID   string
	Channel   Channel
	Recipient string
	Subject   string
	Body      string
	Status    NotificationStatus
	Attempts  int
	CreatedAt time.Time
	SentAt    *time.Time
}
