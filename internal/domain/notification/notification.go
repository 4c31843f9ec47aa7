package notification

import (
	"context"
	"errors"
	"time"
)

var ErrRecordNotFound = errors.New("notification: record not found")

// Notification types produced by this engine. Other producers (likes,
// comments) append through the same ledger with their own types.
const (
	TypeMatch   = "match"
	TypeMessage = "message"
)

// Record is one entry in a recipient's ledger. Read is sticky once true.
type Record struct {
	ID        string
	Type      string
	Message   string
	Read      bool
	CreatedAt time.Time
}

// Ledger is the per-recipient append-only notification list plus the
// last-opened watermark used for the badge count.
type Ledger struct {
	UserID       string
	Records      []Record
	LastOpenedAt time.Time // zero when never acknowledged
}

// UnreadCount counts records still flagged unread.
func (l *Ledger) UnreadCount() int {
	n := 0
	for _, r := range l.Records {
		if !r.Read {
			n++
		}
	}
	return n
}

// BadgeCount counts records created strictly after the watermark, or all
// records when the watermark is unset.
func (l *Ledger) BadgeCount() int {
	if l.LastOpenedAt.IsZero() {
		return len(l.Records)
	}
	n := 0
	for _, r := range l.Records {
		if r.CreatedAt.After(l.LastOpenedAt) {
			n++
		}
	}
	return n
}

// Repository persists ledgers. Read flags and the watermark are mutated with
// atomic field updates; the watermark only moves forward.
type Repository interface {
	Ledger(ctx context.Context, userID string) (*Ledger, error)
	Append(ctx context.Context, userID string, rec Record) error
	MarkRead(ctx context.Context, userID, recordID string) error
	MarkAllRead(ctx context.Context, userID string) error
	Acknowledge(ctx context.Context, userID string, at time.Time) error
}
