package conversation

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"
)

var (
	ErrMessageNotFound = errors.New("conversation: message not found")
	ErrEmptyMessage    = errors.New("conversation: message text is empty")
	ErrMessageTooLong  = errors.New("conversation: message text exceeds limit")
)

// MaxMessageLen bounds message text, in runes.
const MaxMessageLen = 2000

// Message is an immutable, ordered record scoped to one conversation.
// System messages are flagged explicitly and carry structured Meta instead of
// encoding semantics in the text.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Text           string
	ReadBy         []string // grows monotonically
	IsSystem       bool
	Meta           map[string]any
	CreatedAt      time.Time
}

func (m *Message) ReadByUser(id string) bool {
	for _, r := range m.ReadBy {
		if r == id {
			return true
		}
	}
	return false
}

// ValidateText enforces the non-empty and length bounds for user messages.
func ValidateText(text string) error {
	if text == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxMessageLen {
		return ErrMessageTooLong
	}
	return nil
}

// MessageRepository stores append-only messages. MarkReadAll must add the
// reader with an atomic set union, not a read-modify-write cycle.
type MessageRepository interface {
	Append(ctx context.Context, msg *Message) error
	// List returns messages oldest-first. A zero before means "from the start";
	// otherwise only messages created strictly before it are returned.
	List(ctx context.Context, conversationID string, limit int, before time.Time) ([]*Message, error)
	// MarkReadAll adds readerID to ReadBy on every message of the conversation
	// that does not already carry it.
	MarkReadAll(ctx context.Context, conversationID, readerID string) error
}
