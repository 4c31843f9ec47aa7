package conversation

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

var (
	ErrNotFound       = errors.New("conversation: not found")
	ErrPairExists     = errors.New("conversation: pair already exists")
	ErrNotParticipant = errors.New("conversation: caller is not a participant")
)

type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusIgnored Status = "ignored"
)

// Kind tags the thread as either a plain symmetric direct-message thread or a
// role-labeled collaboration thread. Owner/Requester are set only for the latter.
type Kind string

const (
	KindDirect        Kind = "direct"
	KindCollaboration Kind = "collaboration"
)

// Conversation is the single 1:1 channel between two identities. At most one
// exists per unordered pair for the lifetime of the system; collaboration
// requests between the same pair reopen it rather than creating a sibling.
type Conversation struct {
	ID           string
	Participants []string // canonical sorted order, always exactly two
	Kind         Kind
	Status       Status

	// Collaboration fields, empty for plain direct threads.
	OwnerID        string
	RequesterID    string
	PostID         string
	InterestID     string
	RequestedBy    string
	RequestMessage string

	// Preview of the latest message.
	LastMessageText string
	LastSenderID    string
	LastMessageAt   time.Time

	// UnreadBy is the set of participants who have not seen the latest state.
	// It is overwritten wholesale on every mutating action, never incremented.
	UnreadBy []string

	AcceptedAt time.Time
	IgnoredAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CanonicalPair returns the two ids in their stable stored order.
func CanonicalPair(a, b string) []string {
	pair := []string{strings.TrimSpace(a), strings.TrimSpace(b)}
	sort.Strings(pair)
	return pair
}

// PairKey is the uniqueness key for an unordered participant pair.
func PairKey(a, b string) string {
	pair := CanonicalPair(a, b)
	return pair[0] + "|" + pair[1]
}

func (c *Conversation) Key() string {
	if len(c.Participants) != 2 {
		return ""
	}
	return PairKey(c.Participants[0], c.Participants[1])
}

func (c *Conversation) HasParticipant(id string) bool {
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// Counterpart resolves "the other participant" relative to id.
func (c *Conversation) Counterpart(id string) (string, error) {
	if len(c.Participants) != 2 {
		return "", errors.New("conversation: participant pair incomplete")
	}
	switch id {
	case c.Participants[0]:
		return c.Participants[1], nil
	case c.Participants[1]:
		return c.Participants[0], nil
	}
	return "", ErrNotParticipant
}

// UnreadFor reports whether id has not seen the latest state.
func (c *Conversation) UnreadFor(id string) bool {
	for _, u := range c.UnreadBy {
		if u == id {
			return true
		}
	}
	return false
}

// LastActivity orders conversation lists, newest first.
func (c *Conversation) LastActivity() time.Time {
	if c.LastMessageAt.After(c.UpdatedAt) {
		return c.LastMessageAt
	}
	return c.UpdatedAt
}

// ReopenParams carries the overwrite applied when a new collaboration request
// lands on an existing pair. Roles follow the latest request (last write wins).
type ReopenParams struct {
	OwnerID        string
	RequesterID    string
	PostID         string
	InterestID     string
	RequestMessage string
	At             time.Time
}

// PreviewUpdate is applied atomically together with the unread overwrite after
// a message append.
type PreviewUpdate struct {
	Text     string
	SenderID string
	At       time.Time
	UnreadBy []string
}

// Repository is the conversation store. Mutating methods operate with atomic
// field/set updates so concurrent actors cannot lose writes; Insert must fail
// with ErrPairExists when the canonical pair is already taken.
type Repository interface {
	ByID(ctx context.Context, id string) (*Conversation, error)
	ByParticipants(ctx context.Context, a, b string) (*Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]*Conversation, error)
	Insert(ctx context.Context, conv *Conversation) error
	// Reopen forces the thread back to pending with the latest request's roles
	// and unions the owner into the unread set.
	Reopen(ctx context.Context, id string, params ReopenParams) (*Conversation, error)
	// LinkInterest backfills the interest ledger pointer after the upsert.
	LinkInterest(ctx context.Context, id, interestID string) error
	// Accept normalizes roles to owner/counterpart and moves pending to active.
	Accept(ctx context.Context, id, ownerID, counterpartID string, at time.Time) (*Conversation, error)
	// Ignore moves pending to ignored and clears the unread set.
	Ignore(ctx context.Context, id string, at time.Time) (*Conversation, error)
	SetPreview(ctx context.Context, id string, update PreviewUpdate) error
	// ClearUnread removes userID from the unread set; no-op when absent.
	ClearUnread(ctx context.Context, id, userID string) error
}
