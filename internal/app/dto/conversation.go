package dto

import (
	"time"

	domainconv "vinci/internal/domain/conversation"
	domaininterest "vinci/internal/domain/interest"
)

// Conversation describes thread metadata as seen by one participant.
type Conversation struct {
	ID             string    `json:"id"`
	Participants   []string  `json:"participants"`
	Kind           string    `json:"kind"`
	Status         string    `json:"status"`
	OwnerID        string    `json:"owner_id,omitempty"`
	RequesterID    string    `json:"requester_id,omitempty"`
	PostID         string    `json:"post_id,omitempty"`
	InterestID     string    `json:"interest_id,omitempty"`
	RequestedBy    string    `json:"requested_by,omitempty"`
	RequestMessage string    `json:"request_message,omitempty"`
	LastMessage    string    `json:"last_message,omitempty"`
	LastSenderID   string    `json:"last_sender_id,omitempty"`
	LastMessageAt  time.Time `json:"last_message_at,omitempty"`
	UnreadBy       []string  `json:"unread_by"`
	HasUnread      bool      `json:"has_unread"`
	AcceptedAt     time.Time `json:"accepted_at,omitempty"`
	IgnoredAt      time.Time `json:"ignored_at,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FromConversation maps the entity for a viewer; viewerID may be empty for
// broadcast payloads where HasUnread is meaningless.
func FromConversation(c *domainconv.Conversation, viewerID string) Conversation {
	return Conversation{
		ID:             c.ID,
		Participants:   append([]string(nil), c.Participants...),
		Kind:           string(c.Kind),
		Status:         string(c.Status),
		OwnerID:        c.OwnerID,
		RequesterID:    c.RequesterID,
		PostID:         c.PostID,
		InterestID:     c.InterestID,
		RequestedBy:    c.RequestedBy,
		RequestMessage: c.RequestMessage,
		LastMessage:    c.LastMessageText,
		LastSenderID:   c.LastSenderID,
		LastMessageAt:  c.LastMessageAt,
		UnreadBy:       append([]string{}, c.UnreadBy...),
		HasUnread:      viewerID != "" && c.UnreadFor(viewerID),
		AcceptedAt:     c.AcceptedAt,
		IgnoredAt:      c.IgnoredAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

// ConversationList is the conversation index for one user.
type ConversationList struct {
	Items []Conversation `json:"items"`
}

// Message is a single message payload.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	SenderID       string         `json:"sender_id"`
	Text           string         `json:"text"`
	ReadBy         []string       `json:"read_by"`
	IsSystem       bool           `json:"is_system,omitempty"`
	Meta           map[string]any `json:"meta,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func FromMessage(m *domainconv.Message) Message {
	return Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Text:           m.Text,
		ReadBy:         append([]string{}, m.ReadBy...),
		IsSystem:       m.IsSystem,
		Meta:           m.Meta,
		CreatedAt:      m.CreatedAt,
	}
}

// MessageList is one page of a conversation's history, oldest first.
type MessageList struct {
	Conversation Conversation `json:"conversation"`
	Items        []Message    `json:"items"`
}

// Interest mirrors an interest ledger record.
type Interest struct {
	ID             string    `json:"id"`
	PostID         string    `json:"post_id"`
	OwnerID        string    `json:"owner_id"`
	InterestedID   string    `json:"interested_id"`
	Status         string    `json:"status"`
	ConversationID string    `json:"conversation_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func FromInterest(rec *domaininterest.Record) Interest {
	return Interest{
		ID:             rec.ID,
		PostID:         rec.PostID,
		OwnerID:        rec.OwnerID,
		InterestedID:   rec.InterestedID,
		Status:         string(rec.Status),
		ConversationID: rec.ConversationID,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

// PostSnapshot is the republished derived read-model of one post.
type PostSnapshot struct {
	PostID      string   `json:"post_id"`
	AuthorID    string   `json:"author_id"`
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	PendingIDs  []string `json:"pending_ids"`
	AcceptedIDs []string `json:"accepted_ids"`
}
