package interest

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("interest: not found")

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Record is the durable source of truth for collaboration status between one
// project and one interested party, independent of any conversation. At most
// one record exists per (post, interested) pair.
type Record struct {
	ID             string
	PostID         string
	OwnerID        string
	InterestedID   string
	Status         Status
	ConversationID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UpsertParams identifies the (post, interested) pair being written.
type UpsertParams struct {
	PostID         string
	OwnerID        string
	InterestedID   string
	ConversationID string
	At             time.Time
}

// Repository keys records by the (post, interested) pair.
type Repository interface {
	ByID(ctx context.Context, id string) (*Record, error)
	ByPostAndUser(ctx context.Context, postID, interestedID string) (*Record, error)
	// UpsertPending creates the record as pending, resets a rejected record back
	// to pending, and leaves an accepted record untouched (never downgraded).
	UpsertPending(ctx context.Context, params UpsertParams) (*Record, error)
	// Accept upserts the record to accepted.
	Accept(ctx context.Context, params UpsertParams) (*Record, error)
	// Reject marks an existing record rejected.
	Reject(ctx context.Context, id string, at time.Time) (*Record, error)
	// ListByPost returns records for one post filtered by status.
	ListByPost(ctx context.Context, postID string, status Status) ([]*Record, error)
}
