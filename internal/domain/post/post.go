package post

import (
	"context"
	"errors"
	"strings"
)

var ErrPostNotFound = errors.New("post: not found")

// Categories that accept collaboration requests.
const (
	CategoryCollaboration = "collaboration"
	CategoryProject       = "project"
)

// Post is the snapshot of a project entry owned by the external post store.
// This engine refreshes the interest lists but owns nothing else on it.
type Post struct {
	ID       string
	AuthorID string
	Title    string
	Category string
}

// SeeksCollaboration reports whether the post's kind admits collaboration requests.
func (p Post) SeeksCollaboration() bool {
	switch strings.ToLower(strings.TrimSpace(p.Category)) {
	case CategoryCollaboration, CategoryProject:
		return true
	}
	return false
}

// Store is the port to the external post service.
type Store interface {
	GetPost(ctx context.Context, id string) (*Post, error)
	SetInterestSnapshot(ctx context.Context, id string, pendingIDs, acceptedIDs []string) error
}
