package memory

import (
	"context"
	"sync"

	domainpost "vinci/internal/domain/post"
)

// PostStore is an in-memory stand-in for the external post service, used in
// memory mode and in tests.
type PostStore struct {
	mu        sync.RWMutex
	posts     map[string]*domainpost.Post
	snapshots map[string]InterestSnapshot
}

// InterestSnapshot is the cached pending/accepted id pair kept on a post.
type InterestSnapshot struct {
	PendingIDs  []string
	AcceptedIDs []string
}

func NewPostStore() *PostStore {
	return &PostStore{
		posts:     make(map[string]*domainpost.Post),
		snapshots: make(map[string]InterestSnapshot),
	}
}

// Seed stores a post for demo and test setups.
func (s *PostStore) Seed(p domainpost.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := p
	s.posts[p.ID] = &stored
}

func (s *PostStore) GetPost(ctx context.Context, id string) (*domainpost.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, domainpost.ErrPostNotFound
	}
	out := *p
	return &out, nil
}

func (s *PostStore) SetInterestSnapshot(ctx context.Context, id string, pendingIDs, acceptedIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return domainpost.ErrPostNotFound
	}
	s.snapshots[id] = InterestSnapshot{
		PendingIDs:  append([]string(nil), pendingIDs...),
		AcceptedIDs: append([]string(nil), acceptedIDs...),
	}
	return nil
}

// Snapshot returns the cached lists for assertions and the snapshot event payload.
func (s *PostStore) Snapshot(id string) (InterestSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[id]
	return snap, ok
}

var _ domainpost.Store = (*PostStore)(nil)
