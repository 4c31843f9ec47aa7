package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainconv "vinci/internal/domain/conversation"
)

// ConversationRepository is a mutex-guarded in-memory implementation. The
// pair index plays the role of Mongo's unique participants index, so the
// concurrent-first-contact race surfaces as ErrPairExists here too.
type ConversationRepository struct {
	mu     sync.RWMutex
	items  map[string]*domainconv.Conversation
	byPair map[string]string // canonical pair key -> conversation id
}

func NewConversationRepository() *ConversationRepository {
	return &ConversationRepository{
		items:  make(map[string]*domainconv.Conversation),
		byPair: make(map[string]string),
	}
}

func cloneConversation(c *domainconv.Conversation) *domainconv.Conversation {
	out := *c
	out.Participants = append([]string(nil), c.Participants...)
	out.UnreadBy = append([]string(nil), c.UnreadBy...)
	return &out
}

func (r *ConversationRepository) ByID(ctx context.Context, id string) (*domainconv.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.items[id]
	if !ok {
		return nil, domainconv.ErrNotFound
	}
	return cloneConversation(conv), nil
}

func (r *ConversationRepository) ByParticipants(ctx context.Context, a, b string) (*domainconv.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPair[domainconv.PairKey(a, b)]
	if !ok {
		return nil, domainconv.ErrNotFound
	}
	return cloneConversation(r.items[id]), nil
}

func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]*domainconv.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*domainconv.Conversation, 0)
	for _, conv := range r.items {
		if conv.HasParticipant(userID) {
			result = append(result, cloneConversation(conv))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastActivity().After(result[j].LastActivity())
	})
	return result, nil
}

func (r *ConversationRepository) Insert(ctx context.Context, conv *domainconv.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := conv.Key()
	if _, taken := r.byPair[key]; taken {
		return domainconv.ErrPairExists
	}
	stored := cloneConversation(conv)
	r.items[stored.ID] = stored
	r.byPair[key] = stored.ID
	return nil
}

func (r *ConversationRepository) Reopen(ctx context.Context, id string, params domainconv.ReopenParams) (*domainconv.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.items[id]
	if !ok {
		return nil, domainconv.ErrNotFound
	}
	conv.Kind = domainconv.KindCollaboration
	conv.Status = domainconv.StatusPending
	conv.OwnerID = params.OwnerID
	conv.RequesterID = params.RequesterID
	conv.PostID = params.PostID
	conv.InterestID = params.InterestID
	conv.RequestedBy = params.RequesterID
	conv.RequestMessage = params.RequestMessage
	conv.UpdatedAt = params.At
	if !conv.UnreadFor(params.OwnerID) {
		conv.UnreadBy = append(conv.UnreadBy, params.OwnerID)
	}
	return cloneConversation(conv), nil
}

func (r *ConversationRepository) LinkInterest(ctx context.Context, id, interestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.items[id]
	if !ok {
		return domainconv.ErrNotFound
	}
	conv.InterestID = interestID
	return nil
}

func (r *ConversationRepository) Accept(ctx context.Context, id, ownerID, counterpartID string, at time.Time) (*domainconv.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.items[id]
	if !ok {
		return nil, domainconv.ErrNotFound
	}
	conv.Kind = domainconv.KindCollaboration
	conv.Status = domainconv.StatusActive
	conv.OwnerID = ownerID
	conv.RequesterID = counterpartID
	conv.AcceptedAt = at
	conv.UpdatedAt = at
	return cloneConversation(conv), nil
}

func (r *ConversationRepository) Ignore(ctx context.Context, id string, at time.Time) (*domainconv.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.items[id]
	if !ok {
		return nil, domainconv.ErrNotFound
	}
	conv.Status = domainconv.StatusIgnored
	conv.IgnoredAt = at
	conv.UpdatedAt = at
	conv.UnreadBy = nil
	return cloneConversation(conv), nil
}

func (r *ConversationRepository) SetPreview(ctx context.Context, id string, update domainconv.PreviewUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.items[id]
	if !ok {
		return domainconv.ErrNotFound
	}
	conv.LastMessageText = update.Text
	conv.LastSenderID = update.SenderID
	conv.LastMessageAt = update.At
	conv.UpdatedAt = update.At
	conv.UnreadBy = append([]string(nil), update.UnreadBy...)
	return nil
}

func (r *ConversationRepository) ClearUnread(ctx context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.items[id]
	if !ok {
		return domainconv.ErrNotFound
	}
	kept := conv.UnreadBy[:0]
	for _, u := range conv.UnreadBy {
		if u != userID {
			kept = append(kept, u)
		}
	}
	conv.UnreadBy = kept
	return nil
}

var _ domainconv.Repository = (*ConversationRepository)(nil)
