package memory

import (
	"context"
	"sync"
	"time"

	domainconv "vinci/internal/domain/conversation"
)

// MessageRepository stores messages in append order per conversation.
type MessageRepository struct {
	mu    sync.RWMutex
	items map[string][]*domainconv.Message // conversation id -> ordered messages
}

func NewMessageRepository() *MessageRepository {
	return &MessageRepository{items: make(map[string][]*domainconv.Message)}
}

func cloneMessage(m *domainconv.Message) *domainconv.Message {
	out := *m
	out.ReadBy = append([]string(nil), m.ReadBy...)
	if m.Meta != nil {
		meta := make(map[string]any, len(m.Meta))
		for k, v := range m.Meta {
			meta[k] = v
		}
		out.Meta = meta
	}
	return &out
}

func (r *MessageRepository) Append(ctx context.Context, msg *domainconv.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[msg.ConversationID] = append(r.items[msg.ConversationID], cloneMessage(msg))
	return nil
}

func (r *MessageRepository) List(ctx context.Context, conversationID string, limit int, before time.Time) ([]*domainconv.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.items[conversationID]
	eligible := make([]*domainconv.Message, 0, len(all))
	for _, msg := range all {
		if !before.IsZero() && !msg.CreatedAt.Before(before) {
			continue
		}
		eligible = append(eligible, msg)
	}
	if limit > 0 && len(eligible) > limit {
		eligible = eligible[len(eligible)-limit:]
	}
	result := make([]*domainconv.Message, 0, len(eligible))
	for _, msg := range eligible {
		result = append(result, cloneMessage(msg))
	}
	return result, nil
}

func (r *MessageRepository) MarkReadAll(ctx context.Context, conversationID, readerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range r.items[conversationID] {
		if !msg.ReadByUser(readerID) {
			msg.ReadBy = append(msg.ReadBy, readerID)
		}
	}
	return nil
}

var _ domainconv.MessageRepository = (*MessageRepository)(nil)
