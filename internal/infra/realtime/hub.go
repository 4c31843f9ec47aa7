package realtime

import (
	"context"
	"sync"
	"time"
)

// Channel names. One channel per identity for personal events, one per
// conversation or post for broadcast-style updates, plus a global feed.
const Feed = "feed"

func UserChannel(id string) string { return "user:" + id }

func ConversationChannel(id string) string { return "conversation:" + id }

func PostChannel(id string) string { return "post:" + id }

// Event types pushed to subscribers.
const (
	EventMessageNew          = "message.new"
	EventConversationUpdated = "conversation.updated"
	EventCollabRequest       = "collab.request"
	EventCollabMatch         = "collab.match"
	EventCollabIgnored       = "collab.ignored"
	EventPostSnapshot        = "post.snapshot"
	EventNotificationCount   = "notification.count"
)

// Event is the envelope pushed over every realtime channel.
type Event struct {
	Type    string    `json:"type"`
	Channel string    `json:"channel"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher fans an event out to whoever listens on channel. Delivery is
// at-most-once best-effort: subscribers that are gone or slow miss events and
// recover by re-fetching persisted state.
type Publisher interface {
	Publish(ctx context.Context, channel string, event Event)
}

const subscriberBuffer = 32

// Subscriber receives events for the channels it was registered with.
type Subscriber struct {
	C chan Event

	hub      *Hub
	channels []string
	once     sync.Once
}

// Close detaches the subscriber from the hub and closes C.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
		close(s.C)
	})
}

// Hub is the in-process pub/sub registry backing realtime delivery.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscriber]struct{})}
}

// Subscribe registers a subscriber on one or more channels.
func (h *Hub) Subscribe(channels ...string) *Subscriber {
	sub := &Subscriber{
		C:        make(chan Event, subscriberBuffer),
		hub:      h,
		channels: append([]string(nil), channels...),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range channels {
		set, ok := h.subs[ch]
		if !ok {
			set = make(map[*Subscriber]struct{})
			h.subs[ch] = set
		}
		set[sub] = struct{}{}
	}
	return sub
}

func (h *Hub) unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range sub.channels {
		set, ok := h.subs[ch]
		if !ok {
			continue
		}
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, ch)
		}
	}
}

// Publish delivers event to every subscriber of channel without blocking.
// A subscriber with a full buffer loses the event.
func (h *Hub) Publish(ctx context.Context, channel string, event Event) {
	event.Channel = channel
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[channel] {
		select {
		case sub.C <- event:
		default:
		}
	}
}

// Subscribers reports the current subscriber count for a channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}

var _ Publisher = (*Hub)(nil)
