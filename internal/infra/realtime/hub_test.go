package realtime

import (
	"context"
	"testing"
	"time"
)

func TestHubDeliversToSubscribedChannelsOnly(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(UserChannel("alice"), Feed)
	defer sub.Close()

	hub.Publish(context.Background(), UserChannel("alice"), Event{Type: EventMessageNew})
	hub.Publish(context.Background(), UserChannel("bob"), Event{Type: EventMessageNew})
	hub.Publish(context.Background(), Feed, Event{Type: EventPostSnapshot})

	got := drain(sub.C, 2)
	if len(got) != 2 {
		t.Fatalf("delivered %d events, want 2", len(got))
	}
	if got[0].Channel != UserChannel("alice") || got[1].Channel != Feed {
		t.Fatalf("unexpected channels: %s, %s", got[0].Channel, got[1].Channel)
	}
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(Feed)
	defer sub.Close()

	for i := 0; i < subscriberBuffer+10; i++ {
		hub.Publish(context.Background(), Feed, Event{Type: EventPostSnapshot})
	}
	// Overflow is dropped, not blocked on.
	if got := len(sub.C); got != subscriberBuffer {
		t.Fatalf("buffered %d events, want %d", got, subscriberBuffer)
	}
}

func TestHubCloseUnsubscribes(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(Feed)
	if got := hub.Subscribers(Feed); got != 1 {
		t.Fatalf("subscribers = %d, want 1", got)
	}
	sub.Close()
	if got := hub.Subscribers(Feed); got != 0 {
		t.Fatalf("subscribers after close = %d, want 0", got)
	}
	// Closing twice must not panic.
	sub.Close()
}

func drain(c <-chan Event, n int) []Event {
	var out []Event
	timeout := time.After(time.Second)
	for len(out) < n {
		select {
		case e := <-c:
			out = append(out, e)
		case <-timeout:
			return out
		}
	}
	return out
}
