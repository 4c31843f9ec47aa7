package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type failingSink struct {
	calls int
}

func (s *failingSink) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	s.calls++
	return errors.New("broker down")
}

type capturingSink struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

func (s *capturingSink) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	s.topic = topic
	s.key = key
	s.payload = payload
	s.headers = headers
	return nil
}

func TestFanoutMirrorFailureIsSwallowed(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(Feed)
	defer sub.Close()

	sink := &failingSink{}
	fanout := &Fanout{Hub: hub, Mirror: sink, Topic: "events"}

	fanout.Publish(context.Background(), Feed, Event{Type: EventPostSnapshot})

	if sink.calls != 1 {
		t.Fatalf("mirror calls = %d, want 1", sink.calls)
	}
	// Hub delivery still happened despite the broker failure.
	select {
	case e := <-sub.C:
		if e.Type != EventPostSnapshot {
			t.Fatalf("event type = %s", e.Type)
		}
	default:
		t.Fatalf("hub delivery lost on mirror failure")
	}
}

func TestFanoutMirrorsEnvelope(t *testing.T) {
	sink := &capturingSink{}
	fanout := &Fanout{Mirror: sink, Topic: "events"}

	channel := ConversationChannel("c1")
	fanout.Publish(context.Background(), channel, Event{Type: EventMessageNew})

	if sink.topic != "events" || sink.key != channel {
		t.Fatalf("mirrored to %s/%s", sink.topic, sink.key)
	}
	if sink.headers["event_type"] != EventMessageNew {
		t.Fatalf("headers = %v", sink.headers)
	}
	var decoded Event
	if err := json.Unmarshal(sink.payload, &decoded); err != nil {
		t.Fatalf("payload decode: %v", err)
	}
	if decoded.Type != EventMessageNew || decoded.Channel != channel {
		t.Fatalf("decoded envelope = %+v", decoded)
	}
}
