package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
)

// EventSink mirrors realtime events onto an external broker for downstream
// consumers. The Kafka producer satisfies this.
type EventSink interface {
	Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error
}

// Fanout publishes to the in-process hub and, when configured, mirrors the
// event to a broker topic. Mirror failures are logged and swallowed: a failed
// push never fails the state mutation behind it.
type Fanout struct {
	Hub    *Hub
	Mirror EventSink
	Topic  string
	Logger *slog.Logger
}

func (f *Fanout) Publish(ctx context.Context, channel string, event Event) {
	if f.Hub != nil {
		f.Hub.Publish(ctx, channel, event)
	}
	if f.Mirror == nil || f.Topic == "" {
		return
	}
	event.Channel = channel
	payload, err := json.Marshal(event)
	if err != nil {
		f.logError("event encode failed", err, channel, event.Type)
		return
	}
	headers := map[string]string{"event_type": event.Type}
	if err := f.Mirror.Publish(ctx, f.Topic, channel, payload, headers); err != nil {
		f.logError("event mirror publish failed", err, channel, event.Type)
	}
}

func (f *Fanout) logError(msg string, err error, channel, eventType string) {
	if f.Logger != nil {
		f.Logger.Warn(msg, "error", err, "channel", channel, "event_type", eventType)
	}
}

var _ Publisher = (*Fanout)(nil)
