package server

import (
	"fmt"
	"strings"

	"brickbus-go/internal/bus"
	"brickbus-go/internal/envelope"
	"brickbus-go/internal/topic"
)

// EnvelopeSummary is what websocket clients see for each tapped envelope.
// Log payloads are forwarded as text, everything else only by size.
type EnvelopeSummary struct {
	Type      string  `json:"type"`
	Topic     string  `json:"topic"`
	Producer  string  `json:"producer"`
	Sequence  uint64  `json:"sequence"`
	Timestamp float64 `json:"timestamp"`
	Size      int     `json:"size"`
	Text      string  `json:"text,omitempty"`
}

func Summarize(env envelope.Envelope) EnvelopeSummary {
	s := EnvelopeSummary{
		Type:      "envelope",
		Topic:     env.Topic,
		Producer:  env.ProducerID,
		Sequence:  env.Sequence,
		Timestamp: env.Timestamp,
		Size:      len(env.Payload),
	}
	if topic.Matches(topic.LogPrefix, env.Topic) {
		s.Text = strings.ToValidUTF8(string(env.Payload), "?")
	}
	return s
}

// Tap subscribes to prefixes and feeds summaries into the returned channel.
// When the channel is full new summaries are discarded. The returned func
// removes the subscriptions; the channel is never closed.
func Tap(sub bus.Subscriber, prefixes []string, buffer int) (<-chan any, func(), error) {
	if buffer < 1 {
		buffer = 256
	}
	out := make(chan any, buffer)
	handler := func(env envelope.Envelope) {
		select {
		case out <- Summarize(env):
		default:
		}
	}

	var subs []*bus.Subscription
	stop := func() {
		for _, s := range subs {
			_ = sub.Unsubscribe(s)
		}
	}
	for _, p := range prefixes {
		s, err := sub.Subscribe(p, handler)
		if err != nil {
			stop()
			return nil, nil, fmt.Errorf("tap %q: %w", p, err)
		}
		subs = append(subs, s)
	}
	return out, stop, nil
}
