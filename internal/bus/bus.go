// Package bus is the topic-filtered publish/subscribe fabric connecting nodes.
//
// Delivery is best-effort and at-most-once. Every subscription has its own
// bounded queue and delivery goroutine, so a slow handler never blocks the
// publisher or other subscribers; when a queue is full its oldest entry is dropped.
// Envelopes from one publisher on one topic reach a given subscription in publish order.
package bus

import (
	"errors"

	"brickbus-go/internal/envelope"
)

var (
	ErrBusClosed            = errors.New("bus: closed")
	ErrSubscriptionNotFound = errors.New("bus: subscription not found")
	ErrInvalidPrefix        = errors.New("bus: prefix matches no registered topic")
)

// DefaultQueueSize is the per-subscription queue capacity when none is configured.
const DefaultQueueSize = 64

// Handler receives envelopes on the subscription's delivery goroutine.
type Handler func(envelope.Envelope)

type Publisher interface {
	Publish(env envelope.Envelope) error
}

type Subscriber interface {
	Subscribe(prefix string, h Handler) (*Subscription, error)
	Unsubscribe(s *Subscription) error
}

// Transport is a full bus: both capabilities plus lifecycle.
type Transport interface {
	Publisher
	Subscriber
	Stats() Stats
	Close() error
}

type Stats struct {
	Published     uint64              `json:"published"`
	Unrouted      uint64              `json:"unrouted"`
	Rejected      uint64              `json:"rejected"`
	Corrupt       uint64              `json:"corrupt"`
	Subscriptions []SubscriptionStats `json:"subscriptions"`
}

func (s Stats) Dropped() uint64 {
	var total uint64
	for _, sub := range s.Subscriptions {
		total += sub.Dropped
	}
	return total
}
