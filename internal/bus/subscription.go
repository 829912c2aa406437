package bus

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"brickbus-go/internal/envelope"
)

var subscriptionIDs atomic.Uint64

type SubscriptionStats struct {
	ID        uint64 `json:"id"`
	Prefix    string `json:"prefix"`
	Queued    uint64 `json:"queued"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Panics    uint64 `json:"panics"`
}

// Subscription is one prefix-filtered delivery path. Transports create it with
// NewSubscription and feed it with Offer.
type Subscription struct {
	id      uint64
	prefix  string
	handler Handler

	mu     sync.Mutex
	queue  chan envelope.Envelope
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup

	queued    atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	panics    atomic.Uint64
}

// NewSubscription starts the delivery goroutine for h.
func NewSubscription(prefix string, queueSize int, h Handler) *Subscription {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	s := &Subscription{
		id:      subscriptionIDs.Add(1),
		prefix:  prefix,
		handler: h,
		queue:   make(chan envelope.Envelope, queueSize),
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.deliver()
	return s
}

func (s *Subscription) ID() uint64     { return s.id }
func (s *Subscription) Prefix() string { return s.prefix }

// Done is closed once the subscription has been closed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Offer enqueues env without blocking, dropping the oldest queued envelope
// when the queue is full. It returns false once the subscription is closed.
func (s *Subscription) Offer(env envelope.Envelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	for {
		select {
		case s.queue <- env:
			s.queued.Add(1)
			return true
		default:
		}
		select {
		case <-s.queue:
			s.dropped.Add(1)
		default:
		}
	}
}

// Close stops delivery and waits for an in-flight handler to return.
// It must not be called from the subscription's own handler.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.wg.Wait()
		return
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Subscription) Stats() SubscriptionStats {
	return SubscriptionStats{
		ID:        s.id,
		Prefix:    s.prefix,
		Queued:    s.queued.Load(),
		Delivered: s.delivered.Load(),
		Dropped:   s.dropped.Load(),
		Panics:    s.panics.Load(),
	}
}

func (s *Subscription) deliver() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case env := <-s.queue:
			select {
			case <-s.done:
				return
			default:
			}
			s.call(env)
		}
	}
}

func (s *Subscription) call(env envelope.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			s.panics.Add(1)
			slog.Error("subscription handler panic", "prefix", s.prefix, "topic", env.Topic, "seq", env.Sequence, "panic", r)
		}
	}()
	s.handler(env)
	s.delivered.Add(1)
}
