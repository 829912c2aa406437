package bus

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"brickbus-go/internal/envelope"
	"brickbus-go/internal/topic"
)

// Memory is an in-process Transport. It backs single-process pipelines and
// serves as the deterministic fake in node tests.
type Memory struct {
	queueSize int

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	closed bool

	published atomic.Uint64
	unrouted  atomic.Uint64
	rejected  atomic.Uint64
}

func NewMemory(queueSize int) *Memory {
	return &Memory{
		queueSize: queueSize,
		subs:      make(map[uint64]*Subscription),
	}
}

// Publish fans env out to every matching subscription. Zero matches is not an error.
func (m *Memory) Publish(env envelope.Envelope) error {
	if err := topic.Validate(env.Topic); err != nil {
		m.rejected.Add(1)
		return err
	}
	// Same limit as the socket transport so a pipeline behaves alike on both.
	if err := envelope.CheckSize(env); err != nil {
		m.rejected.Add(1)
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrBusClosed
	}
	m.published.Add(1)

	routed := false
	for _, s := range m.subs {
		if topic.Matches(s.prefix, env.Topic) {
			routed = s.Offer(env) || routed
		}
	}
	if !routed {
		m.unrouted.Add(1)
	}
	return nil
}

func (m *Memory) Subscribe(prefix string, h Handler) (*Subscription, error) {
	if !topic.ValidPrefix(prefix) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrBusClosed
	}
	s := NewSubscription(prefix, m.queueSize, h)
	m.subs[s.id] = s
	return s, nil
}

func (m *Memory) Unsubscribe(s *Subscription) error {
	if s == nil {
		return ErrSubscriptionNotFound
	}
	m.mu.Lock()
	_, ok := m.subs[s.id]
	delete(m.subs, s.id)
	m.mu.Unlock()
	if !ok {
		return ErrSubscriptionNotFound
	}
	s.Close()
	return nil
}

func (m *Memory) Stats() Stats {
	m.mu.RLock()
	subs := make([]SubscriptionStats, 0, len(m.subs))
	for _, s := range m.subs {
		subs = append(subs, s.Stats())
	}
	m.mu.RUnlock()
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return Stats{
		Published:     m.published.Load(),
		Unrouted:      m.unrouted.Load(),
		Rejected:      m.rejected.Load(),
		Subscriptions: subs,
	}
}

// Close unblocks and releases every subscription. Later calls return nil.
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	subs := m.subs
	m.subs = make(map[uint64]*Subscription)
	m.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	return nil
}
