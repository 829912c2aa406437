package node

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"brickbus-go/internal/bus"
	"brickbus-go/internal/envelope"
	"brickbus-go/internal/topic"
)

type SinkConfig struct {
	ID       string
	Prefixes []string
}

// Sink routes log envelopes to a Logger by the severity in their topic suffix.
// It owns no publisher.
type Sink struct {
	*Node
	cfg    SinkConfig
	sub    bus.Subscriber
	logger Logger

	handled atomic.Uint64
	failed  atomic.Uint64
}

func NewSink(cfg SinkConfig, sub bus.Subscriber, logger Logger) (*Sink, error) {
	if len(cfg.Prefixes) == 0 {
		cfg.Prefixes = []string{topic.LogPrefix}
	}
	for _, p := range cfg.Prefixes {
		if !topic.ValidPrefix(p) {
			return nil, fmt.Errorf("%w: %q", bus.ErrInvalidPrefix, p)
		}
	}
	if sub == nil || logger == nil {
		return nil, fmt.Errorf("sink: subscriber and logger are required")
	}
	s := &Sink{cfg: cfg, sub: sub, logger: logger}
	s.Node = newNode("sink", cfg.ID, nil, s.loop)
	return s, nil
}

// Handled and Failed count envelopes passed to the logger and logger errors.
func (s *Sink) Handled() uint64 { return s.handled.Load() }
func (s *Sink) Failed() uint64  { return s.failed.Load() }

func (s *Sink) loop(ctx context.Context) error {
	subs := make([]*bus.Subscription, 0, len(s.cfg.Prefixes))
	defer func() {
		for _, sub := range subs {
			_ = s.sub.Unsubscribe(sub)
		}
	}()
	for _, p := range s.cfg.Prefixes {
		sub, err := s.sub.Subscribe(p, s.handle)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", p, err)
		}
		subs = append(subs, sub)
	}

	// A closed transport closes every subscription; any one of them ending is enough.
	closed := make(chan struct{})
	var once sync.Once
	for _, sub := range subs {
		go func(sub *bus.Subscription) {
			select {
			case <-sub.Done():
				once.Do(func() { close(closed) })
			case <-ctx.Done():
			}
		}(sub)
	}
	select {
	case <-ctx.Done():
	case <-closed:
	}
	return nil
}

func (s *Sink) handle(env envelope.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			s.failed.Add(1)
			slog.Warn("sink logger panic", "node", s.ID(), "topic", env.Topic, "panic", r)
		}
	}()
	s.handled.Add(1)
	if err := s.logger.Log(topic.SeverityOf(env.Topic), env.Payload); err != nil {
		s.failed.Add(1)
		slog.Debug("sink logger failed", "node", s.ID(), "topic", env.Topic, "error", err)
	}
}
