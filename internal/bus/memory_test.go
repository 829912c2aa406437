package bus

import (
	"errors"
	"sync"
	"testing"
	"time"

	"brickbus-go/internal/envelope"
	"brickbus-go/internal/topic"
)

type collector struct {
	mu   sync.Mutex
	envs []envelope.Envelope
	got  chan struct{}
}

func newCollector() *collector {
	return &collector{got: make(chan struct{}, 1024)}
}

func (c *collector) handle(env envelope.Envelope) {
	c.mu.Lock()
	c.envs = append(c.envs, env)
	c.mu.Unlock()
	c.got <- struct{}{}
}

func (c *collector) wait(t *testing.T, n int) []envelope.Envelope {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-c.got:
		case <-timeout:
			t.Fatalf("timeout: received %d/%d", i, n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]envelope.Envelope(nil), c.envs...)
}

func (c *collector) quiet(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case <-c.got:
		t.Fatalf("unexpected delivery")
	case <-time.After(d):
	}
}

func TestLogPrefixFiltering(t *testing.T) {
	b := NewMemory(16)
	defer b.Close()

	c := newCollector()
	if _, err := b.Subscribe(topic.LogPrefix, c.handle); err != nil {
		t.Fatal(err)
	}

	seq := envelope.NewSequencer("test")
	for _, name := range []string{topic.LogInfo, topic.ImageRGB, topic.LogError, topic.LogDebug} {
		if err := b.Publish(seq.Seal(name, nil)); err != nil {
			t.Fatalf("publish %s: %v", name, err)
		}
	}

	got := c.wait(t, 3)
	want := []string{topic.LogInfo, topic.LogError, topic.LogDebug}
	for i, env := range got {
		if env.Topic != want[i] {
			t.Fatalf("delivery %d: got %s want %s", i, env.Topic, want[i])
		}
	}
	c.quiet(t, 50*time.Millisecond)
}

func TestPerPublisherOrdering(t *testing.T) {
	b := NewMemory(128)
	defer b.Close()

	c := newCollector()
	if _, err := b.Subscribe(topic.ImageRGB, c.handle); err != nil {
		t.Fatal(err)
	}

	seq := envelope.NewSequencer("camera")
	const count = 100
	for i := 0; i < count; i++ {
		if err := b.Publish(seq.Seal(topic.ImageRGB, []byte{byte(i)})); err != nil {
			t.Fatal(err)
		}
	}
	got := c.wait(t, count)
	for i, env := range got {
		if env.Sequence != uint64(i+1) {
			t.Fatalf("position %d has sequence %d", i, env.Sequence)
		}
	}
}

func TestFanOutAndSlowSubscriber(t *testing.T) {
	b := NewMemory(2)
	defer b.Close()

	release := make(chan struct{})
	if _, err := b.Subscribe(topic.ImageRGB, func(envelope.Envelope) {
		<-release
	}); err != nil {
		t.Fatal(err)
	}
	defer close(release)

	var mu sync.Mutex
	var last uint64
	fastSub, err := b.Subscribe(topic.ImageRGB, func(env envelope.Envelope) {
		mu.Lock()
		last = env.Sequence
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}

	seq := envelope.NewSequencer("camera")
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			_ = b.Publish(seq.Seal(topic.ImageRGB, nil))
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publisher blocked by slow subscriber")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		got := last
		mu.Unlock()
		if got == 10 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("fast subscriber never saw the newest envelope, last=%d", got)
		}
		time.Sleep(5 * time.Millisecond)
	}

	stats := b.Stats()
	if stats.Published != 10 {
		t.Fatalf("published %d", stats.Published)
	}
	if stats.Dropped()-fastSub.Stats().Dropped < 7 {
		t.Fatalf("expected the slow subscription to drop at least 7, stats %+v", stats)
	}
}

func TestOfferDropsOldest(t *testing.T) {
	block := make(chan struct{})
	var mu sync.Mutex
	var seen []uint64
	s := NewSubscription(topic.LogPrefix, 2, func(env envelope.Envelope) {
		<-block
		mu.Lock()
		seen = append(seen, env.Sequence)
		mu.Unlock()
	})
	defer s.Close()

	s.Offer(envelope.Envelope{Sequence: 1})
	time.Sleep(20 * time.Millisecond) // let the handler pick up #1
	for i := uint64(2); i <= 5; i++ {
		s.Offer(envelope.Envelope{Sequence: i})
	}
	close(block)

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == 3 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	want := []uint64{1, 4, 5}
	if len(seen) != len(want) {
		t.Fatalf("seen %v want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen %v want %v", seen, want)
		}
	}
	if s.Stats().Dropped != 2 {
		t.Fatalf("dropped %d", s.Stats().Dropped)
	}
}

func TestPublishValidation(t *testing.T) {
	b := NewMemory(0)
	if err := b.Publish(envelope.Envelope{Topic: "logistics"}); !errors.Is(err, topic.ErrUnknownTopic) {
		t.Fatalf("expected ErrUnknownTopic, got %v", err)
	}
	if err := b.Publish(envelope.Envelope{Topic: topic.LogInfo}); err != nil {
		t.Fatalf("publish with no subscribers: %v", err)
	}
	oversize := envelope.Envelope{Topic: topic.ImageRaw, Payload: make([]byte, envelope.MaxPayload+1)}
	if err := b.Publish(oversize); !errors.Is(err, envelope.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if b.Stats().Unrouted != 1 || b.Stats().Rejected != 2 || b.Stats().Published != 1 {
		t.Fatalf("unexpected stats %+v", b.Stats())
	}
	if _, err := b.Subscribe("lo", func(envelope.Envelope) {}); !errors.Is(err, ErrInvalidPrefix) {
		t.Fatalf("expected ErrInvalidPrefix, got %v", err)
	}
	b.Close()
	if err := b.Publish(envelope.Envelope{Topic: topic.LogInfo}); !errors.Is(err, ErrBusClosed) {
		t.Fatalf("expected ErrBusClosed, got %v", err)
	}
	if _, err := b.Subscribe(topic.LogPrefix, func(envelope.Envelope) {}); !errors.Is(err, ErrBusClosed) {
		t.Fatalf("expected ErrBusClosed, got %v", err)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewMemory(4)
	defer b.Close()

	c := newCollector()
	sub, err := b.Subscribe(topic.LogPrefix, c.handle)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Unsubscribe(sub); err != nil {
		t.Fatal(err)
	}
	if err := b.Unsubscribe(sub); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
	select {
	case <-sub.Done():
	default:
		t.Fatalf("subscription not closed")
	}
	_ = b.Publish(envelope.Envelope{Topic: topic.LogInfo})
	c.quiet(t, 50*time.Millisecond)
}

func TestCloseUnblocksSubscribers(t *testing.T) {
	b := NewMemory(4)
	subs := make([]*Subscription, 3)
	for i := range subs {
		s, err := b.Subscribe(topic.LogPrefix, func(envelope.Envelope) {})
		if err != nil {
			t.Fatal(err)
		}
		subs[i] = s
	}

	closed := make(chan struct{})
	go func() {
		b.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatalf("Close hung")
	}
	for _, s := range subs {
		select {
		case <-s.Done():
		default:
			t.Fatalf("subscription %d still open", s.ID())
		}
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	b := NewMemory(4)
	defer b.Close()

	c := newCollector()
	sub, err := b.Subscribe(topic.LogPrefix, func(env envelope.Envelope) {
		if env.Sequence == 1 {
			panic("boom")
		}
		c.handle(env)
	})
	if err != nil {
		t.Fatal(err)
	}
	_ = b.Publish(envelope.Envelope{Topic: topic.LogInfo, Sequence: 1})
	_ = b.Publish(envelope.Envelope{Topic: topic.LogInfo, Sequence: 2})
	got := c.wait(t, 1)
	if got[0].Sequence != 2 {
		t.Fatalf("got sequence %d", got[0].Sequence)
	}
	if sub.Stats().Panics != 1 {
		t.Fatalf("panics %d", sub.Stats().Panics)
	}
}
