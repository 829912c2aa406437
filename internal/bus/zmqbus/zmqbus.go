// Package zmqbus carries bus envelopes over ZeroMQ PUB/SUB sockets.
//
// Each frame on the wire is a two-part message: the topic (so ZeroMQ can
// filter by prefix at the socket) followed by the encoded envelope. ZeroMQ's
// filter is a raw byte prefix, so subscriptions re-check segment boundaries
// after decoding.
package zmqbus

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pebbe/zmq4"

	"brickbus-go/internal/bus"
	"brickbus-go/internal/envelope"
	"brickbus-go/internal/topic"
)

const DefaultRecvTimeout = 100 * time.Millisecond

type Options struct {
	// Endpoint is where the PUB socket binds, e.g. "tcp://127.0.0.1:5555".
	Endpoint string
	// SubscribeEndpoint is where SUB sockets connect. Defaults to Endpoint.
	SubscribeEndpoint string
	// ConnectPublisher connects the PUB socket instead of binding it,
	// for use behind a Proxy frontend.
	ConnectPublisher bool
	QueueSize        int
	// RecvTimeout bounds how long a blocked receive takes to notice Unsubscribe or Close.
	RecvTimeout time.Duration
	LogEvery    int
}

// Bus implements bus.Transport on ZeroMQ sockets.
type Bus struct {
	opts   Options
	pub    *zmq4.Socket
	outbox *bus.Subscription
	// seq stamps the bus's own log.error reports.
	seq *envelope.Sequencer

	mu     sync.Mutex
	subs   map[uint64]*reader
	closed bool

	published  atomic.Uint64
	rejected   atomic.Uint64
	corrupt    atomic.Uint64
	sendErrors atomic.Uint64
	logCounter atomic.Uint64
}

type reader struct {
	sub    *bus.Subscription
	socket *zmq4.Socket
	exited chan struct{}
}

func New(opts Options) (*Bus, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("zmqbus: endpoint is required")
	}
	if opts.SubscribeEndpoint == "" {
		opts.SubscribeEndpoint = opts.Endpoint
	}
	if opts.RecvTimeout <= 0 {
		opts.RecvTimeout = DefaultRecvTimeout
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = bus.DefaultQueueSize
	}
	if opts.LogEvery < 1 {
		opts.LogEvery = 1
	}

	pub, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, err
	}
	if err := pub.SetLinger(0); err != nil {
		_ = pub.Close()
		return nil, err
	}
	if opts.ConnectPublisher {
		err = pub.Connect(opts.Endpoint)
	} else {
		err = pub.Bind(opts.Endpoint)
	}
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("zmqbus: publisher on %s: %w", opts.Endpoint, err)
	}

	b := &Bus{
		opts: opts,
		pub:  pub,
		seq:  envelope.NewSequencer("zmqbus-" + uuid.NewString()),
		subs: make(map[uint64]*reader),
	}
	// The outbox is the only goroutine touching the PUB socket, which keeps
	// publish order and never blocks callers.
	b.outbox = bus.NewSubscription("", opts.QueueSize, b.send)
	return b, nil
}

func (b *Bus) Publish(env envelope.Envelope) error {
	if err := topic.Validate(env.Topic); err != nil {
		b.rejected.Add(1)
		return err
	}
	if err := envelope.CheckSize(env); err != nil {
		b.rejected.Add(1)
		return err
	}
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed || !b.outbox.Offer(env) {
		return bus.ErrBusClosed
	}
	b.published.Add(1)
	return nil
}

func (b *Bus) send(env envelope.Envelope) {
	data, err := envelope.Encode(env)
	if err == nil {
		_, err = b.pub.SendMessage(env.Topic, data)
	}
	if err != nil {
		b.sendErrors.Add(1)
		b.logEveryN("zmq send failed", "topic", env.Topic, "error", err)
	}
}

func (b *Bus) Subscribe(prefix string, h bus.Handler) (*bus.Subscription, error) {
	if !topic.ValidPrefix(prefix) {
		return nil, fmt.Errorf("%w: %q", bus.ErrInvalidPrefix, prefix)
	}
	socket, err := b.newSubSocket(prefix)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		_ = socket.Close()
		return nil, bus.ErrBusClosed
	}
	r := &reader{
		sub:    bus.NewSubscription(prefix, b.opts.QueueSize, h),
		socket: socket,
		exited: make(chan struct{}),
	}
	b.subs[r.sub.ID()] = r
	go b.read(r)
	return r.sub, nil
}

func (b *Bus) newSubSocket(prefix string) (*zmq4.Socket, error) {
	socket, err := zmq4.NewSocket(zmq4.SUB)
	if err != nil {
		return nil, err
	}
	setup := []func() error{
		func() error { return socket.SetLinger(0) },
		func() error { return socket.SetRcvtimeo(b.opts.RecvTimeout) },
		func() error { return socket.SetSubscribe(prefix) },
		func() error { return socket.Connect(b.opts.SubscribeEndpoint) },
	}
	for _, step := range setup {
		if err := step(); err != nil {
			_ = socket.Close()
			return nil, fmt.Errorf("zmqbus: subscriber on %s: %w", b.opts.SubscribeEndpoint, err)
		}
	}
	return socket, nil
}

func (b *Bus) read(r *reader) {
	defer close(r.exited)
	defer r.socket.Close()

	for {
		select {
		case <-r.sub.Done():
			return
		default:
		}

		parts, err := r.socket.RecvMessageBytes(0)
		if err != nil {
			switch zmq4.AsErrno(err) {
			case zmq4.Errno(syscall.EAGAIN), zmq4.Errno(syscall.EINTR):
				continue
			}
			b.abandon(r, err)
			return
		}
		var env envelope.Envelope
		if len(parts) != 2 {
			err = fmt.Errorf("%w: %d message parts, want 2", envelope.ErrCorrupt, len(parts))
		} else {
			env, err = envelope.Decode(parts[1])
			if err == nil && env.Topic != string(parts[0]) {
				err = fmt.Errorf("%w: frame topic %q does not match envelope topic %q", envelope.ErrCorrupt, parts[0], env.Topic)
			}
		}
		if err != nil {
			b.corrupt.Add(1)
			b.logEveryN("zmq envelope dropped", "prefix", r.sub.Prefix(), "error", err)
			b.report("subscription %q dropped a message: %v", r.sub.Prefix(), err)
			continue
		}
		if !topic.Matches(r.sub.Prefix(), env.Topic) {
			continue
		}
		r.sub.Offer(env)
	}
}

// ProducerID identifies log.error reports published by the bus itself.
func (b *Bus) ProducerID() string { return b.seq.ProducerID() }

// abandon ends a subscription whose socket failed, so its owner sees Done.
func (b *Bus) abandon(r *reader, err error) {
	slog.Error("zmq receive loop stopped", "prefix", r.sub.Prefix(), "error", err)
	b.report("subscription %q stopped: %v", r.sub.Prefix(), err)
	r.sub.Close()
}

// report publishes a log.error envelope from the bus itself. Nothing is sent
// once the bus is closed.
func (b *Bus) report(format string, args ...any) {
	env := b.seq.Seal(topic.LogError, []byte(fmt.Sprintf(format, args...)))
	if err := b.Publish(env); err != nil {
		slog.Debug("zmq report not published", "error", err)
	}
}

// Unsubscribe returns once the subscription's socket is closed, within about RecvTimeout.
func (b *Bus) Unsubscribe(s *bus.Subscription) error {
	if s == nil {
		return bus.ErrSubscriptionNotFound
	}
	b.mu.Lock()
	r, ok := b.subs[s.ID()]
	delete(b.subs, s.ID())
	b.mu.Unlock()
	if !ok {
		return bus.ErrSubscriptionNotFound
	}
	r.stop()
	return nil
}

func (r *reader) stop() {
	r.sub.Close()
	<-r.exited
}

func (b *Bus) Stats() bus.Stats {
	b.mu.Lock()
	subs := make([]bus.SubscriptionStats, 0, len(b.subs))
	for _, r := range b.subs {
		subs = append(subs, r.sub.Stats())
	}
	b.mu.Unlock()
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return bus.Stats{
		Published:     b.published.Load(),
		Rejected:      b.rejected.Load(),
		Corrupt:       b.corrupt.Load(),
		Subscriptions: subs,
	}
}

// Close stops every subscription, flushes nothing, and releases the sockets.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	readers := b.subs
	b.subs = make(map[uint64]*reader)
	b.mu.Unlock()

	var wg sync.WaitGroup
	for _, r := range readers {
		wg.Add(1)
		go func(r *reader) {
			defer wg.Done()
			r.stop()
		}(r)
	}
	wg.Wait()

	b.outbox.Close()
	return b.pub.Close()
}

func (b *Bus) logEveryN(msg string, args ...any) {
	if b.logCounter.Add(1)%uint64(b.opts.LogEvery) == 0 {
		slog.Warn(msg, args...)
	}
}
