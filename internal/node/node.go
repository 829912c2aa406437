// Package node runs pipeline stages that talk to each other only through the bus.
//
// A Node moves through Created → Running → Stopping → Stopped. Its run loop
// executes on its own goroutine; Stop cancels the loop and waits for it to return.
package node

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"brickbus-go/internal/bus"
	"brickbus-go/internal/envelope"
	"brickbus-go/internal/topic"
)

type State int32

const (
	Created State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Node is the lifecycle shared by every role. Roles supply the run loop.
type Node struct {
	role string
	seq  *envelope.Sequencer
	pub  bus.Publisher
	run  func(ctx context.Context) error

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewID returns a producer id of the form "<role>-<uuid>".
func NewID(role string) string {
	return role + "-" + uuid.NewString()
}

func newNode(role, id string, pub bus.Publisher, run func(ctx context.Context) error) *Node {
	if id == "" {
		id = NewID(role)
	}
	return &Node{
		role: role,
		seq:  envelope.NewSequencer(id),
		pub:  pub,
		run:  run,
		done: make(chan struct{}),
	}
}

func (n *Node) ID() string   { return n.seq.ProducerID() }
func (n *Node) Role() string { return n.role }

func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Done is closed when the run loop has returned.
func (n *Node) Done() <-chan struct{} { return n.done }

// Err is the run loop's error once Done is closed. A loop ended by Stop reports nil.
func (n *Node) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.err
}

func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != Created {
		return fmt.Errorf("%w: start %s in state %s", ErrInvalidState, n.ID(), n.state)
	}
	runCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.state = Running
	go n.loop(runCtx)
	slog.Info("node started", "node", n.ID(), "role", n.role)
	return nil
}

func (n *Node) loop(ctx context.Context) {
	err := n.run(ctx)
	n.mu.Lock()
	n.err = err
	n.state = Stopped
	n.cancel()
	n.mu.Unlock()
	close(n.done)
	if err != nil {
		slog.Error("node exited", "node", n.ID(), "role", n.role, "error", err)
	} else {
		slog.Info("node stopped", "node", n.ID(), "role", n.role)
	}
}

// Stop signals the run loop and blocks until it returns. Stopping a node that
// already stopped on its own is a no-op.
func (n *Node) Stop() error {
	n.mu.Lock()
	switch n.state {
	case Created:
		n.mu.Unlock()
		return fmt.Errorf("%w: stop %s before start", ErrInvalidState, n.ID())
	case Running:
		n.state = Stopping
		n.cancel()
	}
	n.mu.Unlock()
	<-n.done
	return nil
}

func (n *Node) publish(t string, payload []byte) error {
	if n.pub == nil {
		return fmt.Errorf("node %s has no publisher", n.ID())
	}
	return n.pub.Publish(n.seq.Seal(t, payload))
}

// logf publishes a log envelope for the sink. Failures are only reported locally.
func (n *Node) logf(sev topic.Severity, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if err := n.publish(topic.Log(sev), []byte(msg)); err != nil {
		slog.Warn("log publish failed", "node", n.ID(), "severity", sev.String(), "error", err)
	}
}
