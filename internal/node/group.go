package node

import (
	"context"
	"errors"
	"log/slog"
)

// Runner is what a Group supervises. *Source, *Processor and *Sink satisfy it.
type Runner interface {
	ID() string
	Role() string
	State() State
	Start(ctx context.Context) error
	Stop() error
	Done() <-chan struct{}
	Err() error
}

// Group starts a set of nodes and tears them all down together.
type Group struct {
	nodes []Runner
}

func NewGroup(nodes ...Runner) *Group {
	return &Group{nodes: nodes}
}

func (g *Group) Add(n Runner) { g.nodes = append(g.nodes, n) }

// Run starts every node in order and blocks until ctx is done or a node exits
// with an error. All started nodes are stopped in reverse order before it
// returns. The returned error is the first node failure, if any.
func (g *Group) Run(ctx context.Context) error {
	started := make([]Runner, 0, len(g.nodes))
	var err error
	for _, n := range g.nodes {
		if err = n.Start(ctx); err != nil {
			break
		}
		started = append(started, n)
	}
	if err == nil {
		err = g.wait(ctx, started)
	}

	for i := len(started) - 1; i >= 0; i-- {
		if stopErr := started[i].Stop(); stopErr != nil {
			slog.Warn("node stop failed", "node", started[i].ID(), "error", stopErr)
		}
	}
	if err == nil {
		for _, n := range started {
			err = errors.Join(err, n.Err())
		}
	}
	return err
}

func (g *Group) wait(ctx context.Context, nodes []Runner) error {
	exits := make(chan error, len(nodes))
	for _, n := range nodes {
		go func(n Runner) {
			<-n.Done()
			exits <- n.Err()
		}(n)
	}
	for range nodes {
		select {
		case <-ctx.Done():
			return nil
		case err := <-exits:
			if err != nil {
				return err
			}
		}
	}
	<-ctx.Done()
	return nil
}
