package zmqbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/pebbe/zmq4"
)

var proxyIDs atomic.Uint64

// Proxy forwards envelopes from publishers connected to frontend (XSUB) to
// subscribers connected to backend (XPUB) until ctx is done. Publishers use
// Options.ConnectPublisher with Endpoint=frontend and SubscribeEndpoint=backend.
func Proxy(ctx context.Context, frontend, backend string) error {
	xsub, err := zmq4.NewSocket(zmq4.XSUB)
	if err != nil {
		return err
	}
	defer xsub.Close()
	if err := xsub.Bind(frontend); err != nil {
		return fmt.Errorf("zmqbus: bind XSUB %s: %w", frontend, err)
	}

	xpub, err := zmq4.NewSocket(zmq4.XPUB)
	if err != nil {
		return err
	}
	defer xpub.Close()
	if err := xpub.Bind(backend); err != nil {
		return fmt.Errorf("zmqbus: bind XPUB %s: %w", backend, err)
	}

	controlAddr := fmt.Sprintf("inproc://brickbus-proxy-control-%d", proxyIDs.Add(1))
	control, err := zmq4.NewSocket(zmq4.PAIR)
	if err != nil {
		return err
	}
	defer control.Close()
	if err := control.Bind(controlAddr); err != nil {
		return err
	}

	stopper, err := zmq4.NewSocket(zmq4.PAIR)
	if err != nil {
		return err
	}
	if err := stopper.Connect(controlAddr); err != nil {
		_ = stopper.Close()
		return err
	}

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		defer stopper.Close()
		select {
		case <-ctx.Done():
			if _, err := stopper.Send("TERMINATE", 0); err != nil {
				slog.Error("proxy terminate failed", "error", err)
			}
		case <-finished:
		}
	}()

	slog.Info("proxy started", "frontend", frontend, "backend", backend)
	err = zmq4.ProxySteerable(xsub, xpub, nil, control)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
