package zmqbus

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pebbe/zmq4"

	"brickbus-go/internal/envelope"
	"brickbus-go/internal/topic"
)

func TestProxyForwardsBetweenProcesses(t *testing.T) {
	id := endpointIDs.Add(1)
	frontend := fmt.Sprintf("inproc://proxy-front-%d", id)
	backend := fmt.Sprintf("inproc://proxy-back-%d", id)

	ctx, cancel := context.WithCancel(context.Background())
	proxyErr := make(chan error, 1)
	go func() { proxyErr <- Proxy(ctx, frontend, backend) }()
	time.Sleep(20 * time.Millisecond)

	b, err := New(Options{
		Endpoint:          frontend,
		SubscribeEndpoint: backend,
		ConnectPublisher:  true,
		RecvTimeout:       20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := make(chan envelope.Envelope, 64)
	if _, err := b.Subscribe(topic.RecognitionResult, func(env envelope.Envelope) { got <- env }); err != nil {
		t.Fatal(err)
	}
	seq := envelope.NewSequencer("processor")
	env := publishUntil(t, b, func() envelope.Envelope {
		return seq.Seal(topic.RecognitionResult, []byte("red_brick"))
	}, got)
	if string(env.Payload) != "red_brick" {
		t.Fatalf("unexpected envelope %+v", env)
	}
	b.Close()

	cancel()
	select {
	case err := <-proxyErr:
		if err != nil {
			t.Fatalf("Proxy = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("proxy ignored cancellation")
	}
}

func TestCorruptMessageIsReportedOnLogError(t *testing.T) {
	id := endpointIDs.Add(1)
	frontend := fmt.Sprintf("inproc://proxy-front-%d", id)
	backend := fmt.Sprintf("inproc://proxy-back-%d", id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Proxy(ctx, frontend, backend)
	time.Sleep(20 * time.Millisecond)

	b, err := New(Options{
		Endpoint:          frontend,
		SubscribeEndpoint: backend,
		ConnectPublisher:  true,
		RecvTimeout:       20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	got := make(chan envelope.Envelope, 64)
	if _, err := b.Subscribe(topic.LogError, func(env envelope.Envelope) { got <- env }); err != nil {
		t.Fatal(err)
	}

	raw, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		t.Fatal(err)
	}
	defer raw.Close()
	raw.SetLinger(0)
	if err := raw.Connect(frontend); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		if _, err := raw.SendMessage(topic.LogError, []byte("garbage")); err != nil {
			t.Fatalf("raw send: %v", err)
		}
		select {
		case env := <-got:
			if env.ProducerID != b.ProducerID() || !strings.Contains(string(env.Payload), "corrupt") {
				t.Fatalf("unexpected report %+v: %s", env, env.Payload)
			}
			if b.Stats().Corrupt == 0 {
				t.Fatal("corrupt counter not incremented")
			}
			return
		case <-tick.C:
		case <-deadline:
			t.Fatal("corrupt message never reported on log.error")
		}
	}
}
