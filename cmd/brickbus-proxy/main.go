package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"brickbus-go/internal/bus/zmqbus"
)

func main() {
	var (
		frontend = flag.String("frontend", "tcp://*:5555", "Endpoint publishers connect to")
		backend  = flag.String("backend", "tcp://*:5556", "Endpoint subscribers connect to")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("proxy starting", "frontend", *frontend, "backend", *backend)
	if err := zmqbus.Proxy(ctx, *frontend, *backend); err != nil {
		slog.Error("proxy failed", "error", err)
		os.Exit(1)
	}
	slog.Info("proxy stopped")
}
