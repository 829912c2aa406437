package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"brickbus-go/internal/bus"
	"brickbus-go/internal/bus/zmqbus"
	"brickbus-go/internal/capture"
	"brickbus-go/internal/config"
	"brickbus-go/internal/logsink"
	"brickbus-go/internal/node"
	"brickbus-go/internal/payload"
	"brickbus-go/internal/server"
	"brickbus-go/internal/topic"
	"brickbus-go/internal/vision"
)

func main() {
	var (
		configPath   = flag.String("config", "", "Optional YAML config file; flags given explicitly override it")
		transport    = flag.String("transport", "memory", "Bus transport: memory or zmq")
		endpoint     = flag.String("endpoint", "tcp://127.0.0.1:5555", "ZMQ endpoint the publisher binds")
		subEndpoint  = flag.String("subscribe-endpoint", "", "ZMQ endpoint subscribers connect to (proxy backend)")
		connectPub   = flag.Bool("connect-publisher", false, "Connect the publisher instead of binding (proxy frontend)")
		capacity     = flag.Int("capacity", 10, "Frame buffer slots per source")
		recvTimeout  = flag.Duration("recv-timeout", 100*time.Millisecond, "Receive timeout bounding shutdown latency")
		queueSize    = flag.Int("queue-size", bus.DefaultQueueSize, "Delivery queue length per subscription")
		prefixes     = flag.String("topic-prefixes", "log", "Comma separated topic prefixes for the sink")
		codecName    = flag.String("payload-codec", payload.CBOR, "Payload encoding: cbor or msgpack")
		cameraType   = flag.String("camera", "COLOR", "Simulated camera type")
		width        = flag.Int("width", 64, "Frame width")
		height       = flag.Int("height", 48, "Frame height")
		framerate    = flag.Float64("framerate", 10, "Frames per second")
		redThreshold = flag.Int("red-threshold", 150, "Minimum red value for the brick detector")
		monitorPort  = flag.Int("monitor-port", 8888, "HTTP port for the monitor, 0 to disable")
		recordDir    = flag.String("record-dir", "", "Directory for the sink record file, empty to disable")
		logEvery     = flag.Int("log-every", 100, "Log every Nth transport error")
		logLevel     = flag.String("log-level", "info", "debug, info, warn or error")
		statsEvery   = flag.Duration("stats-every", 10*time.Second, "Interval for bus statistics logging")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fatal("load config", err)
		}
		cfg = loaded
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "transport":
			cfg.Transport = *transport
		case "endpoint":
			cfg.Endpoint = *endpoint
		case "subscribe-endpoint":
			cfg.SubscribeEndpoint = *subEndpoint
		case "connect-publisher":
			cfg.ConnectPublisher = *connectPub
		case "capacity":
			cfg.Capacity = *capacity
		case "recv-timeout":
			cfg.RecvTimeout = *recvTimeout
		case "queue-size":
			cfg.QueueSize = *queueSize
		case "topic-prefixes":
			cfg.TopicPrefixes = strings.Split(*prefixes, ",")
		case "payload-codec":
			cfg.PayloadCodec = *codecName
		case "camera":
			cfg.Camera.Type = *cameraType
		case "width":
			cfg.Camera.Width = *width
		case "height":
			cfg.Camera.Height = *height
		case "framerate":
			cfg.Camera.Framerate = *framerate
		case "red-threshold":
			cfg.RedThreshold = *redThreshold
		case "monitor-port":
			cfg.MonitorPort = *monitorPort
		case "record-dir":
			cfg.RecordDir = *recordDir
		case "log-every":
			cfg.LogEvery = *logEvery
		case "log-level":
			cfg.LogLevel = *logLevel
		case "stats-every":
			cfg.StatsEvery = *statsEvery
		}
	})
	if err := config.Validate(&cfg); err != nil {
		fatal("invalid configuration", err)
	}
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fatal("pipeline failed", err)
	}
	slog.Info("shutdown complete")
}

func run(ctx context.Context, cfg config.AppConfig) error {
	t, err := openTransport(cfg)
	if err != nil {
		return fmt.Errorf("open transport: %w", err)
	}
	defer t.Close()

	codec, err := payload.New(cfg.PayloadCodec)
	if err != nil {
		return err
	}

	var logger logsink.Logger = logsink.NewSlog(slog.Default())
	if cfg.RecordDir != "" {
		records, err := logsink.NewRecordWriter(cfg.RecordDir, "sink")
		if err != nil {
			return fmt.Errorf("open record file: %w", err)
		}
		defer records.Close()
		slog.Info("recording sink logs", "path", records.Path())
		logger = logsink.Multi{logger, records}
	}

	nodes, err := buildNodes(cfg, t, codec, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.MonitorPort > 0 {
		messages, untap, err := server.Tap(t, cfg.MonitorPrefixes, 256)
		if err != nil {
			return err
		}
		defer untap()
		monitor := server.New(cfg.MonitorPort, func() map[string]any { return status(t, nodes) })
		g.Go(func() error {
			if err := monitor.Run(gctx, messages); err != nil {
				return fmt.Errorf("monitor: %w", err)
			}
			return nil
		})
	}
	if cfg.StatsEvery > 0 {
		g.Go(func() error {
			logStats(gctx, t, cfg.StatsEvery)
			return nil
		})
	}

	slog.Info("pipeline starting",
		"transport", cfg.Transport,
		"endpoint", cfg.Endpoint,
		"camera", cfg.Camera.Type,
		"codec", codec.Name(),
		"nodes", len(nodes),
	)
	g.Go(func() error { return node.NewGroup(nodes...).Run(gctx) })
	return g.Wait()
}

func openTransport(cfg config.AppConfig) (bus.Transport, error) {
	if cfg.Transport == config.TransportZMQ {
		return zmqbus.New(zmqbus.Options{
			Endpoint:          cfg.Endpoint,
			SubscribeEndpoint: cfg.SubscribeEndpoint,
			ConnectPublisher:  cfg.ConnectPublisher,
			QueueSize:         cfg.QueueSize,
			RecvTimeout:       cfg.RecvTimeout,
			LogEvery:          cfg.LogEvery,
		})
	}
	return bus.NewMemory(cfg.QueueSize), nil
}

// buildNodes returns consumers before the source so that the group starts
// them first and the first frames are not published into an empty bus.
func buildNodes(cfg config.AppConfig, t bus.Transport, codec payload.Codec, logger logsink.Logger) ([]node.Runner, error) {
	sink, err := node.NewSink(node.SinkConfig{Prefixes: cfg.TopicPrefixes}, t, logger)
	if err != nil {
		return nil, err
	}
	recognition, err := node.NewProcessor(node.ProcessorConfig{
		Input:  topic.ImageRGB,
		Output: topic.RecognitionResult,
		Codec:  codec,
	}, t, vision.NewRedBrickDetector(uint8(cfg.RedThreshold)))
	if err != nil {
		return nil, err
	}
	sorting, err := node.NewProcessor(node.ProcessorConfig{
		Input:  topic.ImageRGB,
		Output: topic.DetectionResult,
		Codec:  codec,
	}, t, vision.NewColorSorter())
	if err != nil {
		return nil, err
	}

	camType, err := capture.ParseCameraType(cfg.Camera.Type)
	if err != nil {
		return nil, err
	}
	camera, err := capture.NewSimulator(capture.SimulatorConfig{
		Type:      camType,
		Width:     cfg.Camera.Width,
		Height:    cfg.Camera.Height,
		Framerate: cfg.Camera.Framerate,
		BrickSize: cfg.Camera.BrickSize,
	})
	if err != nil {
		return nil, err
	}
	source, err := node.NewSource(node.SourceConfig{
		Topic:    topic.ImageRGB,
		Capacity: cfg.Capacity,
		Codec:    codec,
	}, t, camera)
	if err != nil {
		return nil, err
	}
	return []node.Runner{sink, recognition, sorting, source}, nil
}

func status(t bus.Transport, nodes []node.Runner) map[string]any {
	states := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		entry := map[string]any{"id": n.ID(), "role": n.Role(), "state": n.State().String()}
		if err := n.Err(); err != nil {
			entry["error"] = err.Error()
		}
		states = append(states, entry)
	}
	return map[string]any{
		"bus":   t.Stats(),
		"nodes": states,
	}
}

func logStats(ctx context.Context, t bus.Transport, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := t.Stats()
			slog.Info("bus stats",
				"published", s.Published,
				"unrouted", s.Unrouted,
				"rejected", s.Rejected,
				"corrupt", s.Corrupt,
				"dropped", s.Dropped(),
				"subscriptions", len(s.Subscriptions),
			)
		}
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
