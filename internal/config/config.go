package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	TransportMemory = "memory"
	TransportZMQ    = "zmq"
)

// AppConfig is everything cmd/brickbus needs to assemble a pipeline.
type AppConfig struct {
	Transport         string        `yaml:"transport"`          // memory, zmq
	Endpoint          string        `yaml:"endpoint"`           // tcp://host:port
	SubscribeEndpoint string        `yaml:"subscribe_endpoint"` // proxy backend, defaults to endpoint
	ConnectPublisher  bool          `yaml:"connect_publisher"`  // connect instead of bind, for proxy setups
	Capacity          int           `yaml:"capacity"`           // frame buffer slots per source
	RecvTimeout       time.Duration `yaml:"recv_timeout"`
	QueueSize         int           `yaml:"queue_size"`     // per subscription
	TopicPrefixes     []string      `yaml:"topic_prefixes"` // sink subscriptions
	PayloadCodec      string        `yaml:"payload_codec"`  // cbor, msgpack
	Camera            CameraConfig  `yaml:"camera"`
	RedThreshold      int           `yaml:"red_threshold"`
	MonitorPort       int           `yaml:"monitor_port"` // 0 disables the monitor
	MonitorPrefixes   []string      `yaml:"monitor_prefixes"`
	RecordDir         string        `yaml:"record_dir"` // empty disables the record file
	LogEvery          int           `yaml:"log_every"`
	LogLevel          string        `yaml:"log_level"`
	StatsEvery        time.Duration `yaml:"stats_every"`
}

type CameraConfig struct {
	Type      string  `yaml:"type"`
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	Framerate float64 `yaml:"framerate"`
	BrickSize int     `yaml:"brick_size"`
}

func Default() AppConfig {
	return AppConfig{
		Transport:       TransportMemory,
		Endpoint:        "tcp://127.0.0.1:5555",
		Capacity:        10,
		RecvTimeout:     100 * time.Millisecond,
		QueueSize:       64,
		TopicPrefixes:   []string{"log"},
		PayloadCodec:    "cbor",
		Camera:          CameraConfig{Type: "COLOR", Width: 64, Height: 48, Framerate: 10, BrickSize: 8},
		RedThreshold:    150,
		MonitorPort:     8888,
		MonitorPrefixes: []string{""},
		LogEvery:        100,
		LogLevel:        "info",
		StatsEvery:      10 * time.Second,
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
