package config

import (
	"fmt"
	"strings"

	"brickbus-go/internal/capture"
	"brickbus-go/internal/payload"
	"brickbus-go/internal/topic"
)

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks cfg and fills the few defaults that depend on other fields.
func Validate(cfg *AppConfig) error {
	switch cfg.Transport {
	case TransportMemory:
	case TransportZMQ:
		if cfg.Endpoint == "" {
			return fmt.Errorf("endpoint is required for the zmq transport")
		}
		if !strings.Contains(cfg.Endpoint, "://") {
			return fmt.Errorf("endpoint %q must look like tcp://host:port", cfg.Endpoint)
		}
	default:
		return fmt.Errorf("unknown transport %q", cfg.Transport)
	}
	if cfg.Capacity < 1 {
		return fmt.Errorf("capacity must be >= 1")
	}
	if cfg.RecvTimeout <= 0 {
		return fmt.Errorf("recv_timeout must be > 0")
	}
	if cfg.QueueSize < 1 {
		return fmt.Errorf("queue_size must be >= 1")
	}

	if len(cfg.TopicPrefixes) == 0 {
		cfg.TopicPrefixes = []string{topic.LogPrefix}
	}
	for _, p := range cfg.TopicPrefixes {
		if !topic.ValidPrefix(p) {
			return fmt.Errorf("topic prefix %q matches no known topic", p)
		}
	}
	for _, p := range cfg.MonitorPrefixes {
		if !topic.ValidPrefix(p) {
			return fmt.Errorf("monitor prefix %q matches no known topic", p)
		}
	}

	if _, err := payload.New(cfg.PayloadCodec); err != nil {
		return err
	}
	if _, err := capture.ParseCameraType(cfg.Camera.Type); err != nil {
		return err
	}
	if cfg.Camera.Width <= 0 || cfg.Camera.Height <= 0 {
		return fmt.Errorf("camera resolution must be positive")
	}
	if cfg.Camera.Framerate <= 0 {
		return fmt.Errorf("camera.framerate must be > 0")
	}
	if cfg.RedThreshold < 0 || cfg.RedThreshold > 255 {
		return fmt.Errorf("red_threshold must be within 0..255")
	}
	if cfg.MonitorPort < 0 || cfg.MonitorPort > 65535 {
		return fmt.Errorf("monitor_port out of range")
	}
	if cfg.LogEvery < 1 {
		cfg.LogEvery = 1
	}
	if !logLevels[strings.ToLower(cfg.LogLevel)] {
		return fmt.Errorf("unknown log_level %q", cfg.LogLevel)
	}
	return nil
}
