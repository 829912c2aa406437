package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := Validate(&cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brickbus.yaml")
	data := `
transport: zmq
endpoint: tcp://127.0.0.1:6000
capacity: 4
recv_timeout: 250ms
topic_prefixes: [log.error, log.critical]
payload_codec: msgpack
camera:
  type: mono_nir
  width: 320
  height: 240
  framerate: 30
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport != TransportZMQ || cfg.Capacity != 4 || cfg.RecvTimeout != 250*time.Millisecond {
		t.Fatalf("cfg = %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.TopicPrefixes, []string{"log.error", "log.critical"}) {
		t.Fatalf("prefixes = %v", cfg.TopicPrefixes)
	}
	if cfg.Camera.Width != 320 || cfg.Camera.BrickSize != 8 || cfg.QueueSize != 64 {
		t.Fatalf("camera/defaults = %+v / %d", cfg.Camera, cfg.QueueSize)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*AppConfig){
		"capacity":     func(c *AppConfig) { c.Capacity = 0 },
		"recv_timeout": func(c *AppConfig) { c.RecvTimeout = 0 },
		"transport":    func(c *AppConfig) { c.Transport = "udp" },
		"endpoint":     func(c *AppConfig) { c.Transport = TransportZMQ; c.Endpoint = "localhost" },
		"prefix":       func(c *AppConfig) { c.TopicPrefixes = []string{"lo"} },
		"codec":        func(c *AppConfig) { c.PayloadCodec = "json" },
		"camera":       func(c *AppConfig) { c.Camera.Type = "thermal" },
		"framerate":    func(c *AppConfig) { c.Camera.Framerate = -1 },
		"level":        func(c *AppConfig) { c.LogLevel = "loud" },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := Validate(&cfg); err == nil {
			t.Errorf("%s: invalid config accepted", name)
		}
	}
}

func TestLoadReportsParseErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("capacity: [1, 2"), 0o644)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse") {
		t.Fatalf("err = %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}
