package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"brickbus-go/internal/bus"
	"brickbus-go/internal/framebuffer"
	"brickbus-go/internal/payload"
	"brickbus-go/internal/topic"
	"brickbus-go/internal/types"
)

// Retry delays after transient capture errors double from min to max.
const (
	minRetryDelay = 10 * time.Millisecond
	maxRetryDelay = time.Second
)

type SourceConfig struct {
	ID       string
	Topic    string
	Capacity int
	Codec    payload.Codec
}

// Source captures frames into its own FrameBuffer and publishes each new one.
// A capturer that implements io.Closer is closed when the loop ends.
type Source struct {
	*Node
	cfg    SourceConfig
	camera Capturer
	buffer *framebuffer.Buffer[types.Frame]
	seen   uint64
}

func NewSource(cfg SourceConfig, pub bus.Publisher, camera Capturer) (*Source, error) {
	if cfg.Topic == "" {
		cfg.Topic = topic.ImageRGB
	}
	if err := topic.Validate(cfg.Topic); err != nil {
		return nil, err
	}
	if cfg.Codec == nil {
		return nil, fmt.Errorf("source: payload codec is required")
	}
	if pub == nil || camera == nil {
		return nil, fmt.Errorf("source: publisher and capturer are required")
	}
	buffer, err := framebuffer.New[types.Frame](cfg.Capacity)
	if err != nil {
		return nil, err
	}
	s := &Source{cfg: cfg, camera: camera, buffer: buffer}
	s.Node = newNode("source", cfg.ID, pub, s.loop)
	return s, nil
}

func (s *Source) loop(ctx context.Context) error {
	if c, ok := s.camera.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				slog.Warn("capturer close failed", "node", s.ID(), "error", err)
			}
		}()
	}

	backoff := time.Duration(0)
	for {
		if ctx.Err() != nil {
			return nil
		}
		frame, err := s.camera.AcquireFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrTransientCapture) {
				backoff = min(max(2*backoff, minRetryDelay), maxRetryDelay)
				s.logf(topic.Warn, "capture hiccup on %s, retrying in %s: %v", s.ID(), backoff, err)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoff):
				}
				continue
			}
			s.logf(topic.Error, "capture failed on %s: %v", s.ID(), err)
			if errors.Is(err, ErrFatalCapture) {
				return err
			}
			return fmt.Errorf("%w: %w", ErrFatalCapture, err)
		}
		backoff = 0
		s.buffer.Put(frame)
		s.publishLatest()
	}
}

func (s *Source) publishLatest() {
	frame, version, ok := s.buffer.Next(s.seen)
	if !ok {
		return
	}
	s.seen = version

	body, err := s.cfg.Codec.Marshal(frame)
	if err != nil {
		s.logf(topic.Error, "encode frame %d: %v", frame.Index, err)
		return
	}
	if err := s.publish(s.cfg.Topic, body); err != nil {
		s.logf(topic.Error, "publish frame %d: %v", frame.Index, err)
		return
	}
	s.logf(topic.Info, "published frame %d from %s at %.6f", frame.Index, frame.Camera, frame.CapturedAt)
}
