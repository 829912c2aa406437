package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"brickbus-go/internal/types"
)

var ErrStopped = errors.New("capture: simulator stopped")

type SimulatorConfig struct {
	Name      string
	Type      CameraType
	Width     int
	Height    int
	Framerate float64
	// BrickSize is the side of the red square drawn into colour frames. Zero disables it.
	BrickSize int
}

func (c SimulatorConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("capture: resolution %dx%d must be positive", c.Width, c.Height)
	}
	if c.Framerate <= 0 {
		return fmt.Errorf("capture: framerate %.2f must be positive", c.Framerate)
	}
	if c.BrickSize < 0 {
		return fmt.Errorf("capture: brick size %d must not be negative", c.BrickSize)
	}
	return nil
}

// Simulator is a synthetic camera. Frames arrive at the configured framerate;
// colour cameras show a red square sliding across a grey background.
type Simulator struct {
	cfg    SimulatorConfig
	ticker *time.Ticker
	index  uint64
	now    func() time.Time
}

func NewSimulator(cfg SimulatorConfig) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = "camera " + cfg.Type.String()
	}
	return &Simulator{
		cfg:    cfg,
		ticker: time.NewTicker(time.Duration(float64(time.Second) / cfg.Framerate)),
		now:    time.Now,
	}, nil
}

func (s *Simulator) String() string { return s.cfg.Name }

// AcquireFrame waits for the next tick and renders a frame. It is meant to be
// called from a single goroutine.
func (s *Simulator) AcquireFrame(ctx context.Context) (types.Frame, error) {
	if s.ticker == nil {
		return types.Frame{}, ErrStopped
	}
	select {
	case <-ctx.Done():
		return types.Frame{}, ctx.Err()
	case <-s.ticker.C:
	}
	s.index++
	return s.render(s.index), nil
}

func (s *Simulator) Close() error {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	return nil
}

func (s *Simulator) render(index uint64) types.Frame {
	w, h, ch := s.cfg.Width, s.cfg.Height, s.cfg.Type.Channels()
	pixels := make([]byte, w*h*ch)
	for i := range pixels {
		pixels[i] = 96
	}

	size := s.cfg.BrickSize
	if ch == 3 && size > 0 && size <= w && size <= h {
		x0 := int(index % uint64(w-size+1))
		y0 := (h - size) / 2
		for y := y0; y < y0+size; y++ {
			for x := x0; x < x0+size; x++ {
				p := (y*w + x) * 3
				pixels[p], pixels[p+1], pixels[p+2] = 220, 30, 30
			}
		}
	}

	return types.Frame{
		Camera:     s.cfg.Name,
		Index:      index,
		Width:      w,
		Height:     h,
		Channels:   ch,
		CapturedAt: float64(s.now().UnixNano()) / 1e9,
		Pixels:     pixels,
	}
}
