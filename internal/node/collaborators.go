package node

import (
	"context"

	"brickbus-go/internal/topic"
	"brickbus-go/internal/types"
)

// Capturer produces frames for a Source. AcquireFrame should return within one
// frame period and must return promptly once ctx is done.
type Capturer interface {
	AcquireFrame(ctx context.Context) (types.Frame, error)
}

// Algorithm turns a frame into a result without touching pipeline state.
type Algorithm interface {
	Name() string
	Process(frame types.Frame) (types.Result, error)
}

// Logger persists log messages routed to a Sink.
type Logger interface {
	Log(sev topic.Severity, msg []byte) error
}
