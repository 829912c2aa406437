// Package vision holds the processing collaborators run by processor nodes.
package vision

import (
	"errors"
	"fmt"

	"brickbus-go/internal/types"
)

var ErrBadFrame = errors.New("vision: malformed frame")

const (
	LabelRedBrick = "red_brick"
	LabelNone     = "none"
	LabelRed      = "red"
	LabelGreen    = "green"
	LabelBlue     = "blue"
	LabelGray     = "gray"
)

func checkFrame(f types.Frame) error {
	if f.Width <= 0 || f.Height <= 0 || f.Channels <= 0 {
		return fmt.Errorf("%w: geometry %dx%dx%d", ErrBadFrame, f.Width, f.Height, f.Channels)
	}
	if want := f.Width * f.Height * f.Channels; len(f.Pixels) != want {
		return fmt.Errorf("%w: %d pixel bytes, want %d", ErrBadFrame, len(f.Pixels), want)
	}
	return nil
}
