package vision

import (
	"fmt"

	"brickbus-go/internal/types"
)

// RedBrickDetector finds strongly red pixels in a colour frame and reports
// their bounding box.
type RedBrickDetector struct {
	MinRed    uint8
	MaxOther  uint8
	MinPixels int
}

func NewRedBrickDetector(minRed uint8) *RedBrickDetector {
	return &RedBrickDetector{MinRed: minRed, MaxOther: 80, MinPixels: 1}
}

func (d *RedBrickDetector) Name() string { return "red_brick_detector" }

func (d *RedBrickDetector) Process(f types.Frame) (types.Result, error) {
	if err := checkFrame(f); err != nil {
		return types.Result{}, err
	}
	if f.Channels != 3 {
		return types.Result{}, fmt.Errorf("%w: red detection needs 3 channels, got %d", ErrBadFrame, f.Channels)
	}

	var count int
	box := types.Box{MinX: f.Width, MinY: f.Height, MaxX: -1, MaxY: -1}
	for y := 0; y < f.Height; y++ {
		row := f.Pixels[y*f.Width*3 : (y+1)*f.Width*3]
		for x := 0; x < f.Width; x++ {
			r, g, b := row[x*3], row[x*3+1], row[x*3+2]
			if r < d.MinRed || g > d.MaxOther || b > d.MaxOther {
				continue
			}
			count++
			box.MinX = min(box.MinX, x)
			box.MinY = min(box.MinY, y)
			box.MaxX = max(box.MaxX, x)
			box.MaxY = max(box.MaxY, y)
		}
	}

	total := f.Width * f.Height
	res := types.Result{
		Label: LabelNone,
		Score: float64(count) / float64(total),
		Metrics: map[string]float64{
			"red_pixels": float64(count),
		},
	}
	if count >= d.MinPixels && count > 0 {
		res.Label = LabelRedBrick
		res.Box = &box
	}
	return res, nil
}
