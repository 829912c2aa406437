package vision

import "brickbus-go/internal/types"

// ColorSorter classifies a frame by its dominant colour channel. Frames whose
// channel means differ by less than Tolerance, and single-channel frames, are gray.
type ColorSorter struct {
	Tolerance float64
}

func NewColorSorter() *ColorSorter {
	return &ColorSorter{Tolerance: 12}
}

func (s *ColorSorter) Name() string { return "color_sorter" }

func (s *ColorSorter) Process(f types.Frame) (types.Result, error) {
	if err := checkFrame(f); err != nil {
		return types.Result{}, err
	}
	if f.Channels < 3 {
		return types.Result{Label: LabelGray, Score: 1}, nil
	}

	var sums [3]uint64
	for i := 0; i < len(f.Pixels); i += f.Channels {
		sums[0] += uint64(f.Pixels[i])
		sums[1] += uint64(f.Pixels[i+1])
		sums[2] += uint64(f.Pixels[i+2])
	}
	n := float64(f.Width * f.Height)
	means := [3]float64{float64(sums[0]) / n, float64(sums[1]) / n, float64(sums[2]) / n}

	best, low := 0, means[0]
	for c := 1; c < 3; c++ {
		if means[c] > means[best] {
			best = c
		}
		low = min(low, means[c])
	}

	res := types.Result{
		Label: [3]string{LabelRed, LabelGreen, LabelBlue}[best],
		Metrics: map[string]float64{
			"mean_r": means[0],
			"mean_g": means[1],
			"mean_b": means[2],
		},
	}
	spread := means[best] - low
	if spread < s.Tolerance {
		res.Label = LabelGray
	}
	res.Score = spread / 255
	return res, nil
}
