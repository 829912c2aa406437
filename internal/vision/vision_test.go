package vision

import (
	"errors"
	"reflect"
	"testing"

	"brickbus-go/internal/types"
)

func fill(w, h int, rgb [3]byte) types.Frame {
	px := make([]byte, w*h*3)
	for i := 0; i < len(px); i += 3 {
		copy(px[i:], rgb[:])
	}
	return types.Frame{Width: w, Height: h, Channels: 3, Pixels: px}
}

func paint(f types.Frame, x, y int, rgb [3]byte) {
	copy(f.Pixels[(y*f.Width+x)*3:], rgb[:])
}

func TestRedBrickDetector(t *testing.T) {
	d := NewRedBrickDetector(150)
	f := fill(5, 4, [3]byte{90, 90, 90})
	paint(f, 1, 1, [3]byte{200, 20, 20})
	paint(f, 3, 2, [3]byte{255, 0, 10})

	got, err := d.Process(f)
	if err != nil {
		t.Fatal(err)
	}
	if got.Label != LabelRedBrick || got.Score != 2.0/20 {
		t.Fatalf("result = %+v", got)
	}
	want := &types.Box{MinX: 1, MinY: 1, MaxX: 3, MaxY: 2}
	if !reflect.DeepEqual(got.Box, want) {
		t.Fatalf("box = %+v, want %+v", got.Box, want)
	}

	empty, err := d.Process(fill(5, 4, [3]byte{90, 90, 90}))
	if err != nil {
		t.Fatal(err)
	}
	if empty.Label != LabelNone || empty.Box != nil {
		t.Fatalf("empty result = %+v", empty)
	}
}

func TestDetectorRejectsBadFrames(t *testing.T) {
	d := NewRedBrickDetector(150)
	cases := []types.Frame{
		{Width: 2, Height: 2, Channels: 3, Pixels: make([]byte, 5)},
		{Width: 2, Height: 2, Channels: 1, Pixels: make([]byte, 4)},
		{},
	}
	for _, f := range cases {
		if _, err := d.Process(f); !errors.Is(err, ErrBadFrame) {
			t.Errorf("Process(%dx%dx%d) err = %v", f.Width, f.Height, f.Channels, err)
		}
	}
}

func TestColorSorter(t *testing.T) {
	s := NewColorSorter()
	cases := []struct {
		rgb  [3]byte
		want string
	}{
		{[3]byte{200, 40, 40}, LabelRed},
		{[3]byte{10, 180, 30}, LabelGreen},
		{[3]byte{0, 0, 90}, LabelBlue},
		{[3]byte{100, 104, 98}, LabelGray},
	}
	for _, c := range cases {
		got, err := s.Process(fill(3, 3, c.rgb))
		if err != nil {
			t.Fatal(err)
		}
		if got.Label != c.want {
			t.Errorf("%v sorted as %s, want %s", c.rgb, got.Label, c.want)
		}
	}

	mono := types.Frame{Width: 2, Height: 2, Channels: 1, Pixels: []byte{1, 2, 3, 4}}
	if got, err := s.Process(mono); err != nil || got.Label != LabelGray {
		t.Fatalf("mono = %+v, %v", got, err)
	}
}
