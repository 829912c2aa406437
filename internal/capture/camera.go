// Package capture provides frame acquisition collaborators for source nodes.
package capture

import (
	"fmt"
	"strings"
)

type CameraType int

const (
	Mono CameraType = iota
	Color
	MonoNIR
	ColorNIR
	SWIR
	UV
	Laser3D
	ToF3D
)

var cameraNames = [...]string{"MONO", "COLOR", "MONO_NIR", "COLOR_NIR", "SWIR", "UV", "LASER_3D", "TOF_3D"}

func (c CameraType) String() string {
	if c < Mono || c > ToF3D {
		return fmt.Sprintf("CameraType(%d)", int(c))
	}
	return cameraNames[c]
}

// Channels is the number of interleaved bytes per pixel this camera type produces.
func (c CameraType) Channels() int {
	switch c {
	case Color, ColorNIR:
		return 3
	default:
		return 1
	}
}

func ParseCameraType(name string) (CameraType, error) {
	for i, n := range cameraNames {
		if strings.EqualFold(n, name) {
			return CameraType(i), nil
		}
	}
	return 0, fmt.Errorf("capture: unknown camera type %q", name)
}
