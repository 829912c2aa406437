// Package topic is the closed vocabulary of bus topics and the rules for matching them.
package topic

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	ImageRGB           = "sensor_data.image_rgb"
	ImageRaw           = "sensor_data.image_raw"
	RecognitionResult  = "image_recognition_result"
	DetectionResult    = "image_process.detection_result"
	SegmentationResult = "image_process.segmentation_result"

	LogPrefix   = "log"
	LogDebug    = "log.debug"
	LogInfo     = "log.info"
	LogWarn     = "log.warn"
	LogError    = "log.error"
	LogCritical = "log.critical"
)

const separator = "."

var ErrUnknownTopic = errors.New("topic: not in registry")

// registry is filled once at package init and never written afterwards.
var registry = map[string]struct{}{
	ImageRGB:           {},
	ImageRaw:           {},
	RecognitionResult:  {},
	DetectionResult:    {},
	SegmentationResult: {},
	LogDebug:           {},
	LogInfo:            {},
	LogWarn:            {},
	LogError:           {},
	LogCritical:        {},
}

func Known(t string) bool {
	_, ok := registry[t]
	return ok
}

func Validate(t string) error {
	if !Known(t) {
		return fmt.Errorf("%w: %q", ErrUnknownTopic, t)
	}
	return nil
}

// All returns the registered topics in sorted order.
func All() []string {
	out := make([]string, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Matches reports whether prefix covers t on segment boundaries:
// "log" matches "log" and "log.info" but not "logistics".
// The empty prefix matches every topic.
func Matches(prefix, t string) bool {
	if prefix == "" || prefix == t {
		return true
	}
	return strings.HasPrefix(t, prefix) && strings.HasPrefix(t[len(prefix):], separator)
}

// ValidPrefix reports whether at least one registered topic matches prefix.
func ValidPrefix(prefix string) bool {
	for t := range registry {
		if Matches(prefix, t) {
			return true
		}
	}
	return false
}
