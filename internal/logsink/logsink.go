// Package logsink provides the logging collaborators used by sink nodes.
package logsink

import (
	"context"
	"errors"
	"log/slog"

	"brickbus-go/internal/topic"
)

// Logger receives one log message with the severity taken from its topic.
type Logger interface {
	Log(sev topic.Severity, msg []byte) error
}

// LevelCritical sits above slog.LevelError so handlers still treat it as an error.
const LevelCritical = slog.LevelError + 4

func Level(sev topic.Severity) slog.Level {
	switch sev {
	case topic.Debug:
		return slog.LevelDebug
	case topic.Warn:
		return slog.LevelWarn
	case topic.Error:
		return slog.LevelError
	case topic.Critical:
		return LevelCritical
	default:
		return slog.LevelInfo
	}
}

// Slog writes bus log messages through a slog.Logger.
type Slog struct {
	logger *slog.Logger
}

func NewSlog(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{logger: logger.With("source", "bus")}
}

func (s *Slog) Log(sev topic.Severity, msg []byte) error {
	s.logger.Log(context.Background(), Level(sev), string(msg), "severity", sev.String())
	return nil
}

// Multi hands every message to each logger and joins their errors.
type Multi []Logger

func (m Multi) Log(sev topic.Severity, msg []byte) error {
	var errs []error
	for _, l := range m {
		if err := l.Log(sev, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
