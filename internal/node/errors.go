package node

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidState = errors.New("node: invalid state")

	// ErrTransientCapture marks capture failures worth retrying on the next iteration.
	ErrTransientCapture = errors.New("node: transient capture error")
	// ErrFatalCapture ends a source; it is returned to the supervisor.
	ErrFatalCapture = errors.New("node: fatal capture error")
)

// ProcessingError is a per-message failure inside a processor. The stage keeps running.
type ProcessingError struct {
	Topic    string
	Sequence uint64
	Err      error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing %s#%d: %v", e.Topic, e.Sequence, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// PanicError wraps a value recovered from a collaborator panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("collaborator panic: %v", e.Value)
}
