// Package framebuffer holds the most recent frames of a source in a fixed ring.
//
// A Buffer is owned by a single writer. Readers on other goroutines may observe
// a slot that is being overwritten; treat Latest as "recent", not "exact".
package framebuffer

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrOutOfRange = errors.New("framebuffer: slot index out of range")
	ErrEmpty      = errors.New("framebuffer: slot is empty")
	ErrCapacity   = errors.New("framebuffer: capacity must be at least 1")
)

type slot[T any] struct {
	value   T
	version uint64
	set     bool
}

// Buffer is a fixed-capacity circular store that overwrites its oldest entry.
type Buffer[T any] struct {
	mu      sync.RWMutex
	slots   []slot[T]
	counter uint64
}

func New[T any](capacity int) (*Buffer[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrCapacity, capacity)
	}
	return &Buffer[T]{slots: make([]slot[T], capacity)}, nil
}

func (b *Buffer[T]) Capacity() int {
	return len(b.slots)
}

// Put stores v in slot (puts so far) mod capacity and returns that slot.
func (b *Buffer[T]) Put(v T) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := int(b.counter % uint64(len(b.slots)))
	b.counter++
	b.slots[idx] = slot[T]{value: v, version: b.counter, set: true}
	return idx
}

func (b *Buffer[T]) Get(index int) (T, error) {
	var zero T
	if index < 0 || index >= len(b.slots) {
		return zero, fmt.Errorf("%w: %d not in [0,%d)", ErrOutOfRange, index, len(b.slots))
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := b.slots[index]
	if !s.set {
		return zero, ErrEmpty
	}
	return s.value, nil
}

// Latest returns the most recently written value, or ErrEmpty before the first Put.
func (b *Buffer[T]) Latest() (T, error) {
	v, _, err := b.latest()
	return v, err
}

// Version is the number of values written so far. It only grows.
func (b *Buffer[T]) Version() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.counter
}

// Next returns the latest value and its version when it is newer than since.
// Callers keep the returned version and pass it back on the following read.
func (b *Buffer[T]) Next(since uint64) (T, uint64, bool) {
	v, version, err := b.latest()
	if err != nil || version <= since {
		var zero T
		return zero, since, false
	}
	return v, version, true
}

func (b *Buffer[T]) latest() (T, uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var zero T
	if b.counter == 0 {
		return zero, 0, ErrEmpty
	}
	s := b.slots[(b.counter-1)%uint64(len(b.slots))]
	return s.value, s.version, nil
}
