package framebuffer

import (
	"errors"
	"testing"
)

func TestNewRejectsZeroCapacity(t *testing.T) {
	if _, err := New[int](0); !errors.Is(err, ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
}

func TestLatestAfterPuts(t *testing.T) {
	for _, capacity := range []int{1, 3, 8} {
		for n := 1; n <= 20; n++ {
			buf, err := New[int](capacity)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			for i := 1; i <= n; i++ {
				buf.Put(i * 10)
			}
			latest, err := buf.Latest()
			if err != nil {
				t.Fatalf("Latest: %v", err)
			}
			if latest != n*10 {
				t.Fatalf("cap=%d n=%d: latest got %d want %d", capacity, n, latest, n*10)
			}
			slot, err := buf.Get((n - 1) % capacity)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if slot != n*10 {
				t.Fatalf("cap=%d n=%d: slot got %d want %d", capacity, n, slot, n*10)
			}
		}
	}
}

func TestPutReturnsSlot(t *testing.T) {
	buf, _ := New[string](2)
	if got := buf.Put("a"); got != 0 {
		t.Fatalf("first put slot %d", got)
	}
	if got := buf.Put("b"); got != 1 {
		t.Fatalf("second put slot %d", got)
	}
	if got := buf.Put("c"); got != 0 {
		t.Fatalf("third put slot %d", got)
	}
	v, _ := buf.Get(0)
	if v != "c" {
		t.Fatalf("slot 0 not overwritten: %q", v)
	}
}

func TestEmptyAndOutOfRange(t *testing.T) {
	buf, _ := New[int](4)
	if _, err := buf.Latest(); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	if _, err := buf.Get(2); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty for unwritten slot, got %v", err)
	}
	for _, idx := range []int{-1, 4, 100} {
		if _, err := buf.Get(idx); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("index %d: expected ErrOutOfRange, got %v", idx, err)
		}
	}
}

func TestNextReportsOnlyNewFrames(t *testing.T) {
	buf, _ := New[int](3)
	if _, _, ok := buf.Next(0); ok {
		t.Fatalf("empty buffer reported a new frame")
	}

	buf.Put(1)
	v, seen, ok := buf.Next(0)
	if !ok || v != 1 || seen != 1 {
		t.Fatalf("first read: v=%d seen=%d ok=%v", v, seen, ok)
	}
	if _, again, ok := buf.Next(seen); ok || again != seen {
		t.Fatalf("re-read without put reported new frame")
	}

	buf.Put(2)
	buf.Put(3)
	v, seen, ok = buf.Next(seen)
	if !ok || v != 3 || seen != 3 {
		t.Fatalf("after two puts: v=%d seen=%d ok=%v", v, seen, ok)
	}
	if buf.Version() != 3 {
		t.Fatalf("version %d", buf.Version())
	}
}
