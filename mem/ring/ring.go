// Package ring provides Ring, a fixed-population circular buffer view over a
// Buffer.
//
// A Ring is always full: Count() == Capacity(). Slots that were never pushed
// hold zero values. The write head lives in Buffer.Cursor; Push overwrites
// the slot at the write head and advances it, so the write head always names
// the oldest element. Index 0 is the oldest element and Capacity()-1 the
// newest.
//
// The backing store is linear while the contents wrap, so resizing has to
// unwrap them first. Three strategies are provided; all of them leave the
// write head at 0 afterwards.
package ring

import (
	"iter"

	"github.com/joshuapare/memkit/internal/buf"
	"github.com/joshuapare/memkit/internal/crash"
	"github.com/joshuapare/memkit/internal/pod"
	"github.com/joshuapare/memkit/mem/buffer"
	"github.com/joshuapare/memkit/pkg/types"
)

// Ring is a circular view of T over a Buffer. T must be trivially copyable.
type Ring[T any] struct {
	buf    *buffer.Buffer
	resize buffer.ResizeFn
}

// New overlays a Ring on b. resize may be nil when the ring is never resized.
func New[T any](b *buffer.Buffer, resize buffer.ResizeFn) *Ring[T] {
	buffer.Require(b, "ring")
	pod.MustCheck[T]("ring")
	r := &Ring[T]{buf: b, resize: resize}
	if c := r.Capacity(); c > 0 && (b.Cursor < 0 || b.Cursor >= c) {
		crash.Fatal(types.ErrKindInvalidMemory, "ring %s: write head %d outside capacity %d", b, b.Cursor, c)
	}
	return r
}

// PrecomputeSize returns the buffer size in bytes for capacity elements.
func PrecomputeSize[T any](capacity int) int {
	n, ok := buf.SizeFor(0, capacity, pod.Size[T]())
	if !ok {
		crash.Fatal(types.ErrKindInsufficientMemory, "ring: capacity %d overflows", capacity)
	}
	return n
}

// Buffer returns the borrowed buffer.
func (r *Ring[T]) Buffer() *buffer.Buffer { return r.buf }

// Capacity returns how many elements fit in the buffer.
func (r *Ring[T]) Capacity() int { return r.buf.Size / pod.Size[T]() }

// Count returns the number of elements, which is always Capacity().
func (r *Ring[T]) Count() int { return r.Capacity() }

// Head returns the write head: the physical slot the next Push overwrites.
func (r *Ring[T]) Head() int { return r.buf.Cursor }

func (r *Ring[T]) elems() []T {
	return pod.Slice[T](r.buf.Data, 0, r.Capacity())
}

// At returns a pointer to the i-th oldest element.
func (r *Ring[T]) At(i int) *T {
	c := r.Capacity()
	if i < 0 || i >= c {
		crash.Fatal(types.ErrKindOutOfBounds, "ring %s: index %d outside capacity %d", r.buf, i, c)
	}
	return &r.elems()[(r.buf.Cursor+i)%c]
}

// Get returns the i-th oldest element.
func (r *Ring[T]) Get(i int) T { return *r.At(i) }

// Set overwrites the i-th oldest element.
func (r *Ring[T]) Set(i int, v T) { *r.At(i) = v }

// Newest returns the most recently pushed element.
func (r *Ring[T]) Newest() T { return r.Get(r.Capacity() - 1) }

// Push overwrites the oldest element with v.
func (r *Ring[T]) Push(v T) {
	r.Consume(1)[0] = v
}

// Consume hands out the slot at the write head (the oldest element) for the
// caller to fill and advances the head. Only single-slot consumption is
// supported; the returned slice is invalidated by the next Push or resize.
func (r *Ring[T]) Consume(n int) []T {
	switch {
	case n == 0:
		return nil
	case n > 1:
		crash.Unimplemented("ring.Consume(n > 1)")
	case n < 0:
		crash.Fatal(types.ErrKindInvalidArguments, "ring %s: consume %d elements", r.buf, n)
	}
	c := r.Capacity()
	if c == 0 {
		crash.Fatal(types.ErrKindInsufficientMemory, "ring %s: push into zero-capacity ring", r.buf)
	}
	head := r.buf.Cursor
	r.buf.Cursor = (head + 1) % c
	return r.elems()[head : head+1]
}

// Clear zeroes every slot and resets the write head.
func (r *Ring[T]) Clear() {
	clear(r.elems())
	r.buf.Cursor = 0
}

// All iterates elements oldest first.
func (r *Ring[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := 0; i < r.Capacity(); i++ {
			if !yield(i, r.Get(i)) {
				return
			}
		}
	}
}

// Snapshot copies the elements oldest first.
func (r *Ring[T]) Snapshot() []T {
	c := r.Capacity()
	out := make([]T, c)
	e := r.elems()
	head := r.buf.Cursor
	n := copy(out, e[head:])
	copy(out[n:], e[:head])
	return out
}

// Resize changes the capacity with ResizeShiftingLeft.
func (r *Ring[T]) Resize(capacity int) {
	r.ResizeShiftingLeft(capacity)
}

// ResizeShiftingLeft unwraps the contents oldest first at the start of the
// buffer. Growth adds zeroed slots at the newest end; shrinking discards the
// oldest elements.
func (r *Ring[T]) ResizeShiftingLeft(capacity int) {
	kept := r.retained(capacity)
	e := r.relocate(capacity)
	copy(e, kept)
}

// ResizeShiftingRight unwraps the contents oldest first against the end of
// the buffer. Growth adds zeroed slots at the oldest end, so pushes keep
// overwriting the padding before any retained element; shrinking discards
// the oldest elements.
func (r *Ring[T]) ResizeShiftingRight(capacity int) {
	kept := r.retained(capacity)
	e := r.relocate(capacity)
	copy(e[len(e)-len(kept):], kept)
}

// ResizeAfterDropping discards every element and resizes. This is the
// cheapest strategy.
func (r *Ring[T]) ResizeAfterDropping(capacity int) {
	r.relocate(capacity)
}

// retained copies the newest min(capacity, Capacity()) elements, oldest
// first, into scratch memory.
func (r *Ring[T]) retained(capacity int) []T {
	if capacity < 0 {
		crash.Fatal(types.ErrKindInvalidArguments, "ring %s: negative capacity %d", r.buf, capacity)
	}
	s := r.Snapshot()
	if capacity < len(s) {
		s = s[len(s)-capacity:]
	}
	return s
}

// relocate resizes the buffer through the callback, zeroes it and resets the
// write head. It returns the re-derived element slice.
func (r *Ring[T]) relocate(capacity int) []T {
	if capacity < 0 {
		crash.Fatal(types.ErrKindInvalidArguments, "ring %s: negative capacity %d", r.buf, capacity)
	}
	if r.resize == nil {
		crash.Fatal(types.ErrKindInsufficientMemory, "ring %s: resize to %d without a resize callback", r.buf, capacity)
	}
	r.resize(r.buf, PrecomputeSize[T](capacity))
	if r.Capacity() < capacity {
		crash.Fatal(types.ErrKindInsufficientMemory,
			"ring %s: resize left capacity %d below %d", r.buf, r.Capacity(), capacity)
	}
	r.buf.Cursor = 0
	e := r.elems()
	clear(e)
	return e
}
