// Package array provides Array, a growable vector view over a Buffer.
//
// The element count lives in Buffer.Cursor and the capacity is derived from
// Buffer.Size, so an Array holds no state of its own beyond the borrowed
// buffer and resize callback. Every access re-derives the element slice from
// Buffer.Data; slices returned by Slice, Consume or At are invalidated by any
// call that can grow the buffer (Push, Consume) and by Erase.
package array

import (
	"iter"

	"github.com/joshuapare/memkit/internal/buf"
	"github.com/joshuapare/memkit/internal/crash"
	"github.com/joshuapare/memkit/internal/pod"
	"github.com/joshuapare/memkit/mem/buffer"
	"github.com/joshuapare/memkit/pkg/types"
)

// Array is a vector view of T over a Buffer. T must be trivially copyable.
type Array[T any] struct {
	buf    *buffer.Buffer
	resize buffer.ResizeFn
}

// New overlays an Array on b. resize may be nil for a fixed-capacity array.
func New[T any](b *buffer.Buffer, resize buffer.ResizeFn) *Array[T] {
	buffer.Require(b, "array")
	pod.MustCheck[T]("array")
	return &Array[T]{buf: b, resize: resize}
}

// PrecomputeSize returns the buffer size in bytes for capacity elements.
func PrecomputeSize[T any](capacity int) int {
	n, ok := buf.SizeFor(0, capacity, pod.Size[T]())
	if !ok {
		crash.Fatal(types.ErrKindInsufficientMemory, "array: capacity %d overflows", capacity)
	}
	return n
}

// Buffer returns the borrowed buffer.
func (a *Array[T]) Buffer() *buffer.Buffer { return a.buf }

// Count returns the number of elements.
func (a *Array[T]) Count() int { return a.buf.Cursor }

// Capacity returns how many elements fit in the buffer.
func (a *Array[T]) Capacity() int { return a.buf.Size / pod.Size[T]() }

func (a *Array[T]) elems(n int) []T {
	return pod.Slice[T](a.buf.Data, 0, n)
}

// Slice returns the elements [0, Count()).
func (a *Array[T]) Slice() []T {
	return a.elems(a.Count())
}

// At returns a pointer to element i.
func (a *Array[T]) At(i int) *T {
	if crash.Checks && (i < 0 || i >= a.Count() || i >= a.Capacity()) {
		crash.Fatal(types.ErrKindOutOfBounds,
			"array %s: index %d outside count %d / capacity %d", a.buf, i, a.Count(), a.Capacity())
	}
	return &a.elems(i + 1)[i]
}

// Get returns element i.
func (a *Array[T]) Get(i int) T { return *a.At(i) }

// Set overwrites element i.
func (a *Array[T]) Set(i int, v T) { *a.At(i) = v }

// Push appends v, growing the buffer if needed, and returns its index.
func (a *Array[T]) Push(v T) int {
	s := a.Consume(1)
	s[0] = v
	return a.Count() - 1
}

// Consume appends n zeroed elements and returns them. The buffer grows
// through the resize callback to 1.2x the required size when they do not fit.
func (a *Array[T]) Consume(n int) []T {
	if n < 0 {
		crash.Fatal(types.ErrKindInvalidArguments, "array %s: consume %d elements", a.buf, n)
	}
	start := a.Count()
	end, ok := buf.AddOverflowSafe(start, n)
	if !ok {
		crash.Fatal(types.ErrKindInsufficientMemory, "array %s: consume %d overflows", a.buf, n)
	}
	if end > a.Capacity() {
		a.grow(end)
	}
	a.buf.Cursor = end
	s := a.elems(end)[start:end]
	clear(s)
	return s
}

func (a *Array[T]) grow(need int) {
	if a.resize == nil {
		crash.Fatal(types.ErrKindInsufficientMemory,
			"array %s: %d elements exceed capacity %d and no resize callback", a.buf, need, a.Capacity())
	}
	padded, ok := buf.Grow(need)
	if !ok {
		crash.Fatal(types.ErrKindInsufficientMemory, "array %s: capacity overflow", a.buf)
	}
	a.resize(a.buf, PrecomputeSize[T](padded))
	if a.Capacity() < need {
		crash.Fatal(types.ErrKindInsufficientMemory,
			"array %s: resize left capacity %d below %d", a.buf, a.Capacity(), need)
	}
}

// Pop removes and returns the last element.
func (a *Array[T]) Pop() (T, bool) {
	n := a.Count()
	if n == 0 {
		var zero T
		return zero, false
	}
	v := a.elems(n)[n-1]
	a.buf.Cursor = n - 1
	return v, true
}

// Erase removes the elements [begin, end), shifting the tail down.
func (a *Array[T]) Erase(begin, end int) {
	n := a.Count()
	if begin < 0 || end < begin || end > n {
		crash.Fatal(types.ErrKindOutOfBounds, "array %s: erase [%d, %d) outside count %d", a.buf, begin, end, n)
	}
	s := a.elems(n)
	copy(s[begin:], s[end:])
	a.buf.Cursor = n - (end - begin)
}

// Clear sets the count to zero without touching the bytes.
func (a *Array[T]) Clear() { a.buf.Cursor = 0 }

// All iterates elements in index order.
func (a *Array[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := 0; i < a.Count(); i++ {
			if !yield(i, a.elems(i + 1)[i]) {
				return
			}
		}
	}
}
