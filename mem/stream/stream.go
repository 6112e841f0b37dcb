// Package stream provides Stream, a bounded FIFO view over a Buffer.
//
// Unlike a Ring, a Stream tracks how full it is. Its read head, write head
// and count live in a header at the front of the buffer, so the queue state
// survives relocation and can be reattached from the bytes alone. Pushing
// into a full stream overwrites the oldest element.
package stream

import (
	"iter"

	"github.com/joshuapare/memkit/internal/buf"
	"github.com/joshuapare/memkit/internal/crash"
	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/internal/pod"
	"github.com/joshuapare/memkit/mem/buffer"
	"github.com/joshuapare/memkit/pkg/types"
)

// Magic marks an initialized stream header ("STRM").
const Magic uint32 = 0x4d525453

// HeaderSize is the size of the in-buffer header in bytes.
const HeaderSize = 32

// Header is the in-buffer stream metadata.
type Header struct {
	Magic uint32
	_     uint32
	Read  uint64
	Write uint64
	Count uint64
}

// Stream is a FIFO view of T over a Buffer. T must be trivially copyable.
type Stream[T any] struct {
	buf    *buffer.Buffer
	resize buffer.ResizeFn
}

// PrecomputeSize returns the buffer size in bytes for capacity elements.
func PrecomputeSize[T any](capacity int) int {
	n, ok := buf.SizeFor(HeaderSize, capacity, pod.Size[T]())
	if !ok {
		crash.Fatal(types.ErrKindInsufficientMemory, "stream: capacity %d overflows", capacity)
	}
	return n
}

// InitializeBuffer writes an empty header into b unless it already holds a
// valid one. A header with a foreign magic or out-of-range heads is logged
// and reset, discarding its contents.
func InitializeBuffer[T any](b *buffer.Buffer) {
	buffer.Require(b, "stream")
	if b.Size < HeaderSize {
		crash.Fatal(types.ErrKindInsufficientMemory,
			"stream %s: %d bytes cannot hold the %d-byte header", b, b.Size, HeaderSize)
	}
	h := pod.At[Header](b.Data, 0)
	c := uint64(capacityOf[T](b))
	switch {
	case h.Magic == Magic && h.Count <= c && (c == 0 || h.Read < c && h.Write < c):
		return
	case h.Magic != 0:
		logger.Warn("stream: corrupt header, reinitializing",
			"buffer", b.String(), "magic", h.Magic, "count", h.Count, "capacity", c)
	}
	*h = Header{Magic: Magic}
}

// Inspect returns a copy of the header stored in b and whether its magic
// identifies a stream.
func Inspect(b *buffer.Buffer) (Header, bool) {
	if b == nil || b.Size < HeaderSize {
		return Header{}, false
	}
	h := *pod.At[Header](b.Data, 0)
	return h, h.Magic == Magic
}

func capacityOf[T any](b *buffer.Buffer) int {
	return (b.Size - HeaderSize) / pod.Size[T]()
}

// New overlays a Stream on b, initializing the header if needed. resize may
// be nil when the stream is never resized.
func New[T any](b *buffer.Buffer, resize buffer.ResizeFn) *Stream[T] {
	buffer.Require(b, "stream")
	pod.MustCheck[T]("stream")
	InitializeBuffer[T](b)
	return &Stream[T]{buf: b, resize: resize}
}

// Buffer returns the borrowed buffer.
func (s *Stream[T]) Buffer() *buffer.Buffer { return s.buf }

func (s *Stream[T]) header() *Header { return pod.At[Header](s.buf.Data, 0) }

func (s *Stream[T]) elems() []T {
	return pod.Slice[T](s.buf.Data, HeaderSize, s.Capacity())
}

// Capacity returns how many elements fit after the header.
func (s *Stream[T]) Capacity() int { return capacityOf[T](s.buf) }

// Count returns the number of queued elements.
func (s *Stream[T]) Count() int { return int(s.header().Count) }

// Empty reports whether no elements are queued.
func (s *Stream[T]) Empty() bool { return s.Count() == 0 }

// Full reports whether the next Push overwrites the oldest element.
func (s *Stream[T]) Full() bool { return s.Count() == s.Capacity() }

// At returns a pointer to the i-th oldest element.
func (s *Stream[T]) At(i int) *T {
	h := s.header()
	if i < 0 || uint64(i) >= h.Count {
		crash.Fatal(types.ErrKindOutOfBounds, "stream %s: index %d outside count %d", s.buf, i, h.Count)
	}
	c := s.Capacity()
	return &s.elems()[(int(h.Read)+i)%c]
}

// Get returns the i-th oldest element.
func (s *Stream[T]) Get(i int) T { return *s.At(i) }

// Push appends v. When the stream is full the oldest element is dropped.
func (s *Stream[T]) Push(v T) {
	c := s.Capacity()
	if c == 0 {
		crash.Fatal(types.ErrKindInsufficientMemory, "stream %s: push into zero-capacity stream", s.buf)
	}
	h := s.header()
	s.elems()[h.Write] = v
	h.Write = (h.Write + 1) % uint64(c)
	if h.Count == uint64(c) {
		h.Read = (h.Read + 1) % uint64(c)
	} else {
		h.Count++
	}
}

// Pop removes and returns the oldest element.
func (s *Stream[T]) Pop() (T, bool) {
	h := s.header()
	if h.Count == 0 {
		var zero T
		return zero, false
	}
	v := s.elems()[h.Read]
	h.Read = (h.Read + 1) % uint64(s.Capacity())
	h.Count--
	return v, true
}

// Consume is not supported; streams only accept single-element pushes.
func (s *Stream[T]) Consume(n int) []T {
	crash.Unimplemented("stream.Consume")
	return nil
}

// Clear empties the stream without touching element bytes.
func (s *Stream[T]) Clear() {
	*s.header() = Header{Magic: Magic}
}

// All iterates the queued elements oldest first.
func (s *Stream[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := 0; i < s.Count(); i++ {
			if !yield(i, s.Get(i)) {
				return
			}
		}
	}
}

// Snapshot copies the queued elements oldest first.
func (s *Stream[T]) Snapshot() []T {
	out := make([]T, 0, s.Count())
	for _, v := range s.All() {
		out = append(out, v)
	}
	return out
}

// Resize changes the capacity through the resize callback, keeping FIFO
// order. Shrinking below Count() keeps the newest elements.
func (s *Stream[T]) Resize(capacity int) {
	if capacity < 0 {
		crash.Fatal(types.ErrKindInvalidArguments, "stream %s: negative capacity %d", s.buf, capacity)
	}
	if s.resize == nil {
		crash.Fatal(types.ErrKindInsufficientMemory, "stream %s: resize to %d without a resize callback", s.buf, capacity)
	}
	kept := s.Snapshot()
	if capacity < len(kept) {
		kept = kept[len(kept)-capacity:]
	}

	s.resize(s.buf, PrecomputeSize[T](capacity))
	c := s.Capacity()
	crash.Assert(c >= capacity, types.ErrKindInsufficientMemory,
		"stream %s: resize left capacity %d below %d", s.buf, c, capacity)

	copy(s.elems(), kept)
	h := s.header()
	*h = Header{Magic: Magic, Count: uint64(len(kept))}
	if c > 0 {
		h.Write = uint64(len(kept) % c)
	}
}
