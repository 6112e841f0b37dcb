package stream

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/joshuapare/memkit/internal/crash"
	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/internal/pod"
	"github.com/joshuapare/memkit/mem/buffer"
	"github.com/joshuapare/memkit/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	Code  uint16
	Frame uint32
}

func requireFault(t *testing.T, kind types.ErrKind, fn func()) *types.Error {
	t.Helper()
	err := crash.Catch(fn)
	require.NotNil(t, err, "expected %s fault", kind)
	require.Equal(t, kind, err.Kind, "fault message: %s", err.Msg)
	return err
}

// newTestStream returns a stream of capacity elements backed by a heap buffer.
func newTestStream[T any](t *testing.T, capacity int) (*Stream[T], *buffer.Buffer) {
	t.Helper()
	b := buffer.New("stream-test", PrecomputeSize[T](capacity))
	return New[T](b, buffer.HeapResize), b
}

// TestStream_HeaderLayout tests that the header fits its reserved size.
func TestStream_HeaderLayout(t *testing.T) {
	assert.Equal(t, HeaderSize, pod.Size[Header]())
	assert.Equal(t, HeaderSize+3*8, PrecomputeSize[uint64](3))
}

// TestStream_FIFOWithOverwrite tests the overwrite-oldest scenario.
func TestStream_FIFOWithOverwrite(t *testing.T) {
	s, _ := newTestStream[int](t, 3)
	assert.True(t, s.Empty())
	s.Push(1)
	s.Push(2)
	assert.Equal(t, 2, s.Count())
	assert.Equal(t, 1, s.Get(0))

	s.Push(3)
	assert.True(t, s.Full())
	s.Push(4)
	assert.Equal(t, 3, s.Count())
	assert.Equal(t, []int{2, 3, 4}, s.Snapshot())
	assert.Equal(t, 2, s.Get(0))
}

// TestStream_Pop tests draining in order.
func TestStream_Pop(t *testing.T) {
	s, _ := newTestStream[event](t, 2)
	for i := range 5 {
		s.Push(event{Code: uint16(i), Frame: uint32(i * 10)})
	}

	v, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, event{Code: 3, Frame: 30}, v)
	v, ok = s.Pop()
	require.True(t, ok)
	assert.Equal(t, uint16(4), v.Code)

	_, ok = s.Pop()
	assert.False(t, ok)
	assert.True(t, s.Empty())

	s.Push(event{Code: 9})
	assert.Equal(t, uint16(9), s.Get(0).Code)
}

// TestStream_StateLivesInBuffer tests reattaching a second view.
func TestStream_StateLivesInBuffer(t *testing.T) {
	s, b := newTestStream[uint32](t, 4)
	for i := range uint32(6) {
		s.Push(i)
	}
	s.Pop()

	again := New[uint32](b, nil)
	assert.Equal(t, []uint32{3, 4, 5}, again.Snapshot())

	h, ok := Inspect(b)
	require.True(t, ok)
	assert.Equal(t, uint64(3), h.Count)
	assert.Equal(t, uint64(3), h.Read)
	assert.Equal(t, uint64(2), h.Write)
}

// TestStream_CorruptHeader tests self-healing initialization.
func TestStream_CorruptHeader(t *testing.T) {
	var out bytes.Buffer
	logger.Set(slog.New(slog.NewTextHandler(&out, nil)))
	t.Cleanup(func() { logger.Set(nil) })

	b := buffer.New("corrupt", PrecomputeSize[uint32](4))
	pod.At[Header](b.Data, 0).Magic = 0xdeadbeef
	s := New[uint32](b, nil)
	assert.True(t, s.Empty())
	assert.Contains(t, out.String(), "corrupt header")

	out.Reset()
	s.Push(1)
	pod.At[Header](b.Data, 0).Read = 99
	s = New[uint32](b, nil)
	assert.True(t, s.Empty(), "out-of-range heads are corruption too")
	assert.Contains(t, out.String(), "corrupt header")

	out.Reset()
	s.Push(7)
	New[uint32](b, nil)
	assert.Empty(t, out.String(), "a valid header is left alone")
}

// TestStream_Resize tests growth and shrink with wrapped contents.
func TestStream_Resize(t *testing.T) {
	s, _ := newTestStream[int](t, 4)
	for i := 1; i <= 6; i++ {
		s.Push(i)
	}
	require.Equal(t, []int{3, 4, 5, 6}, s.Snapshot())

	s.Resize(6)
	assert.Equal(t, 6, s.Capacity())
	assert.Equal(t, []int{3, 4, 5, 6}, s.Snapshot())
	s.Push(7)
	s.Push(8)
	s.Push(9)
	assert.Equal(t, []int{4, 5, 6, 7, 8, 9}, s.Snapshot())

	s.Resize(2)
	assert.Equal(t, []int{8, 9}, s.Snapshot())
	s.Push(10)
	assert.Equal(t, []int{9, 10}, s.Snapshot())

	s.Resize(0)
	assert.Equal(t, 0, s.Count())
	requireFault(t, types.ErrKindInsufficientMemory, func() { s.Push(1) })
}

// TestStream_Faults tests the fatal paths.
func TestStream_Faults(t *testing.T) {
	s, _ := newTestStream[int](t, 2)
	s.Push(1)
	requireFault(t, types.ErrKindOutOfBounds, func() { s.At(1) })
	requireFault(t, types.ErrKindUnimplemented, func() { s.Consume(1) })

	fixed := New[int](buffer.New("fixed", PrecomputeSize[int](2)), nil)
	requireFault(t, types.ErrKindInsufficientMemory, func() { fixed.Resize(4) })

	short := New[int](buffer.New("short", PrecomputeSize[int](2)), func(b *buffer.Buffer, size int) int { return b.Size })
	requireFault(t, types.ErrKindInsufficientMemory, func() { short.Resize(4) })

	requireFault(t, types.ErrKindInsufficientMemory, func() { New[int](buffer.New("tiny", 8), nil) })
	requireFault(t, types.ErrKindNullPtr, func() { New[int](nil, nil) })
}

// TestStream_Clear tests resetting the heads.
func TestStream_Clear(t *testing.T) {
	s, _ := newTestStream[int](t, 3)
	s.Push(1)
	s.Push(2)
	s.Clear()
	assert.True(t, s.Empty())
	assert.Empty(t, s.Snapshot())
}
