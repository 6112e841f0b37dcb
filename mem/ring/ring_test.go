package ring

import (
	"math/rand/v2"
	"testing"

	"github.com/joshuapare/memkit/internal/crash"
	"github.com/joshuapare/memkit/mem/buffer"
	"github.com/joshuapare/memkit/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Frame uint32
	Ms    float32
}

func requireFault(t *testing.T, kind types.ErrKind, fn func()) *types.Error {
	t.Helper()
	err := crash.Catch(fn)
	require.NotNil(t, err, "expected %s fault", kind)
	require.Equal(t, kind, err.Kind, "fault message: %s", err.Msg)
	return err
}

// newTestRing returns a ring of capacity elements backed by a heap buffer.
func newTestRing[T any](t *testing.T, capacity int) (*Ring[T], *buffer.Buffer) {
	t.Helper()
	b := buffer.New("ring-test", PrecomputeSize[T](capacity))
	return New[T](b, buffer.HeapResize), b
}

// pushed returns a capacity-4 ring after pushing 1..n.
func pushed(t *testing.T, n int) *Ring[int] {
	t.Helper()
	r, _ := newTestRing[int](t, 4)
	for i := 1; i <= n; i++ {
		r.Push(i)
	}
	return r
}

// TestRing_OverwritesOldest tests the basic wraparound scenario.
func TestRing_OverwritesOldest(t *testing.T) {
	r := pushed(t, 5)
	assert.Equal(t, 4, r.Count())
	assert.Equal(t, 2, r.Get(0))
	assert.Equal(t, 5, r.Newest())
	assert.Equal(t, []int{2, 3, 4, 5}, r.Snapshot())
	assert.Equal(t, 1, r.Head())
}

// TestRing_AlwaysFull tests that unwritten slots read as zero values.
func TestRing_AlwaysFull(t *testing.T) {
	r, b := newTestRing[sample](t, 3)
	assert.Equal(t, 3, r.Count())
	assert.Equal(t, sample{}, r.Get(0))

	r.Push(sample{Frame: 1, Ms: 16.6})
	assert.Equal(t, []sample{{}, {}, {Frame: 1, Ms: 16.6}}, r.Snapshot())
	assert.Equal(t, 1, b.Cursor, "write head lives in the buffer cursor")
}

// TestRing_MatchesModel tests the fixed-population property against a slice model.
func TestRing_MatchesModel(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for _, capacity := range []int{1, 2, 7, 16} {
		r, _ := newTestRing[uint64](t, capacity)
		model := make([]uint64, capacity)
		for range 200 {
			v := rng.Uint64()
			r.Push(v)
			model = append(model[1:], v)
			require.Equal(t, capacity, r.Count())
		}
		assert.Equal(t, model, r.Snapshot())
		for i, v := range r.All() {
			require.Equal(t, model[i], v)
		}
	}
}

// TestRing_Set tests writes through logical indexes.
func TestRing_Set(t *testing.T) {
	r := pushed(t, 6)
	r.Set(0, 30)
	r.Set(3, 60)
	assert.Equal(t, []int{30, 4, 5, 60}, r.Snapshot())

	requireFault(t, types.ErrKindOutOfBounds, func() { r.At(4) })
	requireFault(t, types.ErrKindOutOfBounds, func() { r.At(-1) })
}

// TestRing_Consume tests single-slot consumption and the multi-slot fault.
func TestRing_Consume(t *testing.T) {
	r := pushed(t, 4)
	s := r.Consume(1)
	require.Len(t, s, 1)
	assert.Equal(t, 1, s[0], "slot holds the oldest element until filled")
	s[0] = 9
	assert.Equal(t, []int{2, 3, 4, 9}, r.Snapshot())

	assert.Nil(t, r.Consume(0))
	requireFault(t, types.ErrKindUnimplemented, func() { r.Consume(2) })
	requireFault(t, types.ErrKindInvalidArguments, func() { r.Consume(-1) })
}

// TestRing_Resize tests the three resize strategies.
func TestRing_Resize(t *testing.T) {
	tests := []struct {
		name     string
		resize   func(r *Ring[int], capacity int)
		capacity int
		want     []int
		after    []int // contents after one more push of 7
	}{
		{"left grow", (*Ring[int]).ResizeShiftingLeft, 6, []int{3, 4, 5, 6, 0, 0}, []int{4, 5, 6, 0, 0, 7}},
		{"left shrink", (*Ring[int]).ResizeShiftingLeft, 2, []int{5, 6}, []int{6, 7}},
		{"right grow", (*Ring[int]).ResizeShiftingRight, 6, []int{0, 0, 3, 4, 5, 6}, []int{0, 3, 4, 5, 6, 7}},
		{"right shrink", (*Ring[int]).ResizeShiftingRight, 3, []int{4, 5, 6}, []int{5, 6, 7}},
		{"dropping", (*Ring[int]).ResizeAfterDropping, 3, []int{0, 0, 0}, []int{0, 0, 7}},
		{"default", (*Ring[int]).Resize, 5, []int{3, 4, 5, 6, 0}, []int{4, 5, 6, 0, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := pushed(t, 6)
			require.Equal(t, []int{3, 4, 5, 6}, r.Snapshot())
			require.Equal(t, 2, r.Head(), "contents are wrapped")

			tt.resize(r, tt.capacity)
			assert.Equal(t, tt.capacity, r.Capacity())
			assert.Equal(t, 0, r.Head())
			assert.Equal(t, tt.want, r.Snapshot())

			r.Push(7)
			assert.Equal(t, tt.after, r.Snapshot())
		})
	}
}

// TestRing_ResizeFaults tests resizing without a usable callback.
func TestRing_ResizeFaults(t *testing.T) {
	b := buffer.New("fixed", PrecomputeSize[int](2))
	r := New[int](b, nil)
	requireFault(t, types.ErrKindInsufficientMemory, func() { r.Resize(4) })

	short := New[int](b, func(b *buffer.Buffer, size int) int { return b.Size })
	requireFault(t, types.ErrKindInsufficientMemory, func() { short.ResizeShiftingRight(4) })

	ok, _ := newTestRing[int](t, 2)
	requireFault(t, types.ErrKindInvalidArguments, func() { ok.Resize(-1) })
}

// TestRing_ZeroCapacity tests the empty ring.
func TestRing_ZeroCapacity(t *testing.T) {
	r, _ := newTestRing[int](t, 0)
	assert.Equal(t, 0, r.Count())
	assert.Empty(t, r.Snapshot())
	requireFault(t, types.ErrKindInsufficientMemory, func() { r.Push(1) })

	r.Resize(2)
	r.Push(1)
	assert.Equal(t, []int{0, 1}, r.Snapshot())
}

// TestRing_Clear tests zeroing.
func TestRing_Clear(t *testing.T) {
	r := pushed(t, 3)
	r.Clear()
	assert.Equal(t, []int{0, 0, 0, 0}, r.Snapshot())
	assert.Equal(t, 0, r.Head())
}

// TestRing_CorruptHead tests attaching to a buffer whose cursor is out of range.
func TestRing_CorruptHead(t *testing.T) {
	b := buffer.New("corrupt", PrecomputeSize[int](4))
	b.Cursor = 4
	requireFault(t, types.ErrKindInvalidMemory, func() { New[int](b, nil) })
}
