// Package region provides Region, an owning bump allocator for one element type.
//
// A Region owns a single contiguous block of capacity elements. Elements
// [0, Used()) are initialized; [Used(), Capacity()) are not yet handed out.
// Consume, Construct and Emplace extend the initialized prefix without ever
// leaving holes. Growth reallocates and copies, and is only permitted for
// regions created with New; regions created with NewFixed treat any growth
// attempt as a fatal budget violation.
//
// All precondition violations (growth of a fixed region, shrinking below the
// used count, emplacing past the end of the initialized prefix) are fatal.
//
// Region is not safe for concurrent use.
package region

import (
	"sort"
	"unsafe"

	"github.com/joshuapare/memkit/internal/buf"
	"github.com/joshuapare/memkit/internal/crash"
	"github.com/joshuapare/memkit/internal/pod"
	"github.com/joshuapare/memkit/pkg/types"
)

// Destructor is implemented by element types that hold resources which must
// be released when the region drops them.
type Destructor interface {
	Destruct()
}

// Region is a bump allocator over a block of T.
type Region[T any] struct {
	buf       []T
	next      int
	aligned   bool
	resizable bool
	trivial   bool
	name      string
}

// New returns a growable region with room for max(count, 1) elements.
func New[T any](count int, name string) *Region[T] {
	return newRegion[T](count, name, true)
}

// NewFixed returns a region with room for max(count, 1) elements that can
// never grow.
func NewFixed[T any](count int, name string) *Region[T] {
	return newRegion[T](count, name, false)
}

func newRegion[T any](count int, name string, resizable bool) *Region[T] {
	if count < 1 {
		count = 1
	}
	r := &Region[T]{
		resizable: resizable,
		trivial:   pod.IsTrivial[T](),
		name:      name,
	}
	r.aligned = alignedAlloc[T]()
	r.buf = r.allocate(count)
	return r
}

// alignedAlloc reports whether T's alignment is a power of two and a multiple
// of the pointer size. The Go allocator honors alignof(T) either way; the flag
// records which path a fixed-layout allocator would take.
func alignedAlloc[T any]() bool {
	a := pod.Align[T]()
	ptr := int(unsafe.Sizeof(uintptr(0)))
	return a > 0 && a&(a-1) == 0 && a%ptr == 0
}

func (r *Region[T]) allocate(count int) []T {
	if _, ok := buf.MulOverflowSafe(count, pod.Size[T]()); !ok {
		crash.Fatal(types.ErrKindInsufficientMemory,
			"region %q: cannot allocate %d elements of %d bytes", r.name, count, pod.Size[T]())
	}
	return make([]T, count)
}

func (r *Region[T]) live() {
	if r.buf == nil {
		crash.Fatal(types.ErrKindNullPtr, "region %q: use after move or release", r.name)
	}
}

// Name returns the diagnostic name of the region.
func (r *Region[T]) Name() string { return r.name }

// Used returns the number of initialized elements.
func (r *Region[T]) Used() int { return r.next }

// Capacity returns the number of elements the block can hold without growing.
func (r *Region[T]) Capacity() int { return len(r.buf) }

// Resizable reports whether the region may grow.
func (r *Region[T]) Resizable() bool { return r.resizable }

// Aligned reports whether the block honors alignof(T) on the aligned path.
func (r *Region[T]) Aligned() bool { return r.aligned }

// Consume hands out n uninitialized slots, growing first if they do not fit.
// The returned slice is invalidated by the next call that grows the region.
func (r *Region[T]) Consume(n int) []T {
	r.live()
	if n < 0 {
		crash.Fatal(types.ErrKindInvalidArguments, "region %q: consume %d elements", r.name, n)
	}
	end, ok := buf.AddOverflowSafe(r.next, n)
	if !ok {
		crash.Fatal(types.ErrKindInsufficientMemory, "region %q: consume %d overflows", r.name, n)
	}
	if end > len(r.buf) {
		r.reserve(end)
	}
	start := r.next
	r.next = end
	return r.buf[start:end:end]
}

// Construct stores v at the next free position and returns a pointer to it.
// A full region grows by a fifth of its capacity first.
func (r *Region[T]) Construct(v T) *T {
	r.live()
	if r.next == len(r.buf) {
		size, ok := buf.Grow(len(r.buf))
		if !ok {
			crash.Fatal(types.ErrKindInsufficientMemory, "region %q: capacity overflow", r.name)
		}
		r.reserve(size)
	}
	p := &r.buf[r.next]
	*p = v
	r.next++
	return p
}

// Emplace stores v at position. Emplacing at Used() is Construct; emplacing
// below it overwrites an initialized element. Emplacing past Used() would
// leave a hole and is fatal.
func (r *Region[T]) Emplace(position int, v T) *T {
	r.live()
	if position == r.next {
		return r.Construct(v)
	}
	if position < 0 || position > r.next {
		crash.Fatal(types.ErrKindOutOfBounds,
			"region %q: emplace at %d past initialized end %d", r.name, position, r.next)
	}
	p := &r.buf[position]
	*p = v
	return p
}

// At returns a pointer to the initialized element i.
func (r *Region[T]) At(i int) *T {
	r.live()
	if i < 0 || i >= r.next {
		crash.Fatal(types.ErrKindOutOfBounds, "region %q: index %d >= used %d", r.name, i, r.next)
	}
	return &r.buf[i]
}

// Slice returns the initialized elements [0, Used()).
func (r *Region[T]) Slice() []T {
	return r.buf[:r.next:r.next]
}

// Full returns every slot in the block, initialized or not.
func (r *Region[T]) Full() []T {
	return r.buf
}

// Drop forgets every element without releasing the block. Element types that
// hold Go pointers are zeroed so the collector can reclaim what they
// reference, after Destruct runs on those implementing Destructor.
func (r *Region[T]) Drop() {
	if !r.trivial {
		for i := range r.buf[:r.next] {
			if d, ok := any(&r.buf[i]).(Destructor); ok {
				d.Destruct()
			}
		}
		clear(r.buf[:r.next])
	}
	r.next = 0
}

// Truncate forgets the elements [n, Used()) without destructing them.
func (r *Region[T]) Truncate(n int) {
	if n < 0 || n > r.next {
		crash.Fatal(types.ErrKindOutOfBounds, "region %q: truncate to %d outside [0, %d]", r.name, n, r.next)
	}
	if !r.trivial {
		clear(r.buf[n:r.next])
	}
	r.next = n
}

// Reserve resizes the block to hold max(n, 1) elements.
func (r *Region[T]) Reserve(n int) {
	r.live()
	r.reserve(n)
}

func (r *Region[T]) reserve(n int) {
	if !r.resizable {
		crash.Fatal(types.ErrKindInsufficientMemory,
			"region %q: fixed region cannot grow from %d to %d", r.name, len(r.buf), n)
	}
	if n < 1 {
		n = 1
	}
	if n < r.next {
		crash.Fatal(types.ErrKindInvalidMemory,
			"region %q: cannot shrink to %d below used %d", r.name, n, r.next)
	}
	next := r.allocate(n)
	copy(next, r.buf[:r.next])
	r.buf = next
}

// Sort orders the initialized elements by less.
func (r *Region[T]) Sort(less func(a, b *T) bool) {
	r.SortSwap(less, nil)
}

// SortSwap orders the initialized elements by less and calls swap(i, j)
// before elements i and j trade places, so callers can keep external
// bookkeeping that refers to positions consistent.
func (r *Region[T]) SortSwap(less func(a, b *T) bool, swap func(i, j int)) {
	sort.Sort(&sorter[T]{elems: r.buf[:r.next], less: less, swap: swap})
}

type sorter[T any] struct {
	elems []T
	less  func(a, b *T) bool
	swap  func(i, j int)
}

func (s *sorter[T]) Len() int           { return len(s.elems) }
func (s *sorter[T]) Less(i, j int) bool { return s.less(&s.elems[i], &s.elems[j]) }
func (s *sorter[T]) Swap(i, j int) {
	if s.swap != nil {
		s.swap(i, j)
	}
	s.elems[i], s.elems[j] = s.elems[j], s.elems[i]
}

// Clone returns a deep copy of the region with the same capacity and policy.
func (r *Region[T]) Clone() *Region[T] {
	r.live()
	c := *r
	c.buf = make([]T, len(r.buf))
	copy(c.buf, r.buf[:r.next])
	return &c
}

// Move transfers ownership of the block to a new Region. The receiver is left
// invalid; any further use is fatal.
func (r *Region[T]) Move() *Region[T] {
	r.live()
	m := *r
	r.buf = nil
	r.next = 0
	return &m
}

// Release frees the block. Elements are not destructed; call Drop first for
// element types that need it.
func (r *Region[T]) Release() {
	r.buf = nil
	r.next = 0
}
