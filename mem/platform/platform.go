// Package platform provides the allocators that own Buffer memory.
//
// Views in mem/array, mem/ring, mem/stream and mem/hashtable never allocate.
// They borrow a *buffer.Buffer and call back into its owner through a
// buffer.ResizeFn when they need more room. Heap owns buffers on the Go
// heap; Mapped owns buffers backed by memory-mapped files.
package platform

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"

	"github.com/joshuapare/memkit/internal/crash"
	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/mem/buffer"
	"github.com/joshuapare/memkit/pkg/types"
)

// Lifetime says when an allocator may reclaim a buffer on its own.
type Lifetime int

const (
	// Persistent buffers live until released.
	Persistent Lifetime = iota
	// Frame buffers are released by the next EndFrame.
	Frame
)

func (l Lifetime) String() string {
	switch l {
	case Persistent:
		return "persistent"
	case Frame:
		return "frame"
	default:
		return fmt.Sprintf("Lifetime(%d)", int(l))
	}
}

// Allocator owns named buffers.
type Allocator interface {
	// Allocate returns a new zeroed buffer of size bytes.
	Allocate(name string, size int, lifetime Lifetime) (*buffer.Buffer, error)
	// Resize is a buffer.ResizeFn for buffers this allocator returned.
	Resize(b *buffer.Buffer, size int) int
	// Release returns b to the allocator. b must not be used afterwards.
	Release(b *buffer.Buffer) error
}

var (
	_ Allocator = (*Heap)(nil)
	_ Allocator = (*Mapped)(nil)
)

// HeapOptions configures a Heap.
type HeapOptions struct {
	// Budget caps the total bytes of live buffers. Zero means unlimited.
	Budget int
}

// Heap allocates buffers on the Go heap.
//
// NOT thread-safe.
type Heap struct {
	opts   HeapOptions
	blocks map[string]*heapBlock
	used   int
}

type heapBlock struct {
	buf      *buffer.Buffer
	lifetime Lifetime
}

// NewHeap returns an empty heap allocator.
func NewHeap(opts HeapOptions) *Heap {
	return &Heap{opts: opts, blocks: make(map[string]*heapBlock)}
}

func checkName(name string) error {
	if name == "" || filepath.Base(name) != name {
		return fmt.Errorf("platform: invalid buffer name %q: %w", name, types.ErrInvalidArguments)
	}
	return nil
}

// Allocate returns a zeroed buffer of size bytes.
func (h *Heap) Allocate(name string, size int, lifetime Lifetime) (*buffer.Buffer, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("platform: buffer %q: negative size %d: %w", name, size, types.ErrInvalidArguments)
	}
	if _, ok := h.blocks[name]; ok {
		return nil, fmt.Errorf("platform: buffer %q: %w", name, types.ErrInUse)
	}
	if !h.fits(size) {
		return nil, fmt.Errorf("platform: buffer %q: %d bytes over budget %d (%d used): %w",
			name, size, h.opts.Budget, h.used, types.ErrInsufficientMemory)
	}

	b := buffer.New(name, size)
	h.blocks[name] = &heapBlock{buf: b, lifetime: lifetime}
	h.used += size
	logger.Debug("platform: allocate", "buffer", name, "size", size, "lifetime", lifetime)
	return b, nil
}

func (h *Heap) fits(extra int) bool {
	return h.opts.Budget == 0 || h.used+extra <= h.opts.Budget
}

func (h *Heap) block(b *buffer.Buffer) *heapBlock {
	buffer.Require(b, "platform")
	blk, ok := h.blocks[b.Name]
	if !ok || blk.buf != b {
		return nil
	}
	return blk
}

// Resize moves b to a new allocation of size bytes, preserving its prefix.
// Resizing a foreign buffer or exceeding the budget is fatal.
func (h *Heap) Resize(b *buffer.Buffer, size int) int {
	if h.block(b) == nil {
		crash.Fatal(types.ErrKindMissingData, "platform: resize of unknown buffer %s", b)
	}
	if size < 0 {
		crash.Fatal(types.ErrKindInvalidArguments, "platform: resize %s to %d bytes", b, size)
	}
	if delta := size - b.Size; delta > 0 && !h.fits(delta) {
		crash.Fatal(types.ErrKindInsufficientMemory,
			"platform: resize %s to %d bytes exceeds budget %d (%d used)", b, size, h.opts.Budget, h.used)
	}
	h.used += size - b.Size
	old := b.Size
	buffer.HeapResize(b, size)
	logger.Debug("platform: resize", "buffer", b.Name, "from", old, "to", size)
	return size
}

// Release frees b.
func (h *Heap) Release(b *buffer.Buffer) error {
	if b == nil || h.block(b) == nil {
		return fmt.Errorf("platform: release of unknown buffer %s: %w", b, types.ErrMissingData)
	}
	h.drop(b)
	return nil
}

func (h *Heap) drop(b *buffer.Buffer) {
	delete(h.blocks, b.Name)
	h.used -= b.Size
	*b = buffer.Buffer{Name: b.Name}
}

// EndFrame releases every Frame buffer and returns how many there were.
func (h *Heap) EndFrame() int {
	n := 0
	for _, name := range h.Names() {
		if blk := h.blocks[name]; blk.lifetime == Frame {
			h.drop(blk.buf)
			n++
		}
	}
	if n > 0 {
		logger.Debug("platform: end frame", "released", n)
	}
	return n
}

// Find returns the live buffer called name, or nil.
func (h *Heap) Find(name string) *buffer.Buffer {
	if blk, ok := h.blocks[name]; ok {
		return blk.buf
	}
	return nil
}

// Names returns the live buffer names in sorted order.
func (h *Heap) Names() []string {
	return slices.Sorted(maps.Keys(h.blocks))
}

// Used returns the total size of live buffers in bytes.
func (h *Heap) Used() int { return h.used }
