// Package buffer defines the relocatable memory descriptor that every memkit
// view overlays.
//
// A Buffer is owned by an external allocator (see mem/platform). The allocator
// may move Data to a new address and change Size whenever it resizes the
// buffer, so views re-read Data on every access and never keep a slice or
// pointer derived from it across a call that can resize.
package buffer

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/memkit/internal/crash"
	"github.com/joshuapare/memkit/pkg/types"
)

// Buffer describes a named, sized memory block.
type Buffer struct {
	// Data is the current backing memory. len(Data) == Size after every
	// allocator operation.
	Data []byte
	// Cursor is a scratch slot reserved for views: Array keeps its element
	// count here, Ring its write head.
	Cursor int
	// Size is the block size in bytes.
	Size int
	// Name identifies the block in diagnostics.
	Name string
}

// ResizeFn grows or shrinks b to size bytes, in place or by relocation,
// preserving as much of the prefix as fits. It returns the resulting size.
type ResizeFn func(b *Buffer, size int) int

// New returns a heap-backed buffer of size zeroed bytes.
func New(name string, size int) *Buffer {
	return &Buffer{Data: Alloc(size), Size: size, Name: name}
}

// Bytes returns the live bytes of the buffer.
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.Data[:b.Size]
}

// String formats the buffer for diagnostics as name@address[size].
func (b *Buffer) String() string {
	if b == nil {
		return "<nil buffer>"
	}
	return fmt.Sprintf("%s@%p[%d]", b.Name, unsafe.SliceData(b.Data), b.Size)
}

// Alloc returns size zeroed bytes aligned on an 8-byte boundary, so any
// element type up to uint64 alignment can be overlaid at 8-aligned offsets.
func Alloc(size int) []byte {
	if size < 0 {
		crash.Fatal(types.ErrKindInvalidArguments, "buffer: negative allocation size %d", size)
	}
	if size == 0 {
		return []byte{}
	}
	words := make([]uint64, (size+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), size)
}

// HeapResize is a ResizeFn backed by the Go heap. It always relocates,
// matching the worst case a real allocator may exhibit.
func HeapResize(b *Buffer, size int) int {
	if b == nil {
		crash.Fatal(types.ErrKindNullPtr, "buffer: resize of nil buffer")
	}
	next := Alloc(size)
	copy(next, b.Bytes())
	b.Data = next
	b.Size = size
	return size
}

// Clone copies b into freshly allocated scratch memory. The clone shares
// nothing with b.
func Clone(b *Buffer) *Buffer {
	if b == nil {
		crash.Fatal(types.ErrKindNullPtr, "buffer: clone of nil buffer")
	}
	c := &Buffer{Data: Alloc(b.Size), Cursor: b.Cursor, Size: b.Size, Name: b.Name + ".scratch"}
	copy(c.Data, b.Bytes())
	return c
}

// Require raises a NullPtr fatal error naming what when b is nil.
func Require(b *Buffer, what string) {
	if b == nil {
		crash.Fatal(types.ErrKindNullPtr, "%s: nil buffer", what)
	}
}
