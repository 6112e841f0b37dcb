// Package hashtable provides Table, a Robin Hood open-addressing hash table
// view over a Buffer.
//
// Buffer layout:
//
//	[Header 48 bytes][Cell 0] ... [Cell capacity+maxMiss-1]
//
// Capacity is a power of two so the natural index of a key is its hash masked
// by capacity-1. Probing never wraps: a key may be stored up to maxMiss-1
// cells past its natural index, and the table carries maxMiss extra cells at
// the tail so such probes never leave the buffer. An insert that would land
// further out grows the table instead.
//
// Cell.Distance is the probe distance plus one, so an all-zero cell is empty
// and a freshly zeroed buffer is an empty table. Along every probe sequence
// cells are ordered by ascending distance, which lets lookups stop as soon as
// their own distance exceeds the distance stored in the cell.
//
// The table never returns pointers into the buffer; any Set, Erase or Resize
// may relocate it.
package hashtable

import (
	"iter"
	"math/bits"

	"github.com/cespare/xxhash/v2"

	"github.com/joshuapare/memkit/internal/buf"
	"github.com/joshuapare/memkit/internal/crash"
	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/internal/pod"
	"github.com/joshuapare/memkit/mem/buffer"
	"github.com/joshuapare/memkit/pkg/types"
)

const (
	// Magic marks an initialized table header ("THSH").
	Magic uint32 = 0x48534854

	// HeaderSize is the size of the in-buffer header in bytes.
	HeaderSize = 48

	// DefaultCapacity is the capacity New picks for an empty buffer.
	DefaultCapacity = 64

	// DefaultMaxLoad is the load factor above which Set doubles the table.
	DefaultMaxLoad = 0.6
)

// Header is the in-buffer table metadata.
type Header struct {
	Magic     uint32
	Rehashing uint32 // non-zero while a resize replays cells
	Capacity  uint64
	Count     uint64
	MaxMiss   uint64
	MaxLoad   float64
	_         uint64
}

// Cell is one slot of the table. Distance 0 means empty.
type Cell[K comparable, V any] struct {
	Key      K
	Value    V
	Distance uint8
}

// Hasher maps a key to a 64-bit hash.
type Hasher[K any] func(key K) uint64

// Options configures a Table.
type Options[K any] struct {
	// MaxLoad is the load factor bound in (0, 1]. Zero keeps the value
	// stored in an initialized buffer, or DefaultMaxLoad for a new one.
	MaxLoad float64

	// Hasher replaces the default xxhash over the key's bytes. Key types
	// whose equal values can differ in their bytes (floats, complex numbers,
	// structs with padding) must supply one.
	Hasher Hasher[K]
}

// HashBytes is the default Hasher: xxhash over the key's in-memory bytes.
func HashBytes[K any](key K) uint64 {
	return xxhash.Sum64(pod.Bytes(&key))
}

// Table is a hash table view of K to V over a Buffer. K and V must be
// trivially copyable.
type Table[K comparable, V any] struct {
	buf    *buffer.Buffer
	resize buffer.ResizeFn
	hash   Hasher[K]
}

// maxMissFor returns the longest probe distance allowed at capacity.
func maxMissFor(capacity int) int {
	if capacity <= 1 {
		return 1
	}
	return bits.Len(uint(capacity)) - 1
}

// roundPow2 rounds n up to a power of two, with a minimum of 1.
func roundPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// PrecomputeSize returns the buffer size in bytes for a table of capacity
// slots. capacity is rounded up to a power of two.
func PrecomputeSize[K comparable, V any](capacity int) int {
	if capacity < 0 {
		crash.Fatal(types.ErrKindInvalidArguments, "hashtable: negative capacity %d", capacity)
	}
	c := roundPow2(capacity)
	n, ok := buf.SizeFor(HeaderSize, c+maxMissFor(c), pod.Size[Cell[K, V]]())
	if !ok {
		crash.Fatal(types.ErrKindInsufficientMemory, "hashtable: capacity %d overflows", capacity)
	}
	return n
}

// capacityFor returns the largest power-of-two capacity whose cells and tail
// fit in size bytes, or 0 if none does.
func capacityFor[K comparable, V any](size int) int {
	cell := pod.Size[Cell[K, V]]()
	avail := size - HeaderSize
	c := 0
	for next := 1; next > 0; next <<= 1 {
		if (next+maxMissFor(next))*cell > avail {
			break
		}
		c = next
	}
	return c
}

// valid reports whether h describes a table that fits a buffer of size bytes.
func valid[K comparable, V any](h *Header, size int) bool {
	c := h.Capacity
	if h.Magic != Magic || h.Rehashing != 0 || c == 0 || c&(c-1) != 0 || c > uint64(size) {
		return false
	}
	if h.Count > c || h.MaxMiss != uint64(maxMissFor(int(c))) || h.MaxLoad <= 0 || h.MaxLoad > 1 {
		return false
	}
	return PrecomputeSize[K, V](int(c)) <= size
}

// InitializeBuffer formats b as an empty table unless it already holds a
// valid one. A buffer with a foreign magic, inconsistent metadata or an
// interrupted rehash is logged and reformatted, discarding its contents.
func InitializeBuffer[K comparable, V any](b *buffer.Buffer, opts Options[K]) {
	buffer.Require(b, "hashtable")
	if b.Size < HeaderSize {
		crash.Fatal(types.ErrKindInsufficientMemory,
			"hashtable %s: %d bytes cannot hold the %d-byte header", b, b.Size, HeaderSize)
	}
	h := pod.At[Header](b.Data, 0)
	if valid[K, V](h, b.Size) {
		if opts.MaxLoad != 0 {
			h.MaxLoad = checkLoad(b, opts.MaxLoad)
		}
		return
	}
	if h.Magic != 0 {
		logger.Warn("hashtable: corrupt header, reinitializing",
			"buffer", b.String(), "magic", h.Magic, "rehashing", h.Rehashing, "capacity", h.Capacity)
	}

	maxLoad := float64(DefaultMaxLoad)
	if opts.MaxLoad != 0 {
		maxLoad = checkLoad(b, opts.MaxLoad)
	}
	format[K, V](b, maxLoad)
}

func checkLoad(b *buffer.Buffer, load float64) float64 {
	if !(load > 0 && load <= 1) {
		crash.Fatal(types.ErrKindInvalidArguments, "hashtable %s: max load %v outside (0, 1]", b, load)
	}
	return load
}

// format writes a fresh header sized to b and zeroes every cell.
func format[K comparable, V any](b *buffer.Buffer, maxLoad float64) {
	c := capacityFor[K, V](b.Size)
	if c == 0 {
		crash.Fatal(types.ErrKindInsufficientMemory, "hashtable %s: %d bytes hold no cells", b, b.Size)
	}
	*pod.At[Header](b.Data, 0) = Header{
		Magic:    Magic,
		Capacity: uint64(c),
		MaxMiss:  uint64(maxMissFor(c)),
		MaxLoad:  maxLoad,
	}
	clear(b.Data[HeaderSize:b.Size])
}

// Inspect returns a copy of the header stored in b and whether its magic
// identifies a table.
func Inspect(b *buffer.Buffer) (Header, bool) {
	if b == nil || b.Size < HeaderSize {
		return Header{}, false
	}
	h := *pod.At[Header](b.Data, 0)
	return h, h.Magic == Magic
}

// Valid reports whether b already holds a well-formed table of K to V, one
// that New would attach to without reformatting.
func Valid[K comparable, V any](b *buffer.Buffer) bool {
	if b == nil || b.Size < HeaderSize {
		return false
	}
	return valid[K, V](pod.At[Header](b.Data, 0), b.Size)
}

// New overlays a Table on b, initializing it if needed. An empty buffer is
// first grown to DefaultCapacity through resize. resize may be nil for a
// fixed-capacity table, in which case growth is fatal.
func New[K comparable, V any](b *buffer.Buffer, resize buffer.ResizeFn, opts Options[K]) *Table[K, V] {
	buffer.Require(b, "hashtable")
	pod.MustCheck[K]("hashtable key")
	pod.MustCheck[V]("hashtable value")
	if opts.Hasher == nil {
		if err := pod.CheckBytewise[K](); err != nil {
			crash.Fatal(types.ErrKindInvalidArguments, "hashtable %s: default hasher needs bytewise keys: %v", b, err)
		}
	}
	if b.Size == 0 && resize != nil {
		resize(b, PrecomputeSize[K, V](DefaultCapacity))
	}
	InitializeBuffer[K, V](b, opts)
	t := &Table[K, V]{buf: b, resize: resize, hash: opts.Hasher}
	if t.hash == nil {
		t.hash = HashBytes[K]
	}
	return t
}

// Buffer returns the borrowed buffer.
func (t *Table[K, V]) Buffer() *buffer.Buffer { return t.buf }

func (t *Table[K, V]) header() *Header { return pod.At[Header](t.buf.Data, 0) }

func (t *Table[K, V]) cells() []Cell[K, V] {
	h := t.header()
	return pod.Slice[Cell[K, V]](t.buf.Data, HeaderSize, int(h.Capacity+h.MaxMiss))
}

// Count returns the number of stored keys.
func (t *Table[K, V]) Count() int { return int(t.header().Count) }

// Capacity returns the number of natural slots. It is always a power of two.
func (t *Table[K, V]) Capacity() int { return int(t.header().Capacity) }

// MaxMissDistance returns the longest probe distance a key may have.
func (t *Table[K, V]) MaxMissDistance() int { return int(t.header().MaxMiss) }

// MaxLoad returns the load factor bound.
func (t *Table[K, V]) MaxLoad() float64 { return t.header().MaxLoad }

// LoadFactor returns Count()/Capacity().
func (t *Table[K, V]) LoadFactor() float64 {
	h := t.header()
	return float64(h.Count) / float64(h.Capacity)
}

func (t *Table[K, V]) natural(key K) int {
	return int(t.hash(key) & (t.header().Capacity - 1))
}

// find returns the index of the cell holding key, or -1.
func (t *Table[K, V]) find(key K) int {
	cells := t.cells()
	maxMiss := uint8(t.header().MaxMiss)
	i := t.natural(key)
	for d := uint8(1); d <= maxMiss; d, i = d+1, i+1 {
		c := &cells[i]
		if d > c.Distance {
			return -1
		}
		if c.Key == key {
			return i
		}
	}
	return -1
}

// Get returns the value stored for key.
func (t *Table[K, V]) Get(key K) (V, bool) {
	if i := t.find(key); i >= 0 {
		return t.cells()[i].Value, true
	}
	var zero V
	return zero, false
}

// Contains reports whether key is stored.
func (t *Table[K, V]) Contains(key K) bool { return t.find(key) >= 0 }

// Set stores value for key, replacing any previous value. Inserting a new key
// doubles the table first when the insert would push the load factor past
// MaxLoad.
func (t *Table[K, V]) Set(key K, value V) {
	if i := t.find(key); i >= 0 {
		t.cells()[i].Value = value
		return
	}
	h := t.header()
	if h.Rehashing == 0 && float64(h.Count+1) > h.MaxLoad*float64(h.Capacity) {
		t.rehash(int(h.Capacity) * 2)
	}
	t.insert(key, value)
}

// insert places a key known to be absent. When the carried cell runs past
// the maximum probe distance the table doubles and the carried cell, which
// may no longer be the original key, is placed in the new table.
func (t *Table[K, V]) insert(key K, value V) {
	carry := Cell[K, V]{Key: key, Value: value, Distance: 1}
	for {
		cells := t.cells()
		h := t.header()
		maxMiss := uint8(h.MaxMiss)
		i := t.natural(carry.Key)
		for carry.Distance <= maxMiss {
			c := &cells[i]
			if c.Distance == 0 {
				*c = carry
				h.Count++
				return
			}
			if carry.Distance > c.Distance {
				*c, carry = carry, *c
			}
			carry.Distance++
			i++
		}
		logger.Debug("hashtable: probe distance exceeded, growing",
			"buffer", t.buf.String(), "capacity", h.Capacity, "maxMiss", h.MaxMiss)
		t.rehash(int(h.Capacity) * 2)
		carry.Distance = 1
	}
}

// Erase removes key and reports whether it was present. Following cells are
// shifted back one slot until one sits at its natural index.
func (t *Table[K, V]) Erase(key K) bool {
	i := t.find(key)
	if i < 0 {
		return false
	}
	cells := t.cells()
	for {
		next := i + 1
		if next >= len(cells) || cells[next].Distance <= 1 {
			cells[i] = Cell[K, V]{}
			break
		}
		cells[i] = cells[next]
		cells[i].Distance--
		i = next
	}
	t.header().Count--
	return true
}

// Clear removes every key without resizing.
func (t *Table[K, V]) Clear() {
	clear(t.cells())
	t.header().Count = 0
}

// Resize rebuilds the table with capacity slots, rounded up to a power of
// two. Keys that do not fit within the probe limit grow it further.
func (t *Table[K, V]) Resize(capacity int) {
	if capacity <= 0 {
		crash.Fatal(types.ErrKindInvalidArguments, "hashtable %s: capacity %d", t.buf, capacity)
	}
	t.rehash(roundPow2(capacity))
}

// rehash copies the table aside, resizes the buffer, reformats it and
// replays every stored cell through insert. Load-factor growth is
// suppressed while the replay runs; probe overflow still grows.
func (t *Table[K, V]) rehash(capacity int) {
	if t.resize == nil {
		crash.Fatal(types.ErrKindInsufficientMemory,
			"hashtable %s: growth to %d slots without a resize callback", t.buf, capacity)
	}
	old := t.header()
	prev, maxLoad, count := old.Rehashing, old.MaxLoad, old.Count
	src := &Table[K, V]{buf: buffer.Clone(t.buf), hash: t.hash}

	t.resize(t.buf, PrecomputeSize[K, V](capacity))
	crash.Assert(t.buf.Size >= HeaderSize && capacityFor[K, V](t.buf.Size) >= capacity,
		types.ErrKindInsufficientMemory, "hashtable %s: resize cannot hold %d slots", t.buf, capacity)
	format[K, V](t.buf, maxLoad)
	t.header().Rehashing = 1

	for _, c := range src.cells() {
		if c.Distance != 0 {
			t.insert(c.Key, c.Value)
		}
	}

	h := t.header()
	h.Rehashing = prev
	if crash.Checks && h.Count != count {
		crash.Fatal(types.ErrKindInvalidMemory,
			"hashtable %s: rehash replayed %d of %d keys", t.buf, h.Count, count)
	}
	logger.Debug("hashtable: resized", "buffer", t.buf.String(), "capacity", h.Capacity, "count", h.Count)
}

// Keys iterates stored keys in slot order.
func (t *Table[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range t.All() {
			if !yield(k) {
				return
			}
		}
	}
}

// Values iterates stored values in slot order.
func (t *Table[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, v := range t.All() {
			if !yield(v) {
				return
			}
		}
	}
}

// All iterates stored key/value pairs in slot order. The table must not be
// modified during iteration.
func (t *Table[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, c := range t.Cells() {
			if c.Distance == 0 {
				continue
			}
			if !yield(c.Key, c.Value) {
				return
			}
		}
	}
}

// Cells iterates every cell, empty ones included, with its slot index.
func (t *Table[K, V]) Cells() iter.Seq2[int, Cell[K, V]] {
	return func(yield func(int, Cell[K, V]) bool) {
		for i, c := range t.cells() {
			if !yield(i, c) {
				return
			}
		}
	}
}
