// Package pool provides Pool, an object pool with stable, generation-checked
// handles.
//
// Objects live densely packed in one region and are addressed through a
// second region of index entries, one per slot. A slot is either free (on
// the freelist) or live (its entry points at the object's current position).
// Destroy compacts by moving the last live object into the hole and fixing
// that object's entry, so object positions change but IDs never do.
//
// Every create advances the slot's generation, so an ID that refers to a
// destroyed object stops being Contained even after its slot is reused.
//
// Pool is not safe for concurrent use.
package pool

import (
	"fmt"
	"iter"
	"math"

	"github.com/joshuapare/memkit/internal/buf"
	"github.com/joshuapare/memkit/internal/crash"
	"github.com/joshuapare/memkit/mem/region"
	"github.com/joshuapare/memkit/pkg/types"
)

const (
	// MaxObjects is the capacity ceiling; slot numbers fit in 16 bits with
	// one value reserved as the freelist terminator.
	MaxObjects = math.MaxUint16 - 1

	// none marks a free entry (index) and terminates the freelist (next).
	none = math.MaxUint16
)

// ID is a stable handle to a pooled object. The zero ID is never valid.
type ID struct {
	Slot uint32
	Gen  uint32
}

// IsZero reports whether id is the zero ID.
func (id ID) IsZero() bool { return id == ID{} }

func (id ID) String() string { return fmt.Sprintf("%d#%d", id.Slot, id.Gen) }

// Identified is implemented by object types that carry their own ID. The pool
// stamps the ID when the object is created.
type Identified interface {
	SetPoolID(id ID)
}

// entry is the index record of one slot.
type entry struct {
	id    ID
	index uint16 // object position, or none when the slot is free
	next  uint16 // next free slot, or none
}

type object[T any] struct {
	id    ID
	value T
}

// Pool stores objects of type T behind generation-checked IDs.
type Pool[T any] struct {
	objects *region.Region[object[T]]
	indices *region.Region[entry]
	head    uint16
	tail    uint16
	name    string
}

// New returns a pool with room for capacity objects before it first grows.
func New[T any](capacity int, name string) *Pool[T] {
	if capacity < 1 {
		capacity = 1
	}
	if capacity > MaxObjects {
		crash.Fatal(types.ErrKindInsufficientMemory,
			"pool %q: capacity %d exceeds %d", name, capacity, MaxObjects)
	}
	p := &Pool[T]{
		objects: region.New[object[T]](capacity, name+".objects"),
		indices: region.New[entry](capacity, name+".indices"),
		head:    none,
		tail:    none,
		name:    name,
	}
	p.extend(capacity)
	return p
}

// Name returns the diagnostic name of the pool.
func (p *Pool[T]) Name() string { return p.name }

// Used returns the number of live objects.
func (p *Pool[T]) Used() int { return p.objects.Used() }

// Capacity returns the number of slots.
func (p *Pool[T]) Capacity() int { return p.indices.Used() }

// extend appends free slots until there are n and links them onto the freelist tail.
func (p *Pool[T]) extend(n int) {
	for slot := p.indices.Used(); slot < n; slot++ {
		p.indices.Construct(entry{id: ID{Slot: uint32(slot)}, index: none, next: none})
		p.pushFree(uint16(slot))
	}
}

func (p *Pool[T]) pushFree(slot uint16) {
	e := p.indices.At(int(slot))
	e.index = none
	e.next = none
	if p.tail == none {
		p.head = slot
	} else {
		p.indices.At(int(p.tail)).next = slot
	}
	p.tail = slot
}

// Resize grows the index table to n slots. The object region grows on its own
// as objects are created. Shrinking is fatal.
func (p *Pool[T]) Resize(n int) {
	if n < p.Capacity() {
		crash.Fatal(types.ErrKindInvalidMemory,
			"pool %q: cannot shrink from %d to %d slots", p.name, p.Capacity(), n)
	}
	if n > MaxObjects {
		crash.Fatal(types.ErrKindInsufficientMemory,
			"pool %q: %d slots exceeds %d", p.name, n, MaxObjects)
	}
	if n > p.indices.Capacity() {
		p.indices.Reserve(n)
	}
	p.extend(n)
}

func (p *Pool[T]) grow() {
	n, _ := buf.Grow(p.Capacity())
	if p.Capacity() >= MaxObjects {
		crash.Fatal(types.ErrKindInsufficientMemory,
			"pool %q: overflow at %d objects", p.name, p.Capacity())
	}
	p.Resize(min(n, MaxObjects))
}

// Create stores v in a free slot and returns its ID. The pool grows by about
// a fifth when no slot is free.
func (p *Pool[T]) Create(v T) ID {
	if p.head == none {
		p.grow()
	}
	slot := p.head
	e := p.indices.At(int(slot))
	p.head = e.next
	if p.head == none {
		p.tail = none
	}
	return p.activate(slot, v)
}

// CreateAt stores v in the slot named by id.Slot, splicing the slot out of
// the freelist wherever it sits, and returns the ID with a fresh generation.
// The index table grows when the slot lies beyond the current capacity.
// Targeting a live slot is fatal.
func (p *Pool[T]) CreateAt(id ID, v T) ID {
	if id.Slot >= MaxObjects {
		crash.Fatal(types.ErrKindOutOfBounds,
			"pool %q: slot %d exceeds %d", p.name, id.Slot, MaxObjects)
	}
	slot := uint16(id.Slot)
	if int(slot) >= p.Capacity() {
		p.Resize(int(slot) + 1)
	}
	if e := p.indices.At(int(slot)); e.index != none {
		crash.Fatal(types.ErrKindInUse, "pool %q: slot %d is live as %s", p.name, slot, e.id)
	}

	prev := uint16(none)
	cur := p.head
	for cur != slot {
		if cur == none {
			crash.Fatal(types.ErrKindInvalidMemory, "pool %q: free slot %d missing from freelist", p.name, slot)
		}
		prev = cur
		cur = p.indices.At(int(cur)).next
	}
	next := p.indices.At(int(slot)).next
	if prev == none {
		p.head = next
	} else {
		p.indices.At(int(prev)).next = next
	}
	if p.tail == slot {
		p.tail = prev
	}
	return p.activate(slot, v)
}

func (p *Pool[T]) activate(slot uint16, v T) ID {
	e := p.indices.At(int(slot))
	e.id.Gen++
	e.index = uint16(p.objects.Used())
	e.next = none
	id := e.id

	o := p.objects.Construct(object[T]{id: id, value: v})
	if s, ok := any(&o.value).(Identified); ok {
		s.SetPoolID(id)
	}
	return id
}

// Contains reports whether id refers to a live object. IDs of destroyed
// objects are rejected even when their slot has been reused.
func (p *Pool[T]) Contains(id ID) bool {
	if int(id.Slot) >= p.Capacity() {
		return false
	}
	e := p.indices.At(int(id.Slot))
	return e.id == id && e.index != none
}

// Lookup returns a pointer to the object with the given id. The pointer is
// invalidated by the next Create, Destroy or Sort.
func (p *Pool[T]) Lookup(id ID) *T {
	if crash.Checks && !p.Contains(id) {
		crash.Fatal(types.ErrKindOutOfBounds, "pool %q: %s is not live", p.name, id)
	}
	e := p.indices.Full()[id.Slot]
	return &p.objects.Full()[e.index].value
}

// Get returns a copy of the object with the given id.
func (p *Pool[T]) Get(id ID) (T, bool) {
	if !p.Contains(id) {
		var zero T
		return zero, false
	}
	return *p.Lookup(id), true
}

// Destroy removes the object with the given id. The last live object moves
// into the vacated position and the slot returns to the freelist tail.
func (p *Pool[T]) Destroy(id ID) {
	if !p.Contains(id) {
		crash.Fatal(types.ErrKindInvalidArguments, "pool %q: destroy of dead id %s", p.name, id)
	}
	e := p.indices.At(int(id.Slot))
	hole := int(e.index)

	objs := p.objects.Full()
	if d, ok := any(&objs[hole].value).(region.Destructor); ok {
		d.Destruct()
	}

	last := p.objects.Used() - 1
	if hole != last {
		objs[hole] = objs[last]
		p.indices.At(int(objs[hole].id.Slot)).index = uint16(hole)
	}
	p.objects.Truncate(last)

	p.pushFree(uint16(id.Slot))
}

// Drop destroys every object and returns all slots to the freelist in slot
// order. Generations are kept, so IDs issued before Drop stay invalid.
func (p *Pool[T]) Drop() {
	objs := p.objects.Slice()
	for i := range objs {
		if d, ok := any(&objs[i].value).(region.Destructor); ok {
			d.Destruct()
		}
	}
	p.objects.Drop()
	p.head, p.tail = none, none
	for slot := range p.Capacity() {
		p.pushFree(uint16(slot))
	}
}

// Sort orders the live objects by less, keeping every ID valid.
func (p *Pool[T]) Sort(less func(a, b *T) bool) {
	objs := p.objects.Full()
	p.objects.SortSwap(
		func(a, b *object[T]) bool { return less(&a.value, &b.value) },
		func(i, j int) {
			ei := p.indices.At(int(objs[i].id.Slot))
			ej := p.indices.At(int(objs[j].id.Slot))
			ei.index, ej.index = ej.index, ei.index
		},
	)
}

// All iterates live objects in storage order.
func (p *Pool[T]) All() iter.Seq2[ID, *T] {
	return func(yield func(ID, *T) bool) {
		objs := p.objects.Slice()
		for i := range objs {
			if !yield(objs[i].id, &objs[i].value) {
				return
			}
		}
	}
}

// IDs returns the IDs of all live objects in storage order.
func (p *Pool[T]) IDs() []ID {
	ids := make([]ID, 0, p.Used())
	for id := range p.All() {
		ids = append(ids, id)
	}
	return ids
}
