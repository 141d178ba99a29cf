// Package slab implements the "dense stable ids with free-slot
// recycling" primitive shared by listarena and indexedheap (spec.md
// §9: "factor out a shared slab primitive; express the list arena and
// the indexed heap as two users of it").
//
// A Slab is a tightly packed array of slots, each addressed by a
// small non-negative int32 id. Ids start at 0 and are recycled
// aggressively: once a slot is freed, the next Add reuses it before
// growing the backing array. This keeps the live id range dense so
// that other components (the list arena, the indexed heap, the
// selector's registration tables) can use ids directly as indexes
// into their own parallel arrays, without an extra map.
package slab

import "math"

// MaxID bounds the ids a Slab hands out: every id is below MaxID.
const MaxID = math.MaxInt32

// Slab is a generic id-addressed slot array with O(1) allocation,
// lookup, and removal.
//
// Growing the backing slice (on Add, when no free slot is available)
// may relocate every live element, exactly like the source's
// underlying std::vector reallocating: any pointer obtained from
// Value before a subsequent Add must be considered stale. Callers
// that need to mutate a value across an Add call must re-fetch it by
// id afterwards.
type Slab[T any] struct {
	items   []item[T]
	freeTop int32 // -1 if the free list is empty
}

type item[T any] struct {
	occupied bool
	value    T
	free     int32 // next free slot when !occupied
}

// New returns an empty Slab.
func New[T any]() *Slab[T] {
	return &Slab[T]{freeTop: -1}
}

// Len returns one past the highest id ever allocated (i.e. the size
// of the backing array, live and free slots included).
func (s *Slab[T]) Len() int32 {
	return int32(len(s.items))
}

// Valid reports whether id currently names a live slot.
func (s *Slab[T]) Valid(id int32) bool {
	return id >= 0 && int(id) < len(s.items) && s.items[id].occupied
}

// Add allocates a slot initialized to value and returns its id.
func (s *Slab[T]) Add(value T) int32 {
	if s.freeTop != -1 {
		id := s.freeTop
		it := &s.items[id]
		s.freeTop = it.free
		it.occupied = true
		it.value = value
		return id
	}

	if len(s.items) >= MaxID {
		panic("slab: out of element ids")
	}
	id := int32(len(s.items))
	s.items = append(s.items, item[T]{occupied: true, value: value})
	return id
}

// Value returns a pointer to the live value named by id. The pointer
// is invalidated by the next Add call (possible slice reallocation)
// or by Remove(id) (freeing reuses the memory).
func (s *Slab[T]) Value(id int32) *T {
	return &s.items[id].value
}

// Remove frees id, recycling its slot for a future Add and resetting
// its value to the zero value of T.
func (s *Slab[T]) Remove(id int32) {
	it := &s.items[id]
	var zero T
	it.occupied = false
	it.value = zero
	it.free = s.freeTop
	s.freeTop = id
}
