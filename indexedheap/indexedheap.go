// Package indexedheap implements the binary heap of spec.md §4.3: a
// priority queue whose elements are addressed by small, stable ids
// that remain valid (and usable to remove an arbitrary element, not
// just the front) across reordering. It is built on package slab, the
// same id-recycling primitive that backs listarena, per spec.md §9.
package indexedheap

import "github.com/cutiio/cuti/slab"

type element[P any, V any] struct {
	index int32 // this element's current slot in ordering
	prio  P
	value V
}

// Higher reports whether y has strictly higher priority than x. For a
// scheduler alarm heap, where the earliest deadline must surface
// first, Higher(x, y) is "y is before x".
type Higher[P any] func(x, y P) bool

// Heap is a binary heap of (priority, value) pairs keyed by stable
// ids, ordered by a user-supplied, total Higher comparator.
type Heap[P any, V any] struct {
	elements *slab.Slab[element[P, V]]
	ordering []int32 // binary heap of ids
	higher   Higher[P]
}

// New returns an empty heap ordered by higher.
func New[P any, V any](higher Higher[P]) *Heap[P, V] {
	return &Heap[P, V]{elements: slab.New[element[P, V]](), higher: higher}
}

// Empty reports whether the heap has no elements.
func (h *Heap[P, V]) Empty() bool {
	return len(h.ordering) == 0
}

// Len returns the number of elements currently in the heap.
func (h *Heap[P, V]) Len() int {
	return len(h.ordering)
}

// AddElement inserts (prio, value), returning its id.
func (h *Heap[P, V]) AddElement(prio P, value V) int32 {
	index := int32(len(h.ordering))
	id := h.elements.Add(element[P, V]{index: index, prio: prio, value: value})
	h.ordering = append(h.ordering, id)
	h.swim(id)
	return id
}

// FrontElement returns the id of a highest-priority element.
// Precondition: !Empty().
func (h *Heap[P, V]) FrontElement() int32 {
	return h.ordering[0]
}

// Priority returns the priority of the element named by id.
func (h *Heap[P, V]) Priority(id int32) P {
	return h.elements.Value(id).prio
}

// Value returns the value of the element named by id.
func (h *Heap[P, V]) Value(id int32) V {
	return h.elements.Value(id).value
}

// RemoveElement removes an arbitrary element from the heap.
func (h *Heap[P, V]) RemoveElement(id int32) {
	index := h.elements.Value(id).index

	lastID := h.ordering[len(h.ordering)-1]
	h.ordering[index] = lastID
	h.elements.Value(lastID).index = index

	h.ordering = h.ordering[:len(h.ordering)-1]
	h.elements.Remove(id)

	if lastID != id {
		if !h.swim(lastID) {
			h.sink(lastID)
		}
	}
}

// swim moves id up as far as needed, reporting whether it moved.
func (h *Heap[P, V]) swim(id int32) bool {
	index := h.elements.Value(id).index
	moved := false
	for index > 0 {
		parentIndex := (index - 1) / 2
		parentID := h.ordering[parentIndex]

		if !h.higher(h.elements.Value(parentID).prio, h.elements.Value(id).prio) {
			break
		}

		h.ordering[index] = parentID
		h.ordering[parentIndex] = id
		h.elements.Value(id).index = parentIndex
		h.elements.Value(parentID).index = index

		moved = true
		index = parentIndex
	}
	return moved
}

// sink moves id down as far as needed.
func (h *Heap[P, V]) sink(id int32) {
	index := h.elements.Value(id).index
	limit := int32(len(h.ordering))

	for index < limit/2 {
		highestID := id
		highestIndex := index

		for childIndex := 2*index + 1; childIndex < limit && childIndex <= 2*index+2; childIndex++ {
			childID := h.ordering[childIndex]
			if h.higher(h.elements.Value(highestID).prio, h.elements.Value(childID).prio) {
				highestID = childID
				highestIndex = childIndex
			}
		}

		if highestIndex == index {
			break
		}

		h.ordering[index] = highestID
		h.ordering[highestIndex] = id
		h.elements.Value(id).index = highestIndex
		h.elements.Value(highestID).index = index

		index = highestIndex
	}
}
