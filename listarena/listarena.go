// Package listarena implements the intrusive doubly-linked list arena
// of spec.md §4.2: a tightly packed container of doubly-linked lists
// of a single element type, with both lists and elements addressed by
// small, stable, recyclable ids. It is built on top of package slab,
// per spec.md §9's "factor out a shared slab primitive" note.
package listarena

import "github.com/cutiio/cuti/slab"

type node[T any] struct {
	prev, next int32
	hasData    bool
	data       T
}

// Arena is a collection of doubly-linked lists of T, all sharing one
// underlying slab so that list heads and data nodes recycle ids
// together.
type Arena[T any] struct {
	nodes *slab.Slab[node[T]]
}

// New returns an empty arena.
func New[T any]() *Arena[T] {
	return &Arena[T]{nodes: slab.New[node[T]]()}
}

// AddList creates a new, empty list and returns its id. A list's id
// doubles as the past-the-end id of that list.
func (a *Arena[T]) AddList() int32 {
	id := a.nodes.Add(node[T]{})
	n := a.nodes.Value(id)
	n.prev, n.next = id, id
	return id
}

// First returns list's first element id, or its past-the-end id if
// list is empty.
func (a *Arena[T]) First(list int32) int32 {
	return a.nodes.Value(list).next
}

// Last returns list's past-the-end id. This id never denotes an
// actual element.
func (a *Arena[T]) Last(list int32) int32 {
	return list
}

// Next returns element's successor. element must not be a list's
// past-the-end id.
func (a *Arena[T]) Next(element int32) int32 {
	return a.nodes.Value(element).next
}

// Prev returns element's predecessor. element must not be a list's
// first element.
func (a *Arena[T]) Prev(element int32) int32 {
	return a.nodes.Value(element).prev
}

// ListEmpty reports whether list has no elements.
func (a *Arena[T]) ListEmpty(list int32) bool {
	return a.First(list) == a.Last(list)
}

// Value returns a pointer to element's payload. The pointer is
// invalidated by the next AddElementBefore call or by removing
// element.
func (a *Arena[T]) Value(element int32) *T {
	n := a.nodes.Value(element)
	if !n.hasData {
		panic("listarena: Value called on a list head id")
	}
	return &n.data
}

// AddElementBefore inserts value before the element named by before
// (which may be a list's past-the-end id), on before's list, and
// returns the new element's id.
func (a *Arena[T]) AddElementBefore(before int32, value T) int32 {
	prev := a.nodes.Value(before).prev

	id := a.nodes.Add(node[T]{prev: prev, next: before, hasData: true, data: value})

	// Re-fetch by id: the Add above may have reallocated the slab's
	// backing array, invalidating any pointer taken before it.
	a.nodes.Value(prev).next = id
	a.nodes.Value(before).prev = id

	return id
}

// MoveElementBefore relocates element, possibly onto a different
// list, to just before the element named by before.
func (a *Arena[T]) MoveElementBefore(before, element int32) {
	oldPrev := a.nodes.Value(element).prev
	oldNext := a.nodes.Value(element).next
	a.nodes.Value(oldPrev).next = oldNext
	a.nodes.Value(oldNext).prev = oldPrev

	newPrev := a.nodes.Value(before).prev
	newNext := a.nodes.Value(newPrev).next // == before, unless element == before
	a.nodes.Value(newPrev).next = element
	a.nodes.Value(element).prev = newPrev
	a.nodes.Value(element).next = newNext
	a.nodes.Value(newNext).prev = element
}

// RemoveElement unlinks and recycles element, which must be a data
// node, not a list head.
func (a *Arena[T]) RemoveElement(element int32) {
	n := a.nodes.Value(element)
	if !n.hasData {
		panic("listarena: RemoveElement called on a list head id")
	}
	prev, next := n.prev, n.next
	a.nodes.Value(prev).next = next
	a.nodes.Value(next).prev = prev
	a.nodes.Remove(element)
}

// RemoveList recycles list and every element still on it.
func (a *Arena[T]) RemoveList(list int32) {
	for e := a.First(list); e != a.Last(list); e = a.First(list) {
		a.RemoveElement(e)
	}
	a.nodes.Remove(list)
}
