package listarena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTraversalForwardAndBack(t *testing.T) {
	a := New[int]()
	list := a.AddList()

	for _, v := range []int{1, 2, 3, 4} {
		a.AddElementBefore(a.Last(list), v)
	}

	var forward []int
	for e := a.First(list); e != a.Last(list); e = a.Next(e) {
		forward = append(forward, *a.Value(e))
	}
	require.Equal(t, []int{1, 2, 3, 4}, forward)

	var backward []int
	for e := a.Prev(a.Last(list)); ; e = a.Prev(e) {
		backward = append(backward, *a.Value(e))
		if e == a.First(list) {
			break
		}
	}
	require.Equal(t, []int{4, 3, 2, 1}, backward)
}

func TestIdStableUntilRemoved(t *testing.T) {
	a := New[string]()
	list := a.AddList()

	id1 := a.AddElementBefore(a.Last(list), "one")
	id2 := a.AddElementBefore(a.Last(list), "two")
	_ = a.AddElementBefore(a.Last(list), "three")

	require.Equal(t, "one", *a.Value(id1))
	require.Equal(t, "two", *a.Value(id2))

	a.RemoveElement(id2)

	require.Equal(t, "one", *a.Value(id1), "removing an unrelated element should not disturb id1")
}

func TestMoveElementBeforeChangesList(t *testing.T) {
	a := New[int]()
	listA := a.AddList()
	listB := a.AddList()

	e := a.AddElementBefore(a.Last(listA), 42)
	require.False(t, a.ListEmpty(listA))

	a.MoveElementBefore(a.Last(listB), e)

	require.True(t, a.ListEmpty(listA), "listA should be empty after the move")
	require.False(t, a.ListEmpty(listB), "listB should contain the moved element")
	require.Equal(t, 42, *a.Value(a.First(listB)))
}

func TestRemoveListRecyclesElements(t *testing.T) {
	a := New[int]()
	list := a.AddList()
	a.AddElementBefore(a.Last(list), 1)
	a.AddElementBefore(a.Last(list), 2)

	a.RemoveList(list)

	list2 := a.AddList()
	require.True(t, a.ListEmpty(list2), "new list should start empty")
}
