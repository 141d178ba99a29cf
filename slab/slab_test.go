package slab

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddRemoveRecycle(t *testing.T) {
	s := New[string]()

	a := s.Add("a")
	b := s.Add("b")
	c := s.Add("c")

	require.Equal(t, "a", *s.Value(a))
	require.Equal(t, "b", *s.Value(b))
	require.Equal(t, "c", *s.Value(c))

	s.Remove(b)
	require.False(t, s.Valid(b), "id %d should be invalid after Remove", b)

	// the freed slot should be reused before the array grows
	d := s.Add("d")
	require.Equal(t, b, d, "expected the freed slot to be recycled")
	require.Equal(t, "d", *s.Value(d))
	require.Equal(t, "a", *s.Value(a))
	require.Equal(t, "c", *s.Value(c))
}

func TestIdsStableAcrossGrowth(t *testing.T) {
	s := New[int]()
	ids := make([]int32, 0, 1000)
	for i := 0; i < 1000; i++ {
		ids = append(ids, s.Add(i))
	}
	for i, id := range ids {
		require.Equal(t, i, *s.Value(id), "id %d", id)
	}
}
