package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocReturnsDistinctZeroedNodes(t *testing.T) {
	a := New()
	n1 := a.Alloc()
	n1.Item = 5
	n1.N = 3
	n2 := a.Alloc()
	assert.NotSame(t, n1, n2)
	assert.Equal(t, 0, n2.Item)
	assert.Equal(t, 5, n1.Item, "allocating n2 must not clobber n1")
}

func TestResetReusesBackingBlocksWithoutGrowth(t *testing.T) {
	a := New()
	for i := 0; i < 10; i++ {
		a.Alloc()
	}
	allocated, _ := a.Stats()
	require.Equal(t, MaxBranching, allocated, "first block fully counted as newly allocated")

	a.Reset()
	for i := 0; i < 10; i++ {
		a.Alloc()
	}
	allocatedAfter, _ := a.Stats()
	assert.Equal(t, allocated, allocatedAfter, "reusing the first block must not grow allocated count")
}

func TestAllocGrowsAcrossBlockBoundary(t *testing.T) {
	a := New()
	for i := 0; i < MaxBranching+1; i++ {
		a.Alloc()
	}
	allocated, _ := a.Stats()
	assert.Equal(t, 2*MaxBranching, allocated)
}

func TestResetOnEmptyArenaIsSafe(t *testing.T) {
	a := New()
	a.Reset()
	n := a.Alloc()
	assert.Equal(t, 0, n.Item)
}
