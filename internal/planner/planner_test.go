package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dilina/nymelicit/internal/arena"
	"github.com/dilina/nymelicit/internal/mixture"
)

func twoGroupModel(t *testing.T) *mixture.Model {
	t.Helper()
	mu := [][]float64{
		{0, 0, 0, 0, 0},
		{1, 1, 1, 1, 1},
	}
	sigma2 := [][]float64{
		{1, 1, 1, 1, 1},
		{1, 1, 1, 1, 1},
	}
	m, err := mixture.New(mu, sigma2)
	require.NoError(t, err)
	return m
}

func TestSelectUCB1ReturnsUnvisitedChildFirst(t *testing.T) {
	m := twoGroupModel(t)
	p := New(m, DefaultConfig(), 1)
	p.Reset()
	root := p.Tree.Root

	a := p.Tree.Arena.Alloc()
	a.Item, a.Q, a.N = 0, 3, 5
	b := p.Tree.Arena.Alloc()
	b.Item, b.Q, b.N = 2, 4, 0
	c := p.Tree.Arena.Alloc()
	c.Item, c.Q, c.N = 1, 0, 1
	root.Children = []*arena.Node{a, b, c}
	root.N = a.N + b.N + c.N // parent visit count tracks the sum over children.

	chosen := p.selectUCB1(root)
	assert.Same(t, b, chosen, "any unvisited (N=0) child must win regardless of UCB1 score")
}

func TestSelectUCB1TieBreaksUniformly(t *testing.T) {
	m := twoGroupModel(t)
	p := New(m, DefaultConfig(), 2)
	p.Reset()
	root := p.Tree.Root

	children := make([]*arena.Node, 3)
	for i := range children {
		n := p.Tree.Arena.Alloc()
		n.Item = i
		n.N = 4
		n.Q = 2.0 // Q/N = 0.5 for all three: exact tie.
		children[i] = n
	}
	root.Children = children
	root.N = 3 * 4 // parent visit count tracks the sum over children.

	counts := make(map[int]int)
	const trials = 4000
	for i := 0; i < trials; i++ {
		chosen := p.selectUCB1(root)
		counts[chosen.Item]++
	}
	for item, count := range counts {
		frac := float64(count) / trials
		assert.InDelta(t, 1.0/3.0, frac, 0.08, "item %d chosen %d/%d times, expected roughly uniform", item, count, trials)
	}
}

func TestExpandExcludesUsedAndPathItems(t *testing.T) {
	m := twoGroupModel(t)
	p := New(m, DefaultConfig(), 3)
	p.Reset()
	root := p.Tree.Root
	root.Item = -1

	usedMask := make([]bool, m.NumItems())
	usedMask[1] = true

	pathNode := p.Tree.Arena.Alloc()
	pathNode.Item = 2
	path := []*arena.Node{root, pathNode}

	err := p.expand(root, path, usedMask)
	require.NoError(t, err)

	seen := make(map[int]bool)
	for _, c := range root.Children {
		seen[c.Item] = true
	}
	assert.False(t, seen[1], "used item must not be offered again")
	assert.False(t, seen[2], "item already on the simulation path must not be offered again")
	assert.True(t, seen[0])
	assert.True(t, seen[3])
	assert.True(t, seen[4])
}

func TestRewardBoundsUnderMonteCarloRollout(t *testing.T) {
	m := twoGroupModel(t)
	cfg := DefaultConfig()
	cfg.NumRollouts = 3
	cfg.MaxNumRollouts = 2
	p := New(m, cfg, 4)

	ctx := &Context{
		UsedMask: make([]bool, m.NumItems()),
		UsedList: nil,
		Ratings:  nil,
		Probs:    []float64{0.5, 0.5},
	}
	for i := 0; i < 20; i++ {
		reward := p.rolloutReward(ctx, []int{0})
		assert.GreaterOrEqual(t, reward, 0.0)
		assert.LessOrEqual(t, reward, 1.0)
	}
}

func TestSimulateRespectsMaxLookaheadOfOne(t *testing.T) {
	m := twoGroupModel(t)
	cfg := DefaultConfig()
	cfg.MaxLookahead = 1
	p := New(m, cfg, 5)
	p.Reset()

	ctx := &Context{
		UsedMask: make([]bool, m.NumItems()),
		Probs:    []float64{0.5, 0.5},
	}
	for i := 0; i < 200; i++ {
		require.NoError(t, p.Simulate(ctx))
	}

	for _, child := range p.Tree.Root.Children {
		assert.Empty(t, child.Children, "no node beyond depth 1 may ever be expanded when max_lookahead=1")
	}
}

func TestBestChildPrefersHighestMeanReturn(t *testing.T) {
	m := twoGroupModel(t)
	p := New(m, DefaultConfig(), 6)
	p.Reset()
	root := p.Tree.Root

	strong := p.Tree.Arena.Alloc()
	strong.Item, strong.N, strong.Q = 0, 10, 9.5
	weak := p.Tree.Arena.Alloc()
	weak.Item, weak.N, weak.Q = 1, 10, 1.0
	root.Children = []*arena.Node{strong, weak}

	item, ok := p.BestChild()
	require.True(t, ok)
	assert.Equal(t, 0, item)
}

func TestBestChildHandlesAllUnvisited(t *testing.T) {
	m := twoGroupModel(t)
	p := New(m, DefaultConfig(), 7)
	p.Reset()
	root := p.Tree.Root
	n := p.Tree.Arena.Alloc()
	n.Item = 3
	root.Children = []*arena.Node{n}

	item, ok := p.BestChild()
	require.True(t, ok)
	assert.Equal(t, 3, item)
}

func TestBestChildEmptyRootIsNotOk(t *testing.T) {
	m := twoGroupModel(t)
	p := New(m, DefaultConfig(), 8)
	p.Reset()
	_, ok := p.BestChild()
	assert.False(t, ok)
}
