// Package planner implements the Monte Carlo Tree Search that chooses,
// round by round, the next item to elicit a rating for: UCB1 selection,
// expansion under a no-repeat-item constraint, random rollouts to the
// elicitation horizon, and the reward function derived from the
// Gaussian-mixture classifier in package mixture.
package planner

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/dilina/nymelicit/internal/arena"
	"github.com/dilina/nymelicit/internal/mixture"
	"github.com/dilina/nymelicit/internal/tree"
)

// maxTieCandidates bounds how many near-tied children UCB1 and BestChild
// will track before breaking ties uniformly at random.
const maxTieCandidates = 100

// ucbTieBand is the absolute UCB1 score band within which two children
// are treated as tied.
const ucbTieBand = 1e-2

// bestChildTieFraction is the fraction of the maximum Q/N within which a
// root child is treated as tied for the final "next item" choice.
const bestChildTieFraction = 0.95

// Config holds the tunable knobs of a single planner instance.
type Config struct {
	// MaxLookahead caps the depth (in elicited items) a leaf may be
	// expanded to beyond the root.
	MaxLookahead int

	// NumRollouts is R: the number of Monte Carlo rollouts per group
	// drawn at a leaf, R*G total.
	NumRollouts int

	// MaxNumRollouts is the number of additional distinct items sampled
	// into each individual rollout beyond the path items (typically
	// MaxLookahead-1).
	MaxNumRollouts int

	// UseMonteCarlo selects the Monte Carlo rollout reward (true) versus
	// the one-step expected-posterior-mass reward (false).
	UseMonteCarlo bool

	// ExploreScale is the variance bound used in the UCB1 exploration
	// term (1/4 for a Bernoulli-distributed return, per spec).
	ExploreScale float64
}

// DefaultConfig returns the standard fixed defaults, with ExploreScale
// set to the Bernoulli-return variance bound.
func DefaultConfig() Config {
	return Config{
		MaxLookahead:   1,
		NumRollouts:    1,
		MaxNumRollouts: 0,
		UseMonteCarlo:  true,
		ExploreScale:   0.25,
	}
}

// Context carries the per-round elicitation state the planner needs:
// which items have already been asked (UsedMask/UsedList), their
// observed Ratings, and the current group posterior Probs. It is rebuilt by
// the caller (package elicit) at the start of every round.
type Context struct {
	UsedMask []bool
	UsedList []int
	Ratings  []float64
	Probs    []float64
}

// Planner is a single-threaded MCTS worker: one tree, one RNG, one
// model reference. A Planner must not be shared across goroutines.
type Planner struct {
	model *mixture.Model
	cfg   Config
	rng   *rand.Rand
	Tree  *tree.Tree

	// scratch path buffer, reused across Simulate calls within a round.
	path []*arena.Node
}

// New creates a Planner over the given (shared, read-only) model, with
// its own RNG seeded from seed. Pass a distinct seed per worker -- e.g.
// wall-clock time XORed with a worker id -- to avoid duplicate streams.
func New(model *mixture.Model, cfg Config, seed int64) *Planner {
	return &Planner{
		model: model,
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(seed)),
		Tree:  tree.New(),
	}
}

// Reset rewinds the tree for a new elicitation round.
func (p *Planner) Reset() {
	p.Tree.Reset()
}

// Simulate runs one selection/expansion/rollout/backpropagation pass.
func (p *Planner) Simulate(ctx *Context) error {
	root := p.Tree.Root
	path := append(p.path[:0], root)
	cur := root
	for len(cur.Children) > 0 {
		cur = p.selectUCB1(cur)
		path = append(path, cur)
	}
	leaf := cur
	depth := len(path) - 1

	shouldExpand := leaf.Item == -1 ||
		(leaf.N >= 1 && len(leaf.Children) == 0 && depth < p.cfg.MaxLookahead)
	if shouldExpand {
		if err := p.expand(leaf, path, ctx.UsedMask); err != nil {
			return err
		}
		if len(leaf.Children) > 0 {
			cur = p.selectUCB1(leaf)
			path = append(path, cur)
		}
	}
	p.path = path

	pathItems := tree.PathItems(path)
	if len(pathItems) == 0 {
		// Terminal root with no expandable items: nothing to learn from
		// this simulation beyond the empty path's own stats.
		for _, n := range path {
			n.N++
		}
		return nil
	}

	var reward float64
	if p.cfg.UseMonteCarlo {
		reward = p.rolloutReward(ctx, pathItems)
	} else {
		reward = p.oneStepReward(ctx, pathItems)
	}
	for _, n := range path {
		n.N++
		n.Q += reward
	}
	return nil
}

// selectUCB1 returns the child of n with the highest UCB1 score. Any
// never-visited child is returned immediately. Scores within ucbTieBand
// of the running maximum are treated as tied and broken uniformly at
// random.
func (p *Planner) selectUCB1(n *arena.Node) *arena.Node {
	logN := p.cfg.ExploreScale * math.Log(float64(n.N))
	var best [maxTieCandidates]*arena.Node
	numBest := 0
	bestScore := math.Inf(-1)
	for _, c := range n.Children {
		if c.N == 0 {
			return c
		}
		q := c.Q / float64(c.N)
		score := q + math.Sqrt(logN/float64(c.N))
		switch {
		case score > bestScore:
			bestScore = score
			best[0] = c
			numBest = 1
		case score > bestScore-ucbTieBand && numBest < maxTieCandidates:
			best[numBest] = c
			numBest++
		}
	}
	if numBest == 1 {
		return best[0]
	}
	return best[p.rng.Intn(numBest)]
}

// expand allocates one child per item not yet asked (per UsedMask) and
// not already present on path, leaving the leaf terminal if no
// candidate items remain.
func (p *Planner) expand(leaf *arena.Node, path []*arena.Node, usedMask []bool) error {
	numItems := p.model.NumItems()
	if numItems > arena.MaxBranching {
		return errors.Errorf("planner: item count %d exceeds MaxBranching %d", numItems, arena.MaxBranching)
	}
	excluded := make([]bool, numItems)
	copy(excluded, usedMask)
	for _, n := range path {
		if n.Item >= 0 {
			if n.Item >= numItems {
				return errors.Errorf("planner: path item %d out of range [0,%d)", n.Item, numItems)
			}
			excluded[n.Item] = true
		}
	}
	for item := 0; item < numItems; item++ {
		if excluded[item] {
			continue
		}
		child := p.Tree.Arena.Alloc()
		child.Item = item
		leaf.Children = append(leaf.Children, child)
	}
	return nil
}

// rolloutReward implements the Monte Carlo rollout phase: R*G
// independent rollouts, each sampling up to MaxNumRollouts additional
// distinct items and an assumed group from the posterior, averaging the
// binary reward.
func (p *Planner) rolloutReward(ctx *Context, pathItems []int) float64 {
	numItems := p.model.NumItems()
	numGroups := p.model.NumGroups()

	overlay := make([]bool, numItems)
	copy(overlay, ctx.UsedMask)
	for _, item := range pathItems {
		overlay[item] = true
	}

	// Hoisted once per simulation, not per rollout.
	initErr := p.model.InitRewardErr(ctx.UsedList, ctx.Ratings)

	cumProbs := make([]float64, numGroups)
	cum := 0.0
	for g, prob := range ctx.Probs {
		cum += prob
		cumProbs[g] = cum
	}

	totalRollouts := p.cfg.NumRollouts * numGroups
	if totalRollouts <= 0 {
		return 0
	}
	var rewardSum float64
	for i := 0; i < totalRollouts; i++ {
		var rolloutItems []int
		if p.cfg.MaxNumRollouts > 0 {
			rolloutItems = p.sampleRolloutItems(overlay, numItems)
		}
		g := sampleFromCumulative(p.rng, cumProbs)
		rewardSum += float64(p.model.Reward(p.rng, g, pathItems, rolloutItems, initErr))
	}
	return rewardSum / float64(totalRollouts)
}

// sampleRolloutItems draws up to MaxNumRollouts distinct item indices,
// uniformly without replacement, from the complement of overlay, via
// rejection sampling. overlay is copied per call since each rollout
// samples its own disjoint extension.
func (p *Planner) sampleRolloutItems(overlay []bool, numItems int) []int {
	avail := 0
	for _, used := range overlay {
		if !used {
			avail++
		}
	}
	n := p.cfg.MaxNumRollouts
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return nil
	}
	local := make([]bool, numItems)
	copy(local, overlay)
	items := make([]int, 0, n)
	for len(items) < n {
		item := p.rng.Intn(numItems)
		if local[item] {
			continue
		}
		local[item] = true
		items = append(items, item)
	}
	return items
}

func sampleFromCumulative(rng *rand.Rand, cumProbs []float64) int {
	r := rng.Float64()
	for g, c := range cumProbs {
		if r <= c {
			return g
		}
	}
	return len(cumProbs) - 1
}

// oneStepReward implements the non-Monte-Carlo planner: for each
// candidate group, extend (items, ratings) with the first path item
// rated at that group's mean, recompute the posterior, and weight by
// the current prior mass on that group.
func (p *Planner) oneStepReward(ctx *Context, pathItems []int) float64 {
	firstItem := pathItems[0]
	items := make([]int, len(ctx.UsedList)+1)
	copy(items, ctx.UsedList)
	items[len(ctx.UsedList)] = firstItem

	baseRatings := make([]float64, len(ctx.Ratings)+1)
	copy(baseRatings, ctx.Ratings)

	var reward float64
	for g := 0; g < p.model.NumGroups(); g++ {
		ratings := make([]float64, len(baseRatings))
		copy(ratings, baseRatings)
		ratings[len(baseRatings)-1] = p.model.MeanRating(g, firstItem)
		probsAfter := p.model.GroupProbs(items, ratings)
		reward += ctx.Probs[g] * probsAfter[g]
	}
	return reward
}

// BestChild implements the pure-exploitation "best child" rule used at
// the end of a round to pick the next item: the child with the highest
// Q/N, ties within bestChildTieFraction of the maximum broken uniformly
// at random. It logs a warning (not an error) if any root child was
// never visited, indicating an insufficient simulation budget.
func (p *Planner) BestChild() (item int, ok bool) {
	root := p.Tree.Root
	if len(root.Children) == 0 {
		return -1, false
	}

	bestScore := math.Inf(-1)
	anyUnvisited := false
	for _, c := range root.Children {
		if c.N == 0 {
			anyUnvisited = true
			continue
		}
		if score := c.Q / float64(c.N); score > bestScore {
			bestScore = score
		}
	}
	if anyUnvisited {
		klog.Warningf("planner: root has unvisited children after search round, increase simulation budget")
	}

	var candidates []*arena.Node
	for _, c := range root.Children {
		if c.N == 0 {
			continue
		}
		if score := c.Q / float64(c.N); score >= bestChildTieFraction*bestScore {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		// All root children unvisited: nothing to rank by Q/N, fall back
		// to the first expanded candidate.
		return root.Children[0].Item, true
	}
	chosen := candidates[p.rng.Intn(len(candidates))]
	return chosen.Item, true
}
