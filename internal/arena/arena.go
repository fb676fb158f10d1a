// Package arena implements a bump-allocated pool of tree nodes, sized in
// blocks of MaxBranching, reset in place between elicitation rounds so a
// planner's backing memory is retained and reused for its whole lifetime.
package arena

import "github.com/dilina/nymelicit/internal/mixture"

// MaxBranching caps the number of children a single node may have, and
// doubles as the arena's block size: memory is traded for allocation
// speed by preallocating a full block whenever the previous one is
// exhausted.
const MaxBranching = mixture.MaxNumItems

// Node is a single MCTS tree node: an item label (-1 for the root), the
// visit count N, the accumulated return Q, and its ordered children.
type Node struct {
	Item     int
	N        int
	Q        float64
	Children []*Node
}

// Arena is a bump allocator for Node. Not safe for concurrent use; each
// planner/worker owns its own Arena.
type Arena struct {
	blocks []*[MaxBranching]Node
	block  int // index of the block currently being filled
	pos    int // next free slot within blocks[block]

	allocated, reused int
}

// New creates an empty Arena. The first block is allocated lazily by the
// first call to Alloc.
func New() *Arena {
	return &Arena{block: -1}
}

// Alloc returns a fresh zero-valued Node, allocating a new block when the
// current one is exhausted.
func (a *Arena) Alloc() *Node {
	if a.block < 0 || a.pos == MaxBranching {
		a.block++
		a.pos = 0
		if a.block == len(a.blocks) {
			a.blocks = append(a.blocks, new([MaxBranching]Node))
			a.allocated += MaxBranching
		} else {
			a.reused += MaxBranching
		}
	}
	n := &a.blocks[a.block][a.pos]
	a.pos++
	*n = Node{}
	return n
}

// Reset rewinds the bump pointer to the start without freeing any
// backing blocks, so a subsequent Alloc call returns addresses within
// previously allocated blocks on the common path.
func (a *Arena) Reset() {
	a.block = -1
	a.pos = 0
}

// Stats reports the cumulative number of nodes newly allocated versus
// reused from retained blocks, useful for diagnosing arena growth.
func (a *Arena) Stats() (allocated, reused int) {
	return a.allocated, a.reused
}
