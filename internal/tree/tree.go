// Package tree holds the MCTS tree topology: a root backed by a
// NodeArena, rebuilt from scratch every elicitation round.
package tree

import "github.com/dilina/nymelicit/internal/arena"

// Tree is the per-round search tree: a root node plus the arena backing
// every node reachable from it.
type Tree struct {
	Arena *arena.Arena
	Root  *arena.Node
}

// New creates an empty Tree. Call Reset before the first round.
func New() *Tree {
	return &Tree{Arena: arena.New()}
}

// Reset rewinds the arena and installs a fresh root with Item=-1, N=0,
// Q=0 and no children.
func (t *Tree) Reset() {
	t.Arena.Reset()
	t.Root = t.Arena.Alloc()
	t.Root.Item = -1
}

// PathItems returns the item labels along a root-to-leaf path, in order,
// excluding the root's sentinel Item=-1.
func PathItems(path []*arena.Node) []int {
	items := make([]int, 0, len(path))
	for _, n := range path {
		if n.Item >= 0 {
			items = append(items, n.Item)
		}
	}
	return items
}
