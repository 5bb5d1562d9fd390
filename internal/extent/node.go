package extent

import "github.com/bnclabs/memfit/internal/rbtree"

// Node describes one address range: a cached chunk awaiting reuse, or
// (reused by internal/huge) a live huge allocation's bookkeeping entry.
type Node struct {
	Base   uintptr
	Size   int64
	Zeroed bool
}

// szKey orders Nodes by (size, addr) — the chunk cache's best-fit tree.
type szKey struct{ *Node }

func (a szKey) Less(other rbtree.Item) bool {
	b := other.(szKey)
	if a.Size != b.Size {
		return a.Size < b.Size
	}
	return a.Base < b.Base
}

// adKey orders Nodes by addr alone — the chunk cache's coalescing tree,
// and the huge registry's sole tree.
type adKey struct{ *Node }

func (a adKey) Less(other rbtree.Item) bool {
	return a.Base < other.(adKey).Base
}
