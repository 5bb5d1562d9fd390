package arena

import (
	"github.com/bnclabs/memfit/internal/rbtree"
	"github.com/bnclabs/memfit/sizeclass"
)

// bin serves one fixed region size (spec §4.E.1/.2): a current run
// (runcur) satisfies allocations until full, then a non-full-run tree
// (ordered by address, so the lowest-addressed run is reused first) is
// consulted before minting a fresh run.
type bin struct {
	tier    sizeclass.Tier
	layout  sizeclass.RunLayout
	runcur  *run
	nonfull rbtree.Tree
}

// getNonFullRun returns a run with at least one free region, allocating
// a fresh one via allocRun if the bin has no cached non-full run (spec
// §4.E.2's get_non_full_bin_run).
func (a *Arena) getNonFullRun(b *bin) *run {
	if item, ok := b.nonfull.DeleteMin(); ok {
		return item.(runAddrKey).run
	}
	r := a.allocRun(b.layout.RunSize, false, false)
	if r == nil {
		return nil
	}
	r.bin = b
	r.layout = b.layout
	r.initMask()
	return r
}
