package arena

import "github.com/bnclabs/memfit/api"

// Purge drains the dirty-chunks tree down to target/2 pages (all=true
// forces target=1, i.e. purge everything) per spec §4.E.13: the
// most-recently-dirtied chunk is taken first and purged in full, one
// chunk at a time, until the threshold is met.
func (a *Arena) Purge(all bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.purge(all)
}

func (a *Arena) purge(all bool) {
	target := a.maxDirty
	if all {
		target = 1
	}
	for a.numDirty > target/2 {
		item, found := a.dirtyChunks.Max()
		if !found {
			return
		}
		a.purgeChunk(item.(dirtyKey).chunk)
	}
}

// purgeChunk converts every dirty page in c to decommitted (decommit
// strategy) or madvised (either madvise strategy), walking high to low
// and decommitting/madvising each maximal contiguous dirty run in one
// VM call.
func (a *Arena) purgeChunk(c *chunk) {
	bodyStart := a.cfg.HeaderPages
	numPages := int64(len(c.pages))
	decommitStrategy := a.strategy == api.StrategyDecommit
	forceZero := a.strategy == api.StrategyMadviseDontneed

	p := numPages - 1
	for p >= bodyStart {
		if !c.pages[p].dirty {
			p--
			continue
		}
		q := p
		for q >= bodyStart && c.pages[q].dirty {
			q--
		}
		runStart, runPages := q+1, p-q
		addr, size := c.pageAddr(runStart), runPages*a.cfg.PageSize

		if decommitStrategy {
			a.vm.Decommit(addr, size)
			for i := runStart; i <= p; i++ {
				c.pages[i].dirty, c.pages[i].decommitted = false, true
			}
		} else {
			zeroed := a.vm.Purge(addr, size, forceZero)
			for i := runStart; i <= p; i++ {
				c.pages[i].dirty, c.pages[i].madvised, c.pages[i].zeroed = false, true, zeroed
			}
		}

		c.numDirty -= runPages
		a.numDirty -= runPages
		p = q
	}

	a.dirtyChunks.Delete(dirtyKey{c})
	if a.doublePurge {
		a.madvisedChunks = append([]*chunk{c}, a.madvisedChunks...)
	}
}

// HardPurge converts every madvised page on the arena's madvised-chunk
// list to decommitted via an explicit decommit+commit pair, and empties
// the list (spec §4.E.14; only meaningful under the madvise-free
// strategy, where Purge's hint may not actually have reclaimed pages).
func (a *Arena) HardPurge() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.doublePurge {
		return
	}

	for _, c := range a.madvisedChunks {
		numPages := int64(len(c.pages))
		p := a.cfg.HeaderPages
		for p < numPages {
			if !c.pages[p].madvised {
				p++
				continue
			}
			q := p
			for q < numPages && c.pages[q].madvised {
				q++
			}
			addr, size := c.pageAddr(p), (q-p)*a.cfg.PageSize
			a.vm.Decommit(addr, size)
			a.vm.Commit(addr, size)
			for i := p; i < q; i++ {
				c.pages[i].madvised, c.pages[i].decommitted = false, true
			}
			p = q
		}
	}
	a.madvisedChunks = a.madvisedChunks[:0]
}
