package arena

import (
	"unsafe"

	"github.com/bnclabs/memfit/api"
	"github.com/bnclabs/memfit/lib"
	"github.com/bnclabs/memfit/sizeclass"
)

// Realloc resizes ptr, a live allocation on this arena, per spec §4.E.11:
// small requests stay in place when the new size maps to the same bin;
// large requests stay in place on shrink (trim_run_tail) or grow into a
// following free run when one is big enough; everything else falls back
// to allocate-copy-free.
func (a *Arena) Realloc(ptr uintptr, newSize int64, zero bool) (uintptr, int64, bool) {
	a.mu.Lock()
	zero = zero || a.debugZero

	chunkBase := ptr &^ (uintptr(a.cfg.ChunkSize) - 1)
	c, ok := a.chunks[chunkBase]
	if !ok {
		a.mu.Unlock()
		return 0, 0, false
	}
	idx := c.pageIndex(ptr)
	entry := c.pages[idx]

	switch entry.state {
	case pageAllocatedSmall:
		r := entry.run
		oldSize := r.layout.RegionSize
		newTier, newIdx := a.classes.Classify(newSize)
		if newTier != sizeclass.Large && newTier != sizeclass.Huge && a.bins[newIdx] == r.bin {
			switch {
			case newSize < oldSize && a.debugJunk:
				lib.Memset(unsafe.Pointer(ptr+uintptr(newSize)), 0xe5, int(oldSize-newSize))
			case newSize > oldSize && zero:
				lib.Memclr(unsafe.Pointer(ptr+uintptr(oldSize)), int(newSize-oldSize))
			}
			a.mu.Unlock()
			return ptr, oldSize, true
		}
		a.mu.Unlock()
		return a.reallocCopy(ptr, oldSize, newSize, zero)

	case pageAllocatedLarge:
		r := entry.run
		oldSize := r.sizePages * a.cfg.PageSize
		newPages := lib.CeilMultiple(newSize, a.cfg.PageSize) / a.cfg.PageSize

		switch {
		case newPages == r.sizePages:
			if a.debugJunk && newSize < oldSize {
				lib.Memset(unsafe.Pointer(ptr+uintptr(newSize)), 0xe5, int(oldSize-newSize))
			}
			a.mu.Unlock()
			return ptr, oldSize, true

		case newPages < r.sizePages:
			a.trimRunTail(r, newPages)
			usable := r.sizePages * a.cfg.PageSize
			if a.debugJunk {
				lib.Memset(unsafe.Pointer(ptr+uintptr(newSize)), 0xe5, int(usable-newSize))
			}
			a.allocatedLarge -= oldSize - usable
			a.mu.Unlock()
			return ptr, usable, true

		default:
			if a.extendRunInPlace(c, r, newPages, zero) {
				usable := r.sizePages * a.cfg.PageSize
				a.allocatedLarge += usable - oldSize
				a.mu.Unlock()
				return ptr, usable, true
			}
			a.mu.Unlock()
			return a.reallocCopy(ptr, oldSize, newSize, zero)
		}
	}

	a.mu.Unlock()
	return 0, 0, false
}

func (a *Arena) reallocCopy(oldPtr uintptr, oldSize, newSize int64, zero bool) (uintptr, int64, bool) {
	newAddr, usable, ok := a.Malloc(newSize, false)
	if !ok {
		return 0, 0, false
	}
	copySize := lib.MinInt64(oldSize, newSize)
	lib.Memcpy(unsafe.Pointer(newAddr), unsafe.Pointer(oldPtr), int(copySize))
	if zero && usable > copySize {
		lib.Memclr(unsafe.Pointer(newAddr+uintptr(copySize)), int(usable-copySize))
	}
	a.Free(oldPtr)
	return newAddr, usable, true
}

// trimRunTail shrinks r to newPages, handing the freed tail back to the
// available-run tree as dirty (spec §4.E.11's large in-place shrink).
// Caller holds a.mu.
func (a *Arena) trimRunTail(r *run, newPages int64) {
	c := r.chunk
	oldPages := r.sizePages
	trimmed := oldPages - newPages
	tailInd := r.pageIndex + newPages

	r.sizePages = newPages
	c.pages[r.pageIndex].runPages, c.pages[r.pageIndex].run = newPages, r
	last := r.pageIndex + newPages - 1
	c.pages[last].runPages, c.pages[last].run = newPages, r

	tailRun := &run{chunk: c, pageIndex: tailInd, sizePages: trimmed}
	for p := tailInd; p < tailInd+trimmed; p++ {
		c.pages[p] = pageEntry{state: pageFree, dirty: true}
	}
	markFreeRunBoundary(c, tailRun)
	a.touchDirty(c, trimmed)

	if nextInd := tailInd + trimmed; nextInd < int64(len(c.pages)) && c.pages[nextInd].state == pageFree {
		next := c.pages[nextInd].run
		a.availRuns.Delete(avKey{next})
		tailRun.sizePages += next.sizePages
		markFreeRunBoundary(c, tailRun)
	}

	a.availRuns.Upsert(avKey{tailRun})
}

// trimRunHead shifts r forward by headPages, handing the leading pages
// back to the available-run tree as dirty (spec §4.E.12's palloc).
// Caller holds a.mu.
func (a *Arena) trimRunHead(r *run, headPages int64) {
	c := r.chunk
	headInd := r.pageIndex
	newInd := headInd + headPages
	newSize := r.sizePages - headPages

	headRun := &run{chunk: c, pageIndex: headInd, sizePages: headPages}
	for p := headInd; p < newInd; p++ {
		c.pages[p] = pageEntry{state: pageFree, dirty: true}
	}
	markFreeRunBoundary(c, headRun)
	a.touchDirty(c, headPages)

	if headInd > a.cfg.HeaderPages && c.pages[headInd-1].state == pageFree {
		prev := c.pages[headInd-1].run
		a.availRuns.Delete(avKey{prev})
		headRun.pageIndex = prev.pageIndex
		headRun.sizePages += prev.sizePages
		markFreeRunBoundary(c, headRun)
	}
	a.availRuns.Upsert(avKey{headRun})

	r.pageIndex, r.sizePages = newInd, newSize
	c.pages[newInd].runPages, c.pages[newInd].run = newSize, r
	last := newInd + newSize - 1
	c.pages[last].runPages, c.pages[last].run = newSize, r
}

// extendRunInPlace grows r by newPages-r.sizePages if the immediately
// following pages in the same chunk are a free run with enough pages
// (spec §4.E.11's large in-place grow). Caller holds a.mu.
func (a *Arena) extendRunInPlace(c *chunk, r *run, newPages int64, zero bool) bool {
	nextInd := r.pageIndex + r.sizePages
	needed := newPages - r.sizePages
	if nextInd >= int64(len(c.pages)) || c.pages[nextInd].state != pageFree {
		return false
	}
	next := c.pages[nextInd].run
	if next.sizePages < needed {
		return false
	}

	a.availRuns.Delete(avKey{next})
	if next.sizePages > needed {
		remInd := nextInd + needed
		remRun := &run{chunk: c, pageIndex: remInd, sizePages: next.sizePages - needed}
		markFreeRunBoundary(c, remRun)
		a.availRuns.Upsert(avKey{remRun})
	}

	decommitStrategy := a.strategy == api.StrategyDecommit
	for p := nextInd; p < nextInd+needed; p++ {
		entry := &c.pages[p]
		if entry.dirty {
			entry.dirty = false
			c.numDirty--
			a.numDirty--
		}
		if entry.decommitted {
			a.vm.Commit(c.pageAddr(p), a.cfg.PageSize)
		}
		effectiveZeroed := entry.zeroed || (entry.decommitted && decommitStrategy)
		*entry = pageEntry{state: pageAllocatedLarge}
		switch {
		case zero && !effectiveZeroed:
			lib.Memclr(unsafe.Pointer(c.pageAddr(p)), int(a.cfg.PageSize))
		case zero && a.debugJunk:
			ensureZero(c.pageAddr(p), a.cfg.PageSize)
		case a.debugJunk && !zero:
			lib.Memset(unsafe.Pointer(c.pageAddr(p)), 0xe4, int(a.cfg.PageSize))
		}
	}

	r.sizePages = newPages
	c.pages[r.pageIndex].runPages = newPages
	last := r.pageIndex + newPages - 1
	c.pages[last].runPages, c.pages[last].run = newPages, r

	if c.numDirty == 0 {
		a.dirtyChunks.Delete(dirtyKey{c})
	}
	return true
}

// Palloc services an aligned allocation (spec §4.E.12). Callers already
// filtered out alignment > chunksize (the huge registry's custom-aligned
// map handles that tier).
func (a *Arena) Palloc(size, align int64, zero bool) (uintptr, int64, bool) {
	if align <= a.cfg.PageSize {
		return a.Malloc(lib.CeilMultiple(size, align), zero)
	}

	a.mu.Lock()
	zero = zero || a.debugZero

	overSize := lib.CeilMultiple(size+align-a.cfg.PageSize, a.cfg.PageSize)
	r := a.allocRun(overSize, true, zero)
	if r == nil {
		a.mu.Unlock()
		return 0, 0, false
	}

	base := r.base()
	alignedBase := (base + uintptr(align) - 1) &^ (uintptr(align) - 1)
	if headBytes := alignedBase - base; headBytes != 0 {
		a.trimRunHead(r, int64(headBytes)/a.cfg.PageSize)
	}

	needed := lib.CeilMultiple(size, a.cfg.PageSize) / a.cfg.PageSize
	if r.sizePages > needed {
		a.trimRunTail(r, needed)
	}

	a.allocatedLarge += r.sizePages * a.cfg.PageSize
	addr, usable := r.base(), r.sizePages*a.cfg.PageSize
	a.mu.Unlock()
	return addr, usable, true
}
