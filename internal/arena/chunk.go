package arena

import (
	"unsafe"

	"github.com/bnclabs/memfit/api"
	"github.com/bnclabs/memfit/lib"
)

// chunk is one arena-owned chunksize mapping: a header (never handed out
// as a run) followed by a body tracked page-by-page in pages.
type chunk struct {
	arena   *Arena
	base    uintptr
	pages   []pageEntry
	pageLog int64

	numDirty int64
	dirtySeq int64 // set whenever a page in this chunk becomes dirty; orders dirtyChunks
}

// newChunk mints a fresh arena chunk, preferring the shared chunk cache
// over a new OS mapping, and installs its single header-excluded free
// run (spec §4.E.6).
func newChunk(a *Arena) *chunk {
	chunkSize := a.cfg.ChunkSize
	base, zeroed, fromCache := a.cache.Alloc(chunkSize, chunkSize)
	if !fromCache {
		mapped, ok := a.vm.Map(chunkSize, chunkSize)
		if !ok {
			return nil
		}
		if !a.vm.Commit(mapped, chunkSize) {
			a.vm.Unmap(mapped, chunkSize)
			return nil
		}
		base, zeroed = mapped, true
	}

	numPages := chunkSize / a.cfg.PageSize
	c := &chunk{
		arena:   a,
		base:    base,
		pages:   make([]pageEntry, numPages),
		pageLog: int64(lib.Log2(a.cfg.PageSize)),
	}

	bodyStart := a.cfg.HeaderPages
	bodyPages := numPages - bodyStart
	decommitStrategy := a.strategy == api.StrategyDecommit

	for i := bodyStart; i < numPages; i++ {
		c.pages[i] = pageEntry{state: pageFree, zeroed: zeroed}
		switch {
		case decommitStrategy:
			c.pages[i].decommitted = true
		case fromCache && !zeroed:
			c.pages[i].madvised = true
		}
	}

	if decommitStrategy {
		a.vm.Decommit(c.pageAddr(bodyStart), bodyPages*a.cfg.PageSize)
	}

	bodyRun := &run{chunk: c, pageIndex: bodyStart, sizePages: bodyPages}
	c.pages[bodyStart].runPages, c.pages[bodyStart].run = bodyPages, bodyRun
	c.pages[numPages-1].runPages, c.pages[numPages-1].run = bodyPages, bodyRun
	a.availRuns.Upsert(avKey{bodyRun})

	return c
}

// deallocChunk retires c once its body has coalesced back into a single
// free run spanning every non-header page (spec §4.E.10): c becomes the
// new spare, evicting and recycling whatever chunk was previously spare.
func (a *Arena) deallocChunk(c *chunk) {
	bodyStart := a.cfg.HeaderPages
	bodyRun := c.pages[bodyStart].run
	a.availRuns.Delete(avKey{bodyRun})

	if a.spare != nil {
		old := a.spare
		if old.numDirty > 0 {
			a.dirtyChunks.Delete(dirtyKey{old})
			a.numDirty -= old.numDirty
		}
		delete(a.chunks, old.base)
		a.owner.Unset(old.base)
		a.cache.Record(old.base, a.cfg.ChunkSize, false)
	}
	a.spare = c
}

// ensureZero double-checks a region this arena is about to hand out
// without a memclr because some page-state bit already claims it reads
// as zero (a decommitted page, or one recorded zeroed at map time).
// Only called under debugJunk, since it defeats the very purpose of
// trusting the zeroed bit on the hot path.
func ensureZero(addr uintptr, size int64) {
	buf := unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))
	for i, b := range buf {
		if b != 0 {
			api.Corrupt("memfit: region at %#x claimed zeroed but byte %v is %#x", addr, i, b)
		}
	}
}
