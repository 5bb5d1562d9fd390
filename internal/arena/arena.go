package arena

import (
	"sync"
	"unsafe"

	"github.com/bnclabs/memfit/api"
	"github.com/bnclabs/memfit/internal/extent"
	"github.com/bnclabs/memfit/internal/owner"
	"github.com/bnclabs/memfit/internal/rbtree"
	"github.com/bnclabs/memfit/lib"
	"github.com/bnclabs/memfit/sizeclass"
)

// ChunkOwner is the value every chunk this arena owns registers into the
// shared owner radix tree (spec §4.C). One instance is shared by every
// chunk the arena ever acquires — Free(ptr) only needs to know *which
// arena* owns an address; the arena re-derives the specific chunk from
// its own chunks map. It stays reachable for as long as the Arena does,
// so the otherwise GC-invisible pointer stored in the owner tree's
// VM-backed nodes never outlives its referent.
type ChunkOwner struct {
	Arena *Arena
}

// Arena is one independent allocation domain (spec §4.E): its own bins,
// available-run tree, dirty-chunk tree, and at most one spare chunk.
// Every method takes Arena's own lock; arenas never share locks with
// each other or with the process-wide chunk cache/owner index/huge
// registry, which serialize internally.
type Arena struct {
	mu sync.Mutex

	id      int64
	cfg     sizeclass.Config
	classes *sizeclass.Classes

	vm       api.VM
	cache    *extent.ChunkCache
	owner    *owner.Tree
	ownerRec *ChunkOwner

	bins        []*bin
	availRuns   rbtree.Tree
	dirtyChunks rbtree.Tree
	chunks      map[uintptr]*chunk
	spare       *chunk

	numDirty        int64
	maxDirty        int64
	dirtySeqCounter int64
	strategy        api.Strategy
	debugJunk       bool
	debugZero       bool

	doublePurge    bool
	madvisedChunks []*chunk

	nmallocSmall, nmallocLarge     int64
	allocatedSmall, allocatedLarge int64
}

// New builds an empty arena. maxDirty bounds the number of dirty pages
// (across every chunk) tolerated before dallocRun triggers purge(false).
func New(id int64, cfg sizeclass.Config, vmImpl api.VM, cache *extent.ChunkCache, ownerIdx *owner.Tree, strategy api.Strategy, maxDirty int64) *Arena {
	classes := sizeclass.NewClasses(cfg)
	a := &Arena{
		id: id, cfg: cfg, classes: classes,
		vm: vmImpl, cache: cache, owner: ownerIdx,
		chunks:      make(map[uintptr]*chunk),
		strategy:    strategy,
		maxDirty:    maxDirty,
		doublePurge: strategy == api.StrategyMadviseFree,
	}
	a.ownerRec = &ChunkOwner{Arena: a}
	a.bins = make([]*bin, classes.NumBins())
	for i := 0; i < classes.NumBins(); i++ {
		tier := classes.BinTier(i)
		layout := cfg.NewRunLayout(classes.BinSize(i), tier == sizeclass.Tiny)
		a.bins[i] = &bin{tier: tier, layout: layout}
	}
	return a
}

// SetDebugJunk toggles junk-fill on alloc (0xe4) and poison-fill on free
// (0xe5) — spec §9's debug poisoning, off by default and never observed
// by the zeroing tests since it only ever touches bytes beyond what
// zero-fill already covers.
func (a *Arena) SetDebugJunk(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.debugJunk = on
}

// SetDebugZero toggles spec.md §6's opt_zero: when on, every allocation
// is zero-filled regardless of the caller's own zero request.
func (a *Arena) SetDebugZero(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.debugZero = on
}

// Classes exposes the arena's size-class ladder, shared read-only with
// the facade for good_size/classify queries.
func (a *Arena) Classes() *sizeclass.Classes { return a.classes }

// Malloc serves a small or large request; huge requests (tier ==
// sizeclass.Huge) are rejected with ok=false since huge allocations
// bypass arenas entirely (internal/huge.Registry).
func (a *Arena) Malloc(size int64, zero bool) (addr uintptr, usable int64, ok bool) {
	zero = zero || a.debugZero
	tier, idx := a.classes.Classify(size)
	switch tier {
	case sizeclass.Tiny, sizeclass.Quantum, sizeclass.Subpage:
		return a.mallocSmall(idx, zero)
	case sizeclass.Large:
		return a.mallocLarge(lib.CeilMultiple(size, a.cfg.PageSize), zero)
	default:
		return 0, 0, false
	}
}

func (a *Arena) mallocSmall(binIdx int, zero bool) (uintptr, int64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b := a.bins[binIdx]
	r := b.runcur
	if r == nil || r.full() {
		r = a.getNonFullRun(b)
		if r == nil {
			return 0, 0, false
		}
		b.runcur = r
	}

	addr := r.allocRegion()
	if r.full() {
		b.runcur = nil
	}

	a.nmallocSmall++
	a.allocatedSmall += b.layout.RegionSize
	a.fillRegion(addr, b.layout.RegionSize, zero)
	return addr, b.layout.RegionSize, true
}

func (a *Arena) mallocLarge(size int64, zero bool) (uintptr, int64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	r := a.allocRun(size, true, zero)
	if r == nil {
		return 0, 0, false
	}
	a.nmallocLarge++
	a.allocatedLarge += size
	return r.base(), size, true
}

func (a *Arena) fillRegion(addr uintptr, size int64, zero bool) {
	if zero {
		lib.Memclr(unsafe.Pointer(addr), int(size))
	} else if a.debugJunk {
		lib.Memset(unsafe.Pointer(addr), 0xe4, int(size))
	}
}

// allocRun finds or creates a free run of at least size bytes (spec
// §4.E.4): best-fit in the available-run tree, else the spare chunk,
// else a freshly minted chunk, then splitRun carves off exactly what
// was asked for.
func (a *Arena) allocRun(size int64, large, zero bool) *run {
	neededPages := size / a.cfg.PageSize

	sentinel := avKey{&run{chunk: &chunk{}, sizePages: neededPages}}
	if item, found := a.availRuns.Ceil(sentinel); found {
		return a.splitRun(item.(avKey).run, neededPages, large, zero)
	}

	var c *chunk
	if a.spare != nil {
		c, a.spare = a.spare, nil
	} else {
		c = newChunk(a)
		if c == nil {
			return nil
		}
		a.chunks[c.base] = c
		a.owner.Set(c.base, unsafe.Pointer(a.ownerRec))
	}

	bodyRun := c.pages[a.cfg.HeaderPages].run
	return a.splitRun(bodyRun, neededPages, large, zero)
}

// splitRun carves neededPages out of candidate, reinserting any
// trailing remainder and committing/zero-filling the carved pages as
// their prior state requires (spec §4.E.5).
func (a *Arena) splitRun(candidate *run, neededPages int64, large, zero bool) *run {
	c := candidate.chunk
	runInd, totalPages := candidate.pageIndex, candidate.sizePages

	a.availRuns.Delete(avKey{candidate})

	if totalPages > neededPages {
		trailInd, trailPages := runInd+neededPages, totalPages-neededPages
		trailRun := &run{chunk: c, pageIndex: trailInd, sizePages: trailPages}
		markFreeRunBoundary(c, trailRun)
		a.availRuns.Upsert(avKey{trailRun})
	}

	allocated := &run{chunk: c, pageIndex: runInd, sizePages: neededPages}

	for p := runInd; p < runInd+neededPages; {
		decommitted, madvised := c.pages[p].decommitted, c.pages[p].madvised
		q := p
		for q < runInd+neededPages && c.pages[q].decommitted == decommitted && c.pages[q].madvised == madvised {
			q++
		}
		if decommitted {
			a.vm.Commit(c.pageAddr(p), (q-p)*a.cfg.PageSize)
		}
		p = q
	}

	decommitStrategy := a.strategy == api.StrategyDecommit
	for p := runInd; p < runInd+neededPages; p++ {
		entry := &c.pages[p]
		if entry.dirty {
			entry.dirty = false
			c.numDirty--
			a.numDirty--
		}
		effectiveZeroed := entry.zeroed || (entry.decommitted && decommitStrategy)
		*entry = pageEntry{}
		if large {
			entry.state = pageAllocatedLarge
		} else {
			entry.state = pageAllocatedSmall
		}
		switch {
		case zero && !effectiveZeroed:
			lib.Memclr(unsafe.Pointer(c.pageAddr(p)), int(a.cfg.PageSize))
		case zero && a.debugJunk:
			ensureZero(c.pageAddr(p), a.cfg.PageSize)
		case a.debugJunk && !zero:
			lib.Memset(unsafe.Pointer(c.pageAddr(p)), 0xe4, int(a.cfg.PageSize))
		}
	}

	if large {
		c.pages[runInd].runPages, c.pages[runInd].run = neededPages, allocated
	} else {
		for p := runInd; p < runInd+neededPages; p++ {
			c.pages[p].run = allocated
		}
	}

	if c.numDirty == 0 {
		a.dirtyChunks.Delete(dirtyKey{c})
	}

	return allocated
}

func markFreeRunBoundary(c *chunk, r *run) {
	first, last := r.pageIndex, r.pageIndex+r.sizePages-1
	c.pages[first].runPages, c.pages[first].run = r.sizePages, r
	c.pages[last].runPages, c.pages[last].run = r.sizePages, r
}

// touchDirty repositions c in the dirty-chunks tree under a fresh
// sequence stamp so dirtyChunks.Max() always yields the
// most-recently-dirtied chunk (spec §4.E.13).
func (a *Arena) touchDirty(c *chunk, added int64) {
	if c.numDirty > 0 {
		a.dirtyChunks.Delete(dirtyKey{c})
	}
	c.numDirty += added
	a.numDirty += added
	a.dirtySeqCounter++
	c.dirtySeq = a.dirtySeqCounter
	a.dirtyChunks.Upsert(dirtyKey{c})
}

// dallocRun returns r's pages to free, coalescing with adjacent free
// runs and retiring the chunk if the merge spans the whole body (spec
// §4.E.9).
func (a *Arena) dallocRun(r *run, dirty bool) {
	c := r.chunk
	runInd, sizePages := r.pageIndex, r.sizePages

	for p := runInd; p < runInd+sizePages; p++ {
		c.pages[p] = pageEntry{state: pageFree, dirty: dirty}
	}
	r.pageIndex, r.sizePages = runInd, sizePages
	markFreeRunBoundary(c, r)
	if dirty {
		a.touchDirty(c, sizePages)
	}

	if nextInd := runInd + r.sizePages; nextInd < int64(len(c.pages)) && c.pages[nextInd].state == pageFree {
		next := c.pages[nextInd].run
		a.availRuns.Delete(avKey{next})
		r.sizePages += next.sizePages
		markFreeRunBoundary(c, r)
	}
	if runInd := r.pageIndex; runInd > a.cfg.HeaderPages && c.pages[runInd-1].state == pageFree {
		prev := c.pages[runInd-1].run
		a.availRuns.Delete(avKey{prev})
		r.pageIndex = prev.pageIndex
		r.sizePages += prev.sizePages
		markFreeRunBoundary(c, r)
	}

	a.availRuns.Upsert(avKey{r})

	bodyPages := (a.cfg.ChunkSize / a.cfg.PageSize) - a.cfg.HeaderPages
	if r.sizePages == bodyPages {
		a.deallocChunk(c)
		return
	}

	if a.numDirty > a.maxDirty {
		a.purge(false)
	}
}

func (a *Arena) dallocSmall(ptr uintptr, r *run) {
	b := r.bin
	if a.debugJunk {
		lib.Memset(unsafe.Pointer(ptr), 0xe5, int(b.layout.RegionSize))
	}
	r.freeRegion(ptr)
	a.allocatedSmall -= b.layout.RegionSize

	switch {
	case r.empty():
		if b.runcur == r {
			b.runcur = nil
		} else if !r.single() {
			b.nonfull.Delete(runAddrKey{r})
		}
		a.dallocRun(r, true)
	case r.nfree == 1:
		switch {
		case b.runcur == nil:
			b.runcur = r
		case r.base() < b.runcur.base():
			b.nonfull.Upsert(runAddrKey{b.runcur})
			b.runcur = r
		default:
			b.nonfull.Upsert(runAddrKey{r})
		}
	}
}

func (a *Arena) dallocLarge(c *chunk, ptr uintptr) {
	idx := c.pageIndex(ptr)
	r := c.pages[idx].run
	size := r.sizePages * a.cfg.PageSize
	if a.debugJunk {
		lib.Memset(unsafe.Pointer(ptr), 0xe5, int(size))
	}
	a.allocatedLarge -= size
	a.dallocRun(r, true)
}

// Free releases ptr, a pointer previously returned by Malloc on this
// arena. ok is false if ptr is not a live allocation this arena owns.
func (a *Arena) Free(ptr uintptr) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	chunkBase := ptr &^ (uintptr(a.cfg.ChunkSize) - 1)
	c, ok := a.chunks[chunkBase]
	if !ok {
		return false
	}
	idx := c.pageIndex(ptr)
	switch c.pages[idx].state {
	case pageAllocatedLarge:
		a.dallocLarge(c, ptr)
	case pageAllocatedSmall:
		a.dallocSmall(ptr, c.pages[idx].run)
	default:
		return false
	}
	return true
}

// PtrInfo classifies ptr for the admin surface (spec testable property
// 2, §6 ptr_info).
func (a *Arena) PtrInfo(ptr uintptr) (api.PtrInfo, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	chunkBase := ptr &^ (uintptr(a.cfg.ChunkSize) - 1)
	c, ok := a.chunks[chunkBase]
	if !ok {
		return api.PtrInfo{}, false
	}
	idx := c.pageIndex(ptr)
	entry := c.pages[idx]
	switch entry.state {
	case pageAllocatedLarge:
		r := entry.run
		return api.PtrInfo{Tag: api.TagLiveLarge, Base: r.base(), Size: r.sizePages * a.cfg.PageSize}, true
	case pageAllocatedSmall:
		r := entry.run
		return api.PtrInfo{Tag: api.TagLiveSmall, Base: ptr, Size: r.layout.RegionSize}, true
	}
	return api.PtrInfo{Tag: api.TagUnknown, Base: ptr}, true
}

// Snapshot reports this arena's contribution to the process-wide Stats.
func (a *Arena) Snapshot() api.Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return api.Stats{
		NArenas:        1,
		Mapped:         int64(len(a.chunks)) * a.cfg.ChunkSize,
		AllocatedSmall: a.allocatedSmall,
		AllocatedLarge: a.allocatedLarge,
		NumDirty:       a.numDirty,
		MaxDirty:       a.maxDirty,
	}
}
