package huge

import (
	"sync"
	"unsafe"

	"github.com/bnclabs/memfit/api"
	"github.com/bnclabs/memfit/internal/base"
	"github.com/bnclabs/memfit/internal/extent"
	"github.com/bnclabs/memfit/internal/rbtree"
	"github.com/bnclabs/memfit/lib"
)

// addrKey orders extent.Nodes by base address — the registry's sole tree.
type addrKey struct{ *extent.Node }

func (a addrKey) Less(other rbtree.Item) bool {
	return a.Base < other.(addrKey).Base
}

// Stats mirrors the nmalloc/allocated/mapped counters spec.md §4.F asks
// the huge registry to maintain, read out for the admin/stats surface.
type Stats struct {
	NMalloc   int64
	Allocated int64 // sum of psize across live entries: what callers were told
	Mapped    int64 // sum of csize across live entries: what's actually reserved
}

// Registry is the address-ordered tree of huge extents.
type Registry struct {
	mu   sync.Mutex
	tree rbtree.Tree

	vm        api.VM
	cache     *extent.ChunkCache
	nodes     *base.Allocator
	chunkSize int64
	pageSize  int64
	decommit  bool

	stats Stats
}

// New returns an empty Registry. decommit selects whether the tail
// [psize, csize) of each huge mapping is decommitted rather than left
// committed but unused — only meaningful when vmImpl's purge strategy is
// decommit-based; callers pass that choice in explicitly since Registry
// has no way to introspect the shim's configured strategy.
func New(vmImpl api.VM, cache *extent.ChunkCache, chunkSize, pageSize int64, decommit bool) *Registry {
	nodes := base.New(vmImpl, int64(unsafe.Sizeof(extent.Node{})), pageSize)
	return &Registry{
		vm:        vmImpl,
		cache:     cache,
		nodes:     nodes,
		chunkSize: chunkSize,
		pageSize:  pageSize,
		decommit:  decommit,
	}
}

// Stats returns a snapshot of the registry's counters.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Alloc reserves a new huge extent of at least size bytes, chunk-aligned
// unless align asks for something coarser. psize (the size malloc_usable_size
// will report) is the page-ceiling of size; the mapping itself is the
// chunk-ceiling, csize >= psize, with the difference optionally decommitted.
func (r *Registry) Alloc(size, align int64, zero bool) (addr uintptr, usable int64, ok bool) {
	if align < r.chunkSize {
		align = r.chunkSize
	}
	csize := lib.CeilMultiple(size, r.chunkSize)
	psize := lib.CeilMultiple(size, r.pageSize)

	addr, zeroed, fromCache := r.cache.Alloc(csize, align)
	if !fromCache {
		mapped, mapOk := r.vm.Map(csize, align)
		if !mapOk {
			return 0, 0, false
		}
		if !r.vm.Commit(mapped, csize) {
			r.vm.Unmap(mapped, csize)
			return 0, 0, false
		}
		addr, zeroed = mapped, false
	}

	if r.decommit && csize > psize {
		r.vm.Decommit(addr+uintptr(psize), csize-psize)
	}
	if zero && !zeroed {
		lib.Memclr(unsafe.Pointer(addr), int(psize))
	}

	nd := (*extent.Node)(r.nodes.Alloc())
	nd.Base, nd.Size, nd.Zeroed = addr, psize, zero || zeroed

	r.mu.Lock()
	r.tree.Upsert(addrKey{nd})
	r.stats.NMalloc++
	r.stats.Allocated += psize
	r.stats.Mapped += csize
	r.mu.Unlock()

	return addr, psize, true
}

// Free removes addr from the registry and hands its chunk-ceiling mapping
// to the chunk cache for possible recycling, returning the recorded size.
func (r *Registry) Free(addr uintptr) (size int64, ok bool) {
	r.mu.Lock()
	item, found := r.tree.Delete(addrKey{&extent.Node{Base: addr}})
	if !found {
		r.mu.Unlock()
		return 0, false
	}
	nd := item.(addrKey).Node
	psize := nd.Size
	csize := lib.CeilMultiple(psize, r.chunkSize)
	r.stats.Allocated -= psize
	r.stats.Mapped -= csize
	r.mu.Unlock()

	// The tail beyond psize may already be decommitted; Record re-purges
	// the whole csize range so the cache's zeroed bit reflects reality.
	r.cache.Record(addr, csize, false)
	r.nodes.Free(unsafe.Pointer(nd))
	return psize, true
}

// Realloc resizes the huge extent at addr to newSize, in place whenever the
// new size still fits within the already-mapped chunk-ceiling range
// (covers both same-class resizes and pure shrinks, which never need to
// move since the existing mapping already covers the smaller size) and
// falling back to allocate+copy+free only when the request grows past the
// current mapping's chunk-ceiling.
//
// Generalizes mozjemalloc's huge_ralloc, whose fast path fires only when
// chunk_ceiling(new) == chunk_ceiling(old): that rule alone cannot satisfy
// a shrink that crosses a chunk-ceiling boundary in place, so shrinks take
// the in-place path unconditionally, trimming the now-excess tail chunks
// back to the chunk cache instead of moving the live data.
func (r *Registry) Realloc(addr uintptr, newSize int64, zero bool) (newAddr uintptr, usable int64, ok bool) {
	r.mu.Lock()
	item, found := r.tree.Get(addrKey{&extent.Node{Base: addr}})
	if !found {
		r.mu.Unlock()
		return 0, 0, false
	}
	nd := item.(addrKey).Node
	oldPsize := nd.Size
	r.mu.Unlock()

	oldCsize := lib.CeilMultiple(oldPsize, r.chunkSize)
	newCsize := lib.CeilMultiple(newSize, r.chunkSize)
	newPsize := lib.CeilMultiple(newSize, r.pageSize)

	if newCsize <= oldCsize {
		if r.decommit {
			switch {
			case newPsize < oldPsize:
				r.vm.Decommit(addr+uintptr(newPsize), oldPsize-newPsize)
			case newPsize > oldPsize:
				r.vm.Commit(addr+uintptr(oldPsize), newPsize-oldPsize)
				if zero {
					lib.Memclr(unsafe.Pointer(addr+uintptr(oldPsize)), int(newPsize-oldPsize))
				}
			}
		} else if zero && newPsize > oldPsize {
			lib.Memclr(unsafe.Pointer(addr+uintptr(oldPsize)), int(newPsize-oldPsize))
		}

		r.mu.Lock()
		r.stats.Allocated += newPsize - oldPsize
		r.stats.Mapped -= oldCsize - newCsize
		nd.Size = newPsize
		r.mu.Unlock()

		if newCsize < oldCsize {
			r.cache.Record(addr+uintptr(newCsize), oldCsize-newCsize, false)
		}
		return addr, newPsize, true
	}

	newAddr, usable, ok = r.Alloc(newSize, r.chunkSize, false)
	if !ok {
		return 0, 0, false
	}
	copySize := lib.MinInt64(oldPsize, usable)
	lib.Memcpy(unsafe.Pointer(newAddr), unsafe.Pointer(addr), int(copySize))
	r.Free(addr)
	return newAddr, usable, true
}

// PtrInfo classifies addr for the admin surface (spec testable property
// 2, §6 ptr_info) without mutating the registry.
func (r *Registry) PtrInfo(addr uintptr) (api.PtrInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, found := r.tree.Get(addrKey{&extent.Node{Base: addr}})
	if !found {
		return api.PtrInfo{}, false
	}
	nd := item.(addrKey).Node
	return api.PtrInfo{Tag: api.TagLiveHuge, Base: nd.Base, Size: nd.Size}, true
}

// Len reports the number of live huge allocations.
func (r *Registry) Len() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tree.Len()
}
