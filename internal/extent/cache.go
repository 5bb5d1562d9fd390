package extent

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/bnclabs/memfit/api"
	"github.com/bnclabs/memfit/internal/base"
	"github.com/bnclabs/memfit/internal/rbtree"
)

// ChunkCache is the process-wide chunk-recycling cache. Its two trees
// share Node pointers; recycledBytes is the atomic count of cached bytes
// that ShouldRecycle compares against the recycle budget —
// spec.md §9's Open Question resolved by making every read of this
// field an acquire-load (see RecycledBytes) and every update (Record,
// Alloc) happen under the cache's own lock before being observed.
type ChunkCache struct {
	mu   sync.Mutex
	szad rbtree.Tree
	ad   rbtree.Tree

	vm    api.VM
	nodes *base.Allocator

	recycledBytes int64 // atomic; see RecycledBytes
	recycleLimit  int64
}

// New returns an empty ChunkCache. recycleLimit is the budget
// ShouldRecycle checks against; recycleLimit <= 0 means unbounded.
func New(vmImpl api.VM, nodeAlloc *base.Allocator, recycleLimit int64) *ChunkCache {
	return &ChunkCache{vm: vmImpl, nodes: nodeAlloc, recycleLimit: recycleLimit}
}

// RecycledBytes returns the current cache size with acquire semantics —
// safe to call without holding the cache's lock.
func (cc *ChunkCache) RecycledBytes() int64 {
	return atomic.LoadInt64(&cc.recycledBytes)
}

// ShouldRecycle reports whether a freed chunk of size bytes fits under
// the cache's recycle budget. Record does not consult it: every chunk
// handed to Record is cached whatever the budget, and the arena and huge
// registry call Record without checking ShouldRecycle first.
func (cc *ChunkCache) ShouldRecycle(size int64) bool {
	if cc.recycleLimit <= 0 {
		return true
	}
	return cc.RecycledBytes()+size <= cc.recycleLimit
}

// Alloc returns a region of at least size bytes whose base already
// satisfies align, trimming any leading and trailing excess of the
// donor entry back into the cache (spec §4.B's "best-fit by size, then
// trim leading/trailing misalignment"). ok is false on a cache miss —
// callers fall through to vm.Map, which has its own oversized-map-and-
// trim path for the no-cached-entry case.
//
// The szad tree orders candidates by (size, addr), so walking it in
// order and taking the first entry whose aligned sub-region still
// fits is a best-fit search: no smaller sufficient entry exists.
func (cc *ChunkCache) Alloc(size, align int64) (base uintptr, zeroed bool, ok bool) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	var nd *Node
	var alignedBase uintptr
	cc.szad.Walk(func(item rbtree.Item) bool {
		cand := item.(szKey).Node
		if cand.Size < size {
			return true
		}
		ab := (cand.Base + uintptr(align) - 1) &^ (uintptr(align) - 1)
		if int64(ab-cand.Base)+size > cand.Size {
			return true
		}
		nd, alignedBase = cand, ab
		return false
	})
	if nd == nil {
		return 0, false, false
	}
	cc.szad.Delete(szKey{nd})
	cc.ad.Delete(adKey{nd})

	base, zeroed = alignedBase, nd.Zeroed
	headSize := int64(alignedBase - nd.Base)
	trailSize := nd.Size - headSize - size

	switch {
	case headSize > 0 && trailSize > 0:
		nd.Size = headSize
		cc.szad.Upsert(szKey{nd})
		cc.ad.Upsert(adKey{nd})
		tail := (*Node)(cc.nodes.Alloc())
		tail.Base, tail.Size, tail.Zeroed = alignedBase+uintptr(size), trailSize, nd.Zeroed
		cc.szad.Upsert(szKey{tail})
		cc.ad.Upsert(adKey{tail})
	case headSize > 0:
		nd.Size = headSize
		cc.szad.Upsert(szKey{nd})
		cc.ad.Upsert(adKey{nd})
	case trailSize > 0:
		nd.Base = alignedBase + uintptr(size)
		nd.Size = trailSize
		cc.szad.Upsert(szKey{nd})
		cc.ad.Upsert(adKey{nd})
	default:
		cc.nodes.Free(unsafe.Pointer(nd))
	}

	atomic.AddInt64(&cc.recycledBytes, -size)
	return base, zeroed, true
}

// Record files a freed chunk away for later Alloc, purging its dirty
// pages first unless the caller already knows them zeroed, then
// coalescing with any adjacent cached region.
func (cc *ChunkCache) Record(chunkBase uintptr, size int64, zeroed bool) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if !zeroed {
		zeroed = cc.vm.Purge(chunkBase, size, true)
	}

	var nd *Node
	if nextItem, found := cc.ad.Get(adKey{&Node{Base: chunkBase + uintptr(size)}}); found {
		next := nextItem.(adKey).Node
		cc.ad.Delete(adKey{next})
		cc.szad.Delete(szKey{next})
		next.Base = chunkBase
		next.Size += size
		if next.Zeroed != zeroed {
			next.Zeroed = false
		}
		nd = next
	} else {
		nd = (*Node)(cc.nodes.Alloc())
		nd.Base, nd.Size, nd.Zeroed = chunkBase, size, zeroed
	}
	cc.ad.Upsert(adKey{nd})
	cc.szad.Upsert(szKey{nd})

	if prevItem, found := cc.ad.Floor(adKey{&Node{Base: nd.Base}}); found {
		prev := prevItem.(adKey).Node
		if prev.Base+uintptr(prev.Size) == nd.Base {
			cc.ad.Delete(adKey{prev})
			cc.szad.Delete(szKey{prev})
			cc.ad.Delete(adKey{nd})
			cc.szad.Delete(szKey{nd})

			nd.Base = prev.Base
			nd.Size += prev.Size
			if nd.Zeroed != prev.Zeroed {
				nd.Zeroed = false
			}

			cc.ad.Upsert(adKey{nd})
			cc.szad.Upsert(szKey{nd})
			cc.nodes.Free(unsafe.Pointer(prev))
		}
	}

	atomic.AddInt64(&cc.recycledBytes, size)
}

// Len returns the number of distinct cached regions.
func (cc *ChunkCache) Len() int64 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.ad.Len()
}
