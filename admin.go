package memfit

import (
	"sync"
	"unsafe"

	"github.com/bnclabs/memfit/api"
	"github.com/bnclabs/memfit/internal/arena"
)

// ThreadLocalArena binds token to a freshly created arena (enable=true)
// or drops token's binding (enable=false) in the core's binding table,
// standing in for spec.md §6's thread-local arena toggle (see DESIGN.md's
// Open Question log for why a token replaces "the current thread").
// Malloc, Calloc, Realloc and the ArenaMalloc family do not consult this
// table, and the new arena's id is not returned to the caller.
func ThreadLocalArena(token interface{}, enable bool) {
	theCore.binding.ThreadLocalArena(token, enable)
}

// CreateArena mints a new arena and returns its id.
func CreateArena() int64 {
	_, id := theCore.dir.CreateArena()
	return id
}

// DisposeArena removes id from the arena directory. The main arena
// (id 0) can never be disposed.
func DisposeArena(id int64) error {
	if !theCore.dir.DisposeArena(id) {
		return api.ErrUnknownArena
	}
	return nil
}

func arenaByID(id int64) (*arena.Arena, bool) {
	return theCore.dir.Get(id)
}

// ArenaMalloc allocates n bytes from arena id specifically, bypassing
// token-based binding.
func ArenaMalloc(id int64, n int64) unsafe.Pointer {
	a, ok := arenaByID(id)
	if !ok {
		return nil
	}
	return mallocAddr(a, n, false)
}

// ArenaCalloc allocates a zero-filled array from arena id.
func ArenaCalloc(id int64, count, n int64) unsafe.Pointer {
	a, ok := arenaByID(id)
	if !ok {
		return nil
	}
	if count != 0 && n > (1<<62)/count {
		return nil
	}
	return mallocAddr(a, count*n, true)
}

// ArenaRealloc resizes p, which must currently live in arena id.
func ArenaRealloc(id int64, p unsafe.Pointer, n int64) unsafe.Pointer {
	if p == nil {
		return ArenaMalloc(id, n)
	}
	if n <= 0 {
		Free(p)
		return nil
	}
	a, ok := arenaByID(id)
	if !ok {
		return nil
	}
	addr := uintptr(p)
	newAddr, _, ok := a.Realloc(addr, n, false)
	if ok {
		return unsafe.Pointer(newAddr)
	}
	return migrateAddr(addr, a, n)
}

// ArenaFree releases p, which must currently live in arena id.
func ArenaFree(id int64, p unsafe.Pointer) {
	if p == nil {
		return
	}
	a, ok := arenaByID(id)
	if !ok {
		return
	}
	if !a.Free(uintptr(p)) {
		api.Corrupt("memfit: free of unknown pointer %#x in arena %d", uintptr(p), id)
	}
}

// Stats aggregates counters across every arena and the huge registry.
func Stats() api.Stats {
	var s api.Stats
	theCore.dir.Walk(func(_ int64, a *arena.Arena) {
		as := a.Snapshot()
		s.NArenas += as.NArenas
		s.Mapped += as.Mapped
		s.AllocatedSmall += as.AllocatedSmall
		s.AllocatedLarge += as.AllocatedLarge
		s.NumDirty += as.NumDirty
		s.MaxDirty += as.MaxDirty
	})
	hs := theCore.huge.Stats()
	s.Mapped += hs.Mapped
	s.AllocatedHuge += hs.Allocated
	s.RecycledBytes = theCore.cache.RecycledBytes()
	s.RecycleLimit = theCore.recycleLimit
	return s
}

// PtrInfo classifies p for diagnostics: which tier it lives in, its
// containing extent's base address, and its usable size.
func PtrInfo(p unsafe.Pointer) api.PtrInfo {
	if p == nil {
		return api.PtrInfo{Tag: api.TagUnknown}
	}
	addr := uintptr(p)
	if rec, ok := lookupOwner(addr); ok {
		info, ok := rec.Arena.PtrInfo(addr)
		if ok {
			return info
		}
		return api.PtrInfo{Tag: api.TagUnknown, Base: addr}
	}
	if info, ok := theCore.huge.PtrInfo(addr); ok {
		return info
	}
	return api.PtrInfo{Tag: api.TagUnknown, Base: addr}
}

// FreeDirtyPages purges every arena's excess dirty pages down to its
// configured watermark (spec.md §4.I's administrative purge(false)).
func FreeDirtyPages() {
	theCore.dir.Walk(func(_ int64, a *arena.Arena) {
		a.Purge(false)
	})
}

// PurgeFreedPages forces every arena to release all of its dirty pages,
// then hard-purges any pages left madvised-but-not-yet-decommitted
// under the double-purge policy (spec.md §4.I's administrative
// purge(true)).
func PurgeFreedPages() {
	theCore.dir.Walk(func(_ int64, a *arena.Arena) {
		a.Purge(true)
		if hp, ok := interface{}(a).(api.HardPurger); ok {
			hp.HardPurge()
		}
	})
}

// Prefork locks the core's top-level mutex ahead of a fork(2). Go
// programs almost never fork without an immediate exec, so this exists
// only for embedders that call a raw fork primitive directly. Only the
// core mutex is taken: the per-arena, chunk-cache, huge-registry, base,
// directory and owner-index locks are not acquired, and the allocation
// paths do not take the core mutex, so Prefork does not stop an
// allocation running on another goroutine.
func Prefork() {
	theCore.mu.Lock()
}

// PostforkParent releases the lock Prefork acquired, resuming normal
// operation in the parent.
func PostforkParent() {
	theCore.mu.Unlock()
}

// PostforkChild re-initializes the core lock in the child rather than
// unlocking it, since a fork(2) may have caught another goroutine
// mid-critical-section whose state the child can never observe
// finishing.
func PostforkChild() {
	theCore.mu = sync.Mutex{}
}
