package memfit

import (
	"sync"
	"unsafe"

	"github.com/bnclabs/memfit/api"
	"github.com/bnclabs/memfit/internal/arena"
	"github.com/bnclabs/memfit/internal/arenas"
	"github.com/bnclabs/memfit/internal/base"
	"github.com/bnclabs/memfit/internal/extent"
	"github.com/bnclabs/memfit/internal/huge"
	"github.com/bnclabs/memfit/internal/owner"
	"github.com/bnclabs/memfit/lib"
	"github.com/bnclabs/memfit/sizeclass"
	"github.com/bnclabs/memfit/vm"
)

// core wires together every package this module depends on into one
// running allocator, mirroring spec.md §5's init_hard boot sequence.
type core struct {
	mu sync.Mutex

	cfg          sizeclass.Config
	vm           api.VM
	cache        *extent.ChunkCache
	owner        *owner.Tree
	huge         *huge.Registry
	dir          *arenas.Directory
	binding      *arenas.Binding
	settings     lib.Settings
	recycleLimit int64
}

var theCore *core

func init() {
	initCore(DefaultSettings())
}

// initCore builds the process-wide singleton from setts. It runs once,
// from init, with DefaultSettings; settings returned by ParseTunables are
// not applied to the running core.
func initCore(setts lib.Settings) {
	cfg := sizeclass.DefaultConfig()
	strategy := api.StrategyDecommit

	vmShim := vm.New(strategy)
	nodeSize := int64(unsafe.Sizeof(extent.Node{}))
	nodes := base.New(vmShim, nodeSize, cfg.ChunkSize)
	recycleLimit := cfg.ChunkSize * 64
	cache := extent.New(vmShim, nodes, recycleLimit)
	ownerIdx := owner.New(vmShim, owner.DefaultConfig(int64(lib.Log2(cfg.ChunkSize))))
	hugeReg := huge.New(vmShim, cache, cfg.ChunkSize, cfg.PageSize, strategy == api.StrategyDecommit)

	maxDirty := setts.Int64("arena.max_dirty")
	dir := arenas.New(cfg, vmShim, cache, ownerIdx, strategy, maxDirty)
	binding := arenas.NewBinding(dir)

	c := &core{
		cfg: cfg, vm: vmShim, cache: cache, owner: ownerIdx,
		huge: hugeReg, dir: dir, binding: binding, settings: setts,
		recycleLimit: recycleLimit,
	}

	junk, zero := setts.Bool("debug.junk"), setts.Bool("debug.zero")
	dir.Walk(func(_ int64, a *arena.Arena) {
		a.SetDebugJunk(junk)
		a.SetDebugZero(zero)
	})

	theCore = c
}

// lookupOwner resolves addr's arena via the process-wide radix index,
// the Go analogue of spec.md §4.C's chunk_owner lookup.
func lookupOwner(addr uintptr) (*arena.ChunkOwner, bool) {
	p := theCore.owner.Get(addr)
	if p == nil {
		return nil, false
	}
	return (*arena.ChunkOwner)(p), true
}

// Malloc allocates at least n bytes from the process's main arena,
// routing to the huge registry once n exceeds the arena tier's reach
// (spec.md §4.E.1 / §4.F). ThreadLocalArena bindings are not consulted.
func Malloc(n int64) unsafe.Pointer {
	return mallocAddr(theCore.dir.MainArena(), n, false)
}

// Calloc allocates a zero-filled array of count elements of n bytes
// each, mirroring mozjemalloc's overflow-checked calloc.
func Calloc(count, n int64) unsafe.Pointer {
	if count != 0 && n > (1<<62)/count {
		return nil
	}
	return mallocAddr(theCore.dir.MainArena(), count*n, true)
}

func mallocAddr(a *arena.Arena, n int64, zero bool) unsafe.Pointer {
	if n <= 0 {
		n = 1
	}
	if n > theCore.cfg.ArenaMaxClass() {
		addr, _, ok := theCore.huge.Alloc(n, theCore.cfg.ChunkSize, zero)
		if !ok {
			return nil
		}
		return unsafe.Pointer(addr)
	}
	addr, _, ok := a.Malloc(n, zero)
	if !ok {
		return nil
	}
	return unsafe.Pointer(addr)
}

// Realloc resizes an existing allocation to n bytes, migrating across
// the arena/huge boundary when the new size crosses it (spec.md
// §4.E.11 / §4.F's realloc, neither of which alone spans both tiers).
func Realloc(p unsafe.Pointer, n int64) unsafe.Pointer {
	if p == nil {
		return Malloc(n)
	}
	if n <= 0 {
		Free(p)
		return nil
	}
	addr := uintptr(p)

	if rec, ok := lookupOwner(addr); ok {
		newAddr, _, ok := rec.Arena.Realloc(addr, n, false)
		if ok {
			return unsafe.Pointer(newAddr)
		}
		return migrateAddr(addr, rec.Arena, n)
	}

	newAddr, _, ok := theCore.huge.Realloc(addr, n, false)
	if ok {
		return unsafe.Pointer(newAddr)
	}
	return nil
}

// migrateAddr handles the one direction arena.Realloc cannot service
// itself: a grow that no longer classifies into the arena tier. It
// allocates from the huge registry, copies the live bytes, and frees
// the old arena allocation. The symmetric huge-to-arena shrink is not
// attempted — mozjemalloc's huge_ralloc never migrates a huge
// allocation back into the arena tier on shrink either.
func migrateAddr(oldAddr uintptr, a *arena.Arena, newSize int64) unsafe.Pointer {
	info, ok := a.PtrInfo(oldAddr)
	if !ok {
		return nil
	}
	newAddr, usable, ok := theCore.huge.Alloc(newSize, theCore.cfg.ChunkSize, false)
	if !ok {
		return nil
	}
	copySize := lib.MinInt64(info.Size, usable)
	lib.Memcpy(unsafe.Pointer(newAddr), unsafe.Pointer(oldAddr), int(copySize))
	a.Free(oldAddr)
	return unsafe.Pointer(newAddr)
}

// Free releases p, which must have come from Malloc/Calloc/Realloc/
// PosixMemalign/AlignedAlloc/Valloc (or be nil, a no-op).
func Free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	addr := uintptr(p)
	if rec, ok := lookupOwner(addr); ok {
		if ok := rec.Arena.Free(addr); !ok {
			api.Corrupt("memfit: free of unknown pointer %#x inside owned chunk", addr)
		}
		return
	}
	if _, ok := theCore.huge.Free(addr); !ok {
		api.Corrupt("memfit: free of unrecognized pointer %#x", addr)
	}
}

// PosixMemalign services posix_memalign(3): align must be a power of
// two and a multiple of sizeof(void*); size 0 is a valid request that
// returns some freeable, non-dereferenceable pointer.
func PosixMemalign(align, size int64) (unsafe.Pointer, error) {
	if align < int64(unsafe.Sizeof(uintptr(0))) || !lib.IsPow2(align) {
		return nil, api.ErrInvalidAlignment
	}
	p := palloc(align, size)
	if p == nil {
		return nil, api.ErrOutOfMemory
	}
	return p, nil
}

// AlignedAlloc services aligned_alloc(3): size must be a multiple of
// align (ISO C's stricter sibling of posix_memalign).
func AlignedAlloc(align, size int64) unsafe.Pointer {
	if !lib.IsPow2(align) || size%align != 0 {
		return nil
	}
	return palloc(align, size)
}

// Valloc allocates size bytes aligned to the system page boundary.
func Valloc(size int64) unsafe.Pointer {
	return palloc(theCore.cfg.PageSize, size)
}

func palloc(align, size int64) unsafe.Pointer {
	if size <= 0 {
		size = 1
	}
	if align > theCore.cfg.ChunkSize {
		addr, _, ok := theCore.huge.Alloc(size, align, false)
		if !ok {
			return nil
		}
		return unsafe.Pointer(addr)
	}
	if size > theCore.cfg.ArenaMaxClass() {
		addr, _, ok := theCore.huge.Alloc(size, align, false)
		if !ok {
			return nil
		}
		return unsafe.Pointer(addr)
	}
	addr, _, ok := theCore.dir.MainArena().Palloc(size, align, false)
	if !ok {
		return nil
	}
	return unsafe.Pointer(addr)
}

// MallocUsableSize reports how many bytes p's allocation can actually
// hold, which may exceed the size originally requested (spec.md §6's
// malloc_usable_size). Returns 0 for nil or an unrecognized pointer.
func MallocUsableSize(p unsafe.Pointer) int64 {
	if p == nil {
		return 0
	}
	addr := uintptr(p)
	if rec, ok := lookupOwner(addr); ok {
		info, ok := rec.Arena.PtrInfo(addr)
		if !ok {
			return 0
		}
		return info.Size
	}
	info, ok := theCore.huge.PtrInfo(addr)
	if !ok {
		return 0
	}
	return info.Size
}

// MallocGoodSize reports the usable size a request of req bytes would
// round up to, without allocating (spec.md §6's malloc_good_size).
func MallocGoodSize(req int64) int64 {
	if req <= 0 {
		req = 1
	}
	if req > theCore.cfg.ArenaMaxClass() {
		return lib.CeilMultiple(req, theCore.cfg.PageSize)
	}
	classes := sizeclass.NewClasses(theCore.cfg)
	tier, idx := classes.Classify(req)
	switch tier {
	case sizeclass.Large:
		return lib.CeilMultiple(req, theCore.cfg.PageSize)
	default:
		return classes.BinSize(idx)
	}
}
