package arenas

import (
	"sync"

	"github.com/bnclabs/memfit/api"
	"github.com/bnclabs/memfit/internal/arena"
	"github.com/bnclabs/memfit/internal/extent"
	"github.com/bnclabs/memfit/internal/owner"
	"github.com/bnclabs/memfit/internal/rbtree"
	"github.com/bnclabs/memfit/memfitlog"
	"github.com/bnclabs/memfit/sizeclass"
)

// idKey orders directory entries by arena id.
type idKey struct {
	id int64
	a  *arena.Arena
}

func (k idKey) Less(other rbtree.Item) bool { return k.id < other.(idKey).id }

// Directory is the process-wide tree of arenas keyed by id (spec.md
// §4.G), guarded by a single mutex standing in for the source's
// "arenas_lock" spinlock.
type Directory struct {
	mu sync.Mutex

	cfg      sizeclass.Config
	vm       api.VM
	cache    *extent.ChunkCache
	owner    *owner.Tree
	strategy api.Strategy
	maxDirty int64

	tree   rbtree.Tree
	nextID int64
}

// New builds a directory and creates the main arena (id 0), mirroring
// spec.md §4.G's "created during init_hard".
func New(cfg sizeclass.Config, vmImpl api.VM, cache *extent.ChunkCache, ownerIdx *owner.Tree, strategy api.Strategy, maxDirty int64) *Directory {
	d := &Directory{
		cfg: cfg, vm: vmImpl, cache: cache, owner: ownerIdx,
		strategy: strategy, maxDirty: maxDirty,
	}
	main := arena.New(0, cfg, vmImpl, cache, ownerIdx, strategy, maxDirty)
	d.tree.Upsert(idKey{id: 0, a: main})
	d.nextID = 1
	return d
}

// MainArena returns the directory's always-present id-0 arena.
func (d *Directory) MainArena() *arena.Arena {
	d.mu.Lock()
	defer d.mu.Unlock()
	item, _ := d.tree.Get(idKey{id: 0})
	return item.(idKey).a
}

// Get returns the arena bound to id, if any.
func (d *Directory) Get(id int64) (*arena.Arena, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	item, ok := d.tree.Get(idKey{id: id})
	if !ok {
		return nil, false
	}
	return item.(idKey).a, true
}

// CreateArena mints a fresh arena and registers it in the directory.
// On failure it falls back to the main arena with a single warning
// (spec.md §7's arena-creation-failure contract); since internal/arena.New
// never itself fails (it only maps memory lazily, on first allocRun),
// the fallback path exists for forward compatibility with a future VM
// that can fail eagerly at arena construction.
func (d *Directory) CreateArena() (*arena.Arena, int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++
	a := arena.New(id, d.cfg, d.vm, d.cache, d.owner, d.strategy, d.maxDirty)
	if a == nil {
		memfitlog.Warnf("arenas: failed to create arena %d, falling back to main arena", id)
		item, _ := d.tree.Get(idKey{id: 0})
		return item.(idKey).a, 0
	}
	d.tree.Upsert(idKey{id: id, a: a})
	return a, id
}

// DisposeArena removes id from the directory. The main arena (id 0)
// cannot be disposed.
func (d *Directory) DisposeArena(id int64) bool {
	if id == 0 {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.tree.Delete(idKey{id: id})
	return ok
}

// Len reports the number of arenas currently registered, including the
// main arena.
func (d *Directory) Len() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tree.Len()
}

// Walk visits every registered arena in id order.
func (d *Directory) Walk(fn func(id int64, a *arena.Arena)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tree.Walk(func(item rbtree.Item) bool {
		k := item.(idKey)
		fn(k.id, k.a)
		return true
	})
}
