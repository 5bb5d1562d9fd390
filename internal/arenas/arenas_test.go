package arenas

import (
	"testing"
	"unsafe"

	"github.com/bnclabs/memfit/api"
	"github.com/bnclabs/memfit/internal/base"
	"github.com/bnclabs/memfit/internal/extent"
	"github.com/bnclabs/memfit/internal/owner"
	"github.com/bnclabs/memfit/sizeclass"
)

const (
	testPage  = 4096
	testChunk = testPage * 8
)

type fakeVM struct{}

func (f *fakeVM) Map(size, align int64) (uintptr, bool) {
	buf := make([]byte, size+align)
	b := uintptr(unsafe.Pointer(&buf[0]))
	return (b + uintptr(align) - 1) &^ (uintptr(align) - 1), true
}
func (f *fakeVM) Unmap(base uintptr, size int64)                      {}
func (f *fakeVM) Commit(base uintptr, size int64) bool                { return true }
func (f *fakeVM) Decommit(base uintptr, size int64) bool              { return true }
func (f *fakeVM) Purge(base uintptr, size int64, forceZero bool) bool { return true }
func (f *fakeVM) CanRecycle(size int64) bool                          { return true }

func newDirectory() *Directory {
	vm := &fakeVM{}
	nodes := base.New(vm, int64(unsafe.Sizeof(extent.Node{})), testChunk)
	cache := extent.New(vm, nodes, 0)
	ownerTree := owner.New(vm, owner.DefaultConfig(13))
	cfg := sizeclass.Config{
		PageSize: testPage, ChunkSize: testChunk,
		Quantum: 16, SmallMax: 512, MinTiny: 8, HeaderPages: 1,
	}
	return New(cfg, vm, cache, ownerTree, api.StrategyDecommit, 64)
}

func TestDirectoryStartsWithMainArena(t *testing.T) {
	d := newDirectory()
	if d.Len() != 1 {
		t.Fatalf("expected 1 arena at start, got %v", d.Len())
	}
	if d.MainArena() == nil {
		t.Fatalf("expected a non-nil main arena")
	}
}

func TestCreateArenaRegistersNewID(t *testing.T) {
	d := newDirectory()
	a, id := d.CreateArena()
	if id == 0 {
		t.Errorf("expected a non-zero id for a created arena")
	}
	got, ok := d.Get(id)
	if !ok || got != a {
		t.Errorf("expected created arena retrievable by id")
	}
	if d.Len() != 2 {
		t.Errorf("expected 2 arenas after create, got %v", d.Len())
	}
}

func TestDisposeArenaRemovesNonMain(t *testing.T) {
	d := newDirectory()
	_, id := d.CreateArena()
	if !d.DisposeArena(id) {
		t.Fatalf("expected dispose to succeed")
	}
	if _, ok := d.Get(id); ok {
		t.Errorf("expected disposed arena to be gone")
	}
	if d.DisposeArena(0) {
		t.Errorf("expected dispose of the main arena (id 0) to fail")
	}
}

func TestBindingFallsBackToMainArena(t *testing.T) {
	d := newDirectory()
	b := NewBinding(d)
	if b.Preferred("token-a") != d.MainArena() {
		t.Errorf("expected unbound token to prefer the main arena")
	}
}

func TestBindingEnableDisable(t *testing.T) {
	d := newDirectory()
	b := NewBinding(d)

	bound := b.ThreadLocalArena("token-a", true)
	if bound == d.MainArena() {
		t.Errorf("expected a dedicated arena distinct from main")
	}
	if b.Preferred("token-a") != bound {
		t.Errorf("expected Preferred to return the bound arena")
	}

	b.ThreadLocalArena("token-a", false)
	if b.Preferred("token-a") != d.MainArena() {
		t.Errorf("expected Preferred to fall back to main after disabling")
	}
}
