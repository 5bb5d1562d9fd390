package huge

import (
	"testing"
	"unsafe"

	"github.com/bnclabs/memfit/internal/base"
	"github.com/bnclabs/memfit/internal/extent"
	"github.com/bnclabs/memfit/lib"
)

const (
	testChunk = 4096 * 4
	testPage  = 4096
)

type fakeVM struct{}

func (f *fakeVM) Map(size, align int64) (uintptr, bool) {
	buf := make([]byte, size+align)
	b := uintptr(unsafe.Pointer(&buf[0]))
	return (b + uintptr(align) - 1) &^ (uintptr(align) - 1), true
}
func (f *fakeVM) Unmap(base uintptr, size int64)         {}
func (f *fakeVM) Commit(base uintptr, size int64) bool   { return true }
func (f *fakeVM) Decommit(base uintptr, size int64) bool { return true }
func (f *fakeVM) Purge(base uintptr, size int64, forceZero bool) bool {
	return true
}
func (f *fakeVM) CanRecycle(size int64) bool { return true }

func newRegistry() *Registry {
	vm := &fakeVM{}
	nodes := base.New(vm, int64(unsafe.Sizeof(extent.Node{})), testChunk)
	cache := extent.New(vm, nodes, 0)
	return New(vm, cache, testChunk, testPage, true)
}

func TestAllocReportsPageCeilingMapsChunkCeiling(t *testing.T) {
	r := newRegistry()
	addr, usable, ok := r.Alloc(testChunk+1, 0, false)
	if !ok {
		t.Fatalf("expected alloc to succeed")
	}
	if usable != lib.CeilMultiple(testChunk+1, testPage) {
		t.Errorf("expected usable page-ceiling, got %v", usable)
	}
	st := r.Stats()
	if st.Mapped != testChunk*2 {
		t.Errorf("expected mapped 2 chunks, got %v", st.Mapped)
	}
	if addr == 0 {
		t.Errorf("expected non-zero addr")
	}
}

func TestFreeReturnsChunkToCache(t *testing.T) {
	r := newRegistry()
	addr, _, ok := r.Alloc(testChunk, 0, false)
	if !ok {
		t.Fatalf("expected alloc to succeed")
	}
	size, ok := r.Free(addr)
	if !ok || size != lib.CeilMultiple(testChunk, testPage) {
		t.Errorf("expected free of a page-ceiling size, got size=%v ok=%v", size, ok)
	}
	if r.cache.Len() != 1 {
		t.Errorf("expected freed chunk recorded in cache, got len=%v", r.cache.Len())
	}

	addr2, _, ok := r.Alloc(testChunk, 0, false)
	if !ok || addr2 != addr {
		t.Errorf("expected recycled address %#x, got %#x ok=%v", addr, addr2, ok)
	}
}

func TestReallocShrinkStaysInPlace(t *testing.T) {
	r := newRegistry()
	addr, _, ok := r.Alloc(3*testChunk, 0, false)
	if !ok {
		t.Fatalf("expected alloc to succeed")
	}
	beforeMapped := r.Stats().Mapped

	newAddr, usable, ok := r.Realloc(addr, testChunk, false)
	if !ok || newAddr != addr {
		t.Errorf("expected in-place shrink at same address, got %#x ok=%v", newAddr, ok)
	}
	if usable != testChunk {
		t.Errorf("expected usable %v, got %v", testChunk, usable)
	}
	if got := beforeMapped - r.Stats().Mapped; got != 2*testChunk {
		t.Errorf("expected mapped to drop by 2 chunks, got %v", got)
	}
}

func TestReallocGrowAcrossChunkMoves(t *testing.T) {
	r := newRegistry()
	addr, _, ok := r.Alloc(testChunk, 0, false)
	if !ok {
		t.Fatalf("expected alloc to succeed")
	}
	*(*byte)(unsafe.Pointer(addr)) = 0x42

	newAddr, usable, ok := r.Realloc(addr, 3*testChunk, false)
	if !ok {
		t.Fatalf("expected grow-realloc to succeed")
	}
	if usable < 3*testChunk {
		t.Errorf("expected usable >= %v, got %v", 3*testChunk, usable)
	}
	if *(*byte)(unsafe.Pointer(newAddr)) != 0x42 {
		t.Errorf("expected copied byte to survive move")
	}
}

func TestAllocCacheHitHonorsCoarserAlignment(t *testing.T) {
	r := newRegistry()
	// Seed the cache with an entry whose base is chunk-aligned but not
	// aligned to the coarser request below, to exercise the cache's own
	// trim-on-misalignment path rather than falling through to vm.Map.
	r.cache.Record(testChunk, 4*testChunk, true)

	align := 2 * testChunk
	addr, _, ok := r.Alloc(testChunk, int64(align), false)
	if !ok {
		t.Fatalf("expected alloc to succeed")
	}
	if addr%uintptr(align) != 0 {
		t.Errorf("expected addr aligned to %#x, got %#x", align, addr)
	}
	if r.cache.Len() != 2 {
		t.Errorf("expected the cache hit to leave trimmed head+tail remainders, got len=%v", r.cache.Len())
	}
}

func TestReallocSameChunkClassInPlace(t *testing.T) {
	r := newRegistry()
	addr, _, ok := r.Alloc(testChunk, 0, false)
	if !ok {
		t.Fatalf("expected alloc to succeed")
	}
	newAddr, usable, ok := r.Realloc(addr, testChunk-8, false)
	if !ok || newAddr != addr {
		t.Errorf("expected same-class in-place resize, got %#x ok=%v", newAddr, ok)
	}
	if usable != lib.CeilMultiple(testChunk-8, testPage) {
		t.Errorf("unexpected usable size %v", usable)
	}
}
