package memfit

import (
	"testing"
	"unsafe"

	"github.com/bnclabs/memfit/api"
)

func TestCreateAndDisposeArena(t *testing.T) {
	id := CreateArena()
	if id == 0 {
		t.Fatalf("expected a non-zero arena id")
	}
	if err := DisposeArena(id); err != nil {
		t.Errorf("unexpected error disposing a freshly created arena: %v", err)
	}
	if err := DisposeArena(0); err == nil {
		t.Errorf("expected disposing the main arena to fail")
	}
}

func TestArenaMallocFreeRoundTrip(t *testing.T) {
	id := CreateArena()
	defer DisposeArena(id)

	p := ArenaMalloc(id, 64)
	if p == nil {
		t.Fatalf("expected ArenaMalloc to succeed")
	}
	ArenaFree(id, p)
}

func TestArenaMallocUnknownIDReturnsNil(t *testing.T) {
	if p := ArenaMalloc(999999, 64); p != nil {
		t.Errorf("expected nil for an unknown arena id")
	}
}

func TestThreadLocalArenaBindsAndUnbinds(t *testing.T) {
	token := "admin-test-token"
	bound := theCore.binding.ThreadLocalArena(token, true)
	if bound == theCore.dir.MainArena() {
		t.Errorf("expected a dedicated arena distinct from main")
	}
	ThreadLocalArena(token, false)
	if theCore.binding.Preferred(token) != theCore.dir.MainArena() {
		t.Errorf("expected Preferred to fall back to main after disabling")
	}
}

func TestStatsReflectsLiveAllocation(t *testing.T) {
	before := Stats()
	p := Malloc(4096)
	after := Stats()
	if after.AllocatedSmall+after.AllocatedLarge <= before.AllocatedSmall+before.AllocatedLarge {
		t.Errorf("expected Stats to reflect the new allocation")
	}
	Free(p)
}

func TestPtrInfoClassifiesLiveAllocation(t *testing.T) {
	p := Malloc(64)
	info := PtrInfo(p)
	if info.Tag != api.TagLiveSmall && info.Tag != api.TagLiveLarge {
		t.Errorf("expected a live tag for a freshly allocated pointer, got %v", info.Tag)
	}
	Free(p)
}

func TestPtrInfoUnknownPointer(t *testing.T) {
	var x int
	info := PtrInfo(unsafe.Pointer(&x))
	if info.Tag != api.TagUnknown {
		t.Errorf("expected TagUnknown for a pointer memfit never allocated, got %v", info.Tag)
	}
}

func TestFreeDirtyPagesAndPurgeFreedPagesDoNotPanic(t *testing.T) {
	p := Malloc(4096)
	Free(p)
	FreeDirtyPages()
	PurgeFreedPages()
}

func TestPreforkPostforkParentRoundTrip(t *testing.T) {
	Prefork()
	PostforkParent()
}
