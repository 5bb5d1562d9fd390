package extent

import "testing"
import "unsafe"

import "github.com/bnclabs/memfit/internal/base"

type fakeVM struct{ purged []uintptr }

func (f *fakeVM) Map(size, align int64) (uintptr, bool) {
	buf := make([]byte, size+align)
	b := uintptr(unsafe.Pointer(&buf[0]))
	return (b + uintptr(align) - 1) &^ (uintptr(align) - 1), true
}
func (f *fakeVM) Unmap(base uintptr, size int64)   {}
func (f *fakeVM) Commit(base uintptr, size int64) bool   { return true }
func (f *fakeVM) Decommit(base uintptr, size int64) bool { return true }
func (f *fakeVM) Purge(base uintptr, size int64, forceZero bool) bool {
	f.purged = append(f.purged, base)
	return true
}
func (f *fakeVM) CanRecycle(size int64) bool { return true }

func newCache() *ChunkCache {
	vm := &fakeVM{}
	nodes := base.New(vm, int64(unsafe.Sizeof(Node{})), 4096)
	return New(vm, nodes, 0)
}

func TestAllocMissOnEmpty(t *testing.T) {
	cc := newCache()
	if _, _, ok := cc.Alloc(4096, 1); ok {
		t.Errorf("expected miss on empty cache")
	}
}

func TestRecordThenAllocExact(t *testing.T) {
	cc := newCache()
	cc.Record(0x10000, 4096, true)
	if cc.RecycledBytes() != 4096 {
		t.Errorf("expected 4096 recycled, got %v", cc.RecycledBytes())
	}

	base, zeroed, ok := cc.Alloc(4096, 1)
	if !ok || base != 0x10000 || !zeroed {
		t.Errorf("expected exact hit at 0x10000 zeroed, got base=%#x zeroed=%v ok=%v", base, zeroed, ok)
	}
	if cc.RecycledBytes() != 0 {
		t.Errorf("expected 0 recycled after full alloc, got %v", cc.RecycledBytes())
	}
}

func TestAllocTrimsTrailingRemainder(t *testing.T) {
	cc := newCache()
	cc.Record(0x20000, 4096*4, true)

	base, _, ok := cc.Alloc(4096, 1)
	if !ok || base != 0x20000 {
		t.Errorf("expected hit at 0x20000, got base=%#x ok=%v", base, ok)
	}
	if cc.RecycledBytes() != 4096*3 {
		t.Errorf("expected 3 pages remaining, got %v", cc.RecycledBytes())
	}
	if cc.Len() != 1 {
		t.Errorf("expected 1 cached region remaining, got %v", cc.Len())
	}

	base2, _, ok := cc.Alloc(4096*3, 1)
	if !ok || base2 != 0x20000+4096 {
		t.Errorf("expected remainder at %#x, got base=%#x ok=%v", 0x20000+4096, base2, ok)
	}
}

func TestRecordCoalescesForwardAndBackward(t *testing.T) {
	cc := newCache()
	cc.Record(0x30000, 4096, true)
	cc.Record(0x30000+2*4096, 4096, true) // leaves a gap at +4096..+8192
	if cc.Len() != 2 {
		t.Errorf("expected 2 disjoint regions, got %v", cc.Len())
	}

	cc.Record(0x30000+4096, 4096, true) // fills the gap, should merge all three
	if cc.Len() != 1 {
		t.Errorf("expected coalescing into 1 region, got %v", cc.Len())
	}

	base, _, ok := cc.Alloc(4096*3, 1)
	if !ok || base != 0x30000 {
		t.Errorf("expected merged region at 0x30000 size 3 pages, got base=%#x ok=%v", base, ok)
	}
}

func TestAllocTrimsLeadingMisalignment(t *testing.T) {
	cc := newCache()
	cc.Record(0x51000, 4096*4, true) // not aligned to 8192

	base, _, ok := cc.Alloc(4096, 8192)
	if !ok || base != 0x52000 {
		t.Errorf("expected aligned hit at 0x52000, got base=%#x ok=%v", base, ok)
	}
	if cc.Len() != 2 {
		t.Errorf("expected leading and trailing remainders cached separately, got %v", cc.Len())
	}
	if cc.RecycledBytes() != 4096*3 {
		t.Errorf("expected 3 pages remaining cached, got %v", cc.RecycledBytes())
	}

	// The leading page at 0x51000 is still cached and still satisfies a
	// page-aligned request.
	head, _, ok := cc.Alloc(4096, 1)
	if !ok || head != 0x51000 {
		t.Errorf("expected leading remainder at 0x51000, got base=%#x ok=%v", head, ok)
	}
}

func TestAllocSkipsEntryTooSmallAfterAlignmentTrim(t *testing.T) {
	cc := newCache()
	cc.Record(0x61000, 4096, true) // misaligned to 8192, only 1 page: no room for the head trim
	cc.Record(0x70000, 4096*3, true) // aligned to 8192, 3 pages

	base, _, ok := cc.Alloc(4096, 8192)
	if !ok || base != 0x70000 {
		t.Errorf("expected the only entry that fits after trim at 0x70000, got base=%#x ok=%v", base, ok)
	}
}

func TestShouldRecycleRespectsLimit(t *testing.T) {
	vm := &fakeVM{}
	nodes := base.New(vm, int64(unsafe.Sizeof(Node{})), 4096)
	cc := New(vm, nodes, 8192)

	if !cc.ShouldRecycle(4096) {
		t.Errorf("expected room under the limit")
	}
	cc.Record(0x40000, 8192, true)
	if cc.ShouldRecycle(1) {
		t.Errorf("expected limit reached to refuse further recycling")
	}
}
