package base

import "testing"
import "unsafe"

// fakeVM backs Map with real Go heap allocations so tests run without
// touching the OS VM subsystem.
type fakeVM struct {
	regions map[uintptr][]byte
}

func newFakeVM() *fakeVM { return &fakeVM{regions: map[uintptr][]byte{}} }

func (f *fakeVM) Map(size, align int64) (uintptr, bool) {
	buf := make([]byte, size+align)
	base := uintptr(unsafe.Pointer(&buf[0]))
	aligned := (base + uintptr(align) - 1) &^ (uintptr(align) - 1)
	f.regions[aligned] = buf
	return aligned, true
}

func (f *fakeVM) Unmap(base uintptr, size int64) { delete(f.regions, base) }
func (f *fakeVM) Commit(base uintptr, size int64) bool   { return true }
func (f *fakeVM) Decommit(base uintptr, size int64) bool { return true }
func (f *fakeVM) Purge(base uintptr, size int64, forceZero bool) bool { return true }
func (f *fakeVM) CanRecycle(size int64) bool { return true }

type record struct {
	_ uintptr
	v int64
}

func TestAllocBumpAndReuse(t *testing.T) {
	a := New(newFakeVM(), int64(unsafe.Sizeof(record{})), 4096)

	p1 := a.Alloc()
	if a.Live() != 1 {
		t.Errorf("expected 1 live, got %v", a.Live())
	}
	(*record)(p1).v = 42

	a.Free(p1)
	if a.Live() != 0 {
		t.Errorf("expected 0 live after free, got %v", a.Live())
	}

	p2 := a.Alloc()
	if p2 != p1 {
		t.Errorf("expected free-list reuse of %v, got %v", p1, p2)
	}
	if (*record)(p2).v != 0 {
		t.Errorf("expected reused record zeroed, got %v", (*record)(p2).v)
	}
}

func TestAllocGrowsAcrossSlabs(t *testing.T) {
	recSize := int64(unsafe.Sizeof(record{}))
	a := New(newFakeVM(), recSize, recSize*4)

	seen := map[unsafe.Pointer]bool{}
	for i := 0; i < 100; i++ {
		p := a.Alloc()
		if seen[p] {
			t.Fatalf("duplicate pointer returned at i=%v", i)
		}
		seen[p] = true
	}
	if a.Live() != 100 {
		t.Errorf("expected 100 live, got %v", a.Live())
	}
	if a.Mapped() < recSize*100 {
		t.Errorf("expected mapped >= %v, got %v", recSize*100, a.Mapped())
	}
}

func TestRelease(t *testing.T) {
	a := New(newFakeVM(), int64(unsafe.Sizeof(record{})), 4096)
	a.Alloc()
	a.Release()
	if a.Mapped() != 0 {
		t.Errorf("expected 0 mapped after release, got %v", a.Mapped())
	}
}
