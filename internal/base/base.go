package base

import (
	"sync"
	"unsafe"

	"github.com/bnclabs/memfit/api"
)

// Allocator hands out fixed-size records bump-allocated from slabs
// mapped via vm, recycling freed records through an intrusive free-list
// (the freed record's first machine word holds the next pointer).
type Allocator struct {
	mu sync.Mutex

	vm         api.VM
	recordSize int64
	slabSize   int64

	cur    uintptr // bump cursor within the current slab
	end    uintptr // one past the current slab's last record
	free   unsafe.Pointer
	slabs  []slab
	nlive  int64
	nslabs int64
}

type slab struct {
	base uintptr
	size int64
}

// New returns an Allocator handing out records of recordSize bytes
// rounded up to a 64-byte cacheline multiple, reserving slabSize bytes
// (rounded down to a record multiple, at least one record) from vm at a
// time.
func New(vmImpl api.VM, recordSize, slabSize int64) *Allocator {
	if recordSize < int64(unsafe.Sizeof(uintptr(0))) {
		recordSize = int64(unsafe.Sizeof(uintptr(0)))
	}
	recordSize = (recordSize + 63) &^ 63
	if slabSize < recordSize {
		slabSize = recordSize
	}
	slabSize -= slabSize % recordSize
	return &Allocator{vm: vmImpl, recordSize: recordSize, slabSize: slabSize}
}

// Alloc returns a zeroed record, extending the bump cursor or popping
// the free-list; it panics via api.Corrupt if the VM cannot supply a
// new slab (metadata exhaustion is unrecoverable corruption, not a
// benign allocation failure the caller can retry).
func (a *Allocator) Alloc() unsafe.Pointer {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.free != nil {
		p := a.free
		a.free = *(*unsafe.Pointer)(p)
		zero(p, a.recordSize)
		a.nlive++
		return p
	}

	if a.cur == a.end {
		a.growLocked()
	}
	p := unsafe.Pointer(a.cur)
	a.cur += uintptr(a.recordSize)
	zero(p, a.recordSize)
	a.nlive++
	return p
}

// Free returns a record to the free-list for reuse.
func (a *Allocator) Free(p unsafe.Pointer) {
	a.mu.Lock()
	defer a.mu.Unlock()

	*(*unsafe.Pointer)(p) = a.free
	a.free = p
	a.nlive--
}

// Live reports the number of currently outstanding records.
func (a *Allocator) Live() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nlive
}

// Mapped reports total bytes reserved across all slabs.
func (a *Allocator) Mapped() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nslabs * a.slabSize
}

// Release unmaps every slab. The Allocator must not be used afterward.
func (a *Allocator) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range a.slabs {
		a.vm.Unmap(s.base, s.size)
	}
	a.slabs = nil
	a.cur, a.end, a.free = 0, 0, nil
}

func (a *Allocator) growLocked() {
	base, ok := a.vm.Map(a.slabSize, int64(unsafe.Sizeof(uintptr(0))))
	if !ok {
		api.Corrupt("base: out of memory reserving a %v-byte metadata slab", a.slabSize)
	}
	if !a.vm.Commit(base, a.slabSize) {
		api.Corrupt("base: failed to commit metadata slab at %#x", base)
	}
	a.slabs = append(a.slabs, slab{base: base, size: a.slabSize})
	a.nslabs++
	a.cur, a.end = base, base+uintptr(a.slabSize)
}

func zero(p unsafe.Pointer, n int64) {
	b := unsafe.Slice((*byte)(p), int(n))
	for i := range b {
		b[i] = 0
	}
}
