package vm

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/bnclabs/memfit/api"
)

// pageSize is cached at init; every Map/Commit/Decommit/Purge size is
// expected to already be a multiple of it (the arena layer enforces this).
var pageSize = int64(os.Getpagesize())

// Shim is the concrete api.VM backed by anonymous mmap.
type Shim struct {
	strategy api.Strategy
}

// New returns a Shim that purges dirty pages using strategy.
func New(strategy api.Strategy) *Shim {
	return &Shim{strategy: strategy}
}

// Strategy reports the purge strategy this shim was built with.
func (v *Shim) Strategy() api.Strategy { return v.strategy }

// Map reserves size bytes aligned to align via anonymous mmap. It first
// attempts a direct mapping of exactly size bytes; mmap on Linux/BSD
// returns page-aligned addresses, which already satisfies align in the
// common case (align <= pageSize, or the kernel happens to hand back a
// suitably aligned region). When the direct attempt is misaligned, it
// unmaps and retries with an oversized mapping, trimming the unwanted
// head and tail with separate munmap calls.
//
// Raw SYS_MMAP/SYS_MUNMAP syscalls are used instead of unix.Mmap/Munmap:
// the wrapped versions track mapped slices for bookkeeping and refuse to
// unmap anything but the exact slice they returned, which is incompatible
// with trimming a sub-range of an oversized mapping.
func (v *Shim) Map(size, align int64) (uintptr, bool) {
	if size <= 0 {
		return 0, false
	}
	if align <= 0 {
		align = pageSize
	}

	base, ok := mmapAnon(size)
	if !ok {
		return 0, false
	}
	if base%uintptr(align) == 0 {
		return base, true
	}
	munmap(base, size)

	total := size + align
	big, ok := mmapAnon(total)
	if !ok {
		return 0, false
	}
	aligned := (big + uintptr(align) - 1) &^ (uintptr(align) - 1)
	headTrim := int64(aligned - big)
	tailTrim := total - headTrim - size
	if headTrim > 0 {
		munmap(big, headTrim)
	}
	if tailTrim > 0 {
		munmap(aligned+uintptr(size), tailTrim)
	}
	return aligned, true
}

// Unmap releases a region obtained from, or trimmed from, Map.
func (v *Shim) Unmap(base uintptr, size int64) {
	munmap(base, size)
}

// Commit ensures the region is readable/writable and backed by physical
// memory, undoing a prior Decommit or a lazy madvise-free hint.
func (v *Shim) Commit(base uintptr, size int64) bool {
	b := byteView(base, size)
	return unix.Mprotect(b, unix.PROT_READ|unix.PROT_WRITE) == nil
}

// Decommit drops physical backing while keeping the virtual reservation;
// a later Commit is required before the region may be touched again.
func (v *Shim) Decommit(base uintptr, size int64) bool {
	b := byteView(base, size)
	if err := unix.Mprotect(b, unix.PROT_NONE); err != nil {
		return false
	}
	return unix.Madvise(b, unix.MADV_DONTNEED) == nil
}

// Purge returns physical backing of dirty pages to the OS, per the
// strategy the Shim was constructed with.
func (v *Shim) Purge(base uintptr, size int64, forceZero bool) bool {
	b := byteView(base, size)
	switch v.strategy {
	case api.StrategyDecommit:
		return v.Decommit(base, size)

	case api.StrategyMadviseDontneed:
		return unix.Madvise(b, unix.MADV_DONTNEED) == nil

	case api.StrategyMadviseFree:
		if forceZero {
			return v.Decommit(base, size)
		}
		unix.Madvise(b, unix.MADV_FREE)
		return false

	default:
		return false
	}
}

// CanRecycle reports whether a region of this size may be kept in the
// chunk cache for reuse. Anonymous mmap regions on Unix can be unmapped
// in arbitrary sub-ranges, so recycling is permitted for any non-empty
// region.
func (v *Shim) CanRecycle(size int64) bool {
	return size > 0
}

func mmapAnon(size int64) (uintptr, bool) {
	addr, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		0,
		uintptr(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE,
		^uintptr(0), // fd = -1
		0,
	)
	if errno != 0 {
		return 0, false
	}
	return addr, true
}

func munmap(base uintptr, size int64) {
	unix.Syscall(unix.SYS_MUNMAP, base, uintptr(size), 0)
}

func byteView(base uintptr, size int64) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(base)), int(size))
}
