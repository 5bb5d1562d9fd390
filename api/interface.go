// Package api defines the interfaces and types shared across memfit's
// packages: the OS virtual-memory contract the core consumes, and the
// pointer-classification/statistics types the core reports.
package api

// VM mediates OS page operations for the allocator core. Implementations
// must guarantee map returns memory aligned to align (a power of two,
// typically the chunk size), and that unmap/commit/decommit/purge accept
// exactly a base/size pair previously returned by (or trimmed from) map.
type VM interface {
	// Map reserves size bytes aligned to align. Returns ok=false on
	// resource exhaustion; never panics.
	Map(size, align int64) (base uintptr, ok bool)

	// Unmap releases a region obtained from Map (or trimmed from one).
	Unmap(base uintptr, size int64)

	// Commit ensures the region is backed by physical memory.
	Commit(base uintptr, size int64) bool

	// Decommit releases physical backing while keeping the virtual
	// reservation; the region reads as zero after a later Commit.
	Decommit(base uintptr, size int64) bool

	// Purge returns physical backing of dirty pages to the OS. zeroed
	// reports whether the pages are guaranteed to read as zero without a
	// subsequent Commit; forceZero requests the decommit strategy even
	// under a lazy (madvise-free) policy, when true.
	Purge(base uintptr, size int64, forceZero bool) (zeroed bool)

	// CanRecycle reports whether a region of this size may be kept in the
	// chunk cache for reuse rather than unmapped outright (some platforms
	// require unmap to match the original map call exactly).
	CanRecycle(size int64) bool
}

// Strategy selects how Purge releases physical pages.
type Strategy int

const (
	// StrategyDecommit releases physical backing immediately; Purge
	// always reports zeroed=true.
	StrategyDecommit Strategy = iota
	// StrategyMadviseDontneed asks the OS to drop pages now; the next
	// touch reads zero, so Purge reports zeroed=true.
	StrategyMadviseDontneed
	// StrategyMadviseFree is a lazy hint; the OS may or may not have
	// reclaimed the pages by the time they are next touched, so Purge
	// reports zeroed=false and the caller must track these pages for a
	// later forced purge (see HardPurger).
	StrategyMadviseFree
)

// HardPurger is implemented by arenas that track madvise-free pages for a
// later forced decommit (the double-purge list of spec §4.E.14).
type HardPurger interface {
	HardPurge()
}
