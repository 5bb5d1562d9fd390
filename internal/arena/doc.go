// Package arena implements the per-arena allocation engine (spec.md
// §4.E): size-classed bins over fixed-size regions, runs of pages
// carved from chunks, an available-run tree for best-fit run reuse, a
// dirty-chunk tree driving the purge scheduler, and one spare chunk
// held back from the chunk cache to absorb the next chunk-sized
// request cheaply.
//
// Grounded throughout on `_examples/original_source/memory/build/mozjemalloc.cpp`'s
// arena_t machinery (arena_run_alloc/arena_run_split/arena_dalloc_run,
// the page-map flag bits, the available-run and dirty-chunk trees) and
// on the teacher's `malloc/arena.go` for the higher-level shape of "one
// structure owning several same-purpose collections keyed by size,
// falling back to minting a new one when every existing collection is
// exhausted" (there: Arena.mpools per block size; here: per-bin runs).
//
// Unlike the C source, which embeds a run's header and bitmask inline
// in the mapped pages it describes, every bookkeeping structure here
// (chunk, run, bin) is an ordinary Go-heap value reachable from the
// Arena's own fields (chunks, bins, availRuns, dirtyChunks) — never
// reconstructed from a bare address by walking mapped bytes. The only
// pointer that crosses into the global, GC-invisible owner radix tree
// (internal/owner) is a *ChunkOwner wrapping the *Arena itself, and
// that wrapper is held by the Arena's own ownerRec field,
// so nothing prematurely collected by Go's GC can be reached through
// the owner index. Only the user-visible bytes of a region — never the
// metadata describing it — come from outside the Go heap.
package arena
