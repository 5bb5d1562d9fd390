// Package extent implements the chunk-recycling cache (spec §4.B): two
// internal/rbtree trees sharing the same *Node records — one ordered by
// (size, addr) for best-fit Alloc, one by addr alone for coalescing in
// Record — plus the address-ordered Node type the huge registry reuses
// for its own bookkeeping.
//
// Grounded on mozjemalloc.cpp's chunk_recycle/chunk_record: search
// chunks_szad for the smallest region at least as large as requested,
// split off any leading/trailing remainder back into both trees; on
// Record, purge dirty pages before filing the chunk away, then coalesce
// forward and backward against adjacent regions in the addr tree.
package extent
