// Package memfit is a segregated-fit, multi-arena heap allocator core
// modeled on mozjemalloc: chunks carved into page-run extents, bins of
// fixed-size runs for small/sub-page requests, a chunk-recycling cache,
// a process-wide radix index from address to owning arena, and a
// dirty-page purge policy tunable via ParseTunables's MALLOC_OPTIONS-
// style grammar.
//
// The package exposes the Go-native surface a cgo malloc/free shim
// would be built on top of (Malloc, Calloc, Realloc, Free,
// PosixMemalign, AlignedAlloc, Valloc, MallocUsableSize,
// MallocGoodSize) plus administrative operations for per-caller arena
// binding, statistics, and purge control (ThreadLocalArena, CreateArena,
// DisposeArena, ArenaMalloc and its calloc/realloc/free siblings,
// Stats, PtrInfo, FreeDirtyPages, PurgeFreedPages).
package memfit
