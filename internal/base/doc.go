// Package base is the bump allocator the owner index, chunk cache, and
// huge registry draw their fixed-size metadata records (extent nodes,
// radix-tree nodes, huge records) from. It reserves memory a slab at a
// time from an api.VM and returns it to the OS only through Release —
// metadata is small and long-lived relative to the data it describes.
//
// Freed records are kept on an intrusive free-list rather than handed
// back to the slab, the same shape as the teacher's poolflist: a slab
// sliced into equal-sized blocks, recycled through a list of indices
// rather than re-bump-allocated.
package base
