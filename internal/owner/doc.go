// Package owner implements the chunk-owner radix tree (spec §4.C): a
// fixed-height, multi-level radix index from a chunk-aligned address to
// its owning chunk record. Get is lock-free — every slot is read with
// an acquire-load so a reader never observes a torn pointer written
// concurrently by Set. Set/Unset are serialized by the tree's own lock;
// node memory is carved from internal/base, never from the arena or
// huge paths the tree exists to route around.
package owner
