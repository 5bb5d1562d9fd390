// Package rbtree implements a left-leaning red-black tree (Sedgewick's
// 2-3 variant) keyed by a caller-supplied ordering. It backs the chunk
// cache's two trees, the huge registry, the arena directory, each
// arena's available-run and dirty-chunk trees, and each bin's
// non-full-run tree.
//
// Unlike a KV index, Tree stores opaque Items and never touches their
// bytes; callers embed whatever fields they need (address, size, run
// pointer) in a type implementing Item.
package rbtree
