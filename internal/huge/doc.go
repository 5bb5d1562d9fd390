// Package huge implements the huge-allocation registry (spec.md §4.F): a
// single address-ordered tree tracking every live allocation too large for
// any arena run — one chunk-ceiling-sized mapping per entry, addressed
// directly rather than carved out of an arena's pages.
//
// Grounded on mozjemalloc.cpp's huge_malloc/huge_palloc/huge_ralloc: a
// request is rounded up to a whole number of chunks (csize) for the
// mapping, and to a whole number of pages (psize) for the size reported
// back to the caller; the gap csize-psize is decommitted when the VM
// shim's strategy supports it. Freed huge extents are handed to
// internal/extent's chunk cache rather than unmapped outright, so a
// later huge or arena chunk request can recycle them.
package huge
