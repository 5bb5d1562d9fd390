package sizeclass

import "github.com/bnclabs/memfit/lib"

// Tier names the five request-size regimes of spec §4.E.1.
type Tier int

const (
	Tiny Tier = iota
	Quantum
	Subpage
	Large
	Huge
)

func (t Tier) String() string {
	switch t {
	case Tiny:
		return "tiny"
	case Quantum:
		return "quantum"
	case Subpage:
		return "subpage"
	case Large:
		return "large"
	case Huge:
		return "huge"
	}
	return "unknown"
}

// class is one entry of the bin ladder: every request this size or
// smaller (and larger than the previous entry) rounds up to Size.
type class struct {
	size int64
	tier Tier
}

// Classes is the sorted size-class ladder for one Config: tiny powers of
// two, quantum multiples, and sub-page powers of two, in ascending
// order. Large and huge requests never appear in the ladder — their
// good size is computed directly (page-multiple, chunk-multiple).
type Classes struct {
	cfg     Config
	entries []class
}

// NewClasses builds the bin ladder for cfg: tiny classes double from
// MinTiny to Quantum/2, quantum classes step by Quantum up to SmallMax,
// sub-page classes double from SmallMax to PageSize/2.
func NewClasses(cfg Config) *Classes {
	cfg.validate()
	cl := &Classes{cfg: cfg}

	for size := cfg.MinTiny; size <= cfg.Quantum/2; size *= 2 {
		cl.entries = append(cl.entries, class{size, Tiny})
	}
	for size := cfg.Quantum; size <= cfg.SmallMax; size += cfg.Quantum {
		cl.entries = append(cl.entries, class{size, Quantum})
	}
	for size := cfg.SmallMax * 2; size <= cfg.PageSize/2; size *= 2 {
		cl.entries = append(cl.entries, class{size, Subpage})
	}
	return cl
}

// NumBins is the count of small/sub-page bins — one per ladder entry.
func (cl *Classes) NumBins() int { return len(cl.entries) }

// BinSize returns the fixed region size of bin i.
func (cl *Classes) BinSize(i int) int64 { return cl.entries[i].size }

// BinTier returns the size regime (Tiny/Quantum/Subpage) of bin i —
// arena bin setup needs this to relax the run-layout overhead bound for
// tiny classes.
func (cl *Classes) BinTier(i int) Tier { return cl.entries[i].tier }

// Config returns the geometry this ladder was built from.
func (cl *Classes) Config() Config { return cl.cfg }

// Classify returns the tier and bin index (-1 for large/huge) a request
// of size bytes falls into.
func (cl *Classes) Classify(size int64) (Tier, int) {
	if size <= 0 {
		size = 1
	}
	if size > cl.cfg.PageSize/2 {
		if size <= cl.cfg.ArenaMaxClass() {
			return Large, -1
		}
		return Huge, -1
	}
	return suitableBin(cl.entries, size)
}

// suitableBin binary-searches the sorted ladder for the smallest entry
// that is >= size, mirroring malloc.SuitableSize's halving search.
func suitableBin(entries []class, size int64) (Tier, int) {
	lo, hi := 0, len(entries)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if entries[mid].size < size {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return entries[lo].tier, lo
}

// GoodSize rounds size up to the smallest class able to serve it: a
// ladder entry for tiny/quantum/sub-page, a page multiple for large, a
// chunk multiple for huge.
func (cl *Classes) GoodSize(size int64) int64 {
	if size <= 0 {
		size = 1
	}
	tier, idx := cl.Classify(size)
	switch tier {
	case Tiny, Quantum, Subpage:
		return cl.entries[idx].size
	case Large:
		return lib.CeilMultiple(size, cl.cfg.PageSize)
	default:
		return lib.CeilMultiple(size, cl.cfg.ChunkSize)
	}
}
