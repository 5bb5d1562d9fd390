package sizeclass

import "github.com/bnclabs/memfit/lib"

// runHeaderBase approximates the fixed portion of a small-run header
// (bin pointer, free count, regs_minelm) excluding the bitmask array,
// whose size depends on nregs. Arena run headers embed the real struct;
// this package only needs its size to budget region count.
const runHeaderBase = 24

// runMaxOverhead is RUN_MAX_OVRHD in binary-fixed-point, expressed as a
// float64 fraction — 1/64, matched against the first-region offset as a
// fraction of the run size (mirrors malloc.Blocksizes' MEMUtilization float64 arithmetic).
const runMaxOverhead = 1.0 / 64.0

// RunLayout is the geometry of one small/sub-page bin's run, computed
// once when the bin is created (spec §4.E.1 / §8.9: run_size, nregs,
// mask word count, and first-region offset satisfying
// header_size + nregs*regionSize <= run_size with bounded overhead).
type RunLayout struct {
	RegionSize   int64
	RunSize      int64
	NRegions     int64
	MaskWords    int64
	FirstRegion  int64 // byte offset of region 0 within the run
	RegionIsPow2 bool
	ReciprocalM  uint64 // magic reciprocal for non-power-of-two RegionSize
}

// NewRunLayout computes the run geometry for a bin of the given region
// size, growing run_size by one page at a time (starting from one page)
// until the header/region packing fits and, for non-tiny classes, the
// first-region overhead is within runMaxOverhead. Tiny classes — where a
// single header word already exceeds the budget — accept any packing
// that fits.
func (c Config) NewRunLayout(regionSize int64, tiny bool) RunLayout {
	maxRunSize := c.ArenaMaxClass()

	for runSize := c.PageSize; runSize <= maxRunSize; runSize += c.PageSize {
		maskWords := int64(1)
		for iter := 0; iter < 8; iter++ {
			header := runHeaderBase + maskWords*8
			nregs := (runSize - header) / regionSize
			if nregs <= 0 {
				break
			}
			wantWords := lib.CeilDiv(nregs, 64)
			if wantWords == maskWords {
				// Regions are packed against the end of the run, so a
				// page-multiple run keeps every region naturally aligned.
				firstRegion := runSize - nregs*regionSize
				overhead := float64(firstRegion) / float64(runSize)
				if tiny || overhead <= runMaxOverhead || runSize >= maxRunSize {
					return RunLayout{
						RegionSize:   regionSize,
						RunSize:      runSize,
						NRegions:     nregs,
						MaskWords:    maskWords,
						FirstRegion:  firstRegion,
						RegionIsPow2: lib.IsPow2(regionSize),
						ReciprocalM:  reciprocal(regionSize),
					}
				}
				break // fits but overhead too high; grow run_size
			}
			maskWords = wantWords
		}
	}

	// Fallback: a single maximal region per run (degenerate but always
	// satisfies run_size <= arena_maxclass).
	header := int64(runHeaderBase + 8)
	return RunLayout{
		RegionSize:   regionSize,
		RunSize:      maxRunSize,
		NRegions:     1,
		MaskWords:    1,
		FirstRegion:  header,
		RegionIsPow2: lib.IsPow2(regionSize),
		ReciprocalM:  reciprocal(regionSize),
	}
}

// reciprocal computes M = floor(2^21 / d) + 1, the magic reciprocal
// spec §9 gives for quantum-spaced region sizes: x/d == (x*M) >> 21 for
// any x that can occur as an in-run offset (d <= 2*max_quantum_size).
func reciprocal(d int64) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(1<<21)/uint64(d) + 1
}

// RegionIndex converts a byte offset within a run (relative to
// FirstRegion) into a region index without a general division: a
// log-table shift for power-of-two region sizes, the magic-reciprocal
// multiply for quantum-spaced ones.
func (rl RunLayout) RegionIndex(offsetInRun int64) int64 {
	rel := offsetInRun - rl.FirstRegion
	if rl.RegionIsPow2 {
		return rel >> lib.Log2(rl.RegionSize)
	}
	return int64((uint64(rel) * rl.ReciprocalM) >> 21)
}
