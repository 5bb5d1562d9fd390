package arena

import (
	"github.com/bnclabs/memfit/internal/rbtree"
	"github.com/bnclabs/memfit/lib"
	"github.com/bnclabs/memfit/sizeclass"
)

// run is a contiguous span of pages within one chunk: either free, a
// single large allocation, or a bin's slab of fixed-size regions.
type run struct {
	chunk     *chunk
	pageIndex int64
	sizePages int64

	// small-run fields, nil/zero for large and free runs.
	bin        *bin
	layout     sizeclass.RunLayout
	mask       []uint64
	nfree      int64
	regsMinElm int64
}

func (r *run) base() uintptr { return r.chunk.pageAddr(r.pageIndex) }

// avKey orders runs by (sizePages, base) — the arena's single
// available-run tree, best-fit searched via Ceil (spec §4.E.4).
type avKey struct{ *run }

func (a avKey) Less(other rbtree.Item) bool {
	b := other.(avKey)
	if a.sizePages != b.sizePages {
		return a.sizePages < b.sizePages
	}
	return a.base() < b.base()
}

// runAddrKey orders runs by base address — a bin's non-full-run tree
// (spec §4.E.2's get_non_full_bin_run).
type runAddrKey struct{ *run }

func (a runAddrKey) Less(other rbtree.Item) bool {
	return a.base() < other.(runAddrKey).base()
}

// dirtyKey orders chunks by (dirtySeq, base); Max() is the
// most-recently-dirtied chunk (spec §4.E.13).
type dirtyKey struct{ *chunk }

func (a dirtyKey) Less(other rbtree.Item) bool {
	b := other.(dirtyKey)
	if a.dirtySeq != b.dirtySeq {
		return a.dirtySeq < b.dirtySeq
	}
	return a.base < b.base
}

// initMask sets every region bit free (1), including any padding bits
// past nregs in the final word, which are then cleared so find-first-set
// never returns a non-existent region.
func (r *run) initMask() {
	r.mask = make([]uint64, r.layout.MaskWords)
	for i := range r.mask {
		r.mask[i] = ^uint64(0)
	}
	nregs := r.layout.NRegions
	fullWords := nregs / 64
	rem := nregs % 64
	if rem != 0 {
		r.mask[fullWords] = (uint64(1) << uint(rem)) - 1
		fullWords++
	}
	for i := fullWords; i < int64(len(r.mask)); i++ {
		r.mask[i] = 0
	}
	r.nfree = nregs
	r.regsMinElm = 0
}

// allocRegion finds and clears the lowest free bit at or after
// regsMinElm, returning the region's byte address within the run.
func (r *run) allocRegion() uintptr {
	for i := r.regsMinElm; i < int64(len(r.mask)); i++ {
		word := lib.Bit64(r.mask[i])
		if word == 0 {
			continue
		}
		bit := word.Findfirstset()
		r.mask[i] = uint64(word.Clearbit(uint(bit)))
		r.nfree--
		regind := i*64 + int64(bit)
		if r.mask[i] == 0 {
			r.regsMinElm = i + 1
		} else {
			r.regsMinElm = i
		}
		return r.base() + uintptr(r.layout.FirstRegion+regind*r.layout.RegionSize)
	}
	return 0
}

// freeRegion sets the bit for addr's region back to free.
func (r *run) freeRegion(addr uintptr) {
	offset := int64(addr - r.base())
	regind := r.layout.RegionIndex(offset)
	word, bit := regind/64, uint(regind%64)
	r.mask[word] = uint64(lib.Bit64(r.mask[word]).Setbit(bit))
	r.nfree++
	if word < r.regsMinElm {
		r.regsMinElm = word
	}
}

func (r *run) full() bool   { return r.nfree == 0 }
func (r *run) empty() bool  { return r.nfree == r.layout.NRegions }
func (r *run) single() bool { return r.layout.NRegions == 1 }
