// Command memfitstats drives memfit through a synthetic allocate/free
// workload and reports arena/huge utilization, in the spirit of
// bnclabs-gostore's tools/llrb reporting CLIs.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"time"
	"unsafe"

	hm "github.com/dustin/go-humanize"

	"github.com/bnclabs/memfit"
)

var options struct {
	n        int
	minSize  int
	maxSize  int
	tunables string
	churn    float64
}

func argParse() {
	flag.IntVar(&options.n, "n", 10000, "number of allocations to make")
	flag.IntVar(&options.minSize, "minsize", 16, "minimum allocation size")
	flag.IntVar(&options.maxSize, "maxsize", 4096, "maximum allocation size")
	flag.StringVar(&options.tunables, "tunables", "", "MALLOC_OPTIONS-style tunable string, e.g. \"1f16Z\"")
	flag.Float64Var(&options.churn, "churn", 0.5, "fraction of live allocations freed mid-run before the final purge")
	flag.Parse()
}

func main() {
	argParse()

	if options.tunables != "" {
		setts := memfit.ParseTunables(options.tunables)
		fmt.Printf("tunables %q -> max_dirty=%v debug.junk=%v debug.zero=%v\n",
			options.tunables, setts.Int64("arena.max_dirty"),
			setts.Bool("debug.junk"), setts.Bool("debug.zero"))
	}

	now := time.Now()
	ptrs := allocateItems(options.n)
	fmt.Printf("took %v to allocate %v items\n", time.Since(now), options.n)

	freeSome(ptrs, options.churn)
	printStats("after churn")

	memfit.FreeDirtyPages()
	printStats("after FreeDirtyPages")

	memfit.PurgeFreedPages()
	printStats("after PurgeFreedPages")
}

func allocateItems(n int) []unsafe.Pointer {
	ptrs := make([]unsafe.Pointer, 0, n)
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("panic: %v\n", r)
		}
		fmt.Printf("allocated %v items\n", len(ptrs))
	}()
	spread := options.maxSize - options.minSize
	for i := 0; i < n; i++ {
		size := options.minSize
		if spread > 0 {
			size += rand.Intn(spread)
		}
		p := memfit.Malloc(int64(size))
		if p == nil {
			panic(fmt.Errorf("out of memory after %v allocations", i))
		}
		ptrs = append(ptrs, p)
	}
	return ptrs
}

func freeSome(ptrs []unsafe.Pointer, fraction float64) {
	freed := 0
	for _, p := range ptrs {
		if rand.Float64() < fraction {
			memfit.Free(p)
			freed++
		}
	}
	fmt.Printf("freed %v of %v items\n", freed, len(ptrs))
}

func printStats(label string) {
	s := memfit.Stats()
	fmsg := "%s: arenas:%v mapped:%v small:%v large:%v huge:%v dirty:%v/%v recycled:%v/%v\n"
	fmt.Printf(fmsg, label, s.NArenas,
		hm.Bytes(uint64(s.Mapped)),
		hm.Bytes(uint64(s.AllocatedSmall)),
		hm.Bytes(uint64(s.AllocatedLarge)),
		hm.Bytes(uint64(s.AllocatedHuge)),
		s.NumDirty, s.MaxDirty,
		hm.Bytes(uint64(s.RecycledBytes)), hm.Bytes(uint64(s.RecycleLimit)))
}
