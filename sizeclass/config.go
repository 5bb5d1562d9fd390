package sizeclass

import "fmt"

import "github.com/bnclabs/memfit/lib"

// Config carries the geometry constants every size-class and run-layout
// computation is relative to. Defaults mirror spec scenario S1..S6:
// page=4KiB, chunksize=1MiB, quantum=16, smallmax=512, mintiny=8.
type Config struct {
	PageSize    int64
	ChunkSize   int64
	Quantum     int64
	SmallMax    int64
	MinTiny     int64
	HeaderPages int64
}

// DefaultConfig returns the spec's reference geometry.
func DefaultConfig() Config {
	return Config{
		PageSize:    4096,
		ChunkSize:   1 << 20,
		Quantum:     16,
		SmallMax:    512,
		MinTiny:     8,
		HeaderPages: 1,
	}
}

// ArenaMaxClass is the largest request size servable from an arena chunk
// (chunksize minus the chunk header's pages); anything larger is huge.
func (c Config) ArenaMaxClass() int64 {
	return c.ChunkSize - c.HeaderPages*c.PageSize
}

func (c Config) validate() {
	if !lib.IsPow2(c.PageSize) {
		panic(fmt.Errorf("sizeclass: page size %v not a power of two", c.PageSize))
	}
	if !lib.IsPow2(c.ChunkSize) {
		panic(fmt.Errorf("sizeclass: chunk size %v not a power of two", c.ChunkSize))
	}
	if !lib.IsPow2(c.Quantum) {
		panic(fmt.Errorf("sizeclass: quantum %v not a power of two", c.Quantum))
	}
	if !lib.IsPow2(c.SmallMax) {
		panic(fmt.Errorf("sizeclass: small-max %v not a power of two", c.SmallMax))
	}
	if !lib.IsPow2(c.MinTiny) {
		panic(fmt.Errorf("sizeclass: min-tiny %v not a power of two", c.MinTiny))
	}
	if c.MinTiny > c.Quantum/2 {
		panic(fmt.Errorf("sizeclass: min-tiny %v exceeds quantum/2 %v", c.MinTiny, c.Quantum/2))
	}
}
