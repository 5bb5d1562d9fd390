package lib

import "fmt"
import "unsafe"

// Memcpy copies a memory block of length ln from src to dst, for pointers
// obtained outside the Go runtime's own allocations (arena-backed memory).
func Memcpy(dst, src unsafe.Pointer, ln int) {
	dstb := unsafe.Slice((*byte)(dst), ln)
	srcb := unsafe.Slice((*byte)(src), ln)
	copy(dstb, srcb)
}

// Memclr zeroes a memory block of length ln.
func Memclr(dst unsafe.Pointer, ln int) {
	dstb := unsafe.Slice((*byte)(dst), ln)
	for i := range dstb {
		dstb[i] = 0
	}
}

// Memset fills a memory block of length ln with byte b.
func Memset(dst unsafe.Pointer, b byte, ln int) {
	dstb := unsafe.Slice((*byte)(dst), ln)
	for i := range dstb {
		dstb[i] = b
	}
}

// AbsInt64 returns the absolute value of x. Except for -2^63, where the
// returned value will be the same as the input.
func AbsInt64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// MinInt64 returns the smaller of a and b.
func MinInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// MaxInt64 returns the larger of a and b.
func MaxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func panicerr(fmsg string, args ...interface{}) {
	panic(fmt.Errorf(fmsg, args...))
}
