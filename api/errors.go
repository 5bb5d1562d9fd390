package api

import "errors"
import "fmt"

import "github.com/bnclabs/memfit/memfitlog"

// ErrOutOfMemory is returned (never panicked) by PosixMemalign when the
// VM shim cannot supply memory for the request. Exhaustion inside the
// base sub-allocator (which also backs the owner index) is not reported
// this way; it panics via Corrupt.
var ErrOutOfMemory = errors.New("memfit.outofmemory")

// ErrInvalidAlignment is returned by PosixMemalign for a non-power-of-two
// or sub-word alignment. Mirrors posix_memalign's EINVAL.
var ErrInvalidAlignment = errors.New("memfit.invalidalignment")

// ErrUnknownPointer names an address that is neither in the owner index
// nor the huge registry. No function in this module returns it: Free
// reports such an address through Corrupt, and Realloc returns nil.
var ErrUnknownPointer = errors.New("memfit.unknownpointer")

// ErrUnknownArena is returned by DisposeArena for an id the directory
// never issued, or the main arena's id, which cannot be disposed.
var ErrUnknownArena = errors.New("memfit.unknownarena")

// Corrupt reports structural corruption detected by an invariant check
// (a Free of an address memfit does not recognize, a page claimed zeroed
// that is not, or a base metadata slab that cannot be mapped or
// committed). The
// allocator cannot proceed consistently past this point, so Corrupt logs
// and panics — the Go analogue of abort(3). Callers must not recover
// across this boundary.
func Corrupt(format string, args ...interface{}) {
	memfitlog.Fatalf(format, args...)
	panic(fmt.Errorf(format, args...))
}
