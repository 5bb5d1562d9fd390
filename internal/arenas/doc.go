// Package arenas implements the process-wide arena directory and
// per-caller arena binding (spec.md §4.G): a single ordered tree of
// arenas keyed by id, guarded by a directory-wide lock, plus a binding
// table that lets a caller opt a logical unit of work into its own
// arena instead of always falling back to the shared main arena.
//
// spec.md's "thread-local arena" has no literal equivalent in Go:
// goroutines are not pinned to OS threads, and the runtime exposes no
// thread-local storage to user code. Binding is redefined in terms of a
// caller-supplied token (any comparable value — typically a worker-pool
// slot or a request-scoped key) rather than the current thread — see
// DESIGN.md's Open Question log for the full rationale.
package arenas
