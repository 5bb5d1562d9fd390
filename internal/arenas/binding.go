package arenas

import (
	"sync"

	"github.com/bnclabs/memfit/internal/arena"
)

// Binding maps a caller-supplied token to its preferred arena — this
// module's replacement for thread-local storage (see doc.go). A token
// with no binding falls back to the directory's main arena, mirroring
// spec.md §4.G's "the default is the main arena" and its lazily
// initialized TLS slot.
type Binding struct {
	mu    sync.Mutex
	dir   *Directory
	bound map[interface{}]*arena.Arena
}

// NewBinding builds an empty binding table over dir.
func NewBinding(dir *Directory) *Binding {
	return &Binding{dir: dir, bound: make(map[interface{}]*arena.Arena)}
}

// ThreadLocalArena enables or disables a dedicated arena for token
// (spec.md's thread_local_arena(enable)). Enabling mints a fresh arena
// via the directory; disabling drops the binding so later lookups fall
// back to the main arena.
func (b *Binding) ThreadLocalArena(token interface{}, enable bool) *arena.Arena {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !enable {
		delete(b.bound, token)
		return b.dir.MainArena()
	}
	a, _ := b.dir.CreateArena()
	b.bound[token] = a
	return a
}

// Preferred returns token's bound arena, or the main arena if token has
// never called ThreadLocalArena(token, true).
func (b *Binding) Preferred(token interface{}) *arena.Arena {
	b.mu.Lock()
	a, ok := b.bound[token]
	b.mu.Unlock()
	if !ok {
		return b.dir.MainArena()
	}
	return a
}
