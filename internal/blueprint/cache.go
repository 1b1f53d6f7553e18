package blueprint

import "sync"

// cache is an unbounded id-keyed cache. Entries live until invalidated.
// Each invalidation bumps the id's version so a fetch that started before it
// cannot repopulate the entry with the stale result.
type cache[T any] struct {
	mu       sync.RWMutex
	entries  map[string]T
	versions map[string]uint64
	clone    func(T) T
}

func newCache[T any](clone func(T) T) *cache[T] {
	return &cache[T]{
		entries:  make(map[string]T),
		versions: make(map[string]uint64),
		clone:    clone,
	}
}

func (c *cache[T]) get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[id]
	if !ok {
		return v, false
	}
	return c.clone(v), true
}

func (c *cache[T]) version(id string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.versions[id]
}

// setIfCurrent stores v unless id was invalidated since version was read.
func (c *cache[T]) setIfCurrent(id string, version uint64, v T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[id] != version {
		return false
	}
	c.entries[id] = c.clone(v)
	return true
}

func (c *cache[T]) invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	c.versions[id]++
}

func (c *cache[T]) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
