package local

import "sync"

// collection is an append-only container shared by the tasks of one phase.
type collection[T any] struct {
	mu    sync.Mutex
	items []T
}

func (c *collection[T]) add(items ...T) {
	c.mu.Lock()
	c.items = append(c.items, items...)
	c.mu.Unlock()
}

// snapshot returns the items added so far. It is only read after the barrier
// of the phase that filled the collection.
func (c *collection[T]) snapshot() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items
}
