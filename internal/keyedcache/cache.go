// Package keyedcache holds previously persisted entities in memory, keyed by a
// caller-defined natural key.
package keyedcache

import (
	"sort"
	"sync"
)

// Cache is a thread-safe natural-key index. Each instance owns its own lock,
// so caches for different entity types never contend.
type Cache[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	keyFn func(T) string
}

// New seeds a cache. keyFn must be pure; later items win on duplicate keys.
func New[T any](items []T, keyFn func(T) string) *Cache[T] {
	c := &Cache[T]{
		items: make(map[string]T, len(items)),
		keyFn: keyFn,
	}
	for _, it := range items {
		c.items[keyFn(it)] = it
	}
	return c
}

// Upsert stores item under keyFn(item), replacing any previous entry.
func (c *Cache[T]) Upsert(item T) {
	key := c.keyFn(item)
	c.mu.Lock()
	c.items[key] = item
	c.mu.Unlock()
}

// Delete drops key. Missing keys are ignored.
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Get returns the item for key. A miss is reported by ok=false.
func (c *Cache[T]) Get(key string) (item T, ok bool) {
	c.mu.RLock()
	item, ok = c.items[key]
	c.mu.RUnlock()
	return item, ok
}

// All returns a snapshot of the cached items in no particular order.
func (c *Cache[T]) All() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, it)
	}
	return out
}

// Keys returns the cached keys, sorted.
func (c *Cache[T]) Keys() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.items))
	for k := range c.items {
		out = append(out, k)
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
