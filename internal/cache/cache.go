// Package cache provides a bounded least-recently-used cache.
//
// Two instances back the render path: one holding compiled render
// pipelines keyed by photometric interpretation, one holding decoded
// image frames keyed by a caller-supplied string. Both need strict LRU
// semantics: Get promotes, Set on a full cache evicts exactly the least
// recently used entry.
package cache

import "sync"

// Cache is a generic LRU cache with a hard capacity.
//
// Cache is safe for concurrent use.
// Cache must not be copied after creation (has mutex).
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	entries  map[K]*entry[K, V]
	list     lruList[K]
	capacity int
	onEvict  func(K, V)
}

// entry pairs a cached value with its list node for O(1) promotion.
type entry[K comparable, V any] struct {
	value V
	node  *lruNode[K]
}

// New creates a cache holding at most capacity entries.
// A capacity below 1 is treated as 1.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[K, V]{
		entries:  make(map[K]*entry[K, V], capacity),
		capacity: capacity,
	}
}

// OnEvict registers a callback invoked for every entry removed by
// capacity eviction or Clear. Used to release GPU resources held by
// evicted pipelines. Must be set before the cache is shared.
func (c *Cache[K, V]) OnEvict(fn func(K, V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// Get retrieves a value and promotes its key to most recently used.
// Returns (value, true) if found, (zero, false) otherwise.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.list.MoveToFront(e.node)
	return e.value, true
}

// Set stores a value. An existing key is replaced and promoted. When
// the cache is full the least recently used entry is evicted first.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.list.MoveToFront(e.node)
		c.mu.Unlock()
		return
	}

	var evicted []func()
	for len(c.entries) >= c.capacity {
		oldest, ok := c.list.RemoveOldest()
		if !ok {
			break
		}
		old := c.entries[oldest]
		delete(c.entries, oldest)
		if c.onEvict != nil && old != nil {
			fn, k, v := c.onEvict, oldest, old.value
			evicted = append(evicted, func() { fn(k, v) })
		}
	}

	c.entries[key] = &entry[K, V]{
		value: value,
		node:  c.list.PushFront(key),
	}
	c.mu.Unlock()

	// Callbacks run outside the lock: they may destroy GPU pipelines,
	// which must not happen while holding the cache mutex.
	for _, fn := range evicted {
		fn()
	}
}

// Delete removes an entry without invoking the eviction callback.
// Returns true if the entry was found and removed.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.list.Remove(e.node)
	delete(c.entries, key)
	return true
}

// Clear removes all entries, invoking the eviction callback for each.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	var evicted []func()
	if c.onEvict != nil {
		for k, e := range c.entries {
			fn, key, v := c.onEvict, k, e.value
			evicted = append(evicted, func() { fn(key, v) })
		}
	}
	c.entries = make(map[K]*entry[K, V], c.capacity)
	c.list.Clear()
	c.mu.Unlock()

	for _, fn := range evicted {
		fn()
	}
}

// Len returns the number of entries in the cache.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity returns the maximum number of entries.
func (c *Cache[K, V]) Capacity() int {
	return c.capacity
}
