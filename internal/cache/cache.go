// SPDX-License-Identifier: MPL-2.0

// Package cache defines the key/value caching protocol modules exchange
// under the "cache" capability, and an in-process implementation of it.
//
// The protocol supports optimistic concurrency: Gets returns the value
// together with an opaque tag, and Cas updates the key only when the tag is
// still current. A stale tag makes Cas a no-op returning false — never a
// partial write — so concurrent writers can coordinate without locks.
package cache

import "sync"

type (
	// Tag is the opaque check-and-set token returned by Gets. A tag is
	// valid only until the next write to the same key.
	Tag uint64

	// Cache is the protocol a module publishing the "cache" capability
	// must honor.
	Cache interface {
		// Get returns the value of key, or def when the key does not exist.
		Get(key string, def any) any
		// Gets returns the value of key and its current CAS tag; ok is
		// false when the key does not exist.
		Gets(key string) (value any, tag Tag, ok bool)
		// Set unconditionally stores value under key.
		Set(key string, value any)
		// Cas stores value under key only when tag is still the key's
		// current tag. It returns false, writing nothing, when another
		// writer updated the key since the tag was obtained or the key is
		// gone.
		Cas(key string, value any, tag Tag) bool
	}

	entry struct {
		value any
		tag   Tag
	}

	// MemoryCache is an in-process Cache. Safe for concurrent use, so a
	// module parallelizing work internally can share it across goroutines.
	MemoryCache struct {
		mu      sync.Mutex
		entries map[string]entry
		lastTag Tag
	}
)

// NewMemory creates an empty in-process cache.
func NewMemory() *MemoryCache {
	return &MemoryCache{entries: make(map[string]entry)}
}

// Get returns the value of key, or def when the key does not exist.
func (c *MemoryCache) Get(key string, def any) any {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return def
	}
	return e.value
}

// Gets returns the value of key and its current CAS tag.
func (c *MemoryCache) Gets(key string) (any, Tag, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, 0, false
	}
	return e.value, e.tag, true
}

// Set unconditionally stores value under key, invalidating outstanding tags.
func (c *MemoryCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastTag++
	c.entries[key] = entry{value: value, tag: c.lastTag}
}

// Cas stores value under key only when tag matches the key's current tag.
func (c *MemoryCache) Cas(key string, value any, tag Tag) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.tag != tag {
		return false
	}
	c.lastTag++
	c.entries[key] = entry{value: value, tag: c.lastTag}
	return true
}

// Snapshot returns a copy of the current contents. The copy is detached:
// later writes to the cache do not show up in it.
func (c *MemoryCache) Snapshot() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]any, len(c.entries))
	for key, e := range c.entries {
		out[key] = e.value
	}
	return out
}

// Len returns the number of stored keys.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
