// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"sync"
	"testing"
)

func TestMemoryCache_GetSet(t *testing.T) {
	c := NewMemory()

	if got := c.Get("missing", "fallback"); got != "fallback" {
		t.Errorf("Get(missing) = %v, want the default", got)
	}

	c.Set("key", 17)
	if got := c.Get("key", nil); got != 17 {
		t.Errorf("Get(key) = %v, want 17", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestMemoryCache_GetsAndCas(t *testing.T) {
	c := NewMemory()

	if _, _, ok := c.Gets("key"); ok {
		t.Error("Gets(missing) ok = true, want false")
	}

	c.Set("key", "v1")
	value, tag, ok := c.Gets("key")
	if !ok || value != "v1" {
		t.Fatalf("Gets(key) = (%v, %v, %v), want (v1, tag, true)", value, tag, ok)
	}

	if !c.Cas("key", "v2", tag) {
		t.Fatal("Cas() with a current tag = false, want true")
	}
	if got := c.Get("key", nil); got != "v2" {
		t.Errorf("Get(key) after Cas = %v, want v2", got)
	}
}

func TestMemoryCache_StaleTagWritesNothing(t *testing.T) {
	c := NewMemory()
	c.Set("key", "v1")

	_, staleTag, _ := c.Gets("key")
	c.Set("key", "v2")

	if c.Cas("key", "clobber", staleTag) {
		t.Error("Cas() with a stale tag = true, want false")
	}
	if got := c.Get("key", nil); got != "v2" {
		t.Errorf("Get(key) = %v, want v2 untouched after failed Cas", got)
	}
}

func TestMemoryCache_CasOnMissingKey(t *testing.T) {
	c := NewMemory()
	if c.Cas("ghost", "value", 1) {
		t.Error("Cas(missing key) = true, want false")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0; a failed Cas must not create the key", c.Len())
	}
}

func TestMemoryCache_TagInvalidatedByEveryWrite(t *testing.T) {
	c := NewMemory()
	c.Set("key", "v1")
	_, tag1, _ := c.Gets("key")

	if !c.Cas("key", "v2", tag1) {
		t.Fatal("first Cas = false, want true")
	}
	// The successful Cas is itself a write, so the old tag is dead.
	if c.Cas("key", "v3", tag1) {
		t.Error("Cas() reusing a consumed tag = true, want false")
	}
}

func TestMemoryCache_Snapshot(t *testing.T) {
	c := NewMemory()
	c.Set("a", 1)
	c.Set("b", 2)

	snap := c.Snapshot()
	if len(snap) != 2 || snap["a"] != 1 || snap["b"] != 2 {
		t.Fatalf("Snapshot() = %v, want {a:1 b:2}", snap)
	}

	// The snapshot is detached from later writes.
	c.Set("c", 3)
	if _, ok := snap["c"]; ok {
		t.Error("Snapshot() reflects a write made after it was taken")
	}
}

func TestMemoryCache_ConcurrentCasOneWinner(t *testing.T) {
	c := NewMemory()
	c.Set("counter", 0)
	_, tag, _ := c.Gets("counter")

	const writers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if c.Cas("counter", i, tag) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("%d writers succeeded with the same tag, want exactly 1", wins)
	}
}
