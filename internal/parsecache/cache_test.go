package parsecache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_GetAdd(t *testing.T) {
	c := New[string](4, time.Minute)
	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Add("k", "v")
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestCache_NilIsDisabled(t *testing.T) {
	var c *Cache[int]
	_, ok := c.Get("k")
	assert.False(t, ok)
	c.Add("k", 1) // no-op, no panic
	assert.Equal(t, 0, c.Len())
}

func TestCache_Bounded(t *testing.T) {
	c := New[int](2, time.Minute)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry evicted")
}

func TestCache_ConcurrentSameKey(t *testing.T) {
	// Entries are immutable once written; racing writers on the same key
	// must not corrupt anything.
	c := New[int](8, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Add("same", 7)
			v, ok := c.Get("same")
			if ok {
				assert.Equal(t, 7, v)
			}
		}()
	}
	wg.Wait()
}

func TestKey_DependsOnContentAndSchema(t *testing.T) {
	a := Key("content", "schema-a")
	assert.Equal(t, a, Key("content", "schema-a"))
	assert.NotEqual(t, a, Key("content", "schema-b"))
	assert.NotEqual(t, a, Key("other", "schema-a"))
}
