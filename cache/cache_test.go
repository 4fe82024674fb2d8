package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestCache(max int) (*Cache, *time.Time) {
	c := New(max)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestKey(t *testing.T) {
	a := Key("https://x.example/", false, false, false)
	assert.Len(t, a, 64)
	assert.Equal(t, a, Key("https://x.example/", false, false, false))
	assert.NotEqual(t, a, Key("https://x.example/", true, false, false))
	assert.NotEqual(t, a, Key("https://x.example/", false, true, false))
	assert.NotEqual(t, a, Key("https://x.example/", false, false, true))
	assert.NotEqual(t, a, Key("https://y.example/", false, false, false))
}

func TestGet_MaxAge(t *testing.T) {
	c, now := newTestCache(10)
	defer c.Close()

	c.Set("k", "job-1")

	_, hit := c.Get("k", 0)
	assert.False(t, hit, "max_age 0 disables reuse")

	id, hit := c.Get("k", 60_000)
	assert.True(t, hit)
	assert.Equal(t, "job-1", id)

	*now = now.Add(2 * time.Minute)
	_, hit = c.Get("k", 60_000)
	assert.False(t, hit)

	_, hit = c.Get("missing", 60_000)
	assert.False(t, hit)
}

func TestSet_EvictsOldest(t *testing.T) {
	c, now := newTestCache(2)
	defer c.Close()

	c.Set("a", "1")
	*now = now.Add(time.Second)
	c.Set("b", "2")
	*now = now.Add(time.Second)
	c.Set("c", "3")

	assert.Equal(t, 2, c.Len())
	_, hit := c.Get("a", 60_000)
	assert.False(t, hit)
	_, hit = c.Get("c", 60_000)
	assert.True(t, hit)

	// Overwriting an existing key does not evict.
	c.Set("b", "22")
	assert.Equal(t, 2, c.Len())
	id, _ := c.Get("b", 60_000)
	assert.Equal(t, "22", id)
}

func TestEvictExpired(t *testing.T) {
	c, now := newTestCache(10)
	defer c.Close()

	c.Set("old", "1")
	*now = now.Add(25 * time.Hour)
	c.Set("new", "2")
	c.evictExpired()

	assert.Equal(t, 1, c.Len())
	c.Delete("new")
	assert.Equal(t, 0, c.Len())
}
