// Package cache remembers recently completed harvests so a repeat request
// for the same page and options can reuse the finished job.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"
)

// maxRetention bounds how long any entry is kept regardless of max_age.
const maxRetention = 24 * time.Hour

type entry struct {
	jobID     string
	createdAt time.Time
}

// Cache maps a request key to the ID of the job that served it.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	maxEntries int
	now        func() time.Time
	done       chan struct{}
	once       sync.Once
}

// New creates a Cache holding at most maxEntries keys.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	c := &Cache{
		entries:    make(map[string]entry),
		maxEntries: maxEntries,
		now:        time.Now,
		done:       make(chan struct{}),
	}
	go c.cleanupLoop(10 * time.Minute)
	return c
}

// Key identifies a request by everything that changes its output.
func Key(url string, stealth, placeholders, respectRobots bool) string {
	h := sha256.New()
	h.Write([]byte(url))
	for _, b := range []bool{stealth, placeholders, respectRobots} {
		h.Write([]byte("|" + strconv.FormatBool(b)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the job stored under key if it is younger than maxAgeMs
// milliseconds. maxAgeMs <= 0 never hits.
func (c *Cache) Get(key string, maxAgeMs int) (string, bool) {
	if maxAgeMs <= 0 {
		return "", false
	}
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if c.now().Sub(e.createdAt) > time.Duration(maxAgeMs)*time.Millisecond {
		return "", false
	}
	return e.jobID, true
}

// Set records that jobID completed for key. At capacity the oldest entry
// is evicted.
func (c *Cache) Set(key, jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.createdAt.Before(oldest) {
				oldestKey, oldest = k, e.createdAt
			}
		}
		delete(c.entries, oldestKey)
	}
	c.entries[key] = entry{jobID: jobID, createdAt: c.now()}
}

// Delete forgets key, e.g. when its job record has expired.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Cache) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() {
	cutoff := c.now().Add(-maxRetention)
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if e.createdAt.Before(cutoff) {
			delete(c.entries, k)
		}
	}
}
