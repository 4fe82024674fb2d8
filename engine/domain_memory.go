package engine

import (
	"sync"
	"time"
)

type memoryEntry struct {
	engine    string
	expiresAt time.Time
}

// Memory remembers which engine last rendered each domain. Entries expire
// after ttl and are pruned hourly. A nil *Memory remembers nothing.
type Memory struct {
	entries sync.Map // domain -> *memoryEntry
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
}

// NewMemory creates a Memory and starts its pruning goroutine.
func NewMemory(ttl time.Duration) *Memory {
	m := &Memory{ttl: ttl, done: make(chan struct{})}
	go m.pruneLoop(time.Hour)
	return m
}

// Recall returns the remembered engine for domain, or "".
func (m *Memory) Recall(domain string) string {
	if m == nil {
		return ""
	}
	v, ok := m.entries.Load(domain)
	if !ok {
		return ""
	}
	e := v.(*memoryEntry)
	if time.Now().After(e.expiresAt) {
		m.entries.Delete(domain)
		return ""
	}
	return e.engine
}

// Remember records the engine that rendered domain.
func (m *Memory) Remember(domain, engine string) {
	if m == nil || domain == "" {
		return
	}
	m.entries.Store(domain, &memoryEntry{engine: engine, expiresAt: time.Now().Add(m.ttl)})
}

// Forget drops the entry for domain.
func (m *Memory) Forget(domain string) {
	if m == nil {
		return
	}
	m.entries.Delete(domain)
}

// Stop terminates the pruning goroutine. It is safe to call twice.
func (m *Memory) Stop() {
	if m == nil {
		return
	}
	m.once.Do(func() { close(m.done) })
}

func (m *Memory) pruneLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			m.prune(now)
		}
	}
}

func (m *Memory) prune(now time.Time) {
	m.entries.Range(func(key, value any) bool {
		if now.After(value.(*memoryEntry).expiresAt) {
			m.entries.Delete(key)
		}
		return true
	})
}
