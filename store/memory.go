package store

import (
	"context"
	"sync"
	"time"

	"github.com/use-agent/mirror/models"
)

// Memory is an in-process Store. Records older than ttl (by CreatedAt) are
// evicted by a background sweep.
type Memory struct {
	jobs sync.Map // id -> *models.HarvestJob
	ttl  time.Duration
	done chan struct{}
	once sync.Once
}

// NewMemory creates a Memory store. A ttl <= 0 keeps records forever.
func NewMemory(ttl time.Duration) *Memory {
	m := &Memory{ttl: ttl, done: make(chan struct{})}
	if ttl > 0 {
		go m.sweepLoop(5 * time.Minute)
	}
	return m
}

func (m *Memory) Save(_ context.Context, job *models.HarvestJob) error {
	m.jobs.Store(job.ID, clone(job))
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*models.HarvestJob, error) {
	v, ok := m.jobs.Load(id)
	if !ok {
		return nil, ErrNotFound
	}
	return clone(v.(*models.HarvestJob)), nil
}

// Close stops the sweeper. Records stay readable.
func (m *Memory) Close(context.Context) error {
	m.once.Do(func() { close(m.done) })
	return nil
}

func (m *Memory) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			m.sweep(now)
		}
	}
}

func (m *Memory) sweep(now time.Time) {
	cutoff := now.Add(-m.ttl).Unix()
	m.jobs.Range(func(key, value any) bool {
		if value.(*models.HarvestJob).CreatedAt < cutoff {
			m.jobs.Delete(key)
		}
		return true
	})
}
