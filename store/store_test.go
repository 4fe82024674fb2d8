package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/mirror/config"
	"github.com/use-agent/mirror/models"
)

func TestMemory_SaveGet(t *testing.T) {
	m := NewMemory(0)
	defer m.Close(context.Background())
	ctx := context.Background()

	job := &models.HarvestJob{
		ID:      "a",
		URL:     "https://x.example/",
		Status:  models.JobCompleted,
		Summary: &models.HarvestSummary{Resolved: 2, Failures: []models.ResourceFailure{{URL: "u", Kind: "css", Reason: "404"}}},
		Report:  &models.QualityReport{Overall: 90, HTML: models.CategoryScore{Score: 80, Issues: []string{"x"}}},
	}
	require.NoError(t, m.Save(ctx, job))

	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, job, got)

	// Mutating either side must not leak into the stored record.
	job.Summary.Failures[0].Reason = "changed"
	got.Report.HTML.Issues[0] = "changed"
	again, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "404", again.Summary.Failures[0].Reason)
	assert.Equal(t, "x", again.Report.HTML.Issues[0])
}

func TestMemory_NotFound(t *testing.T) {
	m := NewMemory(time.Hour)
	defer m.Close(context.Background())

	_, err := m.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_Sweep(t *testing.T) {
	m := NewMemory(time.Hour)
	defer m.Close(context.Background())
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, m.Save(ctx, &models.HarvestJob{ID: "old", CreatedAt: now.Add(-2 * time.Hour).Unix()}))
	require.NoError(t, m.Save(ctx, &models.HarvestJob{ID: "new", CreatedAt: now.Unix()}))

	m.sweep(now)

	_, err := m.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Get(ctx, "new")
	assert.NoError(t, err)
}

func TestMemory_CloseTwice(t *testing.T) {
	m := NewMemory(time.Minute)
	assert.NoError(t, m.Close(context.Background()))
	assert.NoError(t, m.Close(context.Background()))
}

func TestNew_Backends(t *testing.T) {
	s, err := New(context.Background(), config.StoreConfig{Backend: "memory"}, time.Hour)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
	_ = s.Close(context.Background())

	_, err = New(context.Background(), config.StoreConfig{Backend: "redis"}, 0)
	assert.Error(t, err)
}

func TestNewMongo_BadURI(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := New(ctx, config.StoreConfig{Backend: "mongo", MongoURI: "not-a-uri"}, 0)
	assert.Error(t, err)
}
