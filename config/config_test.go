package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "./downloads", cfg.Harvest.OutputRoot)
	assert.Equal(t, 8, cfg.Harvest.Workers)
	assert.Equal(t, 30*time.Second, cfg.Harvest.FetchTimeout)
	assert.False(t, cfg.Harvest.Placeholders)
	assert.Equal(t, []string{"Media"}, cfg.Render.BlockedResourceTypes)
	assert.Equal(t, 1500*time.Millisecond, cfg.Render.SettleDelay)
	assert.Equal(t, []time.Duration{0, 8 * time.Second, 15 * time.Second}, cfg.Engine.EscalationDelays)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 2500, cfg.Harvest.ImageMaxDimension)
	assert.Equal(t, 80, cfg.Harvest.JPEGQuality)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MIRROR_WORKERS", "64")
	t.Setenv("MIRROR_PLACEHOLDERS", "true")
	t.Setenv("MIRROR_FETCH_TIMEOUT", "5s")
	t.Setenv("MIRROR_API_KEYS", "a, b,,c")
	t.Setenv("MIRROR_ESCALATION_DELAYS", "0s,1s")

	cfg := Load()

	assert.Equal(t, 16, cfg.Harvest.Workers, "workers are clamped")
	assert.True(t, cfg.Harvest.Placeholders)
	assert.Equal(t, 5*time.Second, cfg.Harvest.FetchTimeout)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Auth.APIKeys)
	assert.Equal(t, []time.Duration{0, time.Second}, cfg.Engine.EscalationDelays)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("MIRROR_PORT", "not-a-number")
	t.Setenv("MIRROR_WORKERS", "0")

	cfg := Load()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1, cfg.Harvest.Workers)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestNewLogger_FanoutToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.log")
	var stdout bytes.Buffer

	logger, cleanup := newLogger(LogConfig{Level: "info", Format: "text", File: path}, &stdout)
	logger.Info("harvest done", "job_id", "j1")
	require.NoError(t, cleanup())

	assert.Contains(t, stdout.String(), "harvest done")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, "harvest done", rec["msg"])
	assert.Equal(t, "j1", rec["job_id"])
}
