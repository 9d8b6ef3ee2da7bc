package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ha1tch/flowdesigner/internal/config"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, config.Default().Validate())
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))

	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
[api]
base_url = "https://forms.example.com/api"
timeout = "5s"

[canvas]
grid_size = 10

[autosave]
enabled = false
interval = "2m"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://forms.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout.Std())
	assert.Equal(t, 3, cfg.API.Retries)
	assert.Equal(t, 10.0, cfg.Canvas.GridSize)
	assert.Equal(t, 25.0, cfg.Canvas.Snap)
	assert.False(t, cfg.Autosave.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Autosave.Interval.Std())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		message string
	}{
		{"bad level", "[log]\nlevel = \"loud\"\n", "log.level: must be one of"},
		{"bad url", "[api]\nbase_url = \"not a url\"\n", "api.base_url"},
		{"negative retries", "[api]\nretries = -1\n", "api.retries: must be at least 0"},
		{"zero interval", "[autosave]\ninterval = \"0s\"\n", "autosave.interval: must be greater than 0"},
		{"bad target", "[autosave]\ntarget = \"s3\"\n", "autosave.target"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeFile(t, tt.content))
			require.ErrorIs(t, err, config.ErrInvalid)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadRejectsMalformed(t *testing.T) {
	_, err := config.Load(writeFile(t, "[api]\ntimeout = \"soon\"\n"))
	assert.Error(t, err)

	_, err = config.Load(writeFile(t, "[api\n"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := config.Default()
	cfg.API.Token = "secret"
	cfg.Layout.NodeSpacing = 90
	cfg.Log.Format = "json"

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, config.Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `timeout = "30s"`)

	got, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestConversions(t *testing.T) {
	cfg := config.Default()
	cfg.Canvas.GridSize = 10
	cfg.Canvas.UndoLimit = 20

	opts := cfg.CanvasOptions()
	assert.Equal(t, 10.0, opts.Grid)
	assert.Equal(t, 25.0, opts.SnapRadius)
	assert.Equal(t, 20, opts.UndoLimit)
	assert.Equal(t, 250.0, opts.Layout.LevelSpacing)

	b := cfg.BackendOptions()
	assert.Equal(t, cfg.API.BaseURL, b.BaseURL)
	assert.Equal(t, 30*time.Second, b.Timeout)
	assert.Equal(t, 3, b.Retry.MaxRetries)
	assert.Equal(t, 200*time.Millisecond, b.Retry.BaseDelay)

	assert.Equal(t, 1200.0, cfg.ViewportSize().X)
}
