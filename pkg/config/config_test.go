package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/asphalt/pkg/config"
	"github.com/chazu/asphalt/pkg/lane"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "asphalt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, lane.NewNodeType(lane.Standard, 2), cfg.RoadType())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
log:
  level: debug
  format: json
road:
  width: wide
  lanes: 3
script:
  timeout: 250ms
editor:
  mesh_workers: 8
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, lane.NewNodeType(lane.Wide, 3), cfg.RoadType())
	assert.Equal(t, 250*time.Millisecond, cfg.Script.Timeout)
	assert.Equal(t, 8, cfg.Editor.MeshWorkers)
	// Untouched sections keep their defaults.
	assert.Equal(t, config.Default().Editor.QueueSize, cfg.Editor.QueueSize)
	assert.Equal(t, config.Default().Snapshot, cfg.Snapshot)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad level", "log:\n  level: loud\n"},
		{"too many lanes", "road:\n  lanes: 7\n"},
		{"unknown width", "road:\n  width: enormous\n"},
		{"zero workers", "editor:\n  mesh_workers: 0\n"},
		{"tiny mesh", "kernel:\n  mesh_cells: 2\n"},
		{"empty store", "snapshot:\n  store_path: \"\"\n"},
		{"not yaml", "log: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeFile(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolvePath(t *testing.T) {
	t.Setenv(config.EnvPath, "/etc/asphalt.yaml")
	assert.Equal(t, "given.yaml", config.ResolvePath("given.yaml"))
	assert.Equal(t, "/etc/asphalt.yaml", config.ResolvePath(""))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := config.NewLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	log.Info("hidden")
	log.Warn("shown", "segment", "segment#1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"segment":"segment#1"`)
}
