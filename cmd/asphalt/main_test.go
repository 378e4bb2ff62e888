package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testScript = `
; a straight road with a bend and a tree beside it
(def a (road (vec3 0 0 0) (vec3 20 0 0)))
(road a (vec3 30 10 0) :curve :circular)
(tree (vec3 0 20 0))
`

// execute runs the CLI with args and a config pointing the store into dir.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cfgPath := filepath.Join(dir, "asphalt.yaml")
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := "log:\n  level: error\nkernel:\n  mesh_cells: 96\nsnapshot:\n  store_path: " +
			filepath.Join(dir, "store.db") + "\n"
		require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	}
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeScript(t *testing.T, dir, src string) string {
	t.Helper()
	p := filepath.Join(dir, "town.road")
	require.NoError(t, os.WriteFile(p, []byte(src), 0o644))
	return p
}

func TestRunPrintsSummary(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, testScript)

	out, err := execute(t, dir, "run", script)
	require.NoError(t, err)
	assert.Contains(t, out, "nodes: 3  segments: 2  trees: 1  commands: 3")
}

func TestRunReportsScriptErrors(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "(road (vec3 0 0 0) (vec3 3 0 0))")

	out, err := execute(t, dir, "run", script)
	require.Error(t, err)
	assert.Contains(t, out, "too short")
}

func TestRunSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, testScript)
	snap := filepath.Join(dir, "town.snap")

	_, err := execute(t, dir, "run", script, "--out", snap)
	require.NoError(t, err)

	out, err := execute(t, dir, "snapshot", "validate", snap)
	require.NoError(t, err)
	assert.Contains(t, out, "ok (3 nodes, 2 segments, 1 trees)")

	// Extending the saved network continues its identifier counters.
	ext := filepath.Join(dir, "ext.road")
	require.NoError(t, os.WriteFile(ext, []byte("(road (snap (vec3 30 10 0)) (vec3 30 40 0))"), 0o644))
	out, err = execute(t, dir, "run", ext, "--base", snap)
	require.NoError(t, err)
	assert.Contains(t, out, "nodes: 4  segments: 3  trees: 1  commands: 1")
}

func TestSnapshotStore(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, testScript)
	snap := filepath.Join(dir, "town.snap")
	_, err := execute(t, dir, "run", script, "--out", snap)
	require.NoError(t, err)

	out, err := execute(t, dir, "snapshot", "save", snap, "--name", "town")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.Len(t, id, 36)

	out, err = execute(t, dir, "snapshot", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "town")

	restored := filepath.Join(dir, "restored.snap")
	_, err = execute(t, dir, "snapshot", "load", "town", "--out", restored)
	require.NoError(t, err)
	out, err = execute(t, dir, "snapshot", "validate", restored)
	require.NoError(t, err)
	assert.Contains(t, out, "3 nodes, 2 segments")

	byID := filepath.Join(dir, "by-id.snap")
	_, err = execute(t, dir, "snapshot", "load", "--id", id, "--out", byID)
	require.NoError(t, err)

	_, err = execute(t, dir, "snapshot", "load", "missing", "--out", filepath.Join(dir, "x.snap"))
	require.Error(t, err)
	_, err = execute(t, dir, "snapshot", "load", "town", "--id", id, "--out", byID)
	require.Error(t, err)
}

func TestSnapshotValidateRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.snap")
	require.NoError(t, os.WriteFile(bad, []byte(`{"header":{"version":1}}`), 0o644))

	_, err := execute(t, dir, "snapshot", "validate", bad)
	require.Error(t, err)
}

func TestMeshCommand(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "(road (vec3 0 0 0) (vec3 20 0 0))\n(tree (vec3 0 20 0))")
	snap := filepath.Join(dir, "town.snap")
	_, err := execute(t, dir, "run", script, "--out", snap)
	require.NoError(t, err)

	out, err := execute(t, dir, "mesh", snap)
	require.NoError(t, err)
	assert.Contains(t, out, "segment#0")
	assert.Contains(t, out, "tree#0")
	assert.Contains(t, out, "total")
}

func TestWatchFileDebounces(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, testScript)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls atomic.Int32
	errc := make(chan error, 1)
	go func() {
		errc <- watchFile(ctx, script, 100*time.Millisecond, func() { calls.Add(1) })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(script, []byte(testScript+"\n"), 0o644))
	}
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "burst of writes should trigger one evaluation")

	// Other files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.road"), []byte("x"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watchFile did not return")
	}
}
