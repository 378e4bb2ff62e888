package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/asphalt/pkg/config"
)

// newTestApp starts an App with a small mesh resolution and a store in a
// temporary directory.
func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Kernel.MeshCells = 96
	cfg.Snapshot.StorePath = filepath.Join(t.TempDir(), "store.db")
	app := NewApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	app.startup(context.Background())
	t.Cleanup(func() { app.shutdown(context.Background()) })
	return app
}

func requireNoErrors(t *testing.T, r EvalResult) {
	t.Helper()
	if len(r.Errors) > 0 {
		for _, e := range r.Errors {
			t.Errorf("eval error: %s", e.Message)
		}
		t.FailNow()
	}
}

// TestE2EExampleTown evaluates the bundled example script end to end.
func TestE2EExampleTown(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("examples", "town.road"))
	if err != nil {
		t.Fatalf("reading example: %v", err)
	}
	app := newTestApp(t)
	result := app.Evaluate(string(src))
	requireNoErrors(t, result)

	if result.Nodes != 8 || result.Segments != 7 || result.Trees != 2 {
		t.Fatalf("got %d nodes, %d segments, %d trees; want 8, 7, 2",
			result.Nodes, result.Segments, result.Trees)
	}
	if len(result.Meshes) != 9 {
		t.Fatalf("expected 9 meshes, got %d", len(result.Meshes))
	}
	for _, m := range result.Meshes {
		if len(m.Vertices) == 0 || len(m.Indices) == 0 {
			t.Errorf("mesh %s is empty", m.Owner)
		}
		if len(m.Vertices)%3 != 0 || len(m.Indices)%3 != 0 {
			t.Errorf("mesh %s has ragged arrays", m.Owner)
		}
		if m.Color == "" {
			t.Errorf("mesh %s has no color", m.Owner)
		}
	}
	if result.Meshes[0].Owner != "segment#0" {
		t.Errorf("first mesh = %q, want segment#0", result.Meshes[0].Owner)
	}
	if last := result.Meshes[len(result.Meshes)-1]; last.Color != treeColor {
		t.Errorf("last mesh %s should be a tree", last.Owner)
	}
}

// TestE2EEmptySource ensures empty input yields no meshes and no errors, and
// that slices serialize as [] rather than null.
func TestE2EEmptySource(t *testing.T) {
	app := newTestApp(t)
	result := app.Evaluate("")

	if len(result.Errors) != 0 {
		t.Errorf("expected 0 errors for empty source, got %d", len(result.Errors))
	}
	if result.Meshes == nil || result.Errors == nil || result.Warnings == nil {
		t.Error("result slices should be non-nil")
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes for empty source, got %d", len(result.Meshes))
	}
}

// TestE2ESyntaxError ensures eval errors are reported, not fatal errors.
func TestE2ESyntaxError(t *testing.T) {
	app := newTestApp(t)
	result := app.Evaluate("(+ 1 2)\n(road (vec3 0 0 0)")

	if len(result.Errors) == 0 {
		t.Fatal("expected eval errors for syntax error")
	}
	if result.Errors[0].Message == "" {
		t.Error("syntax error should have a non-empty message")
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes on error, got %d", len(result.Meshes))
	}
}

// TestE2EErrorKeepsNetwork checks that a failing script leaves the previous
// network in place.
func TestE2EErrorKeepsNetwork(t *testing.T) {
	app := newTestApp(t)
	requireNoErrors(t, app.Evaluate("(road (vec3 0 0 0) (vec3 20 0 0))"))

	result := app.Evaluate("(road (vec3 0 0 0) (vec3 3 0 0))")
	if len(result.Errors) == 0 || !strings.Contains(result.Errors[0].Message, "too short") {
		t.Fatalf("expected a too short error, got %+v", result.Errors)
	}
	if got := len(app.Meshes()); got != 1 {
		t.Errorf("expected the earlier segment mesh to remain, got %d meshes", got)
	}
}

// TestE2EReevaluateReplaces checks that each evaluation starts from an empty
// network and drops stale meshes.
func TestE2EReevaluateReplaces(t *testing.T) {
	app := newTestApp(t)
	requireNoErrors(t, app.Evaluate("(chain (vec3 0 0 0) (vec3 20 0 0) (vec3 40 0 0))"))
	if got := len(app.Meshes()); got != 2 {
		t.Fatalf("expected 2 meshes, got %d", got)
	}

	result := app.Evaluate("(tree (vec3 5 5 0))")
	requireNoErrors(t, result)
	if len(result.Meshes) != 1 || result.Meshes[0].Owner != "tree#0" {
		t.Fatalf("expected only tree#0, got %+v", owners(result.Meshes))
	}
	if app.meshes.size() != 1 {
		t.Errorf("cache holds %d meshes, want 1", app.meshes.size())
	}
}

func TestPickingBindings(t *testing.T) {
	app := newTestApp(t)
	requireNoErrors(t, app.Evaluate("(road (vec3 0 0 0) (vec3 20 0 0))"))

	hit := app.SegmentAt(10, 0, 0)
	if !hit.Found || hit.Owner != "segment#0" {
		t.Errorf("SegmentAt(10,0,0) = %+v", hit)
	}
	if miss := app.SegmentAt(10, 50, 0); miss.Found {
		t.Errorf("SegmentAt(10,50,0) = %+v, want miss", miss)
	}

	snaps := app.SnapCandidates(19, 1, 0)
	if len(snaps) != 1 {
		t.Fatalf("expected one open side at the end node, got %+v", snaps)
	}
	if snaps[0].Pos != [3]float64{20, 0, 0} {
		t.Errorf("snap pos = %v", snaps[0].Pos)
	}
	if got := app.SnapCandidates(500, 500, 0); len(got) != 0 {
		t.Errorf("expected no candidates far away, got %+v", got)
	}
}

func TestRemoveSegmentBinding(t *testing.T) {
	app := newTestApp(t)
	requireNoErrors(t, app.Evaluate("(road (vec3 0 0 0) (vec3 20 0 0))"))

	ok, err := app.RemoveSegment(0)
	if err != nil || !ok {
		t.Fatalf("RemoveSegment(0) = %v, %v", ok, err)
	}
	if got := len(app.Meshes()); got != 0 {
		t.Errorf("expected meshes to be gone, got %d", got)
	}
	ok, err = app.RemoveSegment(0)
	if err != nil || ok {
		t.Errorf("second RemoveSegment(0) = %v, %v; want false, nil", ok, err)
	}
}

func TestSnapshotBindings(t *testing.T) {
	app := newTestApp(t)
	requireNoErrors(t, app.Evaluate("(road (vec3 0 0 0) (vec3 20 0 0))\n(tree (vec3 0 20 0))"))

	id, err := app.SaveSnapshot("first")
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if len(id) != 36 {
		t.Errorf("unexpected id %q", id)
	}
	if _, err := app.SaveSnapshot("  "); err == nil {
		t.Error("expected an error for a blank name")
	}

	requireNoErrors(t, app.Evaluate(""))
	result := app.LoadSnapshot("first")
	requireNoErrors(t, result)
	if result.Segments != 1 || result.Trees != 1 || len(result.Meshes) != 2 {
		t.Errorf("restored %d segments, %d trees, %d meshes", result.Segments, result.Trees, len(result.Meshes))
	}

	if missing := app.LoadSnapshot("nope"); len(missing.Errors) == 0 {
		t.Error("expected an error for an unknown snapshot")
	}

	list, err := app.Snapshots()
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(list) != 1 || list[0].ID != id || list[0].Name != "first" || list[0].Segments != 1 {
		t.Errorf("Snapshots() = %+v", list)
	}
}

func TestStatsBinding(t *testing.T) {
	app := newTestApp(t)
	requireNoErrors(t, app.Evaluate("(road (vec3 0 0 0) (vec3 20 0 0))"))
	if _, err := app.RemoveSegment(7); err != nil {
		t.Fatal(err)
	}

	stats, err := app.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	checks := []struct {
		key  string
		want float64
	}{
		{`asphalt_editor_commits_total{command="restore",result="ok"}`, 1},
		{`asphalt_editor_commits_total{command="remove_segment",result="noop"}`, 1},
		{`asphalt_graph_segments`, 1},
		{`asphalt_graph_nodes`, 2},
	}
	for _, c := range checks {
		if got, ok := stats[c.key]; !ok || got != c.want {
			t.Errorf("stats[%s] = %v (present %v), want %v", c.key, got, ok, c.want)
		}
	}
	if stats["asphalt_editor_mesh_duration_seconds_count"] < 1 {
		t.Error("expected at least one mesh refresh to be observed")
	}
}

func TestBindingsBeforeStartup(t *testing.T) {
	app := NewApp(config.Default(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if r := app.Evaluate("(+ 1 2)"); len(r.Errors) == 0 {
		t.Error("expected an error before startup")
	}
	if _, err := app.RemoveSegment(0); err == nil {
		t.Error("expected an error before startup")
	}
	if _, err := app.SaveSnapshot("x"); err == nil {
		t.Error("expected an error without a store")
	}
	app.shutdown(context.Background())
}

// TestE2ERapidEvaluation alternates valid and invalid sources on one App.
func TestE2ERapidEvaluation(t *testing.T) {
	app := newTestApp(t)
	sources := []string{
		`(road (vec3 0 0 0) (vec3 20 0 0))`,
		`(road (vec3 0 0 0)`,
		`(chain (vec3 0 0 0) (vec3 20 0 0) (vec3 40 0 0))`,
		``,
		`(undefined-fn 1 2)`,
		`(tree (vec3 1 1 0))`,
	}
	for i, source := range sources {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("iteration %d panicked: %v", i, r)
				}
			}()
			_ = app.Evaluate(source)
		}()
	}
	result := app.Evaluate(`(road (vec3 0 0 0) (vec3 20 0 0))`)
	requireNoErrors(t, result)
	if len(result.Meshes) != 1 {
		t.Errorf("expected 1 mesh after the burst, got %d", len(result.Meshes))
	}
}

func owners(ms []MeshData) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Owner
	}
	return out
}
