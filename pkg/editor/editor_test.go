package editor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/asphalt/pkg/curve"
	"github.com/chazu/asphalt/pkg/editor"
	"github.com/chazu/asphalt/pkg/ids"
	"github.com/chazu/asphalt/pkg/kernel"
	"github.com/chazu/asphalt/pkg/kernel/sdfx"
	"github.com/chazu/asphalt/pkg/lane"
	"github.com/chazu/asphalt/pkg/road"
)

var std2 = lane.NewNodeType(lane.Standard, 2)

func vec(x, y, z float64) v3.Vec { return v3.Vec{X: x, Y: y, Z: z} }

// recordingSink keeps the latest mesh per owner and the order of calls.
type recordingSink struct {
	mu     sync.Mutex
	meshes map[string]*kernel.Mesh
	calls  []string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{meshes: make(map[string]*kernel.Mesh)}
}

func (s *recordingSink) Upsert(owner string, m *kernel.Mesh) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meshes[owner] = m
	s.calls = append(s.calls, "+"+owner)
}

func (s *recordingSink) Remove(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.meshes, owner)
	s.calls = append(s.calls, "-"+owner)
}

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// start runs e until the test ends.
func start(t *testing.T, e *editor.Editor) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-errc:
		case <-time.After(5 * time.Second):
			t.Error("editor did not stop")
		}
	})
}

func TestSubmitAppliesInOrder(t *testing.T) {
	e := editor.New(nil)
	start(t, e)
	ctx := context.Background()

	res, err := e.Submit(ctx, editor.AddCmd{Builder: road.StraightRoad(vec(0, 0, 0), vec(20, 0, 0), std2), Sel: std2})
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Len(t, res.Segments, 1)
	require.NotNil(t, res.Snap)

	next, err := road.FitRoad(curve.TypeStraight, std2, road.SnapNode{Config: *res.Snap}, road.NewNode{Pos: vec(40, 0, 0), Type: std2})
	require.NoError(t, err)
	res2, err := e.Submit(ctx, editor.AddCmd{Builder: next, Sel: std2})
	require.NoError(t, err)
	assert.Equal(t, []ids.SegmentID{ids.FromUint64[ids.SegmentCat](1)}, res2.Segments)

	view := e.View()
	assert.Equal(t, 3, view.NodeCount())
	assert.Equal(t, 2, view.SegmentCount())
	assert.Empty(t, road.Validate(view))
}

func TestRejectedCommandLeavesViewAlone(t *testing.T) {
	m := editor.NewMetrics(prometheus.NewRegistry())
	e := editor.New(nil, editor.WithMetrics(m))
	start(t, e)
	ctx := context.Background()

	_, err := e.Submit(ctx, editor.AddCmd{Builder: road.StraightRoad(vec(0, 0, 0), vec(20, 0, 0), std2), Sel: std2})
	require.NoError(t, err)
	before := e.View()

	_, err = e.Submit(ctx, editor.AddCmd{Builder: road.StraightRoad(vec(0, 50, 0), vec(3, 50, 0), std2), Sel: std2})
	require.ErrorIs(t, err, road.ErrSegmentTooShort)
	assert.Same(t, before, e.View())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commits.WithLabelValues("add_road", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commits.WithLabelValues("add_road", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejected.WithLabelValues("too_short")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Nodes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Segments))
}

func TestViewIsIsolated(t *testing.T) {
	e := editor.New(nil)
	start(t, e)
	ctx := context.Background()

	empty := e.View()
	_, err := e.Submit(ctx, editor.AddTreeCmd{Pos: vec(5, 5, 0)})
	require.NoError(t, err)

	assert.Equal(t, 0, empty.TreeCount())
	assert.Equal(t, 1, e.View().TreeCount())
}

func TestRemovalResults(t *testing.T) {
	e := editor.New(road.New(road.WithRemovalPolicy(road.ProtectSegments(ids.FromUint64[ids.SegmentCat](0)))))
	start(t, e)
	ctx := context.Background()

	_, err := e.Submit(ctx, editor.AddCmd{Builder: road.StraightRoad(vec(0, 0, 0), vec(20, 0, 0), std2), Sel: std2})
	require.NoError(t, err)
	_, err = e.Submit(ctx, editor.AddCmd{Builder: road.StraightRoad(vec(0, 30, 0), vec(20, 30, 0), std2), Sel: std2})
	require.NoError(t, err)

	res, err := e.Submit(ctx, editor.RemoveCmd{ID: ids.FromUint64[ids.SegmentCat](0)})
	require.NoError(t, err)
	assert.False(t, res.Applied, "protected segment removed")

	res, err = e.Submit(ctx, editor.RemoveCmd{ID: ids.FromUint64[ids.SegmentCat](1)})
	require.NoError(t, err)
	assert.True(t, res.Applied)

	res, err = e.Submit(ctx, editor.RemoveCmd{ID: ids.FromUint64[ids.SegmentCat](1)})
	require.NoError(t, err)
	assert.False(t, res.Applied)

	assert.Equal(t, 1, e.View().SegmentCount())
	assert.Equal(t, 2, e.View().NodeCount())
}

func TestExhaustionClosesSession(t *testing.T) {
	reg := ids.Registry{Segments: *ids.NewGeneratorWithLimit[ids.SegmentCat](1)}
	e := editor.New(road.New(road.WithRegistry(reg)))

	ctx := context.Background()
	errc := make(chan error, 1)
	go func() { errc <- e.Run(ctx) }()

	for i := 0; i < 2; i++ {
		y := float64(i) * 20
		_, err := e.Submit(ctx, editor.AddCmd{Builder: road.StraightRoad(vec(0, y, 0), vec(20, y, 0), std2), Sel: std2})
		require.NoError(t, err)
	}
	_, err := e.Submit(ctx, editor.AddCmd{Builder: road.StraightRoad(vec(0, 80, 0), vec(20, 80, 0), std2), Sel: std2})
	require.ErrorIs(t, err, editor.ErrSessionClosed)
	require.ErrorIs(t, err, ids.ErrIdentifierExhausted)

	select {
	case runErr := <-errc:
		require.ErrorIs(t, runErr, editor.ErrSessionClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}

	_, err = e.Submit(ctx, editor.AddTreeCmd{Pos: vec(100, 100, 0)})
	require.ErrorIs(t, err, editor.ErrSessionClosed)
	require.ErrorIs(t, err, ids.ErrIdentifierExhausted)
	assert.Equal(t, 2, e.View().SegmentCount())
}

func TestRunTwice(t *testing.T) {
	e := editor.New(nil)
	start(t, e)
	_, err := e.Submit(context.Background(), editor.AddTreeCmd{Pos: vec(0, 0, 0)})
	require.NoError(t, err)
	assert.ErrorIs(t, e.Run(context.Background()), editor.ErrAlreadyRunning)
}

func TestSubmitAfterCancel(t *testing.T) {
	e := editor.New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- e.Run(ctx) }()
	cancel()
	require.ErrorIs(t, <-errc, context.Canceled)

	_, err := e.Submit(context.Background(), editor.AddTreeCmd{Pos: vec(0, 0, 0)})
	require.ErrorIs(t, err, editor.ErrSessionClosed)
}

func TestMeshesFollowGraph(t *testing.T) {
	sink := newRecordingSink()
	e := editor.New(nil,
		editor.WithMeshes(sdfx.New(sdfx.WithMeshCells(96)), sink),
		editor.WithWorkers(2),
	)
	start(t, e)
	ctx := context.Background()

	_, err := e.Submit(ctx, editor.AddTreeCmd{Pos: vec(10, 0, 0)})
	require.NoError(t, err)
	// The new road runs over the tree, which is cleared.
	_, err = e.Submit(ctx, editor.AddCmd{Builder: road.StraightRoad(vec(0, 0, 0), vec(20, 0, 0), std2), Sel: std2})
	require.NoError(t, err)
	_, err = e.Submit(ctx, editor.RemoveCmd{ID: ids.FromUint64[ids.SegmentCat](0)})
	require.NoError(t, err)
	// Meshes of a command are delivered before the next command is taken.
	_, err = e.Submit(ctx, editor.AddTreeCmd{Pos: vec(50, 50, 0)})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 5 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"+tree#0", "+segment#0", "-tree#0", "-segment#0", "+tree#1"}, sink.snapshot())
}

func TestRestoreReplacesMeshes(t *testing.T) {
	sink := newRecordingSink()
	e := editor.New(nil, editor.WithMeshes(sdfx.New(sdfx.WithMeshCells(96)), sink))
	start(t, e)
	ctx := context.Background()

	_, err := e.Submit(ctx, editor.AddTreeCmd{Pos: vec(10, 10, 0)})
	require.NoError(t, err)

	other := road.New()
	_, _, err = other.AddRoad(road.StraightRoad(vec(0, 0, 0), vec(20, 0, 0), std2), std2)
	require.NoError(t, err)

	res, err := e.Submit(ctx, editor.RestoreCmd{Graph: other})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, 0, e.View().TreeCount())
	assert.Equal(t, 1, e.View().SegmentCount())

	_, err = e.Submit(ctx, editor.RestoreCmd{})
	require.Error(t, err)

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 3 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"+tree#0", "-tree#0", "+segment#0"}, sink.snapshot())
}

func TestSyncWaitsForMeshes(t *testing.T) {
	sink := newRecordingSink()
	e := editor.New(nil, editor.WithMeshes(sdfx.New(sdfx.WithMeshCells(96)), sink))
	start(t, e)
	ctx := context.Background()

	_, err := e.Submit(ctx, editor.AddCmd{Builder: road.StraightRoad(vec(0, 0, 0), vec(20, 0, 0), std2), Sel: std2})
	require.NoError(t, err)
	require.NoError(t, e.Sync(ctx))
	assert.Equal(t, []string{"+segment#0"}, sink.snapshot())
}

func TestRemoveTree(t *testing.T) {
	sink := newRecordingSink()
	e := editor.New(nil, editor.WithMeshes(sdfx.New(sdfx.WithMeshCells(96)), sink))
	start(t, e)
	ctx := context.Background()

	res, err := e.Submit(ctx, editor.AddTreeCmd{Pos: vec(10, 10, 0)})
	require.NoError(t, err)

	res, err = e.Submit(ctx, editor.RemoveTreeCmd{ID: res.Tree})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, 0, e.View().TreeCount())

	res, err = e.Submit(ctx, editor.RemoveTreeCmd{ID: ids.FromUint64[ids.TreeCat](0)})
	require.NoError(t, err)
	assert.False(t, res.Applied)

	require.NoError(t, e.Sync(ctx))
	assert.Equal(t, []string{"+tree#0", "-tree#0"}, sink.snapshot())
}
