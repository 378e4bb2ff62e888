package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chazu/asphalt/pkg/config"
	"github.com/chazu/asphalt/pkg/editor"
	"github.com/chazu/asphalt/pkg/engine"
	"github.com/chazu/asphalt/pkg/ids"
	"github.com/chazu/asphalt/pkg/kernel"
	"github.com/chazu/asphalt/pkg/kernel/sdfx"
	"github.com/chazu/asphalt/pkg/road"
	"github.com/chazu/asphalt/pkg/snapshot"
	"github.com/chazu/asphalt/pkg/snapshot/store"
)

// colorPalette is a default palette used to assign distinct colors to road
// segments.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

const treeColor = "#2E7D32"

var (
	errNotStarted = errors.New("app not started")
	errNoStore    = errors.New("snapshot store unavailable")
)

// App is the Wails backend. It exposes methods to the frontend via bindings.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan error

	cfg    config.Config
	log    *slog.Logger
	engine *engine.Engine
	editor *editor.Editor
	meshes *meshCache
	reg    *prometheus.Registry
	store  *store.Store
}

// MeshData is the JSON-serializable mesh format sent to the frontend.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	Owner    string    `json:"owner"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable eval error for the frontend.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the full result returned to the frontend.
type EvalResult struct {
	Meshes   []MeshData      `json:"meshes"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
	Nodes    int             `json:"nodes"`
	Segments int             `json:"segments"`
	Trees    int             `json:"trees"`
}

// SegmentHit reports the segment under a picked point.
type SegmentHit struct {
	Found bool   `json:"found"`
	ID    uint64 `json:"id"`
	Owner string `json:"owner"`
}

// SnapData is one attachment option at the node nearest a picked point.
type SnapData struct {
	Node uint64     `json:"node"`
	Side string     `json:"side"`
	Pos  [3]float64 `json:"pos"`
	Dir  [3]float64 `json:"dir"`
}

// SnapshotEntry describes a stored snapshot.
type SnapshotEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Created  string `json:"created"`
	Nodes    int    `json:"nodes"`
	Segments int    `json:"segments"`
}

// NewApp creates an App with an empty network. Nothing runs until startup.
func NewApp(cfg config.Config, log *slog.Logger) *App {
	reg := prometheus.NewRegistry()
	cache := newMeshCache()
	k := sdfx.New(sdfx.WithMeshCells(cfg.Kernel.MeshCells))
	return &App{
		cfg: cfg,
		log: log,
		engine: engine.NewEngine(
			engine.WithTimeout(cfg.Script.Timeout),
			engine.WithDefaultLanes(cfg.RoadType()),
			engine.WithLogger(log),
		),
		editor: editor.New(nil,
			editor.WithLogger(log),
			editor.WithMeshes(k, cache),
			editor.WithWorkers(cfg.Editor.MeshWorkers),
			editor.WithQueueSize(cfg.Editor.QueueSize),
			editor.WithMetrics(editor.NewMetrics(reg)),
		),
		meshes: cache,
		reg:    reg,
	}
}

// startup is called by Wails on app startup. It starts the editor loop and
// opens the snapshot store. A store that fails to open only disables the
// snapshot bindings.
func (a *App) startup(ctx context.Context) {
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan error, 1)
	go func() { a.done <- a.editor.Run(a.ctx) }()

	st, err := store.Open(a.ctx, a.cfg.Snapshot.StorePath)
	if err != nil {
		a.log.Warn("snapshot store unavailable", slog.String("path", a.cfg.Snapshot.StorePath), slog.Any("error", err))
		return
	}
	a.store = st
}

// shutdown is called by Wails when the window closes.
func (a *App) shutdown(_ context.Context) {
	if a.cancel == nil {
		return
	}
	a.cancel()
	select {
	case <-a.done:
	case <-time.After(5 * time.Second):
		a.log.Warn("editor did not stop in time")
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("closing snapshot store", slog.Any("error", err))
		}
	}
}

func newEvalResult() EvalResult {
	return EvalResult{
		Meshes:   []MeshData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}
}

func (r *EvalResult) fail(err error) {
	r.Errors = append(r.Errors, EvalErrorData{Message: err.Error()})
}

// Evaluate runs a road script from an empty network and makes the result the
// edited network. This is the primary binding called by the frontend editor.
// On any error the current network is left as it was.
func (a *App) Evaluate(source string) EvalResult {
	result := newEvalResult()
	if a.ctx == nil {
		result.fail(errNotStarted)
		return result
	}

	res, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		a.log.Warn("evaluate failed", slog.Any("error", err))
		result.fail(err)
		return result
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}

	if err := a.replace(res.Graph); err != nil {
		result.fail(err)
		return result
	}
	for _, w := range res.Warnings {
		result.Warnings = append(result.Warnings, EvalErrorData{Message: w.Error()})
	}
	a.fill(&result)
	return result
}

// replace hands g to the editor and waits for its meshes.
func (a *App) replace(g *road.Graph) error {
	if _, err := a.editor.Submit(a.ctx, editor.RestoreCmd{Graph: g}); err != nil {
		return err
	}
	return a.editor.Sync(a.ctx)
}

func (a *App) fill(r *EvalResult) {
	g := a.editor.View()
	r.Nodes = g.NodeCount()
	r.Segments = g.SegmentCount()
	r.Trees = g.TreeCount()
	r.Meshes = a.Meshes()
}

// Meshes returns the current mesh of every segment and tree, segments
// first, each group in identifier order.
func (a *App) Meshes() []MeshData {
	g := a.editor.View()
	out := []MeshData{}
	for _, s := range g.Segments() {
		if m := a.meshes.get(s.ID.String()); m != nil {
			out = append(out, toMeshData(m, colorPalette[s.ID.Uint64()%uint64(len(colorPalette))]))
		}
	}
	for _, t := range g.Trees() {
		if m := a.meshes.get(t.ID.String()); m != nil {
			out = append(out, toMeshData(m, treeColor))
		}
	}
	return out
}

func toMeshData(m *kernel.Mesh, color string) MeshData {
	return MeshData{
		Vertices: m.Vertices,
		Normals:  m.Normals,
		Indices:  m.Indices,
		Owner:    m.Owner,
		Color:    color,
	}
}

// SegmentAt picks the segment under a ground point.
func (a *App) SegmentAt(x, y, z float64) SegmentHit {
	id, ok := a.editor.View().SegmentInside(v3.Vec{X: x, Y: y, Z: z})
	if !ok {
		return SegmentHit{}
	}
	return SegmentHit{Found: true, ID: id.Uint64(), Owner: id.String()}
}

// SnapCandidates lists where a road of the configured type could attach at
// the node nearest to a ground point.
func (a *App) SnapCandidates(x, y, z float64) []SnapData {
	out := []SnapData{}
	_, configs, ok := a.editor.View().SnapConfigsClosestNode(v3.Vec{X: x, Y: y, Z: z}, a.cfg.RoadType())
	if !ok {
		return out
	}
	for _, c := range configs {
		out = append(out, SnapData{
			Node: c.Node.Uint64(),
			Side: c.Side.String(),
			Pos:  [3]float64{c.Pos.X, c.Pos.Y, c.Pos.Z},
			Dir:  [3]float64{c.Dir.X, c.Dir.Y, c.Dir.Z},
		})
	}
	return out
}

// RemoveSegment deletes a segment. It reports false when there is no such
// segment or the removal was refused.
func (a *App) RemoveSegment(id uint64) (bool, error) {
	if a.ctx == nil {
		return false, errNotStarted
	}
	res, err := a.editor.Submit(a.ctx, editor.RemoveCmd{ID: ids.FromUint64[ids.SegmentCat](id)})
	if err != nil {
		return false, err
	}
	if err := a.editor.Sync(a.ctx); err != nil {
		return false, err
	}
	return res.Applied, nil
}

// SaveSnapshot stores the current network under name and returns the new
// snapshot id.
func (a *App) SaveSnapshot(name string) (string, error) {
	if a.store == nil {
		return "", errNoStore
	}
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("snapshot name is empty")
	}
	id, err := a.store.Save(a.ctx, name, snapshot.Encode(a.editor.View()))
	if err != nil {
		return "", err
	}
	a.log.Info("snapshot saved", slog.String("name", name), slog.String("id", id.String()))
	return id.String(), nil
}

// LoadSnapshot replaces the network with the latest snapshot stored under
// name.
func (a *App) LoadSnapshot(name string) EvalResult {
	result := newEvalResult()
	if a.store == nil {
		result.fail(errNoStore)
		return result
	}
	doc, err := a.store.Load(a.ctx, name)
	if err != nil {
		result.fail(err)
		return result
	}
	g, err := snapshot.Decode(doc)
	if err != nil {
		result.fail(err)
		return result
	}
	if err := a.replace(g); err != nil {
		result.fail(err)
		return result
	}
	for _, w := range road.Validate(g) {
		result.Warnings = append(result.Warnings, EvalErrorData{Message: w.Error()})
	}
	a.fill(&result)
	return result
}

// Snapshots lists the stored snapshots, oldest first.
func (a *App) Snapshots() ([]SnapshotEntry, error) {
	if a.store == nil {
		return nil, errNoStore
	}
	entries, err := a.store.List(a.ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SnapshotEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, SnapshotEntry{
			ID:       e.ID.String(),
			Name:     e.Name,
			Created:  e.CreatedAt.Format(time.RFC3339),
			Nodes:    e.Nodes,
			Segments: e.Segments,
		})
	}
	return out, nil
}

// Stats flattens the editor metrics for the status bar. Keys are metric
// names with their labels, e.g. `asphalt_editor_commits_total{command="add_road",result="ok"}`.
// Histograms report their sample count under a _count suffix.
func (a *App) Stats() (map[string]float64, error) {
	families, err := a.reg.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			sort.Strings(labels)
			key := mf.GetName()
			if len(labels) > 0 {
				key += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[mf.GetName()+"_count"] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out, nil
}

// meshCache holds the latest mesh per owner. The editor writes it from its
// loop; bindings read it.
type meshCache struct {
	mu     sync.RWMutex
	meshes map[string]*kernel.Mesh
}

func newMeshCache() *meshCache {
	return &meshCache{meshes: make(map[string]*kernel.Mesh)}
}

func (c *meshCache) Upsert(owner string, m *kernel.Mesh) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.meshes[owner] = m
}

func (c *meshCache) Remove(owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.meshes, owner)
}

func (c *meshCache) get(owner string) *kernel.Mesh {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meshes[owner]
}

func (c *meshCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.meshes)
}
