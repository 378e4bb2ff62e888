// Package editor serializes every change to a road graph through a single
// owner goroutine.
//
// Tool code submits commands with Submit; Run applies them one at a time in
// arrival order. After each mutation a clone of the graph is published for
// readers (View), and the meshes of added entities are regenerated and
// pushed to a MeshSink.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/asphalt/pkg/ids"
	"github.com/chazu/asphalt/pkg/kernel"
	"github.com/chazu/asphalt/pkg/lane"
	"github.com/chazu/asphalt/pkg/road"
	"github.com/chazu/asphalt/pkg/tessellate"
)

var (
	// ErrSessionClosed is returned by Submit once the owner loop has
	// stopped. When the loop stopped because of an error, that error is
	// wrapped as well.
	ErrSessionClosed = errors.New("editor session closed")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("editor already running")
)

// Cmd is a change request handled by the owner loop.
type Cmd interface {
	cmd()
	// Name labels the command in logs and metrics.
	Name() string
}

type (
	// AddCmd commits a road builder with the selected road type.
	AddCmd struct {
		Builder road.RoadBuilder
		Sel     lane.NodeType
	}
	// RemoveCmd removes a segment.
	RemoveCmd struct{ ID ids.SegmentID }
	// AddTreeCmd plants a tree.
	AddTreeCmd struct{ Pos v3.Vec }
	// RemoveTreeCmd removes a tree.
	RemoveTreeCmd struct{ ID ids.TreeID }
	// RestoreCmd replaces the whole graph. The editor takes ownership of
	// Graph.
	RestoreCmd struct{ Graph *road.Graph }
)

func (AddCmd) cmd()        {}
func (RemoveCmd) cmd()     {}
func (AddTreeCmd) cmd()    {}
func (RemoveTreeCmd) cmd() {}
func (RestoreCmd) cmd()    {}

func (AddCmd) Name() string        { return "add_road" }
func (RemoveCmd) Name() string     { return "remove_segment" }
func (AddTreeCmd) Name() string    { return "add_tree" }
func (RemoveTreeCmd) Name() string { return "remove_tree" }
func (RestoreCmd) Name() string    { return "restore" }

// syncCmd changes nothing. Its response arrives only after the meshes of
// every earlier command have been delivered.
type syncCmd struct{}

func (syncCmd) cmd()         {}
func (syncCmd) Name() string { return "sync" }

// Result is the outcome of a command. Only the fields relevant to the
// command are set.
type Result struct {
	Snap     *road.SnapConfig
	Segments []ids.SegmentID
	Tree     ids.TreeID
	// Applied is false when a removal found nothing to remove or was
	// refused by the removal policy.
	Applied bool
}

// MeshSink receives mesh updates keyed by owner ("segment#3", "tree#0").
// It is called from the owner goroutine only.
type MeshSink interface {
	Upsert(owner string, m *kernel.Mesh)
	Remove(owner string)
}

type request struct {
	ctx  context.Context
	cmd  Cmd
	resp chan response
}

type response struct {
	res Result
	err error
}

// Editor owns a road graph.
type Editor struct {
	log     *slog.Logger
	kernel  kernel.Kernel
	sink    MeshSink
	workers int
	metrics *Metrics

	graph   *road.Graph
	unsub   func()
	pending []road.Event

	view    atomic.Pointer[road.Graph]
	reqs    chan request
	done    chan struct{}
	running atomic.Bool

	mu    sync.Mutex
	cause error
}

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) { e.log = l }
}

// WithMeshes enables mesh regeneration with k, delivering results to sink.
func WithMeshes(k kernel.Kernel, sink MeshSink) Option {
	return func(e *Editor) {
		e.kernel = k
		e.sink = sink
	}
}

// WithWorkers bounds the number of concurrent kernel calls.
func WithWorkers(n int) Option {
	return func(e *Editor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithQueueSize sets how many submitted commands may wait for the loop.
func WithQueueSize(n int) Option {
	return func(e *Editor) {
		if n >= 0 {
			e.reqs = make(chan request, n)
		}
	}
}

// WithMetrics sets the collectors updated by the loop.
func WithMetrics(m *Metrics) Option {
	return func(e *Editor) { e.metrics = m }
}

// New creates an editor owning g. A nil g starts from an empty graph. The
// caller must not touch g after this call.
func New(g *road.Graph, opts ...Option) *Editor {
	if g == nil {
		g = road.New()
	}
	e := &Editor{
		log:     slog.Default(),
		workers: 4,
		reqs:    make(chan request, 64),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	e.adopt(g)
	e.publish()
	return e
}

// View returns the graph as of the last completed command. The returned
// graph is shared between readers and must not be mutated.
func (e *Editor) View() *road.Graph { return e.view.Load() }

// Done is closed when the owner loop has stopped.
func (e *Editor) Done() <-chan struct{} { return e.done }

// Submit queues cmd and waits for its result. Commands are applied in the
// order their Submit calls enqueue them.
func (e *Editor) Submit(ctx context.Context, cmd Cmd) (Result, error) {
	req := request{ctx: ctx, cmd: cmd, resp: make(chan response, 1)}
	select {
	case <-e.done:
		return Result{}, e.closedErr()
	default:
	}
	select {
	case e.reqs <- req:
	case <-e.done:
		return Result{}, e.closedErr()
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case r := <-req.resp:
		return r.res, r.err
	case <-e.done:
		select {
		case r := <-req.resp:
			return r.res, r.err
		default:
			return Result{}, e.closedErr()
		}
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Sync waits until every command submitted before it has been applied and
// its meshes have reached the sink.
func (e *Editor) Sync(ctx context.Context) error {
	_, err := e.Submit(ctx, syncCmd{})
	return err
}

// Run applies submitted commands until ctx is done or the identifier space
// runs out. It returns ctx.Err() on cancellation and an error wrapping
// ErrSessionClosed when the session ended on its own.
func (e *Editor) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	e.log.Info("editor started",
		slog.Int("nodes", e.graph.NodeCount()),
		slog.Int("segments", e.graph.SegmentCount()),
	)
	for {
		select {
		case <-ctx.Done():
			e.close(ctx.Err())
			return ctx.Err()
		case req := <-e.reqs:
			if err := req.ctx.Err(); err != nil {
				req.resp <- response{err: err}
				continue
			}
			res, err := e.apply(req.cmd)
			if errors.Is(err, ids.ErrIdentifierExhausted) {
				closed := fmt.Errorf("%w: %w", ErrSessionClosed, err)
				req.resp <- response{err: closed}
				e.log.Error("identifier space exhausted, closing session", slog.Any("error", err))
				e.close(err)
				return closed
			}
			req.resp <- response{res: res, err: err}
			e.refreshMeshes(ctx)
		}
	}
}

func (e *Editor) apply(cmd Cmd) (Result, error) {
	var (
		res Result
		err error
	)
	switch c := cmd.(type) {
	case syncCmd:
		return Result{Applied: true}, nil
	case AddCmd:
		res.Snap, res.Segments, err = e.graph.AddRoad(c.Builder, c.Sel)
		res.Applied = err == nil
	case RemoveCmd:
		res.Applied = e.graph.RemoveSegment(c.ID)
	case AddTreeCmd:
		res.Tree, err = e.graph.AddTree(c.Pos)
		res.Applied = err == nil
	case RemoveTreeCmd:
		res.Applied = e.graph.RemoveTree(c.ID)
	case RestoreCmd:
		if c.Graph == nil {
			err = errors.New("restore: nil graph")
			break
		}
		e.restore(c.Graph)
		res.Applied = true
	default:
		panic(fmt.Sprintf("editor: unknown command %T", cmd))
	}

	switch {
	case err != nil:
		e.metrics.Commits.WithLabelValues(cmd.Name(), "rejected").Inc()
		e.metrics.Rejected.WithLabelValues(reason(err)).Inc()
		e.log.Debug("command rejected", slog.String("command", cmd.Name()), slog.Any("error", err))
	case !res.Applied:
		e.metrics.Commits.WithLabelValues(cmd.Name(), "noop").Inc()
	default:
		e.metrics.Commits.WithLabelValues(cmd.Name(), "ok").Inc()
		e.publish()
	}
	return res, err
}

// adopt makes g the owned graph and records its events.
func (e *Editor) adopt(g *road.Graph) {
	if e.unsub != nil {
		e.unsub()
	}
	e.graph = g
	e.unsub = g.Subscribe(func(ev road.Event) { e.pending = append(e.pending, ev) })
}

// restore swaps in g, queuing removals for everything meshed from the old
// graph and additions for everything in g.
func (e *Editor) restore(g *road.Graph) {
	for _, s := range e.graph.Segments() {
		e.pending = append(e.pending, road.SegmentRemoved{ID: s.ID})
	}
	for _, t := range e.graph.Trees() {
		e.pending = append(e.pending, road.TreeRemoved{ID: t.ID})
	}
	e.adopt(g)
	for _, s := range g.Segments() {
		e.pending = append(e.pending, road.SegmentAdded{Segment: s})
	}
	for _, t := range g.Trees() {
		e.pending = append(e.pending, road.TreeAdded{Tree: t})
	}
}

func (e *Editor) publish() {
	e.view.Store(e.graph.Clone())
	e.metrics.observe(e.graph)
}

// refreshMeshes turns the pending events into sink calls. Removals are
// forwarded as they are; additions are meshed on the worker pool and
// delivered in event order once all of them are done.
func (e *Editor) refreshMeshes(ctx context.Context) {
	events := e.pending
	e.pending = nil
	if e.sink == nil || e.kernel == nil || len(events) == 0 {
		return
	}
	start := time.Now()

	type job struct {
		owner string
		mesh  *kernel.Mesh
		err   error
	}
	jobs := make([]*job, len(events))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.workers)
	for i, ev := range events {
		switch ev := ev.(type) {
		case road.SegmentAdded:
			j := &job{owner: ev.Segment.ID.String()}
			jobs[i] = j
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}
				j.mesh, j.err = tessellate.Segment(e.kernel, ev.Segment)
				return nil
			})
		case road.TreeAdded:
			j := &job{owner: ev.Tree.ID.String()}
			jobs[i] = j
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}
				j.mesh, j.err = tessellate.Tree(e.kernel, ev.Tree)
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		e.log.Warn("mesh refresh interrupted", slog.Any("error", err))
		return
	}

	for i, ev := range events {
		switch ev := ev.(type) {
		case road.SegmentRemoved:
			e.sink.Remove(ev.ID.String())
		case road.TreeRemoved:
			e.sink.Remove(ev.ID.String())
		case road.SegmentAdded, road.TreeAdded:
			j := jobs[i]
			if j.err != nil {
				e.log.Warn("mesh generation failed",
					slog.String("owner", j.owner),
					slog.Any("error", j.err),
				)
				continue
			}
			e.sink.Upsert(j.owner, j.mesh)
		}
	}
	e.metrics.MeshDuration.Observe(time.Since(start).Seconds())
}

func (e *Editor) close(cause error) {
	e.mu.Lock()
	e.cause = cause
	e.mu.Unlock()
	close(e.done)
	if e.unsub != nil {
		e.unsub()
	}
	for {
		select {
		case req := <-e.reqs:
			req.resp <- response{err: e.closedErr()}
		default:
			return
		}
	}
}

func (e *Editor) closedErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cause == nil {
		return ErrSessionClosed
	}
	return fmt.Errorf("%w: %w", ErrSessionClosed, e.cause)
}
