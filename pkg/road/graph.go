package road

import (
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/asphalt/pkg/ids"
)

// RemovalPolicy decides whether a segment may be removed. It is consulted
// after the segment is known to exist and before anything changes.
type RemovalPolicy func(g *Graph, s *Segment) bool

// Graph is the road network.
type Graph struct {
	nodes    map[ids.NodeID]*Node
	segments map[ids.SegmentID]*Segment
	trees    map[ids.TreeID]*Tree
	order    []ids.SegmentID // insertion order
	reg      ids.Registry
	index    *spatialIndex
	policy   RemovalPolicy

	subs    map[int]func(Event)
	nextSub int
}

// Option configures a Graph.
type Option func(*Graph)

// WithRegistry starts the graph from the given identifier state.
func WithRegistry(r ids.Registry) Option {
	return func(g *Graph) { g.reg = r }
}

// WithRemovalPolicy installs a policy consulted by RemoveSegment.
func WithRemovalPolicy(p RemovalPolicy) Option {
	return func(g *Graph) { g.policy = p }
}

// New creates an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		nodes:    make(map[ids.NodeID]*Node),
		segments: make(map[ids.SegmentID]*Segment),
		trees:    make(map[ids.TreeID]*Tree),
		index:    newSpatialIndex(),
		subs:     make(map[int]func(Event)),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// SetRemovalPolicy replaces the removal policy. nil allows every removal.
func (g *Graph) SetRemovalPolicy(p RemovalPolicy) { g.policy = p }

// Counters returns the identifier state.
func (g *Graph) Counters() ids.Counters { return g.reg.Counters() }

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// SegmentCount returns the number of segments.
func (g *Graph) SegmentCount() int { return len(g.segments) }

// TreeCount returns the number of trees.
func (g *Graph) TreeCount() int { return len(g.trees) }

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id ids.NodeID) (Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, fmt.Errorf("%s: %w", id, ErrNodeNotFound)
	}
	return *n.clone(), nil
}

// NodePos returns the position of a node.
func (g *Graph) NodePos(id ids.NodeID) (v3.Vec, error) {
	n, ok := g.nodes[id]
	if !ok {
		return v3.Vec{}, fmt.Errorf("%s: %w", id, ErrNodeNotFound)
	}
	return n.Pos, nil
}

// NodeDir returns the heading of a node.
func (g *Graph) NodeDir(id ids.NodeID) (v3.Vec, error) {
	n, ok := g.nodes[id]
	if !ok {
		return v3.Vec{}, fmt.Errorf("%s: %w", id, ErrNodeNotFound)
	}
	return n.Dir, nil
}

// Segment returns a copy of the segment with the given id.
func (g *Graph) Segment(id ids.SegmentID) (Segment, error) {
	s, ok := g.segments[id]
	if !ok {
		return Segment{}, fmt.Errorf("%s: %w", id, ErrSegmentNotFound)
	}
	return *s, nil
}

// Nodes returns copies of all nodes in ascending id order.
func (g *Graph) Nodes() []Node {
	keys := make([]ids.NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		keys = append(keys, id)
	}
	sortNodeIDs(keys)
	out := make([]Node, len(keys))
	for i, id := range keys {
		out[i] = *g.nodes[id].clone()
	}
	return out
}

// Segments returns copies of all segments in insertion order.
func (g *Graph) Segments() []Segment {
	out := make([]Segment, len(g.order))
	for i, id := range g.order {
		out[i] = *g.segments[id]
	}
	return out
}

// Trees returns all trees in ascending id order.
func (g *Graph) Trees() []Tree {
	out := make([]Tree, 0, len(g.trees))
	for _, t := range g.trees {
		out = append(out, *t)
	}
	sortTrees(out)
	return out
}

// Incident returns the segments attached to a node, In side first.
func (g *Graph) Incident(id ids.NodeID) ([]ids.SegmentID, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNodeNotFound)
	}
	var out []ids.SegmentID
	if s, ok := n.Slot(In); ok {
		out = append(out, s)
	}
	if s, ok := n.Slot(Out); ok {
		out = append(out, s)
	}
	return out, nil
}

// SegmentInside returns the segment whose carriageway covers pos. When
// several do, the earliest inserted wins.
func (g *Graph) SegmentInside(pos v3.Vec) (ids.SegmentID, bool) {
	cands := g.index.segmentsAt(pos)
	// Identifiers are issued in insertion order.
	sortSegmentIDs(cands)
	for _, id := range cands {
		if g.segments[id].Contains(pos) {
			return id, true
		}
	}
	return ids.SegmentID{}, false
}

// Clone returns a deep copy of the graph without its subscribers.
func (g *Graph) Clone() *Graph {
	c := New(WithRegistry(g.reg), WithRemovalPolicy(g.policy))
	for id, n := range g.nodes {
		cn := n.clone()
		c.nodes[id] = cn
		c.index.insertNode(cn)
	}
	c.order = append([]ids.SegmentID(nil), g.order...)
	for id, s := range g.segments {
		cs := *s
		c.segments[id] = &cs
		c.index.insertSegment(&cs)
	}
	for id, t := range g.trees {
		ct := *t
		c.trees[id] = &ct
	}
	return c
}

func (g *Graph) insertNode(n *Node) {
	g.nodes[n.ID] = n
	g.index.insertNode(n)
}

func (g *Graph) deleteNode(id ids.NodeID) {
	delete(g.nodes, id)
	g.index.removeNode(id)
}

func (g *Graph) insertSegment(s *Segment) {
	g.segments[s.ID] = s
	g.order = append(g.order, s.ID)
	g.index.insertSegment(s)
}

func (g *Graph) deleteSegment(id ids.SegmentID) {
	delete(g.segments, id)
	g.index.removeSegment(id)
	for i, o := range g.order {
		if o == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}
