package road

import (
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/asphalt/pkg/curve"
	"github.com/chazu/asphalt/pkg/lane"
)

// NodeDesc describes one node of a staged road: either a node to create or
// an existing node to snap onto.
type NodeDesc interface {
	nodeDesc()
	Position() v3.Vec
}

// NewNode stages a fresh node. A zero Dir is derived from the attached
// curves at commit time.
type NewNode struct {
	Pos  v3.Vec
	Dir  v3.Vec
	Type lane.NodeType
}

// SnapNode stages the reuse of an existing node.
type SnapNode struct {
	Config SnapConfig
}

func (NewNode) nodeDesc()  {}
func (SnapNode) nodeDesc() {}

func (n NewNode) Position() v3.Vec  { return n.Pos }
func (n SnapNode) Position() v3.Vec { return n.Config.Pos }

// SegmentDesc stages one segment; its endpoints are the node descriptors on
// either side of it in the builder.
type SegmentDesc struct {
	Curve curve.Spec
	Type  lane.NodeType
}

// RoadBuilder is a staged chain of segments. Nodes[i] and Nodes[i+1] are the
// ends of Segments[i]. With Reverse set the chain is committed in the
// opposite direction: node and segment order flip and every curve is
// reversed before resolution.
type RoadBuilder struct {
	Nodes    []NodeDesc
	Segments []SegmentDesc
	Reverse  bool
}

// NewRoadBuilder returns a builder over copies of nodes and segs.
func NewRoadBuilder(nodes []NodeDesc, segs []SegmentDesc, reverse bool) RoadBuilder {
	return RoadBuilder{
		Nodes:    append([]NodeDesc(nil), nodes...),
		Segments: append([]SegmentDesc(nil), segs...),
		Reverse:  reverse,
	}
}

// Validate checks the shape of the builder: at least one segment and exactly
// one more node than segments.
func (b RoadBuilder) Validate() error {
	if len(b.Segments) == 0 {
		return fmt.Errorf("%w: no segments", ErrInvalidBuilder)
	}
	if len(b.Nodes) != len(b.Segments)+1 {
		return fmt.Errorf("%w: %d nodes for %d segments", ErrInvalidBuilder, len(b.Nodes), len(b.Segments))
	}
	for i, n := range b.Nodes {
		if n == nil {
			return fmt.Errorf("%w: node %d is nil", ErrInvalidBuilder, i)
		}
	}
	for i, s := range b.Segments {
		if s.Curve == nil {
			return fmt.Errorf("%w: segment %d has no curve", ErrInvalidBuilder, i)
		}
	}
	return nil
}

// oriented returns the node and segment sequences in commit order.
func (b RoadBuilder) oriented() ([]NodeDesc, []SegmentDesc) {
	nodes := append([]NodeDesc(nil), b.Nodes...)
	segs := append([]SegmentDesc(nil), b.Segments...)
	if !b.Reverse {
		return nodes, segs
	}
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	for i := range segs {
		segs[i].Curve = curve.Reverse(segs[i].Curve)
	}
	return nodes, segs
}

// StraightRoad stages a single straight segment between two new nodes.
func StraightRoad(from, to v3.Vec, t lane.NodeType) RoadBuilder {
	dir := planarUnit(to.Sub(from))
	return RoadBuilder{
		Nodes: []NodeDesc{
			NewNode{Pos: from, Dir: dir, Type: t},
			NewNode{Pos: to, Dir: dir, Type: t},
		},
		Segments: []SegmentDesc{{Curve: curve.Straight{Start: from, End: to}, Type: t}},
	}
}

// FitRoad stages a chain of curves of one type through nodes. The chain is
// tangent-continuous: each curve starts along the heading of the node it
// leaves, and a curve ending on a snapped node arrives along that node's
// heading. New nodes take their heading from the fitted curves.
func FitRoad(typ curve.Type, t lane.NodeType, nodes ...NodeDesc) (RoadBuilder, error) {
	if len(nodes) < 2 {
		return RoadBuilder{}, fmt.Errorf("%w: need at least 2 nodes, got %d", ErrInvalidBuilder, len(nodes))
	}
	out := RoadBuilder{Nodes: append([]NodeDesc(nil), nodes...)}

	var heading *v3.Vec
	switch n := nodes[0].(type) {
	case SnapNode:
		heading = curve.Dir(n.Config.Dir)
	case NewNode:
		if d := planarUnit(n.Dir); d != (v3.Vec{}) {
			heading = curve.Dir(d)
		}
	}

	for i := 1; i < len(nodes); i++ {
		locks := curve.Locks{Start: nodes[i-1].Position(), End: nodes[i].Position()}
		locks.StartDir = heading
		if sn, ok := nodes[i].(SnapNode); ok {
			locks.EndDir = curve.Dir(sn.Config.Dir.MulScalar(-1))
		}
		spec, err := curve.Fit(typ, locks)
		if err != nil {
			return RoadBuilder{}, &CommitError{Stage: StageSegment, Index: i - 1, Err: err}
		}
		out.Segments = append(out.Segments, SegmentDesc{Curve: spec, Type: t})

		d0, d1 := curve.EndDirections(spec)
		if i == 1 {
			if nn, ok := out.Nodes[0].(NewNode); ok && nn.Dir == (v3.Vec{}) {
				nn.Dir = d0
				out.Nodes[0] = nn
			}
		}
		if nn, ok := out.Nodes[i].(NewNode); ok && nn.Dir == (v3.Vec{}) {
			nn.Dir = d1
			out.Nodes[i] = nn
		}
		heading = curve.Dir(d1)
	}
	return out, nil
}
