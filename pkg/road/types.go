package road

import (
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/asphalt/pkg/curve"
	"github.com/chazu/asphalt/pkg/ids"
	"github.com/chazu/asphalt/pkg/lane"
)

const (
	// RoadMinLength is the shortest spine a committed segment may have.
	RoadMinLength = 10.0
	// SnapRadius bounds the search in SnapConfigsClosestNode.
	SnapRadius = 5.0
	// NodeTolerance is how far a spine endpoint may sit from its node.
	NodeTolerance = 0.01
)

// Side identifies one of the two attachment slots of a node.
type Side int

const (
	// In receives the segment arriving at the node along its heading.
	In Side = iota
	// Out receives the segment leaving the node along its heading.
	Out
)

func (s Side) String() string {
	switch s {
	case In:
		return "in"
	case Out:
		return "out"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == In {
		return Out
	}
	return In
}

// SidePtr returns a pointer to s, for the optional side arguments.
func SidePtr(s Side) *Side { return &s }

// Node is a point of the network with a heading and a lane configuration.
type Node struct {
	ID   ids.NodeID
	Pos  v3.Vec
	Dir  v3.Vec // unit, horizontal
	Type lane.NodeType
	In   *ids.SegmentID
	Out  *ids.SegmentID
}

// Degree is the number of attached segments.
func (n *Node) Degree() int {
	d := 0
	if n.In != nil {
		d++
	}
	if n.Out != nil {
		d++
	}
	return d
}

// Slot returns the segment attached on side s, if any.
func (n *Node) Slot(s Side) (ids.SegmentID, bool) {
	p := n.In
	if s == Out {
		p = n.Out
	}
	if p == nil {
		return ids.SegmentID{}, false
	}
	return *p, true
}

func (n *Node) setSlot(s Side, id *ids.SegmentID) {
	if id != nil {
		v := *id
		id = &v
	}
	if s == Out {
		n.Out = id
	} else {
		n.In = id
	}
}

func (n *Node) clone() *Node {
	c := *n
	c.In, c.Out = nil, nil
	c.setSlot(In, n.In)
	c.setSlot(Out, n.Out)
	return &c
}

// Segment is a directed piece of road between two nodes. Vehicles drive
// from From to To.
type Segment struct {
	ID    ids.SegmentID
	Curve curve.Spec
	Spine curve.SpinePoints
	Type  lane.NodeType
	From  ids.NodeID
	To    ids.NodeID
}

// Length is the length of the sampled centerline.
func (s *Segment) Length() float64 { return s.Spine.Length() }

// Contains reports whether pos lies on the carriageway.
func (s *Segment) Contains(pos v3.Vec) bool {
	if _, ok := s.Curve.(curve.Straight); ok {
		return curve.ContainsPos(s.Curve, pos, s.Type.RoadWidth())
	}
	return s.Spine.Contains(pos, s.Type.RoadWidth())
}

// Tree is a decorative tree. Trees standing where a new road is laid are
// cleared by the commit.
type Tree struct {
	ID  ids.TreeID
	Pos v3.Vec
}
