package road

import (
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/asphalt/pkg/curve"
	"github.com/chazu/asphalt/pkg/ids"
	"github.com/chazu/asphalt/pkg/lane"
)

// resolvedNode is a builder node after validation, in commit order.
type resolvedNode struct {
	pos   v3.Vec
	dir   v3.Vec
	typ   lane.NodeType
	id    ids.NodeID // existing node when !fresh
	fresh bool
}

type slotKey struct {
	node ids.NodeID
	side Side
}

// AddRoad commits b to the graph. Either every node and segment of b is
// added or, on error, nothing changes. The error is a *CommitError wrapping
// one of the package sentinels.
//
// The returned segment ids are in commit order. The snap config, when not
// nil, is the open side of the node where drawing ended, so a tool can keep
// drawing from it with roads of type sel.
func (g *Graph) AddRoad(b RoadBuilder, sel lane.NodeType) (*SnapConfig, []ids.SegmentID, error) {
	if err := b.Validate(); err != nil {
		return nil, nil, &CommitError{Stage: StageBuilder, Index: -1, Err: err}
	}
	nodes, segs := b.oriented()
	last := len(nodes) - 1
	srcNode := func(i int) int {
		if b.Reverse {
			return last - i
		}
		return i
	}
	srcSeg := func(i int) int {
		if b.Reverse {
			return len(segs) - 1 - i
		}
		return i
	}
	nodeErr := func(i int, err error) error {
		return &CommitError{Stage: StageNode, Index: srcNode(i), Err: err}
	}
	segErr := func(i int, err error) error {
		return &CommitError{Stage: StageSegment, Index: srcSeg(i), Err: err}
	}

	res := make([]resolvedNode, len(nodes))
	claimed := make(map[slotKey]bool)
	for i, nd := range nodes {
		switch d := nd.(type) {
		case NewNode:
			if !d.Type.Valid() {
				return nil, nil, nodeErr(i, fmt.Errorf("%w: lane type %s out of range", ErrInvalidBuilder, d.Type))
			}
			dir := planarUnit(d.Dir)
			if b.Reverse {
				dir = dir.MulScalar(-1)
			}
			res[i] = resolvedNode{pos: d.Pos, dir: dir, typ: d.Type, fresh: true}

		case SnapNode:
			n, ok := g.nodes[d.Config.Node]
			if !ok {
				return nil, nil, nodeErr(i, fmt.Errorf("snap target %s: %w", d.Config.Node, ErrNodeNotFound))
			}
			if err := n.Type.Compatible(d.Config.Type); err != nil {
				return nil, nil, nodeErr(i, fmt.Errorf("%w: %v", ErrIncompatibleSnap, err))
			}
			need := []Side{In, Out}
			switch i {
			case 0:
				need = []Side{Out}
			case last:
				need = []Side{In}
			}
			if len(need) == 1 && d.Config.Side != need[0] {
				return nil, nil, nodeErr(i, fmt.Errorf("%w: road needs the %s side of %s, config offers %s",
					ErrIncompatibleSnap, need[0], n.ID, d.Config.Side))
			}
			for _, side := range need {
				key := slotKey{node: n.ID, side: side}
				if _, taken := n.Slot(side); taken || claimed[key] {
					return nil, nil, nodeErr(i, fmt.Errorf("%w: %s side of %s is occupied", ErrIncompatibleSnap, side, n.ID))
				}
				claimed[key] = true
			}
			res[i] = resolvedNode{pos: n.Pos, dir: n.Dir, typ: n.Type, id: n.ID}

		default:
			return nil, nil, nodeErr(i, fmt.Errorf("%w: unknown node descriptor %T", ErrInvalidBuilder, nd))
		}
	}

	spines := make([]curve.SpinePoints, len(segs))
	for i, sd := range segs {
		from, to := res[i], res[i+1]
		if !from.fresh && !to.fresh && from.id == to.id {
			return nil, nil, segErr(i, fmt.Errorf("%w: segment starts and ends at %s", ErrInvalidBuilder, from.id))
		}
		if sd.Type != from.typ || sd.Type != to.typ {
			return nil, nil, segErr(i, fmt.Errorf("%w: segment type %s between nodes of type %s and %s",
				ErrIncompatibleSnap, sd.Type, from.typ, to.typ))
		}
		sp := curve.ComputeSpine(sd.Curve)
		if l := sp.Length(); l < RoadMinLength {
			return nil, nil, segErr(i, fmt.Errorf("%w: length %.2f, minimum %.2f", ErrSegmentTooShort, l, RoadMinLength))
		}
		if sp.First().Sub(from.pos).Length() > NodeTolerance || sp.Last().Sub(to.pos).Length() > NodeTolerance {
			return nil, nil, segErr(i, fmt.Errorf("%w: spine does not meet its end nodes", ErrInvalidCurveConstraint))
		}
		spines[i] = sp
	}

	fresh := 0
	for i := range res {
		if !res[i].fresh {
			continue
		}
		fresh++
		if res[i].dir != (v3.Vec{}) {
			continue
		}
		var d v3.Vec
		if i < last {
			d, _ = curve.EndDirections(segs[i].Curve)
		} else {
			_, d = curve.EndDirections(segs[i-1].Curve)
		}
		if d == (v3.Vec{}) {
			return nil, nil, nodeErr(i, fmt.Errorf("%w: no horizontal heading at node", ErrInvalidCurveConstraint))
		}
		res[i].dir = d
	}

	// Each segment leaves its from node along that node's heading and
	// arrives at its to node along the same heading.
	for i, sd := range segs {
		d0, d1 := curve.EndDirections(sd.Curve)
		if !curve.SameDirection(d0, res[i].dir) {
			return nil, nil, segErr(i, fmt.Errorf("%w: segment leaves node %d off its heading", ErrInvalidCurveConstraint, srcNode(i)))
		}
		if !curve.SameDirection(d1, res[i+1].dir) {
			return nil, nil, segErr(i, fmt.Errorf("%w: segment reaches node %d off its heading", ErrInvalidCurveConstraint, srcNode(i+1)))
		}
	}

	if err := g.reg.Nodes.Reserve(fresh); err != nil {
		return nil, nil, &CommitError{Stage: StageBuilder, Index: -1, Err: err}
	}
	if err := g.reg.Segments.Reserve(len(segs)); err != nil {
		return nil, nil, &CommitError{Stage: StageBuilder, Index: -1, Err: err}
	}

	// Nothing below can fail.
	nodeIDs := make([]ids.NodeID, len(res))
	var added []*Node
	for i, r := range res {
		if !r.fresh {
			nodeIDs[i] = r.id
			continue
		}
		id := mustNext(&g.reg.Nodes)
		n := &Node{ID: id, Pos: r.pos, Dir: r.dir, Type: r.typ}
		g.insertNode(n)
		nodeIDs[i] = id
		added = append(added, n)
	}

	segIDs := make([]ids.SegmentID, len(segs))
	newSegs := make([]*Segment, len(segs))
	for i, sd := range segs {
		id := mustNext(&g.reg.Segments)
		s := &Segment{ID: id, Curve: sd.Curve, Spine: spines[i], Type: sd.Type, From: nodeIDs[i], To: nodeIDs[i+1]}
		g.insertSegment(s)
		g.nodes[s.From].setSlot(Out, &id)
		g.nodes[s.To].setSlot(In, &id)
		segIDs[i] = id
		newSegs[i] = s
	}

	events := make([]Event, 0, len(added)+len(newSegs))
	for _, n := range added {
		events = append(events, NodeAdded{Node: *n.clone()})
	}
	for _, s := range newSegs {
		events = append(events, SegmentAdded{Segment: *s})
	}
	events = append(events, g.clearTrees(newSegs)...)
	g.emit(events)

	end, side := nodeIDs[last], Out
	if b.Reverse {
		end, side = nodeIDs[0], In
	}
	for _, c := range snapConfigs(g.nodes[end], sel) {
		if c.Side == side {
			return &c, segIDs, nil
		}
	}
	return nil, segIDs, nil
}

func mustNext[C ids.Category](gen *ids.Generator[C]) ids.ID[C] {
	id, err := gen.Next()
	if err != nil {
		panic(fmt.Sprintf("road: identifier reserved but not issued: %v", err))
	}
	return id
}
