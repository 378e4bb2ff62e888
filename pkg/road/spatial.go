package road

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/dhconnelly/rtreego"

	"github.com/chazu/asphalt/pkg/ids"
)

// minExtent keeps degenerate rectangles valid; rtreego rejects zero lengths.
const minExtent = 1e-6

// spatialItem is one entry of the index: a node point or the XY footprint of
// a segment (spine bounds grown by half the road width).
type spatialItem struct {
	rect    rtreego.Rect
	node    ids.NodeID
	segment ids.SegmentID
	isNode  bool
}

func (it *spatialItem) Bounds() rtreego.Rect { return it.rect }

// spatialIndex is a 2D R-tree over nodes and segments.
type spatialIndex struct {
	tree     *rtreego.Rtree
	nodes    map[ids.NodeID]*spatialItem
	segments map[ids.SegmentID]*spatialItem
}

func newSpatialIndex() *spatialIndex {
	return &spatialIndex{
		tree:     rtreego.NewTree(2, 25, 50),
		nodes:    make(map[ids.NodeID]*spatialItem),
		segments: make(map[ids.SegmentID]*spatialItem),
	}
}

func boxRect(b sdf.Box2) rtreego.Rect {
	lx := math.Max(b.Max.X-b.Min.X, minExtent)
	ly := math.Max(b.Max.Y-b.Min.Y, minExtent)
	r, err := rtreego.NewRect(rtreego.Point{b.Min.X, b.Min.Y}, []float64{lx, ly})
	if err != nil {
		// Lengths are clamped positive above.
		panic(err)
	}
	return r
}

func windowRect(center v3.Vec, radius float64) rtreego.Rect {
	r := math.Max(radius, minExtent)
	return boxRect(sdf.Box2{
		Min: v2(center.X-r, center.Y-r),
		Max: v2(center.X+r, center.Y+r),
	})
}

func (ix *spatialIndex) insertNode(n *Node) {
	it := &spatialItem{rect: windowRect(n.Pos, minExtent), node: n.ID, isNode: true}
	ix.nodes[n.ID] = it
	ix.tree.Insert(it)
}

func (ix *spatialIndex) removeNode(id ids.NodeID) {
	if it, ok := ix.nodes[id]; ok {
		ix.tree.Delete(it)
		delete(ix.nodes, id)
	}
}

func (ix *spatialIndex) insertSegment(s *Segment) {
	b := s.Spine.Bounds()
	h := s.Type.RoadWidth() / 2
	b.Min = v2(b.Min.X-h, b.Min.Y-h)
	b.Max = v2(b.Max.X+h, b.Max.Y+h)
	it := &spatialItem{rect: boxRect(b), segment: s.ID}
	ix.segments[s.ID] = it
	ix.tree.Insert(it)
}

func (ix *spatialIndex) removeSegment(id ids.SegmentID) {
	if it, ok := ix.segments[id]; ok {
		ix.tree.Delete(it)
		delete(ix.segments, id)
	}
}

// nodesNear returns the nodes whose position falls in the square window of
// half-size radius around center.
func (ix *spatialIndex) nodesNear(center v3.Vec, radius float64) []ids.NodeID {
	var out []ids.NodeID
	for _, sp := range ix.tree.SearchIntersect(windowRect(center, radius)) {
		if it := sp.(*spatialItem); it.isNode {
			out = append(out, it.node)
		}
	}
	return out
}

// segmentsAt returns the segments whose footprint box covers pos.
func (ix *spatialIndex) segmentsAt(pos v3.Vec) []ids.SegmentID {
	var out []ids.SegmentID
	for _, sp := range ix.tree.SearchIntersect(windowRect(pos, minExtent)) {
		if it := sp.(*spatialItem); !it.isNode {
			out = append(out, it.segment)
		}
	}
	return out
}
