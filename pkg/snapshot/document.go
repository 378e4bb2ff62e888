// Package snapshot converts road graphs to and from a versioned JSON
// document, optionally zstd-compressed.
package snapshot

import (
	"errors"
	"fmt"
	"time"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/google/uuid"

	"github.com/chazu/asphalt/pkg/curve"
	"github.com/chazu/asphalt/pkg/ids"
	"github.com/chazu/asphalt/pkg/lane"
	"github.com/chazu/asphalt/pkg/road"
)

// Version is the schema version written by this package.
const Version = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
	ErrInvalidDocument    = errors.New("invalid snapshot document")
)

// Document is the serialized form of a road graph.
type Document struct {
	Header   Header       `json:"header"`
	Counters ids.Counters `json:"counters"`
	Nodes    []Node       `json:"nodes"`
	Segments []Segment    `json:"segments"`
	Trees    []Tree       `json:"trees"`
}

// Header identifies a document.
type Header struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

// Vec is a position or direction as [x, y, z].
type Vec [3]float64

func toVec(v v3.Vec) Vec  { return Vec{v.X, v.Y, v.Z} }
func (v Vec) vec() v3.Vec { return v3.Vec{X: v[0], Y: v[1], Z: v[2]} }

type Node struct {
	ID    ids.NodeID     `json:"id"`
	Pos   Vec            `json:"pos"`
	Dir   Vec            `json:"dir"`
	Width lane.Width     `json:"width"`
	Lanes lane.Count     `json:"lanes"`
	In    *ids.SegmentID `json:"in,omitempty"`
	Out   *ids.SegmentID `json:"out,omitempty"`
}

// Curve holds the control points of a curve in a fixed order: straight
// [start, end], circular [start, end, center], quadratic [start, control,
// end], cubic [start, control1, control2, end].
type Curve struct {
	Type      string `json:"type"`
	Points    []Vec  `json:"points"`
	Clockwise bool   `json:"clockwise,omitempty"`
}

type Segment struct {
	ID    ids.SegmentID `json:"id"`
	Curve Curve         `json:"curve"`
	Width lane.Width    `json:"width"`
	Lanes lane.Count    `json:"lanes"`
	From  ids.NodeID    `json:"from"`
	To    ids.NodeID    `json:"to"`
}

type Tree struct {
	ID  ids.TreeID `json:"id"`
	Pos Vec        `json:"pos"`
}

// NewHeader returns a header for a document created now.
func NewHeader() Header {
	return Header{Version: Version, CreatedAt: time.Now().UTC(), ID: uuid.NewString()}
}

// Encode captures g.
func Encode(g *road.Graph) Document {
	st := g.State()
	doc := Document{
		Header:   NewHeader(),
		Counters: st.Counters,
		Nodes:    make([]Node, len(st.Nodes)),
		Segments: make([]Segment, len(st.Segments)),
		Trees:    make([]Tree, len(st.Trees)),
	}
	for i, n := range st.Nodes {
		doc.Nodes[i] = Node{
			ID:    n.ID,
			Pos:   toVec(n.Pos),
			Dir:   toVec(n.Dir),
			Width: n.Type.Width,
			Lanes: n.Type.Count,
			In:    n.In,
			Out:   n.Out,
		}
	}
	for i, s := range st.Segments {
		doc.Segments[i] = Segment{
			ID:    s.ID,
			Curve: encodeCurve(s.Curve),
			Width: s.Type.Width,
			Lanes: s.Type.Count,
			From:  s.From,
			To:    s.To,
		}
	}
	for i, t := range st.Trees {
		doc.Trees[i] = Tree{ID: t.ID, Pos: toVec(t.Pos)}
	}
	return doc
}

// Decode rebuilds a graph from doc. The result is validated.
func Decode(doc Document, opts ...road.Option) (*road.Graph, error) {
	if doc.Header.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Header.Version)
	}
	st := road.State{
		Counters: doc.Counters,
		Nodes:    make([]road.Node, len(doc.Nodes)),
		Segments: make([]road.Segment, len(doc.Segments)),
		Trees:    make([]road.Tree, len(doc.Trees)),
	}
	for i, n := range doc.Nodes {
		st.Nodes[i] = road.Node{
			ID:   n.ID,
			Pos:  n.Pos.vec(),
			Dir:  n.Dir.vec(),
			Type: lane.NodeType{Width: n.Width, Count: n.Lanes},
			In:   n.In,
			Out:  n.Out,
		}
	}
	for i, s := range doc.Segments {
		c, err := decodeCurve(s.Curve)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.ID, err)
		}
		st.Segments[i] = road.Segment{
			ID:    s.ID,
			Curve: c,
			Type:  lane.NodeType{Width: s.Width, Count: s.Lanes},
			From:  s.From,
			To:    s.To,
		}
	}
	for i, t := range doc.Trees {
		st.Trees[i] = road.Tree{ID: t.ID, Pos: t.Pos.vec()}
	}
	g, err := road.Restore(st, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return g, nil
}

func encodeCurve(s curve.Spec) Curve {
	switch c := s.(type) {
	case curve.Straight:
		return Curve{Type: c.Kind().String(), Points: []Vec{toVec(c.Start), toVec(c.End)}}
	case curve.Circular:
		return Curve{Type: c.Kind().String(), Points: []Vec{toVec(c.Start), toVec(c.End), toVec(c.Center)}, Clockwise: c.Clockwise}
	case curve.Quadratic:
		return Curve{Type: c.Kind().String(), Points: []Vec{toVec(c.Start), toVec(c.Control), toVec(c.End)}}
	case curve.Cubic:
		return Curve{Type: c.Kind().String(), Points: []Vec{toVec(c.Start), toVec(c.Control1), toVec(c.Control2), toVec(c.End)}}
	default:
		panic(fmt.Sprintf("snapshot: unknown curve %T", s))
	}
}

func decodeCurve(c Curve) (curve.Spec, error) {
	typ, err := curve.ParseType(c.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	want := map[curve.Type]int{curve.TypeStraight: 2, curve.TypeCircular: 3, curve.TypeQuadratic: 3, curve.TypeCubic: 4}[typ]
	if len(c.Points) != want {
		return nil, fmt.Errorf("%w: %s curve needs %d points, has %d", ErrInvalidDocument, typ, want, len(c.Points))
	}
	p := c.Points
	switch typ {
	case curve.TypeStraight:
		return curve.Straight{Start: p[0].vec(), End: p[1].vec()}, nil
	case curve.TypeCircular:
		return curve.Circular{Start: p[0].vec(), End: p[1].vec(), Center: p[2].vec(), Clockwise: c.Clockwise}, nil
	case curve.TypeQuadratic:
		return curve.Quadratic{Start: p[0].vec(), Control: p[1].vec(), End: p[2].vec()}, nil
	default:
		return curve.Cubic{Start: p[0].vec(), Control1: p[1].vec(), Control2: p[2].vec(), End: p[3].vec()}, nil
	}
}
