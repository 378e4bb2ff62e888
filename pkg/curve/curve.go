// Package curve computes the centerline geometry of road segments.
//
// A curve is described by a Spec, a closed set of variants (Straight,
// Circular, Quadratic, Cubic). ComputeSpine samples a Spec into SpinePoints,
// the dense polyline used for hit-testing, length checks and meshing.
package curve

import (
	"fmt"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// VertexDensity is the sampling step along a curve, in world units.
const VertexDensity = 1.0

// Type enumerates the curve variants. The declaration order is the cycling
// order exposed to tools.
type Type int

const (
	TypeStraight Type = iota
	TypeCircular
	TypeQuadratic
	TypeCubic

	numTypes = 4
)

var typeNames = [...]string{"straight", "circular", "quadratic", "cubic"}

func (t Type) String() string {
	if t < 0 || int(t) >= numTypes {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// Next returns the following curve type, wrapping around.
func (t Type) Next() Type { return Type((int(t) + 1) % numTypes) }

// Prev returns the preceding curve type, wrapping around.
func (t Type) Prev() Type { return Type((int(t) + numTypes - 1) % numTypes) }

// ParseType accepts the names returned by String.
func ParseType(s string) (Type, error) {
	for i, n := range typeNames {
		if strings.EqualFold(s, n) {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("invalid curve type %q, expected straight, circular, quadratic or cubic", s)
}

// Spec is the interface for curve specifications.
type Spec interface {
	curveSpec() // marker method restricting implementations to this package
	Kind() Type
}

// Straight is a line from Start to End.
type Straight struct {
	Start v3.Vec
	End   v3.Vec
}

// Circular is an arc of the circle around Center, running from Start to End
// counter-clockwise (seen from +Z) unless Clockwise is set. Start and End are
// expected to be equidistant from Center in the XY plane; height is
// interpolated linearly along the arc.
type Circular struct {
	Start     v3.Vec
	End       v3.Vec
	Center    v3.Vec
	Clockwise bool
}

// Quadratic is a quadratic Bezier curve.
type Quadratic struct {
	Start   v3.Vec
	Control v3.Vec
	End     v3.Vec
}

// Cubic is a cubic Bezier curve.
type Cubic struct {
	Start    v3.Vec
	Control1 v3.Vec
	Control2 v3.Vec
	End      v3.Vec
}

func (Straight) curveSpec()  {}
func (Circular) curveSpec()  {}
func (Quadratic) curveSpec() {}
func (Cubic) curveSpec()     {}

func (Straight) Kind() Type  { return TypeStraight }
func (Circular) Kind() Type  { return TypeCircular }
func (Quadratic) Kind() Type { return TypeQuadratic }
func (Cubic) Kind() Type     { return TypeCubic }

// GuidePoints is the designer-facing control polygon of a curve.
type GuidePoints []v3.Vec

// Guide returns the control polygon of s. For a circular arc the middle
// point is where the end tangents meet, or the arc midpoint when the sweep
// is too wide for the tangents to meet in front of the arc.
func Guide(s Spec) GuidePoints {
	switch c := s.(type) {
	case Straight:
		return GuidePoints{c.Start, c.End}
	case Circular:
		return GuidePoints{c.Start, c.tangentMeet(), c.End}
	case Quadratic:
		return GuidePoints{c.Start, c.Control, c.End}
	case Cubic:
		return GuidePoints{c.Start, c.Control1, c.Control2, c.End}
	default:
		panic(fmt.Sprintf("curve: unknown spec %T", s))
	}
}

// Endpoints returns the first and last point of s.
func Endpoints(s Spec) (start, end v3.Vec) {
	switch c := s.(type) {
	case Straight:
		return c.Start, c.End
	case Circular:
		return c.Start, c.End
	case Quadratic:
		return c.Start, c.End
	case Cubic:
		return c.Start, c.End
	default:
		panic(fmt.Sprintf("curve: unknown spec %T", s))
	}
}

// Reverse returns the same centerline traversed in the opposite direction.
// It only swaps fields, so Reverse(Reverse(s)) == s exactly.
func Reverse(s Spec) Spec {
	switch c := s.(type) {
	case Straight:
		return Straight{Start: c.End, End: c.Start}
	case Circular:
		return Circular{Start: c.End, End: c.Start, Center: c.Center, Clockwise: !c.Clockwise}
	case Quadratic:
		return Quadratic{Start: c.End, Control: c.Control, End: c.Start}
	case Cubic:
		return Cubic{Start: c.End, Control1: c.Control2, Control2: c.Control1, End: c.Start}
	default:
		panic(fmt.Sprintf("curve: unknown spec %T", s))
	}
}

// ContainsPos reports whether pos lies within width/2 of the centerline.
// Straight curves use an exact projection; the others scan the spine.
func ContainsPos(s Spec, pos v3.Vec, width float64) bool {
	switch c := s.(type) {
	case Straight:
		return distToSegment(pos, c.Start, c.End) <= width/2
	case Circular, Quadratic, Cubic:
		return ComputeSpine(s).Contains(pos, width)
	default:
		panic(fmt.Sprintf("curve: unknown spec %T", s))
	}
}

// EndDirections returns the planar unit tangents at the start and end of s,
// both pointing in the direction of travel. A degenerate tangent is zero.
func EndDirections(s Spec) (start, end v3.Vec) {
	switch c := s.(type) {
	case Straight:
		d := planarUnit(c.End.Sub(c.Start))
		return d, d
	case Circular:
		return c.tangent(c.Start), c.tangent(c.End)
	case Quadratic:
		return firstNonZero(c.Control.Sub(c.Start), c.End.Sub(c.Start)),
			firstNonZero(c.End.Sub(c.Control), c.End.Sub(c.Start))
	case Cubic:
		return firstNonZero(c.Control1.Sub(c.Start), c.Control2.Sub(c.Start), c.End.Sub(c.Start)),
			firstNonZero(c.End.Sub(c.Control2), c.End.Sub(c.Control1), c.End.Sub(c.Start))
	default:
		panic(fmt.Sprintf("curve: unknown spec %T", s))
	}
}

func firstNonZero(vs ...v3.Vec) v3.Vec {
	for _, v := range vs {
		if u := planarUnit(v); u != (v3.Vec{}) {
			return u
		}
	}
	return v3.Vec{}
}
