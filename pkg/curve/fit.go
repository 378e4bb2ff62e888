package curve

import (
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// directionTolerance bounds 1 - cos(angle) for two directions to count as equal.
const directionTolerance = 1e-4

// Locks are the constraints a fitted curve must satisfy. StartDir and EndDir,
// when set, are the direction of travel at the respective endpoint; only
// their horizontal part is used.
type Locks struct {
	Start    v3.Vec
	End      v3.Vec
	StartDir *v3.Vec
	EndDir   *v3.Vec
}

// Dir returns a pointer to v, for building Locks inline.
func Dir(v v3.Vec) *v3.Vec { return &v }

// Fit constructs a curve of type t through l.Start and l.End that honours
// the direction locks. Infeasible combinations return an *Error wrapping
// ErrInvalidCurveConstraint.
func Fit(t Type, l Locks) (Spec, error) {
	chord := planar(l.End.Sub(l.Start))
	if chord.Length() < epsilon {
		return nil, infeasible(t, "start and end coincide")
	}
	var d0, d1 v3.Vec
	if l.StartDir != nil {
		if d0 = planarUnit(*l.StartDir); d0 == (v3.Vec{}) {
			return nil, infeasible(t, "start direction has no horizontal component")
		}
	}
	if l.EndDir != nil {
		if d1 = planarUnit(*l.EndDir); d1 == (v3.Vec{}) {
			return nil, infeasible(t, "end direction has no horizontal component")
		}
	}
	cu := planarUnit(chord)

	switch t {
	case TypeStraight:
		if l.StartDir != nil && !sameDir(d0, cu) {
			return nil, infeasible(t, "start direction is not along the chord")
		}
		if l.EndDir != nil && !sameDir(d1, cu) {
			return nil, infeasible(t, "end direction is not along the chord")
		}
		return Straight{Start: l.Start, End: l.End}, nil

	case TypeCircular:
		switch {
		case l.StartDir != nil:
			c, err := CircularFromTangent(l.Start, d0, l.End)
			if err != nil {
				return nil, err
			}
			if l.EndDir != nil && !sameDir(c.tangent(c.End), d1) {
				return nil, infeasible(t, "no single arc matches both end directions")
			}
			return c, nil
		case l.EndDir != nil:
			c, err := CircularFromTangent(l.End, d1.MulScalar(-1), l.Start)
			if err != nil {
				return nil, err
			}
			return Reverse(c), nil
		default:
			return nil, infeasible(t, "an arc needs at least one locked direction")
		}

	case TypeQuadratic:
		var ctrl v3.Vec
		half := chord.Length() / 2
		switch {
		case l.StartDir != nil && l.EndDir != nil:
			p, err := rayMeet(l.Start, d0, l.End, d1)
			if err != nil {
				return nil, err
			}
			ctrl = p
		case l.StartDir != nil:
			ctrl = l.Start.Add(d0.MulScalar(half))
		case l.EndDir != nil:
			ctrl = l.End.Sub(d1.MulScalar(half))
		default:
			ctrl = lerp(l.Start, l.End, 0.5)
		}
		ctrl.Z = (l.Start.Z + l.End.Z) / 2
		return Quadratic{Start: l.Start, Control: ctrl, End: l.End}, nil

	case TypeCubic:
		if l.StartDir == nil {
			d0 = cu
		}
		if l.EndDir == nil {
			d1 = cu
		}
		third := chord.Length() / 3
		c1 := l.Start.Add(d0.MulScalar(third))
		c2 := l.End.Sub(d1.MulScalar(third))
		c1.Z = l.Start.Z + (l.End.Z-l.Start.Z)/3
		c2.Z = l.Start.Z + 2*(l.End.Z-l.Start.Z)/3
		return Cubic{Start: l.Start, Control1: c1, Control2: c2, End: l.End}, nil

	default:
		return nil, fmt.Errorf("curve: unknown type %d", int(t))
	}
}

// CircularFromTangent returns the arc that leaves start heading along dir
// and ends at end. It fails when end lies on the tangent line.
func CircularFromTangent(start, dir, end v3.Vec) (Circular, error) {
	d := planarUnit(dir)
	if d == (v3.Vec{}) {
		return Circular{}, infeasible(TypeCircular, "tangent has no horizontal component")
	}
	c := planar(end.Sub(start))
	n := leftNormal(d)
	denom := 2 * c.Dot(n)
	if math.Abs(denom) < epsilon*math.Max(1, c.Length()) {
		return Circular{}, infeasible(TypeCircular, "end point is collinear with the start tangent")
	}
	r := c.Dot(c) / denom
	center := start.Add(n.MulScalar(r))
	center.Z = start.Z
	return Circular{Start: start, End: end, Center: center, Clockwise: r < 0}, nil
}

// rayMeet intersects the ray leaving a along da with the ray arriving at b
// along db. The meeting point must lie ahead of a and behind b.
func rayMeet(a, da, b, db v3.Vec) (v3.Vec, error) {
	c := planar(b.Sub(a))
	det := cross2(da, db)
	if math.Abs(det) < epsilon {
		cu := planarUnit(c)
		if sameDir(da, cu) && sameDir(db, cu) {
			return lerp(a, b, 0.5), nil
		}
		return v3.Vec{}, infeasible(TypeQuadratic, "end directions are parallel")
	}
	s := cross2(c, db) / det
	t := cross2(da, c) / det
	if s <= epsilon || t <= epsilon {
		return v3.Vec{}, infeasible(TypeQuadratic, "end directions do not meet between the endpoints")
	}
	return a.Add(da.MulScalar(s)), nil
}

func sameDir(a, b v3.Vec) bool {
	return a.Dot(b) >= 1-directionTolerance
}

// SameDirection reports whether a and b point the same way in the
// horizontal plane, within the tolerance Fit applies to locked directions.
func SameDirection(a, b v3.Vec) bool {
	return sameDir(planarUnit(a), planarUnit(b))
}
