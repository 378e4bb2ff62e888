package curve

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

const epsilon = 1e-9

// planar drops the vertical component.
func planar(v v3.Vec) v3.Vec {
	return v3.Vec{X: v.X, Y: v.Y}
}

// planarUnit returns the horizontal unit vector along v, or zero.
func planarUnit(v v3.Vec) v3.Vec {
	p := planar(v)
	l := p.Length()
	if l < epsilon {
		return v3.Vec{}
	}
	return p.MulScalar(1 / l)
}

// leftNormal rotates a planar vector 90 degrees counter-clockwise.
func leftNormal(v v3.Vec) v3.Vec {
	return v3.Vec{X: -v.Y, Y: v.X}
}

// cross2 is the z component of the cross product of two planar vectors.
func cross2(a, b v3.Vec) float64 {
	return a.X*b.Y - a.Y*b.X
}

func lerp(a, b v3.Vec, t float64) v3.Vec {
	return a.Add(b.Sub(a).MulScalar(t))
}

// distToSegment is the distance from p to the closest point of segment ab.
func distToSegment(p, a, b v3.Vec) float64 {
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 < epsilon {
		return p.Sub(a).Length()
	}
	t := p.Sub(a).Dot(ab) / l2
	t = math.Max(0, math.Min(1, t))
	return p.Sub(a.Add(ab.MulScalar(t))).Length()
}

// normAngle maps a into (0, 2π].
func normAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a
}

// radius is the planar distance from the center to the start.
func (c Circular) radius() float64 {
	return planar(c.Start.Sub(c.Center)).Length()
}

// angles returns the polar angle of Start around Center and the signed sweep
// to End (negative when clockwise).
func (c Circular) angles() (start, sweep float64) {
	rs := c.Start.Sub(c.Center)
	re := c.End.Sub(c.Center)
	a0 := math.Atan2(rs.Y, rs.X)
	a1 := math.Atan2(re.Y, re.X)
	if c.Clockwise {
		return a0, -normAngle(a0 - a1)
	}
	return a0, normAngle(a1 - a0)
}

// arcLength is the planar length of the arc.
func (c Circular) arcLength() float64 {
	_, sweep := c.angles()
	return c.radius() * math.Abs(sweep)
}

// tangent is the planar unit direction of travel at point p on the arc.
func (c Circular) tangent(p v3.Vec) v3.Vec {
	t := leftNormal(planarUnit(p.Sub(c.Center)))
	if c.Clockwise {
		return t.MulScalar(-1)
	}
	return t
}

// tangentMeet is the intersection of the start and end tangents, falling back
// to the arc midpoint for sweeps of half a turn or more.
func (c Circular) tangentMeet() v3.Vec {
	start, sweep := c.angles()
	half := math.Abs(sweep) / 2
	mid := (c.Start.Z + c.End.Z) / 2
	if half >= math.Pi/2-1e-6 {
		a := start + sweep/2
		r := c.radius()
		return v3.Vec{X: c.Center.X + r*math.Cos(a), Y: c.Center.Y + r*math.Sin(a), Z: mid}
	}
	p := c.Start.Add(c.tangent(c.Start).MulScalar(c.radius() * math.Tan(half)))
	p.Z = mid
	return p
}
