package curve

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// SpinePoints is the sampled centerline of a curve. It is immutable once
// computed; accessors return copies.
type SpinePoints struct {
	pts []v3.Vec
}

// NewSpinePoints wraps an explicit point list. The slice is copied.
func NewSpinePoints(pts []v3.Vec) SpinePoints {
	return SpinePoints{pts: append([]v3.Vec(nil), pts...)}
}

// Len returns the number of samples.
func (s SpinePoints) Len() int { return len(s.pts) }

// At returns sample i.
func (s SpinePoints) At(i int) v3.Vec { return s.pts[i] }

// First returns the first sample, or the zero vector for an empty spine.
func (s SpinePoints) First() v3.Vec {
	if len(s.pts) == 0 {
		return v3.Vec{}
	}
	return s.pts[0]
}

// Last returns the last sample, or the zero vector for an empty spine.
func (s SpinePoints) Last() v3.Vec {
	if len(s.pts) == 0 {
		return v3.Vec{}
	}
	return s.pts[len(s.pts)-1]
}

// Points returns a copy of the samples.
func (s SpinePoints) Points() []v3.Vec {
	return append([]v3.Vec(nil), s.pts...)
}

// Length is the sum of distances between consecutive samples.
func (s SpinePoints) Length() float64 {
	var l float64
	for i := 1; i < len(s.pts); i++ {
		l += s.pts[i].Sub(s.pts[i-1]).Length()
	}
	return l
}

// Distance returns the distance from pos to the nearest point on the
// polyline, or +Inf for an empty spine.
func (s SpinePoints) Distance(pos v3.Vec) float64 {
	switch len(s.pts) {
	case 0:
		return math.Inf(1)
	case 1:
		return pos.Sub(s.pts[0]).Length()
	}
	best := math.Inf(1)
	for i := 1; i < len(s.pts); i++ {
		if d := distToSegment(pos, s.pts[i-1], s.pts[i]); d < best {
			best = d
		}
	}
	return best
}

// Contains reports whether pos lies within width/2 of the polyline.
func (s SpinePoints) Contains(pos v3.Vec, width float64) bool {
	return s.Distance(pos) <= width/2
}

// Bounds returns the XY bounding box of the samples.
func (s SpinePoints) Bounds() sdf.Box2 {
	if len(s.pts) == 0 {
		return sdf.Box2{}
	}
	lo := v2.Vec{X: s.pts[0].X, Y: s.pts[0].Y}
	hi := lo
	for _, p := range s.pts[1:] {
		lo = v2.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y)}
		hi = v2.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y)}
	}
	return sdf.Box2{Min: lo, Max: hi}
}

// ComputeSpine samples s at VertexDensity. The first and last samples are
// exactly the curve endpoints.
func ComputeSpine(s Spec) SpinePoints {
	switch c := s.(type) {
	case Straight:
		return SpinePoints{pts: []v3.Vec{c.Start, c.End}}
	case Circular:
		return SpinePoints{pts: sampleArc(c)}
	case Quadratic:
		n := stepCount(polygonLength(c.Start, c.Control, c.End))
		return SpinePoints{pts: sampleParametric(n, c.Start, c.End, c.at)}
	case Cubic:
		n := stepCount(polygonLength(c.Start, c.Control1, c.Control2, c.End))
		return SpinePoints{pts: sampleParametric(n, c.Start, c.End, c.at)}
	default:
		panic(fmt.Sprintf("curve: unknown spec %T", s))
	}
}

// Length is the length of the sampled spine of s.
func Length(s Spec) float64 {
	return ComputeSpine(s).Length()
}

func stepCount(length float64) int {
	n := int(math.Ceil(length/VertexDensity - 1e-9))
	if n < 1 {
		n = 1
	}
	return n
}

func polygonLength(pts ...v3.Vec) float64 {
	var l float64
	for i := 1; i < len(pts); i++ {
		l += pts[i].Sub(pts[i-1]).Length()
	}
	return l
}

func sampleParametric(n int, start, end v3.Vec, at func(t float64) v3.Vec) []v3.Vec {
	pts := make([]v3.Vec, n+1)
	pts[0] = start
	for i := 1; i < n; i++ {
		pts[i] = at(float64(i) / float64(n))
	}
	pts[n] = end
	return pts
}

func sampleArc(c Circular) []v3.Vec {
	a0, sweep := c.angles()
	r := c.radius()
	n := stepCount(r * math.Abs(sweep))
	pts := make([]v3.Vec, n+1)
	pts[0] = c.Start
	for i := 1; i < n; i++ {
		t := float64(i) / float64(n)
		a := a0 + sweep*t
		pts[i] = v3.Vec{
			X: c.Center.X + r*math.Cos(a),
			Y: c.Center.Y + r*math.Sin(a),
			Z: c.Start.Z + (c.End.Z-c.Start.Z)*t,
		}
	}
	pts[n] = c.End
	return pts
}

func (c Quadratic) at(t float64) v3.Vec {
	u := 1 - t
	return c.Start.MulScalar(u * u).
		Add(c.Control.MulScalar(2 * u * t)).
		Add(c.End.MulScalar(t * t))
}

func (c Cubic) at(t float64) v3.Vec {
	u := 1 - t
	return c.Start.MulScalar(u * u * u).
		Add(c.Control1.MulScalar(3 * u * u * t)).
		Add(c.Control2.MulScalar(3 * u * t * t)).
		Add(c.End.MulScalar(t * t * t))
}

// Spine owns a curve specification and the samples derived from it. The
// samples are computed on first use and recomputed after SetSpec.
type Spine struct {
	spec   Spec
	points *SpinePoints
}

// NewSpine returns a spine for s.
func NewSpine(s Spec) *Spine {
	return &Spine{spec: s}
}

// Spec returns the current specification.
func (sp *Spine) Spec() Spec { return sp.spec }

// SetSpec replaces the specification and drops the cached samples.
func (sp *Spine) SetSpec(s Spec) {
	sp.spec = s
	sp.points = nil
}

// Points returns the samples for the current specification.
func (sp *Spine) Points() SpinePoints {
	if sp.points == nil {
		p := ComputeSpine(sp.spec)
		sp.points = &p
	}
	return *sp.points
}
