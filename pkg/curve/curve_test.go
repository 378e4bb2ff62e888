package curve_test

import (
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/asphalt/pkg/curve"
)

func vec(x, y, z float64) v3.Vec { return v3.Vec{X: x, Y: y, Z: z} }

func unit(v v3.Vec) v3.Vec {
	v.Z = 0
	return v.MulScalar(1 / v.Length())
}

func near(a, b v3.Vec, tol float64) bool {
	return a.Sub(b).Length() <= tol
}

// sampleSpecs returns one instance of every curve variant.
func sampleSpecs() []curve.Spec {
	return []curve.Spec{
		curve.Straight{Start: vec(0, 0, 0), End: vec(20, 0, 0)},
		curve.Circular{Start: vec(10, 0, 0), End: vec(0, 10, 2), Center: vec(0, 0, 0)},
		curve.Circular{Start: vec(0, 10, 0), End: vec(10, 0, 0), Center: vec(0, 0, 0), Clockwise: true},
		curve.Quadratic{Start: vec(0, 0, 0), Control: vec(10, 10, 0), End: vec(20, 0, 0)},
		curve.Cubic{Start: vec(0, 0, 0), Control1: vec(5, 10, 0), Control2: vec(15, -10, 0), End: vec(20, 0, 1)},
	}
}

func TestReverseIsSelfInverse(t *testing.T) {
	for _, s := range sampleSpecs() {
		t.Run(s.Kind().String(), func(t *testing.T) {
			r := curve.Reverse(s)
			if r == s {
				t.Fatalf("Reverse returned the same curve %+v", s)
			}
			if got := curve.Reverse(r); got != s {
				t.Errorf("Reverse(Reverse(s)) = %+v, want %+v", got, s)
			}
			s0, s1 := curve.Endpoints(s)
			r0, r1 := curve.Endpoints(r)
			if r0 != s1 || r1 != s0 {
				t.Errorf("reversed endpoints = %v,%v, want %v,%v", r0, r1, s1, s0)
			}
		})
	}
}

func TestReverseTracesSameCenterline(t *testing.T) {
	for _, s := range sampleSpecs() {
		t.Run(s.Kind().String(), func(t *testing.T) {
			fwd := curve.ComputeSpine(s)
			back := curve.ComputeSpine(curve.Reverse(s))
			for i := 0; i < fwd.Len(); i++ {
				if d := back.Distance(fwd.At(i)); d > 0.05 {
					t.Fatalf("sample %d (%v) is %.3f from the reversed spine", i, fwd.At(i), d)
				}
			}
		})
	}
}

func TestSpineEndpointsAreExact(t *testing.T) {
	for _, s := range sampleSpecs() {
		t.Run(s.Kind().String(), func(t *testing.T) {
			sp := curve.ComputeSpine(s)
			start, end := curve.Endpoints(s)
			if sp.First() != start {
				t.Errorf("first sample = %v, want %v", sp.First(), start)
			}
			if sp.Last() != end {
				t.Errorf("last sample = %v, want %v", sp.Last(), end)
			}
		})
	}
}

func TestStraightSpine(t *testing.T) {
	s := curve.Straight{Start: vec(0, 0, 0), End: vec(20, 0, 0)}
	sp := curve.ComputeSpine(s)

	if sp.Len() != 2 {
		t.Fatalf("expected 2 samples, got %d", sp.Len())
	}
	if math.Abs(sp.Length()-20) > 1e-9 {
		t.Errorf("length = %f, want 20", sp.Length())
	}

	tests := []struct {
		name  string
		pos   v3.Vec
		width float64
		want  bool
	}{
		{"on centerline", vec(10, 0, 0), 2, true},
		{"edge of width", vec(10, 1, 0), 2, true},
		{"outside width", vec(10, 5, 0), 2, false},
		{"past the end", vec(22, 0, 0), 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := curve.ContainsPos(s, tt.pos, tt.width); got != tt.want {
				t.Errorf("ContainsPos(%v, %v) = %v, want %v", tt.pos, tt.width, got, tt.want)
			}
			if got := sp.Contains(tt.pos, tt.width); got != tt.want {
				t.Errorf("SpinePoints.Contains(%v, %v) = %v, want %v", tt.pos, tt.width, got, tt.want)
			}
		})
	}
}

func TestCircularSpine(t *testing.T) {
	c := curve.Circular{Start: vec(10, 0, 0), End: vec(0, 10, 0), Center: vec(0, 0, 0)}
	sp := curve.ComputeSpine(c)

	wantLen := 10 * math.Pi / 2
	if n := sp.Len() - 1; n != int(math.Ceil(wantLen/curve.VertexDensity)) {
		t.Errorf("expected %d steps, got %d", int(math.Ceil(wantLen)), n)
	}
	for i := 0; i < sp.Len(); i++ {
		p := sp.At(i)
		if r := math.Hypot(p.X, p.Y); math.Abs(r-10) > 1e-9 {
			t.Fatalf("sample %d at radius %f, want 10", i, r)
		}
		if p.X < -1e-9 || p.Y < -1e-9 {
			t.Fatalf("sample %d (%v) left the first quadrant", i, p)
		}
	}
	if math.Abs(sp.Length()-wantLen) > 0.05 {
		t.Errorf("length = %f, want about %f", sp.Length(), wantLen)
	}
	if !curve.ContainsPos(c, vec(7.07, 7.07, 0), 1) {
		t.Error("arc midpoint should be on the road")
	}
	if curve.ContainsPos(c, vec(0, 0, 0), 1) {
		t.Error("arc center should not be on the road")
	}
}

func TestBezierSampleCount(t *testing.T) {
	q := curve.Quadratic{Start: vec(0, 0, 0), Control: vec(10, 0, 0), End: vec(20, 0, 0)}
	if got := curve.ComputeSpine(q).Len(); got != 21 {
		t.Errorf("quadratic samples = %d, want 21", got)
	}
	c := curve.Cubic{Start: vec(0, 0, 0), Control1: vec(3, 0, 0), Control2: vec(7, 0, 0), End: vec(10, 0, 0)}
	if got := curve.ComputeSpine(c).Len(); got != 11 {
		t.Errorf("cubic samples = %d, want 11", got)
	}
}

func TestSpineCache(t *testing.T) {
	sp := curve.NewSpine(curve.Straight{Start: vec(0, 0, 0), End: vec(10, 0, 0)})
	if l := sp.Points().Length(); math.Abs(l-10) > 1e-9 {
		t.Fatalf("length = %f, want 10", l)
	}
	sp.SetSpec(curve.Straight{Start: vec(0, 0, 0), End: vec(30, 0, 0)})
	if l := sp.Points().Length(); math.Abs(l-30) > 1e-9 {
		t.Errorf("length after SetSpec = %f, want 30", l)
	}
}

func TestSpineBounds(t *testing.T) {
	sp := curve.ComputeSpine(curve.Straight{Start: vec(5, -2, 0), End: vec(-3, 4, 0)})
	b := sp.Bounds()
	if b.Min.X != -3 || b.Min.Y != -2 || b.Max.X != 5 || b.Max.Y != 4 {
		t.Errorf("bounds = %+v", b)
	}
}

func TestPointsIsACopy(t *testing.T) {
	sp := curve.ComputeSpine(curve.Straight{Start: vec(0, 0, 0), End: vec(10, 0, 0)})
	pts := sp.Points()
	pts[0] = vec(99, 99, 99)
	if sp.First() != vec(0, 0, 0) {
		t.Error("mutating Points() changed the spine")
	}
}

func TestGuide(t *testing.T) {
	c := curve.Circular{Start: vec(10, 0, 0), End: vec(0, 10, 0), Center: vec(0, 0, 0)}
	g := curve.Guide(c)
	if len(g) != 3 {
		t.Fatalf("expected 3 guide points, got %d", len(g))
	}
	if !near(g[1], vec(10, 10, 0), 1e-9) {
		t.Errorf("tangent meet = %v, want (10,10,0)", g[1])
	}
}

func TestEndDirections(t *testing.T) {
	tests := []struct {
		name       string
		spec       curve.Spec
		start, end v3.Vec
	}{
		{"straight", curve.Straight{Start: vec(0, 0, 0), End: vec(0, 5, 3)}, vec(0, 1, 0), vec(0, 1, 0)},
		{"ccw arc", curve.Circular{Start: vec(10, 0, 0), End: vec(0, 10, 0), Center: vec(0, 0, 0)}, vec(0, 1, 0), vec(-1, 0, 0)},
		{"cw arc", curve.Circular{Start: vec(0, 10, 0), End: vec(10, 0, 0), Center: vec(0, 0, 0), Clockwise: true}, vec(1, 0, 0), vec(0, -1, 0)},
		{"quadratic", curve.Quadratic{Start: vec(0, 0, 0), Control: vec(10, 0, 0), End: vec(10, 10, 0)}, vec(1, 0, 0), vec(0, 1, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, e := curve.EndDirections(tt.spec)
			if !near(s, tt.start, 1e-9) || !near(e, tt.end, 1e-9) {
				t.Errorf("EndDirections = %v,%v, want %v,%v", s, e, tt.start, tt.end)
			}
		})
	}
}

func TestTypeCycle(t *testing.T) {
	typ := curve.TypeStraight
	seen := map[curve.Type]bool{}
	for i := 0; i < 4; i++ {
		seen[typ] = true
		typ = typ.Next()
	}
	if typ != curve.TypeStraight || len(seen) != 4 {
		t.Errorf("Next did not cycle through all types")
	}
	if curve.TypeStraight.Prev() != curve.TypeCubic {
		t.Errorf("Prev of straight = %v, want cubic", curve.TypeStraight.Prev())
	}
	for _, typ := range []curve.Type{curve.TypeStraight, curve.TypeCircular, curve.TypeQuadratic, curve.TypeCubic} {
		got, err := curve.ParseType(typ.String())
		if err != nil || got != typ {
			t.Errorf("ParseType(%q) = %v, %v", typ.String(), got, err)
		}
	}
	if _, err := curve.ParseType("spiral"); err == nil {
		t.Error("expected error for unknown curve type")
	}
}
