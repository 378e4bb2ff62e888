package sdfx

import (
	"math"
	"testing"

	"github.com/chazu/asphalt/pkg/kernel"
	"github.com/chazu/asphalt/pkg/lane"
)

// within reports whether got is within tol of want on every axis.
func within(got, want [3]float64, tol float64) bool {
	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			return false
		}
	}
	return true
}

func mustMesh(t *testing.T, k *SdfxKernel, s kernel.Solid) *kernel.Mesh {
	t.Helper()
	m, err := k.ToMesh(s)
	if err != nil {
		t.Fatalf("ToMesh: %v", err)
	}
	if m.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	if len(m.Vertices) != len(m.Normals) || len(m.Indices) != 3*m.TriangleCount() {
		t.Fatalf("ragged mesh: %d vertices, %d normals, %d indices",
			len(m.Vertices), len(m.Normals), len(m.Indices))
	}
	return m
}

func TestDeckSlabPerWidth(t *testing.T) {
	k := New()
	for _, w := range []lane.Width{lane.Narrow, lane.Standard, lane.Wide} {
		t.Run(w.String(), func(t *testing.T) {
			width := lane.NewNodeType(w, 2).RoadWidth()
			min, max := k.Slab(20, width, 0.5).BoundingBox()
			if !within(min, [3]float64{0, -width / 2, -0.5}, 0.01) ||
				!within(max, [3]float64{20, width / 2, 0}, 0.01) {
				t.Errorf("bounds = %v, %v", min, max)
			}
		})
	}
}

func TestDeckSlabMesh(t *testing.T) {
	k := New(WithMeshCells(100))
	m := mustMesh(t, k, k.Slab(20, 6, 1))

	// Marching cubes lands within a cell of the true surface.
	lo, hi := m.Bounds()
	const cell = 0.5
	if float64(lo[0]) < -cell || float64(hi[0]) > 20+cell || float64(hi[2]) > cell {
		t.Errorf("deck mesh bounds = %v, %v", lo, hi)
	}
}

func TestTreeTrunkMesh(t *testing.T) {
	k := New(WithMeshCells(64))
	// A trunk standing on (5,5,0).
	trunk := k.Translate(k.Cylinder(6, 0.6, 16), 5, 5, 3)
	min, max := trunk.BoundingBox()
	if !within(min, [3]float64{4.4, 4.4, 0}, 0.01) || !within(max, [3]float64{5.6, 5.6, 6}, 0.01) {
		t.Errorf("trunk bounds = %v, %v", min, max)
	}
	m := mustMesh(t, k, trunk)
	if lo, hi := m.Bounds(); lo[2] < -0.2 || hi[2] < 5.8 {
		t.Errorf("trunk mesh Z extent [%f, %f]", lo[2], hi[2])
	}
}

func TestSpanHeading(t *testing.T) {
	k := New()
	// A quarter turn about Z puts the slab's length across Y.
	min, max := k.Rotate(k.Slab(40, 6, 0.5), 0, 0, 90).BoundingBox()
	if dx, dy := max[0]-min[0], max[1]-min[1]; math.Abs(dx-6) > 0.5 || math.Abs(dy-40) > 0.5 {
		t.Errorf("rotated span extents = %f x %f, want 6 x 40", dx, dy)
	}
}

func TestSpanPitch(t *testing.T) {
	k := New()
	// Pitched 45 degrees, the span rises by about length*sin(45).
	min, max := k.Rotate(k.Slab(10, 6, 0.5), 0, -45, 0).BoundingBox()
	rise := 10 * math.Sin(math.Pi/4)
	if dz := max[2] - min[2]; dz < rise {
		t.Errorf("pitched span Z extent = %f, want at least %.2f", dz, rise)
	}
}

func TestSpansUnion(t *testing.T) {
	k := New(WithMeshCells(100))
	first := k.Slab(10.5, 6, 0.5)
	second := k.Translate(k.Slab(10.5, 6, 0.5), 9.75, 0, 0)
	deck := k.Union(first, second)

	min, max := deck.BoundingBox()
	if math.Abs(min[0]) > 0.01 || math.Abs(max[0]-20.25) > 0.01 {
		t.Errorf("deck X extent = [%f, %f], want [0, 20.25]", min[0], max[0])
	}
	mustMesh(t, k, deck)
}

func TestWithMeshCells(t *testing.T) {
	if got := New().MeshCells(); got != DefaultMeshCells {
		t.Errorf("default cells = %d, want %d", got, DefaultMeshCells)
	}
	if got := New(WithMeshCells(32)).MeshCells(); got != 32 {
		t.Errorf("cells = %d, want 32", got)
	}
	if got := New(WithMeshCells(0)).MeshCells(); got != DefaultMeshCells {
		t.Errorf("zero cells should keep the default, got %d", got)
	}
}
