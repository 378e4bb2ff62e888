// Package tessellate turns the road network into triangle meshes using a
// geometry kernel. One mesh is produced per segment and per tree.
package tessellate

import (
	"context"
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/asphalt/pkg/kernel"
	"github.com/chazu/asphalt/pkg/road"
)

const (
	// DeckThickness is the depth of a road deck below its centerline.
	DeckThickness = 0.5
	// TreeHeight and TreeRadius size the trunk cylinder of a tree.
	TreeHeight = 6.0
	TreeRadius = 0.6

	// spanOverlap extends each deck slab past both ends of its span so
	// that consecutive slabs on a curve leave no gap at the joint.
	spanOverlap = 0.25
)

// Segment builds the deck of s as the union of one slab per spine span.
// The top face of the deck follows the spine.
func Segment(k kernel.Kernel, s road.Segment) (*kernel.Mesh, error) {
	if s.Spine.Len() < 2 {
		return nil, fmt.Errorf("tessellate: %s has %d spine points", s.ID, s.Spine.Len())
	}
	width := s.Type.RoadWidth()

	var deck kernel.Solid
	for i := 1; i < s.Spine.Len(); i++ {
		slab := spanSlab(k, s.Spine.At(i-1), s.Spine.At(i), width)
		if slab == nil {
			continue
		}
		if deck == nil {
			deck = slab
		} else {
			deck = k.Union(deck, slab)
		}
	}
	if deck == nil {
		return nil, fmt.Errorf("tessellate: %s has no spans of non-zero length", s.ID)
	}

	mesh, err := k.ToMesh(deck)
	if err != nil {
		return nil, fmt.Errorf("tessellate: ToMesh failed for %s: %w", s.ID, err)
	}
	mesh.Owner = s.ID.String()
	return mesh, nil
}

// spanSlab places a slab from a to b. Rotation is applied first (pitch
// about Y, then heading about Z), then translation.
func spanSlab(k kernel.Kernel, a, b v3.Vec, width float64) kernel.Solid {
	d := b.Sub(a)
	length := d.Length()
	if length < 1e-9 {
		return nil
	}
	heading := math.Atan2(d.Y, d.X) * 180 / math.Pi
	pitch := -math.Atan2(d.Z, math.Hypot(d.X, d.Y)) * 180 / math.Pi

	slab := k.Translate(k.Slab(length+2*spanOverlap, width, DeckThickness), -spanOverlap, 0, 0)
	if pitch != 0 || heading != 0 {
		slab = k.Rotate(slab, 0, pitch, heading)
	}
	return k.Translate(slab, a.X, a.Y, a.Z)
}

// Tree builds the trunk of t standing on its position.
func Tree(k kernel.Kernel, t road.Tree) (*kernel.Mesh, error) {
	trunk := k.Cylinder(TreeHeight, TreeRadius, 16)
	trunk = k.Translate(trunk, t.Pos.X, t.Pos.Y, t.Pos.Z+TreeHeight/2)
	mesh, err := k.ToMesh(trunk)
	if err != nil {
		return nil, fmt.Errorf("tessellate: ToMesh failed for %s: %w", t.ID, err)
	}
	mesh.Owner = t.ID.String()
	return mesh, nil
}

// Network meshes every segment (in insertion order) followed by every tree
// (in id order), running at most workers kernel calls at once. The output
// order does not depend on scheduling. The graph is only read.
func Network(ctx context.Context, g *road.Graph, k kernel.Kernel, workers int) ([]*kernel.Mesh, error) {
	if g == nil {
		return nil, nil
	}
	segs := g.Segments()
	trees := g.Trees()
	meshes := make([]*kernel.Mesh, len(segs)+len(trees))

	eg, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		eg.SetLimit(workers)
	}
	for i, s := range segs {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := Segment(k, s)
			if err != nil {
				return err
			}
			meshes[i] = m
			return nil
		})
	}
	for i, t := range trees {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := Tree(k, t)
			if err != nil {
				return err
			}
			meshes[len(segs)+i] = m
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return meshes, nil
}
