// Package kernel defines the abstract geometry kernel interface used to turn
// road segments and trees into meshes for the renderer. The kernel
// abstraction allows swapping backends without changing the rest of the
// system.
package kernel

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Slab is a flat box running from x=0 to x=length, centered on the
	// x axis across its width, with its top face at z=0.
	Slab(length, width, thickness float64) Solid
	// Cylinder is centered on the origin with its axis along z.
	Cylinder(height, radius float64, segments int) Solid

	Union(a, b Solid) Solid

	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees

	ToMesh(s Solid) (*Mesh, error)
}
