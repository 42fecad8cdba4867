package brush

import (
	"errors"
	"fmt"

	"github.com/chazu/mortar/pkg/geom"
	"github.com/chazu/mortar/pkg/tag"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

var (
	// ErrCannotTransform is returned when a transform would leave the brush
	// degenerate or outside the world bounds.
	ErrCannotTransform = errors.New("brush: transform would produce an invalid brush")

	// ErrFaceIndex is returned for an out-of-range face index.
	ErrFaceIndex = errors.New("brush: face index out of range")
)

// Brush is a convex solid. Every method that changes the face list rebuilds
// the derived geometry before returning, so geometry is never stale.
type Brush struct {
	world  sdf.Box3
	faces  []Face
	geo    *Geometry // nil when the face list is not a valid polyhedron
	reason InvalidReason
}

// New builds a brush from faces clipped by the world bounds. The result may
// be invalid; check Valid.
func New(world sdf.Box3, faces []Face) *Brush {
	b := &Brush{world: world}
	b.setFaces(faces)
	return b
}

// Cuboid builds an axis-aligned box brush.
func Cuboid(world sdf.Box3, box sdf.Box3, attrs Attributes) (*Brush, error) {
	b := New(world, CuboidFaces(box, attrs))
	if !b.Valid() {
		return nil, fmt.Errorf("brush: cuboid %v-%v: %s", box.Min, box.Max, b.reason)
	}
	return b, nil
}

// Clone returns a deep copy.
func (b *Brush) Clone() *Brush {
	c := &Brush{world: b.world, reason: b.reason}
	c.faces = append([]Face(nil), b.faces...)
	if b.geo != nil {
		c.geo = b.geo.clone()
	}
	return c
}

func (g *Geometry) clone() *Geometry {
	c := &Geometry{
		Vertices: append([]v3.Vec(nil), g.Vertices...),
		Edges:    append([]Edge(nil), g.Edges...),
		Polygons: make([][]int, len(g.Polygons)),
		Bounds:   g.Bounds,
	}
	for i, p := range g.Polygons {
		c.Polygons[i] = append([]int(nil), p...)
	}
	return c
}

func (b *Brush) setFaces(faces []Face) {
	b.faces = append([]Face(nil), faces...)
	b.rebuild()
}

func (b *Brush) rebuild() {
	b.geo, b.reason = buildGeometry(b.faces, b.world)
}

// WorldBounds returns the bounds the brush is clipped by.
func (b *Brush) WorldBounds() sdf.Box3 {
	return b.world
}

// ---------------------------------------------------------------------------
// Face list mutation
// ---------------------------------------------------------------------------

// SetFaces replaces the whole face list.
func (b *Brush) SetFaces(faces []Face) {
	b.setFaces(faces)
}

// AddFace appends a face.
func (b *Brush) AddFace(f Face) {
	b.faces = append(b.faces, f)
	b.rebuild()
}

// RemoveFace removes the face at index i.
func (b *Brush) RemoveFace(i int) error {
	if i < 0 || i >= len(b.faces) {
		return fmt.Errorf("%w: %d", ErrFaceIndex, i)
	}
	b.faces = append(b.faces[:i:i], b.faces[i+1:]...)
	b.rebuild()
	return nil
}

// ReplaceFace replaces the face at index i.
func (b *Brush) ReplaceFace(i int, f Face) error {
	if i < 0 || i >= len(b.faces) {
		return fmt.Errorf("%w: %d", ErrFaceIndex, i)
	}
	b.faces[i] = f
	b.rebuild()
	return nil
}

// SetFaceAttributes changes the surface attributes of face i. Geometry is
// unaffected.
func (b *Brush) SetFaceAttributes(i int, attrs Attributes) error {
	if i < 0 || i >= len(b.faces) {
		return fmt.Errorf("%w: %d", ErrFaceIndex, i)
	}
	b.faces[i].Attributes = attrs
	return nil
}

// SetFaceTags recomputes every face's tag mask.
func (b *Brush) SetFaceTags(fn func(Face) tag.Mask) {
	for i := range b.faces {
		b.faces[i].Tags = fn(b.faces[i])
	}
}

// CloneFaceAttributesFrom copies attributes from faces of other that lie in
// the same plane as a face of b.
func (b *Brush) CloneFaceAttributesFrom(other *Brush) {
	for i := range b.faces {
		for _, of := range other.faces {
			if of.Plane.Equals(b.faces[i].Plane, geom.PointStatusEpsilon) {
				b.faces[i].Attributes = of.Attributes
				break
			}
		}
	}
}

// CloneInvertedFaceAttributesFrom copies attributes from faces of other whose
// plane is the inverse of a face of b, as when carving a hollow.
func (b *Brush) CloneInvertedFaceAttributesFrom(other *Brush) {
	for i := range b.faces {
		inv := b.faces[i].Plane.Inverted()
		for _, of := range other.faces {
			if of.Plane.Equals(inv, geom.PointStatusEpsilon) {
				b.faces[i].Attributes = of.Attributes
				break
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Transform
// ---------------------------------------------------------------------------

// transformed returns a copy of b with m applied to every face plane.
func (b *Brush) transformed(m sdf.M44) (*Brush, error) {
	faces := make([]Face, len(b.faces))
	for i, f := range b.faces {
		tf, err := f.Transformed(m)
		if err != nil {
			return nil, err
		}
		faces[i] = tf
	}
	return New(b.world, faces), nil
}

// CanTransform reports whether applying m keeps the brush valid and inside
// the world bounds.
func (b *Brush) CanTransform(m sdf.M44) bool {
	if !b.Valid() {
		return false
	}
	t, err := b.transformed(m)
	if err != nil || !t.Valid() {
		return false
	}
	return geom.BoxContainsBox(b.world, t.Bounds())
}

// Transform applies m to every face and rebuilds. Nothing changes unless
// CanTransform holds.
func (b *Brush) Transform(m sdf.M44) error {
	if !b.CanTransform(m) {
		return ErrCannotTransform
	}
	t, _ := b.transformed(m)
	b.faces, b.geo, b.reason = t.faces, t.geo, t.reason
	return nil
}
