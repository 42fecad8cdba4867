// Package brush implements convex brushes: solids bounded by an ordered list
// of half-space faces, with vertex, edge and face-loop geometry derived by
// half-space intersection.
package brush

import (
	"errors"
	"fmt"

	"github.com/chazu/mortar/pkg/geom"
	"github.com/chazu/mortar/pkg/tag"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrDegenerateFace is returned when three face points do not span a plane.
var ErrDegenerateFace = errors.New("brush: face points are collinear")

// Attributes holds the surface attributes of a face. They never affect
// geometry.
type Attributes struct {
	Texture  string  `yaml:"texture"`
	OffsetX  float64 `yaml:"offset_x"`
	OffsetY  float64 `yaml:"offset_y"`
	Rotation float64 `yaml:"rotation"`
	ScaleX   float64 `yaml:"scale_x"`
	ScaleY   float64 `yaml:"scale_y"`
}

// DefaultAttributes returns unit-scale attributes with the given texture.
func DefaultAttributes(texture string) Attributes {
	return Attributes{Texture: texture, ScaleX: 1, ScaleY: 1}
}

// Face is one bounding half-space of a brush. The three points define the
// plane; the normal (p1-p0)×(p2-p0) points out of the brush.
type Face struct {
	Points     [3]v3.Vec
	Plane      geom.Plane
	Attributes Attributes
	Tags       tag.Mask
}

// NewFace builds a face through three points.
func NewFace(p0, p1, p2 v3.Vec, attrs Attributes) (Face, error) {
	pl, ok := geom.PlaneFromPoints(p0, p1, p2)
	if !ok {
		return Face{}, fmt.Errorf("%w: %v %v %v", ErrDegenerateFace, p0, p1, p2)
	}
	return Face{Points: [3]v3.Vec{p0, p1, p2}, Plane: pl, Attributes: attrs}, nil
}

// Transformed returns the face with m applied to its points. Mirroring
// transforms swap two points so the normal keeps pointing outward.
func (f Face) Transformed(m sdf.M44) (Face, error) {
	p0 := m.MulPosition(f.Points[0])
	p1 := m.MulPosition(f.Points[1])
	p2 := m.MulPosition(f.Points[2])
	if m.Determinant() < 0 {
		p1, p2 = p2, p1
	}
	out, err := NewFace(p0, p1, p2, f.Attributes)
	if err != nil {
		return Face{}, err
	}
	out.Tags = f.Tags
	return out, nil
}

// ---------------------------------------------------------------------------
// Cuboid
// ---------------------------------------------------------------------------

// CuboidFaces returns the six faces of an axis-aligned box in the order
// -X, +X, -Y, +Y, -Z, +Z.
func CuboidFaces(box sdf.Box3, attrs Attributes) []Face {
	lo, hi := box.Min, box.Max
	x, y, z := v3.Vec{X: 1}, v3.Vec{Y: 1}, v3.Vec{Z: 1}
	pts := [6][3]v3.Vec{
		{lo, lo.Add(z), lo.Add(y)},
		{v3.Vec{X: hi.X, Y: lo.Y, Z: lo.Z}, v3.Vec{X: hi.X, Y: lo.Y, Z: lo.Z}.Add(y), v3.Vec{X: hi.X, Y: lo.Y, Z: lo.Z}.Add(z)},
		{lo, lo.Add(x), lo.Add(z)},
		{v3.Vec{X: lo.X, Y: hi.Y, Z: lo.Z}, v3.Vec{X: lo.X, Y: hi.Y, Z: lo.Z}.Add(z), v3.Vec{X: lo.X, Y: hi.Y, Z: lo.Z}.Add(x)},
		{lo, lo.Add(y), lo.Add(x)},
		{v3.Vec{X: lo.X, Y: lo.Y, Z: hi.Z}, v3.Vec{X: lo.X, Y: lo.Y, Z: hi.Z}.Add(x), v3.Vec{X: lo.X, Y: lo.Y, Z: hi.Z}.Add(y)},
	}
	faces := make([]Face, 0, 6)
	for _, p := range pts {
		// Unit offsets along distinct axes are never collinear.
		f, _ := NewFace(p[0], p[1], p[2], attrs)
		faces = append(faces, f)
	}
	return faces
}
