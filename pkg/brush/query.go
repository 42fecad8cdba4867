package brush

import (
	"math"

	"github.com/chazu/mortar/pkg/geom"
	"github.com/chazu/mortar/pkg/tag"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Queries on an invalid brush return empty or false values.

// Valid reports whether the faces bound a convex polyhedron.
func (b *Brush) Valid() bool {
	return b.geo != nil
}

// Closed reports whether every edge separates exactly two faces. Rebuild
// rejects open volumes, so this is the same as Valid.
func (b *Brush) Closed() bool {
	return b.geo != nil
}

// InvalidReason explains why the brush is invalid.
func (b *Brush) InvalidReason() InvalidReason {
	return b.reason
}

// FaceCount returns the number of faces.
func (b *Brush) FaceCount() int {
	return len(b.faces)
}

// Faces returns a copy of the face list.
func (b *Brush) Faces() []Face {
	return append([]Face(nil), b.faces...)
}

// Face returns face i.
func (b *Brush) Face(i int) (Face, bool) {
	if i < 0 || i >= len(b.faces) {
		return Face{}, false
	}
	return b.faces[i], true
}

// FullySpecified reports whether every face has a texture.
func (b *Brush) FullySpecified() bool {
	for _, f := range b.faces {
		if f.Attributes.Texture == "" {
			return false
		}
	}
	return len(b.faces) > 0
}

// Bounds returns the bounding box of the vertices, or an empty box.
func (b *Brush) Bounds() sdf.Box3 {
	if b.geo == nil {
		return geom.EmptyBox()
	}
	return b.geo.Bounds
}

// VertexCount returns the number of vertices.
func (b *Brush) VertexCount() int {
	if b.geo == nil {
		return 0
	}
	return len(b.geo.Vertices)
}

// Vertices returns a copy of the vertex positions.
func (b *Brush) Vertices() []v3.Vec {
	if b.geo == nil {
		return nil
	}
	return append([]v3.Vec(nil), b.geo.Vertices...)
}

// EdgeCount returns the number of edges.
func (b *Brush) EdgeCount() int {
	if b.geo == nil {
		return 0
	}
	return len(b.geo.Edges)
}

// Edges returns a copy of the edge list.
func (b *Brush) Edges() []Edge {
	if b.geo == nil {
		return nil
	}
	return append([]Edge(nil), b.geo.Edges...)
}

// Geometry returns a copy of the derived geometry, or nil.
func (b *Brush) Geometry() *Geometry {
	if b.geo == nil {
		return nil
	}
	return b.geo.clone()
}

// FacePolygon returns the boundary loop of face i in CCW order.
func (b *Brush) FacePolygon(i int) []v3.Vec {
	if b.geo == nil || i < 0 || i >= len(b.geo.Polygons) {
		return nil
	}
	loop := b.geo.Polygons[i]
	pts := make([]v3.Vec, len(loop))
	for j, vi := range loop {
		pts[j] = b.geo.Vertices[vi]
	}
	return pts
}

// HasVertex reports whether a vertex lies within eps of p.
func (b *Brush) HasVertex(p v3.Vec, eps float64) bool {
	if b.geo == nil {
		return false
	}
	for _, v := range b.geo.Vertices {
		if geom.PointEquals(v, p, eps) {
			return true
		}
	}
	return false
}

// HasEdge reports whether an edge joins p0 and p1, in either direction.
func (b *Brush) HasEdge(p0, p1 v3.Vec, eps float64) bool {
	if b.geo == nil {
		return false
	}
	for _, e := range b.geo.Edges {
		if geom.SegmentEquals(b.geo.Vertices[e.V0], b.geo.Vertices[e.V1], p0, p1, eps) {
			return true
		}
	}
	return false
}

// HasFace reports whether some face loop matches points, in any rotation
// and either winding.
func (b *Brush) HasFace(points []v3.Vec, eps float64) bool {
	if b.geo == nil {
		return false
	}
	for i := range b.geo.Polygons {
		if geom.PolygonEquals(b.FacePolygon(i), points, eps) {
			return true
		}
	}
	return false
}

// ContainsPoint reports whether p lies inside or on the brush.
func (b *Brush) ContainsPoint(p v3.Vec) bool {
	if b.geo == nil {
		return false
	}
	if !geom.BoxContainsPoint(b.geo.Bounds, p) {
		return false
	}
	for _, f := range b.faces {
		if f.Plane.Status(p, geom.PointStatusEpsilon) == geom.PointAbove {
			return false
		}
	}
	return true
}

// FindClosestVertex returns the vertex nearest to p within maxDistance.
func (b *Brush) FindClosestVertex(p v3.Vec, maxDistance float64) (v3.Vec, bool) {
	if b.geo == nil {
		return v3.Vec{}, false
	}
	best, bestDist := -1, math.Inf(1)
	for i, v := range b.geo.Vertices {
		d := v.Sub(p).Length()
		if d <= maxDistance && d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return v3.Vec{}, false
	}
	return b.geo.Vertices[best], true
}

// IncidentFaces returns the indices of the faces whose loop contains the
// vertex at p.
func (b *Brush) IncidentFaces(p v3.Vec, eps float64) []int {
	if b.geo == nil {
		return nil
	}
	var out []int
	for fi, loop := range b.geo.Polygons {
		for _, vi := range loop {
			if geom.PointEquals(b.geo.Vertices[vi], p, eps) {
				out = append(out, fi)
				break
			}
		}
	}
	return out
}

// Intersects reports whether the brush overlaps other.
func (b *Brush) Intersects(other *Brush) bool {
	if b.geo == nil || other.geo == nil {
		return false
	}
	if !geom.BoxIntersects(b.geo.Bounds, other.geo.Bounds) {
		return false
	}
	// Only face planes are tried as separators, so brushes separated solely
	// along an edge-edge axis are reported as intersecting.
	for _, f := range b.faces {
		if allAbove(f.Plane, other.geo.Vertices) {
			return false
		}
	}
	for _, f := range other.faces {
		if allAbove(f.Plane, b.geo.Vertices) {
			return false
		}
	}
	return true
}

// Contains reports whether other lies entirely within b.
func (b *Brush) Contains(other *Brush) bool {
	if b.geo == nil || other.geo == nil {
		return false
	}
	for _, v := range other.geo.Vertices {
		if !b.ContainsPoint(v) {
			return false
		}
	}
	return true
}

func allAbove(p geom.Plane, pts []v3.Vec) bool {
	for _, v := range pts {
		if p.Status(v, geom.PointStatusEpsilon) != geom.PointAbove {
			return false
		}
	}
	return true
}

// PickFace casts r against the brush and returns the face it enters through
// and the distance along the ray. Rays starting inside the brush miss.
func (b *Brush) PickFace(r geom.Ray) (int, float64, bool) {
	if b.geo == nil {
		return -1, 0, false
	}
	if _, ok := geom.RayBox(r, b.geo.Bounds); !ok {
		return -1, 0, false
	}
	tEnter, tExit := math.Inf(-1), math.Inf(1)
	hit := -1
	for i, f := range b.faces {
		denom := f.Plane.Normal.Dot(r.Direction)
		dist := f.Plane.SignedDistance(r.Origin)
		if math.Abs(denom) < geom.ParallelEpsilon {
			if dist > geom.PointStatusEpsilon {
				return -1, 0, false
			}
			continue
		}
		t := -dist / denom
		if denom < 0 {
			if t > tEnter {
				tEnter, hit = t, i
			}
		} else if t < tExit {
			tExit = t
		}
	}
	if hit < 0 || tEnter > tExit || tEnter < 0 {
		return -1, 0, false
	}
	return hit, tEnter, true
}

// ---------------------------------------------------------------------------
// Tags
// ---------------------------------------------------------------------------

// AllFacesHaveAnyTagInMask reports whether every face carries a tag in mask.
func (b *Brush) AllFacesHaveAnyTagInMask(mask tag.Mask) bool {
	if len(b.faces) == 0 {
		return false
	}
	for _, f := range b.faces {
		if !f.Tags.Has(mask) {
			return false
		}
	}
	return true
}

// AnyFaceHasAnyTag reports whether some face carries any tag.
func (b *Brush) AnyFaceHasAnyTag() bool {
	for _, f := range b.faces {
		if f.Tags != 0 {
			return true
		}
	}
	return false
}

// AnyFaceHasAnyTagInMask reports whether some face carries a tag in mask.
func (b *Brush) AnyFaceHasAnyTagInMask(mask tag.Mask) bool {
	for _, f := range b.faces {
		if f.Tags.Has(mask) {
			return true
		}
	}
	return false
}

// FaceTagMask returns the union of all face tags.
func (b *Brush) FaceTagMask() tag.Mask {
	var m tag.Mask
	for _, f := range b.faces {
		m |= f.Tags
	}
	return m
}
