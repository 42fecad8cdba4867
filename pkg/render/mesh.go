// Package render holds the renderer-side view of brushes: flat triangle
// meshes and the lazily built per-brush cache the scene invalidates.
package render

import (
	"github.com/chazu/mortar/pkg/brush"
)

// Mesh is a triangle mesh suitable for rendering.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	Name     string    `json:"name"`     // classname of the owning entity
	Texture  []string  `json:"texture"`  // per triangle
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Triangulate fans every face loop of b. Faces get their own vertices so
// normals stay flat. An invalid brush yields an empty mesh.
func Triangulate(b *brush.Brush) *Mesh {
	m := &Mesh{}
	for i := 0; i < b.FaceCount(); i++ {
		loop := b.FacePolygon(i)
		if len(loop) < 3 {
			continue
		}
		f, _ := b.Face(i)
		n := f.Plane.Normal
		base := uint32(m.VertexCount())
		for _, p := range loop {
			m.Vertices = append(m.Vertices, float32(p.X), float32(p.Y), float32(p.Z))
			m.Normals = append(m.Normals, float32(n.X), float32(n.Y), float32(n.Z))
		}
		for j := 1; j+1 < len(loop); j++ {
			m.Indices = append(m.Indices, base, base+uint32(j), base+uint32(j+1))
			m.Texture = append(m.Texture, f.Attributes.Texture)
		}
	}
	return m
}

// BrushCache is attached to a brush node and holds its mesh until the scene
// invalidates it. It is only touched by the goroutine that owns the scene.
type BrushCache struct {
	mesh   *Mesh
	builds int
}

// Invalidate drops the cached mesh.
func (c *BrushCache) Invalidate() {
	c.mesh = nil
}

// Mesh returns the cached mesh for b, building it first if needed.
func (c *BrushCache) Mesh(b *brush.Brush) *Mesh {
	if c.mesh == nil {
		c.mesh = Triangulate(b)
		c.builds++
	}
	return c.mesh
}

// Builds reports how often the mesh was rebuilt.
func (c *BrushCache) Builds() int { return c.builds }
