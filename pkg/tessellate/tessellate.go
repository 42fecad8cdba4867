// Package tessellate walks a scene and produces triangle meshes for its
// visible brushes. One mesh is produced per brush, served from the render
// cache attached to the brush node.
package tessellate

import (
	"fmt"

	"github.com/chazu/mortar/pkg/property"
	"github.com/chazu/mortar/pkg/render"
	"github.com/chazu/mortar/pkg/scene"
)

// worldspawn names meshes of brushes that no entity owns.
const worldspawn = "worldspawn"

// Scene walks every visible layer of s and returns one mesh per brush.
// Brushes without a render cache get a fresh render.BrushCache, so only
// brushes changed since the last call are triangulated again. The scene
// structure is never modified.
func Scene(s *scene.Scene) ([]*render.Mesh, error) {
	if s == nil {
		return nil, nil
	}

	var meshes []*render.Mesh
	var walkErr error
	s.Walk(s.World(), func(h scene.Handle, k scene.Kind) bool {
		if walkErr != nil {
			return false
		}
		switch k {
		case scene.KindLayer:
			return s.Visible(h)
		case scene.KindBrush:
			m, err := brushMesh(s, h)
			if err != nil {
				walkErr = fmt.Errorf("tessellate: brush %s: %w", h, err)
				return false
			}
			if !m.IsEmpty() {
				meshes = append(meshes, m)
			}
		}
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return meshes, nil
}

// brushMesh returns the mesh for brush h via its render cache.
func brushMesh(s *scene.Scene, h scene.Handle) (*render.Mesh, error) {
	b, err := s.Brush(h)
	if err != nil {
		return nil, err
	}
	cache, ok := s.RenderCache(h).(*render.BrushCache)
	if !ok {
		cache = &render.BrushCache{}
		if err := s.SetRenderCache(h, cache); err != nil {
			return nil, err
		}
	}
	m := cache.Mesh(b)
	m.Name = ownerName(s, h)
	return m, nil
}

// ownerName is the classname of the entity owning h, or worldspawn.
func ownerName(s *scene.Scene, h scene.Handle) string {
	e, err := s.Entity(h)
	if err != nil {
		return worldspawn
	}
	p, err := s.Properties(e)
	if err != nil {
		return worldspawn
	}
	if c, ok := p.Get(property.KeyClassname); ok {
		return c
	}
	return worldspawn
}
