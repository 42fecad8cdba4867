package scene

import (
	"github.com/chazu/mortar/pkg/brush"
	"github.com/chazu/mortar/pkg/geom"
	"github.com/chazu/mortar/pkg/property"
	"github.com/chazu/mortar/pkg/tag"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// invalidate drops the cached bounds of h and its ancestors, and the render
// cache of h if it is a brush.
func (s *Scene) invalidate(h Handle) {
	n, err := s.get(h)
	if err != nil {
		return
	}
	if n.cache != nil {
		n.cache.Invalidate()
	}
	for {
		n.boundsValid = false
		if n.parent.IsZero() {
			return
		}
		if n, err = s.get(n.parent); err != nil {
			return
		}
	}
}

// Touch must be called after the payload of h changed in place: properties,
// brush faces or layer attributes. It invalidates cached bounds and render
// caches, rematches the entity definition and recomputes tags.
func (s *Scene) Touch(h Handle) error {
	n, err := s.get(h)
	if err != nil {
		return err
	}
	if d, ok := n.data.(*EntityData); ok {
		d.Definition = s.defs.Lookup(d.Properties.Classname())
	}
	s.invalidate(h)
	s.retagSubtree(h)
	return nil
}

// UpdateDefinitions rematches the definition of every entity, as after the
// registry was replaced.
func (s *Scene) UpdateDefinitions(defs *property.Registry) []Handle {
	if defs != nil {
		s.defs = defs
	}
	var touched []Handle
	s.Walk(s.world, func(h Handle, k Kind) bool {
		if k == KindEntity {
			_ = s.Touch(h)
			touched = append(touched, h)
		}
		return true
	})
	return touched
}

// Bounds returns the logical bounds of h, recomputing them if stale. An
// empty box is returned for nodes without extent.
func (s *Scene) Bounds(h Handle) sdf.Box3 {
	n, err := s.get(h)
	if err != nil {
		return geom.EmptyBox()
	}
	if n.boundsValid {
		return n.bounds
	}
	n.bounds = s.computeBounds(n)
	n.boundsValid = true
	return n.bounds
}

func (s *Scene) computeBounds(n *node) sdf.Box3 {
	switch d := n.data.(type) {
	case *WorldData, *LayerData, *GroupData:
		return s.childBounds(n)
	case *EntityData:
		if len(n.children) > 0 {
			return s.childBounds(n)
		}
		return property.PointBounds(d.Definition, entityOrigin(d.Properties))
	case *BrushData:
		return d.Brush.Bounds()
	default:
		panic(badKind(n.kind))
	}
}

func (s *Scene) childBounds(n *node) sdf.Box3 {
	b := geom.EmptyBox()
	for _, c := range n.children {
		cb := s.Bounds(c)
		if geom.IsEmptyBox(cb) {
			continue
		}
		if geom.IsEmptyBox(b) {
			b = cb
		} else {
			b = b.Extend(cb)
		}
	}
	return b
}

func entityOrigin(p *property.Store) v3.Vec {
	if v, ok := p.Get(property.KeyOrigin); ok {
		if o, err := property.ParseVec(v); err == nil {
			return o
		}
	}
	return v3.Vec{}
}

// ---------------------------------------------------------------------------
// Tags
// ---------------------------------------------------------------------------

// Tags returns the smart tags applied to h.
func (s *Scene) Tags(h Handle) tag.Mask {
	n, err := s.get(h)
	if err != nil {
		return 0
	}
	return n.tags
}

// VisitTags calls fn for every node below h, h included, whose tags
// intersect mask. Brush faces are reported individually with their index;
// nodes are reported with face -1. A brush is reported once as a node when
// any of its own tags match, before its matching faces.
func (s *Scene) VisitTags(h Handle, mask tag.Mask, fn func(h Handle, face int)) {
	s.Walk(h, func(c Handle, k Kind) bool {
		n, _ := s.get(c)
		switch d := n.data.(type) {
		case *WorldData, *LayerData, *GroupData, *EntityData:
			if n.tags.Has(mask) {
				fn(c, -1)
			}
		case *BrushData:
			if n.tags.Has(mask) {
				fn(c, -1)
			}
			for i, f := range d.Brush.Faces() {
				if f.Tags.Has(mask) {
					fn(c, i)
				}
			}
		default:
			panic(badKind(k))
		}
		return true
	})
}

func (s *Scene) retagSubtree(h Handle) {
	s.Walk(h, func(c Handle, _ Kind) bool {
		s.retag(c)
		return true
	})
}

// retag recomputes the tags of one node. Entities are tagged by classname;
// brushes carry their face tags plus the classname tags of their entity.
func (s *Scene) retag(h Handle) {
	n, err := s.get(h)
	if err != nil {
		return
	}
	switch d := n.data.(type) {
	case *WorldData, *LayerData, *GroupData:
		n.tags = 0
	case *EntityData:
		n.tags = s.tags.ClassnameTags(d.Properties.Classname())
	case *BrushData:
		d.Brush.SetFaceTags(func(f brush.Face) tag.Mask {
			return s.tags.FaceTags(f.Attributes.Texture)
		})
		n.tags = d.Brush.FaceTagMask()
		if p, err := s.get(n.parent); err == nil {
			if e, ok := p.data.(*EntityData); ok {
				n.tags |= s.tags.ClassnameTags(e.Properties.Classname())
			}
		}
	default:
		panic(badKind(n.kind))
	}
}

// ---------------------------------------------------------------------------
// Render caches
// ---------------------------------------------------------------------------

// SetRenderCache attaches a renderer cache to brush node h.
func (s *Scene) SetRenderCache(h Handle, c RenderCache) error {
	n, err := s.get(h)
	if err != nil {
		return err
	}
	if n.kind != KindBrush {
		return ErrWrongKind
	}
	n.cache = c
	return nil
}

// RenderCache returns the renderer cache attached to h, or nil.
func (s *Scene) RenderCache(h Handle) RenderCache {
	n, err := s.get(h)
	if err != nil {
		return nil
	}
	return n.cache
}
