package scene

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/chazu/mortar/pkg/brush"
	"github.com/chazu/mortar/pkg/geom"
	"github.com/chazu/mortar/pkg/property"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Every operation in this file switches over all node kinds; a new kind
// must be handled in each of them.

// ErrCannotTransform is returned when a node or one of its descendants
// rejects a transform.
var ErrCannotTransform = errors.New("scene: node cannot be transformed")

// Walk visits h and its descendants in pre-order. Returning false from fn
// skips the children of the visited node.
func (s *Scene) Walk(h Handle, fn func(Handle, Kind) bool) {
	n, err := s.get(h)
	if err != nil {
		return
	}
	if !fn(h, n.kind) {
		return
	}
	for _, c := range slices.Clone(n.children) {
		s.Walk(c, fn)
	}
}

// Visible reports whether h sits in a visible layer. Nodes outside any
// layer count as visible.
func (s *Scene) Visible(h Handle) bool {
	l, err := s.Layer(h)
	if err != nil {
		if ld, err := s.LayerData(h); err == nil {
			return ld.Visible
		}
		return true
	}
	ld, _ := s.LayerData(l)
	return ld.Visible
}

// Locked reports whether h sits in a locked layer.
func (s *Scene) Locked(h Handle) bool {
	l, err := s.Layer(h)
	if err != nil {
		if ld, err := s.LayerData(h); err == nil {
			return ld.Locked
		}
		return false
	}
	ld, _ := s.LayerData(l)
	return ld.Locked
}

// ---------------------------------------------------------------------------
// Pick
// ---------------------------------------------------------------------------

// Hit is a pick result. Face is the brush face index, or -1 for entities.
type Hit struct {
	Node     Handle
	Face     int
	Distance float64
}

// Pick casts r into the subtree at h and returns the hits ordered by
// distance. Hidden layers are skipped.
func (s *Scene) Pick(h Handle, r geom.Ray) []Hit {
	var hits []Hit
	s.pick(h, r, &hits)
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits
}

func (s *Scene) pick(h Handle, r geom.Ray, hits *[]Hit) {
	n, err := s.get(h)
	if err != nil {
		return
	}
	switch d := n.data.(type) {
	case *WorldData, *GroupData:
		for _, c := range n.children {
			s.pick(c, r, hits)
		}
	case *LayerData:
		if !d.Visible {
			return
		}
		for _, c := range n.children {
			s.pick(c, r, hits)
		}
	case *EntityData:
		if len(n.children) > 0 {
			for _, c := range n.children {
				s.pick(c, r, hits)
			}
			return
		}
		if t, ok := geom.RayBox(r, s.Bounds(h)); ok {
			*hits = append(*hits, Hit{Node: h, Face: -1, Distance: t})
		}
	case *BrushData:
		if f, t, ok := d.Brush.PickFace(r); ok {
			*hits = append(*hits, Hit{Node: h, Face: f, Distance: t})
		}
	default:
		panic(badKind(n.kind))
	}
}

// ---------------------------------------------------------------------------
// Transform
// ---------------------------------------------------------------------------

// CanTransform reports whether m can be applied to h and every node below
// it without producing a degenerate or out-of-world result.
func (s *Scene) CanTransform(h Handle, m sdf.M44) bool {
	n, err := s.get(h)
	if err != nil {
		return false
	}
	switch d := n.data.(type) {
	case *WorldData, *LayerData:
		return false
	case *GroupData:
		for _, c := range n.children {
			if !s.CanTransform(c, m) {
				return false
			}
		}
		return true
	case *EntityData:
		if len(n.children) > 0 {
			for _, c := range n.children {
				if !s.CanTransform(c, m) {
					return false
				}
			}
			return true
		}
		o := m.MulPosition(entityOrigin(d.Properties))
		return geom.BoxContainsPoint(s.worldBounds, o)
	case *BrushData:
		return d.Brush.CanTransform(m)
	default:
		panic(badKind(n.kind))
	}
}

// Transform applies m to h and its descendants. Nothing changes unless
// CanTransform holds.
func (s *Scene) Transform(h Handle, m sdf.M44) error {
	if !s.CanTransform(h, m) {
		return fmt.Errorf("%w: %s", ErrCannotTransform, h)
	}
	s.transform(h, m)
	return nil
}

func (s *Scene) transform(h Handle, m sdf.M44) {
	n, _ := s.get(h)
	switch d := n.data.(type) {
	case *WorldData, *LayerData:
	case *GroupData:
		for _, c := range n.children {
			s.transform(c, m)
		}
	case *EntityData:
		if len(n.children) > 0 {
			for _, c := range n.children {
				s.transform(c, m)
			}
			return
		}
		o := m.MulPosition(entityOrigin(d.Properties))
		d.Properties.Set(property.KeyOrigin, property.FormatVec(o))
		s.invalidate(h)
	case *BrushData:
		// CanTransform already vetted the whole subtree.
		_ = d.Brush.Transform(m)
		s.invalidate(h)
	default:
		panic(badKind(n.kind))
	}
}

// ---------------------------------------------------------------------------
// Containment
// ---------------------------------------------------------------------------

// Contains reports whether a fully encloses b. Brushes test against their
// solid; other nodes test against their bounds.
func (s *Scene) Contains(a, b Handle) bool {
	na, err := s.get(a)
	if err != nil || !s.Valid(b) {
		return false
	}
	switch d := na.data.(type) {
	case *WorldData, *LayerData, *GroupData, *EntityData:
		return geom.BoxContainsBox(s.Bounds(a), s.Bounds(b))
	case *BrushData:
		if ob, err := s.Brush(b); err == nil {
			return d.Brush.Contains(ob)
		}
		bb := s.Bounds(b)
		if geom.IsEmptyBox(bb) {
			return false
		}
		for _, c := range boxCorners(bb) {
			if !d.Brush.ContainsPoint(c) {
				return false
			}
		}
		return true
	default:
		panic(badKind(na.kind))
	}
}

// Intersects reports whether a and b overlap.
func (s *Scene) Intersects(a, b Handle) bool {
	na, err := s.get(a)
	if err != nil || !s.Valid(b) {
		return false
	}
	switch d := na.data.(type) {
	case *WorldData, *LayerData, *GroupData, *EntityData:
		return geom.BoxIntersects(s.Bounds(a), s.Bounds(b))
	case *BrushData:
		if ob, err := s.Brush(b); err == nil {
			return d.Brush.Intersects(ob)
		}
		bb := s.Bounds(b)
		if !geom.BoxIntersects(d.Brush.Bounds(), bb) {
			return false
		}
		box, err := brush.Cuboid(s.worldBounds, bb, brush.Attributes{})
		if err != nil {
			return false
		}
		return d.Brush.Intersects(box)
	default:
		panic(badKind(na.kind))
	}
}

// FindNodesContaining returns the brushes and point entities that contain p.
func (s *Scene) FindNodesContaining(p v3.Vec) []Handle {
	var out []Handle
	s.Walk(s.world, func(h Handle, k Kind) bool {
		n, _ := s.get(h)
		switch d := n.data.(type) {
		case *WorldData, *LayerData, *GroupData:
			return true
		case *EntityData:
			if len(n.children) == 0 && geom.BoxContainsPoint(s.Bounds(h), p) {
				out = append(out, h)
			}
			return true
		case *BrushData:
			if d.Brush.ContainsPoint(p) {
				out = append(out, h)
			}
			return false
		default:
			panic(badKind(k))
		}
	})
	return out
}

func boxCorners(b sdf.Box3) [8]v3.Vec {
	return [8]v3.Vec{
		{X: b.Min.X, Y: b.Min.Y, Z: b.Min.Z},
		{X: b.Max.X, Y: b.Min.Y, Z: b.Min.Z},
		{X: b.Min.X, Y: b.Max.Y, Z: b.Min.Z},
		{X: b.Max.X, Y: b.Max.Y, Z: b.Min.Z},
		{X: b.Min.X, Y: b.Min.Y, Z: b.Max.Z},
		{X: b.Max.X, Y: b.Min.Y, Z: b.Max.Z},
		{X: b.Min.X, Y: b.Max.Y, Z: b.Max.Z},
		{X: b.Max.X, Y: b.Max.Y, Z: b.Max.Z},
	}
}
