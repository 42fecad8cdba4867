// Package scene holds the editable scene graph: world, layers, groups,
// entities and brushes stored in an arena and addressed by handles.
package scene

import (
	"fmt"

	"github.com/chazu/mortar/pkg/brush"
	"github.com/chazu/mortar/pkg/property"
	"github.com/chazu/mortar/pkg/tag"
	"github.com/deadsy/sdfx/sdf"
)

// Kind enumerates the node variants.
type Kind int

const (
	KindWorld  Kind = iota // root; holds layers and the worldspawn properties
	KindLayer              // top-level partition under the world
	KindGroup              // named collection of objects
	KindEntity             // point entity, or brush entity owning brushes
	KindBrush              // convex solid
)

func (k Kind) String() string {
	switch k {
	case KindWorld:
		return "world"
	case KindLayer:
		return "layer"
	case KindGroup:
		return "group"
	case KindEntity:
		return "entity"
	case KindBrush:
		return "brush"
	default:
		return "unknown"
	}
}

// Handle addresses a node in the arena. The zero Handle is never valid, and
// a handle to a freed node stays invalid even after its slot is reused.
type Handle struct {
	Index uint32
	Gen   uint32
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h.Gen == 0
}

func (h Handle) String() string {
	if h.IsZero() {
		return "node(nil)"
	}
	return fmt.Sprintf("node(%d.%d)", h.Index, h.Gen)
}

// Data is the kind-specific payload of a node.
type Data interface {
	nodeData() // marker method restricting implementations to this package
}

// ---------------------------------------------------------------------------
// Payloads
// ---------------------------------------------------------------------------

// WorldData carries the worldspawn properties.
type WorldData struct {
	Properties *property.Store
}

func (*WorldData) nodeData() {}

// LayerData describes a layer.
type LayerData struct {
	Name    string
	Visible bool
	Locked  bool
}

func (*LayerData) nodeData() {}

// GroupData describes a group.
type GroupData struct {
	Name string
}

func (*GroupData) nodeData() {}

// EntityData carries entity properties and the definition matched by the
// classname.
type EntityData struct {
	Properties *property.Store
	Definition *property.Definition
}

func (*EntityData) nodeData() {}

// BrushData owns a brush.
type BrushData struct {
	Brush *brush.Brush
}

func (*BrushData) nodeData() {}

// RenderCache is an opaque, renderer-owned cache attached to a brush node.
// The scene only ever invalidates it.
type RenderCache interface {
	Invalidate()
}

// node is one arena element.
type node struct {
	kind        Kind
	data        Data
	parent      Handle
	children    []Handle
	bounds      sdf.Box3
	boundsValid bool
	tags        tag.Mask
	cache       RenderCache
}

// canContain reports whether a node of kind parent may own a node of kind
// child.
func canContain(parent, child Kind) bool {
	switch parent {
	case KindWorld:
		return child == KindLayer
	case KindLayer, KindGroup:
		return child == KindGroup || child == KindEntity || child == KindBrush
	case KindEntity:
		return child == KindBrush
	case KindBrush:
		return false
	default:
		panic(badKind(parent))
	}
}

func badKind(k Kind) string {
	return fmt.Sprintf("scene: unhandled node kind %d", int(k))
}
