package scene

import (
	"errors"
	"fmt"
	"slices"

	"github.com/chazu/mortar/pkg/brush"
	"github.com/chazu/mortar/pkg/property"
	"github.com/chazu/mortar/pkg/tag"
	"github.com/deadsy/sdfx/sdf"
)

var (
	// ErrNotFound is returned for zero, stale or freed handles and for
	// lookups with no result.
	ErrNotFound = errors.New("scene: node not found")

	// ErrCannotAddChild is returned when a placement rule forbids a link.
	ErrCannotAddChild = errors.New("scene: node cannot contain child")

	// ErrAttached is returned when an operation needs a detached node.
	ErrAttached = errors.New("scene: node is attached")

	// ErrWrongKind is returned when a node has an unexpected kind.
	ErrWrongKind = errors.New("scene: wrong node kind")
)

// DefaultLayerName is the name of the layer every scene starts with.
const DefaultLayerName = "Default Layer"

type slot struct {
	gen  uint32
	node *node
}

// Scene is an arena of nodes rooted at a single world node. It is not safe
// for concurrent use.
type Scene struct {
	slots        []slot
	free         []uint32
	world        Handle
	defaultLayer Handle
	worldBounds  sdf.Box3
	tags         *tag.Manager
	defs         *property.Registry
}

// New creates a scene holding a world node and its default layer.
func New(worldBounds sdf.Box3, tags *tag.Manager, defs *property.Registry) *Scene {
	if defs == nil {
		defs = property.NewRegistry()
	}
	s := &Scene{worldBounds: worldBounds, tags: tags, defs: defs}
	s.world = s.alloc(&node{
		kind: KindWorld,
		data: &WorldData{Properties: property.NewStore(map[string]string{
			property.KeyClassname: "worldspawn",
		})},
	})
	s.defaultLayer = s.NewLayer(DefaultLayerName)
	s.link(s.world, s.defaultLayer, -1)
	return s
}

// World returns the root handle.
func (s *Scene) World() Handle { return s.world }

// DefaultLayer returns the layer created with the scene.
func (s *Scene) DefaultLayer() Handle { return s.defaultLayer }

// WorldBounds returns the extent of the editable space.
func (s *Scene) WorldBounds() sdf.Box3 { return s.worldBounds }

// TagManager returns the smart tag manager, which may be nil.
func (s *Scene) TagManager() *tag.Manager { return s.tags }

// Definitions returns the entity definition registry.
func (s *Scene) Definitions() *property.Registry { return s.defs }

// ---------------------------------------------------------------------------
// Arena
// ---------------------------------------------------------------------------

func (s *Scene) alloc(n *node) Handle {
	if k := len(s.free); k > 0 {
		idx := s.free[k-1]
		s.free = s.free[:k-1]
		sl := &s.slots[idx]
		sl.node = n
		return Handle{Index: idx, Gen: sl.gen}
	}
	s.slots = append(s.slots, slot{gen: 1, node: n})
	return Handle{Index: uint32(len(s.slots) - 1), Gen: 1}
}

func (s *Scene) get(h Handle) (*node, error) {
	if h.IsZero() || int(h.Index) >= len(s.slots) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, h)
	}
	sl := &s.slots[h.Index]
	if sl.gen != h.Gen || sl.node == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, h)
	}
	return sl.node, nil
}

// Valid reports whether h refers to a live node.
func (s *Scene) Valid(h Handle) bool {
	_, err := s.get(h)
	return err == nil
}

// Len returns the number of live nodes.
func (s *Scene) Len() int {
	return len(s.slots) - len(s.free)
}

// Free releases a detached node and its subtree. Handles to freed nodes
// fail with ErrNotFound from then on.
func (s *Scene) Free(h Handle) error {
	n, err := s.get(h)
	if err != nil {
		return err
	}
	if !n.parent.IsZero() || h == s.world {
		return fmt.Errorf("%w: %s", ErrAttached, h)
	}
	s.release(h)
	return nil
}

func (s *Scene) release(h Handle) {
	n, err := s.get(h)
	if err != nil {
		return
	}
	for _, c := range n.children {
		s.release(c)
	}
	sl := &s.slots[h.Index]
	sl.node = nil
	sl.gen++
	s.free = append(s.free, h.Index)
}

// ---------------------------------------------------------------------------
// Factories
// ---------------------------------------------------------------------------

// NewLayer creates a detached, visible, unlocked layer.
func (s *Scene) NewLayer(name string) Handle {
	return s.alloc(&node{kind: KindLayer, data: &LayerData{Name: name, Visible: true}})
}

// NewGroup creates a detached group.
func (s *Scene) NewGroup(name string) Handle {
	return s.alloc(&node{kind: KindGroup, data: &GroupData{Name: name}})
}

// NewEntity creates a detached entity with a copy of props.
func (s *Scene) NewEntity(props map[string]string) Handle {
	store := property.NewStore(props)
	h := s.alloc(&node{kind: KindEntity, data: &EntityData{
		Properties: store,
		Definition: s.defs.Lookup(store.Classname()),
	}})
	s.retag(h)
	return h
}

// NewBrush creates a detached brush node owning b.
func (s *Scene) NewBrush(b *brush.Brush) Handle {
	h := s.alloc(&node{kind: KindBrush, data: &BrushData{Brush: b}})
	s.retag(h)
	return h
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Kind returns the kind of h.
func (s *Scene) Kind(h Handle) (Kind, error) {
	n, err := s.get(h)
	if err != nil {
		return 0, err
	}
	return n.kind, nil
}

// Data returns the payload of h.
func (s *Scene) Data(h Handle) (Data, error) {
	n, err := s.get(h)
	if err != nil {
		return nil, err
	}
	return n.data, nil
}

// Parent returns the parent of h, or ErrNotFound for the world and for
// detached nodes.
func (s *Scene) Parent(h Handle) (Handle, error) {
	n, err := s.get(h)
	if err != nil {
		return Handle{}, err
	}
	if n.parent.IsZero() {
		return Handle{}, fmt.Errorf("%w: %s has no parent", ErrNotFound, h)
	}
	return n.parent, nil
}

// Children returns a copy of the children of h.
func (s *Scene) Children(h Handle) []Handle {
	n, err := s.get(h)
	if err != nil {
		return nil
	}
	return slices.Clone(n.children)
}

// IndexOf returns the position of child under parent, or -1.
func (s *Scene) IndexOf(parent, child Handle) int {
	n, err := s.get(parent)
	if err != nil {
		return -1
	}
	return slices.Index(n.children, child)
}

// Properties returns the property store of an entity or of the world.
func (s *Scene) Properties(h Handle) (*property.Store, error) {
	n, err := s.get(h)
	if err != nil {
		return nil, err
	}
	switch d := n.data.(type) {
	case *EntityData:
		return d.Properties, nil
	case *WorldData:
		return d.Properties, nil
	}
	return nil, fmt.Errorf("%w: %s is a %s, not an entity", ErrWrongKind, h, n.kind)
}

// Definition returns the entity definition matched by the classname of h.
func (s *Scene) Definition(h Handle) *property.Definition {
	n, err := s.get(h)
	if err != nil {
		return nil
	}
	if d, ok := n.data.(*EntityData); ok {
		return d.Definition
	}
	return nil
}

// Brush returns the live brush owned by h. Callers that mutate it in place
// must call Touch(h) afterwards, or use SetBrushFaces, so cached bounds,
// tags and render caches follow the new geometry.
func (s *Scene) Brush(h Handle) (*brush.Brush, error) {
	n, err := s.get(h)
	if err != nil {
		return nil, err
	}
	if d, ok := n.data.(*BrushData); ok {
		return d.Brush, nil
	}
	return nil, fmt.Errorf("%w: %s is a %s, not a brush", ErrWrongKind, h, n.kind)
}

// SetBrushFaces replaces the faces of brush h and touches it.
func (s *Scene) SetBrushFaces(h Handle, faces []brush.Face) error {
	b, err := s.Brush(h)
	if err != nil {
		return err
	}
	b.SetFaces(faces)
	return s.Touch(h)
}

// LayerData returns the layer payload of h.
func (s *Scene) LayerData(h Handle) (*LayerData, error) {
	n, err := s.get(h)
	if err != nil {
		return nil, err
	}
	if d, ok := n.data.(*LayerData); ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %s is a %s, not a layer", ErrWrongKind, h, n.kind)
}

// GroupData returns the group payload of h.
func (s *Scene) GroupData(h Handle) (*GroupData, error) {
	n, err := s.get(h)
	if err != nil {
		return nil, err
	}
	if d, ok := n.data.(*GroupData); ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %s is a %s, not a group", ErrWrongKind, h, n.kind)
}

// Layers returns the layers in world order.
func (s *Scene) Layers() []Handle {
	return s.Children(s.world)
}

// ---------------------------------------------------------------------------
// Back-reference lookups
// ---------------------------------------------------------------------------

// ancestor walks up from h and returns the first ancestor of kind k.
func (s *Scene) ancestor(h Handle, k Kind) (Handle, error) {
	n, err := s.get(h)
	if err != nil {
		return Handle{}, err
	}
	for p := n.parent; !p.IsZero(); {
		pn, err := s.get(p)
		if err != nil {
			return Handle{}, err
		}
		if pn.kind == k {
			return p, nil
		}
		p = pn.parent
	}
	return Handle{}, fmt.Errorf("%w: %s has no %s ancestor", ErrNotFound, h, k)
}

// Layer returns the layer containing h.
func (s *Scene) Layer(h Handle) (Handle, error) {
	return s.ancestor(h, KindLayer)
}

// Group returns the innermost group containing h.
func (s *Scene) Group(h Handle) (Handle, error) {
	return s.ancestor(h, KindGroup)
}

// Entity returns the entity owning brush h.
func (s *Scene) Entity(h Handle) (Handle, error) {
	n, err := s.get(h)
	if err != nil {
		return Handle{}, err
	}
	if p, err := s.get(n.parent); err == nil && p.kind == KindEntity {
		return n.parent, nil
	}
	return Handle{}, fmt.Errorf("%w: %s is not owned by an entity", ErrNotFound, h)
}

// Container returns the direct parent of h.
func (s *Scene) Container(h Handle) (Handle, error) {
	return s.Parent(h)
}

// IsAncestor reports whether a is a proper ancestor of h.
func (s *Scene) IsAncestor(a, h Handle) bool {
	n, err := s.get(h)
	if err != nil {
		return false
	}
	for p := n.parent; !p.IsZero(); {
		if p == a {
			return true
		}
		pn, err := s.get(p)
		if err != nil {
			return false
		}
		p = pn.parent
	}
	return false
}

// ---------------------------------------------------------------------------
// Structure
// ---------------------------------------------------------------------------

// CanAddChild reports whether child may be attached under parent.
func (s *Scene) CanAddChild(parent, child Handle) error {
	pn, err := s.get(parent)
	if err != nil {
		return err
	}
	cn, err := s.get(child)
	if err != nil {
		return err
	}
	if !cn.parent.IsZero() {
		return fmt.Errorf("%w: %s", ErrAttached, child)
	}
	if !canContain(pn.kind, cn.kind) {
		return fmt.Errorf("%w: %s cannot contain %s", ErrCannotAddChild, pn.kind, cn.kind)
	}
	if parent == child || s.IsAncestor(child, parent) {
		return fmt.Errorf("%w: %s would become its own ancestor", ErrCannotAddChild, child)
	}
	return nil
}

// AddChild appends a detached child to parent.
func (s *Scene) AddChild(parent, child Handle) error {
	return s.InsertChild(parent, child, -1)
}

// InsertChild attaches a detached child at index, or at the end if index is
// negative or past the end.
func (s *Scene) InsertChild(parent, child Handle, index int) error {
	if err := s.CanAddChild(parent, child); err != nil {
		return err
	}
	s.link(parent, child, index)
	return nil
}

func (s *Scene) link(parent, child Handle, index int) {
	pn, _ := s.get(parent)
	cn, _ := s.get(child)
	if index < 0 || index > len(pn.children) {
		index = len(pn.children)
	}
	pn.children = slices.Insert(pn.children, index, child)
	cn.parent = parent
	s.invalidate(parent)
	s.retagSubtree(child)
}

// Detach unlinks h from its parent and returns the parent and the index h
// had, so the link can be restored with InsertChild.
func (s *Scene) Detach(h Handle) (Handle, int, error) {
	n, err := s.get(h)
	if err != nil {
		return Handle{}, -1, err
	}
	if n.parent.IsZero() {
		return Handle{}, -1, fmt.Errorf("%w: %s is detached", ErrNotFound, h)
	}
	parent := n.parent
	pn, err := s.get(parent)
	if err != nil {
		return Handle{}, -1, err
	}
	idx := slices.Index(pn.children, h)
	if idx >= 0 {
		pn.children = slices.Delete(pn.children, idx, idx+1)
	}
	n.parent = Handle{}
	s.invalidate(parent)
	return parent, idx, nil
}

// MoveChild moves child to index among its siblings.
func (s *Scene) MoveChild(child Handle, index int) error {
	parent, _, err := s.Detach(child)
	if err != nil {
		return err
	}
	s.link(parent, child, index)
	return nil
}
