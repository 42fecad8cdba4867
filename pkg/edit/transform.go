package edit

import (
	"fmt"

	"github.com/chazu/mortar/pkg/brush"
	"github.com/chazu/mortar/pkg/command"
	"github.com/chazu/mortar/pkg/document"
	"github.com/chazu/mortar/pkg/property"
	"github.com/chazu/mortar/pkg/scene"
	"github.com/deadsy/sdfx/sdf"
)

var transformType = command.FreeType()

// nodeState is the geometry of one node before a transform.
type nodeState struct {
	node      scene.Handle
	faces     []brush.Face
	hadOrigin bool
	origin    string
}

// TransformCommand applies an affine transform to a set of nodes.
type TransformCommand struct {
	command.Base
	ref   document.Ref
	nodes []scene.Handle
	m     sdf.M44

	saved []nodeState
}

// TransformObjects transforms nodes by m. Either every node can take the
// transform or nothing changes.
func TransformObjects(ref document.Ref, nodes []scene.Handle, m sdf.M44) *TransformCommand {
	return &TransformCommand{
		Base:  command.NewBase(transformType, "Transform Objects"),
		ref:   ref,
		nodes: unique(nodes),
		m:     m,
	}
}

// Matrix returns the transform, composed with any collated transforms.
func (c *TransformCommand) Matrix() sdf.M44 { return c.m }

func (c *TransformCommand) Nodes() []scene.Handle {
	return append([]scene.Handle(nil), c.nodes...)
}

func (c *TransformCommand) Do() error {
	return c.PerformDo(func() error {
		doc, s, err := lock(c.ref)
		if err != nil {
			return err
		}
		if len(c.nodes) == 0 {
			return fmt.Errorf("%w: no nodes", ErrInvalidTarget)
		}
		targets := topmost(s, c.nodes)
		for _, h := range targets {
			if !s.CanTransform(h, c.m) {
				return fmt.Errorf("%w: %s", scene.ErrCannotTransform, h)
			}
		}
		c.saved = c.saved[:0]
		for _, h := range targets {
			c.save(s, h)
		}
		doc.WillChange(targets)
		for _, h := range targets {
			// Vetted above.
			_ = s.Transform(h, c.m)
		}
		doc.DidChange(targets)
		return nil
	})
}

// save records the brushes and point entity origins under h.
func (c *TransformCommand) save(s *scene.Scene, h scene.Handle) {
	s.Walk(h, func(n scene.Handle, k scene.Kind) bool {
		switch k {
		case scene.KindBrush:
			b, _ := s.Brush(n)
			c.saved = append(c.saved, nodeState{node: n, faces: b.Faces()})
		case scene.KindEntity:
			if len(s.Children(n)) == 0 {
				p, _ := s.Properties(n)
				o, had := p.Get(property.KeyOrigin)
				c.saved = append(c.saved, nodeState{node: n, hadOrigin: had, origin: o})
			}
		}
		return true
	})
}

func (c *TransformCommand) Undo() error {
	return c.PerformUndo(func() error {
		doc, s, err := lock(c.ref)
		if err != nil {
			return err
		}
		targets := topmost(s, c.nodes)
		doc.WillChange(targets)
		for _, st := range c.saved {
			if b, err := s.Brush(st.node); err == nil {
				b.SetFaces(st.faces)
			} else if p, err := s.Properties(st.node); err == nil {
				if st.hadOrigin {
					p.Set(property.KeyOrigin, st.origin)
				} else {
					p.Remove(property.KeyOrigin)
				}
			}
			_ = s.Touch(st.node)
		}
		doc.DidChange(targets)
		return nil
	})
}

// CollateWith absorbs a later transform of the same nodes by composing the
// matrices.
func (c *TransformCommand) CollateWith(next command.Command) bool {
	n, ok := next.(*TransformCommand)
	if !ok || !sameSet(n.nodes, c.nodes) {
		return false
	}
	c.m = n.m.Mul(c.m)
	return true
}

// IsRepeatable reports whether anything is selected.
func (c *TransformCommand) IsRepeatable() bool {
	doc, err := c.ref.Lock()
	if err != nil {
		return false
	}
	return len(doc.SelectedNodes()) > 0
}

// Repeat returns the same transform applied to the current selection.
func (c *TransformCommand) Repeat() (command.Command, error) {
	doc, err := c.ref.Lock()
	if err != nil {
		return nil, err
	}
	sel := doc.SelectedNodes()
	if len(sel) == 0 {
		return nil, command.ErrNotRepeatable
	}
	return TransformObjects(c.ref, sel, c.m), nil
}
