package edit

import (
	"fmt"

	"github.com/chazu/mortar/pkg/brush"
	"github.com/chazu/mortar/pkg/command"
	"github.com/chazu/mortar/pkg/document"
	"github.com/chazu/mortar/pkg/scene"
)

var brushFacesType = command.FreeType()

// BrushFacesCommand replaces the face list of one brush.
type BrushFacesCommand struct {
	command.Base
	ref   document.Ref
	node  scene.Handle
	faces []brush.Face
	old   []brush.Face
}

// SetBrushFaces replaces the faces of the brush at node. The edit is refused
// if the new faces do not bound a valid solid.
func SetBrushFaces(ref document.Ref, node scene.Handle, faces []brush.Face) *BrushFacesCommand {
	return &BrushFacesCommand{
		Base:  command.NewBase(brushFacesType, "Edit Brush Faces"),
		ref:   ref,
		node:  node,
		faces: append([]brush.Face(nil), faces...),
	}
}

func (c *BrushFacesCommand) Do() error {
	return c.PerformDo(func() error {
		doc, s, err := lock(c.ref)
		if err != nil {
			return err
		}
		b, err := s.Brush(c.node)
		if err != nil {
			return invalidTarget(c.node, err)
		}
		if nb := brush.New(s.WorldBounds(), c.faces); !nb.Valid() {
			return fmt.Errorf("%w: %s: %s", ErrInvalidTarget, c.node, nb.InvalidReason())
		}
		nodes := []scene.Handle{c.node}
		doc.WillChange(nodes)
		c.old = b.Faces()
		_ = s.SetBrushFaces(c.node, c.faces)
		doc.DidChange(nodes)
		return nil
	})
}

func (c *BrushFacesCommand) Undo() error {
	return c.PerformUndo(func() error {
		doc, s, err := lock(c.ref)
		if err != nil {
			return err
		}
		if _, err := s.Brush(c.node); err != nil {
			return invalidTarget(c.node, err)
		}
		nodes := []scene.Handle{c.node}
		doc.WillChange(nodes)
		_ = s.SetBrushFaces(c.node, c.old)
		doc.DidChange(nodes)
		return nil
	})
}

// CollateWith absorbs a later face edit of the same brush.
func (c *BrushFacesCommand) CollateWith(next command.Command) bool {
	n, ok := next.(*BrushFacesCommand)
	if !ok || n.node != c.node {
		return false
	}
	c.faces = n.faces
	return true
}

func (c *BrushFacesCommand) IsRepeatable() bool { return false }

func (c *BrushFacesCommand) Repeat() (command.Command, error) {
	return nil, command.ErrNotRepeatable
}
