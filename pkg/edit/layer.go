package edit

import (
	"fmt"

	"github.com/chazu/mortar/pkg/command"
	"github.com/chazu/mortar/pkg/document"
	"github.com/chazu/mortar/pkg/scene"
)

var (
	layerType     = command.FreeType()
	moveLayerType = command.FreeType()
)

// LayerCommand changes the name, visibility or lock state of a layer. Only
// the non-nil fields are applied.
type LayerCommand struct {
	command.Base
	ref     document.Ref
	layer   scene.Handle
	name    *string
	visible *bool
	locked  *bool
	old     scene.LayerData
}

// RenameLayer renames layer.
func RenameLayer(ref document.Ref, layer scene.Handle, name string) *LayerCommand {
	return &LayerCommand{Base: command.NewBase(layerType, "Rename Layer"), ref: ref, layer: layer, name: &name}
}

// SetLayerVisible shows or hides layer.
func SetLayerVisible(ref document.Ref, layer scene.Handle, visible bool) *LayerCommand {
	name := "Show Layer"
	if !visible {
		name = "Hide Layer"
	}
	return &LayerCommand{Base: command.NewBase(layerType, name), ref: ref, layer: layer, visible: &visible}
}

// SetLayerLocked locks or unlocks layer.
func SetLayerLocked(ref document.Ref, layer scene.Handle, locked bool) *LayerCommand {
	name := "Unlock Layer"
	if locked {
		name = "Lock Layer"
	}
	return &LayerCommand{Base: command.NewBase(layerType, name), ref: ref, layer: layer, locked: &locked}
}

func (c *LayerCommand) Do() error {
	return c.PerformDo(func() error {
		doc, s, err := lock(c.ref)
		if err != nil {
			return err
		}
		ld, err := s.LayerData(c.layer)
		if err != nil {
			return invalidTarget(c.layer, err)
		}
		if c.name != nil && *c.name == "" {
			return fmt.Errorf("%w: empty layer name", ErrInvalidTarget)
		}
		nodes := []scene.Handle{c.layer}
		doc.WillChange(nodes)
		c.old = *ld
		if c.name != nil {
			ld.Name = *c.name
		}
		if c.visible != nil {
			ld.Visible = *c.visible
		}
		if c.locked != nil {
			ld.Locked = *c.locked
		}
		if !ld.Visible || ld.Locked {
			deselectUnder(doc, nodes)
		}
		doc.DidChange(nodes)
		return nil
	})
}

func (c *LayerCommand) Undo() error {
	return c.PerformUndo(func() error {
		doc, s, err := lock(c.ref)
		if err != nil {
			return err
		}
		ld, err := s.LayerData(c.layer)
		if err != nil {
			return invalidTarget(c.layer, err)
		}
		nodes := []scene.Handle{c.layer}
		doc.WillChange(nodes)
		*ld = c.old
		doc.DidChange(nodes)
		return nil
	})
}

// CollateWith absorbs a later rename of the same layer.
func (c *LayerCommand) CollateWith(next command.Command) bool {
	n, ok := next.(*LayerCommand)
	if !ok || n.layer != c.layer || c.name == nil || n.name == nil || n.visible != nil || n.locked != nil {
		return false
	}
	c.name = n.name
	return true
}

func (c *LayerCommand) IsRepeatable() bool { return false }

func (c *LayerCommand) Repeat() (command.Command, error) {
	return nil, command.ErrNotRepeatable
}

// MoveLayerCommand changes the position of a layer among its siblings.
type MoveLayerCommand struct {
	command.Base
	ref   document.Ref
	layer scene.Handle
	delta int
	from  int
}

// MoveLayer moves layer by delta positions; negative moves it up.
func MoveLayer(ref document.Ref, layer scene.Handle, delta int) *MoveLayerCommand {
	return &MoveLayerCommand{Base: command.NewBase(moveLayerType, "Move Layer"), ref: ref, layer: layer, delta: delta}
}

func (c *MoveLayerCommand) Do() error {
	return c.PerformDo(func() error {
		doc, s, err := lock(c.ref)
		if err != nil {
			return err
		}
		if _, err := s.LayerData(c.layer); err != nil {
			return invalidTarget(c.layer, err)
		}
		world := s.World()
		from := s.IndexOf(world, c.layer)
		to := min(max(from+c.delta, 0), len(s.Children(world))-1)
		if to == from {
			return fmt.Errorf("%w: layer already at %d", ErrNoChange, from)
		}
		nodes := []scene.Handle{world}
		doc.WillChange(nodes)
		c.from = from
		_ = s.MoveChild(c.layer, to)
		doc.DidChange(nodes)
		return nil
	})
}

func (c *MoveLayerCommand) Undo() error {
	return c.PerformUndo(func() error {
		doc, s, err := lock(c.ref)
		if err != nil {
			return err
		}
		nodes := []scene.Handle{s.World()}
		doc.WillChange(nodes)
		err = s.MoveChild(c.layer, c.from)
		doc.DidChange(nodes)
		return err
	})
}

// CollateWith absorbs a later move of the same layer.
func (c *MoveLayerCommand) CollateWith(next command.Command) bool {
	n, ok := next.(*MoveLayerCommand)
	if !ok || n.layer != c.layer {
		return false
	}
	c.delta += n.delta
	return true
}

func (c *MoveLayerCommand) IsRepeatable() bool { return false }

func (c *MoveLayerCommand) Repeat() (command.Command, error) {
	return nil, command.ErrNotRepeatable
}
