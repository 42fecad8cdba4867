package edit

import (
	"errors"
	"fmt"

	"github.com/chazu/mortar/pkg/command"
	"github.com/chazu/mortar/pkg/document"
	"github.com/chazu/mortar/pkg/scene"
)

var (
	addNodesType      = command.FreeType()
	removeNodesType   = command.FreeType()
	reparentNodesType = command.FreeType()
)

// link is a node's place in the tree.
type link struct {
	node   scene.Handle
	parent scene.Handle
	index  int
}

// restore reinserts detached nodes at their recorded places, last first.
func restore(s *scene.Scene, links []link) error {
	var err error
	for i := len(links) - 1; i >= 0; i-- {
		l := links[i]
		err = errors.Join(err, s.InsertChild(l.parent, l.node, l.index))
	}
	return err
}

// deselectUnder drops every selected node that is in, or below, nodes.
func deselectUnder(doc *document.Document, nodes []scene.Handle) {
	s := doc.Scene()
	var drop []scene.Handle
	for _, sel := range doc.SelectedNodes() {
		for _, h := range nodes {
			if sel == h || s.IsAncestor(h, sel) {
				drop = append(drop, sel)
				break
			}
		}
	}
	doc.Deselect(drop...)
}

// ---------------------------------------------------------------------------
// Add
// ---------------------------------------------------------------------------

// AddNodesCommand attaches detached nodes under a parent.
type AddNodesCommand struct {
	command.Base
	ref    document.Ref
	parent scene.Handle
	nodes  []scene.Handle
}

// AddNodes attaches nodes, which must be detached, under parent.
func AddNodes(ref document.Ref, parent scene.Handle, nodes []scene.Handle) *AddNodesCommand {
	return &AddNodesCommand{
		Base:   command.NewBase(addNodesType, "Add Objects"),
		ref:    ref,
		parent: parent,
		nodes:  unique(nodes),
	}
}

func (c *AddNodesCommand) Nodes() []scene.Handle {
	return append([]scene.Handle(nil), c.nodes...)
}

func (c *AddNodesCommand) Do() error {
	return c.PerformDo(func() error {
		doc, s, err := lock(c.ref)
		if err != nil {
			return err
		}
		if len(c.nodes) == 0 {
			return fmt.Errorf("%w: no nodes", ErrInvalidTarget)
		}
		for _, h := range c.nodes {
			if err := s.CanAddChild(c.parent, h); err != nil {
				return invalidTarget(h, err)
			}
		}
		parents := []scene.Handle{c.parent}
		doc.WillChange(parents)
		for _, h := range c.nodes {
			_ = s.AddChild(c.parent, h)
		}
		doc.DidChange(parents)
		doc.DidChange(c.nodes)
		return nil
	})
}

func (c *AddNodesCommand) Undo() error {
	return c.PerformUndo(func() error {
		doc, s, err := lock(c.ref)
		if err != nil {
			return err
		}
		parents := []scene.Handle{c.parent}
		deselectUnder(doc, c.nodes)
		doc.WillChange(parents)
		for i := len(c.nodes) - 1; i >= 0; i-- {
			_, _, _ = s.Detach(c.nodes[i])
		}
		doc.DidChange(parents)
		return nil
	})
}

func (c *AddNodesCommand) CollateWith(command.Command) bool { return false }
func (c *AddNodesCommand) IsRepeatable() bool { return false }

func (c *AddNodesCommand) Repeat() (command.Command, error) {
	return nil, command.ErrNotRepeatable
}

// Discard frees the nodes if they never made it back into the document.
func (c *AddNodesCommand) Discard() {
	if c.State() != command.StateUndone && c.State() != command.StateDefault {
		return
	}
	doc, s, err := lock(c.ref)
	if err != nil {
		return
	}
	for _, h := range c.nodes {
		if err := s.Free(h); err != nil {
			doc.Logger().Debug("discard add", "node", h.String(), "error", err)
		}
	}
}

// ---------------------------------------------------------------------------
// Remove
// ---------------------------------------------------------------------------

// RemoveNodesCommand detaches nodes from the document. The nodes are kept
// alive until the command leaves the history.
type RemoveNodesCommand struct {
	command.Base
	ref     document.Ref
	nodes   []scene.Handle
	removed []link
}

// RemoveNodes removes nodes and everything below them.
func RemoveNodes(ref document.Ref, nodes []scene.Handle) *RemoveNodesCommand {
	return &RemoveNodesCommand{
		Base:  command.NewBase(removeNodesType, "Delete Objects"),
		ref:   ref,
		nodes: unique(nodes),
	}
}

func (c *RemoveNodesCommand) Do() error {
	return c.PerformDo(func() error {
		doc, s, err := lock(c.ref)
		if err != nil {
			return err
		}
		targets := topmost(s, c.nodes)
		if len(targets) == 0 {
			return fmt.Errorf("%w: no nodes", ErrInvalidTarget)
		}
		for _, h := range targets {
			k, err := s.Kind(h)
			if err != nil {
				return invalidTarget(h, err)
			}
			if k == scene.KindWorld || h == s.DefaultLayer() {
				return fmt.Errorf("%w: %s cannot be removed", ErrInvalidTarget, h)
			}
			if !s.IsAncestor(s.World(), h) {
				return fmt.Errorf("%w: %s is not in the document", ErrInvalidTarget, h)
			}
		}

		deselectUnder(doc, targets)
		var parents []scene.Handle
		for _, h := range targets {
			p, _ := s.Parent(h)
			parents = append(parents, p)
		}
		parents = unique(parents)
		doc.WillChange(parents)
		c.removed = c.removed[:0]
		for _, h := range targets {
			p, idx, _ := s.Detach(h)
			c.removed = append(c.removed, link{node: h, parent: p, index: idx})
		}
		doc.DidChange(parents)
		return nil
	})
}

func (c *RemoveNodesCommand) Undo() error {
	return c.PerformUndo(func() error {
		doc, s, err := lock(c.ref)
		if err != nil {
			return err
		}
		var parents []scene.Handle
		for _, l := range c.removed {
			parents = append(parents, l.parent)
		}
		parents = unique(parents)
		doc.WillChange(parents)
		err = restore(s, c.removed)
		doc.DidChange(parents)
		return err
	})
}

func (c *RemoveNodesCommand) CollateWith(command.Command) bool { return false }

// IsRepeatable reports whether anything is selected.
func (c *RemoveNodesCommand) IsRepeatable() bool {
	doc, err := c.ref.Lock()
	return err == nil && len(doc.SelectedNodes()) > 0
}

// Repeat deletes the current selection.
func (c *RemoveNodesCommand) Repeat() (command.Command, error) {
	doc, err := c.ref.Lock()
	if err != nil {
		return nil, err
	}
	sel := doc.SelectedNodes()
	if len(sel) == 0 {
		return nil, command.ErrNotRepeatable
	}
	return RemoveNodes(c.ref, sel), nil
}

// Discard frees the removed subtrees once they can no longer come back.
func (c *RemoveNodesCommand) Discard() {
	if c.State() != command.StateDone {
		return
	}
	_, s, err := lock(c.ref)
	if err != nil {
		return
	}
	for _, l := range c.removed {
		_ = s.Free(l.node)
	}
}

// ---------------------------------------------------------------------------
// Reparent
// ---------------------------------------------------------------------------

// ReparentNodesCommand moves nodes under a new parent.
type ReparentNodesCommand struct {
	command.Base
	ref    document.Ref
	nodes  []scene.Handle
	parent scene.Handle
	moved  []link
}

// ReparentNodes moves nodes under parent, for example into another layer or
// group.
func ReparentNodes(ref document.Ref, nodes []scene.Handle, parent scene.Handle) *ReparentNodesCommand {
	return &ReparentNodesCommand{
		Base:   command.NewBase(reparentNodesType, "Reparent Objects"),
		ref:    ref,
		nodes:  unique(nodes),
		parent: parent,
	}
}

func (c *ReparentNodesCommand) Do() error {
	return c.PerformDo(func() error {
		doc, s, err := lock(c.ref)
		if err != nil {
			return err
		}
		targets := topmost(s, c.nodes)
		if len(targets) == 0 {
			return fmt.Errorf("%w: no nodes", ErrInvalidTarget)
		}
		if !s.Valid(c.parent) {
			return invalidTarget(c.parent, scene.ErrNotFound)
		}
		var parents []scene.Handle
		for _, h := range targets {
			p, err := s.Parent(h)
			if err != nil {
				return invalidTarget(h, err)
			}
			if p == c.parent {
				return fmt.Errorf("%w: %s is already there", ErrNoChange, h)
			}
			parents = append(parents, p)
		}
		parents = unique(append(parents, c.parent))

		doc.WillChange(parents)
		c.moved = c.moved[:0]
		for _, h := range targets {
			p, idx, _ := s.Detach(h)
			c.moved = append(c.moved, link{node: h, parent: p, index: idx})
		}
		for i, h := range targets {
			if err := s.AddChild(c.parent, h); err != nil {
				for j := i - 1; j >= 0; j-- {
					_, _, _ = s.Detach(targets[j])
				}
				rerr := restore(s, c.moved)
				doc.DidChange(parents)
				return errors.Join(invalidTarget(h, err), rerr)
			}
		}
		doc.DidChange(parents)
		doc.DidChange(targets)
		return nil
	})
}

func (c *ReparentNodesCommand) Undo() error {
	return c.PerformUndo(func() error {
		doc, s, err := lock(c.ref)
		if err != nil {
			return err
		}
		parents := []scene.Handle{c.parent}
		for _, l := range c.moved {
			parents = append(parents, l.parent)
		}
		parents = unique(parents)
		doc.WillChange(parents)
		for i := len(c.moved) - 1; i >= 0; i-- {
			_, _, _ = s.Detach(c.moved[i].node)
		}
		err = restore(s, c.moved)
		doc.DidChange(parents)
		return err
	})
}

func (c *ReparentNodesCommand) CollateWith(command.Command) bool { return false }
func (c *ReparentNodesCommand) IsRepeatable() bool { return false }

func (c *ReparentNodesCommand) Repeat() (command.Command, error) {
	return nil, command.ErrNotRepeatable
}
