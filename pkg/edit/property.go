package edit

import (
	"fmt"

	"github.com/chazu/mortar/pkg/command"
	"github.com/chazu/mortar/pkg/document"
	"github.com/chazu/mortar/pkg/property"
	"github.com/chazu/mortar/pkg/scene"
)

// PropertyAction selects what a PropertyCommand does.
type PropertyAction int

const (
	ActionRename PropertyAction = iota
	ActionSet
	ActionRemove
)

func (a PropertyAction) String() string {
	switch a {
	case ActionRename:
		return "rename"
	case ActionSet:
		return "set"
	case ActionRemove:
		return "remove"
	default:
		return fmt.Sprintf("PropertyAction(%d)", int(a))
	}
}

var propertyType = command.FreeType()

// PropertyType is the command type of every PropertyCommand.
func PropertyType() command.Type { return propertyType }

// snapshotEntry records the state of one entity before its first mutation.
// had is false if the key was absent.
type snapshotEntry struct {
	node  scene.Handle
	had   bool
	value string
}

// PropertyCommand renames, sets or removes one property on a list of
// entities. The list may repeat an entity; each occurrence is processed in
// turn, and undo restores the state from before the first occurrence.
type PropertyCommand struct {
	command.Base
	ref      document.Ref
	action   PropertyAction
	entities []scene.Handle
	key      string
	newKey   string
	value    string
	force    bool

	snapshot []snapshotEntry
}

// RenameProperty renames oldKey to newKey on entities.
func RenameProperty(ref document.Ref, entities []scene.Handle, oldKey, newKey string, force bool) *PropertyCommand {
	return newPropertyCommand(ref, ActionRename, entities, oldKey, newKey, "", force)
}

// SetProperty sets key to value on entities, adding the key where missing.
func SetProperty(ref document.Ref, entities []scene.Handle, key, value string, force bool) *PropertyCommand {
	return newPropertyCommand(ref, ActionSet, entities, key, "", value, force)
}

// RemoveProperty deletes key from entities.
func RemoveProperty(ref document.Ref, entities []scene.Handle, key string, force bool) *PropertyCommand {
	return newPropertyCommand(ref, ActionRemove, entities, key, "", "", force)
}

func newPropertyCommand(ref document.Ref, action PropertyAction, entities []scene.Handle, key, newKey, value string, force bool) *PropertyCommand {
	var name string
	switch action {
	case ActionRename:
		name = "Rename Property"
	case ActionSet:
		name = "Set Property"
	case ActionRemove:
		name = "Remove Property"
	}
	return &PropertyCommand{
		Base:     command.NewBase(propertyType, name),
		ref:      ref,
		action:   action,
		entities: append([]scene.Handle(nil), entities...),
		key:      key,
		newKey:   newKey,
		value:    value,
		force:    force,
	}
}

func (c *PropertyCommand) Action() PropertyAction { return c.action }
func (c *PropertyCommand) Key() string { return c.key }
func (c *PropertyCommand) NewKey() string { return c.newKey }
func (c *PropertyCommand) Value() string { return c.value }
func (c *PropertyCommand) Force() bool { return c.force }

// Entities returns the target list as given, duplicates included.
func (c *PropertyCommand) Entities() []scene.Handle {
	return append([]scene.Handle(nil), c.entities...)
}

// DefinitionAffected reports whether the command touches the classname,
// which selects the entity definition.
func (c *PropertyCommand) DefinitionAffected() bool {
	if c.key == property.KeyClassname {
		return true
	}
	return c.action == ActionRename && c.newKey == property.KeyClassname
}

// allowed checks the edit against the protection policy. Setting a
// protected key is only allowed where the key already exists.
func (c *PropertyCommand) allowed(p property.Policy, stores []*property.Store) error {
	if c.force {
		return nil
	}
	switch c.action {
	case ActionSet:
		if !p.ValueMutable(c.key) {
			return fmt.Errorf("%w: value of %q", ErrPolicyViolation, c.key)
		}
		if !p.KeyMutable(c.key) {
			for i, st := range stores {
				if !st.Has(c.key) {
					return fmt.Errorf("%w: key %q on %s", ErrPolicyViolation, c.key, c.entities[i])
				}
			}
		}
	case ActionRemove:
		if !p.KeyMutable(c.key) || !p.ValueMutable(c.key) {
			return fmt.Errorf("%w: key %q", ErrPolicyViolation, c.key)
		}
	case ActionRename:
		if !p.KeyMutable(c.key) || !p.ValueMutable(c.key) {
			return fmt.Errorf("%w: key %q", ErrPolicyViolation, c.key)
		}
		if !p.KeyMutable(c.newKey) {
			return fmt.Errorf("%w: key %q", ErrPolicyViolation, c.newKey)
		}
	}
	return nil
}

// stores resolves every target before anything is mutated.
func (c *PropertyCommand) stores(s *scene.Scene) ([]*property.Store, error) {
	if len(c.entities) == 0 {
		return nil, fmt.Errorf("%w: no entities", ErrInvalidTarget)
	}
	out := make([]*property.Store, len(c.entities))
	for i, h := range c.entities {
		p, err := s.Properties(h)
		if err != nil {
			return nil, invalidTarget(h, err)
		}
		out[i] = p
	}
	return out, nil
}

func (c *PropertyCommand) remember(h scene.Handle, had bool, value string) {
	for _, e := range c.snapshot {
		if e.node == h {
			return
		}
	}
	c.snapshot = append(c.snapshot, snapshotEntry{node: h, had: had, value: value})
}

func (c *PropertyCommand) Do() error {
	return c.PerformDo(c.do)
}

func (c *PropertyCommand) do() error {
	doc, s, err := lock(c.ref)
	if err != nil {
		return err
	}
	stores, err := c.stores(s)
	if err != nil {
		return err
	}
	if err := c.allowed(doc.Policy(), stores); err != nil {
		return err
	}
	if c.action == ActionRename {
		if c.key == c.newKey {
			return fmt.Errorf("%w: %q renamed to itself", ErrKeyCollision, c.key)
		}
		for i, st := range stores {
			if st.Has(c.newKey) {
				return fmt.Errorf("%w: %s already has %q", ErrKeyCollision, c.entities[i], c.newKey)
			}
		}
	}

	nodes := unique(c.entities)
	doc.WillChange(nodes)
	c.snapshot = c.snapshot[:0]
	var changes []document.PropertyChange
	for i, st := range stores {
		h := c.entities[i]
		old, had := st.Get(c.key)
		c.remember(h, had, old)
		switch c.action {
		case ActionSet:
			st.Set(c.key, c.value)
			changes = append(changes, document.PropertyChange{
				Node: h, OldKey: c.key, OldValue: old, NewKey: c.key, NewValue: c.value,
			})
		case ActionRemove:
			if had {
				st.Remove(c.key)
				changes = append(changes, document.PropertyChange{Node: h, OldKey: c.key, OldValue: old})
			}
		case ActionRename:
			if had {
				st.Rename(c.key, c.newKey)
				changes = append(changes, document.PropertyChange{
					Node: h, OldKey: c.key, OldValue: old, NewKey: c.newKey, NewValue: old,
				})
			}
		}
	}
	c.finish(doc, nodes, changes)
	return nil
}

func (c *PropertyCommand) Undo() error {
	return c.PerformUndo(c.undo)
}

func (c *PropertyCommand) undo() error {
	doc, s, err := lock(c.ref)
	if err != nil {
		return err
	}
	nodes := unique(c.entities)
	doc.WillChange(nodes)
	var changes []document.PropertyChange
	for i := len(c.snapshot) - 1; i >= 0; i-- {
		e := c.snapshot[i]
		st, err := s.Properties(e.node)
		if err != nil {
			continue
		}
		switch c.action {
		case ActionSet:
			cur, _ := st.Get(c.key)
			if e.had {
				st.Set(c.key, e.value)
				changes = append(changes, document.PropertyChange{
					Node: e.node, OldKey: c.key, OldValue: cur, NewKey: c.key, NewValue: e.value,
				})
			} else {
				st.Remove(c.key)
				changes = append(changes, document.PropertyChange{Node: e.node, OldKey: c.key, OldValue: cur})
			}
		case ActionRemove:
			if e.had {
				st.Set(c.key, e.value)
				changes = append(changes, document.PropertyChange{Node: e.node, NewKey: c.key, NewValue: e.value})
			}
		case ActionRename:
			if e.had {
				st.Remove(c.newKey)
				st.Set(c.key, e.value)
				changes = append(changes, document.PropertyChange{
					Node: e.node, OldKey: c.newKey, OldValue: e.value, NewKey: c.key, NewValue: e.value,
				})
			}
		}
	}
	c.finish(doc, nodes, changes)
	return nil
}

func (c *PropertyCommand) finish(doc *document.Document, nodes []scene.Handle, changes []document.PropertyChange) {
	doc.DidChange(nodes)
	for _, ch := range changes {
		doc.PropertyDidChange.Notify(ch)
	}
	if c.DefinitionAffected() {
		doc.UpdateDefinitions(nodes)
	}
}

// CollateWith absorbs a later edit of the same kind, keys, force flag and
// targets, taking over its value.
func (c *PropertyCommand) CollateWith(next command.Command) bool {
	n, ok := next.(*PropertyCommand)
	if !ok || n.Type() != c.Type() {
		return false
	}
	if n.action != c.action || n.force != c.force || n.key != c.key || n.newKey != c.newKey {
		return false
	}
	if !sameSet(n.entities, c.entities) {
		return false
	}
	c.value = n.value
	return true
}

// IsRepeatable reports whether the live document has entities selected.
func (c *PropertyCommand) IsRepeatable() bool {
	doc, err := c.ref.Lock()
	if err != nil {
		return false
	}
	return doc.HasSelectedEntities()
}

// Repeat returns the same edit aimed at the currently selected entities.
func (c *PropertyCommand) Repeat() (command.Command, error) {
	doc, err := c.ref.Lock()
	if err != nil {
		return nil, err
	}
	targets := doc.AllSelectedEntities()
	if len(targets) == 0 {
		return nil, command.ErrNotRepeatable
	}
	return newPropertyCommand(c.ref, c.action, targets, c.key, c.newKey, c.value, c.force), nil
}
