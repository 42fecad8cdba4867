// Package document ties the scene graph, the command stack, the selection and
// the game configuration together and broadcasts every change to observers.
//
// A Document belongs to one goroutine. Commands hold a weak Ref to it and
// fail with ErrExpired once it is closed or collected.
package document

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"
	"weak"

	"github.com/chazu/mortar/pkg/command"
	"github.com/chazu/mortar/pkg/console"
	"github.com/chazu/mortar/pkg/gameconfig"
	"github.com/chazu/mortar/pkg/geom"
	"github.com/chazu/mortar/pkg/property"
	"github.com/chazu/mortar/pkg/scene"
	"github.com/deadsy/sdfx/sdf"
	"github.com/google/uuid"
)

// DefaultWorldSize is the half extent of the default world bounds.
const DefaultWorldSize = 8192

var (
	ErrExpired  = errors.New("document: expired")
	ErrSelected = errors.New("document: node cannot be selected")
)

// PropertyChange describes one entity property edit. A rename carries both
// keys; a set carries equal keys; a removal carries an empty NewKey.
type PropertyChange struct {
	Node     scene.Handle
	OldKey   string
	OldValue string
	NewKey   string
	NewValue string
}

// Options configures a new Document. Zero fields take defaults.
type Options struct {
	WorldBounds     sdf.Box3
	Config          *gameconfig.Config
	CollationWindow time.Duration
	Logger          *slog.Logger
}

// Document is an editable map.
type Document struct {
	id      uuid.UUID
	scene   *scene.Scene
	stack   *command.Stack
	config  *gameconfig.Config
	policy  property.Policy
	console *console.Console
	logger  *slog.Logger
	closed  bool

	selection []scene.Handle

	NodesWillChange      Notifier[[]scene.Handle]
	NodesDidChange       Notifier[[]scene.Handle]
	PropertyDidChange    Notifier[PropertyChange]
	SelectionDidChange   Notifier[[]scene.Handle]
	DefinitionsDidChange Notifier[[]scene.Handle]
	CommandDone          Notifier[command.Command]
	CommandUndone        Notifier[command.Command]
}

// New creates an empty document: a world with its default layer.
func New(opts Options) (*Document, error) {
	if opts.Config == nil {
		opts.Config = gameconfig.Default()
	}
	if opts.WorldBounds == (sdf.Box3{}) {
		opts.WorldBounds = geom.CubeBox(DefaultWorldSize)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.CollationWindow == 0 {
		opts.CollationWindow = command.DefaultCollationWindow
	}

	defs, err := opts.Config.Registry()
	if err != nil {
		return nil, fmt.Errorf("document: %w", err)
	}
	tags, err := opts.Config.TagManager()
	if err != nil {
		return nil, fmt.Errorf("document: %w", err)
	}

	id := uuid.New()
	logger := opts.Logger.With("document", id.String())
	d := &Document{
		id:      id,
		scene:   scene.New(opts.WorldBounds, tags, defs),
		config:  opts.Config,
		policy:  opts.Config.Policy(),
		console: console.New(0),
		logger:  logger,
	}
	d.stack = command.NewStack(
		command.WithLogger(logger),
		command.WithCollationWindow(opts.CollationWindow),
	)
	d.stack.Listen(d.onStackEvent)
	logger.Info("document created", "game", opts.Config.Name)
	return d, nil
}

func (d *Document) onStackEvent(e command.Event) {
	switch e.Kind {
	case command.EventDone, command.EventCollated, command.EventRedone:
		d.CommandDone.Notify(e.Command)
	case command.EventUndone:
		d.CommandUndone.Notify(e.Command)
	}
}

func (d *Document) ID() uuid.UUID { return d.id }
func (d *Document) Scene() *scene.Scene { return d.scene }
func (d *Document) Stack() *command.Stack { return d.stack }
func (d *Document) Config() *gameconfig.Config { return d.config }
func (d *Document) Policy() property.Policy { return d.policy }
func (d *Document) Output() *console.Console { return d.console }
func (d *Document) Logger() *slog.Logger { return d.logger }
func (d *Document) Closed() bool { return d.closed }
func (d *Document) WorldBounds() sdf.Box3 { return d.scene.WorldBounds() }
func (d *Document) Definitions() *property.Registry { return d.scene.Definitions() }

// Close rolls back any open transaction, drops the history and expires
// every Ref to the document.
func (d *Document) Close() {
	if d.closed {
		return
	}
	for d.stack.InTransaction() {
		if err := d.stack.Rollback(); err != nil {
			d.logger.Warn("rollback on close", "error", err)
		}
	}
	if err := d.stack.Clear(); err != nil {
		d.logger.Warn("clear history on close", "error", err)
	}
	d.closed = true
	d.console.Close()
	d.logger.Info("document closed")
}

// Ref returns a weak reference to d.
func (d *Document) Ref() Ref {
	return Ref{p: weak.Make(d)}
}

// Ref is a weak reference to a Document.
type Ref struct {
	p weak.Pointer[Document]
}

// Lock returns the referenced document, or ErrExpired if it was closed or
// collected.
func (r Ref) Lock() (*Document, error) {
	d := r.p.Value()
	if d == nil || d.closed {
		return nil, ErrExpired
	}
	return d, nil
}

// ---------------------------------------------------------------------------
// Command stack passthroughs
// ---------------------------------------------------------------------------

func (d *Document) Submit(c command.Command) error {
	if d.closed {
		return ErrExpired
	}
	return d.stack.Submit(c)
}

func (d *Document) Undo() error { return d.stack.Undo() }
func (d *Document) Redo() error { return d.stack.Redo() }
func (d *Document) Repeat() error { return d.stack.Repeat() }

func (d *Document) Begin(name string) error { return d.stack.Begin(name) }
func (d *Document) Commit() error { return d.stack.Commit() }
func (d *Document) Rollback() error { return d.stack.Rollback() }

// Transact runs fn as one undoable step.
func (d *Document) Transact(name string, fn func() error) error {
	return d.stack.Transact(name, fn)
}

// ---------------------------------------------------------------------------
// Change notification helpers used by commands
// ---------------------------------------------------------------------------

// WillChange announces that nodes are about to change.
func (d *Document) WillChange(nodes []scene.Handle) {
	d.NodesWillChange.Notify(nodes)
}

// DidChange touches every node so derived state is recomputed, then
// announces the change.
func (d *Document) DidChange(nodes []scene.Handle) {
	for _, h := range nodes {
		_ = d.scene.Touch(h)
	}
	d.NodesDidChange.Notify(nodes)
}

// UpdateDefinitions rematches the entity definitions of nodes and announces
// it. With no nodes, every entity is rematched.
func (d *Document) UpdateDefinitions(nodes []scene.Handle) {
	if len(nodes) == 0 {
		nodes = d.scene.UpdateDefinitions(nil)
	} else {
		for _, h := range nodes {
			_ = d.scene.Touch(h)
		}
	}
	d.DefinitionsDidChange.Notify(nodes)
}

// SetConfig replaces the game configuration, rematching every entity.
func (d *Document) SetConfig(cfg *gameconfig.Config) error {
	defs, err := cfg.Registry()
	if err != nil {
		return err
	}
	d.config = cfg
	d.policy = cfg.Policy()
	touched := d.scene.UpdateDefinitions(defs)
	d.DefinitionsDidChange.Notify(touched)
	return nil
}

// ---------------------------------------------------------------------------
// Selection
// ---------------------------------------------------------------------------

// Select adds nodes to the selection. Only groups, entities and brushes
// attached to the world can be selected.
func (d *Document) Select(nodes ...scene.Handle) error {
	for _, h := range nodes {
		k, err := d.scene.Kind(h)
		if err != nil {
			return err
		}
		if k == scene.KindWorld || k == scene.KindLayer {
			return fmt.Errorf("%w: %s", ErrSelected, k)
		}
		if !d.scene.IsAncestor(d.scene.World(), h) {
			return fmt.Errorf("%w: %s is not in the document", ErrSelected, h)
		}
	}
	changed := false
	for _, h := range nodes {
		if !slices.Contains(d.selection, h) {
			d.selection = append(d.selection, h)
			changed = true
		}
	}
	if changed {
		d.SelectionDidChange.Notify(d.SelectedNodes())
	}
	return nil
}

// Deselect removes nodes from the selection.
func (d *Document) Deselect(nodes ...scene.Handle) {
	n := len(d.selection)
	d.selection = slices.DeleteFunc(d.selection, func(h scene.Handle) bool {
		return slices.Contains(nodes, h)
	})
	if len(d.selection) != n {
		d.SelectionDidChange.Notify(d.SelectedNodes())
	}
}

// ClearSelection empties the selection.
func (d *Document) ClearSelection() {
	if len(d.selection) == 0 {
		return
	}
	d.selection = nil
	d.SelectionDidChange.Notify(nil)
}

// SelectedNodes returns the selection in selection order.
func (d *Document) SelectedNodes() []scene.Handle {
	return slices.Clone(d.selection)
}

// HasSelectedEntities reports whether AllSelectedEntities would return
// anything.
func (d *Document) HasSelectedEntities() bool {
	return len(d.AllSelectedEntities()) > 0
}

// AllSelectedEntities returns the entities whose properties a property edit
// on the current selection applies to: selected entities, the entity owning
// each selected brush, and the world for brushes that belong to no entity.
// Groups contribute the entities and brushes they contain. The result is
// free of duplicates and keeps selection order.
func (d *Document) AllSelectedEntities() []scene.Handle {
	var out []scene.Handle
	add := func(h scene.Handle) {
		if !slices.Contains(out, h) {
			out = append(out, h)
		}
	}
	s := d.scene
	for _, sel := range d.selection {
		s.Walk(sel, func(h scene.Handle, k scene.Kind) bool {
			switch k {
			case scene.KindEntity:
				add(h)
				return false
			case scene.KindBrush:
				if e, err := s.Entity(h); err == nil {
					add(e)
				} else {
					add(s.World())
				}
			}
			return true
		})
	}
	return out
}
