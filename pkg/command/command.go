// Package command implements undoable commands and the stack that executes,
// undoes, redoes, collates, groups and repeats them.
package command

import (
	"errors"
	"fmt"
	"sync/atomic"

	"go.jetify.com/typeid/v2"
)

var (
	ErrNothingToUndo     = errors.New("command: nothing to undo")
	ErrNothingToRedo     = errors.New("command: nothing to redo")
	ErrReentrant         = errors.New("command: stack is already executing a command")
	ErrNoTransaction     = errors.New("command: no open transaction")
	ErrTransactionOpen   = errors.New("command: a transaction is open")
	ErrTransactionFailed = errors.New("command: transaction failed")
	ErrNotRepeatable     = errors.New("command: last command is not repeatable")
)

// IDPrefix is the typeid prefix of command ids.
const IDPrefix = "cmd"

// Type tags a family of commands. Commands only collate with commands of
// the same type.
type Type int32

var lastType atomic.Int32

// FreeType allocates a new, unique command type.
func FreeType() Type {
	return Type(lastType.Add(1))
}

// Command is a reversible unit of document mutation.
//
// Do applies the mutation atomically and returns an error if nothing was
// changed. Undo reverses a successful Do. CollateWith is offered the next
// command after that command succeeded; returning true absorbs it into the
// receiver's history entry. Repeat builds a fresh, unexecuted command
// performing the same action against the current selection.
type Command interface {
	Type() Type
	Name() string
	ID() string
	Do() error
	Undo() error
	CollateWith(next Command) bool
	IsRepeatable() bool
	Repeat() (Command, error)
}

// Discarder is implemented by commands that hold resources to release once
// they leave the history for good.
type Discarder interface {
	Discard()
}

// State is the execution state of a command.
type State int

const (
	StateDefault State = iota // never executed
	StateDone                 // applied
	StateUndone               // applied, then reversed
)

func (s State) String() string {
	switch s {
	case StateDefault:
		return "default"
	case StateDone:
		return "done"
	case StateUndone:
		return "undone"
	default:
		return "unknown"
	}
}

// Base carries the identity and execution state of a command. Concrete
// commands embed it and route Do and Undo through PerformDo and PerformUndo.
type Base struct {
	typ   Type
	name  string
	id    string
	state State
}

// NewBase returns a Base with a fresh id.
func NewBase(t Type, name string) Base {
	return Base{typ: t, name: name, id: typeid.MustGenerate(IDPrefix).String()}
}

func (b *Base) Type() Type { return b.typ }
func (b *Base) Name() string { return b.name }
func (b *Base) ID() string { return b.id }
func (b *Base) State() State { return b.state }

// PerformDo runs fn and marks the command done if it succeeds. Doing a
// command that is already done is a programming error.
func (b *Base) PerformDo(fn func() error) error {
	if b.state == StateDone {
		panic(fmt.Sprintf("command %q (%s): do without intervening undo", b.name, b.id))
	}
	if err := fn(); err != nil {
		return err
	}
	b.state = StateDone
	return nil
}

// PerformUndo runs fn and marks the command undone if it succeeds. Undoing a
// command that is not done is a programming error.
func (b *Base) PerformUndo(fn func() error) error {
	if b.state != StateDone {
		panic(fmt.Sprintf("command %q (%s): undo without matching do (state %s)", b.name, b.id, b.state))
	}
	if err := fn(); err != nil {
		return err
	}
	b.state = StateUndone
	return nil
}

// ValidateID checks that id is a command typeid.
func ValidateID(id string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid command id %q: %w", id, err)
	}
	if parsed.Prefix() != IDPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", IDPrefix, parsed.Prefix(), id)
	}
	return nil
}

func discard(c Command) {
	if d, ok := c.(Discarder); ok {
		d.Discard()
	}
}
