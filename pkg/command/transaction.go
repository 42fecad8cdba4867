package command

import (
	"errors"
	"fmt"
)

var transactionType = FreeType()

// Transaction is a composite command whose children are done in order and
// undone in reverse order as one unit.
type Transaction struct {
	Base
	children []Command
}

// NewTransaction returns an empty transaction.
func NewTransaction(name string, children ...Command) *Transaction {
	return &Transaction{Base: NewBase(transactionType, name), children: children}
}

// Children returns the commands grouped by the transaction.
func (t *Transaction) Children() []Command {
	out := make([]Command, len(t.children))
	copy(out, t.children)
	return out
}

// Do applies every child. If a child fails, the children already applied are
// undone and ErrTransactionFailed is returned.
func (t *Transaction) Do() error {
	return t.PerformDo(func() error {
		for i, c := range t.children {
			if err := c.Do(); err != nil {
				rerr := undoAll(t.children[:i])
				return errors.Join(fmt.Errorf("%w: %s: %w", ErrTransactionFailed, c.Name(), err), rerr)
			}
		}
		return nil
	})
}

// Undo reverses every child in reverse order. If a child refuses, the
// children already reversed are done again.
func (t *Transaction) Undo() error {
	return t.PerformUndo(func() error {
		for i := len(t.children) - 1; i >= 0; i-- {
			c := t.children[i]
			if err := c.Undo(); err != nil {
				var rerr error
				for _, r := range t.children[i+1:] {
					rerr = errors.Join(rerr, r.Do())
				}
				return errors.Join(fmt.Errorf("%w: undo %s: %w", ErrTransactionFailed, c.Name(), err), rerr)
			}
		}
		return nil
	})
}

func (t *Transaction) CollateWith(Command) bool { return false }

// IsRepeatable reports whether every child can be repeated.
func (t *Transaction) IsRepeatable() bool {
	if len(t.children) == 0 {
		return false
	}
	for _, c := range t.children {
		if !c.IsRepeatable() {
			return false
		}
	}
	return true
}

// Repeat returns a transaction of the repeated children.
func (t *Transaction) Repeat() (Command, error) {
	if !t.IsRepeatable() {
		return nil, ErrNotRepeatable
	}
	children := make([]Command, 0, len(t.children))
	for _, c := range t.children {
		rc, err := c.Repeat()
		if err != nil {
			for _, done := range children {
				discard(done)
			}
			return nil, fmt.Errorf("repeat %s: %w", c.Name(), err)
		}
		children = append(children, rc)
	}
	return NewTransaction(t.Name(), children...), nil
}

// Discard releases the resources of every child.
func (t *Transaction) Discard() {
	for _, c := range t.children {
		discard(c)
	}
}

// undoAll reverses done commands from last to first.
func undoAll(done []Command) error {
	var err error
	for i := len(done) - 1; i >= 0; i-- {
		err = errors.Join(err, done[i].Undo())
	}
	return err
}
