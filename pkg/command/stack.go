package command

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultCollationWindow bounds how far apart two commands may be submitted
// and still collate.
const DefaultCollationWindow = time.Second

// EventKind identifies a stack event.
type EventKind int

const (
	EventDone EventKind = iota
	EventCollated
	EventUndone
	EventRedone
	EventDiscarded
)

func (k EventKind) String() string {
	switch k {
	case EventDone:
		return "done"
	case EventCollated:
		return "collated"
	case EventUndone:
		return "undone"
	case EventRedone:
		return "redone"
	case EventDiscarded:
		return "discarded"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is delivered to stack listeners after the history changed.
type Event struct {
	Kind    EventKind
	Command Command
}

// Entry summarizes one history slot.
type Entry struct {
	Name string
	ID   string
	Done bool
}

// Option configures a Stack.
type Option func(*Stack)

// WithLogger sets the stack's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Stack) { s.logger = l }
}

// WithCollationWindow sets the collation window. Zero disables the time
// limit; a negative window disables collation.
func WithCollationWindow(d time.Duration) Option {
	return func(s *Stack) { s.window = d }
}

// WithClock replaces the time source used for collation.
func WithClock(now func() time.Time) Option {
	return func(s *Stack) { s.now = now }
}

type frame struct {
	name     string
	children []Command
	failed   bool
}

// Stack executes commands and records them for undo and redo. It is not safe
// for concurrent use; it belongs to the goroutine that owns the document.
type Stack struct {
	history   []Command
	cursor    int // history[:cursor] is done, history[cursor:] is undone
	executing bool
	frames    []*frame

	collatable bool // the top entry may absorb the next command
	lastPush   time.Time

	window    time.Duration
	now       func() time.Time
	logger    *slog.Logger
	listeners []func(Event)
}

// NewStack returns an empty stack.
func NewStack(opts ...Option) *Stack {
	s := &Stack{
		window: DefaultCollationWindow,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Listen registers fn to receive stack events.
func (s *Stack) Listen(fn func(Event)) {
	s.listeners = append(s.listeners, fn)
}

func (s *Stack) emit(kind EventKind, c Command) {
	for _, fn := range s.listeners {
		fn(Event{Kind: kind, Command: c})
	}
}

// Submit executes c and records it. A failed command leaves no trace in the
// history. Inside a transaction the command joins the innermost frame.
func (s *Stack) Submit(c Command) error {
	if s.executing {
		return ErrReentrant
	}
	if f := s.top(); f != nil && f.failed {
		return fmt.Errorf("%w: %s", ErrTransactionFailed, f.name)
	}

	s.executing = true
	err := c.Do()
	s.executing = false

	if err != nil {
		s.logger.Debug("command failed", "name", c.Name(), "id", c.ID(), "error", err)
		if f := s.top(); f != nil {
			rerr := s.failFrames()
			return errors.Join(fmt.Errorf("%w: %s: %w", ErrTransactionFailed, f.name, err), rerr)
		}
		return err
	}

	if f := s.top(); f != nil {
		if n := len(f.children); n > 0 && f.children[n-1].CollateWith(c) {
			discard(c)
			return nil
		}
		f.children = append(f.children, c)
		return nil
	}
	s.push(c, true)
	return nil
}

// push records a done command, truncating the redo tail and collating with
// the top entry when allowed.
func (s *Stack) push(c Command, collate bool) {
	s.truncate()
	now := s.now()
	if collate && s.canCollate(now) && s.history[s.cursor-1].CollateWith(c) {
		discard(c)
		s.lastPush = now
		s.logger.Debug("command collated", "name", c.Name(), "into", s.history[s.cursor-1].ID())
		s.emit(EventCollated, s.history[s.cursor-1])
		return
	}
	s.history = append(s.history, c)
	s.cursor = len(s.history)
	s.collatable = collate
	s.lastPush = now
	s.logger.Debug("command done", "name", c.Name(), "id", c.ID())
	s.emit(EventDone, c)
}

func (s *Stack) canCollate(now time.Time) bool {
	if !s.collatable || s.cursor == 0 || s.window < 0 {
		return false
	}
	return s.window == 0 || now.Sub(s.lastPush) <= s.window
}

func (s *Stack) truncate() {
	if s.cursor == len(s.history) {
		return
	}
	for _, c := range s.history[s.cursor:] {
		discard(c)
		s.emit(EventDiscarded, c)
	}
	clear(s.history[s.cursor:])
	s.history = s.history[:s.cursor]
	s.collatable = false
}

// Undo reverses the most recent done command.
func (s *Stack) Undo() error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.cursor == 0 {
		return ErrNothingToUndo
	}
	c := s.history[s.cursor-1]
	s.executing = true
	err := c.Undo()
	s.executing = false
	if err != nil {
		return fmt.Errorf("undo %s: %w", c.Name(), err)
	}
	s.cursor--
	s.collatable = false
	s.logger.Debug("command undone", "name", c.Name(), "id", c.ID())
	s.emit(EventUndone, c)
	return nil
}

// Redo reapplies the most recently undone command.
func (s *Stack) Redo() error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.cursor == len(s.history) {
		return ErrNothingToRedo
	}
	c := s.history[s.cursor]
	s.executing = true
	err := c.Do()
	s.executing = false
	if err != nil {
		return fmt.Errorf("redo %s: %w", c.Name(), err)
	}
	s.cursor++
	s.collatable = false
	s.logger.Debug("command redone", "name", c.Name(), "id", c.ID())
	s.emit(EventRedone, c)
	return nil
}

// Repeat submits a repetition of the most recent done command.
func (s *Stack) Repeat() error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.cursor == 0 || !s.history[s.cursor-1].IsRepeatable() {
		return ErrNotRepeatable
	}
	rc, err := s.history[s.cursor-1].Repeat()
	if err != nil {
		return err
	}
	return s.Submit(rc)
}

func (s *Stack) ready() error {
	if s.executing {
		return ErrReentrant
	}
	if len(s.frames) > 0 {
		return ErrTransactionOpen
	}
	return nil
}

func (s *Stack) CanUndo() bool { return len(s.frames) == 0 && s.cursor > 0 }
func (s *Stack) CanRedo() bool { return len(s.frames) == 0 && s.cursor < len(s.history) }

// UndoName returns the name of the command Undo would reverse.
func (s *Stack) UndoName() string {
	if s.cursor == 0 {
		return ""
	}
	return s.history[s.cursor-1].Name()
}

// RedoName returns the name of the command Redo would reapply.
func (s *Stack) RedoName() string {
	if s.cursor == len(s.history) {
		return ""
	}
	return s.history[s.cursor].Name()
}

// History lists every recorded command, oldest first.
func (s *Stack) History() []Entry {
	out := make([]Entry, len(s.history))
	for i, c := range s.history {
		out[i] = Entry{Name: c.Name(), ID: c.ID(), Done: i < s.cursor}
	}
	return out
}

// Clear drops the whole history without undoing anything.
func (s *Stack) Clear() error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, c := range s.history {
		discard(c)
	}
	s.history = nil
	s.cursor = 0
	s.collatable = false
	return nil
}

// Begin opens a transaction. Transactions nest; an inner transaction folds
// into its parent on commit.
func (s *Stack) Begin(name string) error {
	if s.executing {
		return ErrReentrant
	}
	f := &frame{name: name}
	if parent := s.top(); parent != nil {
		f.failed = parent.failed
	}
	s.frames = append(s.frames, f)
	s.logger.Debug("transaction begun", "name", name, "depth", len(s.frames))
	return nil
}

// InTransaction reports whether a transaction is open.
func (s *Stack) InTransaction() bool { return len(s.frames) > 0 }

// Commit closes the innermost transaction and records its commands as one
// entry. Committing a failed transaction returns ErrTransactionFailed and
// records nothing.
func (s *Stack) Commit() error {
	f, err := s.pop()
	if err != nil {
		return err
	}
	if f.failed {
		return fmt.Errorf("%w: %s", ErrTransactionFailed, f.name)
	}
	if len(f.children) == 0 {
		return nil
	}
	t := NewTransaction(f.name, f.children...)
	t.state = StateDone
	if parent := s.top(); parent != nil {
		parent.children = append(parent.children, t)
		return nil
	}
	s.push(t, false)
	return nil
}

// Rollback closes the innermost transaction and reverses its commands.
func (s *Stack) Rollback() error {
	f, err := s.pop()
	if err != nil {
		return err
	}
	if f.failed {
		return nil
	}
	s.logger.Debug("transaction rolled back", "name", f.name)
	return s.unwindFrame(f)
}

// Transact runs fn inside a transaction, committing if fn succeeds and
// rolling back otherwise.
func (s *Stack) Transact(name string, fn func() error) error {
	if err := s.Begin(name); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return errors.Join(err, s.Rollback())
	}
	return s.Commit()
}

func (s *Stack) top() *frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

func (s *Stack) pop() (*frame, error) {
	if s.executing {
		return nil, ErrReentrant
	}
	f := s.top()
	if f == nil {
		return nil, ErrNoTransaction
	}
	s.frames = s.frames[:len(s.frames)-1]
	return f, nil
}

// failFrames unwinds every open frame, innermost first, and marks them
// failed. A failed child fails the outermost transaction it belongs to.
func (s *Stack) failFrames() error {
	var errs []error
	for i := len(s.frames) - 1; i >= 0; i-- {
		f := s.frames[i]
		if f.failed {
			continue
		}
		errs = append(errs, s.unwindFrame(f))
		f.failed = true
	}
	return errors.Join(errs...)
}

// unwindFrame undoes and discards a frame's commands.
func (s *Stack) unwindFrame(f *frame) error {
	s.executing = true
	err := undoAll(f.children)
	s.executing = false
	for _, c := range f.children {
		discard(c)
	}
	f.children = nil
	return err
}
