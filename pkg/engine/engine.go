// Package engine provides the Lisp scripting console for mortar documents.
// It wraps zygomys in a sandboxed environment whose builtins issue document
// commands. The interpreter runs on its own goroutine, but every document
// access is handed back to the goroutine that called Evaluate, which owns the
// document.
package engine

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/mortar/pkg/document"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error, a runtime error in user code or a rejected command.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Result is the outcome of one script.
type Result struct {
	// Value is the printed value of the last expression.
	Value  string
	Errors []EvalError
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout bounds each evaluation. Non-positive values select EvalTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithOutput sends echo output to w.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) { e.out = w }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine evaluates scripts against a document. Each call to Evaluate creates
// a fresh sandboxed environment.
type Engine struct {
	mu         sync.Mutex
	generation uint64

	timeout time.Duration
	out     io.Writer
	logger  *slog.Logger
}

// NewEngine creates a new Engine instance.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{timeout: EvalTimeout, out: io.Discard, logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Evaluate runs source against doc. It must be called on the goroutine that
// owns doc; it serves the interpreter's document requests until the script
// finishes or the timeout expires.
//
// Return semantics:
//   - On success: returns the result with no errors and nil error
//   - On parse/eval failure: returns the result with eval errors and nil error
//   - On fatal failure (timeout, panic, superseded): returns nil and an error
//
// A transaction left open by the script is rolled back and reported as an
// eval error.
func (e *Engine) Evaluate(doc *document.Document, source string) (*Result, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	if strings.TrimSpace(source) == "" {
		return &Result{}, nil
	}

	b := &bridge{
		requests: make(chan request),
		abandon:  make(chan struct{}),
	}
	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()
		ch <- e.evaluate(b, source)
	}()

	res, err := e.serve(doc, b, ch, gen)
	if doc.Stack().InTransaction() {
		for doc.Stack().InTransaction() {
			if rerr := doc.Rollback(); rerr != nil {
				break
			}
		}
		if err == nil {
			res.Errors = append(res.Errors, EvalError{Message: "unterminated transaction rolled back"})
		}
	}
	if err != nil {
		e.logger.Warn("evaluation failed", "error", err)
		return nil, err
	}
	return res, nil
}

// evaluate performs the zygomys evaluation in a fresh sandbox. It runs on
// the interpreter goroutine and reaches the document only through b.
func (e *Engine) evaluate(b *bridge, source string) evalResult {
	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerBuiltins(env, b, e.out)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return evalResult{errors: parseZygomysError(err)}
	}
	v, err := env.Run()
	if err != nil {
		return evalResult{errors: parseZygomysError(err)}
	}
	return evalResult{value: v.SexpString(nil)}
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	// zygomys formats parse errors as "Error on line N: <details>\n"
	for _, p := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := p.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
