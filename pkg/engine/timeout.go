package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/chazu/mortar/pkg/document"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalTimeout is the default hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

// errAbandoned is returned to builtins still running after their evaluation
// timed out.
var errAbandoned = errors.New("evaluation abandoned")

// evalResult is the internal type used to pass evaluation results through channels.
type evalResult struct {
	value  string
	errors []EvalError
	err    error
}

// request is a unit of document work sent from the interpreter goroutine to
// the owning goroutine.
type request struct {
	fn    func(*document.Document) (zygo.Sexp, error)
	reply chan response
}

type response struct {
	v   zygo.Sexp
	err error
}

// bridge carries document requests from builtins to the owner.
type bridge struct {
	requests chan request
	abandon  chan struct{}
}

// call runs fn on the owning goroutine and waits for its answer.
func (b *bridge) call(fn func(*document.Document) (zygo.Sexp, error)) (zygo.Sexp, error) {
	req := request{fn: fn, reply: make(chan response, 1)}
	select {
	case b.requests <- req:
	case <-b.abandon:
		return zygo.SexpNull, errAbandoned
	}
	res := <-req.reply
	return res.v, res.err
}

// serve answers document requests until a result arrives on ch or the
// timeout expires. It uses the generation counter to discard results of
// evaluations that a newer call has superseded.
//
// On timeout, the interpreter goroutine may still be running; closing the
// abandon channel keeps it away from the document.
func (e *Engine) serve(doc *document.Document, b *bridge, ch <-chan evalResult, gen uint64) (*Result, error) {
	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	for {
		select {
		case req := <-b.requests:
			v, err := req.fn(doc)
			req.reply <- response{v: v, err: err}

		case res := <-ch:
			e.mu.Lock()
			current := e.generation
			e.mu.Unlock()

			if gen != current {
				return nil, fmt.Errorf("evaluation superseded by newer request")
			}
			if res.err != nil {
				return nil, res.err
			}
			return &Result{Value: res.value, Errors: res.errors}, nil

		case <-timer.C:
			close(b.abandon)
			return nil, fmt.Errorf("evaluation timed out after %s", e.timeout)
		}
	}
}
