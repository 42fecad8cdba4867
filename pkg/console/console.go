// Package console collects text written by background goroutines and hands
// it to the goroutine that owns the document as complete lines.
package console

import (
	"bytes"
	"errors"
	"sync"
)

// DefaultCapacity is the number of pending writes buffered before writers
// block.
const DefaultCapacity = 1024

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("console: closed")

// Console is an io.Writer that may be written from any goroutine. Only the
// owner calls Drain.
type Console struct {
	ch chan []byte

	mu     sync.Mutex
	closed bool

	pending []byte // unterminated tail, owned by the draining goroutine
	cr      bool   // pending ends in an unresolved carriage return
}

// New returns a console buffering up to capacity writes.
func New(capacity int) *Console {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Console{ch: make(chan []byte, capacity)}
}

// Write enqueues a copy of p.
func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	c.ch <- bytes.Clone(p)
	return len(p), nil
}

// Close makes further writes fail. Text already written can still be
// drained.
func (c *Console) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Drain returns the complete lines written since the last drain, without
// their terminators. A carriage return discards the partial line before it,
// so progress output collapses to its last state. An unterminated tail is
// kept for the next drain.
func (c *Console) Drain() []string {
	var lines []string
	for {
		select {
		case chunk := <-c.ch:
			lines = c.consume(chunk, lines)
		default:
			return lines
		}
	}
}

// Pending returns the unterminated tail held back by Drain.
func (c *Console) Pending() string {
	return string(c.pending)
}

func (c *Console) consume(chunk []byte, lines []string) []string {
	for _, b := range chunk {
		if c.cr {
			c.cr = false
			if b != '\n' {
				c.pending = c.pending[:0]
			}
		}
		switch b {
		case '\n':
			lines = append(lines, string(c.pending))
			c.pending = c.pending[:0]
		case '\r':
			// Resolved by the next byte: CRLF ends the line, anything else
			// overwrites it.
			c.cr = true
		default:
			c.pending = append(c.pending, b)
		}
	}
	return lines
}
