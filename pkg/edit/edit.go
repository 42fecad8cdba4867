// Package edit holds the concrete document commands: property edits, brush
// face edits, transforms, structural edits and layer edits.
//
// Every command holds a weak document.Ref and fails with document.ErrExpired
// once the document is gone. Commands validate all targets before touching
// any of them and bracket each batch of mutations with one will-change and
// one did-change notification.
package edit

import (
	"errors"
	"fmt"
	"slices"

	"github.com/chazu/mortar/pkg/document"
	"github.com/chazu/mortar/pkg/scene"
)

var (
	ErrPolicyViolation = errors.New("edit: protected by policy")
	ErrKeyCollision    = errors.New("edit: key collision")
	ErrInvalidTarget   = errors.New("edit: invalid target")
	ErrNoChange        = errors.New("edit: nothing to change")
)

func lock(ref document.Ref) (*document.Document, *scene.Scene, error) {
	doc, err := ref.Lock()
	if err != nil {
		return nil, nil, err
	}
	return doc, doc.Scene(), nil
}

func invalidTarget(h scene.Handle, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInvalidTarget, h, err)
}

// unique returns hs without duplicates, keeping first occurrences.
func unique(hs []scene.Handle) []scene.Handle {
	out := make([]scene.Handle, 0, len(hs))
	for _, h := range hs {
		if !slices.Contains(out, h) {
			out = append(out, h)
		}
	}
	return out
}

// topmost drops every handle that has an ancestor in hs.
func topmost(s *scene.Scene, hs []scene.Handle) []scene.Handle {
	hs = unique(hs)
	out := make([]scene.Handle, 0, len(hs))
	for _, h := range hs {
		covered := false
		for _, o := range hs {
			if o != h && s.IsAncestor(o, h) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, h)
		}
	}
	return out
}

// sameSet reports whether a and b hold the same handles in the same order.
func sameSet(a, b []scene.Handle) bool {
	return slices.Equal(a, b)
}
