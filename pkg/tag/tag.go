// Package tag implements smart tags: named bit flags that classify brush
// faces by texture and nodes by entity classname.
package tag

import (
	"fmt"
	"math/bits"
	"path"
	"strings"
)

// Mask is a set of tags, one bit per registered tag.
type Mask uint64

// Has reports whether m contains any bit of other.
func (m Mask) Has(other Mask) bool {
	return m&other != 0
}

// Count returns the number of tags in m.
func (m Mask) Count() int {
	return bits.OnesCount64(uint64(m))
}

// MaxTags is the number of distinct tags a Manager can hold.
const MaxTags = 64

// MatchKind selects what a smart tag is matched against.
type MatchKind int

const (
	MatchTexture   MatchKind = iota // face texture name
	MatchClassname                  // entity classname
)

func (k MatchKind) String() string {
	switch k {
	case MatchTexture:
		return "texture"
	case MatchClassname:
		return "classname"
	default:
		return "unknown"
	}
}

// ParseMatchKind converts "texture" or "classname" into a MatchKind.
func ParseMatchKind(s string) (MatchKind, error) {
	switch strings.ToLower(s) {
	case "texture":
		return MatchTexture, nil
	case "classname":
		return MatchClassname, nil
	}
	return 0, fmt.Errorf("invalid tag match kind %q, expected texture or classname", s)
}

// SmartTag is a named tag with a glob pattern.
type SmartTag struct {
	Name    string
	Match   MatchKind
	Pattern string
	Bit     Mask
}

// Manager owns the registered smart tags.
type Manager struct {
	tags   []SmartTag
	byName map[string]int
}

// NewManager returns an empty tag manager.
func NewManager() *Manager {
	return &Manager{byName: make(map[string]int)}
}

// Register adds a smart tag and returns its bit.
func (m *Manager) Register(name string, kind MatchKind, pattern string) (Mask, error) {
	if name == "" {
		return 0, fmt.Errorf("tag name must not be empty")
	}
	if _, exists := m.byName[name]; exists {
		return 0, fmt.Errorf("tag %q already registered", name)
	}
	if len(m.tags) >= MaxTags {
		return 0, fmt.Errorf("cannot register tag %q: limit of %d tags reached", name, MaxTags)
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, fmt.Errorf("tag %q: bad pattern %q: %w", name, pattern, err)
	}
	bit := Mask(1) << uint(len(m.tags))
	m.byName[name] = len(m.tags)
	m.tags = append(m.tags, SmartTag{Name: name, Match: kind, Pattern: pattern, Bit: bit})
	return bit, nil
}

// Lookup returns the bit of the named tag.
func (m *Manager) Lookup(name string) (Mask, bool) {
	if m == nil {
		return 0, false
	}
	i, ok := m.byName[name]
	if !ok {
		return 0, false
	}
	return m.tags[i].Bit, true
}

// Tags returns the registered tags in registration order.
func (m *Manager) Tags() []SmartTag {
	if m == nil {
		return nil
	}
	out := make([]SmartTag, len(m.tags))
	copy(out, m.tags)
	return out
}

// FaceTags returns the tags whose texture pattern matches texture.
func (m *Manager) FaceTags(texture string) Mask {
	return m.match(MatchTexture, texture)
}

// ClassnameTags returns the tags whose classname pattern matches classname.
func (m *Manager) ClassnameTags(classname string) Mask {
	return m.match(MatchClassname, classname)
}

func (m *Manager) match(kind MatchKind, s string) Mask {
	if m == nil || s == "" {
		return 0
	}
	var mask Mask
	for _, t := range m.tags {
		if t.Match != kind {
			continue
		}
		if ok, _ := path.Match(t.Pattern, s); ok {
			mask |= t.Bit
		}
	}
	return mask
}

// Names returns the names of the tags in mask, in registration order.
func (m *Manager) Names(mask Mask) []string {
	if m == nil {
		return nil
	}
	var names []string
	for _, t := range m.tags {
		if mask.Has(t.Bit) {
			names = append(names, t.Name)
		}
	}
	return names
}
