package property

import (
	"fmt"
	"sort"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// DefaultPointSize is the half-extent used for point entities without a
// definition.
const DefaultPointSize = 8.0

// Definition describes an entity class.
type Definition struct {
	Classname   string
	Description string
	Color       string
	Model       string
	Size        sdf.Box3 // bounds relative to the origin; zero for brush entities
	Point       bool     // point entity rather than brush entity
}

// Registry maps classnames to definitions.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Add registers d, replacing any definition with the same classname.
func (r *Registry) Add(d Definition) error {
	if d.Classname == "" {
		return fmt.Errorf("definition without classname")
	}
	r.defs[d.Classname] = &d
	return nil
}

// Lookup returns the definition for classname, or nil.
func (r *Registry) Lookup(classname string) *Definition {
	if r == nil {
		return nil
	}
	return r.defs[classname]
}

// Classnames returns the registered classnames in sorted order.
func (r *Registry) Classnames() []string {
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PointBounds returns the bounds of a point entity of definition d placed at
// origin. A nil definition yields a DefaultPointSize cube.
func PointBounds(d *Definition, origin v3.Vec) sdf.Box3 {
	size := sdf.Box3{
		Min: v3.Vec{X: -DefaultPointSize, Y: -DefaultPointSize, Z: -DefaultPointSize},
		Max: v3.Vec{X: DefaultPointSize, Y: DefaultPointSize, Z: DefaultPointSize},
	}
	if d != nil && d.Size != (sdf.Box3{}) {
		size = d.Size
	}
	return sdf.Box3{Min: size.Min.Add(origin), Max: size.Max.Add(origin)}
}
