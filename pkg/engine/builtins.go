package engine

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/mortar/pkg/brush"
	"github.com/chazu/mortar/pkg/command"
	"github.com/chazu/mortar/pkg/document"
	"github.com/chazu/mortar/pkg/edit"
	"github.com/chazu/mortar/pkg/property"
	"github.com/chazu/mortar/pkg/scene"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms console script source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: set-property -> set_property
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpNode wraps a scene.Handle so nodes can be passed between builtins.
type sexpNode struct {
	h    scene.Handle
	kind scene.Kind
}

func (n *sexpNode) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %d.%d)", n.kind, n.h.Index, n.h.Gen)
}
func (n *sexpNode) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a v3.Vec.
type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				if _, next := isKW(args[i+1]); !next {
					result.kw[name] = args[i+1]
					i += 2
					continue
				}
			}
			// Keyword with no value is a flag.
			result.kw[name] = zygo.SexpNull
			i++
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// flag reports whether the keyword is present and not false.
func (a kwArgs) flag(name string) bool {
	v, ok := a.kw[name]
	if !ok {
		return false
	}
	if b, isBool := v.(*zygo.SexpBool); isBool {
		return b.Val
	}
	return true
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_z) and plain strings ("z").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

func toBool(s zygo.Sexp) (bool, error) {
	if b, ok := s.(*zygo.SexpBool); ok {
		return b.Val, nil
	}
	return false, fmt.Errorf("expected boolean, got %T (%s)", s, s.SexpString(nil))
}

// toValue renders a property value: strings as is, numbers in shortest
// form, vectors as "x y z".
func toValue(s zygo.Sexp) (string, error) {
	switch v := s.(type) {
	case *zygo.SexpStr:
		return toKeywordString(v)
	case *zygo.SexpInt:
		return strconv.FormatInt(v.Val, 10), nil
	case *zygo.SexpFloat:
		return strconv.FormatFloat(v.Val, 'g', -1, 64), nil
	case *sexpVec3:
		return property.FormatVec(v.vec), nil
	}
	return "", fmt.Errorf("expected string, number or vec3, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a Vec from a sexpVec3.
func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toNode extracts a Handle from a sexpNode.
func toNode(s zygo.Sexp) (scene.Handle, error) {
	if n, ok := s.(*sexpNode); ok {
		return n.h, nil
	}
	return scene.Handle{}, fmt.Errorf("expected node, got %T (%s)", s, s.SexpString(nil))
}

// toNodes flattens nodes and lists of nodes.
func toNodes(args []zygo.Sexp) ([]scene.Handle, error) {
	var out []scene.Handle
	for _, a := range args {
		if n, ok := a.(*sexpNode); ok {
			out = append(out, n.h)
			continue
		}
		items, err := sexpListToSlice(a)
		if err != nil {
			return nil, fmt.Errorf("expected node or list of nodes: %w", err)
		}
		hs, err := toNodes(items)
		if err != nil {
			return nil, err
		}
		out = append(out, hs...)
	}
	return out, nil
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

func nodeSexp(s *scene.Scene, h scene.Handle) zygo.Sexp {
	k, _ := s.Kind(h)
	return &sexpNode{h: h, kind: k}
}

// ---------------------------------------------------------------------------
// Document helpers, run on the owning goroutine
// ---------------------------------------------------------------------------

// findLayer returns the layer called name.
func findLayer(s *scene.Scene, name string) (scene.Handle, error) {
	for _, h := range s.Children(s.World()) {
		if ld, err := s.LayerData(h); err == nil && ld.Name == name {
			return h, nil
		}
	}
	return scene.Handle{}, fmt.Errorf("no layer named %q", name)
}

// attach adds a freshly created node under parent, freeing it if the add is
// rejected.
func attach(d *document.Document, parent, h scene.Handle) (zygo.Sexp, error) {
	if err := d.Submit(edit.AddNodes(d.Ref(), parent, []scene.Handle{h})); err != nil {
		_ = d.Scene().Free(h)
		return zygo.SexpNull, err
	}
	return nodeSexp(d.Scene(), h), nil
}

// propertyTargets returns the explicit targets, or the selected entities,
// or the world.
func propertyTargets(d *document.Document, explicit []scene.Handle) []scene.Handle {
	if len(explicit) > 0 {
		return explicit
	}
	if hs := d.AllSelectedEntities(); len(hs) > 0 {
		return hs
	}
	return []scene.Handle{d.Scene().World()}
}

func selection(d *document.Document) ([]scene.Handle, error) {
	sel := d.SelectedNodes()
	if len(sel) == 0 {
		return nil, fmt.Errorf("nothing selected")
	}
	return sel, nil
}

// selectionCenter is the center of the union of the selected bounds.
func selectionCenter(d *document.Document, sel []scene.Handle) v3.Vec {
	s := d.Scene()
	box := s.Bounds(sel[0])
	for _, h := range sel[1:] {
		box = box.Extend(s.Bounds(h))
	}
	return box.Center()
}

func submitted(err error) (zygo.Sexp, error) {
	if err != nil {
		return zygo.SexpNull, err
	}
	return &zygo.SexpBool{Val: true}, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the console builtins into a zygomys environment.
// Builtins reach the document only through b; echo writes to out.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals and
// kebab-case names match the underscore registrations.
func registerBuiltins(env *zygo.Zlisp, b *bridge, out io.Writer) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %c: %w", "xyz"[i], err)
			}
			c[i] = f
		}
		return &sexpVec3{vec: v3.Vec{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (world)
	// -----------------------------------------------------------------------
	env.AddFunction("world", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return b.call(func(d *document.Document) (zygo.Sexp, error) {
			return nodeSexp(d.Scene(), d.Scene().World()), nil
		})
	})

	// -----------------------------------------------------------------------
	// (layer) or (layer "walls")
	// -----------------------------------------------------------------------
	env.AddFunction("layer", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		var layerName string
		if len(args) > 0 {
			n, err := toString(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("layer: name: %w", err)
			}
			layerName = n
		}
		return b.call(func(d *document.Document) (zygo.Sexp, error) {
			s := d.Scene()
			if layerName == "" {
				return nodeSexp(s, s.DefaultLayer()), nil
			}
			h, err := findLayer(s, layerName)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("layer: %w", err)
			}
			return nodeSexp(s, h), nil
		})
	})

	// -----------------------------------------------------------------------
	// (add-layer "walls")
	// -----------------------------------------------------------------------
	env.AddFunction("add_layer", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("add-layer requires a name argument")
		}
		layerName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("add-layer: name: %w", err)
		}
		return b.call(func(d *document.Document) (zygo.Sexp, error) {
			s := d.Scene()
			return attach(d, s.World(), s.NewLayer(layerName))
		})
	})

	// -----------------------------------------------------------------------
	// (entity "light" :origin (vec3 0 0 64) :light 300 :parent (layer))
	// -----------------------------------------------------------------------
	env.AddFunction("entity", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("entity requires a classname argument")
		}
		classname, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("entity: classname: %w", err)
		}
		props := map[string]string{property.KeyClassname: classname}
		var parent scene.Handle
		for k, v := range pa.kw {
			if k == "parent" {
				if parent, err = toNode(v); err != nil {
					return zygo.SexpNull, fmt.Errorf("entity: parent: %w", err)
				}
				continue
			}
			if props[k], err = toValue(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("entity: %s: %w", k, err)
			}
		}
		return b.call(func(d *document.Document) (zygo.Sexp, error) {
			s := d.Scene()
			if parent.IsZero() {
				parent = s.DefaultLayer()
			}
			return attach(d, parent, s.NewEntity(props))
		})
	})

	// -----------------------------------------------------------------------
	// (cuboid (vec3 0 0 0) (vec3 64 64 8) :texture "stone" :parent door)
	// -----------------------------------------------------------------------
	env.AddFunction("cuboid", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 2 {
			return zygo.SexpNull, fmt.Errorf("cuboid requires min and max corners")
		}
		lo, err := toVec3(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cuboid: min: %w", err)
		}
		hi, err := toVec3(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cuboid: max: %w", err)
		}
		texture := "base"
		if v, ok := pa.kw["texture"]; ok {
			if texture, err = toString(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("cuboid: texture: %w", err)
			}
		}
		var parent scene.Handle
		if v, ok := pa.kw["parent"]; ok {
			if parent, err = toNode(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("cuboid: parent: %w", err)
			}
		}
		return b.call(func(d *document.Document) (zygo.Sexp, error) {
			br, err := brush.Cuboid(d.WorldBounds(), sdf.Box3{Min: lo, Max: hi}, brush.DefaultAttributes(texture))
			if err != nil {
				return zygo.SexpNull, err
			}
			s := d.Scene()
			if parent.IsZero() {
				parent = s.DefaultLayer()
			}
			return attach(d, parent, s.NewBrush(br))
		})
	})

	// -----------------------------------------------------------------------
	// (select a b (list c d)) / (select-none) / (selected-count)
	// -----------------------------------------------------------------------
	env.AddFunction("select", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		hs, err := toNodes(args)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("select: %w", err)
		}
		return b.call(func(d *document.Document) (zygo.Sexp, error) {
			return submitted(d.Select(hs...))
		})
	})

	env.AddFunction("select_none", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return b.call(func(d *document.Document) (zygo.Sexp, error) {
			d.ClearSelection()
			return zygo.SexpNull, nil
		})
	})

	env.AddFunction("selected_count", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return b.call(func(d *document.Document) (zygo.Sexp, error) {
			return &zygo.SexpInt{Val: int64(len(d.SelectedNodes()))}, nil
		})
	})

	// -----------------------------------------------------------------------
	// (set-property "key" value :force :on nodes)
	// (rename-property "old" "new" :force :on nodes)
	// (remove-property "key" :force :on nodes)
	//
	// Without :on, the selected entities are edited, or the world if no
	// entity is selected.
	// -----------------------------------------------------------------------
	propertyOp := func(fn string, argc int, build func(ref document.Ref, targets []scene.Handle, args []string, force bool) command.Command) {
		env.AddFunction(strings.ReplaceAll(fn, "-", "_"), func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			if len(pa.positional) != argc {
				return zygo.SexpNull, fmt.Errorf("%s requires %d arguments, got %d", fn, argc, len(pa.positional))
			}
			vals := make([]string, argc)
			for i, a := range pa.positional {
				v, err := toValue(a)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
				}
				vals[i] = v
			}
			var explicit []scene.Handle
			if v, ok := pa.kw["on"]; ok {
				hs, err := toNodes([]zygo.Sexp{v})
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: on: %w", fn, err)
				}
				explicit = hs
			}
			force := pa.flag("force")
			return b.call(func(d *document.Document) (zygo.Sexp, error) {
				return submitted(d.Submit(build(d.Ref(), propertyTargets(d, explicit), vals, force)))
			})
		})
	}
	propertyOp("set-property", 2, func(ref document.Ref, targets []scene.Handle, a []string, force bool) command.Command {
		return edit.SetProperty(ref, targets, a[0], a[1], force)
	})
	propertyOp("rename-property", 2, func(ref document.Ref, targets []scene.Handle, a []string, force bool) command.Command {
		return edit.RenameProperty(ref, targets, a[0], a[1], force)
	})
	propertyOp("remove-property", 1, func(ref document.Ref, targets []scene.Handle, a []string, force bool) command.Command {
		return edit.RemoveProperty(ref, targets, a[0], force)
	})

	// -----------------------------------------------------------------------
	// (get-property node "key")
	// -----------------------------------------------------------------------
	env.AddFunction("get_property", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("get-property requires a node and a key")
		}
		h, err := toNode(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("get-property: %w", err)
		}
		key, err := toKeywordString(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("get-property: key: %w", err)
		}
		return b.call(func(d *document.Document) (zygo.Sexp, error) {
			p, err := d.Scene().Properties(h)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("get-property: %w", err)
			}
			v, ok := p.Get(key)
			if !ok {
				return zygo.SexpNull, nil
			}
			return &zygo.SexpStr{S: v}, nil
		})
	})

	// -----------------------------------------------------------------------
	// (translate (vec3 16 0 0)) / (rotate-z 90)
	//
	// Both act on the selection; rotation is about the selection center.
	// -----------------------------------------------------------------------
	env.AddFunction("translate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("translate requires a vec3 argument")
		}
		delta, err := toVec3(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: %w", err)
		}
		return b.call(func(d *document.Document) (zygo.Sexp, error) {
			sel, err := selection(d)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("translate: %w", err)
			}
			return submitted(d.Submit(edit.TransformObjects(d.Ref(), sel, sdf.Translate3d(delta))))
		})
	})

	env.AddFunction("rotate_z", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("rotate-z requires an angle in degrees")
		}
		deg, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate-z: %w", err)
		}
		return b.call(func(d *document.Document) (zygo.Sexp, error) {
			sel, err := selection(d)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("rotate-z: %w", err)
			}
			c := selectionCenter(d, sel)
			m := sdf.Translate3d(c).Mul(sdf.RotateZ(deg * math.Pi / 180)).Mul(sdf.Translate3d(c.MulScalar(-1)))
			return submitted(d.Submit(edit.TransformObjects(d.Ref(), sel, m)))
		})
	})

	// -----------------------------------------------------------------------
	// (set-layer-visible layer false) / (set-layer-locked layer true)
	// (rename-layer layer "walls")
	// -----------------------------------------------------------------------
	layerFlag := func(fn string, build func(ref document.Ref, layer scene.Handle, v bool) command.Command) {
		env.AddFunction(strings.ReplaceAll(fn, "-", "_"), func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires a layer and a boolean", fn)
			}
			layer, err := toNode(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
			}
			v, err := toBool(args[1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
			}
			return b.call(func(d *document.Document) (zygo.Sexp, error) {
				return submitted(d.Submit(build(d.Ref(), layer, v)))
			})
		})
	}
	layerFlag("set-layer-visible", func(ref document.Ref, layer scene.Handle, v bool) command.Command {
		return edit.SetLayerVisible(ref, layer, v)
	})
	layerFlag("set-layer-locked", func(ref document.Ref, layer scene.Handle, v bool) command.Command {
		return edit.SetLayerLocked(ref, layer, v)
	})

	env.AddFunction("rename_layer", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("rename-layer requires a layer and a name")
		}
		layer, err := toNode(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rename-layer: %w", err)
		}
		newName, err := toString(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rename-layer: name: %w", err)
		}
		return b.call(func(d *document.Document) (zygo.Sexp, error) {
			return submitted(d.Submit(edit.RenameLayer(d.Ref(), layer, newName)))
		})
	})

	// -----------------------------------------------------------------------
	// (move-to-layer layer) / (delete-selected)
	// -----------------------------------------------------------------------
	env.AddFunction("move_to_layer", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("move-to-layer requires a layer")
		}
		layer, err := toNode(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("move-to-layer: %w", err)
		}
		return b.call(func(d *document.Document) (zygo.Sexp, error) {
			sel, err := selection(d)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("move-to-layer: %w", err)
			}
			return submitted(d.Submit(edit.ReparentNodes(d.Ref(), sel, layer)))
		})
	})

	env.AddFunction("delete_selected", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return b.call(func(d *document.Document) (zygo.Sexp, error) {
			sel, err := selection(d)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("delete-selected: %w", err)
			}
			return submitted(d.Submit(edit.RemoveNodes(d.Ref(), sel)))
		})
	})

	// -----------------------------------------------------------------------
	// (begin-transaction "Build Room") ... (commit) or (rollback)
	//
	// zygomys reserves begin, hence the longer name.
	// -----------------------------------------------------------------------
	env.AddFunction("begin_transaction", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		txName := "Script"
		if len(args) > 0 {
			n, err := toString(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("begin-transaction: name: %w", err)
			}
			txName = n
		}
		return b.call(func(d *document.Document) (zygo.Sexp, error) {
			return submitted(d.Begin(txName))
		})
	})

	stackOp := func(fn string, op func(d *document.Document) error) {
		env.AddFunction(fn, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			return b.call(func(d *document.Document) (zygo.Sexp, error) {
				return submitted(op(d))
			})
		})
	}
	stackOp("commit", (*document.Document).Commit)
	stackOp("rollback", (*document.Document).Rollback)
	stackOp("undo", (*document.Document).Undo)
	stackOp("redo", (*document.Document).Redo)
	stackOp("repeat", (*document.Document).Repeat)

	// -----------------------------------------------------------------------
	// (vertex-count brush) / (brush-valid brush)
	// -----------------------------------------------------------------------
	env.AddFunction("vertex_count", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("vertex-count requires a brush")
		}
		h, err := toNode(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vertex-count: %w", err)
		}
		return b.call(func(d *document.Document) (zygo.Sexp, error) {
			br, err := d.Scene().Brush(h)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vertex-count: %w", err)
			}
			n := 0
			if g := br.Geometry(); g != nil {
				n = len(g.Vertices)
			}
			return &zygo.SexpInt{Val: int64(n)}, nil
		})
	})

	env.AddFunction("brush_valid", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("brush-valid requires a brush")
		}
		h, err := toNode(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("brush-valid: %w", err)
		}
		return b.call(func(d *document.Document) (zygo.Sexp, error) {
			br, err := d.Scene().Brush(h)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("brush-valid: %w", err)
			}
			return &zygo.SexpBool{Val: br.Valid()}, nil
		})
	})

	// -----------------------------------------------------------------------
	// (echo "moved" n "brushes")
	// -----------------------------------------------------------------------
	env.AddFunction("echo", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			if s, ok := a.(*zygo.SexpStr); ok {
				parts[i] = s.S
			} else {
				parts[i] = a.SexpString(nil)
			}
		}
		if _, err := fmt.Fprintln(out, strings.Join(parts, " ")); err != nil {
			return zygo.SexpNull, fmt.Errorf("echo: %w", err)
		}
		return zygo.SexpNull, nil
	})
}
