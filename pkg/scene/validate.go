package scene

import "fmt"

// Severity indicates whether an issue makes the scene unusable or is merely
// informational.
type Severity int

const (
	SeverityError   Severity = iota // structural damage or unusable geometry
	SeverityWarning                 // informational
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Issue describes a single validation finding.
type Issue struct {
	Node     Handle   // which node has the problem (zero if scene-level)
	Message  string   // human-readable description
	Severity Severity // error or warning
}

func (i Issue) Error() string {
	if i.Node.IsZero() {
		return fmt.Sprintf("[%s] %s", i.Severity, i.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Node, i.Message)
}

// Validate checks the structure reachable from the world and the geometry
// of every brush. It never mutates the scene.
func Validate(s *Scene) []Issue {
	var issues []Issue
	issues = append(issues, validateLinks(s)...)
	if cycles := validateAcyclic(s); len(cycles) > 0 {
		// The remaining checks walk the tree and would not terminate.
		return append(issues, cycles...)
	}
	issues = append(issues, validatePlacement(s)...)
	issues = append(issues, validateContent(s)...)
	return issues
}

// Errors returns only the error-severity issues.
func Errors(issues []Issue) []Issue {
	var out []Issue
	for _, i := range issues {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}

// validateLinks checks that every child link points at a live node whose
// parent link points back.
func validateLinks(s *Scene) []Issue {
	var issues []Issue
	for idx := range s.slots {
		sl := &s.slots[idx]
		if sl.node == nil {
			continue
		}
		h := Handle{Index: uint32(idx), Gen: sl.gen}
		for _, c := range sl.node.children {
			cn, err := s.get(c)
			if err != nil {
				issues = append(issues, Issue{
					Node:     h,
					Message:  fmt.Sprintf("child reference %s does not exist", c),
					Severity: SeverityError,
				})
				continue
			}
			if cn.parent != h {
				issues = append(issues, Issue{
					Node:     c,
					Message:  fmt.Sprintf("parent link %s does not match owner %s", cn.parent, h),
					Severity: SeverityError,
				})
			}
		}
		if !sl.node.parent.IsZero() && !s.Valid(sl.node.parent) {
			issues = append(issues, Issue{
				Node:     h,
				Message:  fmt.Sprintf("parent reference %s does not exist", sl.node.parent),
				Severity: SeverityError,
			})
		}
	}
	return issues
}

// validateAcyclic checks for cycles using DFS with 3-color marking.
func validateAcyclic(s *Scene) []Issue {
	const (
		white = iota
		gray
		black
	)
	color := make(map[Handle]int)
	var issues []Issue

	var visit func(h Handle) bool
	visit = func(h Handle) bool {
		switch color[h] {
		case black:
			return false
		case gray:
			issues = append(issues, Issue{
				Node:     h,
				Message:  "cycle detected: node is its own ancestor",
				Severity: SeverityError,
			})
			return true
		}
		color[h] = gray
		n, err := s.get(h)
		if err != nil {
			color[h] = black
			return false
		}
		for _, c := range n.children {
			if visit(c) {
				return true
			}
		}
		color[h] = black
		return false
	}
	visit(s.world)
	return issues
}

// validatePlacement checks the containment rules for every reachable link.
func validatePlacement(s *Scene) []Issue {
	var issues []Issue
	s.Walk(s.world, func(h Handle, k Kind) bool {
		for _, c := range s.Children(h) {
			ck, err := s.Kind(c)
			if err != nil {
				continue
			}
			if !canContain(k, ck) {
				issues = append(issues, Issue{
					Node:     c,
					Message:  fmt.Sprintf("%s cannot be placed in a %s", ck, k),
					Severity: SeverityError,
				})
			}
		}
		return true
	})
	return issues
}

// validateContent reports invalid brushes, entities without a classname and
// empty containers.
func validateContent(s *Scene) []Issue {
	var issues []Issue
	s.Walk(s.world, func(h Handle, k Kind) bool {
		n, _ := s.get(h)
		switch d := n.data.(type) {
		case *WorldData, *LayerData:
		case *GroupData:
			if len(n.children) == 0 {
				issues = append(issues, Issue{
					Node:     h,
					Message:  fmt.Sprintf("group %q is empty", d.Name),
					Severity: SeverityWarning,
				})
			}
		case *EntityData:
			if d.Properties.Classname() == "" {
				issues = append(issues, Issue{
					Node:     h,
					Message:  "entity has no classname",
					Severity: SeverityWarning,
				})
			}
			if d.Definition != nil && d.Definition.Point && len(n.children) > 0 {
				issues = append(issues, Issue{
					Node:     h,
					Message:  fmt.Sprintf("point entity %q owns brushes", d.Definition.Classname),
					Severity: SeverityWarning,
				})
			}
		case *BrushData:
			if !d.Brush.Valid() {
				issues = append(issues, Issue{
					Node:     h,
					Message:  fmt.Sprintf("brush is invalid: %s", d.Brush.InvalidReason()),
					Severity: SeverityError,
				})
			} else if !d.Brush.FullySpecified() {
				issues = append(issues, Issue{
					Node:     h,
					Message:  "brush has faces without a texture",
					Severity: SeverityWarning,
				})
			}
		default:
			panic(badKind(k))
		}
		return true
	})
	return issues
}
