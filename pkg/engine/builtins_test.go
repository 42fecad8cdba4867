package engine

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chazu/mortar/pkg/document"
	"github.com/chazu/mortar/pkg/scene"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(cuboid a b :texture "stone")`,
			expect: `(cuboid a b "__kw_texture" "stone")`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(set-property "k" "v" :force)`,
			expect: `(set_property "k" "v" "__kw_force")`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "negative literal preserved",
			input:  `(vec3 -8 0 -16)`,
			expect: `(vec3 -8 0 -16)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "hyphen in keyword preserved",
			input:  `:spawn-flags`,
			expect: `"__kw_spawn-flags"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

func TestParseArgsFlags(t *testing.T) {
	var args []zygo.Sexp
	for _, v := range []string{"k", "__kw_force", "__kw_on", "v"} {
		args = append(args, &zygo.SexpStr{S: v})
	}
	pa := parseArgs(args)
	if !pa.flag("force") {
		t.Error("trailing keyword before another keyword is a flag")
	}
	if len(pa.positional) != 1 {
		t.Errorf("positional = %d, want 1", len(pa.positional))
	}
	if _, ok := pa.kw["on"]; !ok {
		t.Error("missing :on")
	}
}

// ---------------------------------------------------------------------------
// Script helpers
// ---------------------------------------------------------------------------

func run(t *testing.T, doc *document.Document, source string, opts ...Option) *Result {
	t.Helper()
	res, err := NewEngine(opts...).Evaluate(doc, source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	return res
}

func mustRun(t *testing.T, doc *document.Document, source string, opts ...Option) *Result {
	t.Helper()
	res := run(t, doc, source, opts...)
	if len(res.Errors) > 0 {
		t.Fatalf("eval errors: %v", res.Errors)
	}
	return res
}

func countKind(doc *document.Document, k scene.Kind) int {
	n := 0
	doc.Scene().Walk(doc.Scene().World(), func(_ scene.Handle, got scene.Kind) bool {
		if got == k {
			n++
		}
		return true
	})
	return n
}

// ---------------------------------------------------------------------------
// Builtin tests
// ---------------------------------------------------------------------------

func TestBuildRoom(t *testing.T) {
	doc := newTestDocument(t)
	mustRun(t, doc, `
(def walls (add-layer "walls"))
(cuboid (vec3 -64 -64 -8) (vec3 64 64 0) :texture "floor")
(cuboid (vec3 -64 -64 0) (vec3 -56 64 96) :parent walls)
(entity "light" :origin (vec3 0 0 64) :light 300)
(def door (entity "func_door" :speed 100))
(cuboid (vec3 -8 60 0) (vec3 8 64 80) :parent door)
`)
	if got := countKind(doc, scene.KindLayer); got != 2 {
		t.Errorf("layers = %d, want 2", got)
	}
	if got := countKind(doc, scene.KindBrush); got != 3 {
		t.Errorf("brushes = %d, want 3", got)
	}
	if got := countKind(doc, scene.KindEntity); got != 2 {
		t.Errorf("entities = %d, want 2", got)
	}
	if got := len(doc.Stack().History()); got != 6 {
		t.Errorf("history = %d entries, want 6", got)
	}
}

func TestVertexCountAndValidity(t *testing.T) {
	doc := newTestDocument(t)
	res := mustRun(t, doc, `
(def b (cuboid (vec3 0 0 0) (vec3 16 16 16)))
(brush-valid b)
(vertex-count b)
`)
	if res.Value != "8" {
		t.Errorf("vertex-count = %q, want 8", res.Value)
	}
}

func TestTranslateSelectionAndUndo(t *testing.T) {
	doc := newTestDocument(t)
	mustRun(t, doc, `
(def b (cuboid (vec3 0 0 0) (vec3 16 16 16)))
(select b)
(translate (vec3 32 0 0))
`)
	brushes := doc.SelectedNodes()
	if len(brushes) != 1 {
		t.Fatalf("selection = %v", brushes)
	}
	br, _ := doc.Scene().Brush(brushes[0])
	if br.Bounds().Min.X != 32 {
		t.Errorf("Min.X = %v, want 32", br.Bounds().Min.X)
	}
	mustRun(t, doc, `(undo)`)
	if br.Bounds().Min.X != 0 {
		t.Errorf("Min.X after undo = %v, want 0", br.Bounds().Min.X)
	}
}

func TestPropertyBuiltins(t *testing.T) {
	doc := newTestDocument(t)
	res := mustRun(t, doc, `
(def l (entity "light" :origin (vec3 0 0 0)))
(select l)
(set-property "light" 250)
(rename-property "light" "_light")
(get-property l "_light")
`)
	if res.Value != `"250"` {
		t.Errorf("get-property = %s, want \"250\"", res.Value)
	}

	// Nothing selected: the world is edited.
	mustRun(t, doc, `(select-none) (set-property "message" "hello")`)
	p, _ := doc.Scene().Properties(doc.Scene().World())
	if v, _ := p.Get("message"); v != "hello" {
		t.Errorf("world message = %q", v)
	}
}

func TestPolicyNeedsForce(t *testing.T) {
	doc := newTestDocument(t)
	res := run(t, doc, `(set-property "mapversion" "220")`)
	if len(res.Errors) == 0 {
		t.Fatal("setting a protected value without force must fail")
	}
	mustRun(t, doc, `(set-property "mapversion" "220" :force)`)
	p, _ := doc.Scene().Properties(doc.Scene().World())
	if v, _ := p.Get("mapversion"); v != "220" {
		t.Errorf("mapversion = %q", v)
	}
}

func TestLayerBuiltins(t *testing.T) {
	doc := newTestDocument(t)
	mustRun(t, doc, `
(def b (cuboid (vec3 0 0 0) (vec3 16 16 16)))
(def detail (add-layer "detail"))
(select b)
(move-to-layer detail)
(rename-layer detail "trim")
(set-layer-visible (layer "trim") false)
`)
	s := doc.Scene()
	h, err := findLayer(s, "trim")
	if err != nil {
		t.Fatal(err)
	}
	ld, _ := s.LayerData(h)
	if ld.Visible {
		t.Error("layer should be hidden")
	}
	if len(s.Children(h)) != 1 {
		t.Errorf("trim layer children = %d, want 1", len(s.Children(h)))
	}
	if len(doc.SelectedNodes()) != 0 {
		t.Error("hiding the layer should deselect its contents")
	}
}

func TestDeleteSelectedAndRedo(t *testing.T) {
	doc := newTestDocument(t)
	mustRun(t, doc, `
(select (cuboid (vec3 0 0 0) (vec3 16 16 16)) (cuboid (vec3 32 0 0) (vec3 48 16 16)))
(delete-selected)
`)
	if got := countKind(doc, scene.KindBrush); got != 0 {
		t.Fatalf("brushes after delete = %d", got)
	}
	mustRun(t, doc, `(undo)`)
	if got := countKind(doc, scene.KindBrush); got != 2 {
		t.Errorf("brushes after undo = %d, want 2", got)
	}
	mustRun(t, doc, `(redo)`)
	if got := countKind(doc, scene.KindBrush); got != 0 {
		t.Errorf("brushes after redo = %d, want 0", got)
	}
}

func TestTransactionBuiltins(t *testing.T) {
	doc := newTestDocument(t)
	mustRun(t, doc, `
(begin-transaction "Build Pillars")
(cuboid (vec3 0 0 0) (vec3 16 16 128))
(cuboid (vec3 64 0 0) (vec3 80 16 128))
(commit)
`)
	h := doc.Stack().History()
	if len(h) != 1 || h[0].Name != "Build Pillars" {
		t.Fatalf("history = %+v", h)
	}
	mustRun(t, doc, `(undo)`)
	if got := countKind(doc, scene.KindBrush); got != 0 {
		t.Errorf("brushes after undoing the transaction = %d", got)
	}
}

func TestUnterminatedTransactionRollsBack(t *testing.T) {
	doc := newTestDocument(t)
	res := run(t, doc, `
(begin-transaction "Half Done")
(add-layer "temp")
`)
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0].Message, "rolled back") {
		t.Fatalf("errors = %v", res.Errors)
	}
	if got := countKind(doc, scene.KindLayer); got != 1 {
		t.Errorf("layers = %d, want 1", got)
	}
	if doc.Stack().InTransaction() {
		t.Error("transaction still open")
	}
}

func TestFailedCommandStopsScript(t *testing.T) {
	doc := newTestDocument(t)
	res := run(t, doc, `
(cuboid (vec3 0 0 0) (vec3 16 16 16))
(translate (vec3 8 0 0))
(cuboid (vec3 32 0 0) (vec3 48 16 16))
`)
	if len(res.Errors) == 0 {
		t.Fatal("translate with nothing selected must fail")
	}
	if got := countKind(doc, scene.KindBrush); got != 1 {
		t.Errorf("brushes = %d, want 1", got)
	}
}

func TestEcho(t *testing.T) {
	doc := newTestDocument(t)
	var buf bytes.Buffer
	mustRun(t, doc, `(echo "count:" (selected-count))`, WithOutput(&buf))
	if got := buf.String(); got != "count: 0\n" {
		t.Errorf("echo wrote %q", got)
	}
}
