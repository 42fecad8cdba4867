package brush

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/chazu/mortar/pkg/geom"
	"github.com/chazu/mortar/pkg/tag"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

var testWorld = geom.CubeBox(1000)

func box(x0, y0, z0, x1, y1, z1 float64) sdf.Box3 {
	return sdf.Box3{Min: v3.Vec{X: x0, Y: y0, Z: z0}, Max: v3.Vec{X: x1, Y: y1, Z: z1}}
}

func testCube(t *testing.T) *Brush {
	t.Helper()
	b, err := Cuboid(testWorld, box(0, 0, 0, 10, 10, 10), DefaultAttributes("stone"))
	if err != nil {
		t.Fatalf("Cuboid: %v", err)
	}
	return b
}

// ---------------------------------------------------------------------------
// Rebuild
// ---------------------------------------------------------------------------

func TestCuboidGeometry(t *testing.T) {
	b := testCube(t)

	if !b.Valid() || !b.Closed() {
		t.Fatalf("cube must be valid, reason: %s", b.InvalidReason())
	}
	if got := b.VertexCount(); got != 8 {
		t.Errorf("VertexCount = %d, want 8", got)
	}
	if got := b.EdgeCount(); got != 12 {
		t.Errorf("EdgeCount = %d, want 12", got)
	}
	if got := b.FaceCount(); got != 6 {
		t.Errorf("FaceCount = %d, want 6", got)
	}
	for _, c := range []v3.Vec{{}, {X: 10}, {X: 10, Y: 10}, {X: 10, Y: 10, Z: 10}} {
		if !b.HasVertex(c, 0) {
			t.Errorf("missing vertex %v", c)
		}
	}
	if b.HasVertex(v3.Vec{X: 5}, 0) {
		t.Error("unexpected vertex at edge midpoint")
	}
	if !b.HasEdge(v3.Vec{X: 10}, v3.Vec{}, 0) {
		t.Error("missing edge along X")
	}
	if b.HasEdge(v3.Vec{}, v3.Vec{X: 10, Y: 10}, 0) {
		t.Error("face diagonal is not an edge")
	}
	top := []v3.Vec{{Z: 10}, {X: 10, Z: 10}, {X: 10, Y: 10, Z: 10}, {Y: 10, Z: 10}}
	if !b.HasFace(top, 0) {
		t.Error("missing top face loop")
	}
	bb := b.Bounds()
	if bb.Min != (v3.Vec{}) || bb.Max != (v3.Vec{X: 10, Y: 10, Z: 10}) {
		t.Errorf("Bounds = %v, want 0..10", bb)
	}
}

func TestFaceLoopsWindOutward(t *testing.T) {
	b := testCube(t)
	for i := 0; i < b.FaceCount(); i++ {
		loop := b.FacePolygon(i)
		if len(loop) != 4 {
			t.Fatalf("face %d loop has %d vertices, want 4", i, len(loop))
		}
		n := loop[1].Sub(loop[0]).Cross(loop[2].Sub(loop[0])).Normalize()
		f, _ := b.Face(i)
		if !n.Equals(f.Plane.Normal, 1e-9) {
			t.Errorf("face %d winds %v, want CCW about %v", i, n, f.Plane.Normal)
		}
	}
}

func TestRebuildDeterministic(t *testing.T) {
	faces := CuboidFaces(box(-4, 2, 0, 12, 30, 7), DefaultAttributes("a"))
	a := New(testWorld, faces)
	b := New(testWorld, faces)
	if !a.Valid() {
		t.Fatalf("brush invalid: %s", a.InvalidReason())
	}
	if !reflect.DeepEqual(a.Geometry(), b.Geometry()) {
		t.Error("rebuild from the same faces produced different geometry")
	}

	a.SetFaces(a.Faces())
	if !reflect.DeepEqual(a.Geometry(), b.Geometry()) {
		t.Error("rebuild is not idempotent")
	}
}

func TestWedgeGeometry(t *testing.T) {
	cube := CuboidFaces(box(0, 0, 0, 10, 10, 10), DefaultAttributes("a"))
	// Drop +X and +Z and close the prism with x+z <= 10.
	slant, err := NewFace(v3.Vec{X: 10}, v3.Vec{X: 10, Y: 1}, v3.Vec{Z: 10}, DefaultAttributes("a"))
	if err != nil {
		t.Fatalf("NewFace: %v", err)
	}
	b := New(testWorld, []Face{cube[0], cube[2], cube[3], cube[4], slant})
	if !b.Valid() {
		t.Fatalf("wedge invalid: %s", b.InvalidReason())
	}
	if b.VertexCount() != 6 || b.EdgeCount() != 9 {
		t.Errorf("wedge V=%d E=%d, want 6 and 9", b.VertexCount(), b.EdgeCount())
	}
}

// ---------------------------------------------------------------------------
// Invalid brushes
// ---------------------------------------------------------------------------

func assertEmptyQueries(t *testing.T, b *Brush) {
	t.Helper()
	if b.Valid() || b.Closed() {
		t.Fatal("brush must be invalid")
	}
	if b.VertexCount() != 0 || b.EdgeCount() != 0 {
		t.Errorf("counts = %d/%d, want 0/0", b.VertexCount(), b.EdgeCount())
	}
	if b.Vertices() != nil || b.Edges() != nil || b.Geometry() != nil {
		t.Error("lists must be nil")
	}
	if b.HasVertex(v3.Vec{}, 1) || b.HasEdge(v3.Vec{}, v3.Vec{X: 10}, 1) || b.HasFace(nil, 1) {
		t.Error("Has* must be false")
	}
	if b.ContainsPoint(v3.Vec{X: 5, Y: 5, Z: 5}) {
		t.Error("ContainsPoint must be false")
	}
	if !geom.IsEmptyBox(b.Bounds()) {
		t.Error("Bounds must be empty")
	}
	if _, _, ok := b.PickFace(geom.Ray{Origin: v3.Vec{X: -50, Y: 5, Z: 5}, Direction: v3.Vec{X: 1}}); ok {
		t.Error("PickFace must miss")
	}
	if b.CanTransform(sdf.Translate3d(v3.Vec{X: 1})) {
		t.Error("CanTransform must be false")
	}
}

func TestTooFewFaces(t *testing.T) {
	faces := CuboidFaces(box(0, 0, 0, 10, 10, 10), DefaultAttributes("a"))
	b := New(testWorld, faces[:3])
	assertEmptyQueries(t, b)
	if b.InvalidReason() != ReasonTooFewFaces {
		t.Errorf("reason = %s", b.InvalidReason())
	}
}

func TestOpenVolume(t *testing.T) {
	faces := CuboidFaces(box(0, 0, 0, 10, 10, 10), DefaultAttributes("a"))
	b := New(testWorld, faces[:5])
	assertEmptyQueries(t, b)
	if b.InvalidReason() != ReasonOpen {
		t.Errorf("reason = %s, want open volume", b.InvalidReason())
	}
}

func TestRedundantFace(t *testing.T) {
	faces := CuboidFaces(box(0, 0, 0, 10, 10, 10), DefaultAttributes("a"))
	extra, _ := NewFace(v3.Vec{Z: 20}, v3.Vec{X: 1, Z: 20}, v3.Vec{Y: 1, Z: 20}, DefaultAttributes("a"))
	b := New(testWorld, append(faces, extra))
	assertEmptyQueries(t, b)
	if b.InvalidReason() != ReasonRedundantFace {
		t.Errorf("reason = %s", b.InvalidReason())
	}
}

func TestContradictoryFaces(t *testing.T) {
	faces := CuboidFaces(box(0, 0, 0, 10, 10, 10), DefaultAttributes("a"))
	// Move the top face down onto the bottom face.
	flat, _ := NewFace(v3.Vec{}, v3.Vec{X: 1}, v3.Vec{Y: 1}, DefaultAttributes("a"))
	faces[5] = flat
	assertEmptyQueries(t, New(testWorld, faces))
}

func TestDegenerateFace(t *testing.T) {
	_, err := NewFace(v3.Vec{}, v3.Vec{X: 1}, v3.Vec{X: 2}, DefaultAttributes("a"))
	if !errors.Is(err, ErrDegenerateFace) {
		t.Fatalf("err = %v, want ErrDegenerateFace", err)
	}
}

// ---------------------------------------------------------------------------
// Mutation
// ---------------------------------------------------------------------------

func TestMutationRebuildsBeforeQuery(t *testing.T) {
	b := testCube(t)
	removed, _ := b.Face(5)

	if err := b.RemoveFace(5); err != nil {
		t.Fatalf("RemoveFace: %v", err)
	}
	if b.Valid() || b.VertexCount() != 0 {
		t.Fatal("brush with a removed face must be invalid immediately")
	}

	b.AddFace(removed)
	if !b.Valid() || b.VertexCount() != 8 {
		t.Fatalf("re-adding the face must restore the cube, reason: %s", b.InvalidReason())
	}

	lower, _ := NewFace(v3.Vec{Z: 4}, v3.Vec{X: 1, Z: 4}, v3.Vec{Y: 1, Z: 4}, DefaultAttributes("a"))
	if err := b.ReplaceFace(5, lower); err != nil {
		t.Fatalf("ReplaceFace: %v", err)
	}
	if got := b.Bounds().Max.Z; got != 4 {
		t.Errorf("Max.Z after replace = %v, want 4", got)
	}

	if err := b.RemoveFace(17); !errors.Is(err, ErrFaceIndex) {
		t.Errorf("RemoveFace(17) = %v, want ErrFaceIndex", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	b := testCube(t)
	c := b.Clone()
	if err := c.RemoveFace(0); err != nil {
		t.Fatal(err)
	}
	if !b.Valid() || b.FaceCount() != 6 {
		t.Fatal("mutating the clone changed the original")
	}
}

// ---------------------------------------------------------------------------
// Transform
// ---------------------------------------------------------------------------

func TestTransformTranslate(t *testing.T) {
	b := testCube(t)
	if err := b.Transform(sdf.Translate3d(v3.Vec{X: 16})); err != nil {
		t.Fatalf("Transform: %v", err)
	}
	bb := b.Bounds()
	if math.Abs(bb.Min.X-16) > 1e-9 || math.Abs(bb.Max.X-26) > 1e-9 {
		t.Errorf("bounds after translate = %v", bb)
	}
}

func TestTransformMirrorKeepsOutwardNormals(t *testing.T) {
	b := testCube(t)
	if err := b.Transform(sdf.Scale3d(v3.Vec{X: -1, Y: 1, Z: 1})); err != nil {
		t.Fatalf("mirror: %v", err)
	}
	if !b.Valid() {
		t.Fatal("mirrored brush must stay valid")
	}
	if got := b.Bounds().Min.X; math.Abs(got+10) > 1e-9 {
		t.Errorf("Min.X = %v, want -10", got)
	}
}

func TestTransformRotate(t *testing.T) {
	b := testCube(t)
	if err := b.Transform(sdf.RotateZ(math.Pi / 2)); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if b.VertexCount() != 8 {
		t.Errorf("rotated cube has %d vertices", b.VertexCount())
	}
	if !b.HasVertex(v3.Vec{X: -10, Y: 10}, 1e-6) {
		t.Error("expected rotated corner at (-10,10,0)")
	}
}

func TestTransformOutOfWorldRejected(t *testing.T) {
	b := testCube(t)
	before := b.Geometry()
	m := sdf.Translate3d(v3.Vec{X: 995})
	if b.CanTransform(m) {
		t.Fatal("CanTransform must reject leaving the world")
	}
	if err := b.Transform(m); !errors.Is(err, ErrCannotTransform) {
		t.Fatalf("err = %v, want ErrCannotTransform", err)
	}
	if !reflect.DeepEqual(before, b.Geometry()) {
		t.Error("rejected transform changed the brush")
	}
}

func TestTransformDegenerateRejected(t *testing.T) {
	b := testCube(t)
	if b.CanTransform(sdf.Scale3d(v3.Vec{X: 1, Y: 1, Z: 0})) {
		t.Fatal("flattening transform must be rejected")
	}
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

func TestContainsPoint(t *testing.T) {
	b := testCube(t)
	if !b.ContainsPoint(v3.Vec{X: 5, Y: 5, Z: 5}) {
		t.Error("center must be contained")
	}
	if !b.ContainsPoint(v3.Vec{X: 10, Y: 5, Z: 5}) {
		t.Error("face point must be contained")
	}
	if b.ContainsPoint(v3.Vec{X: 11, Y: 5, Z: 5}) {
		t.Error("outside point must not be contained")
	}
}

func TestPickFace(t *testing.T) {
	b := testCube(t)
	face, dist, ok := b.PickFace(geom.Ray{Origin: v3.Vec{X: -100, Y: 5, Z: 5}, Direction: v3.Vec{X: 1}})
	if !ok {
		t.Fatal("expected hit")
	}
	if face != 0 || math.Abs(dist-100) > 1e-9 {
		t.Errorf("hit face %d at %v, want face 0 at 100", face, dist)
	}
	if _, _, ok := b.PickFace(geom.Ray{Origin: v3.Vec{X: 5, Y: 5, Z: 5}, Direction: v3.Vec{X: 1}}); ok {
		t.Error("ray from inside must miss")
	}
	if _, _, ok := b.PickFace(geom.Ray{Origin: v3.Vec{X: -100, Y: 50, Z: 5}, Direction: v3.Vec{X: 1}}); ok {
		t.Error("ray beside the brush must miss")
	}
}

func TestClosestVertexAndIncidentFaces(t *testing.T) {
	b := testCube(t)
	v, ok := b.FindClosestVertex(v3.Vec{X: 9, Y: 9, Z: 9}, 5)
	if !ok || v != (v3.Vec{X: 10, Y: 10, Z: 10}) {
		t.Errorf("closest = %v %v", v, ok)
	}
	if _, ok := b.FindClosestVertex(v3.Vec{X: 5, Y: 5, Z: 5}, 1); ok {
		t.Error("no vertex within 1 of the center")
	}
	if got := b.IncidentFaces(v3.Vec{}, 0); len(got) != 3 {
		t.Errorf("corner has %d incident faces, want 3", len(got))
	}
}

func TestIntersectsAndContains(t *testing.T) {
	a := testCube(t)
	inner, _ := Cuboid(testWorld, box(2, 2, 2, 4, 4, 4), DefaultAttributes("a"))
	far, _ := Cuboid(testWorld, box(20, 20, 20, 30, 30, 30), DefaultAttributes("a"))

	if !a.Intersects(inner) || !a.Contains(inner) {
		t.Error("inner must intersect and be contained")
	}
	if inner.Contains(a) {
		t.Error("inner does not contain the cube")
	}
	if a.Intersects(far) {
		t.Error("far cube must not intersect")
	}
}

func TestCloneFaceAttributes(t *testing.T) {
	a := testCube(t)
	src, _ := Cuboid(testWorld, box(0, 0, 0, 10, 10, 20), DefaultAttributes("wood"))
	a.CloneFaceAttributesFrom(src)
	for i := 0; i < a.FaceCount(); i++ {
		f, _ := a.Face(i)
		want := "wood"
		if i == 5 {
			want = "stone" // top planes differ
		}
		if f.Attributes.Texture != want {
			t.Errorf("face %d texture = %q, want %q", i, f.Attributes.Texture, want)
		}
	}

	outer, _ := Cuboid(testWorld, box(10, 0, 0, 20, 10, 10), DefaultAttributes("brick"))
	a.CloneInvertedFaceAttributesFrom(outer)
	f, _ := a.Face(1)
	if f.Attributes.Texture != "brick" {
		t.Errorf("+X face texture = %q, want brick from the touching -X face", f.Attributes.Texture)
	}
}

func TestFaceTags(t *testing.T) {
	b := testCube(t)
	if b.AnyFaceHasAnyTag() {
		t.Fatal("fresh brush has no tags")
	}
	b.SetFaceTags(func(f Face) tag.Mask {
		if f.Plane.Normal.Z > 0.5 {
			return 2
		}
		return 1
	})
	if !b.AllFacesHaveAnyTagInMask(3) {
		t.Error("all faces carry a tag in 3")
	}
	if b.AllFacesHaveAnyTagInMask(2) {
		t.Error("only the top carries tag 2")
	}
	if !b.AnyFaceHasAnyTagInMask(2) {
		t.Error("top face carries tag 2")
	}
	if b.FaceTagMask() != 3 {
		t.Errorf("FaceTagMask = %d, want 3", b.FaceTagMask())
	}
}
