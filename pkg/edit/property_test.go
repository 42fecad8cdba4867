package edit

import (
	"errors"
	"testing"

	"github.com/chazu/mortar/pkg/brush"
	"github.com/chazu/mortar/pkg/document"
	"github.com/chazu/mortar/pkg/geom"
	"github.com/chazu/mortar/pkg/scene"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newDoc(t *testing.T) *document.Document {
	t.Helper()
	d, err := document.New(document.Options{WorldBounds: geom.CubeBox(1024)})
	if err != nil {
		t.Fatalf("document.New: %v", err)
	}
	return d
}

func addEntity(t *testing.T, d *document.Document, props map[string]string) scene.Handle {
	t.Helper()
	h := d.Scene().NewEntity(props)
	if err := d.Scene().AddChild(d.Scene().DefaultLayer(), h); err != nil {
		t.Fatal(err)
	}
	return h
}

func newCube(t *testing.T, d *document.Document, x float64) *brush.Brush {
	t.Helper()
	b, err := brush.Cuboid(d.WorldBounds(), sdf.Box3{
		Min: v3.Vec{X: x},
		Max: v3.Vec{X: x + 8, Y: 8, Z: 8},
	}, brush.DefaultAttributes("stone"))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func addCube(t *testing.T, d *document.Document, parent scene.Handle, x float64) scene.Handle {
	t.Helper()
	h := d.Scene().NewBrush(newCube(t, d, x))
	if err := d.Scene().AddChild(parent, h); err != nil {
		t.Fatal(err)
	}
	return h
}

func props(t *testing.T, d *document.Document, h scene.Handle) map[string]string {
	t.Helper()
	p, err := d.Scene().Properties(h)
	if err != nil {
		t.Fatal(err)
	}
	return p.Map()
}

func get(t *testing.T, d *document.Document, h scene.Handle, key string) (string, bool) {
	t.Helper()
	p, err := d.Scene().Properties(h)
	if err != nil {
		t.Fatal(err)
	}
	return p.Get(key)
}

// ---------------------------------------------------------------------------
// Set / Remove / Rename
// ---------------------------------------------------------------------------

func TestSetMissingKeyUndoRemovesIt(t *testing.T) {
	d := newDoc(t)
	e := addEntity(t, d, map[string]string{"classname": "func_door"})
	if err := d.Submit(SetProperty(d.Ref(), []scene.Handle{e}, "speed", "100", false)); err != nil {
		t.Fatal(err)
	}
	if v, ok := get(t, d, e, "speed"); !ok || v != "100" {
		t.Fatalf("speed = %q %v", v, ok)
	}
	if err := d.Undo(); err != nil {
		t.Fatal(err)
	}
	if _, ok := get(t, d, e, "speed"); ok {
		t.Error("undo must remove a key the set created")
	}
}

func TestSetDuplicateTargetsUndoToOriginal(t *testing.T) {
	d := newDoc(t)
	e := addEntity(t, d, map[string]string{"classname": "func_door"})
	cmd := SetProperty(d.Ref(), []scene.Handle{e, e}, "speed", "100", false)
	if err := d.Submit(cmd); err != nil {
		t.Fatal(err)
	}
	if len(cmd.Entities()) != 2 {
		t.Errorf("duplicates must be kept, got %v", cmd.Entities())
	}
	_ = d.Undo()
	if _, ok := get(t, d, e, "speed"); ok {
		t.Error("undo must restore the state before the first occurrence")
	}
}

func TestSetPartialApplication(t *testing.T) {
	d := newDoc(t)
	a := addEntity(t, d, map[string]string{"classname": "func_door", "speed": "50"})
	b := addEntity(t, d, map[string]string{"classname": "func_door"})
	if err := d.Submit(SetProperty(d.Ref(), []scene.Handle{a, b}, "speed", "100", false)); err != nil {
		t.Fatal(err)
	}
	_ = d.Undo()
	if v, _ := get(t, d, a, "speed"); v != "50" {
		t.Errorf("a speed = %q, want 50", v)
	}
	if _, ok := get(t, d, b, "speed"); ok {
		t.Error("b must lose the key again")
	}
}

func TestRemoveMissingKeyIsNoOp(t *testing.T) {
	d := newDoc(t)
	e := addEntity(t, d, map[string]string{"classname": "func_door"})
	before := props(t, d, e)
	if err := d.Submit(RemoveProperty(d.Ref(), []scene.Handle{e}, "speed", false)); err != nil {
		t.Fatal(err)
	}
	if got := props(t, d, e); len(got) != len(before) {
		t.Errorf("props = %v, want %v", got, before)
	}
	if err := d.Undo(); err != nil {
		t.Fatal(err)
	}
	if got := props(t, d, e); len(got) != len(before) || got["classname"] != "func_door" {
		t.Errorf("props after undo = %v", got)
	}
}

func TestRemoveAndUndo(t *testing.T) {
	d := newDoc(t)
	e := addEntity(t, d, map[string]string{"classname": "func_door", "speed": "50"})
	_ = d.Submit(RemoveProperty(d.Ref(), []scene.Handle{e}, "speed", false))
	if _, ok := get(t, d, e, "speed"); ok {
		t.Fatal("speed must be removed")
	}
	_ = d.Undo()
	if v, _ := get(t, d, e, "speed"); v != "50" {
		t.Errorf("speed after undo = %q", v)
	}
}

func TestRenameAndUndo(t *testing.T) {
	d := newDoc(t)
	a := addEntity(t, d, map[string]string{"classname": "func_door", "targetname": "door1"})
	b := addEntity(t, d, map[string]string{"classname": "func_door"})
	if err := d.Submit(RenameProperty(d.Ref(), []scene.Handle{a, b}, "targetname", "name", false)); err != nil {
		t.Fatal(err)
	}
	if v, _ := get(t, d, a, "name"); v != "door1" {
		t.Errorf("renamed value = %q", v)
	}
	if _, ok := get(t, d, b, "name"); ok {
		t.Error("entities lacking the old key are untouched")
	}
	_ = d.Undo()
	if v, _ := get(t, d, a, "targetname"); v != "door1" {
		t.Errorf("targetname after undo = %q", v)
	}
	if _, ok := get(t, d, a, "name"); ok {
		t.Error("new key must be gone after undo")
	}
}

func TestRenameCollisionIsAllOrNothing(t *testing.T) {
	d := newDoc(t)
	a := addEntity(t, d, map[string]string{"classname": "func_door", "targetname": "door1"})
	b := addEntity(t, d, map[string]string{"classname": "func_door", "targetname": "door2", "name": "taken"})
	err := d.Submit(RenameProperty(d.Ref(), []scene.Handle{a, b}, "targetname", "name", false))
	if !errors.Is(err, ErrKeyCollision) {
		t.Fatalf("Submit = %v, want ErrKeyCollision", err)
	}
	if v, _ := get(t, d, a, "targetname"); v != "door1" {
		t.Error("a must be untouched")
	}
	if d.Stack().CanUndo() {
		t.Error("a failed command leaves no history")
	}
	if err := d.Submit(RenameProperty(d.Ref(), []scene.Handle{a}, "targetname", "targetname", false)); !errors.Is(err, ErrKeyCollision) {
		t.Errorf("rename to itself = %v", err)
	}
}

func TestProtectedKeysNeedForce(t *testing.T) {
	d := newDoc(t)
	world := d.Scene().World()
	p, _ := d.Scene().Properties(world)
	p.Set("mapversion", "220")
	before := props(t, d, world)
	ref := d.Ref()
	targets := []scene.Handle{world}

	for name, cmd := range map[string]*PropertyCommand{
		"set":    SetProperty(ref, targets, "mapversion", "221", false),
		"remove": RemoveProperty(ref, targets, "mapversion", false),
		"rename": RenameProperty(ref, targets, "mapversion", "version", false),
		"create": SetProperty(ref, targets, "classname", "x", false),
	} {
		if name == "create" {
			p.Remove("classname")
		}
		if err := d.Submit(cmd); !errors.Is(err, ErrPolicyViolation) {
			t.Errorf("%s: Submit = %v, want ErrPolicyViolation", name, err)
		}
		if name == "create" {
			p.Set("classname", "worldspawn")
		}
		if got := props(t, d, world); len(got) != len(before) || got["mapversion"] != "220" {
			t.Errorf("%s: store changed to %v", name, got)
		}
	}

	if err := d.Submit(SetProperty(ref, targets, "mapversion", "221", true)); err != nil {
		t.Fatalf("forced set: %v", err)
	}
	if v, _ := get(t, d, world, "mapversion"); v != "221" {
		t.Errorf("mapversion = %q", v)
	}
}

func TestSetClassnameValueIsAllowed(t *testing.T) {
	d := newDoc(t)
	e := addEntity(t, d, map[string]string{"classname": "light", "origin": "0 0 0"})
	var defs int
	d.DefinitionsDidChange.Subscribe(func([]scene.Handle) { defs++ })

	cmd := SetProperty(d.Ref(), []scene.Handle{e}, "classname", "info_player_start", false)
	if !cmd.DefinitionAffected() {
		t.Error("classname edits affect the definition")
	}
	if err := d.Submit(cmd); err != nil {
		t.Fatal(err)
	}
	if def := d.Scene().Definition(e); def == nil || def.Classname != "info_player_start" {
		t.Errorf("definition = %+v", def)
	}
	_ = d.Undo()
	if def := d.Scene().Definition(e); def == nil || def.Classname != "light" {
		t.Errorf("definition after undo = %+v", def)
	}
	if defs != 2 {
		t.Errorf("definition notifications = %d, want 2", defs)
	}
}

// ---------------------------------------------------------------------------
// Collation, notifications, repeat, expiry
// ---------------------------------------------------------------------------

func TestCollationRestoresValueBeforeFirstCommand(t *testing.T) {
	d := newDoc(t)
	e := addEntity(t, d, map[string]string{"classname": "func_door", "foo": "orig"})
	targets := []scene.Handle{e}
	_ = d.Submit(SetProperty(d.Ref(), targets, "foo", "a", false))
	_ = d.Submit(SetProperty(d.Ref(), targets, "foo", "b", false))
	if h := d.Stack().History(); len(h) != 1 {
		t.Fatalf("history = %+v, want one collated entry", h)
	}
	if v, _ := get(t, d, e, "foo"); v != "b" {
		t.Fatalf("foo = %q", v)
	}
	_ = d.Undo()
	if v, _ := get(t, d, e, "foo"); v != "orig" {
		t.Errorf("foo after undo = %q, want orig", v)
	}
	_ = d.Redo()
	if v, _ := get(t, d, e, "foo"); v != "b" {
		t.Errorf("foo after redo = %q, want b", v)
	}
}

func TestNoCollationAcrossDifferentKeysOrForce(t *testing.T) {
	d := newDoc(t)
	e := addEntity(t, d, map[string]string{"classname": "func_door"})
	targets := []scene.Handle{e}
	_ = d.Submit(SetProperty(d.Ref(), targets, "foo", "a", false))
	_ = d.Submit(SetProperty(d.Ref(), targets, "bar", "a", false))
	_ = d.Submit(SetProperty(d.Ref(), targets, "bar", "b", true))
	if h := d.Stack().History(); len(h) != 3 {
		t.Errorf("history = %+v, want 3 entries", h)
	}
}

func TestNotificationBracketsBatch(t *testing.T) {
	d := newDoc(t)
	var targets []scene.Handle
	for i := 0; i < 3; i++ {
		targets = append(targets, addEntity(t, d, map[string]string{"classname": "func_door"}))
	}
	var will, did, changes int
	var seen []scene.Handle
	d.NodesWillChange.Subscribe(func(hs []scene.Handle) { will++; seen = hs })
	d.NodesDidChange.Subscribe(func([]scene.Handle) {
		if will != did+1 {
			t.Error("did-change fired without a preceding will-change")
		}
		did++
	})
	d.PropertyDidChange.Subscribe(func(document.PropertyChange) { changes++ })

	if err := d.Submit(SetProperty(d.Ref(), targets, "speed", "1", false)); err != nil {
		t.Fatal(err)
	}
	if will != 1 || did != 1 {
		t.Errorf("will=%d did=%d, want 1 each", will, did)
	}
	if len(seen) != 3 {
		t.Errorf("will-change carried %v", seen)
	}
	if changes != 3 {
		t.Errorf("property changes = %d, want 3", changes)
	}
}

func TestRepeatRetargetsSelection(t *testing.T) {
	d := newDoc(t)
	a := addEntity(t, d, map[string]string{"classname": "func_door"})
	b := addEntity(t, d, map[string]string{"classname": "func_door"})
	cmd := SetProperty(d.Ref(), []scene.Handle{a}, "speed", "7", false)
	if cmd.IsRepeatable() {
		t.Error("not repeatable without a selection")
	}
	if _, err := cmd.Repeat(); err == nil {
		t.Error("Repeat without a selection must fail")
	}
	_ = d.Submit(cmd)
	_ = d.Select(b)
	if err := d.Repeat(); err != nil {
		t.Fatal(err)
	}
	if v, _ := get(t, d, b, "speed"); v != "7" {
		t.Errorf("b speed = %q", v)
	}
}

func TestExpiredDocument(t *testing.T) {
	d := newDoc(t)
	e := addEntity(t, d, map[string]string{"classname": "func_door"})
	cmd := SetProperty(d.Ref(), []scene.Handle{e}, "speed", "1", false)
	d.Close()
	if err := cmd.Do(); !errors.Is(err, document.ErrExpired) {
		t.Errorf("Do on closed document = %v, want ErrExpired", err)
	}
	if cmd.IsRepeatable() {
		t.Error("expired commands are not repeatable")
	}
}

func TestInvalidTargets(t *testing.T) {
	d := newDoc(t)
	b := addCube(t, d, d.Scene().DefaultLayer(), 0)
	if err := d.Submit(SetProperty(d.Ref(), []scene.Handle{b}, "x", "1", false)); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("brush target = %v", err)
	}
	if err := d.Submit(SetProperty(d.Ref(), nil, "x", "1", false)); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("empty target list = %v", err)
	}
}
