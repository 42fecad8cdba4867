package document

import (
	"errors"
	"runtime"
	"testing"

	"github.com/chazu/mortar/pkg/brush"
	"github.com/chazu/mortar/pkg/geom"
	"github.com/chazu/mortar/pkg/scene"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func newTestDocument(t *testing.T) *Document {
	t.Helper()
	d, err := New(Options{WorldBounds: geom.CubeBox(1024)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func addBrush(t *testing.T, d *Document, parent scene.Handle) scene.Handle {
	t.Helper()
	b, err := brush.Cuboid(d.WorldBounds(), sdf.Box3{Max: v3.Vec{X: 8, Y: 8, Z: 8}}, brush.DefaultAttributes("a"))
	if err != nil {
		t.Fatal(err)
	}
	h := d.Scene().NewBrush(b)
	if err := d.Scene().AddChild(parent, h); err != nil {
		t.Fatal(err)
	}
	return h
}

func addEntity(t *testing.T, d *Document, classname string) scene.Handle {
	t.Helper()
	h := d.Scene().NewEntity(map[string]string{"classname": classname})
	if err := d.Scene().AddChild(d.Scene().DefaultLayer(), h); err != nil {
		t.Fatal(err)
	}
	return h
}

func TestNewDocument(t *testing.T) {
	d := newTestDocument(t)
	if d.ID().String() == "" {
		t.Error("document needs an id")
	}
	if d.Config().Name != "generic" {
		t.Errorf("config = %q, want generic", d.Config().Name)
	}
	if d.Definitions().Lookup("light") == nil {
		t.Error("default definitions must be loaded")
	}
	if d.Policy().KeyMutable("classname") {
		t.Error("classname key must be protected by default")
	}
}

func TestRefExpiresOnClose(t *testing.T) {
	d := newTestDocument(t)
	ref := d.Ref()
	if got, err := ref.Lock(); err != nil || got != d {
		t.Fatalf("Lock = %v, %v", got, err)
	}
	d.Close()
	if _, err := ref.Lock(); !errors.Is(err, ErrExpired) {
		t.Errorf("Lock after Close = %v, want ErrExpired", err)
	}
	if err := d.Submit(nil); !errors.Is(err, ErrExpired) {
		t.Errorf("Submit after Close = %v, want ErrExpired", err)
	}
}

func TestRefExpiresWhenCollected(t *testing.T) {
	ref := func() Ref {
		return newTestDocument(t).Ref()
	}()
	runtime.GC()
	runtime.GC()
	if _, err := ref.Lock(); !errors.Is(err, ErrExpired) {
		t.Errorf("Lock after collection = %v, want ErrExpired", err)
	}
}

func TestNotifierOrderAndUnsubscribe(t *testing.T) {
	var n Notifier[int]
	var got []string
	unsubA := n.Subscribe(func(v int) { got = append(got, "a") })
	n.Subscribe(func(v int) { got = append(got, "b") })
	n.Notify(1)
	unsubA()
	unsubA()
	n.Notify(2)
	want := []string{"a", "b", "b"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if n.Len() != 1 {
		t.Errorf("Len = %d, want 1", n.Len())
	}
}

func TestSelection(t *testing.T) {
	d := newTestDocument(t)
	s := d.Scene()
	var events int
	d.SelectionDidChange.Subscribe(func([]scene.Handle) { events++ })

	if err := d.Select(s.World()); !errors.Is(err, ErrSelected) {
		t.Errorf("Select(world) = %v", err)
	}
	detached := s.NewGroup("g")
	if err := d.Select(detached); !errors.Is(err, ErrSelected) {
		t.Errorf("Select(detached) = %v", err)
	}

	e := addEntity(t, d, "func_door")
	b := addBrush(t, d, s.DefaultLayer())
	if err := d.Select(e, b, e); err != nil {
		t.Fatal(err)
	}
	if got := d.SelectedNodes(); len(got) != 2 {
		t.Errorf("selection = %v", got)
	}
	d.Deselect(e)
	d.ClearSelection()
	d.ClearSelection()
	if events != 3 {
		t.Errorf("selection events = %d, want 3", events)
	}
}

func TestAllSelectedEntities(t *testing.T) {
	d := newTestDocument(t)
	s := d.Scene()
	door := addEntity(t, d, "func_door")
	doorBrush := addBrush(t, d, door)
	worldBrush := addBrush(t, d, s.DefaultLayer())
	light := addEntity(t, d, "light")

	if d.HasSelectedEntities() {
		t.Error("nothing is selected yet")
	}
	_ = d.Select(doorBrush, worldBrush, door, light)
	got := d.AllSelectedEntities()
	want := []scene.Handle{door, s.World(), light}
	if len(got) != len(want) {
		t.Fatalf("AllSelectedEntities = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("AllSelectedEntities = %v, want %v", got, want)
		}
	}
}

func TestUpdateDefinitions(t *testing.T) {
	d := newTestDocument(t)
	e := addEntity(t, d, "light")
	var notified []scene.Handle
	d.DefinitionsDidChange.Subscribe(func(hs []scene.Handle) { notified = hs })

	props, _ := d.Scene().Properties(e)
	props.Set("classname", "info_player_start")
	d.UpdateDefinitions(nil)
	if len(notified) != 1 || notified[0] != e {
		t.Errorf("notified = %v", notified)
	}
	if def := d.Scene().Definition(e); def == nil || def.Classname != "info_player_start" {
		t.Errorf("definition = %+v", def)
	}
}

func TestDidChangeTouchesNodes(t *testing.T) {
	d := newTestDocument(t)
	b := addBrush(t, d, d.Scene().DefaultLayer())
	var will, did int
	d.NodesWillChange.Subscribe(func([]scene.Handle) { will++ })
	d.NodesDidChange.Subscribe(func([]scene.Handle) { did++ })

	br, _ := d.Scene().Brush(b)
	d.WillChange([]scene.Handle{b})
	br.SetFaces(brush.CuboidFaces(sdf.Box3{Max: v3.Vec{X: 2, Y: 2, Z: 2}}, brush.DefaultAttributes("a")))
	d.DidChange([]scene.Handle{b})
	if will != 1 || did != 1 {
		t.Errorf("will=%d did=%d", will, did)
	}
	if got := d.Scene().Bounds(d.Scene().DefaultLayer()).Max.X; got != 2 {
		t.Errorf("layer bounds not refreshed: Max.X = %v", got)
	}
}
