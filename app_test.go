package main

import (
	"os"
	"strings"
	"testing"

	"github.com/chazu/mortar/pkg/config"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	app, err := NewApp(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(app.Close)
	return app
}

// TestE2ERoomExample exercises the full pipeline: script → engine →
// commands → document → tessellate → meshes.
func TestE2ERoomExample(t *testing.T) {
	app := newTestApp(t)

	source, err := os.ReadFile("examples/room.mortar")
	if err != nil {
		t.Fatalf("failed to read room.mortar: %v", err)
	}

	result := app.Evaluate(string(source))

	// No errors expected.
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error (line %d): %s", e.Line, e.Message)
		}
		t.FailNow()
	}

	// Floor, four walls and the door.
	if len(result.Meshes) != 6 {
		t.Fatalf("expected 6 meshes, got %d", len(result.Meshes))
	}
	names := map[string]int{}
	for _, m := range result.Meshes {
		names[m.Name]++
		if len(m.Vertices) == 0 || len(m.Normals) == 0 || len(m.Indices) == 0 {
			t.Errorf("mesh %q: empty geometry", m.Name)
		}
		if m.Color == "" {
			t.Errorf("mesh %q: no color", m.Name)
		}
	}
	if names["worldspawn"] != 5 || names["func_door"] != 1 {
		t.Errorf("mesh owners = %v", names)
	}

	// add-layer, the room transaction, two entities, the door, its brush and
	// the message.
	if len(result.History) != 7 {
		t.Errorf("history = %+v", result.History)
	}
	if result.History[1].Name != "Build Room" {
		t.Errorf("history[1] = %q, want Build Room", result.History[1].Name)
	}

	if len(result.Output) != 1 || !strings.HasPrefix(result.Output[0], "room built with") {
		t.Errorf("output = %q", result.Output)
	}
}

func TestE2EEmptySource(t *testing.T) {
	result := newTestApp(t).Evaluate("")

	if len(result.Errors) != 0 {
		t.Errorf("expected 0 errors, got %d", len(result.Errors))
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes, got %d", len(result.Meshes))
	}
	// Ensure slices are non-nil (JSON should serialize as [] not null).
	if result.Meshes == nil || result.Errors == nil || result.Output == nil || result.History == nil {
		t.Error("result slices should be non-nil")
	}
}

func TestE2ESyntaxError(t *testing.T) {
	result := newTestApp(t).Evaluate("(+ 1 2)\n(cuboid (vec3 0 0 0)")

	if len(result.Errors) == 0 {
		t.Fatal("expected eval error for unmatched parens")
	}
	if result.Errors[0].Message == "" {
		t.Error("syntax error should have a non-empty message")
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes, got %d", len(result.Meshes))
	}
}
