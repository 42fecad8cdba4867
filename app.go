package main

import (
	"log/slog"

	"github.com/chazu/mortar/pkg/config"
	"github.com/chazu/mortar/pkg/document"
	"github.com/chazu/mortar/pkg/engine"
	"github.com/chazu/mortar/pkg/scene"
	"github.com/chazu/mortar/pkg/tessellate"
)

// colorPalette is a default palette used to assign distinct colors to meshes.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App ties one document to the script engine. All methods must be called
// from the goroutine that created the App, which owns the document.
type App struct {
	doc    *document.Document
	engine *engine.Engine
	logger *slog.Logger
}

// MeshData is the JSON-serializable mesh format handed to a viewer.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable eval error.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// HistoryEntry is one undo history entry.
type HistoryEntry struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	Done bool   `json:"done"`
}

// EvalResult is the full result of one script.
type EvalResult struct {
	Value   string          `json:"value"`
	Output  []string        `json:"output"`
	Meshes  []MeshData      `json:"meshes"`
	Errors  []EvalErrorData `json:"errors"`
	Issues  []string        `json:"issues"`
	History []HistoryEntry  `json:"history"`
}

// NewApp creates a document and engine from cfg. A nil cfg selects the
// environment defaults.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		var err error
		if cfg, err = config.Load(); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	game, err := cfg.Game()
	if err != nil {
		return nil, err
	}
	doc, err := document.New(document.Options{
		WorldBounds:     cfg.WorldBounds(),
		Config:          game,
		CollationWindow: cfg.Window(),
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}
	return &App{
		doc: doc,
		engine: engine.NewEngine(
			engine.WithTimeout(cfg.EvalTimeout),
			engine.WithOutput(doc.Output()),
			engine.WithLogger(logger),
		),
		logger: logger,
	}, nil
}

// Document returns the edited document.
func (a *App) Document() *document.Document { return a.doc }

// Close closes the document.
func (a *App) Close() { a.doc.Close() }

// Evaluate runs a script against the document and reports its value,
// console output, meshes, errors, validation issues and the history.
func (a *App) Evaluate(source string) EvalResult {
	result := EvalResult{
		Output:  []string{},
		Meshes:  []MeshData{},
		Errors:  []EvalErrorData{},
		Issues:  []string{},
		History: []HistoryEntry{},
	}

	// Step 1: Run the script. Builtins edit the document through commands.
	res, err := a.engine.Evaluate(a.doc, source)
	if err != nil {
		// Fatal error (timeout, superseded, panic)
		a.logger.Error("evaluate", "error", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
	} else {
		result.Value = res.Value
		for _, e := range res.Errors {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
	}
	result.Output = append(result.Output, a.doc.Output().Drain()...)

	// Step 2: Tessellate whatever the document holds now; a failed script
	// leaves its completed commands in place.
	meshes, err := tessellate.Scene(a.doc.Scene())
	if err != nil {
		a.logger.Error("tessellate", "error", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: "tessellation failed: " + err.Error()})
	}
	for i, m := range meshes {
		result.Meshes = append(result.Meshes, MeshData{
			Vertices: m.Vertices,
			Normals:  m.Normals,
			Indices:  m.Indices,
			Name:     m.Name,
			Color:    colorPalette[i%len(colorPalette)],
		})
	}

	// Step 3: Validation and history.
	for _, issue := range scene.Validate(a.doc.Scene()) {
		result.Issues = append(result.Issues, issue.Error())
	}
	for _, e := range a.doc.Stack().History() {
		result.History = append(result.History, HistoryEntry{Name: e.Name, ID: e.ID, Done: e.Done})
	}
	return result
}
