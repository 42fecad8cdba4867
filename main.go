// Command mortar runs console scripts against a fresh map document and
// prints what they did.
//
// Usage:
//
//	mortar [script...]
//
// With no arguments the script is read from standard input. Configuration
// comes from MORTAR_* environment variables.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/chazu/mortar/pkg/config"
	"github.com/chazu/mortar/pkg/scene"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the scripts and returns the exit status.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "mortar: %v\n", err)
		return 2
	}
	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	app, err := NewApp(cfg, logger)
	if err != nil {
		logger.Error("startup", "error", err)
		return 1
	}
	defer app.Close()

	type script struct {
		name   string
		source []byte
	}
	var scripts []script
	if len(args) == 0 {
		src, err := io.ReadAll(stdin)
		if err != nil {
			logger.Error("read stdin", "error", err)
			return 1
		}
		scripts = append(scripts, script{name: "<stdin>", source: src})
	}
	for _, path := range args {
		src, err := os.ReadFile(path)
		if err != nil {
			logger.Error("read script", "path", path, "error", err)
			return 1
		}
		scripts = append(scripts, script{name: path, source: src})
	}

	status := 0
	var last EvalResult
	for _, s := range scripts {
		logger.Debug("evaluating", "script", s.name, "bytes", len(s.source))
		last = app.Evaluate(string(s.source))
		for _, line := range last.Output {
			fmt.Fprintln(stdout, line)
		}
		for _, e := range last.Errors {
			if e.Line > 0 {
				fmt.Fprintf(stderr, "%s:%d: %s\n", s.name, e.Line, e.Message)
			} else {
				fmt.Fprintf(stderr, "%s: %s\n", s.name, e.Message)
			}
			status = 1
		}
	}

	fmt.Fprintln(stdout, "history:")
	for _, h := range last.History {
		mark := " "
		if h.Done {
			mark = "*"
		}
		fmt.Fprintf(stdout, "  %s %s (%s)\n", mark, h.Name, h.ID)
	}
	brushes := 0
	doc := app.Document()
	doc.Scene().Walk(doc.Scene().World(), func(_ scene.Handle, k scene.Kind) bool {
		if k == scene.KindBrush {
			brushes++
		}
		return true
	})
	fmt.Fprintf(stdout, "brushes: %d, meshes: %d\n", brushes, len(last.Meshes))
	for _, issue := range last.Issues {
		fmt.Fprintf(stdout, "issue: %s\n", issue)
	}
	return status
}
