// Package report renders scan results in the supported output formats:
// human-readable tables, JSON, CSV, and a standalone HTML page.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/kholcomb/Kyros/internal/scanner"
)

// Reporter renders one output format.
type Reporter interface {
	// Format is the identifier used by --format.
	Format() string

	// Write renders the results to w.
	Write(w io.Writer, results *scanner.Results) error
}

// Engine dispatches results to a registered reporter by format name.
type Engine struct {
	reporters map[string]Reporter
}

// NewEngine registers the built-in reporters.
func NewEngine() *Engine {
	e := &Engine{reporters: make(map[string]Reporter)}
	e.Register(&CLIReporter{})
	e.Register(&JSONReporter{})
	e.Register(&CSVReporter{})
	e.Register(&HTMLReporter{})
	return e
}

// Register adds (or replaces) a reporter.
func (e *Engine) Register(r Reporter) {
	e.reporters[r.Format()] = r
}

// Formats lists the registered format names.
func (e *Engine) Formats() []string {
	formats := make([]string, 0, len(e.reporters))
	for format := range e.reporters {
		formats = append(formats, format)
	}
	return formats
}

// Write renders results in the given format to w.
func (e *Engine) Write(w io.Writer, format string, results *scanner.Results) error {
	reporter, ok := e.reporters[format]
	if !ok {
		return fmt.Errorf("unknown output format %q", format)
	}
	return reporter.Write(w, results)
}

// WriteFile renders results to a file, or to stdout when path is empty.
func (e *Engine) WriteFile(path, format string, results *scanner.Results) error {
	if path == "" {
		return e.Write(os.Stdout, format, results)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := e.Write(f, format, results); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
