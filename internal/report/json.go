package report

import (
	"encoding/json"
	"io"

	"github.com/kholcomb/Kyros/internal/scanner"
)

// JSONReporter emits the full result object as indented JSON.
type JSONReporter struct{}

func (r *JSONReporter) Format() string { return "json" }

func (r *JSONReporter) Write(w io.Writer, results *scanner.Results) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
