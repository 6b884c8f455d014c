package report

import (
	_ "embed"
	"html/template"
	"io"

	"github.com/kholcomb/Kyros/internal/scanner"
)

//go:embed report.html.tmpl
var htmlTemplate string

var reportTemplate = template.Must(template.New("report").Parse(htmlTemplate))

// HTMLReporter renders a standalone HTML page.
type HTMLReporter struct{}

func (r *HTMLReporter) Format() string { return "html" }

func (r *HTMLReporter) Write(w io.Writer, results *scanner.Results) error {
	return reportTemplate.Execute(w, results)
}
