package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/kholcomb/Kyros/internal/domain"
	"github.com/kholcomb/Kyros/internal/scanner"
)

// CLIReporter renders results as terminal tables.
type CLIReporter struct{}

func (r *CLIReporter) Format() string { return "cli" }

func (r *CLIReporter) Write(w io.Writer, results *scanner.Results) error {
	passive := &results.Passive

	fmt.Fprintf(w, "Scan %s\n", results.ScanID)
	fmt.Fprintf(w, "Checked %d config files, %d processes, %d sockets, %d containers in %.2fs\n\n",
		passive.ConfigFilesChecked, passive.ProcessesScanned,
		passive.NetworkSocketsChecked, passive.ContainersScanned,
		passive.DurationSeconds)

	if len(passive.Candidates) == 0 {
		fmt.Fprintln(w, "No MCP server candidates found.")
	} else {
		r.writeCandidateTable(w, passive.Candidates)
	}

	if results.Active != nil {
		r.writeActiveSection(w, results.Active)
	}

	if len(results.Errors) > 0 {
		fmt.Fprintf(w, "\nErrors (%d):\n", len(results.Errors))
		for _, e := range results.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
	return nil
}

func (r *CLIReporter) writeCandidateTable(w io.Writer, candidates []domain.Candidate) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Endpoint", "Transport", "Confidence", "Direct", "Evidence"})

	for i := range candidates {
		c := &candidates[i]
		direct := ""
		if c.IsDirectDetection() {
			direct = "yes"
		}
		t.AppendRow(table.Row{
			c.Endpoint(),
			c.TransportHint.String(),
			fmt.Sprintf("%.2f", c.ConfidenceScore),
			direct,
			summarizeEvidence(c.Evidence),
		})
	}
	t.Render()
}

func (r *CLIReporter) writeActiveSection(w io.Writer, active *scanner.ActiveResults) {
	fmt.Fprintf(w, "\nTested %d candidates, confirmed %d servers in %.2fs\n",
		active.CandidatesTestedCount, active.ServersConfirmedCount, active.DurationSeconds)

	if len(active.ConfirmedServers) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Server", "Version", "Protocol", "Transport", "Tools", "Resources", "Prompts"})

	for i := range active.ConfirmedServers {
		s := &active.ConfirmedServers[i]
		name := s.ServerName
		if name == "" {
			name = s.Endpoint()
		}
		t.AppendRow(table.Row{
			name,
			s.ServerVersion,
			s.ProtocolVersion,
			s.TransportType.String(),
			len(s.Tools),
			len(s.Resources),
			len(s.Prompts),
		})
	}
	t.Render()
}

// summarizeEvidence compresses the evidence list into "type xN" clauses.
func summarizeEvidence(evidence []domain.Evidence) string {
	counts := make(map[string]int)
	var order []string
	for _, e := range evidence {
		if counts[e.Type] == 0 {
			order = append(order, e.Type)
		}
		counts[e.Type]++
	}

	parts := make([]string, 0, len(order))
	for _, t := range order {
		if counts[t] > 1 {
			parts = append(parts, fmt.Sprintf("%s x%d", t, counts[t]))
		} else {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, ", ")
}
