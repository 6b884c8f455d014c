package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/kholcomb/Kyros/internal/scanner"
)

// CSVReporter emits one row per candidate, suitable for spreadsheets and
// downstream tooling.
type CSVReporter struct{}

func (r *CSVReporter) Format() string { return "csv" }

func (r *CSVReporter) Write(w io.Writer, results *scanner.Results) error {
	writer := csv.NewWriter(w)

	header := []string{
		"endpoint", "transport", "confidence", "direct_detection",
		"pid", "command", "url", "config_file", "config_key",
		"evidence_count", "confirmed", "server_name", "server_version",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	confirmed := make(map[string][2]string)
	if results.Active != nil {
		for i := range results.Active.ConfirmedServers {
			s := &results.Active.ConfirmedServers[i]
			confirmed[s.Candidate.Endpoint()] = [2]string{s.ServerName, s.ServerVersion}
		}
	}

	for i := range results.Passive.Candidates {
		c := &results.Passive.Candidates[i]

		serverName, serverVersion := "", ""
		isConfirmed := "false"
		if info, ok := confirmed[c.Endpoint()]; ok {
			isConfirmed = "true"
			serverName, serverVersion = info[0], info[1]
		}

		row := []string{
			c.Endpoint(),
			c.TransportHint.String(),
			fmt.Sprintf("%.4f", c.ConfidenceScore),
			strconv.FormatBool(c.IsDirectDetection()),
			strconv.Itoa(c.PID),
			c.Command,
			c.URL,
			c.ConfigFile,
			c.ConfigKey,
			strconv.Itoa(len(c.Evidence)),
			isConfirmed,
			serverName,
			serverVersion,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
