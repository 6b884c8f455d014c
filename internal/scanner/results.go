package scanner

import (
	"time"

	"github.com/google/uuid"

	"github.com/kholcomb/Kyros/internal/domain"
)

// PassiveResults is the discovery phase output.
type PassiveResults struct {
	Candidates []domain.Candidate `json:"candidates"`

	ConfigFilesChecked    int `json:"config_files_checked"`
	ProcessesScanned      int `json:"processes_scanned"`
	NetworkSocketsChecked int `json:"network_sockets_checked"`
	ContainersScanned     int `json:"containers_scanned"`

	DurationSeconds float64   `json:"scan_duration_seconds"`
	Timestamp       time.Time `json:"scan_timestamp"`

	Errors []string `json:"errors,omitempty"`
}

// ActiveResults is the verification phase output.
type ActiveResults struct {
	CandidatesTested []domain.Candidate `json:"candidates_tested"`

	ConfirmedServers []domain.MCPServer `json:"confirmed_servers"`
	FailedTests      []domain.Candidate `json:"failed_tests"`

	CandidatesTestedCount int `json:"candidates_tested_count"`
	ServersConfirmedCount int `json:"servers_confirmed_count"`
	TestsFailedCount      int `json:"tests_failed_count"`

	DurationSeconds float64   `json:"scan_duration_seconds"`
	Timestamp       time.Time `json:"scan_timestamp"`

	Errors []string `json:"errors,omitempty"`
}

// Results is the combined output of one scan run.
type Results struct {
	// ScanID identifies the run across reports and the daemon API.
	ScanID string `json:"scan_id"`

	Passive PassiveResults `json:"passive_results"`

	// Active is present only when an active phase ran.
	Active *ActiveResults `json:"active_results,omitempty"`

	Errors []string `json:"errors,omitempty"`
}

// NewResults allocates a result set with a fresh scan id.
func NewResults() *Results {
	return &Results{ScanID: uuid.NewString()}
}

// Candidates returns the passive candidates.
func (r *Results) Candidates() []domain.Candidate {
	return r.Passive.Candidates
}

// ConfirmedServers returns the confirmed servers, or nil when no active
// phase ran.
func (r *Results) ConfirmedServers() []domain.MCPServer {
	if r.Active == nil {
		return nil
	}
	return r.Active.ConfirmedServers
}

// HasActiveResults reports whether an active phase ran.
func (r *Results) HasActiveResults() bool { return r.Active != nil }
