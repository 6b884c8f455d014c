package domain

import (
	"fmt"
	"strings"
)

// Confidence bounds enforced by the scorer.
const (
	// MaxConfidence caps every score: no candidate is certain without
	// active confirmation.
	MaxConfidence = 0.99

	// WeakOnlyCap bounds candidates whose evidence is entirely Weak,
	// keeping them below the active-testing threshold.
	WeakOnlyCap = 0.49
)

// Candidate is a suspected MCP server that has not been confirmed yet.
//
// At least one identity field is populated: PID for processes, URL for
// network listeners, ConfigFile/ConfigKey for declared servers, or a
// container reference. ConfidenceScore is derived from Evidence; call
// AddEvidence rather than appending to Evidence directly so the score
// stays consistent.
type Candidate struct {
	// Process identity (stdio transport).
	PID               int               `json:"pid,omitempty"`
	Command           string            `json:"command,omitempty"`
	ProcessName       string            `json:"process_name,omitempty"`
	ParentPID         int               `json:"parent_pid,omitempty"`
	ParentProcessName string            `json:"parent_process_name,omitempty"`
	Environment       map[string]string `json:"environment,omitempty"`

	// Configuration identity.
	ConfigFile string `json:"config_file,omitempty"`
	ConfigKey  string `json:"config_key,omitempty"`

	// Network identity (HTTP/SSE transport).
	URL     string `json:"url,omitempty"`
	Address string `json:"address,omitempty"`
	Port    int    `json:"port,omitempty"`

	// Container identity.
	DockerContainer *DockerContainer `json:"docker_container,omitempty"`
	KubernetesPod   *KubernetesPod   `json:"k8s_pod,omitempty"`

	// Detection state.
	Evidence        []Evidence    `json:"evidence"`
	ConfidenceScore float64       `json:"confidence_score"`
	TransportHint   TransportType `json:"transport_hint"`
}

// IsConfigCandidate reports whether the candidate came from a config file.
func (c Candidate) IsConfigCandidate() bool { return c.ConfigFile != "" }

// IsProcessCandidate reports whether the candidate refers to a live process.
func (c Candidate) IsProcessCandidate() bool { return c.PID > 0 }

// IsNetworkCandidate reports whether the candidate refers to a listener.
func (c Candidate) IsNetworkCandidate() bool { return c.URL != "" || c.Port > 0 }

// IsContainerCandidate reports whether the candidate refers to a container.
func (c Candidate) IsContainerCandidate() bool {
	return c.DockerContainer != nil || c.KubernetesPod != nil
}

// Endpoint returns a short identity string for logs and reports.
func (c Candidate) Endpoint() string {
	switch {
	case c.URL != "":
		return c.URL
	case c.PID > 0:
		return fmt.Sprintf("pid:%d", c.PID)
	case c.ConfigFile != "":
		return c.ConfigFile + "#" + c.ConfigKey
	case c.DockerContainer != nil:
		return "container:" + c.DockerContainer.ID
	default:
		return "unknown"
	}
}

// IsDirectDetection reports whether the evidence already identifies an MCP
// server explicitly, making active verification unnecessary: an installed
// Claude extension, a config-file declaration, or any rulepack-sourced
// evidence. Actively confirmed servers form a separate class handled by the
// active coordinator.
func (c Candidate) IsDirectDetection() bool {
	for _, e := range c.Evidence {
		if e.Type == "claude_extension_installed" || e.Type == "config_declared" {
			return true
		}
		if strings.HasPrefix(e.Source, "rulepack:") {
			return true
		}
	}
	return false
}

// HasEvidenceType reports whether any evidence carries the given type tag.
func (c Candidate) HasEvidenceType(evidenceType string) bool {
	for _, e := range c.Evidence {
		if e.Type == evidenceType {
			return true
		}
	}
	return false
}

// AddEvidence appends an observation and recomputes the confidence score.
func (c *Candidate) AddEvidence(e Evidence) {
	c.Evidence = append(c.Evidence, e)
	c.RecalculateConfidence()
}

// RecalculateConfidence recomputes ConfidenceScore from the evidence set
// using Noisy-OR aggregation: P = 1 - prod(1 - p_i).
//
// Independent signals compound, duplicates have diminishing returns, and no
// passive evidence set reaches certainty. Two overriding rules apply first:
// any negative evidence vetoes the candidate to zero, and an all-Weak
// evidence set is capped at WeakOnlyCap so that single weak signals (such as
// "parent is an IDE") never trigger active testing on their own.
func (c *Candidate) RecalculateConfidence() {
	if len(c.Evidence) == 0 {
		c.ConfidenceScore = 0
		return
	}

	allWeak := true
	for _, e := range c.Evidence {
		if e.IsNegative {
			c.ConfidenceScore = 0
			return
		}
		if e.Strength != StrengthWeak {
			allWeak = false
		}
	}

	complement := 1.0
	for _, e := range c.Evidence {
		complement *= 1.0 - e.Confidence
	}
	score := 1.0 - complement

	limit := MaxConfidence
	if allWeak {
		limit = WeakOnlyCap
	}
	if score > limit {
		score = limit
	}
	c.ConfidenceScore = score
}
