package domain

import (
	"encoding/json"
	"fmt"
)

// Strength classifies how much an evidence item can contribute on its own.
//
// The scorer separates only Weak from the other classes: a candidate whose
// evidence is entirely Weak is capped below the active-testing threshold,
// while a single item of any other class can stand alone.
type Strength int

const (
	StrengthDefinitive Strength = iota // certain indicators (rulepack vetoes from NewNegativeEvidence)
	StrengthStrong                     // can stand alone
	StrengthModerate                   // NewEvidence default (config_declared, file descriptors, environment, rulepack boosts)
	StrengthWeak                       // must combine with others (parent process alone)
)

// String returns the lowercase name used in reports.
func (s Strength) String() string {
	switch s {
	case StrengthDefinitive:
		return "definitive"
	case StrengthStrong:
		return "strong"
	case StrengthModerate:
		return "moderate"
	case StrengthWeak:
		return "weak"
	default:
		return fmt.Sprintf("strength(%d)", int(s))
	}
}

// MarshalJSON renders the strength as its string name.
func (s Strength) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the string names produced by MarshalJSON.
func (s *Strength) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v {
	case "definitive":
		*s = StrengthDefinitive
	case "strong":
		*s = StrengthStrong
	case "moderate", "":
		*s = StrengthModerate
	case "weak":
		*s = StrengthWeak
	default:
		return fmt.Errorf("unknown evidence strength %q", v)
	}
	return nil
}

// Evidence is a single tagged observation supporting (or refuting) an MCP
// server detection. Evidence is constructed once and never mutated.
type Evidence struct {
	// Type tags the observation, e.g. "config_declared" or "network_listener".
	Type string `json:"type"`

	// Description is the human-readable explanation shown in reports.
	Description string `json:"description"`

	// Confidence is the independent probability contributed by this
	// observation, in [0, 1].
	Confidence float64 `json:"confidence"`

	// Source records where the observation came from (file path, PID,
	// rulepack name). A "rulepack:" prefix marks rulepack-sourced evidence.
	Source string `json:"source,omitempty"`

	// Strength gates how the scorer treats this item.
	Strength Strength `json:"strength"`

	// IsNegative marks confirmed NOT-MCP observations. A single negative
	// item vetoes the candidate.
	IsNegative bool `json:"is_negative,omitempty"`
}

// NewEvidence builds a positive evidence item of Moderate strength, the
// default classification for corroborating signals.
func NewEvidence(evidenceType, description string, confidence float64, source string) Evidence {
	return Evidence{
		Type:        evidenceType,
		Description: description,
		Confidence:  confidence,
		Source:      source,
		Strength:    StrengthModerate,
	}
}

// NewEvidenceWithStrength builds a positive evidence item with an explicit
// strength classification.
func NewEvidenceWithStrength(evidenceType, description string, confidence float64, source string, strength Strength) Evidence {
	e := NewEvidence(evidenceType, description, confidence, source)
	e.Strength = strength
	return e
}

// NewNegativeEvidence builds a Definitive negative (veto) evidence item.
func NewNegativeEvidence(evidenceType, description string, confidence float64, source string) Evidence {
	return Evidence{
		Type:        evidenceType,
		Description: description,
		Confidence:  confidence,
		Source:      source,
		Strength:    StrengthDefinitive,
		IsNegative:  true,
	}
}
