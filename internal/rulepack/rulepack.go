// Package rulepack implements the declarative match/action layer applied to
// every candidate: boosting, capping, tagging, or vetoing based on
// user-supplied JSON or YAML rule documents.
package rulepack

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kholcomb/Kyros/internal/domain"
)

// MatchType enumerates the recognized match conditions.
type MatchType int

const (
	MatchProcessName MatchType = iota
	MatchCommandContains
	MatchCommandRegex
	MatchPortEquals
	MatchURLContains
	MatchConfigFile
	MatchEvidenceType
	MatchParentProcess
)

// Match is one condition of a rule. Value is the raw document value; for
// MatchPortEquals it is the decimal port number.
type Match struct {
	Type  MatchType
	Value string
}

// Matches reports whether the candidate satisfies this condition.
//
// A malformed regex is a non-match, not an error: a bad pattern in one rule
// must not abort the scan.
func (m Match) Matches(c *domain.Candidate) bool {
	switch m.Type {
	case MatchProcessName:
		return strings.Contains(c.ProcessName, m.Value)
	case MatchCommandContains:
		return strings.Contains(c.Command, m.Value)
	case MatchCommandRegex:
		re, err := regexp.Compile(m.Value)
		if err != nil {
			return false
		}
		return re.MatchString(c.Command)
	case MatchPortEquals:
		port, err := strconv.Atoi(m.Value)
		if err != nil {
			return false
		}
		return c.Port == port
	case MatchURLContains:
		return strings.Contains(c.URL, m.Value)
	case MatchConfigFile:
		return strings.Contains(c.ConfigFile, m.Value)
	case MatchEvidenceType:
		return c.HasEvidenceType(m.Value)
	case MatchParentProcess:
		return c.ParentProcessName != "" && strings.Contains(c.ParentProcessName, m.Value)
	default:
		return false
	}
}

// ActionType enumerates the recognized rule actions.
type ActionType int

const (
	ActionAddEvidence ActionType = iota
	ActionBoostConfidence
	ActionSetMinimumConfidence
	ActionAddTag
	ActionAddNegativeEvidence
	ActionSetMaximumConfidence
	ActionExclude
)

// EvidenceSpec is the payload of add_evidence / add_negative_evidence.
type EvidenceSpec struct {
	Type        string
	Description string
	Confidence  float64
	Source      string
}

// Action is one effect of a rule.
type Action struct {
	Type     ActionType
	Evidence EvidenceSpec // AddEvidence / AddNegativeEvidence
	Factor   float64      // BoostConfidence
	Floor    float64      // SetMinimumConfidence
	Ceiling  float64      // SetMaximumConfidence
	Tag      string       // AddTag
}

// Apply mutates the candidate. Score overrides (boost, floor, ceiling) are
// the last word: they write ConfidenceScore directly without recomputing
// from evidence.
func (a Action) Apply(c *domain.Candidate) {
	switch a.Type {
	case ActionAddEvidence:
		c.AddEvidence(domain.NewEvidence(a.Evidence.Type, a.Evidence.Description, a.Evidence.Confidence, a.Evidence.Source))

	case ActionBoostConfidence:
		score := c.ConfidenceScore * a.Factor
		if score > domain.MaxConfidence {
			score = domain.MaxConfidence
		}
		c.ConfidenceScore = score

	case ActionSetMinimumConfidence:
		if c.ConfidenceScore < a.Floor {
			c.ConfidenceScore = a.Floor
		}

	case ActionSetMaximumConfidence:
		if c.ConfidenceScore > a.Ceiling {
			c.ConfidenceScore = a.Ceiling
		}

	case ActionAddTag:
		// Tags ride along as zero-confidence evidence; they never affect
		// the score.
		c.AddEvidence(domain.NewEvidence("tag", "Tagged as: "+a.Tag, 0, "rulepack"))

	case ActionAddNegativeEvidence:
		c.AddEvidence(domain.NewNegativeEvidence(
			a.Evidence.Type, a.Evidence.Description, a.Evidence.Confidence, "rulepack:exclusion"))

	case ActionExclude:
		c.ConfidenceScore = 0
		c.AddEvidence(domain.NewNegativeEvidence(
			"rulepack_exclusion", "Excluded by rulepack rule", 0.99, "rulepack:exclusion"))
	}
}

// Rule couples a conjunction of match conditions with an ordered action list.
type Rule struct {
	Name            string
	Description     string
	MatchConditions []Match
	Actions         []Action
}

// Matches reports whether every condition holds. A rule with no conditions
// matches every candidate.
func (r *Rule) Matches(c *domain.Candidate) bool {
	for _, m := range r.MatchConditions {
		if !m.Matches(c) {
			return false
		}
	}
	return true
}

// Apply runs the rule's actions, in order, when the rule matches.
func (r *Rule) Apply(c *domain.Candidate) {
	if !r.Matches(c) {
		return
	}
	for _, a := range r.Actions {
		a.Apply(c)
	}
}

// Rulepack is an ordered collection of rules plus document metadata.
type Rulepack struct {
	Name        string
	Version     string
	Description string
	Rules       []Rule
}

// Apply runs every rule against the candidate, in document order.
func (p *Rulepack) Apply(c *domain.Candidate) {
	for i := range p.Rules {
		p.Rules[i].Apply(c)
	}
}
