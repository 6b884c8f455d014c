package rulepack

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	kerr "github.com/kholcomb/Kyros/internal/errors"
)

//go:embed schema.json
var schemaJSON string

var schema = gojsonschema.NewStringLoader(schemaJSON)

// Document defaults, matching the historical rulepack format.
const (
	defaultPackName    = "Unnamed Rulepack"
	defaultPackVersion = "1.0"

	defaultEvidenceType       = "custom_rule"
	defaultEvidenceConfidence = 0.5
	defaultEvidenceSource     = "rulepack"

	defaultNegativeType       = "rulepack_negative"
	defaultNegativeConfidence = 0.99
)

// On-disk document shapes. Recognized keys only; unknown keys are ignored
// for forward compatibility.
type packDoc struct {
	Name        string    `json:"name,omitempty"`
	Version     string    `json:"version,omitempty"`
	Description string    `json:"description,omitempty"`
	Rules       []ruleDoc `json:"rules"`
}

type ruleDoc struct {
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
	Match       *matchDoc  `json:"match,omitempty"`
	Action      *actionDoc `json:"action,omitempty"`
}

type matchDoc struct {
	ProcessName     *string `json:"process_name,omitempty"`
	CommandContains *string `json:"command_contains,omitempty"`
	CommandRegex    *string `json:"command_regex,omitempty"`
	Port            *int    `json:"port,omitempty"`
	URLContains     *string `json:"url_contains,omitempty"`
	ConfigFile      *string `json:"config_file,omitempty"`
	HasEvidenceType *string `json:"has_evidence_type,omitempty"`
	ParentProcess   *string `json:"parent_process,omitempty"`
}

type actionDoc struct {
	AddEvidence          *evidenceDoc `json:"add_evidence,omitempty"`
	BoostConfidence      *float64     `json:"boost_confidence,omitempty"`
	SetMinimumConfidence *float64     `json:"set_minimum_confidence,omitempty"`
	AddTag               *string      `json:"add_tag,omitempty"`
	AddNegativeEvidence  *evidenceDoc `json:"add_negative_evidence,omitempty"`
	SetMaximumConfidence *float64     `json:"set_maximum_confidence,omitempty"`
	Exclude              *bool        `json:"exclude,omitempty"`
}

type evidenceDoc struct {
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Source      string   `json:"source,omitempty"`
}

// ParseJSON validates and decodes a rulepack document.
func ParseJSON(data []byte) (*Rulepack, error) {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", kerr.ErrRulepackInvalid, err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return nil, fmt.Errorf("%w: %s", kerr.ErrRulepackInvalid, strings.Join(details, "; "))
	}

	var doc packDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s", kerr.ErrRulepackInvalid, err)
	}
	return fromDoc(&doc), nil
}

// ParseYAML converts a YAML rulepack to JSON and runs it through the same
// validation and decoding path.
func ParseYAML(data []byte) (*Rulepack, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s", kerr.ErrRulepackInvalid, err)
	}
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", kerr.ErrRulepackInvalid, err)
	}
	return ParseJSON(jsonData)
}

// LoadFile reads one rulepack document, choosing the decoder by extension.
func LoadFile(path string) (*Rulepack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rulepack %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

func fromDoc(doc *packDoc) *Rulepack {
	pack := &Rulepack{
		Name:        doc.Name,
		Version:     doc.Version,
		Description: doc.Description,
	}
	if pack.Name == "" {
		pack.Name = defaultPackName
	}
	if pack.Version == "" {
		pack.Version = defaultPackVersion
	}

	for _, rd := range doc.Rules {
		rule := Rule{Name: rd.Name, Description: rd.Description}
		if rule.Name == "" {
			rule.Name = "Unnamed Rule"
		}
		if rd.Match != nil {
			rule.MatchConditions = rd.Match.conditions()
		}
		if rd.Action != nil {
			rule.Actions = rd.Action.actions()
		}
		pack.Rules = append(pack.Rules, rule)
	}
	return pack
}

// conditions expands recognized match keys in a fixed order so that rule
// behavior does not depend on document key order.
func (m *matchDoc) conditions() []Match {
	var out []Match
	if m.ProcessName != nil {
		out = append(out, Match{Type: MatchProcessName, Value: *m.ProcessName})
	}
	if m.CommandContains != nil {
		out = append(out, Match{Type: MatchCommandContains, Value: *m.CommandContains})
	}
	if m.CommandRegex != nil {
		out = append(out, Match{Type: MatchCommandRegex, Value: *m.CommandRegex})
	}
	if m.Port != nil {
		out = append(out, Match{Type: MatchPortEquals, Value: strconv.Itoa(*m.Port)})
	}
	if m.URLContains != nil {
		out = append(out, Match{Type: MatchURLContains, Value: *m.URLContains})
	}
	if m.ConfigFile != nil {
		out = append(out, Match{Type: MatchConfigFile, Value: *m.ConfigFile})
	}
	if m.HasEvidenceType != nil {
		out = append(out, Match{Type: MatchEvidenceType, Value: *m.HasEvidenceType})
	}
	if m.ParentProcess != nil {
		out = append(out, Match{Type: MatchParentProcess, Value: *m.ParentProcess})
	}
	return out
}

func (a *actionDoc) actions() []Action {
	var out []Action
	if a.AddEvidence != nil {
		spec := EvidenceSpec{
			Type:        a.AddEvidence.Type,
			Description: a.AddEvidence.Description,
			Confidence:  defaultEvidenceConfidence,
			Source:      a.AddEvidence.Source,
		}
		if spec.Type == "" {
			spec.Type = defaultEvidenceType
		}
		if spec.Source == "" {
			spec.Source = defaultEvidenceSource
		}
		if a.AddEvidence.Confidence != nil {
			spec.Confidence = *a.AddEvidence.Confidence
		}
		out = append(out, Action{Type: ActionAddEvidence, Evidence: spec})
	}
	if a.BoostConfidence != nil {
		out = append(out, Action{Type: ActionBoostConfidence, Factor: *a.BoostConfidence})
	}
	if a.SetMinimumConfidence != nil {
		out = append(out, Action{Type: ActionSetMinimumConfidence, Floor: *a.SetMinimumConfidence})
	}
	if a.AddTag != nil {
		out = append(out, Action{Type: ActionAddTag, Tag: *a.AddTag})
	}
	if a.AddNegativeEvidence != nil {
		spec := EvidenceSpec{
			Type:        a.AddNegativeEvidence.Type,
			Description: a.AddNegativeEvidence.Description,
			Confidence:  defaultNegativeConfidence,
		}
		if spec.Type == "" {
			spec.Type = defaultNegativeType
		}
		if a.AddNegativeEvidence.Confidence != nil {
			spec.Confidence = *a.AddNegativeEvidence.Confidence
		}
		out = append(out, Action{Type: ActionAddNegativeEvidence, Evidence: spec})
	}
	if a.SetMaximumConfidence != nil {
		out = append(out, Action{Type: ActionSetMaximumConfidence, Ceiling: *a.SetMaximumConfidence})
	}
	if a.Exclude != nil && *a.Exclude {
		out = append(out, Action{Type: ActionExclude})
	}
	return out
}

// MarshalJSON serializes the rulepack back into its document schema, so
// that ParseJSON(MarshalJSON(p)) reproduces p.
func (p *Rulepack) MarshalJSON() ([]byte, error) {
	doc := packDoc{
		Name:        p.Name,
		Version:     p.Version,
		Description: p.Description,
		Rules:       make([]ruleDoc, 0, len(p.Rules)),
	}

	for i := range p.Rules {
		rule := &p.Rules[i]
		rd := ruleDoc{Name: rule.Name, Description: rule.Description}

		if len(rule.MatchConditions) > 0 {
			rd.Match = &matchDoc{}
			for _, m := range rule.MatchConditions {
				value := m.Value
				switch m.Type {
				case MatchProcessName:
					rd.Match.ProcessName = &value
				case MatchCommandContains:
					rd.Match.CommandContains = &value
				case MatchCommandRegex:
					rd.Match.CommandRegex = &value
				case MatchPortEquals:
					if port, err := strconv.Atoi(m.Value); err == nil {
						rd.Match.Port = &port
					}
				case MatchURLContains:
					rd.Match.URLContains = &value
				case MatchConfigFile:
					rd.Match.ConfigFile = &value
				case MatchEvidenceType:
					rd.Match.HasEvidenceType = &value
				case MatchParentProcess:
					rd.Match.ParentProcess = &value
				}
			}
		}

		if len(rule.Actions) > 0 {
			rd.Action = &actionDoc{}
			for _, a := range rule.Actions {
				a := a
				switch a.Type {
				case ActionAddEvidence:
					confidence := a.Evidence.Confidence
					rd.Action.AddEvidence = &evidenceDoc{
						Type:        a.Evidence.Type,
						Description: a.Evidence.Description,
						Confidence:  &confidence,
						Source:      a.Evidence.Source,
					}
				case ActionBoostConfidence:
					rd.Action.BoostConfidence = &a.Factor
				case ActionSetMinimumConfidence:
					rd.Action.SetMinimumConfidence = &a.Floor
				case ActionAddTag:
					rd.Action.AddTag = &a.Tag
				case ActionAddNegativeEvidence:
					confidence := a.Evidence.Confidence
					rd.Action.AddNegativeEvidence = &evidenceDoc{
						Type:        a.Evidence.Type,
						Description: a.Evidence.Description,
						Confidence:  &confidence,
					}
				case ActionSetMaximumConfidence:
					rd.Action.SetMaximumConfidence = &a.Ceiling
				case ActionExclude:
					exclude := true
					rd.Action.Exclude = &exclude
				}
			}
		}

		doc.Rules = append(doc.Rules, rd)
	}

	return json.Marshal(doc)
}
