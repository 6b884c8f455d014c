package domain

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecalculateConfidence_Boundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		evidence []Evidence
		expected float64
	}{
		{
			name:     "empty evidence scores zero",
			evidence: nil,
			expected: 0,
		},
		{
			name: "single evidence keeps its confidence",
			evidence: []Evidence{
				NewEvidence("config_declared", "declared", 0.70, "/tmp/cfg.json"),
			},
			expected: 0.70,
		},
		{
			name: "two independent signals compound",
			evidence: []Evidence{
				NewEvidence("file_descriptors", "pipes", 0.70, ""),
				NewEvidence("environment", "MCP_PORT", 0.70, ""),
			},
			expected: 0.91, // 1 - 0.3*0.3
		},
		{
			name: "two weak signals capped at 0.49",
			evidence: []Evidence{
				NewEvidenceWithStrength("parent_process", "Claude", 0.70, "", StrengthWeak),
				NewEvidenceWithStrength("parent_process", "Claude", 0.70, "", StrengthWeak),
			},
			expected: WeakOnlyCap,
		},
		{
			name: "many moderate signals hit the hard cap",
			evidence: []Evidence{
				NewEvidence("e", "d", 0.50, ""), NewEvidence("e", "d", 0.50, ""),
				NewEvidence("e", "d", 0.50, ""), NewEvidence("e", "d", 0.50, ""),
				NewEvidence("e", "d", 0.50, ""), NewEvidence("e", "d", 0.50, ""),
				NewEvidence("e", "d", 0.50, ""), NewEvidence("e", "d", 0.50, ""),
				NewEvidence("e", "d", 0.50, ""), NewEvidence("e", "d", 0.50, ""),
			},
			expected: MaxConfidence,
		},
		{
			name: "negative evidence vetoes everything",
			evidence: []Evidence{
				NewEvidence("config_declared", "declared", 0.90, "/tmp/cfg.json"),
				NewNegativeEvidence("rulepack_exclusion", "excluded", 0.99, "rulepack:exclusion"),
			},
			expected: 0,
		},
		{
			name: "weak plus moderate escapes the weak cap",
			evidence: []Evidence{
				NewEvidenceWithStrength("parent_process", "Claude", 0.70, "", StrengthWeak),
				NewEvidence("file_descriptors", "pipes", 0.60, ""),
			},
			expected: 0.88, // 1 - 0.3*0.4
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := Candidate{Evidence: tc.evidence}
			c.RecalculateConfidence()
			assert.InDelta(t, tc.expected, c.ConfidenceScore, 1e-9)
		})
	}
}

func TestRecalculateConfidence_Invariants(t *testing.T) {
	t.Parallel()

	// Score stays in [0, MaxConfidence] across random evidence sets, a veto
	// always forces zero, and an all-weak set never exceeds the weak cap.
	rng := rand.New(rand.NewSource(42))
	strengths := []Strength{StrengthDefinitive, StrengthStrong, StrengthModerate, StrengthWeak}

	for i := 0; i < 500; i++ {
		var c Candidate
		allWeak := true
		negative := false
		for j := 0; j < rng.Intn(8); j++ {
			e := NewEvidenceWithStrength("t", "d", rng.Float64(), "", strengths[rng.Intn(len(strengths))])
			if rng.Intn(10) == 0 {
				e.IsNegative = true
				negative = true
			}
			if e.Strength != StrengthWeak {
				allWeak = false
			}
			c.AddEvidence(e)
		}

		require.GreaterOrEqual(t, c.ConfidenceScore, 0.0)
		require.LessOrEqual(t, c.ConfidenceScore, MaxConfidence)
		if negative {
			require.Zero(t, c.ConfidenceScore)
		}
		if allWeak && !negative {
			require.LessOrEqual(t, c.ConfidenceScore, WeakOnlyCap)
		}
	}
}

func TestRecalculateConfidence_OrderInvariance(t *testing.T) {
	t.Parallel()

	evidence := []Evidence{
		NewEvidence("a", "d", 0.3, ""),
		NewEvidenceWithStrength("b", "d", 0.6, "", StrengthStrong),
		NewEvidenceWithStrength("c", "d", 0.2, "", StrengthWeak),
		NewEvidence("d", "d", 0.45, ""),
	}

	forward := Candidate{Evidence: evidence}
	forward.RecalculateConfidence()

	reversed := Candidate{}
	for i := len(evidence) - 1; i >= 0; i-- {
		reversed.AddEvidence(evidence[i])
	}

	assert.InDelta(t, forward.ConfidenceScore, reversed.ConfidenceScore, 1e-12)
}

func TestRecalculateConfidence_DiminishingReturns(t *testing.T) {
	t.Parallel()

	// Appending evidence with confidence p shrinks the remaining complement
	// by exactly (1 - p).
	c := Candidate{}
	c.AddEvidence(NewEvidence("a", "d", 0.4, ""))
	c.AddEvidence(NewEvidence("b", "d", 0.5, ""))
	before := 1.0 - c.ConfidenceScore

	c.AddEvidence(NewEvidence("c", "d", 0.25, ""))
	after := 1.0 - c.ConfidenceScore

	assert.InDelta(t, before*(1.0-0.25), after, 1e-12)
	assert.False(t, math.Signbit(after))
}

func TestIsDirectDetection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		evidence []Evidence
		expected bool
	}{
		{
			name:     "no evidence is not direct",
			expected: false,
		},
		{
			name: "config declaration is direct",
			evidence: []Evidence{
				NewEvidence("config_declared", "declared", 0.9, "/cfg.json"),
			},
			expected: true,
		},
		{
			name: "installed extension is direct",
			evidence: []Evidence{
				NewEvidence("claude_extension_installed", "installed", 0.95, "/ext"),
			},
			expected: true,
		},
		{
			name: "rulepack source prefix is direct",
			evidence: []Evidence{
				NewEvidence("known_mcp_package", "known package", 0.95, "rulepack:core"),
			},
			expected: true,
		},
		{
			name: "plain process evidence is not direct",
			evidence: []Evidence{
				NewEvidence("file_descriptors", "pipes", 0.6, ""),
				NewEvidence("environment", "MCP_PORT", 0.5, ""),
			},
			expected: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := Candidate{Evidence: tc.evidence}
			assert.Equal(t, tc.expected, c.IsDirectDetection())
		})
	}
}

func TestCandidateIdentityHelpers(t *testing.T) {
	t.Parallel()

	cfg := Candidate{ConfigFile: "/cfg.json", ConfigKey: "fs"}
	assert.True(t, cfg.IsConfigCandidate())
	assert.Equal(t, "/cfg.json#fs", cfg.Endpoint())

	proc := Candidate{PID: 42}
	assert.True(t, proc.IsProcessCandidate())
	assert.Equal(t, "pid:42", proc.Endpoint())

	net := Candidate{URL: "http://127.0.0.1:3000"}
	assert.True(t, net.IsNetworkCandidate())
	assert.Equal(t, "http://127.0.0.1:3000", net.Endpoint())

	ctr := Candidate{DockerContainer: &DockerContainer{ID: "abc123"}}
	assert.True(t, ctr.IsContainerCandidate())
	assert.Equal(t, "container:abc123", ctr.Endpoint())
}
