package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kholcomb/Kyros/internal/domain"
)

func candidateWithEvidence(mutate func(*domain.Candidate)) domain.Candidate {
	var c domain.Candidate
	mutate(&c)
	return c
}

func TestDeduplicate_IdentityKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		a, b     domain.Candidate
		distinct bool
	}{
		{
			name: "same config file and key",
			a:    domain.Candidate{ConfigFile: "/cfg.json", ConfigKey: "fs"},
			b:    domain.Candidate{ConfigFile: "/cfg.json", ConfigKey: "fs"},
		},
		{
			name:     "same config file different key",
			a:        domain.Candidate{ConfigFile: "/cfg.json", ConfigKey: "fs"},
			b:        domain.Candidate{ConfigFile: "/cfg.json", ConfigKey: "git"},
			distinct: true,
		},
		{
			name: "same pid",
			a:    domain.Candidate{PID: 42},
			b:    domain.Candidate{PID: 42},
		},
		{
			name: "same url",
			a:    domain.Candidate{URL: "http://127.0.0.1:3000"},
			b:    domain.Candidate{URL: "http://127.0.0.1:3000"},
		},
		{
			name: "same command across sources",
			a:    domain.Candidate{Command: "node /srv/index.js", ConfigFile: "/cfg.json", ConfigKey: "fs"},
			b:    domain.Candidate{Command: "node /srv/index.js", PID: 42},
		},
		{
			name:     "nothing in common",
			a:        domain.Candidate{PID: 42},
			b:        domain.Candidate{URL: "http://127.0.0.1:3000"},
			distinct: true,
		},
		{
			name:     "empty commands never match",
			a:        domain.Candidate{PID: 1},
			b:        domain.Candidate{PID: 2},
			distinct: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			merged := Deduplicate([]domain.Candidate{tc.a, tc.b})
			if tc.distinct {
				assert.Len(t, merged, 2)
			} else {
				assert.Len(t, merged, 1)
			}
		})
	}
}

func TestDeduplicate_EvidenceUnionAndRecompute(t *testing.T) {
	t.Parallel()

	a := candidateWithEvidence(func(c *domain.Candidate) {
		c.PID = 42
		c.AddEvidence(domain.NewEvidence("file_descriptors", "pipes", 0.6, ""))
	})
	b := candidateWithEvidence(func(c *domain.Candidate) {
		c.PID = 42
		c.AddEvidence(domain.NewEvidence("environment", "MCP_PORT", 0.5, ""))
		c.AddEvidence(domain.NewEvidence("environment", "CLAUDE_API_KEY", 0.5, ""))
	})

	merged := Deduplicate([]domain.Candidate{a, b})
	require.Len(t, merged, 1)

	survivor := merged[0]
	// Earlier candidate survives; later evidence is appended (multiset).
	require.Len(t, survivor.Evidence, 3)
	assert.Equal(t, "file_descriptors", survivor.Evidence[0].Type)

	// Noisy-OR over all three: 1 - 0.4*0.5*0.5.
	assert.InDelta(t, 0.9, survivor.ConfidenceScore, 1e-9)
}

func TestDeduplicate_DuplicateEvidenceCompounds(t *testing.T) {
	t.Parallel()

	a := candidateWithEvidence(func(c *domain.Candidate) {
		c.URL = "http://127.0.0.1:3000"
		c.AddEvidence(domain.NewEvidence("network_listener", "tcp", 0.10, ""))
	})
	b := candidateWithEvidence(func(c *domain.Candidate) {
		c.URL = "http://127.0.0.1:3000"
		c.AddEvidence(domain.NewEvidence("network_listener", "tcp", 0.10, ""))
	})

	merged := Deduplicate([]domain.Candidate{a, b})
	require.Len(t, merged, 1)
	// Union is a multiset: both copies stay, compounding diminishes.
	assert.Len(t, merged[0].Evidence, 2)
	assert.InDelta(t, 0.19, merged[0].ConfidenceScore, 1e-9)
}

func TestDeduplicate_Idempotent(t *testing.T) {
	t.Parallel()

	input := []domain.Candidate{
		candidateWithEvidence(func(c *domain.Candidate) {
			c.PID = 1
			c.AddEvidence(domain.NewEvidence("a", "d", 0.5, ""))
		}),
		candidateWithEvidence(func(c *domain.Candidate) {
			c.PID = 1
			c.AddEvidence(domain.NewEvidence("b", "d", 0.5, ""))
		}),
		candidateWithEvidence(func(c *domain.Candidate) {
			c.URL = "http://127.0.0.1:9000"
			c.AddEvidence(domain.NewEvidence("c", "d", 0.5, ""))
		}),
	}

	once := Deduplicate(input)
	twice := Deduplicate(once)
	assert.Equal(t, once, twice)
}

func TestDeduplicate_SharedCommandAcrossSources(t *testing.T) {
	t.Parallel()

	// A config candidate and a process candidate share only their command;
	// they collapse into one and the earlier config candidate survives.
	config := candidateWithEvidence(func(c *domain.Candidate) {
		c.ConfigFile, c.ConfigKey = "/cfg.json", "fs"
		c.Command = "node /srv/index.js"
		c.AddEvidence(domain.NewEvidence("config_declared", "d", 0.9, "/cfg.json"))
	})
	process := candidateWithEvidence(func(c *domain.Candidate) {
		c.PID = 42
		c.Command = "node /srv/index.js"
		c.AddEvidence(domain.NewEvidence("file_descriptors", "d", 0.6, ""))
	})

	merged := Deduplicate([]domain.Candidate{config, process})
	require.Len(t, merged, 1)
	assert.Equal(t, "/cfg.json", merged[0].ConfigFile)
	assert.Len(t, merged[0].Evidence, 2)
}
