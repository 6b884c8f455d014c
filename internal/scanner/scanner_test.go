package scanner

import (
	"context"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kholcomb/Kyros/internal/domain"
	"github.com/kholcomb/Kyros/internal/platform"
	"github.com/kholcomb/Kyros/internal/platform/platformtest"
	"github.com/kholcomb/Kyros/internal/rulepack"
)

func TestScanner_PassiveOnly(t *testing.T) {
	t.Parallel()

	adapter := &platformtest.Adapter{
		Files: map[string]string{
			"/home/test/.config/Claude/claude_desktop_config.json": `{"mcpServers":{"fs":{"command":"node /a/b.js"}}}`,
		},
	}
	s := NewWithAdapter(hclog.NewNullLogger(), adapter, rulepack.NewEngine(hclog.NewNullLogger()))

	results := s.Scan(context.Background(), DefaultConfig())

	assert.NotEmpty(t, results.ScanID)
	assert.Len(t, results.Candidates(), 1)
	assert.False(t, results.HasActiveResults())
	assert.Nil(t, results.ConfirmedServers())
	assert.Empty(t, results.Errors)
}

func TestScanner_PassiveThenActive(t *testing.T) {
	t.Parallel()

	adapter := &platformtest.Adapter{
		Files: map[string]string{
			"/home/test/.config/Claude/claude_desktop_config.json": `{"mcpServers":{"fs":{"command":"node /a/b.js"}}}`,
		},
		SpawnFunc: func(context.Context, string) (platform.Process, error) {
			return &platformtest.Process{StdoutLines: []string{initializeLine}}, nil
		},
	}
	s := NewWithAdapter(hclog.NewNullLogger(), adapter, rulepack.NewEngine(hclog.NewNullLogger()))

	config := DefaultConfig()
	config.Mode = ModePassiveThenActive
	results := s.Scan(context.Background(), config)

	require.True(t, results.HasActiveResults())
	require.Len(t, results.ConfirmedServers(), 1)
	assert.Equal(t, "fs", results.ConfirmedServers()[0].ServerName)
	assert.Equal(t, 1, results.Active.ServersConfirmedCount)
}

func TestScanner_ActiveOnlyUsesSuppliedCandidates(t *testing.T) {
	t.Parallel()

	adapter := &platformtest.Adapter{
		SpawnFunc: func(context.Context, string) (platform.Process, error) {
			return &platformtest.Process{StdoutLines: []string{initializeLine}}, nil
		},
	}
	s := NewWithAdapter(hclog.NewNullLogger(), adapter, rulepack.NewEngine(hclog.NewNullLogger()))

	config := DefaultConfig()
	config.Mode = ModeActiveOnly
	config.Candidates = []domain.Candidate{
		{Command: "node /elsewhere.js", TransportHint: domain.TransportStdio},
	}
	results := s.Scan(context.Background(), config)

	// No passive phase ran.
	assert.Empty(t, results.Passive.Candidates)
	assert.Zero(t, results.Passive.ProcessesScanned)
	require.Len(t, results.ConfirmedServers(), 1)
}

func TestScanner_ErrorsArePrefixedByPhase(t *testing.T) {
	t.Parallel()

	adapter := &platformtest.Adapter{
		PIDs:          []int{1},
		Names:         map[int]string{1: "mystery"},
		Commands:      map[int]string{1: "mystery-daemon"},
		Bidirectional: map[int]bool{1: true},
		ListenersErr:  assertAnError,
		SpawnFunc: func(context.Context, string) (platform.Process, error) {
			return &platformtest.Process{StdoutLines: []string{"junk"}}, nil
		},
	}
	s := NewWithAdapter(hclog.NewNullLogger(), adapter, rulepack.NewEngine(hclog.NewNullLogger()))

	config := DefaultConfig()
	config.Mode = ModePassiveThenActive
	results := s.Scan(context.Background(), config)

	require.NotEmpty(t, results.Errors)
	assert.Contains(t, results.Errors[0], "Passive scan: ")

	foundActive := false
	for _, e := range results.Errors {
		if len(e) >= 12 && e[:12] == "Active scan:" {
			foundActive = true
		}
	}
	assert.True(t, foundActive)
}

func TestScanner_SetEngineSwapsBetweenScans(t *testing.T) {
	t.Parallel()

	adapter := &platformtest.Adapter{
		PIDs:     []int{5},
		Names:    map[int]string{5: "node"},
		Commands: map[int]string{5: "node /x.js"},
		Environs: map[int]map[string]string{5: {"MCP_X": "1"}},
	}
	s := NewWithAdapter(hclog.NewNullLogger(), adapter, rulepack.NewEngine(hclog.NewNullLogger()))

	first := s.Scan(context.Background(), DefaultConfig())
	require.Len(t, first.Candidates(), 1)
	baseline := first.Candidates()[0].ConfidenceScore

	pack, err := rulepack.ParseJSON([]byte(`{"rules":[
	  {"match":{"command_contains":"node"},"action":{"set_minimum_confidence":0.95}}]}`))
	require.NoError(t, err)
	engine := rulepack.NewEngine(hclog.NewNullLogger())
	engine.Add(pack)
	s.SetEngine(engine)

	second := s.Scan(context.Background(), DefaultConfig())
	require.Len(t, second.Candidates(), 1)
	assert.Greater(t, second.Candidates()[0].ConfidenceScore, baseline)
}

var assertAnError = errTest("listener table unavailable")

type errTest string

func (e errTest) Error() string { return string(e) }
