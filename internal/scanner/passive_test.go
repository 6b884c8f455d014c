package scanner

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kholcomb/Kyros/internal/domain"
	"github.com/kholcomb/Kyros/internal/platform/platformtest"
	"github.com/kholcomb/Kyros/internal/rulepack"
)

func emptyEngine() *rulepack.Engine {
	return rulepack.NewEngine(hclog.NewNullLogger())
}

func TestPassiveScanner_AllSources(t *testing.T) {
	t.Parallel()

	adapter := &platformtest.Adapter{
		Files: map[string]string{
			"/home/test/.config/Claude/claude_desktop_config.json": `{"mcpServers":{"fs":{"command":"node","args":["/a/b.js"]}}}`,
		},
		PIDs:          []int{100},
		Names:         map[int]string{100: "python3"},
		Commands:      map[int]string{100: "python3 -m weather_mcp"},
		Bidirectional: map[int]bool{100: true},
		Listeners: []domain.NetworkListener{
			{PID: 200, Address: "0.0.0.0", Port: 3000, Protocol: "tcp"},
		},
	}

	s := NewPassiveScanner(hclog.NewNullLogger(), adapter, emptyEngine())

	config := DefaultPassiveConfig()
	results := s.Scan(context.Background(), config)

	assert.Empty(t, results.Errors)
	assert.Equal(t, 1, results.ConfigFilesChecked)
	assert.Equal(t, 1, results.ProcessesScanned)
	assert.Equal(t, 1, results.NetworkSocketsChecked)
	assert.Zero(t, results.ContainersScanned)
	require.Len(t, results.Candidates, 3)

	// Output is ordered by descending confidence.
	for i := 1; i < len(results.Candidates); i++ {
		assert.GreaterOrEqual(t,
			results.Candidates[i-1].ConfidenceScore,
			results.Candidates[i].ConfidenceScore)
	}
	assert.Equal(t, "fs", results.Candidates[0].ConfigKey)
	assert.Positive(t, results.DurationSeconds)
}

func TestPassiveScanner_SourceFailureIsIsolated(t *testing.T) {
	t.Parallel()

	adapter := &platformtest.Adapter{
		Files: map[string]string{
			"/home/test/.config/Claude/claude_desktop_config.json": `{"mcpServers":{"fs":{"command":"node x.js"}}}`,
		},
		ProcessesErr: errors.New("proc unreadable"),
		ListenersErr: errors.New("netlink refused"),
	}

	s := NewPassiveScanner(hclog.NewNullLogger(), adapter, emptyEngine())
	results := s.Scan(context.Background(), DefaultPassiveConfig())

	require.Len(t, results.Errors, 2)
	assert.Contains(t, results.Errors[0], "process source")
	assert.Contains(t, results.Errors[1], "network source")
	// The config source still contributed.
	require.Len(t, results.Candidates, 1)
}

func TestPassiveScanner_MinConfidenceFilter(t *testing.T) {
	t.Parallel()

	adapter := &platformtest.Adapter{
		Listeners: []domain.NetworkListener{
			{Address: "127.0.0.1", Port: 3000, Protocol: "tcp"}, // scores 0.10
		},
		Files: map[string]string{
			"/home/test/.config/Claude/claude_desktop_config.json": `{"mcpServers":{"fs":{"command":"node x.js"}}}`, // scores 0.9
		},
	}

	s := NewPassiveScanner(hclog.NewNullLogger(), adapter, emptyEngine())

	config := DefaultPassiveConfig()
	config.MinConfidence = 0.5
	results := s.Scan(context.Background(), config)

	require.Len(t, results.Candidates, 1)
	assert.Equal(t, "fs", results.Candidates[0].ConfigKey)
}

func TestPassiveScanner_ExclusionRuleDropsCandidate(t *testing.T) {
	t.Parallel()

	adapter := &platformtest.Adapter{
		PIDs:          []int{100},
		Names:         map[int]string{100: "chrome_crashpad_handler"},
		Commands:      map[int]string{100: "/opt/chrome/chrome_crashpad_handler"},
		Bidirectional: map[int]bool{100: true},
	}

	pack, err := rulepack.ParseJSON([]byte(`{"rules":[
	  {"match":{"process_name":"crashpad_handler"},"action":{"exclude":true}}]}`))
	require.NoError(t, err)
	engine := emptyEngine()
	engine.Add(pack)

	s := NewPassiveScanner(hclog.NewNullLogger(), adapter, engine)
	results := s.Scan(context.Background(), DefaultPassiveConfig())

	// Vetoed candidates never survive the filter, regardless of threshold.
	assert.Empty(t, results.Candidates)
}

func TestPassiveScanner_RulepackBoostPromotesCandidate(t *testing.T) {
	t.Parallel()

	adapter := &platformtest.Adapter{
		PIDs:     []int{100},
		Names:    map[int]string{100: "node"},
		Commands: map[int]string{100: "npx @modelcontextprotocol/server-filesystem /data"},
		Environs: map[int]map[string]string{100: {"MCP_DIR": "/data"}},
	}

	pack, err := rulepack.ParseJSON([]byte(`{"rules":[{
	  "match":{"command_contains":"@modelcontextprotocol/"},
	  "action":{
	    "add_evidence":{"type":"known_mcp_package","confidence":0.95,"source":"rulepack:core"},
	    "set_minimum_confidence":0.9
	  }}]}`))
	require.NoError(t, err)
	engine := emptyEngine()
	engine.Add(pack)

	s := NewPassiveScanner(hclog.NewNullLogger(), adapter, engine)

	config := DefaultPassiveConfig()
	config.MinConfidence = 0.9
	results := s.Scan(context.Background(), config)

	require.Len(t, results.Candidates, 1)
	c := results.Candidates[0]
	assert.GreaterOrEqual(t, c.ConfidenceScore, 0.9)
	assert.True(t, c.IsDirectDetection())
	assert.Len(t, c.Evidence, 2)
}

func TestPassiveScanner_CandidateCap(t *testing.T) {
	t.Parallel()

	var listeners []domain.NetworkListener
	for port := 3000; port < 3020; port++ {
		listeners = append(listeners, domain.NetworkListener{
			Address: "127.0.0.1", Port: port, Protocol: "tcp",
		})
	}
	adapter := &platformtest.Adapter{Listeners: listeners}

	// Boost one specific port so the cap provably keeps the best.
	pack, err := rulepack.ParseJSON([]byte(`{"rules":[
	  {"match":{"port":3010},"action":{"set_minimum_confidence":0.95}}]}`))
	require.NoError(t, err)
	engine := emptyEngine()
	engine.Add(pack)

	s := NewPassiveScanner(hclog.NewNullLogger(), adapter, engine)

	config := DefaultPassiveConfig()
	config.ScanConfigs = false
	config.MaxCandidates = 5
	results := s.Scan(context.Background(), config)

	require.Len(t, results.Candidates, 5)
	assert.Equal(t, 3010, results.Candidates[0].Port)
	assert.Equal(t, 20, results.NetworkSocketsChecked)
}

func TestPassiveScanner_DisabledSourcesDoNotRun(t *testing.T) {
	t.Parallel()

	adapter := &platformtest.Adapter{
		PIDs:     []int{100},
		Names:    map[int]string{100: "node"},
		Commands: map[int]string{100: fmt.Sprintf("node %s", "/x.js")},
	}

	s := NewPassiveScanner(hclog.NewNullLogger(), adapter, emptyEngine())

	config := PassiveConfig{MaxCandidates: 10} // everything disabled
	results := s.Scan(context.Background(), config)

	assert.Empty(t, results.Candidates)
	assert.Zero(t, results.ProcessesScanned)
}
