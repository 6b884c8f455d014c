package source

import (
	"context"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kholcomb/Kyros/internal/domain"
	"github.com/kholcomb/Kyros/internal/platform/platformtest"
)

const claudeConfigPath = "/home/test/.config/Claude/claude_desktop_config.json"

func TestConfigSource_DeclaredServer(t *testing.T) {
	t.Parallel()

	adapter := &platformtest.Adapter{
		Files: map[string]string{
			claudeConfigPath: `{"mcpServers":{"fs":{"command":"node","args":["/a/b.js"]}}}`,
		},
	}
	src := NewConfigSource(hclog.NewNullLogger(), adapter, nil)

	result, err := src.Detect(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, 1, result.ItemsChecked)

	c := result.Candidates[0]
	assert.Equal(t, claudeConfigPath, c.ConfigFile)
	assert.Equal(t, "fs", c.ConfigKey)
	assert.Equal(t, "node /a/b.js", c.Command)
	assert.Equal(t, domain.TransportStdio, c.TransportHint)

	require.Len(t, c.Evidence, 1)
	assert.Equal(t, "config_declared", c.Evidence[0].Type)
	assert.InDelta(t, 0.9, c.Evidence[0].Confidence, 1e-9)
	assert.InDelta(t, 0.9, c.ConfidenceScore, 1e-9)
	assert.True(t, c.IsDirectDetection())
}

func TestConfigSource_ServersArrayForm(t *testing.T) {
	t.Parallel()

	adapter := &platformtest.Adapter{
		Files: map[string]string{
			"/home/test/.config/mcp/servers.json": `{"servers":[
			  {"name":"weather","command":"python","args":["-m","weather_mcp"],"env":{"API_KEY":"k"}},
			  {"name":"no-command-skipped"},
			  {"name":"remote","command":"proxy","url":"http://127.0.0.1:9000"}
			]}`,
		},
	}
	src := NewConfigSource(hclog.NewNullLogger(), adapter, nil)

	result, err := src.Detect(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Candidates, 2)

	weather := result.Candidates[0]
	assert.Equal(t, "python -m weather_mcp", weather.Command)
	assert.Equal(t, map[string]string{"API_KEY": "k"}, weather.Environment)
	assert.Equal(t, domain.TransportStdio, weather.TransportHint)

	remote := result.Candidates[1]
	assert.Equal(t, "http://127.0.0.1:9000", remote.URL)
	assert.Equal(t, domain.TransportHTTP, remote.TransportHint)
}

func TestConfigSource_MalformedFileDoesNotAbort(t *testing.T) {
	t.Parallel()

	adapter := &platformtest.Adapter{
		Files: map[string]string{
			claudeConfigPath:                      `{broken`,
			"/home/test/.config/mcp/servers.json": `{"mcpServers":{"ok":{"command":"node x.js"}}}`,
		},
	}
	src := NewConfigSource(hclog.NewNullLogger(), adapter, nil)

	result, err := src.Detect(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "ok", result.Candidates[0].ConfigKey)
	assert.Equal(t, 2, result.ItemsChecked)
}

func TestConfigSource_AdditionalPaths(t *testing.T) {
	t.Parallel()

	adapter := &platformtest.Adapter{
		Files: map[string]string{
			"/opt/site/mcp.json": `{"mcpServers":{"site":{"command":"deno run server.ts"}}}`,
		},
	}
	src := NewConfigSource(hclog.NewNullLogger(), adapter, []string{"/opt/site/mcp.json"})

	result, err := src.Detect(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "site", result.Candidates[0].ConfigKey)
}

func TestConfigSource_ClaudeExtensions(t *testing.T) {
	t.Parallel()

	base := "/home/test/.config/Claude/Claude Extensions"
	adapter := &platformtest.Adapter{
		Dirs: map[string][]string{
			base:                     {"files-ext", "broken-ext"},
			base + "/files-ext":      {},
			base + "/broken-ext":     {},
		},
		Files: map[string]string{
			base + "/files-ext/dist/index.js": "// bundle",
		},
	}
	src := NewConfigSource(hclog.NewNullLogger(), adapter, nil)

	result, err := src.Detect(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)

	c := result.Candidates[0]
	assert.Equal(t, "files-ext", c.ConfigKey)
	assert.Equal(t, "node "+base+"/files-ext/dist/index.js", c.Command)
	assert.Equal(t, domain.TransportStdio, c.TransportHint)

	require.Len(t, c.Evidence, 1)
	assert.Equal(t, "claude_extension_installed", c.Evidence[0].Type)
	assert.InDelta(t, 0.95, c.Evidence[0].Confidence, 1e-9)
	assert.True(t, c.IsDirectDetection())
}

func TestConfigSource_NothingConfigured(t *testing.T) {
	t.Parallel()

	src := NewConfigSource(hclog.NewNullLogger(), &platformtest.Adapter{}, nil)

	result, err := src.Detect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
	assert.Zero(t, result.ItemsChecked)
}
