package probe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kholcomb/Kyros/internal/domain"
)

func initializeResultBody(t *testing.T, id any) string {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo":      map[string]any{"name": "remote-mcp", "version": "0.9.1"},
			"capabilities":    map[string]any{"tools": map[string]any{}},
		},
	})
	require.NoError(t, err)
	return string(body)
}

func TestHTTPProber_SSEDiscovery(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/sse", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "event: ping\ndata: {}\n\nevent: endpoint\ndata: /messages/?session_id=abc123\n\n")
	})
	mux.HandleFunc("/messages/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"method":"initialize"`)
		_, _ = io.WriteString(w, initializeResultBody(t, 1))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	prober := NewHTTPProber(hclog.NewNullLogger())
	candidate := domain.Candidate{URL: ts.URL, TransportHint: domain.TransportHTTP}

	server, err := prober.Test(context.Background(), &candidate)
	require.NoError(t, err)
	require.NotNil(t, server)

	assert.Equal(t, domain.TransportHTTP, server.TransportType)
	assert.Equal(t, "remote-mcp", server.ServerName)
	assert.Equal(t, ts.URL+"/messages/?session_id=abc123", server.Candidate.URL)
	assert.True(t, server.HasTools())
}

func TestHTTPProber_SSEAuthChallenge(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/sse", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, "Authentication required (MCP session)")
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	prober := NewHTTPProber(hclog.NewNullLogger())
	candidate := domain.Candidate{URL: ts.URL, TransportHint: domain.TransportHTTP}

	server, err := prober.Test(context.Background(), &candidate)
	require.NoError(t, err)
	require.NotNil(t, server)

	// Auth-protected SSE endpoint: confirmed, URL updated to the SSE path,
	// no server identity to populate.
	assert.Equal(t, ts.URL+"/sse", server.Candidate.URL)
	assert.Empty(t, server.ServerName)
	assert.Empty(t, server.ServerVersion)
	assert.False(t, server.DiscoveredAt.IsZero())
}

func TestHTTPProber_SSEAuthChallengeWithoutKeywordsFallsThrough(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/sse", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, "go away")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	prober := NewHTTPProber(hclog.NewNullLogger())
	candidate := domain.Candidate{URL: ts.URL, TransportHint: domain.TransportHTTP}

	server, err := prober.Test(context.Background(), &candidate)
	assert.Error(t, err)
	assert.Nil(t, server)
}

func TestHTTPProber_DirectPostFallback(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	// No /sse endpoint; root rejects; /messages answers.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		_, _ = io.WriteString(w, initializeResultBody(t, 1))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	prober := NewHTTPProber(hclog.NewNullLogger())
	candidate := domain.Candidate{URL: ts.URL, TransportHint: domain.TransportUnknown}

	server, err := prober.Test(context.Background(), &candidate)
	require.NoError(t, err)
	require.NotNil(t, server)
	assert.Equal(t, ts.URL+"/messages", server.Candidate.URL)
	assert.Equal(t, "remote-mcp", server.ServerName)
}

func TestHTTPProber_DirectPostErrorResponseConfirms(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"init required"}}`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	prober := NewHTTPProber(hclog.NewNullLogger())
	candidate := domain.Candidate{URL: ts.URL, TransportHint: domain.TransportHTTP}

	server, err := prober.Test(context.Background(), &candidate)
	require.NoError(t, err)
	require.NotNil(t, server)
	assert.Empty(t, server.ServerName)
}

func TestHTTPProber_NonMCPServer(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>hello</html>")
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	prober := NewHTTPProber(hclog.NewNullLogger())
	candidate := domain.Candidate{URL: ts.URL, TransportHint: domain.TransportHTTP}

	server, err := prober.Test(context.Background(), &candidate)
	assert.Error(t, err)
	assert.Nil(t, server)
}

func TestHTTPProber_SkipsInapplicableCandidates(t *testing.T) {
	t.Parallel()

	prober := NewHTTPProber(hclog.NewNullLogger())

	noURL := domain.Candidate{Command: "node x.js", TransportHint: domain.TransportStdio}
	server, err := prober.Test(context.Background(), &noURL)
	assert.NoError(t, err)
	assert.Nil(t, server)

	stdioHint := domain.Candidate{URL: "http://127.0.0.1:1", TransportHint: domain.TransportStdio}
	server, err = prober.Test(context.Background(), &stdioHint)
	assert.NoError(t, err)
	assert.Nil(t, server)
}

func TestParseSSEEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name:     "plain endpoint event",
			body:     "event: endpoint\ndata: /messages/?session_id=xyz\n\n",
			expected: "/messages/?session_id=xyz",
		},
		{
			name:     "other events before and after",
			body:     "event: ping\ndata: {}\n\nevent: endpoint\ndata: /rpc\n\nevent: ping\ndata: {}\n\n",
			expected: "/rpc",
		},
		{
			name:     "crlf line endings",
			body:     "event: endpoint\r\ndata: /messages\r\n\r\n",
			expected: "/messages",
		},
		{
			name:     "data without endpoint event",
			body:     "event: message\ndata: /not-this\n\n",
			expected: "",
		},
		{
			name:     "empty body",
			body:     "",
			expected: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, ParseSSEEndpoint(tc.body))
		})
	}
}
