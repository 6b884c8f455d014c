package probe

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/kholcomb/Kyros/internal/domain"
	kerr "github.com/kholcomb/Kyros/internal/errors"
)

// maxHTTPBodyBytes bounds how much of a response body a probe will read.
const maxHTTPBodyBytes = 1 << 20

// directProbePaths are tried, in order, when SSE discovery fails.
var directProbePaths = []string{"", "/messages", "/rpc"}

// sseAuthKeywords mark an auth challenge on the SSE endpoint as MCP-shaped.
var sseAuthKeywords = []string{"authentication", "unauthorized", "session", "token", "mcp"}

// postAuthKeywords mark an auth challenge on a direct POST as MCP-shaped.
var postAuthKeywords = []string{"authentication", "unauthorized", "session", "mcp"}

// HTTPProber performs the initialize handshake against HTTP/SSE candidates:
// SSE endpoint discovery first, then direct POSTs to well-known paths.
type HTTPProber struct {
	logger  hclog.Logger
	client  *http.Client
	timeout time.Duration
}

func NewHTTPProber(logger hclog.Logger) *HTTPProber {
	return &HTTPProber{
		logger:  logger.Named("probe.http"),
		client:  &http.Client{},
		timeout: DefaultProbeTimeout,
	}
}

func (p *HTTPProber) Name() string { return "http" }

func (p *HTTPProber) SetTimeout(timeout time.Duration) { p.timeout = timeout }

func (p *HTTPProber) Test(ctx context.Context, candidate *domain.Candidate) (*domain.MCPServer, error) {
	if candidate.URL == "" {
		return nil, nil
	}
	if candidate.TransportHint != domain.TransportHTTP && candidate.TransportHint != domain.TransportUnknown {
		return nil, nil
	}

	if server, err := p.trySSETransport(ctx, candidate); server != nil {
		return server, nil
	} else if err != nil {
		p.logger.Debug("sse probe failed", "url", candidate.URL, "error", err)
	}

	var lastErr error
	for _, path := range directProbePaths {
		server, err := p.tryDirectPost(ctx, candidate, candidate.URL+path)
		if server != nil {
			return server, nil
		}
		if err != nil {
			lastErr = err
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: no MCP endpoint at %s", kerr.ErrNotMCP, candidate.URL)
}

// trySSETransport GETs <url>/sse, treats an MCP-flavored auth challenge as
// confirmation, otherwise extracts the endpoint event and completes the
// handshake with a POST to the advertised path.
func (p *HTTPProber) trySSETransport(ctx context.Context, candidate *domain.Candidate) (*domain.MCPServer, error) {
	sseURL := candidate.URL + "/sse"

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, sseURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxHTTPBodyBytes))
		if containsAnyFold(string(body), sseAuthKeywords) {
			// An auth-protected SSE endpoint is itself a positive
			// indicator; there is no JSON to populate server info from.
			server := p.newServer(candidate, sseURL)
			return server, nil
		}
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		return nil, nil
	}

	endpointPath, err := readSSEEndpoint(resp.Body)
	if err != nil || endpointPath == "" {
		return nil, err
	}

	messagesURL := candidate.URL + endpointPath
	response, status, err := p.postInitialize(ctx, messagesURL)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusUnauthorized && status != http.StatusForbidden {
		return nil, nil
	}
	if response == nil || !response.IsValid() {
		return nil, nil
	}

	server := p.newServer(candidate, messagesURL)
	applyInitializeResult(response.Result, server)
	return server, nil
}

// tryDirectPost sends the initialize request straight to testURL. A valid
// JSON-RPC response or an MCP-flavored auth challenge confirms the server.
func (p *HTTPProber) tryDirectPost(ctx context.Context, candidate *domain.Candidate, testURL string) (*domain.MCPServer, error) {
	request := NewInitializeRequest(1)
	payload, err := request.Encode()
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, testURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	isAuthChallenge := resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden
	if resp.StatusCode != http.StatusOK && !isAuthChallenge {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPBodyBytes))
	if err != nil {
		return nil, err
	}

	response, parseErr := ParseResponse(body)
	if parseErr != nil {
		if isAuthChallenge && containsAnyFold(string(body), postAuthKeywords) {
			// Auth challenge with MCP keywords confirms the endpoint even
			// without a JSON-RPC body.
			return p.newServer(candidate, testURL), nil
		}
		return nil, nil
	}
	if !response.IsValid() {
		return nil, nil
	}

	server := p.newServer(candidate, testURL)
	applyInitializeResult(response.Result, server)
	return server, nil
}

func (p *HTTPProber) postInitialize(ctx context.Context, url string) (*Response, int, error) {
	request := NewInitializeRequest(1)
	payload, err := request.Encode()
	if err != nil {
		return nil, 0, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}

	response, err := ParseResponse(body)
	if err != nil {
		return nil, resp.StatusCode, nil
	}
	return response, resp.StatusCode, nil
}

func (p *HTTPProber) newServer(candidate *domain.Candidate, confirmedURL string) *domain.MCPServer {
	server := &domain.MCPServer{
		Candidate:     *candidate,
		TransportType: domain.TransportHTTP,
		DiscoveredAt:  time.Now(),
	}
	server.Candidate.URL = confirmedURL
	return server
}

// readSSEEndpoint consumes an event stream until the endpoint event's data
// line arrives. The read is bounded by the request context deadline; a
// stream that closes or deadlines before advertising an endpoint yields "".
func readSSEEndpoint(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(io.LimitReader(r, maxHTTPBodyBytes))
	endpointEventSeen := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if value, ok := strings.CutPrefix(line, "event:"); ok {
			endpointEventSeen = strings.TrimSpace(value) == "endpoint"
			continue
		}
		if value, ok := strings.CutPrefix(line, "data:"); ok && endpointEventSeen {
			return strings.TrimSpace(value), nil
		}
	}
	// Deadline or close without an endpoint event: report what we have.
	return "", nil
}

// ParseSSEEndpoint extracts the endpoint path from a complete SSE body:
// the data line following an "event: endpoint" line.
func ParseSSEEndpoint(body string) string {
	endpoint, _ := readSSEEndpoint(strings.NewReader(body))
	return endpoint
}

func containsAnyFold(s string, keywords []string) bool {
	lower := strings.ToLower(s)
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

var _ Prober = (*HTTPProber)(nil)
