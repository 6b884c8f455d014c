package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/kholcomb/Kyros/internal/domain"
	kerr "github.com/kholcomb/Kyros/internal/errors"
	"github.com/kholcomb/Kyros/internal/platform"
)

// DefaultProbeTimeout bounds each handshake read.
const DefaultProbeTimeout = 5 * time.Second

// Prober speaks the MCP handshake to one candidate over one transport.
// Test returns (nil, nil) when the candidate is not applicable to this
// transport, a server on confirmation, and an error on a failed attempt.
type Prober interface {
	Name() string
	SetTimeout(timeout time.Duration)
	Test(ctx context.Context, candidate *domain.Candidate) (*domain.MCPServer, error)
}

// StdioProber spawns the candidate's command and performs the initialize
// handshake over its pipes. Candidates passively classified as Chromium IPC
// or LSP are never spawned.
type StdioProber struct {
	logger   hclog.Logger
	adapter  platform.Adapter
	detector Detector
	timeout  time.Duration
}

func NewStdioProber(logger hclog.Logger, adapter platform.Adapter) *StdioProber {
	return &StdioProber{
		logger:  logger.Named("probe.stdio"),
		adapter: adapter,
		timeout: DefaultProbeTimeout,
	}
}

func (p *StdioProber) Name() string { return "stdio" }

func (p *StdioProber) SetTimeout(timeout time.Duration) { p.timeout = timeout }

func (p *StdioProber) Test(ctx context.Context, candidate *domain.Candidate) (*domain.MCPServer, error) {
	if candidate.Command == "" {
		return nil, nil
	}
	if candidate.TransportHint != domain.TransportStdio && candidate.TransportHint != domain.TransportUnknown {
		return nil, nil
	}

	// Passive discrimination before spawning: known non-MCP stdio speakers
	// are skipped outright, both to save a spawn and to avoid perturbing
	// editor tooling.
	passive := p.detector.DetectFromProcessInfo(candidate)
	if passive.Type == ProtocolChromiumIPC || passive.Type == ProtocolLSP {
		p.logger.Debug("skipping non-MCP stdio candidate",
			"endpoint", candidate.Endpoint(), "protocol", passive.Type.String())
		return nil, nil
	}

	child, err := p.adapter.Spawn(ctx, candidate.Command)
	if err != nil {
		return nil, fmt.Errorf("spawn failed: %w", err)
	}
	defer child.Terminate()

	if !child.IsRunning() {
		return nil, kerr.ErrProcessExited
	}

	request := NewInitializeRequest(1)
	payload, err := request.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode initialize request: %w", err)
	}
	if err := child.WriteStdin(string(payload) + "\n"); err != nil {
		return nil, fmt.Errorf("failed to write initialize request: %w", err)
	}

	line, err := child.ReadStdoutLine(p.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to read initialize response: %w", err)
	}

	resp, err := ParseResponse([]byte(line))
	if err != nil {
		return nil, fmt.Errorf("%w: not JSON: %s", kerr.ErrInvalidResponse, err)
	}
	if !resp.IsValid() {
		return nil, fmt.Errorf("%w: not a JSON-RPC 2.0 response", kerr.ErrInvalidResponse)
	}

	server := &domain.MCPServer{
		Candidate:     *candidate,
		TransportType: domain.TransportStdio,
		DiscoveredAt:  time.Now(),
	}
	applyInitializeResult(resp.Result, server)

	p.logger.Debug("stdio handshake confirmed",
		"endpoint", candidate.Endpoint(), "server", server.ServerName)
	return server, nil
}

var _ Prober = (*StdioProber)(nil)
