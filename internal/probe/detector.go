package probe

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kholcomb/Kyros/internal/domain"
	"github.com/kholcomb/Kyros/internal/platform"
)

// ProtocolType classifies what a stdio child actually speaks.
type ProtocolType int

const (
	ProtocolUnknown ProtocolType = iota
	ProtocolMCP
	ProtocolLSP
	ProtocolChromiumIPC
	ProtocolGenericJSONRPC
	ProtocolBinary
	ProtocolInvalid
)

// String returns the display name used in signatures and logs.
func (p ProtocolType) String() string {
	switch p {
	case ProtocolMCP:
		return "Model Context Protocol"
	case ProtocolLSP:
		return "Language Server Protocol"
	case ProtocolChromiumIPC:
		return "Chromium IPC"
	case ProtocolGenericJSONRPC:
		return "Generic JSON-RPC"
	case ProtocolBinary:
		return "Binary Protocol"
	case ProtocolInvalid:
		return "Invalid"
	default:
		return "Unknown"
	}
}

// Signature is one protocol classification with its supporting reason.
type Signature struct {
	Type       ProtocolType
	Confidence float64
	Reason     string
}

// Confidence thresholds for accepting an active classification.
const (
	mcpAcceptThreshold      = 0.7
	lspAcceptThreshold      = 0.8
	chromiumAcceptThreshold = 0.6
	bestGuessThreshold      = 0.5
)

// chromiumPatterns appear in the process name or command line of Chromium
// helper processes.
var chromiumPatterns = []string{
	"Helper (GPU)",
	"Helper (Renderer)",
	"Helper (Plugin)",
	"Helper (Network Service)",
	"Helper (Utility)",
	"--type=gpu-process",
	"--type=renderer",
	"--type=utility",
	"--type=zygote",
	"--enable-crashpad",
	"--enable-crash-reporter",
}

// lspPatterns identify language servers.
var lspPatterns = []string{
	"vscode-html-language-server",
	"vscode-json-language-server",
	"vscode-css-language-server",
	"typescript-language-server",
	"eslint-language-server",
	"language-server",
	"languageserver",
	"--stdio",
}

// Detector discriminates MCP from the other protocols found behind stdio
// pipes, first passively from process info, then actively by probing.
type Detector struct{}

func (d Detector) isChromiumIPCProcess(c *domain.Candidate) bool {
	for _, pattern := range chromiumPatterns {
		if strings.Contains(c.ProcessName, pattern) || strings.Contains(c.Command, pattern) {
			return true
		}
	}
	return false
}

func (d Detector) isLSPProcess(c *domain.Candidate) bool {
	for _, pattern := range lspPatterns {
		if strings.Contains(c.ProcessName, pattern) || strings.Contains(c.Command, pattern) {
			return true
		}
	}

	// node --node-ipc children inside editor extension trees are language
	// feature servers.
	if strings.Contains(c.Command, "--node-ipc") &&
		(strings.Contains(c.Command, ".vscode/extensions") || strings.Contains(c.Command, "language-features")) {
		return true
	}
	return false
}

// DetectFromProcessInfo classifies the candidate without any I/O. Stdio
// verification must skip candidates classified as ChromiumIPC or LSP here.
func (d Detector) DetectFromProcessInfo(c *domain.Candidate) Signature {
	if d.isChromiumIPCProcess(c) {
		return Signature{
			Type:       ProtocolChromiumIPC,
			Confidence: 0.95,
			Reason:     "Chromium helper process pattern detected in process name/command",
		}
	}
	if d.isLSPProcess(c) {
		return Signature{
			Type:       ProtocolLSP,
			Confidence: 0.90,
			Reason:     "LSP server pattern detected in process name/command",
		}
	}
	return Signature{Type: ProtocolUnknown, Reason: "No distinctive protocol patterns found"}
}

// detectMCP writes a newline-terminated MCP initialize and grades the reply.
func (d Detector) detectMCP(p platform.Process, timeout time.Duration) Signature {
	request := NewInitializeRequest(1)
	payload, err := request.Encode()
	if err != nil {
		return Signature{Type: ProtocolUnknown, Reason: "failed to encode initialize request"}
	}
	if err := p.WriteStdin(string(payload) + "\n"); err != nil {
		return Signature{Type: ProtocolUnknown, Reason: fmt.Sprintf("stdin write failed: %v", err)}
	}

	line, err := p.ReadStdoutLine(timeout)
	if err != nil {
		return Signature{Type: ProtocolUnknown, Reason: fmt.Sprintf("no response: %v", err)}
	}
	if line == "" {
		return Signature{Type: ProtocolUnknown, Reason: "No response"}
	}

	resp, err := ParseResponse([]byte(line))
	if err != nil {
		return Signature{Type: ProtocolInvalid, Reason: "Response is not valid JSON"}
	}
	if resp.JSONRPC != "2.0" {
		return Signature{Type: ProtocolGenericJSONRPC, Confidence: 0.50, Reason: "Valid JSON but not JSON-RPC 2.0"}
	}

	switch {
	case resp.resultField("protocolVersion"):
		return Signature{Type: ProtocolMCP, Confidence: 0.99, Reason: "Valid MCP initialize response with protocolVersion"}
	case resp.resultField("serverInfo"):
		return Signature{Type: ProtocolMCP, Confidence: 0.95, Reason: "Valid MCP initialize response with serverInfo"}
	case len(resp.Result) > 0:
		return Signature{Type: ProtocolGenericJSONRPC, Confidence: 0.60, Reason: "Valid JSON-RPC response but missing MCP-specific fields"}
	case resp.Error != nil:
		return Signature{Type: ProtocolMCP, Confidence: 0.75, Reason: "MCP error response (server exists but rejected initialize)"}
	default:
		return Signature{Type: ProtocolGenericJSONRPC, Confidence: 0.50, Reason: "Valid JSON-RPC 2.0 but cannot determine if MCP"}
	}
}

// detectLSP writes a Content-Length framed LSP initialize; an LSP server
// answers with the same framing.
func (d Detector) detectLSP(p platform.Process, timeout time.Duration) Signature {
	body, err := Request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "initialize",
		Params: map[string]any{
			"processId":    os.Getpid(),
			"rootUri":      nil,
			"capabilities": struct{}{},
		},
	}.Encode()
	if err != nil {
		return Signature{Type: ProtocolUnknown}
	}

	framed := fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
	if err := p.WriteStdin(framed); err != nil {
		return Signature{Type: ProtocolUnknown}
	}

	line, err := p.ReadStdoutLine(timeout)
	if err != nil {
		return Signature{Type: ProtocolUnknown}
	}
	if strings.HasPrefix(line, "Content-Length:") {
		return Signature{Type: ProtocolLSP, Confidence: 0.95, Reason: "Content-Length header detected in response"}
	}
	return Signature{Type: ProtocolUnknown}
}

// detectChromiumIPC treats binary bytes or stubborn silence as the binary
// Chromium channel.
func (d Detector) detectChromiumIPC(p platform.Process, timeout time.Duration) Signature {
	line, err := p.ReadStdoutLine(timeout)
	if err != nil {
		return Signature{Type: ProtocolChromiumIPC, Confidence: 0.60, Reason: "No response on stdio probe"}
	}
	if line == "" {
		return Signature{Type: ProtocolChromiumIPC, Confidence: 0.80, Reason: "No text response on stdio (binary protocol)"}
	}
	if hasBinaryBytes(line) {
		return Signature{Type: ProtocolBinary, Confidence: 0.85, Reason: "Binary data detected on stdio"}
	}
	return Signature{Type: ProtocolUnknown}
}

func hasBinaryBytes(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == 0 || (c < 32 && c != '\n' && c != '\r' && c != '\t') {
			return true
		}
	}
	return false
}

// DetectFromStdio runs the active probes in specificity order, MCP first,
// and returns the first confident classification, falling back to the best
// guess.
func (d Detector) DetectFromStdio(p platform.Process, timeout time.Duration) Signature {
	if p == nil || !p.IsRunning() {
		return Signature{Type: ProtocolUnknown, Reason: "Process not running"}
	}

	mcpSig := d.detectMCP(p, timeout)
	if mcpSig.Type == ProtocolMCP && mcpSig.Confidence > mcpAcceptThreshold {
		return mcpSig
	}

	lspSig := d.detectLSP(p, timeout)
	if lspSig.Type == ProtocolLSP && lspSig.Confidence > lspAcceptThreshold {
		return lspSig
	}

	chromiumSig := d.detectChromiumIPC(p, timeout)
	if chromiumSig.Confidence > chromiumAcceptThreshold {
		return chromiumSig
	}

	for _, sig := range []Signature{mcpSig, lspSig, chromiumSig} {
		if sig.Confidence > bestGuessThreshold {
			return sig
		}
	}
	return Signature{Type: ProtocolUnknown, Reason: "Could not determine protocol"}
}
