// Package errors defines domain-level errors used throughout the scanner.
// Phase coordinators convert these into strings on the result objects; the
// sentinels exist so probes and sources can branch on the cause.
package errors

import (
	"errors"
)

var (
	// ErrNoTransport indicates that a candidate carries neither a runnable
	// command nor a URL, so no probe can test it.
	ErrNoTransport = errors.New("candidate has no testable transport")

	// ErrNotMCP indicates that a probe found no MCP server at the candidate;
	// the HTTP probe returns it when no endpoint answered the handshake.
	ErrNotMCP = errors.New("candidate is not an MCP server")

	// ErrProbeTimeout indicates that a probe did not receive a response
	// within its configured deadline.
	ErrProbeTimeout = errors.New("probe timed out")

	// ErrProcessExited indicates that a spawned child terminated before the
	// probe finished talking to it.
	ErrProcessExited = errors.New("process exited")

	// ErrInvalidResponse indicates a response that is not valid JSON-RPC 2.0.
	ErrInvalidResponse = errors.New("invalid JSON-RPC response")

	// ErrRulepackInvalid indicates a rulepack document that failed schema
	// validation. The failing rulepack is skipped; others still load.
	ErrRulepackInvalid = errors.New("invalid rulepack")

	// ErrUnsupportedPlatform indicates the host OS has no platform adapter.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)
