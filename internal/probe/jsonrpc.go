// Package probe implements active verification: protocol discrimination,
// the MCP initialize handshake over stdio and HTTP/SSE, and post-handshake
// interrogation of tools, resources, templates, and prompts.
package probe

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kholcomb/Kyros/internal/domain"
)

// MCPProtocolVersion is the protocol revision offered in the handshake.
const MCPProtocolVersion = "2024-11-05"

// Client identity sent in initialize requests.
const (
	clientName    = "kyros"
	clientVersion = "2.0.0"
)

// Request is an outgoing JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// Encode renders the request as a single-line JSON document.
func (r Request) Encode() ([]byte, error) {
	return json.Marshal(r)
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeParams struct {
	ProtocolVersion string     `json:"protocolVersion"`
	Capabilities    struct{}   `json:"capabilities"`
	ClientInfo      clientInfo `json:"clientInfo"`
}

// NewInitializeRequest builds the MCP initialize request used by every
// transport probe.
func NewInitializeRequest(id int) Request {
	return Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "initialize",
		Params: initializeParams{
			ProtocolVersion: MCPProtocolVersion,
			ClientInfo:      clientInfo{Name: clientName, Version: clientVersion},
		},
	}
}

// NewListRequest builds one of the capability listing requests
// (tools/list, resources/list, resources/templates/list, prompts/list).
func NewListRequest(id int, method string) Request {
	return Request{JSONRPC: "2.0", ID: id, Method: method, Params: struct{}{}}
}

// ResponseError is the error member of a JSON-RPC response.
type ResponseError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Response is an incoming JSON-RPC 2.0 response. Raw members distinguish
// absent from null.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ParseResponse decodes one JSON-RPC message.
func ParseResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// IsValid reports whether the message is a well-formed JSON-RPC 2.0
// response: version tag, an id, and either result or error. Both result and
// error responses count as MCP indicators.
func (r *Response) IsValid() bool {
	if r.JSONRPC != "2.0" {
		return false
	}
	if len(r.ID) == 0 {
		return false
	}
	return len(r.Result) > 0 || r.Error != nil
}

// resultField reports whether the result object carries the given key.
func (r *Response) resultField(key string) bool {
	if len(r.Result) == 0 {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(r.Result, &fields); err != nil {
		return false
	}
	_, ok := fields[key]
	return ok
}

// applyInitializeResult copies the server identity out of an initialize
// result into the confirmed server record.
func applyInitializeResult(result json.RawMessage, server *domain.MCPServer) {
	if len(result) == 0 {
		return
	}
	var init mcp.InitializeResult
	if err := json.Unmarshal(result, &init); err != nil {
		return
	}
	server.ProtocolVersion = init.ProtocolVersion
	server.ServerName = init.ServerInfo.Name
	server.ServerVersion = init.ServerInfo.Version
	server.Capabilities = init.Capabilities
}
