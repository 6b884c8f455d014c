package domain

import (
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolDefinition is one entry from a tools/list response, with the required
// and optional parameter names derived from the input schema. Optional
// parameters keep the schema's property order.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`

	RequiredParameters []string `json:"required_parameters,omitempty"`
	OptionalParameters []string `json:"optional_parameters,omitempty"`
}

// ResourceDefinition is one entry from a resources/list response.
type ResourceDefinition struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
}

// ResourceTemplate is one entry from a resources/templates/list response.
// Parameters are the {placeholder} names scanned from the URI template,
// left to right.
type ResourceTemplate struct {
	URITemplate string   `json:"uri_template"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	MimeType    string   `json:"mime_type,omitempty"`
	Parameters  []string `json:"parameters,omitempty"`
}

// PromptArgument is one argument of a prompt definition.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// PromptDefinition is one entry from a prompts/list response.
type PromptDefinition struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// MCPServer is a confirmed MCP server: the originating candidate plus the
// identity returned by the initialize handshake and, when interrogation ran,
// the server's advertised tools, resources, templates, and prompts.
type MCPServer struct {
	Candidate Candidate `json:"candidate"`

	ServerName      string                 `json:"server_name,omitempty"`
	ServerVersion   string                 `json:"server_version,omitempty"`
	ProtocolVersion string                 `json:"protocol_version,omitempty"`
	Capabilities    mcp.ServerCapabilities `json:"capabilities"`
	TransportType   TransportType          `json:"transport_type"`

	Tools             []ToolDefinition     `json:"tools,omitempty"`
	Resources         []ResourceDefinition `json:"resources,omitempty"`
	ResourceTemplates []ResourceTemplate   `json:"resource_templates,omitempty"`
	Prompts           []PromptDefinition   `json:"prompts,omitempty"`

	InterrogationAttempted  bool     `json:"interrogation_attempted"`
	InterrogationSuccessful bool     `json:"interrogation_successful"`
	InterrogationErrors     []string `json:"interrogation_errors,omitempty"`
	InterrogationSeconds    float64  `json:"interrogation_time_seconds"`

	DiscoveredAt time.Time `json:"discovered_at"`
}

// HasTools reports whether the server advertised the tools capability.
func (s MCPServer) HasTools() bool { return s.Capabilities.Tools != nil }

// HasResources reports whether the server advertised the resources capability.
func (s MCPServer) HasResources() bool { return s.Capabilities.Resources != nil }

// HasPrompts reports whether the server advertised the prompts capability.
func (s MCPServer) HasPrompts() bool { return s.Capabilities.Prompts != nil }

// Endpoint returns the candidate's identity string.
func (s MCPServer) Endpoint() string { return s.Candidate.Endpoint() }
