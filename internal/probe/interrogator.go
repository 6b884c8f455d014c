package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kholcomb/Kyros/internal/domain"
	"github.com/kholcomb/Kyros/internal/platform"
)

// InterrogationConfig controls which capability listings run and how large
// each may grow.
type InterrogationConfig struct {
	Enabled bool

	GetTools             bool
	GetResources         bool
	GetResourceTemplates bool
	GetPrompts           bool

	// Caps keep a hostile or enormous server from flooding the results;
	// surplus items are silently discarded.
	MaxTools     int
	MaxResources int
	MaxPrompts   int

	// Timeout bounds each listing request.
	Timeout time.Duration
}

// DefaultInterrogationConfig enables every listing with the standard caps.
func DefaultInterrogationConfig() InterrogationConfig {
	return InterrogationConfig{
		Enabled:              true,
		GetTools:             true,
		GetResources:         true,
		GetResourceTemplates: true,
		GetPrompts:           true,
		MaxTools:             100,
		MaxResources:         100,
		MaxPrompts:           50,
		Timeout:              5 * time.Second,
	}
}

// sendFunc issues one JSON-RPC request and returns the decoded response.
// The interrogator is parameterized over it so the same listing logic
// serves both transports.
type sendFunc func(request Request) (*Response, error)

// Interrogator enumerates a confirmed server's tools, resources, resource
// templates, and prompts. For stdio servers it spawns a fresh child for the
// whole interrogation; handshake children are never reused.
type Interrogator struct {
	logger  hclog.Logger
	config  InterrogationConfig
	adapter platform.Adapter
	client  *http.Client
}

func NewInterrogator(logger hclog.Logger, config InterrogationConfig, adapter platform.Adapter) *Interrogator {
	return &Interrogator{
		logger:  logger.Named("interrogator"),
		config:  config,
		adapter: adapter,
		client:  &http.Client{},
	}
}

// Interrogate runs the configured listings against the server, recording
// per-kind failures without aborting the remaining kinds. The child (for
// stdio) is terminated on every exit path.
func (i *Interrogator) Interrogate(ctx context.Context, server *domain.MCPServer) {
	server.InterrogationAttempted = true
	if !i.config.Enabled {
		return
	}

	start := time.Now()
	defer func() {
		server.InterrogationSeconds = time.Since(start).Seconds()
		server.InterrogationSuccessful = len(server.InterrogationErrors) == 0
	}()

	send, cleanup, err := i.transportSend(ctx, server)
	if err != nil {
		server.InterrogationErrors = append(server.InterrogationErrors, err.Error())
		return
	}
	defer cleanup()

	if i.config.GetTools && server.HasTools() {
		i.interrogateTools(server, send)
	}
	if i.config.GetResources && server.HasResources() {
		i.interrogateResources(server, send)
	}
	if i.config.GetResourceTemplates && server.HasResources() {
		i.interrogateResourceTemplates(server, send)
	}
	if i.config.GetPrompts && server.HasPrompts() {
		i.interrogatePrompts(server, send)
	}
}

// transportSend builds the request function for the server's transport.
func (i *Interrogator) transportSend(ctx context.Context, server *domain.MCPServer) (sendFunc, func(), error) {
	switch server.TransportType {
	case domain.TransportStdio:
		if i.adapter == nil || server.Candidate.Command == "" {
			return nil, nil, fmt.Errorf("cannot interrogate stdio server: missing platform or command")
		}

		child, err := i.adapter.Spawn(ctx, server.Candidate.Command)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to spawn process for interrogation: %w", err)
		}

		send := func(request Request) (*Response, error) {
			payload, err := request.Encode()
			if err != nil {
				return nil, err
			}
			if err := child.WriteStdin(string(payload) + "\n"); err != nil {
				return nil, err
			}
			line, err := child.ReadStdoutLine(i.config.Timeout)
			if err != nil {
				return nil, err
			}
			return ParseResponse([]byte(line))
		}
		return send, child.Terminate, nil

	case domain.TransportHTTP:
		url := server.Candidate.URL
		if url == "" {
			return nil, nil, fmt.Errorf("cannot interrogate HTTP server: missing URL")
		}

		send := func(request Request) (*Response, error) {
			payload, err := request.Encode()
			if err != nil {
				return nil, err
			}

			reqCtx, cancel := context.WithTimeout(ctx, i.config.Timeout)
			defer cancel()

			req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(payload))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := i.client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("HTTP request failed with status %d", resp.StatusCode)
			}
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPBodyBytes))
			if err != nil {
				return nil, err
			}
			return ParseResponse(body)
		}
		return send, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown transport type")
	}
}

func (i *Interrogator) interrogateTools(server *domain.MCPServer, send sendFunc) {
	response, err := send(NewListRequest(1, "tools/list"))
	if err != nil {
		server.InterrogationErrors = append(server.InterrogationErrors,
			fmt.Sprintf("Tools interrogation failed: %v", err))
		return
	}
	i.parseToolsResponse(response, server)
}

func (i *Interrogator) interrogateResources(server *domain.MCPServer, send sendFunc) {
	response, err := send(NewListRequest(2, "resources/list"))
	if err != nil {
		server.InterrogationErrors = append(server.InterrogationErrors,
			fmt.Sprintf("Resources interrogation failed: %v", err))
		return
	}
	i.parseResourcesResponse(response, server)
}

func (i *Interrogator) interrogateResourceTemplates(server *domain.MCPServer, send sendFunc) {
	response, err := send(NewListRequest(3, "resources/templates/list"))
	if err != nil {
		server.InterrogationErrors = append(server.InterrogationErrors,
			fmt.Sprintf("Resource templates interrogation failed: %v", err))
		return
	}
	i.parseResourceTemplatesResponse(response, server)
}

func (i *Interrogator) interrogatePrompts(server *domain.MCPServer, send sendFunc) {
	response, err := send(NewListRequest(4, "prompts/list"))
	if err != nil {
		server.InterrogationErrors = append(server.InterrogationErrors,
			fmt.Sprintf("Prompts interrogation failed: %v", err))
		return
	}
	i.parsePromptsResponse(response, server)
}

// wire shape of tools/list entries; the input schema stays raw so property
// order survives.
type toolsListResult struct {
	Tools []struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		InputSchema json.RawMessage `json:"inputSchema"`
	} `json:"tools"`
}

func (i *Interrogator) parseToolsResponse(response *Response, server *domain.MCPServer) {
	if response == nil || len(response.Result) == 0 {
		return
	}
	var result toolsListResult
	if err := json.Unmarshal(response.Result, &result); err != nil {
		return
	}

	for _, entry := range result.Tools {
		if len(server.Tools) >= i.config.MaxTools {
			break
		}

		tool := domain.ToolDefinition{
			Name:        entry.Name,
			Description: entry.Description,
			InputSchema: entry.InputSchema,
		}
		tool.RequiredParameters, tool.OptionalParameters = schemaParameters(entry.InputSchema)
		server.Tools = append(server.Tools, tool)
	}
}

// schemaParameters derives required and optional parameter names from a
// JSON schema. Optional parameters keep the schema's property order.
func schemaParameters(schema json.RawMessage) (required, optional []string) {
	if len(schema) == 0 {
		return nil, nil
	}

	var parsed struct {
		Required   []string        `json:"required"`
		Properties json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(schema, &parsed); err != nil {
		return nil, nil
	}
	required = parsed.Required

	requiredSet := make(map[string]struct{}, len(required))
	for _, name := range required {
		requiredSet[name] = struct{}{}
	}
	for _, name := range orderedObjectKeys(parsed.Properties) {
		if _, ok := requiredSet[name]; !ok {
			optional = append(optional, name)
		}
	}
	return required, optional
}

// orderedObjectKeys returns a JSON object's keys in document order, which
// map-based decoding would lose.
func orderedObjectKeys(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		key, ok := tok.(string)
		if !ok {
			return keys
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return keys
		}
		keys = append(keys, key)
	}
	return keys
}

func (i *Interrogator) parseResourcesResponse(response *Response, server *domain.MCPServer) {
	if response == nil || len(response.Result) == 0 {
		return
	}
	var result mcp.ListResourcesResult
	if err := json.Unmarshal(response.Result, &result); err != nil {
		return
	}

	for _, resource := range result.Resources {
		if len(server.Resources) >= i.config.MaxResources {
			break
		}
		server.Resources = append(server.Resources, domain.ResourceDefinition{
			URI:         resource.URI,
			Name:        resource.Name,
			Description: resource.Description,
			MimeType:    resource.MIMEType,
		})
	}
}

// wire shape of resources/templates/list entries.
type resourceTemplatesListResult struct {
	ResourceTemplates []struct {
		URITemplate string `json:"uriTemplate"`
		Name        string `json:"name"`
		Description string `json:"description"`
		MimeType    string `json:"mimeType"`
	} `json:"resourceTemplates"`
}

func (i *Interrogator) parseResourceTemplatesResponse(response *Response, server *domain.MCPServer) {
	if response == nil || len(response.Result) == 0 {
		return
	}
	var result resourceTemplatesListResult
	if err := json.Unmarshal(response.Result, &result); err != nil {
		return
	}

	for _, entry := range result.ResourceTemplates {
		if len(server.ResourceTemplates) >= i.config.MaxResources {
			break
		}
		server.ResourceTemplates = append(server.ResourceTemplates, domain.ResourceTemplate{
			URITemplate: entry.URITemplate,
			Name:        entry.Name,
			Description: entry.Description,
			MimeType:    entry.MimeType,
			Parameters:  TemplateParameters(entry.URITemplate),
		})
	}
}

// TemplateParameters extracts {placeholder} names from a URI template,
// left to right.
func TemplateParameters(template string) []string {
	var params []string
	for {
		open := strings.IndexByte(template, '{')
		if open < 0 {
			return params
		}
		closing := strings.IndexByte(template[open:], '}')
		if closing < 0 {
			return params
		}
		params = append(params, template[open+1:open+closing])
		template = template[open+closing+1:]
	}
}

func (i *Interrogator) parsePromptsResponse(response *Response, server *domain.MCPServer) {
	if response == nil || len(response.Result) == 0 {
		return
	}
	var result mcp.ListPromptsResult
	if err := json.Unmarshal(response.Result, &result); err != nil {
		return
	}

	for _, prompt := range result.Prompts {
		if len(server.Prompts) >= i.config.MaxPrompts {
			break
		}

		definition := domain.PromptDefinition{
			Name:        prompt.Name,
			Description: prompt.Description,
		}
		for _, arg := range prompt.Arguments {
			definition.Arguments = append(definition.Arguments, domain.PromptArgument{
				Name:        arg.Name,
				Description: arg.Description,
				Required:    arg.Required,
			})
		}
		server.Prompts = append(server.Prompts, definition)
	}
}
