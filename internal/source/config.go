package source

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/kholcomb/Kyros/internal/domain"
	"github.com/kholcomb/Kyros/internal/platform"
)

// Confidence assigned to config-declared servers and installed extensions.
const (
	configDeclaredConfidence     = 0.9
	extensionInstalledConfidence = 0.95
)

// defaultConfigPaths are the well-known MCP config locations, ~-relative
// paths expanded through the adapter.
var defaultConfigPaths = []string{
	// Claude Desktop config (primary target)
	"~/Library/Application Support/Claude/claude_desktop_config.json", // macOS
	"~/.config/Claude/claude_desktop_config.json",                     // Linux

	// Common MCP server configuration locations
	"~/.config/mcp/servers.json",
	"~/.mcp/config.json",
	"/etc/mcp/servers.json",
	"./mcp.json",
	"./servers.json",

	// VSCode MCP extension locations
	"~/.vscode/mcp.json",
	"~/.config/Code/User/mcp.json",

	// Project-specific locations
	"./config/mcp.json",
	"./config/servers.json",
}

// extensionBasePaths hold installed Claude Desktop extensions, one
// subdirectory per extension.
var extensionBasePaths = []string{
	"~/Library/Application Support/Claude/Claude Extensions", // macOS
	"~/.config/Claude/Claude Extensions",                     // Linux
}

// extensionEntryPoints are checked in order inside each extension directory.
var extensionEntryPoints = []string{"dist/index.js", "index.js", "build/index.js"}

// serverEntry is one declared server in either config form.
type serverEntry struct {
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
	URL     string            `json:"url"`
}

// configDoc covers both the mcpServers object form and the servers array
// form in a single decode.
type configDoc struct {
	MCPServers map[string]serverEntry `json:"mcpServers"`
	Servers    []serverEntry          `json:"servers"`
}

// ConfigSource discovers servers declared in MCP config files and installed
// as Claude Desktop extensions.
type ConfigSource struct {
	logger  hclog.Logger
	adapter platform.Adapter
	paths   []string
}

// NewConfigSource builds a config source scanning the default paths plus
// any additional paths from the scan config.
func NewConfigSource(logger hclog.Logger, adapter platform.Adapter, additionalPaths []string) *ConfigSource {
	return &ConfigSource{
		logger:  logger.Named("source.config"),
		adapter: adapter,
		paths:   append(append([]string{}, defaultConfigPaths...), additionalPaths...),
	}
}

func (s *ConfigSource) Name() string { return "config" }

func (s *ConfigSource) Detect(_ context.Context) (Result, error) {
	var result Result

	for _, configured := range s.paths {
		expanded := s.adapter.ExpandPath(configured)
		if !s.adapter.FileExists(expanded) {
			continue
		}
		result.ItemsChecked++

		entries, err := s.parseConfigFile(expanded)
		if err != nil {
			// A malformed config file does not abort the remaining paths.
			s.logger.Warn("failed to parse config file", "path", expanded, "error", err)
			continue
		}
		for _, entry := range entries {
			result.Candidates = append(result.Candidates, s.candidateFromEntry(entry, expanded))
		}
	}

	s.scanClaudeExtensions(&result)
	return result, nil
}

// parseConfigFile reads both supported shapes. Servers without a command
// are skipped.
func (s *ConfigSource) parseConfigFile(path string) ([]serverEntry, error) {
	var doc configDoc
	if err := s.adapter.ReadJSONFile(path, &doc); err != nil {
		return nil, err
	}

	var entries []serverEntry

	names := make([]string, 0, len(doc.MCPServers))
	for name := range doc.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entry := doc.MCPServers[name]
		if entry.Command == "" {
			continue
		}
		entry.Name = name
		entries = append(entries, entry)
	}

	for _, entry := range doc.Servers {
		if entry.Command == "" {
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (s *ConfigSource) candidateFromEntry(entry serverEntry, configPath string) domain.Candidate {
	candidate := domain.Candidate{
		ConfigFile:  configPath,
		ConfigKey:   entry.Name,
		Command:     strings.Join(append([]string{entry.Command}, entry.Args...), " "),
		Environment: entry.Env,
	}

	if entry.URL != "" {
		candidate.URL = entry.URL
		candidate.TransportHint = domain.TransportHTTP
	} else {
		candidate.TransportHint = domain.TransportStdio
	}

	candidate.AddEvidence(domain.NewEvidence(
		"config_declared",
		"Declared in config file: "+configPath,
		configDeclaredConfidence,
		configPath,
	))
	return candidate
}

// scanClaudeExtensions emits one candidate per installed extension with a
// recognized entry point.
func (s *ConfigSource) scanClaudeExtensions(result *Result) {
	for _, base := range extensionBasePaths {
		expandedBase := s.adapter.ExpandPath(base)
		if !s.adapter.FileExists(expandedBase) {
			continue
		}

		names, err := s.adapter.ListDirectory(expandedBase)
		if err != nil {
			continue
		}

		for _, name := range names {
			extensionPath := path.Join(expandedBase, name)
			if !s.adapter.FileExists(extensionPath) {
				continue
			}

			entryPoint := ""
			for _, relative := range extensionEntryPoints {
				probe := path.Join(extensionPath, relative)
				if s.adapter.FileExists(probe) {
					entryPoint = probe
					break
				}
			}
			if entryPoint == "" {
				s.logger.Warn("extension found but no entry point detected", "extension", name)
				continue
			}

			candidate := domain.Candidate{
				ConfigFile:    extensionPath,
				ConfigKey:     name,
				Command:       "node " + entryPoint,
				TransportHint: domain.TransportStdio,
			}
			candidate.AddEvidence(domain.NewEvidence(
				"claude_extension_installed",
				"Installed as Claude Desktop Extension: "+extensionPath,
				extensionInstalledConfidence,
				extensionPath,
			))

			result.Candidates = append(result.Candidates, candidate)
			result.ItemsChecked++
		}
	}
}
