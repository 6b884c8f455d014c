package source

import (
	"context"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/kholcomb/Kyros/internal/domain"
	"github.com/kholcomb/Kyros/internal/platform"
)

// containerBaselineConfidence is deliberately neutral: the container source
// reports what it sees and the rulepack layer decides how much each signal
// is worth.
const containerBaselineConfidence = 0.5

// containerEntrypointPatterns are known MCP server shapes in entrypoints.
var containerEntrypointPatterns = []string{
	"@modelcontextprotocol/", // Node.js MCP packages
	"mcp-server-",            // generic MCP server binaries
	"/app/mcp",               // common MCP app path
	"mcp_server",             // Python-style naming
	"/mcp/",                  // MCP directory in path
}

// ContainerSource inspects running containers for MCP markers: membership
// in the docker mcp server list, gateway and mcp.* labels, entrypoint
// patterns, and MCP_* environment variables.
type ContainerSource struct {
	logger  hclog.Logger
	adapter platform.Adapter
}

func NewContainerSource(logger hclog.Logger, adapter platform.Adapter) *ContainerSource {
	return &ContainerSource{
		logger:  logger.Named("source.container"),
		adapter: adapter,
	}
}

func (s *ContainerSource) Name() string { return "container" }

func (s *ContainerSource) Detect(ctx context.Context) (Result, error) {
	serverIDs, err := s.adapter.DockerMCPServerIDs(ctx)
	if err != nil {
		s.logger.Debug("docker mcp server list unavailable", "error", err)
	}
	knownServers := make(map[string]struct{}, len(serverIDs))
	for _, id := range serverIDs {
		knownServers[id] = struct{}{}
	}

	containers, err := s.adapter.DockerContainers(ctx)
	if err != nil {
		return Result{}, err
	}

	result := Result{ItemsChecked: len(containers)}

	for _, container := range containers {
		container := container
		candidate := domain.Candidate{
			DockerContainer: &container,
			ProcessName:     container.Image,
			Command:         container.Command,
		}

		_, listedByID := knownServers[container.ID]
		_, listedByName := knownServers[container.Name]
		if listedByID || listedByName {
			candidate.AddEvidence(domain.NewEvidence(
				"docker_mcp_server_list",
				"Container in docker mcp server list",
				containerBaselineConfidence,
				"docker-mcp-cli",
			))
		}

		s.checkGatewayLabels(&container, &candidate)
		s.checkMCPLabels(&container, &candidate)
		s.checkEntrypoint(&container, &candidate)
		s.checkEnvironment(&container, &candidate)

		if len(candidate.Evidence) > 0 {
			result.Candidates = append(result.Candidates, candidate)
		}
	}

	return result, nil
}

// checkGatewayLabels looks for Docker MCP Gateway labels. One is enough.
func (s *ContainerSource) checkGatewayLabels(container *domain.DockerContainer, candidate *domain.Candidate) {
	for _, key := range sortedKeys(container.Labels) {
		if strings.HasPrefix(key, "com.docker.mcp") {
			candidate.AddEvidence(domain.NewEvidence(
				"container_mcp_gateway",
				"Docker MCP Gateway label: "+key+"="+container.Labels[key],
				containerBaselineConfidence,
				"container:"+container.ID,
			))
			return
		}
	}
}

func (s *ContainerSource) checkMCPLabels(container *domain.DockerContainer, candidate *domain.Candidate) {
	for _, key := range sortedKeys(container.Labels) {
		value := container.Labels[key]
		keyLower := strings.ToLower(key)
		valueLower := strings.ToLower(value)

		switch keyLower {
		case "mcp", "mcp-server", "mcp.enabled":
			if valueLower == "true" || valueLower == "1" || valueLower == "yes" {
				candidate.AddEvidence(domain.NewEvidence(
					"container_label_mcp_bool",
					"Explicit MCP label: "+key+"="+value,
					containerBaselineConfidence,
					"container:"+container.ID,
				))
			}

		case "mcp.type", "mcp.role":
			if valueLower == "server" {
				candidate.AddEvidence(domain.NewEvidence(
					"container_label_mcp_type",
					"MCP type label: "+key+"="+value,
					containerBaselineConfidence,
					"container:"+container.ID,
				))
			}

		case "mcp.transport":
			if hint, ok := transportFromString(valueLower); ok {
				candidate.AddEvidence(domain.NewEvidence(
					"container_label_mcp_transport",
					"MCP transport label: "+key+"="+value,
					containerBaselineConfidence,
					"container:"+container.ID,
				))
				candidate.TransportHint = hint
			}
		}
	}
}

func (s *ContainerSource) checkEntrypoint(container *domain.DockerContainer, candidate *domain.Candidate) {
	entrypointLower := strings.ToLower(container.EntrypointPath)
	for _, pattern := range containerEntrypointPatterns {
		if strings.Contains(entrypointLower, pattern) {
			candidate.AddEvidence(domain.NewEvidence(
				"container_entrypoint_mcp",
				"Known MCP server in entrypoint: "+container.EntrypointPath,
				containerBaselineConfidence,
				"container:"+container.ID,
			))
			return
		}
	}

	for _, arg := range container.EntrypointArgs {
		argLower := strings.ToLower(arg)
		for _, pattern := range containerEntrypointPatterns {
			if strings.Contains(argLower, pattern) {
				candidate.AddEvidence(domain.NewEvidence(
					"container_entrypoint_mcp",
					"Known MCP server in arguments: "+arg,
					containerBaselineConfidence,
					"container:"+container.ID,
				))
				return
			}
		}
	}
}

func (s *ContainerSource) checkEnvironment(container *domain.DockerContainer, candidate *domain.Candidate) {
	for _, key := range sortedKeys(container.Env) {
		value := container.Env[key]
		valueLower := strings.ToLower(value)

		switch key {
		case "MCP_ENABLED", "MCP_SERVER":
			if valueLower == "true" || valueLower == "1" || valueLower == "yes" {
				candidate.AddEvidence(domain.NewEvidence(
					"container_env_mcp_bool",
					"Explicit MCP environment: "+key+"="+value,
					containerBaselineConfidence,
					"container:"+container.ID,
				))
			}

		case "MCP_TRANSPORT", "MCP_PORT", "MCP_SERVER_NAME":
			candidate.AddEvidence(domain.NewEvidence(
				"container_env_mcp_config",
				"MCP config environment: "+key+"="+value,
				containerBaselineConfidence,
				"container:"+container.ID,
			))
			if key == "MCP_TRANSPORT" {
				if hint, ok := transportFromString(valueLower); ok {
					candidate.TransportHint = hint
				}
			}
		}
	}
}

func transportFromString(value string) (domain.TransportType, bool) {
	switch value {
	case "http":
		return domain.TransportHTTP, true
	case "stdio":
		return domain.TransportStdio, true
	case "sse":
		return domain.TransportSSE, true
	default:
		return domain.TransportUnknown, false
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
