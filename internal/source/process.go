package source

import (
	"context"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/kholcomb/Kyros/internal/domain"
	"github.com/kholcomb/Kyros/internal/platform"
)

// knownMCPClients are the desktop apps and IDEs that launch MCP servers as
// children. Parentage alone is weak evidence; too many unrelated helpers
// share these parents.
var knownMCPClients = []string{
	"Claude", "claude", "Claude.app",
	"Cursor", "cursor",
	"code", "Code", "Visual Studio Code",
	"windsurf", "Windsurf",
}

// mcpEnvPrefixes mark environment variables that suggest an MCP context.
var mcpEnvPrefixes = []string{"MCP_", "ANTHROPIC_", "CLAUDE_"}

// ProcessSource inspects every running process for MCP server indicators:
// a known client as parent, bidirectional stdio pipes, and MCP-flavored
// environment variables.
type ProcessSource struct {
	logger  hclog.Logger
	adapter platform.Adapter
}

func NewProcessSource(logger hclog.Logger, adapter platform.Adapter) *ProcessSource {
	return &ProcessSource{
		logger:  logger.Named("source.process"),
		adapter: adapter,
	}
}

func (s *ProcessSource) Name() string { return "process" }

func (s *ProcessSource) Detect(_ context.Context) (Result, error) {
	pids, err := s.adapter.Processes()
	if err != nil {
		return Result{}, err
	}

	result := Result{ItemsChecked: len(pids)}

	for _, pid := range pids {
		candidate := domain.Candidate{
			PID:         pid,
			ProcessName: s.adapter.ProcessName(pid),
			Command:     s.adapter.CommandLine(pid),
		}

		// Nothing to reason about without basic process info.
		if candidate.ProcessName == "" && candidate.Command == "" {
			continue
		}

		s.checkParentProcess(&candidate)
		s.checkFileDescriptors(&candidate)
		s.checkEnvironment(&candidate)

		if len(candidate.Evidence) > 0 {
			result.Candidates = append(result.Candidates, candidate)
		}
	}

	return result, nil
}

// checkParentProcess records parentage and emits Weak evidence when the
// parent is a known MCP client.
func (s *ProcessSource) checkParentProcess(candidate *domain.Candidate) {
	ppid := s.adapter.ParentPID(candidate.PID)
	if ppid <= 0 {
		return
	}
	candidate.ParentPID = ppid

	parentName := s.adapter.ProcessName(ppid)
	if parentName == "" {
		return
	}
	candidate.ParentProcessName = parentName

	for _, client := range knownMCPClients {
		if strings.Contains(parentName, client) {
			candidate.AddEvidence(domain.NewEvidenceWithStrength(
				"parent_process",
				"Parent process is MCP client: "+parentName,
				0.7,
				"",
				domain.StrengthWeak,
			))
			return
		}
	}
}

// checkFileDescriptors emits Moderate evidence when stdin and stdout are
// both pipes, the fd layout of a stdio transport. LSP and IPC children
// share it, hence only Moderate.
func (s *ProcessSource) checkFileDescriptors(candidate *domain.Candidate) {
	if !s.adapter.HasBidirectionalPipes(candidate.PID) {
		return
	}
	candidate.AddEvidence(domain.NewEvidence(
		"file_descriptors",
		"Process has bidirectional pipes (stdio transport)",
		0.6,
		"",
	))
	candidate.TransportHint = domain.TransportStdio
}

// checkEnvironment emits one Moderate evidence item per MCP-flavored
// environment variable.
func (s *ProcessSource) checkEnvironment(candidate *domain.Candidate) {
	env := s.adapter.Environment(candidate.PID)
	if len(env) == 0 {
		return
	}
	if candidate.Environment == nil {
		candidate.Environment = env
	}

	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		for _, prefix := range mcpEnvPrefixes {
			if strings.HasPrefix(key, prefix) {
				candidate.AddEvidence(domain.NewEvidence(
					"environment",
					"Environment variable found: "+key,
					0.5,
					"",
				))
				break
			}
		}
	}
}
