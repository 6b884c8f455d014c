package scanner

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/kholcomb/Kyros/internal/domain"
	"github.com/kholcomb/Kyros/internal/platform"
	"github.com/kholcomb/Kyros/internal/probe"
)

// ActiveScanner confirms candidates by running the transport probes in
// registration order (stdio, then HTTP) and optionally interrogating the
// confirmed servers.
type ActiveScanner struct {
	logger  hclog.Logger
	adapter platform.Adapter
	probers []probe.Prober
}

func NewActiveScanner(logger hclog.Logger, adapter platform.Adapter) *ActiveScanner {
	return &ActiveScanner{
		logger:  logger.Named("active"),
		adapter: adapter,
		probers: []probe.Prober{
			probe.NewStdioProber(logger, adapter),
			probe.NewHTTPProber(logger),
		},
	}
}

// candidateOutcome is one candidate's slot; slots keep output ordering
// independent of probe completion order.
type candidateOutcome struct {
	skipped bool
	server  *domain.MCPServer
	errMsg  string
}

// Scan tests every candidate not on a skip list. Probes run in parallel up
// to MaxParallelProbes; each candidate's probes still run sequentially so
// the first confirming transport wins.
func (s *ActiveScanner) Scan(ctx context.Context, candidates []domain.Candidate, config ActiveConfig) ActiveResults {
	start := time.Now()
	results := ActiveResults{
		Timestamp:        start,
		CandidatesTested: candidates,
	}

	if config.ProbeTimeout > 0 {
		for _, prober := range s.probers {
			prober.SetTimeout(config.ProbeTimeout)
		}
	}

	var interrogator *probe.Interrogator
	if config.Interrogate && config.Interrogation.Enabled {
		interrogator = probe.NewInterrogator(s.logger, config.Interrogation, s.adapter)
	}

	outcomes := make([]candidateOutcome, len(candidates))

	var group errgroup.Group
	limit := config.MaxParallelProbes
	if limit <= 0 {
		limit = 1
	}
	group.SetLimit(limit)

	for i := range candidates {
		group.Go(func() error {
			outcomes[i] = s.testCandidate(ctx, &candidates[i], config, interrogator)
			return nil
		})
	}
	_ = group.Wait()

	for _, outcome := range outcomes {
		if outcome.skipped {
			continue
		}
		results.CandidatesTestedCount++

		if outcome.server != nil {
			results.ConfirmedServers = append(results.ConfirmedServers, *outcome.server)
			results.ServersConfirmedCount++
			continue
		}

		results.TestsFailedCount++
		if outcome.errMsg != "" {
			results.Errors = append(results.Errors, outcome.errMsg)
		}
	}

	// FailedTests preserves candidate order.
	for i, outcome := range outcomes {
		if !outcome.skipped && outcome.server == nil {
			results.FailedTests = append(results.FailedTests, candidates[i])
		}
	}

	results.DurationSeconds = time.Since(start).Seconds()
	s.logger.Info("active scan complete",
		"tested", results.CandidatesTestedCount,
		"confirmed", results.ServersConfirmedCount,
		"duration", time.Since(start))
	return results
}

func (s *ActiveScanner) testCandidate(
	ctx context.Context,
	candidate *domain.Candidate,
	config ActiveConfig,
	interrogator *probe.Interrogator,
) candidateOutcome {
	if candidate.PID > 0 && slices.Contains(config.SkipPIDs, candidate.PID) {
		return candidateOutcome{skipped: true}
	}
	if candidate.URL != "" && slices.Contains(config.SkipURLs, candidate.URL) {
		return candidateOutcome{skipped: true}
	}

	var proberErrors []string
	for _, prober := range s.probers {
		server, err := prober.Test(ctx, candidate)
		if err != nil {
			proberErrors = append(proberErrors, fmt.Sprintf("%s: %v", prober.Name(), err))
			continue
		}
		if server == nil {
			continue
		}

		if interrogator != nil {
			interrogator.Interrogate(ctx, server)
		}
		return candidateOutcome{server: server}
	}

	return candidateOutcome{errMsg: failureMessage(candidate, proberErrors)}
}

func failureMessage(candidate *domain.Candidate, proberErrors []string) string {
	if len(proberErrors) == 0 {
		return ""
	}

	msg := "Failed to test candidate"
	switch {
	case candidate.Command != "":
		msg += " (command: " + candidate.Command + ")"
	case candidate.URL != "":
		msg += " (url: " + candidate.URL + ")"
	}
	return msg + " - Errors: " + strings.Join(proberErrors, "; ")
}
