package scanner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/kholcomb/Kyros/internal/platform"
	"github.com/kholcomb/Kyros/internal/rulepack"
	"github.com/kholcomb/Kyros/internal/source"
)

// PassiveScanner runs the enabled discovery sources, applies the rulepack
// engine, filters by confidence, merges duplicates, and caps the survivors.
type PassiveScanner struct {
	logger  hclog.Logger
	adapter platform.Adapter
	engine  *rulepack.Engine
}

func NewPassiveScanner(logger hclog.Logger, adapter platform.Adapter, engine *rulepack.Engine) *PassiveScanner {
	return &PassiveScanner{
		logger:  logger.Named("passive"),
		adapter: adapter,
		engine:  engine,
	}
}

// sources builds the enabled source set for one scan, in fixed order.
func (s *PassiveScanner) sources(config PassiveConfig) []source.Source {
	var sources []source.Source
	if config.ScanConfigs {
		sources = append(sources, source.NewConfigSource(s.logger, s.adapter, config.AdditionalConfigPaths))
	}
	if config.ScanProcesses {
		sources = append(sources, source.NewProcessSource(s.logger, s.adapter))
	}
	if config.ScanNetwork {
		sources = append(sources, source.NewNetworkSource(s.logger, s.adapter))
	}
	if config.ScanContainers {
		sources = append(sources, source.NewContainerSource(s.logger, s.adapter))
	}
	return sources
}

// Scan never fails as a whole: per-source failures become error strings on
// the results and the remaining sources still run.
func (s *PassiveScanner) Scan(ctx context.Context, config PassiveConfig) PassiveResults {
	start := time.Now()
	results := PassiveResults{Timestamp: start}

	for _, src := range s.sources(config) {
		detected, err := src.Detect(ctx)
		if err != nil {
			results.Errors = append(results.Errors, fmt.Sprintf("Error in %s source: %v", src.Name(), err))
			continue
		}

		switch src.Name() {
		case "config":
			results.ConfigFilesChecked += detected.ItemsChecked
		case "process":
			results.ProcessesScanned += detected.ItemsChecked
		case "network":
			results.NetworkSocketsChecked += detected.ItemsChecked
		case "container":
			results.ContainersScanned += detected.ItemsChecked
		}

		// Rules run before the confidence filter so boosts and vetoes both
		// take effect.
		for _, candidate := range detected.Candidates {
			s.engine.Apply(&candidate)
			if candidate.ConfidenceScore >= config.MinConfidence && candidate.ConfidenceScore > 0 {
				results.Candidates = append(results.Candidates, candidate)
			}
		}
	}

	results.Candidates = Deduplicate(results.Candidates)

	sort.SliceStable(results.Candidates, func(i, j int) bool {
		return results.Candidates[i].ConfidenceScore > results.Candidates[j].ConfidenceScore
	})
	if config.MaxCandidates > 0 && len(results.Candidates) > config.MaxCandidates {
		results.Candidates = results.Candidates[:config.MaxCandidates]
	}

	results.DurationSeconds = time.Since(start).Seconds()
	s.logger.Info("passive scan complete",
		"candidates", len(results.Candidates),
		"errors", len(results.Errors),
		"duration", time.Since(start))
	return results
}
