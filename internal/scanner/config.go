// Package scanner contains the passive and active coordinators: running
// discovery sources, applying rulepacks, filtering and merging candidates,
// and orchestrating transport probes and interrogation.
package scanner

import (
	"time"

	"github.com/kholcomb/Kyros/internal/domain"
	"github.com/kholcomb/Kyros/internal/probe"
)

// Mode selects which phases a scan runs.
type Mode int

const (
	// ModePassiveOnly runs discovery only. The default.
	ModePassiveOnly Mode = iota

	// ModeActiveOnly tests externally supplied candidates without
	// running discovery.
	ModeActiveOnly

	// ModePassiveThenActive runs discovery and confirms the survivors.
	ModePassiveThenActive
)

// PassiveConfig controls the discovery phase.
type PassiveConfig struct {
	ScanConfigs    bool `json:"scan_configs" toml:"configs"`
	ScanProcesses  bool `json:"scan_processes" toml:"processes"`
	ScanNetwork    bool `json:"scan_network" toml:"network"`
	ScanContainers bool `json:"scan_containers" toml:"containers"`

	// MinConfidence drops candidates scoring below it after rules ran.
	MinConfidence float64 `json:"min_confidence" toml:"min_confidence"`

	// MaxCandidates keeps only the highest-confidence survivors.
	MaxCandidates int `json:"max_candidates" toml:"max_candidates"`

	// AdditionalConfigPaths extend the built-in config file locations.
	AdditionalConfigPaths []string `json:"additional_config_paths,omitempty" toml:"additional_config_paths"`
}

// DefaultPassiveConfig matches the CLI defaults: every host-local source
// except containers, which may need docker privileges.
func DefaultPassiveConfig() PassiveConfig {
	return PassiveConfig{
		ScanConfigs:   true,
		ScanProcesses: true,
		ScanNetwork:   true,
		MaxCandidates: 1000,
	}
}

// ActiveConfig controls the verification phase.
type ActiveConfig struct {
	// ProbeTimeout bounds each handshake read or HTTP request.
	ProbeTimeout time.Duration `json:"probe_timeout"`

	// MaxParallelProbes bounds concurrent candidate tests.
	MaxParallelProbes int `json:"max_parallel_probes"`

	// Interrogate enumerates capabilities of confirmed servers.
	Interrogate   bool                      `json:"interrogate"`
	Interrogation probe.InterrogationConfig `json:"interrogation"`

	// Skip lists exclude individual candidates from testing.
	SkipPIDs []int    `json:"skip_pids,omitempty"`
	SkipURLs []string `json:"skip_urls,omitempty"`
}

// DefaultActiveConfig matches the CLI defaults.
func DefaultActiveConfig() ActiveConfig {
	return ActiveConfig{
		ProbeTimeout:      5 * time.Second,
		MaxParallelProbes: 10,
		Interrogation:     probe.DefaultInterrogationConfig(),
	}
}

// Config is the whole-scan configuration.
type Config struct {
	Mode    Mode
	Passive PassiveConfig
	Active  ActiveConfig

	// Candidates supplies the input set for ModeActiveOnly.
	Candidates []domain.Candidate `json:"-"`
}

// DefaultConfig is a passive-only scan with standard settings.
func DefaultConfig() Config {
	return Config{
		Mode:    ModePassiveOnly,
		Passive: DefaultPassiveConfig(),
		Active:  DefaultActiveConfig(),
	}
}
