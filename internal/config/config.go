// Package config loads the scanner's own TOML configuration file
// (.kyros.toml) and maps it onto the scan configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/kholcomb/Kyros/internal/scanner"
)

// File is the on-disk shape of .kyros.toml. Every field is optional;
// omitted sections keep the scan defaults.
type File struct {
	Passive       PassiveSection       `toml:"passive"`
	Active        ActiveSection        `toml:"active"`
	Interrogation InterrogationSection `toml:"interrogation"`
	Rulepacks     RulepacksSection     `toml:"rulepacks"`
	Daemon        DaemonSection        `toml:"daemon"`
}

type PassiveSection struct {
	Configs               *bool    `toml:"configs"`
	Processes             *bool    `toml:"processes"`
	Network               *bool    `toml:"network"`
	Containers            *bool    `toml:"containers"`
	MinConfidence         *float64 `toml:"min_confidence"`
	MaxCandidates         *int     `toml:"max_candidates"`
	AdditionalConfigPaths []string `toml:"additional_config_paths"`
}

type ActiveSection struct {
	Enabled           *bool    `toml:"enabled"`
	ProbeTimeoutMS    *int     `toml:"probe_timeout_ms"`
	MaxParallelProbes *int     `toml:"max_parallel_probes"`
	SkipPIDs          []int    `toml:"skip_pids"`
	SkipURLs          []string `toml:"skip_urls"`
}

type InterrogationSection struct {
	Enabled      *bool `toml:"enabled"`
	Tools        *bool `toml:"tools"`
	Resources    *bool `toml:"resources"`
	Templates    *bool `toml:"templates"`
	Prompts      *bool `toml:"prompts"`
	MaxTools     *int  `toml:"max_tools"`
	MaxResources *int  `toml:"max_resources"`
	MaxPrompts   *int  `toml:"max_prompts"`
	TimeoutMS    *int  `toml:"timeout_ms"`
}

type RulepacksSection struct {
	// Paths are rulepack files loaded after the built-in packs.
	Paths []string `toml:"paths"`

	// Dir is a directory of rulepacks; the daemon watches it for reloads.
	Dir string `toml:"dir"`

	// DisableDefaults skips the embedded default and exclusion packs.
	DisableDefaults bool `toml:"disable_defaults"`
}

type DaemonSection struct {
	IntervalSeconds *int   `toml:"interval_seconds"`
	APIAddr         string `toml:"api_addr"`
}

// Load reads the config file at path. A missing file is not an error: the
// zero File (all defaults) is returned so the CLI works unconfigured.
func Load(path string) (*File, error) {
	var file File
	if _, err := toml.DecodeFile(path, &file); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return &file, nil
}

// Apply overlays the file's explicit settings onto a scan config.
func (f *File) Apply(cfg *scanner.Config) {
	setBool(&cfg.Passive.ScanConfigs, f.Passive.Configs)
	setBool(&cfg.Passive.ScanProcesses, f.Passive.Processes)
	setBool(&cfg.Passive.ScanNetwork, f.Passive.Network)
	setBool(&cfg.Passive.ScanContainers, f.Passive.Containers)
	if f.Passive.MinConfidence != nil {
		cfg.Passive.MinConfidence = *f.Passive.MinConfidence
	}
	if f.Passive.MaxCandidates != nil {
		cfg.Passive.MaxCandidates = *f.Passive.MaxCandidates
	}
	cfg.Passive.AdditionalConfigPaths = append(cfg.Passive.AdditionalConfigPaths, f.Passive.AdditionalConfigPaths...)

	if f.Active.Enabled != nil && *f.Active.Enabled {
		cfg.Mode = scanner.ModePassiveThenActive
	}
	if f.Active.ProbeTimeoutMS != nil {
		cfg.Active.ProbeTimeout = time.Duration(*f.Active.ProbeTimeoutMS) * time.Millisecond
	}
	if f.Active.MaxParallelProbes != nil {
		cfg.Active.MaxParallelProbes = *f.Active.MaxParallelProbes
	}
	cfg.Active.SkipPIDs = append(cfg.Active.SkipPIDs, f.Active.SkipPIDs...)
	cfg.Active.SkipURLs = append(cfg.Active.SkipURLs, f.Active.SkipURLs...)

	if f.Interrogation.Enabled != nil {
		cfg.Active.Interrogate = *f.Interrogation.Enabled
	}
	setBool(&cfg.Active.Interrogation.GetTools, f.Interrogation.Tools)
	setBool(&cfg.Active.Interrogation.GetResources, f.Interrogation.Resources)
	setBool(&cfg.Active.Interrogation.GetResourceTemplates, f.Interrogation.Templates)
	setBool(&cfg.Active.Interrogation.GetPrompts, f.Interrogation.Prompts)
	if f.Interrogation.MaxTools != nil {
		cfg.Active.Interrogation.MaxTools = *f.Interrogation.MaxTools
	}
	if f.Interrogation.MaxResources != nil {
		cfg.Active.Interrogation.MaxResources = *f.Interrogation.MaxResources
	}
	if f.Interrogation.MaxPrompts != nil {
		cfg.Active.Interrogation.MaxPrompts = *f.Interrogation.MaxPrompts
	}
	if f.Interrogation.TimeoutMS != nil {
		cfg.Active.Interrogation.Timeout = time.Duration(*f.Interrogation.TimeoutMS) * time.Millisecond
	}
}

// DaemonInterval returns the configured scan interval, defaulting to five
// minutes.
func (f *File) DaemonInterval() time.Duration {
	if f.Daemon.IntervalSeconds != nil && *f.Daemon.IntervalSeconds > 0 {
		return time.Duration(*f.Daemon.IntervalSeconds) * time.Second
	}
	return 5 * time.Minute
}

// DaemonAPIAddr returns the configured API listen address, defaulting to
// localhost only.
func (f *File) DaemonAPIAddr() string {
	if f.Daemon.APIAddr != "" {
		return f.Daemon.APIAddr
	}
	return "127.0.0.1:8787"
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
