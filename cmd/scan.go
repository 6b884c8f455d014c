package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	appconfig "github.com/kholcomb/Kyros/internal/config"
	"github.com/kholcomb/Kyros/internal/domain"
	"github.com/kholcomb/Kyros/internal/flags"
	"github.com/kholcomb/Kyros/internal/report"
	"github.com/kholcomb/Kyros/internal/rulepack"
	"github.com/kholcomb/Kyros/internal/scanner"
)

type scanOptions struct {
	active         bool
	activeOnly     bool
	interrogate    bool
	containers     bool
	minConfidence  float64
	maxCandidates  int
	probeTimeoutMS int
	parallelProbes int
	format         string
	output         string
	rulepacks      []string
	noDefaults     bool
	skipPIDs       []int
	skipURLs       []string
	candidatesFile string
	configPaths    []string
}

func NewScanCmd(logger hclog.Logger) *cobra.Command {
	opts := &scanOptions{}

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a one-shot discovery scan (optionally confirming candidates)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd, logger, opts)
		},
	}

	fs := scanCmd.Flags()
	fs.BoolVar(&opts.active, "active", false, "confirm candidates by speaking the MCP handshake")
	fs.BoolVar(&opts.activeOnly, "active-only", false, "skip discovery; test candidates from --candidates")
	fs.BoolVar(&opts.interrogate, "interrogate", false, "enumerate tools/resources/prompts of confirmed servers (implies --active)")
	fs.BoolVar(&opts.containers, "containers", false, "include the container discovery source")
	fs.Float64Var(&opts.minConfidence, "min-confidence", 0, "drop candidates scoring below this threshold")
	fs.IntVar(&opts.maxCandidates, "max-candidates", 1000, "keep only the N highest-confidence candidates")
	fs.IntVar(&opts.probeTimeoutMS, "timeout", 5000, "per-probe timeout in milliseconds")
	fs.IntVar(&opts.parallelProbes, "parallel-probes", 10, "maximum concurrent active probes")
	fs.StringVar(&opts.format, "format", "cli", "output format (cli, json, csv, html)")
	fs.StringVarP(&opts.output, "output", "o", "", "write the report to a file instead of stdout")
	fs.StringArrayVar(&opts.rulepacks, "rulepack", nil, "additional rulepack file (repeatable)")
	fs.BoolVar(&opts.noDefaults, "no-default-rulepacks", false, "skip the built-in detection and exclusion rulepacks")
	fs.IntSliceVar(&opts.skipPIDs, "skip-pid", nil, "PID to exclude from active testing (repeatable)")
	fs.StringArrayVar(&opts.skipURLs, "skip-url", nil, "URL to exclude from active testing (repeatable)")
	fs.StringVar(&opts.candidatesFile, "candidates", "", "JSON file of candidates for --active-only")
	fs.StringArrayVar(&opts.configPaths, "config-path", nil, "additional MCP config file to scan (repeatable)")

	return scanCmd
}

func runScan(cmd *cobra.Command, logger hclog.Logger, opts *scanOptions) error {
	cfg, err := buildScanConfig(cmd, logger, opts)
	if err != nil {
		return err
	}

	s, err := scanner.New(logger)
	if err != nil {
		return err
	}
	if err := loadRulepacks(logger, s, opts); err != nil {
		return err
	}

	results := s.Scan(cmd.Context(), cfg)

	engine := report.NewEngine()
	if err := engine.WriteFile(opts.output, opts.format, results); err != nil {
		return err
	}

	if opts.output != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", opts.output)
	}
	return nil
}

func buildScanConfig(cmd *cobra.Command, logger hclog.Logger, opts *scanOptions) (scanner.Config, error) {
	cfg := scanner.DefaultConfig()

	// Config file settings first; only flags the user actually set override.
	file, err := appconfig.Load(flags.ConfigFile)
	if err != nil {
		return cfg, err
	}
	file.Apply(&cfg)
	changed := cmd.Flags().Changed

	if opts.containers {
		cfg.Passive.ScanContainers = true
	}
	if changed("min-confidence") {
		cfg.Passive.MinConfidence = opts.minConfidence
	}
	if changed("max-candidates") {
		cfg.Passive.MaxCandidates = opts.maxCandidates
	}
	cfg.Passive.AdditionalConfigPaths = append(cfg.Passive.AdditionalConfigPaths, opts.configPaths...)

	switch {
	case opts.activeOnly:
		cfg.Mode = scanner.ModeActiveOnly
		candidates, err := loadCandidatesFile(opts.candidatesFile)
		if err != nil {
			return cfg, err
		}
		cfg.Candidates = candidates
	case opts.active || opts.interrogate:
		cfg.Mode = scanner.ModePassiveThenActive
	}

	if changed("timeout") {
		cfg.Active.ProbeTimeout = time.Duration(opts.probeTimeoutMS) * time.Millisecond
	}
	if changed("parallel-probes") {
		cfg.Active.MaxParallelProbes = opts.parallelProbes
	}
	cfg.Active.SkipPIDs = append(cfg.Active.SkipPIDs, opts.skipPIDs...)
	cfg.Active.SkipURLs = append(cfg.Active.SkipURLs, opts.skipURLs...)
	if opts.interrogate {
		cfg.Active.Interrogate = true
	}

	logger.Debug("scan config assembled", "mode", cfg.Mode, "containers", cfg.Passive.ScanContainers)
	return cfg, nil
}

func loadRulepacks(logger hclog.Logger, s *scanner.Scanner, opts *scanOptions) error {
	file, err := appconfig.Load(flags.ConfigFile)
	if err != nil {
		return err
	}

	if opts.noDefaults || file.Rulepacks.DisableDefaults {
		s.SetEngine(rulepack.NewEngine(logger))
	}

	paths := append(append([]string{}, file.Rulepacks.Paths...), opts.rulepacks...)
	for _, path := range paths {
		if err := s.LoadRulepack(path); err != nil {
			// A bad rulepack is fatal for that pack only.
			logger.Warn("skipping rulepack", "path", path, "error", err)
			fmt.Fprintf(os.Stderr, "Warning: failed to load rulepack %s: %v\n", path, err)
		}
	}
	if file.Rulepacks.Dir != "" {
		if err := s.Engine().LoadDir(file.Rulepacks.Dir); err != nil {
			logger.Warn("failed to load rulepack dir", "dir", file.Rulepacks.Dir, "error", err)
		}
	}
	return nil
}

func loadCandidatesFile(path string) ([]domain.Candidate, error) {
	if path == "" {
		return nil, fmt.Errorf("--active-only requires --candidates <file>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidates file: %w", err)
	}

	var candidates []domain.Candidate
	if err := json.Unmarshal(data, &candidates); err != nil {
		return nil, fmt.Errorf("failed to parse candidates file: %w", err)
	}
	for i := range candidates {
		candidates[i].RecalculateConfidence()
	}
	return candidates, nil
}
