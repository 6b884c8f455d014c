package cmd

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	appconfig "github.com/kholcomb/Kyros/internal/config"
	"github.com/kholcomb/Kyros/internal/daemon"
	"github.com/kholcomb/Kyros/internal/flags"
	"github.com/kholcomb/Kyros/internal/rulepack"
	"github.com/kholcomb/Kyros/internal/scanner"
)

type daemonOptions struct {
	apiAddr     string
	intervalSec int
	active      bool
	containers  bool
	rulepackDir string
}

func NewDaemonCmd(logger hclog.Logger) *cobra.Command {
	opts := &daemonOptions{}

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Scan continuously and serve results over a local HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd, logger, opts)
		},
	}

	fs := daemonCmd.Flags()
	fs.StringVar(&opts.apiAddr, "api-addr", "", "API listen address (default from config, 127.0.0.1:8787)")
	fs.IntVar(&opts.intervalSec, "interval", 0, "seconds between scans (default from config, 300)")
	fs.BoolVar(&opts.active, "active", false, "confirm candidates on every scan")
	fs.BoolVar(&opts.containers, "containers", false, "include the container discovery source")
	fs.StringVar(&opts.rulepackDir, "rulepack-dir", "", "directory of rulepacks to watch and reload between scans")

	return daemonCmd
}

func runDaemon(cmd *cobra.Command, logger hclog.Logger, opts *daemonOptions) error {
	file, err := appconfig.Load(flags.ConfigFile)
	if err != nil {
		return err
	}

	cfg := scanner.DefaultConfig()
	file.Apply(&cfg)
	if opts.active {
		cfg.Mode = scanner.ModePassiveThenActive
	}
	if opts.containers {
		cfg.Passive.ScanContainers = true
	}

	interval := file.DaemonInterval()
	if opts.intervalSec > 0 {
		interval = intervalFromSeconds(opts.intervalSec)
	}
	apiAddr := file.DaemonAPIAddr()
	if opts.apiAddr != "" {
		apiAddr = opts.apiAddr
	}
	rulepackDir := file.Rulepacks.Dir
	if opts.rulepackDir != "" {
		rulepackDir = opts.rulepackDir
	}

	s, err := scanner.New(logger)
	if err != nil {
		return err
	}
	if file.Rulepacks.DisableDefaults {
		s.SetEngine(rulepack.NewEngine(logger))
	}

	d, err := daemon.New(logger, s, daemon.Options{
		Interval:                interval,
		ScanConfig:              cfg,
		APIAddr:                 apiAddr,
		RulepackDir:             rulepackDir,
		DisableDefaultRulepacks: file.Rulepacks.DisableDefaults,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("daemon starting", "interval", interval, "api", apiAddr)
	return d.Run(ctx)
}

func intervalFromSeconds(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
