// Package cmd wires the kyros CLI: scan, daemon, and rulepack commands.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kholcomb/Kyros/internal/flags"
)

var version = "dev" // Set at build time using -ldflags

// Execute runs the root command.
func Execute() error {
	logger, err := configureLogger()
	if err != nil {
		return fmt.Errorf("error configuring logger: %w", err)
	}
	return NewRootCmd(logger).Execute()
}

func NewRootCmd(logger hclog.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kyros <command> [args]",
		Short: "kyros discovers and verifies MCP servers on this host.",
		Long: `kyros enumerates likely Model Context Protocol servers on the local
machine (config files, processes, network listeners, containers), grades each
candidate by evidence-weighted confidence, and can confirm survivors by
speaking the MCP handshake over stdio or HTTP/SSE.`,
		SilenceUsage: true,
		Version:      version,
	}

	// Global flags
	flags.InitFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(NewScanCmd(logger))
	rootCmd.AddCommand(NewDaemonCmd(logger))
	rootCmd.AddCommand(NewRulepackCmd(logger))

	return rootCmd
}

func configureLogger() (hclog.Logger, error) {
	// The logger is built before cobra parses the command line, so the global
	// log flags are read here; InitFlags supplies the env fallbacks.
	pre := pflag.NewFlagSet("kyros", pflag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.SetOutput(io.Discard)
	pre.Usage = func() {}
	flags.InitFlags(pre)
	_ = pre.Parse(os.Args[1:])

	logPath := strings.TrimSpace(flags.LogPath)

	// Without a log path (--log-path or KYROS_LOG_PATH), logs go nowhere:
	// reporter output owns stdout.
	var logOutput io.Writer = io.Discard
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file (%s): %w", logPath, err)
		}
		logOutput = f
	}

	logLevel := strings.ToLower(strings.TrimSpace(flags.LogLevel))
	if logLevel == "" {
		logLevel = flags.DefaultLogLevel
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:   "kyros",
		Level:  hclog.LevelFromString(logLevel),
		Output: logOutput,
	}), nil
}
