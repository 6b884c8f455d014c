package daemon

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	"github.com/kholcomb/Kyros/internal/rulepack"
	"github.com/kholcomb/Kyros/internal/scanner"
)

// Options configures the daemon loop.
type Options struct {
	// Interval between scans.
	Interval time.Duration

	// ScanConfig is used for every scan.
	ScanConfig scanner.Config

	// APIAddr is the HTTP listen address; empty disables the API.
	APIAddr string

	// RulepackDir, when set, is watched for changes; the engine is rebuilt
	// from it before the next scan (never during one).
	RulepackDir string

	// DisableDefaultRulepacks skips the embedded packs on reload.
	DisableDefaultRulepacks bool
}

// Daemon runs scans on an interval and publishes results to the store.
type Daemon struct {
	logger  hclog.Logger
	scanner *scanner.Scanner
	store   *Store
	options Options

	rulepacksDirty atomic.Bool
}

func New(logger hclog.Logger, s *scanner.Scanner, options Options) (*Daemon, error) {
	if s == nil {
		return nil, fmt.Errorf("scanner cannot be nil")
	}
	if options.Interval <= 0 {
		return nil, fmt.Errorf("scan interval must be positive, got %v", options.Interval)
	}

	return &Daemon{
		logger:  logger.Named("daemon"),
		scanner: s,
		store:   NewStore(),
		options: options,
	}, nil
}

// Store exposes the result store (used by the API server and tests).
func (d *Daemon) Store() *Store { return d.store }

// Run scans immediately, then on every interval tick until the context is
// cancelled. The API server, when configured, serves throughout.
func (d *Daemon) Run(ctx context.Context) error {
	if d.options.RulepackDir != "" {
		stop, err := d.watchRulepacks(ctx)
		if err != nil {
			d.logger.Warn("rulepack watch unavailable", "dir", d.options.RulepackDir, "error", err)
		} else {
			defer stop()
		}
	}

	if d.options.APIAddr != "" {
		api, err := NewAPIServer(d.logger, d.store, d.options.APIAddr)
		if err != nil {
			return err
		}
		ready := make(chan struct{})
		go func() {
			if err := api.Start(ctx, ready); err != nil {
				d.logger.Error("api server failed", "error", err)
			}
		}()
		<-ready
	}

	d.runScan(ctx)

	ticker := time.NewTicker(d.options.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon stopping")
			return nil
		case <-ticker.C:
			d.runScan(ctx)
		}
	}
}

// runScan applies any pending rulepack reload, then scans. Reloads happen
// strictly between scans; the engine is read-only while one runs.
func (d *Daemon) runScan(ctx context.Context) {
	if d.rulepacksDirty.Swap(false) {
		d.reloadRulepacks()
	}

	start := time.Now()
	results := d.scanner.Scan(ctx, d.options.ScanConfig)
	d.store.Set(results)

	d.logger.Info("scan complete",
		"scan_id", results.ScanID,
		"candidates", len(results.Candidates()),
		"confirmed", len(results.ConfirmedServers()),
		"duration", time.Since(start))
}

func (d *Daemon) reloadRulepacks() {
	var engine *rulepack.Engine
	if d.options.DisableDefaultRulepacks {
		engine = rulepack.NewEngine(d.logger)
	} else {
		engine = rulepack.NewDefaultEngine(d.logger)
	}
	if err := engine.LoadDir(d.options.RulepackDir); err != nil {
		d.logger.Error("rulepack reload failed, keeping previous engine", "error", err)
		return
	}

	d.scanner.SetEngine(engine)
	d.logger.Info("rulepacks reloaded", "dir", d.options.RulepackDir, "packs", len(engine.Rulepacks()))
}

// watchRulepacks marks the engine dirty whenever the rulepack directory
// changes. The reload itself is deferred to the next scan boundary.
func (d *Daemon) watchRulepacks(ctx context.Context) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(d.options.RulepackDir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					d.logger.Debug("rulepack change detected", "file", event.Name)
					d.rulepacksDirty.Store(true)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				d.logger.Warn("rulepack watch error", "error", err)
			}
		}
	}()

	return func() { _ = watcher.Close() }, nil
}
