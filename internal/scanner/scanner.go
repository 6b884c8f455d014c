package scanner

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/kholcomb/Kyros/internal/platform"
	"github.com/kholcomb/Kyros/internal/rulepack"
)

// Scanner orchestrates the one-shot pipeline: passive discovery, then
// optional active verification of the survivors.
type Scanner struct {
	logger  hclog.Logger
	adapter platform.Adapter
	engine  *rulepack.Engine
	passive *PassiveScanner
	active  *ActiveScanner
}

// New builds a scanner on the host platform adapter with the built-in
// rulepacks loaded.
func New(logger hclog.Logger) (*Scanner, error) {
	adapter, err := platform.NewAdapter()
	if err != nil {
		return nil, err
	}
	return NewWithAdapter(logger, adapter, rulepack.NewDefaultEngine(logger)), nil
}

// NewWithAdapter builds a scanner over an explicit adapter and rule engine.
func NewWithAdapter(logger hclog.Logger, adapter platform.Adapter, engine *rulepack.Engine) *Scanner {
	logger = logger.Named("scanner")
	return &Scanner{
		logger:  logger,
		adapter: adapter,
		engine:  engine,
		passive: NewPassiveScanner(logger, adapter, engine),
		active:  NewActiveScanner(logger, adapter),
	}
}

// Engine returns the rule engine applied during passive scans.
func (s *Scanner) Engine() *rulepack.Engine { return s.engine }

// SetEngine swaps the rule engine. Only valid between scans; the engine is
// read-only while a scan runs.
func (s *Scanner) SetEngine(engine *rulepack.Engine) {
	s.engine = engine
	s.passive = NewPassiveScanner(s.logger, s.adapter, engine)
}

// LoadRulepack appends one rulepack file to the engine.
func (s *Scanner) LoadRulepack(path string) error {
	return s.engine.LoadFile(path)
}

// Scan runs the configured phases and always returns a result object; every
// failure inside the pipeline lands in its errors.
func (s *Scanner) Scan(ctx context.Context, config Config) *Results {
	results := NewResults()

	if config.Mode != ModeActiveOnly {
		results.Passive = s.passive.Scan(ctx, config.Passive)
		for _, e := range results.Passive.Errors {
			results.Errors = append(results.Errors, "Passive scan: "+e)
		}
	}

	if config.Mode == ModePassiveThenActive || config.Mode == ModeActiveOnly {
		candidates := results.Passive.Candidates
		if config.Mode == ModeActiveOnly {
			candidates = config.Candidates
		}

		active := s.active.Scan(ctx, candidates, config.Active)
		for _, e := range active.Errors {
			results.Errors = append(results.Errors, "Active scan: "+e)
		}
		results.Active = &active
	}

	return results
}
