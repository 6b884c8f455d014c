package rulepack

import (
	"embed"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/hashicorp/go-hclog"

	"github.com/kholcomb/Kyros/internal/domain"
)

//go:embed rulepacks/*.json
var embeddedPacks embed.FS

// Names of the built-in packs, loaded in this order so exclusions get the
// last word over detection boosts.
var embeddedOrder = []string{"default.json", "exclusions.json"}

// Engine owns an ordered sequence of rulepacks. It is constructed before a
// scan and read-only while one runs; reloads happen between scans.
type Engine struct {
	logger hclog.Logger
	packs  []*Rulepack
}

// NewEngine returns an engine with no rulepacks loaded.
func NewEngine(logger hclog.Logger) *Engine {
	return &Engine{logger: logger.Named("rulepack")}
}

// NewDefaultEngine returns an engine pre-loaded with the embedded default
// and exclusion packs.
func NewDefaultEngine(logger hclog.Logger) *Engine {
	e := NewEngine(logger)
	for _, name := range embeddedOrder {
		data, err := embeddedPacks.ReadFile("rulepacks/" + name)
		if err != nil {
			// Embedded packs ship with the binary; a miss is a build defect.
			panic(fmt.Sprintf("embedded rulepack %s: %v", name, err))
		}
		pack, err := ParseJSON(data)
		if err != nil {
			panic(fmt.Sprintf("embedded rulepack %s: %v", name, err))
		}
		e.Add(pack)
	}
	return e
}

// Add appends a rulepack after all currently loaded packs.
func (e *Engine) Add(pack *Rulepack) {
	e.packs = append(e.packs, pack)
	e.logger.Debug("loaded rulepack", "name", pack.Name, "version", pack.Version, "rules", len(pack.Rules))
}

// LoadFile parses one rulepack file and appends it. A failing document is
// fatal for that rulepack only.
func (e *Engine) LoadFile(path string) error {
	pack, err := LoadFile(path)
	if err != nil {
		return err
	}
	e.Add(pack)
	return nil
}

// LoadDir loads every *.json/*.yaml/*.yml rulepack in dir, sorted by name.
// Individual parse failures are logged and skipped; other packs continue
// to load.
func (e *Engine) LoadDir(dir string) error {
	var paths []string
	for _, pattern := range []string{"*.json", "*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := e.LoadFile(path); err != nil {
			e.logger.Warn("skipping rulepack", "path", path, "error", err)
		}
	}
	return nil
}

// Apply runs every rule of every pack against the candidate, in load order
// then rule order. Later rules may cap or un-cap earlier boosts; that
// ordering is part of the rulepack author's contract.
func (e *Engine) Apply(c *domain.Candidate) {
	for _, pack := range e.packs {
		pack.Apply(c)
	}
}

// Rulepacks returns the loaded packs in application order.
func (e *Engine) Rulepacks() []*Rulepack {
	return e.packs
}
