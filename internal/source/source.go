// Package source implements the passive discovery sources: config files,
// processes, network listeners, and containers. Sources emit raw candidates
// with at least one evidence item each and never read each other's output;
// policy (boosts, vetoes, thresholds) belongs to the rulepack engine and the
// passive coordinator.
package source

import (
	"context"

	"github.com/kholcomb/Kyros/internal/domain"
)

// Result is one source's output for a single scan.
type Result struct {
	Candidates []domain.Candidate

	// ItemsChecked counts the units this source examined (config files,
	// processes, sockets, containers) for the scan statistics.
	ItemsChecked int
}

// Source is one passive discovery source. Detect treats the platform
// adapter as read-only and returns every candidate that accrued evidence.
type Source interface {
	Name() string
	Detect(ctx context.Context) (Result, error)
}
