package scanner

import (
	"github.com/kholcomb/Kyros/internal/domain"
)

// Deduplicate merges candidates that share an identity, in input order: the
// earlier candidate survives and the later one's evidence is appended
// (multiset union; Noisy-OR recomputation handles the compounding). The
// scan is quadratic against a typical population of at most a thousand
// candidates.
func Deduplicate(candidates []domain.Candidate) []domain.Candidate {
	if len(candidates) < 2 {
		return candidates
	}

	out := make([]domain.Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		merged := false
		for i := range out {
			if sameIdentity(&out[i], &candidate) {
				for _, e := range candidate.Evidence {
					out[i].AddEvidence(e)
				}
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, candidate)
		}
	}
	return out
}

// sameIdentity applies the duplicate checks in fixed order: config
// file+key, PID, URL, then exact command equality.
func sameIdentity(a, b *domain.Candidate) bool {
	if a.ConfigFile != "" && b.ConfigFile != "" &&
		a.ConfigFile == b.ConfigFile && a.ConfigKey == b.ConfigKey {
		return true
	}
	if a.PID > 0 && b.PID > 0 && a.PID == b.PID {
		return true
	}
	if a.URL != "" && b.URL != "" && a.URL == b.URL {
		return true
	}
	if a.Command != "" && b.Command != "" && a.Command == b.Command {
		return true
	}
	return false
}
