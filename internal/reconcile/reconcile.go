// Package reconcile cross-checks a chosen record against a second
// provider and backfills metadata the first provider left empty.
// Reconciliation never fails a run; when no backup record is found the
// primary record is returned untouched.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/paperfetch/paperfetch/internal/paper"
	"github.com/paperfetch/paperfetch/internal/provider"
)

const (
	// titleSearchLimit caps the backup title search.
	titleSearchLimit = 8

	// minMatchScore is the minimum match score for a backup record to
	// be trusted as the same paper.
	minMatchScore = 20
)

// Report records what reconciliation did, for trace output.
type Report struct {
	// Provider is the backup provider consulted, empty when none was
	// eligible.
	Provider string

	// Matched is true when a backup record passed the match gate and
	// was merged.
	Matched bool

	// MatchScore is the match score of the merged backup record.
	MatchScore int

	// Filled lists the field names backfilled from the backup record.
	Filled []string

	// Err holds the lookup error, if any. Informational only.
	Err error
}

func (r Report) String() string {
	switch {
	case r.Provider == "":
		return "reconcile: no backup provider"
	case r.Err != nil:
		return fmt.Sprintf("reconcile: %s lookup failed: %v", r.Provider, r.Err)
	case !r.Matched:
		return fmt.Sprintf("reconcile: no confident match on %s", r.Provider)
	case len(r.Filled) == 0:
		return fmt.Sprintf("reconcile: matched on %s, nothing to backfill", r.Provider)
	default:
		return fmt.Sprintf("reconcile: matched on %s (score %d), filled %v", r.Provider, r.MatchScore, r.Filled)
	}
}

// Reconciler holds the providers eligible as backup sources.
type Reconciler struct {
	providers []provider.Provider
}

// New builds a reconciler over the given providers. The primary
// record's own source is skipped at enrich time.
func New(providers ...provider.Provider) *Reconciler {
	return &Reconciler{providers: providers}
}

// Enrich looks the record up on a different provider and merges missing
// fields. The returned record is always usable; inspect the report for
// what happened.
func (r *Reconciler) Enrich(ctx context.Context, primary paper.Paper) (paper.Paper, Report) {
	backup := r.pickBackup(primary.Source)
	if backup == nil {
		return primary, Report{}
	}
	report := Report{Provider: backup.Name()}

	match, score, err := r.findMatch(ctx, backup, primary)
	if err != nil {
		report.Err = err
		return primary, report
	}
	if match == nil {
		return primary, report
	}

	report.Matched = true
	report.MatchScore = score
	merged, filled := merge(primary, *match)
	report.Filled = filled
	return merged, report
}

// pickBackup returns the first provider that is not the record's own
// source.
func (r *Reconciler) pickBackup(source string) provider.Provider {
	for _, p := range r.providers {
		if p.Name() != source {
			return p
		}
	}
	return nil
}

// findMatch fetches a candidate backup record. A DOI lookup is
// authoritative; otherwise the best title-search hit must clear the
// match gate.
func (r *Reconciler) findMatch(ctx context.Context, backup provider.Provider, primary paper.Paper) (*paper.Paper, int, error) {
	if primary.DOI != "" {
		if lookuper, ok := backup.(provider.DOILookuper); ok {
			found, err := lookuper.LookupDOI(ctx, primary.DOI)
			if err == nil {
				return found, matchScore(primary, *found), nil
			}
			if !provider.IsNotFound(err) {
				return nil, 0, err
			}
			// Not indexed by DOI; fall through to title search.
		}
	}

	if primary.Title == "" {
		return nil, 0, nil
	}
	hits, err := backup.Search(ctx, primary.Title, titleSearchLimit)
	if err != nil {
		return nil, 0, err
	}

	var best *paper.Paper
	bestScore := 0
	for i := range hits {
		score := matchScore(primary, hits[i])
		if best == nil || betterMatch(score, hits[i], bestScore, *best) {
			best = &hits[i]
			bestScore = score
		}
	}
	if best == nil || bestScore < minMatchScore {
		return nil, 0, nil
	}
	return best, bestScore, nil
}

// matchScore estimates how likely the candidate is the same paper as
// the primary record.
func matchScore(primary, candidate paper.Paper) int {
	score := 0
	if primary.DOI != "" && paper.NormalizeDOI(primary.DOI) == paper.NormalizeDOI(candidate.DOI) {
		score += 100
	}
	primaryTitle := paper.NormalizeText(primary.Title)
	candidateTitle := paper.NormalizeText(candidate.Title)
	switch {
	case primaryTitle == "" || candidateTitle == "":
	case primaryTitle == candidateTitle:
		score += 50
	case contains(primaryTitle, candidateTitle):
		score += 20
	}
	if primary.Year > 0 && candidate.Year > 0 {
		switch diff := primary.Year - candidate.Year; {
		case diff == 0:
			score += 8
		case diff == 1 || diff == -1:
			score += 3
		}
	}
	return score
}

// contains reports whether either normalized title contains the other.
func contains(a, b string) bool {
	if len(a) < len(b) {
		a, b = b, a
	}
	return strings.Contains(a, b)
}

// betterMatch prefers a higher score, then more citations, then the
// earlier year.
func betterMatch(score int, candidate paper.Paper, bestScore int, best paper.Paper) bool {
	if score != bestScore {
		return score > bestScore
	}
	if candidate.CitationCount != best.CitationCount {
		return candidate.CitationCount > best.CitationCount
	}
	candidateYear, bestYear := candidate.Year, best.Year
	if candidateYear == 0 {
		candidateYear = 9999
	}
	if bestYear == 0 {
		bestYear = 9999
	}
	return candidateYear < bestYear
}
