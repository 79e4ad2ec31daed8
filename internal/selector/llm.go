package selector

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/paperfetch/paperfetch/internal/aggregate"
	"github.com/paperfetch/paperfetch/internal/llm"
	"github.com/paperfetch/paperfetch/internal/paper"
)

// DefaultValidationPoolSize bounds how many candidates are sent to the
// model for reranking.
const DefaultValidationPoolSize = 10

// LLMStrategy asks the model to pick the best candidate out of a
// trimmed validation pool.
type LLMStrategy struct {
	Client *llm.Client

	// PoolSize caps the validation pool; zero or negative means
	// DefaultValidationPoolSize.
	PoolSize int
}

// Name returns the strategy identifier.
func (s *LLMStrategy) Name() string { return StrategyLLM }

// Select trims the pool, sends the survivors to the model and maps its
// choice back to the pool record. An id outside the pool is
// ErrBadSelection; the caller decides whether to fall back.
func (s *LLMStrategy) Select(ctx context.Context, keyword string, proposals []string, pool *aggregate.Pool) (Selection, error) {
	papers := pool.Papers()
	if len(papers) == 0 {
		return Selection{}, ErrEmptyPool
	}
	if len(papers) == 1 {
		return Selection{Paper: papers[0], Reason: "only candidate"}, nil
	}

	size := s.PoolSize
	if size <= 0 {
		size = DefaultValidationPoolSize
	}
	trimmed := trimPool(keyword, proposals, papers, size)

	candidates := make([]llm.Candidate, len(trimmed))
	for i, p := range trimmed {
		candidates[i] = llm.Candidate{
			CandidateID:   fmt.Sprintf("C%d", i+1),
			Title:         p.Title,
			Year:          p.Year,
			Venue:         p.Venue,
			DOI:           p.DOI,
			CitationCount: p.CitationCount,
			Abstract:      p.Abstract,
			URL:           p.URL,
		}
	}

	titles := proposals
	if len(titles) == 0 {
		// The reranker wants at least one anchor title; fall back to
		// the raw keyword when the proposal step was skipped.
		titles = []string{keyword}
	}
	sel, err := s.Client.SelectFromPool(ctx, keyword, titles, candidates)
	if err != nil {
		return Selection{}, err
	}

	idx := -1
	for i, c := range candidates {
		if strings.EqualFold(strings.TrimSpace(sel.CandidateID), c.CandidateID) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Selection{}, fmt.Errorf("%w: %q", ErrBadSelection, sel.CandidateID)
	}
	return Selection{Paper: trimmed[idx], Score: sel.Confidence, Reason: sel.Reason}, nil
}

// trimPool keeps at most size candidates. Records whose normalized
// title exactly matches a proposed title go first (most cited first);
// the remainder is filled by rule score.
func trimPool(keyword string, proposals []string, papers []paper.Paper, size int) []paper.Paper {
	if len(papers) <= size {
		return papers
	}

	proposed := map[string]bool{}
	for _, title := range proposals {
		if norm := paper.NormalizeText(title); norm != "" {
			proposed[norm] = true
		}
	}

	anchor := keyword
	if len(proposals) > 0 && strings.TrimSpace(proposals[0]) != "" {
		anchor = proposals[0]
	}

	var exact, rest []paper.Paper
	for _, p := range papers {
		if proposed[paper.NormalizeText(p.Title)] {
			exact = append(exact, p)
		} else {
			rest = append(rest, p)
		}
	}
	sort.SliceStable(exact, func(i, j int) bool {
		return exact[i].CitationCount > exact[j].CitationCount
	})
	sort.SliceStable(rest, func(i, j int) bool {
		return Score(anchor, rest[i]) > Score(anchor, rest[j])
	})

	out := make([]paper.Paper, 0, size)
	out = append(out, exact...)
	if len(out) > size {
		return out[:size]
	}
	out = append(out, rest[:size-len(out)]...)
	return out
}
