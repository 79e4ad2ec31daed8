// Package selector reduces a candidate pool to a single chosen record
// and gates the choice on title similarity to the model's top proposal.
package selector

import (
	"context"
	"errors"
	"fmt"

	"github.com/paperfetch/paperfetch/internal/aggregate"
	"github.com/paperfetch/paperfetch/internal/paper"
)

// Strategy names used in trace output and CLI flags.
const (
	StrategyRule = "rule"
	StrategyLLM  = "llm"
)

// DefaultSimilarityThreshold is the minimum title similarity between
// the chosen record and the rank-1 proposed title.
const DefaultSimilarityThreshold = 0.6

// Common errors returned by selection.
var (
	// ErrEmptyPool indicates there were no candidates to choose from.
	ErrEmptyPool = errors.New("candidate pool is empty")

	// ErrBadSelection indicates the model chose an id not in the pool.
	ErrBadSelection = errors.New("llm selected an invalid candidate")
)

// Selection is the outcome of a strategy: one chosen record plus
// whatever diagnostics the strategy produced.
type Selection struct {
	Paper paper.Paper

	// Score is the rule score (rule strategy) or the model confidence
	// (llm strategy).
	Score float64

	// Reason is the model's stated reason (llm strategy only).
	Reason string
}

// Strategy chooses exactly one record from a non-empty pool. Proposals
// may be empty on the rule path.
type Strategy interface {
	Name() string
	Select(ctx context.Context, keyword string, proposals []string, pool *aggregate.Pool) (Selection, error)
}

// LowSimilarityError reports a chosen record that failed the
// similarity gate. It is fatal: a wrong-paper citation is worse than no
// citation.
type LowSimilarityError struct {
	Score     float64
	Threshold float64
}

func (e *LowSimilarityError) Error() string {
	return fmt.Sprintf("selected title similarity %.3f below threshold %.3f", e.Score, e.Threshold)
}

// Gate compares a chosen record's title against the rank-1 proposed
// title and rejects the run when the similarity is below the threshold.
type Gate struct {
	Threshold float64
}

// NewGate creates a gate, applying the default threshold when the
// supplied value is not positive.
func NewGate(threshold float64) Gate {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return Gate{Threshold: threshold}
}

// Check returns the similarity score, and a *LowSimilarityError when
// the score does not reach the threshold.
func (g Gate) Check(chosenTitle, topProposal string) (float64, error) {
	score := TitleSimilarity(chosenTitle, topProposal)
	if score < g.Threshold {
		return score, &LowSimilarityError{Score: score, Threshold: g.Threshold}
	}
	return score, nil
}
