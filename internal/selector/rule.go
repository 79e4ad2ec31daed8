package selector

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/paperfetch/paperfetch/internal/aggregate"
	"github.com/paperfetch/paperfetch/internal/paper"
)

// Scoring weights. Published records with a publisher DOI dominate;
// citation count contributes logarithmically so a famous paper cannot
// be displaced by citation count alone when the title is wrong.
const (
	weightKeywordContained = 20.0
	weightTokenOverlap     = 15.0
	penaltyNoOverlap       = -10.0
	penaltyAcronymVariant  = -8.0
	weightPublisherDOI     = 80.0
	weightPublished        = 40.0
	penaltyPreprint        = -20.0
	weightCitationLog      = 14.0
	penaltySurvey          = -30.0
	weightRecencyPerYear   = 0.8
	recencyHorizonYear     = 2030
)

var surveyPattern = regexp.MustCompile(`\b(survey|review)\b`)

// RuleStrategy scores candidates deterministically and picks the
// maximum. No external calls; repeated runs over the same pool return
// the same record.
type RuleStrategy struct{}

// Name returns the strategy identifier.
func (RuleStrategy) Name() string { return StrategyRule }

// Select picks the highest-scoring record. Ties on (score, citations,
// year) keep the earliest pool entry.
func (RuleStrategy) Select(_ context.Context, keyword string, proposals []string, pool *aggregate.Pool) (Selection, error) {
	papers := pool.Papers()
	if len(papers) == 0 {
		return Selection{}, ErrEmptyPool
	}

	// When proposals exist, the rank-1 title is a better relevance
	// anchor than the raw keyword.
	anchor := keyword
	if len(proposals) > 0 && strings.TrimSpace(proposals[0]) != "" {
		anchor = proposals[0]
	}
	if len(papers) == 1 {
		return Selection{Paper: papers[0], Score: Score(anchor, papers[0])}, nil
	}

	best := 0
	bestKey := rankKey(anchor, papers[0])
	for i := 1; i < len(papers); i++ {
		key := rankKey(anchor, papers[i])
		if key.greaterThan(bestKey) {
			best = i
			bestKey = key
		}
	}
	return Selection{Paper: papers[best], Score: bestKey.score}, nil
}

// ranking compares candidates by score, then citation count, then
// earlier year.
type ranking struct {
	score     float64
	citations int
	year      int
}

func rankKey(anchor string, p paper.Paper) ranking {
	year := p.Year
	if year == 0 {
		year = 9999
	}
	citations := p.CitationCount
	if citations < 0 {
		citations = 0
	}
	return ranking{score: Score(anchor, p), citations: citations, year: year}
}

func (r ranking) greaterThan(other ranking) bool {
	if r.score != other.score {
		return r.score > other.score
	}
	if r.citations != other.citations {
		return r.citations > other.citations
	}
	return r.year < other.year
}

// Score computes the rule score of one record against the query
// anchor. Exported for the validation-pool trim in the LLM strategy.
func Score(anchor string, p paper.Paper) float64 {
	score := relevanceScore(anchor, p.Title)

	if p.DOI != "" && !paper.IsArXivDOI(p.DOI) {
		score += weightPublisherDOI
	}
	if p.IsPreprint() {
		score += penaltyPreprint
	} else {
		score += weightPublished
	}

	citations := p.CitationCount
	if citations < 0 {
		citations = 0
	}
	score += math.Log1p(float64(citations)) * weightCitationLog

	if surveyPattern.MatchString(strings.ToLower(p.Title)) {
		score += penaltySurvey
	}

	if p.Year > 0 {
		recency := float64(recencyHorizonYear-p.Year) * weightRecencyPerYear
		if recency > 0 {
			score += recency
		}
	}
	return score
}

// relevanceScore measures how well a title matches the query anchor.
func relevanceScore(anchor, title string) float64 {
	titleNorm := paper.NormalizeText(title)
	anchorNorm := paper.NormalizeText(anchor)
	if titleNorm == "" || anchorNorm == "" {
		return -8.0
	}

	score := 0.0
	if strings.Contains(titleNorm, anchorNorm) {
		score += weightKeywordContained
	}

	anchorTokens := tokenSet(anchorNorm)
	titleTokens := tokenSet(titleNorm)
	overlap := 0
	for token := range anchorTokens {
		if titleTokens[token] {
			overlap++
		}
	}
	if overlap > 0 {
		score += weightTokenOverlap * float64(overlap) / float64(len(anchorTokens))
	} else {
		// Keep the candidate with a small penalty rather than
		// hard-filtering it.
		score += penaltyNoOverlap
	}

	// Penalize variant naming around short acronyms, e.g. DN-DETR or
	// DETR-v2 when the query is DETR.
	if len(anchorNorm) <= 8 && !strings.Contains(anchorNorm, " ") {
		rawTitle := strings.ToLower(title)
		escaped := regexp.QuoteMeta(anchorNorm)
		if matched, _ := regexp.MatchString(`\b[a-z0-9]+-`+escaped+`\b`, rawTitle); matched {
			score += penaltyAcronymVariant
		}
		if matched, _ := regexp.MatchString(`\b`+escaped+`-[a-z0-9]+\b`, rawTitle); matched {
			score += penaltyAcronymVariant
		}
	}
	return score
}
