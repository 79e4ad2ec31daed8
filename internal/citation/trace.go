package citation

import (
	"fmt"
	"strings"
	"time"

	"github.com/paperfetch/paperfetch/internal/paper"
)

// Trace carries the run diagnostics written alongside the citation so
// an entry can be audited later.
type Trace struct {
	Keyword    string
	Provider   string
	SelectedBy string

	// MatchedTitle is the rank-1 proposed title the gate compared
	// against, empty when no proposals were made.
	MatchedTitle string

	// Similarity is the gate score; valid only when HasSimilarity.
	Similarity    float64
	HasSimilarity bool

	// Confidence is the model's self-reported confidence (llm
	// strategy); valid only when HasConfidence.
	Confidence    float64
	HasConfidence bool

	// Score is the rule score (rule strategy); valid only when
	// HasScore.
	Score    float64
	HasScore bool

	ProposedTitles []string
	Reason         string
}

const notAvailable = "N/A"

// Entry renders the citation line plus its [meta] trace block and the
// "---" entry separator.
func Entry(p paper.Paper, tr Trace, now time.Time) string {
	doi := p.DOI
	if doi == "" {
		doi = notAvailable
	}
	url := p.URL
	if url == "" {
		url = notAvailable
	}

	lines := []string{
		Format(p, now),
		fmt.Sprintf("[meta] keyword=%s provider=%s selected_by=%s time=%s",
			orNA(tr.Keyword), orNA(tr.Provider), orNA(tr.SelectedBy), now.Format("2006-01-02 15:04:05")),
		fmt.Sprintf("[meta] doi=%s url=%s", doi, url),
		fmt.Sprintf("[meta] confidence=%s matched_title=%s similarity=%s score=%s",
			optFloat(tr.Confidence, tr.HasConfidence),
			orNA(tr.MatchedTitle),
			optFloat(tr.Similarity, tr.HasSimilarity),
			optFloat(tr.Score, tr.HasScore)),
		fmt.Sprintf("[meta] proposed_titles=%s", joinOrNA(tr.ProposedTitles)),
		fmt.Sprintf("[meta] reason=%s", orNA(tr.Reason)),
		"---",
	}
	return strings.Join(lines, "\n") + "\n"
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

func optFloat(v float64, ok bool) string {
	if !ok {
		return notAvailable
	}
	return fmt.Sprintf("%.3f", v)
}

func joinOrNA(titles []string) string {
	if len(titles) == 0 {
		return notAvailable
	}
	return strings.Join(titles, " | ")
}
