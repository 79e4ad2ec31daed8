package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// maxCandidateAbstract truncates abstracts sent to the reranker to keep
// the prompt small.
const maxCandidateAbstract = 800

// Candidate is the minimal view of a pool entry presented to the model.
type Candidate struct {
	CandidateID   string `json:"candidate_id"`
	Title         string `json:"title"`
	Year          int    `json:"year,omitempty"`
	Venue         string `json:"venue,omitempty"`
	DOI           string `json:"doi,omitempty"`
	CitationCount int    `json:"citationCount"`
	Abstract      string `json:"abstract,omitempty"`
	URL           string `json:"url,omitempty"`
}

// Selection is the model's choice from a candidate pool.
type Selection struct {
	CandidateID string
	Reason      string
	Confidence  float64
}

const rerankSystemPrompt = "Select the most likely original/seminal paper from candidates. " +
	"Return strict JSON only."

// rerankRequestPayload is the structured user message for reranking.
type rerankRequestPayload struct {
	Keyword        string         `json:"keyword"`
	ProposedTitles []string       `json:"proposed_titles"`
	Candidates     []Candidate    `json:"candidates"`
	OutputSchema   map[string]any `json:"output_schema"`
	Constraints    []string       `json:"constraints"`
}

// SelectFromPool asks the model to pick one candidate by id. The caller
// validates the returned id against the pool.
func (c *Client) SelectFromPool(ctx context.Context, keyword string, proposedTitles []string, candidates []Candidate) (Selection, error) {
	if len(candidates) == 0 {
		return Selection{}, fmt.Errorf("no candidates provided for pool selection")
	}
	if len(proposedTitles) == 0 {
		return Selection{}, fmt.Errorf("no proposed titles provided for pool selection")
	}

	trimmed := make([]Candidate, len(candidates))
	for i, candidate := range candidates {
		candidate.Abstract = truncateAbstract(candidate.Abstract, maxCandidateAbstract)
		trimmed[i] = candidate
	}

	userPayload, err := json.Marshal(rerankRequestPayload{
		Keyword:        keyword,
		ProposedTitles: proposedTitles,
		Candidates:     trimmed,
		OutputSchema: map[string]any{
			"selected_candidate_id": "string (must be one of candidate_id)",
			"reason":                "1-2 sentences",
			"confidence":            "0~1 number",
		},
		Constraints: []string{
			"prefer the original/first paper",
			"avoid obvious variants or improvements",
			"return JSON only, no markdown",
		},
	})
	if err != nil {
		return Selection{}, fmt.Errorf("marshaling payload: %w", err)
	}

	messages := []message{
		{Role: "system", Content: composeSystemPrompt(rerankSystemPrompt, c.cfg.SystemPrompt)},
		{Role: "user", Content: string(userPayload)},
	}

	content, _, err := c.complete(ctx, messages)
	if err != nil {
		return Selection{}, err
	}
	if content == "" {
		return Selection{}, fmt.Errorf("%w: rerank content", ErrEmptyResponse)
	}

	return parseSelection(content)
}

// truncateAbstract cuts on a rune boundary so multi-byte characters
// are never split into invalid UTF-8.
func truncateAbstract(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) > max {
		runes = runes[:max]
	}
	return strings.TrimSpace(string(runes))
}

// parseSelection validates the model's JSON payload.
func parseSelection(text string) (Selection, error) {
	obj, err := extractJSONObject(text, "selected_candidate_id")
	if err != nil {
		return Selection{}, err
	}

	candidateID := stringField(obj, "selected_candidate_id")
	if candidateID == "" {
		return Selection{}, fmt.Errorf("llm selected_candidate_id is empty")
	}
	reason := stringField(obj, "reason")
	if reason == "" {
		return Selection{}, fmt.Errorf("llm reason is empty")
	}
	confidence, ok := floatField(obj, "confidence")
	if !ok {
		return Selection{}, fmt.Errorf("llm confidence is missing or invalid")
	}
	if confidence < 0 || confidence > 1 {
		return Selection{}, fmt.Errorf("llm confidence %v out of [0, 1]", confidence)
	}

	return Selection{CandidateID: candidateID, Reason: reason, Confidence: confidence}, nil
}
