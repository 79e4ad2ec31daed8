package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// maxProposedTitles caps the proposal list; rank 1 drives the
// similarity gate downstream.
const maxProposedTitles = 3

// Proposal is the model's guess at the original paper titles for a
// keyword, rank 1 first.
type Proposal struct {
	Titles     []string
	Reason     string
	Confidence float64
}

// Top returns the rank-1 title.
func (p Proposal) Top() string {
	if len(p.Titles) == 0 {
		return ""
	}
	return p.Titles[0]
}

const titleSystemPrompt = "Given a keyword, propose likely original/seminal paper titles. " +
	"Return strict JSON only."

// titleRequestPayload is the structured user message for title proposal.
type titleRequestPayload struct {
	Keyword      string         `json:"keyword"`
	OutputSchema map[string]any `json:"output_schema"`
	Constraints  []string       `json:"constraints"`
}

// ProposeTitles asks the model for 1-3 candidate original-paper titles
// matching the keyword.
func (c *Client) ProposeTitles(ctx context.Context, keyword string) (Proposal, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return Proposal{}, fmt.Errorf("keyword is empty")
	}

	userPayload, err := json.Marshal(titleRequestPayload{
		Keyword: keyword,
		OutputSchema: map[string]any{
			"titles":     []string{"string", "string", "string"},
			"reason":     "1-2 sentences",
			"confidence": "0~1 number",
		},
		Constraints: []string{
			"titles must be specific paper titles",
			"prefer original/first paper over later variants",
			"no markdown, return JSON only",
		},
	})
	if err != nil {
		return Proposal{}, fmt.Errorf("marshaling payload: %w", err)
	}

	messages := []message{
		{Role: "system", Content: composeSystemPrompt(titleSystemPrompt, c.cfg.SystemPrompt)},
		{Role: "user", Content: string(userPayload)},
	}

	content, reasoning, err := c.complete(ctx, messages)
	if err != nil {
		return Proposal{}, err
	}

	// Some models put everything in reasoning and leave content empty.
	if content == "" {
		content = reasoning
	}

	proposal, parseErr := parseProposal(content)
	if parseErr == nil {
		return proposal, nil
	}

	// Truncated or malformed JSON: salvage title-looking strings from
	// the reasoning text before giving up.
	if fallback, ok := proposalFromText(reasoning); ok {
		debugf("using fallback title extraction from reasoning content")
		return fallback, nil
	}
	return Proposal{}, parseErr
}

// parseProposal validates the model's JSON payload.
func parseProposal(text string) (Proposal, error) {
	obj, err := extractJSONObject(text, "titles")
	if err != nil {
		return Proposal{}, err
	}

	rawTitles, ok := obj["titles"].([]any)
	if !ok {
		return Proposal{}, fmt.Errorf("llm titles must be a JSON array")
	}
	titles := normalizeTitles(rawTitles)
	if len(titles) == 0 {
		return Proposal{}, fmt.Errorf("llm returned an empty titles list")
	}

	reason := stringField(obj, "reason")
	if reason == "" {
		return Proposal{}, fmt.Errorf("llm reason is empty")
	}

	confidence, ok := floatField(obj, "confidence")
	if !ok {
		return Proposal{}, fmt.Errorf("llm confidence is missing or invalid")
	}
	if confidence < 0 || confidence > 1 {
		return Proposal{}, fmt.Errorf("llm confidence %v out of [0, 1]", confidence)
	}

	return Proposal{Titles: titles, Reason: reason, Confidence: confidence}, nil
}

// normalizeTitles trims, collapses whitespace, dedups case-insensitively,
// and caps the list.
func normalizeTitles(raw []any) []string {
	var titles []string
	seen := map[string]bool{}
	for _, item := range raw {
		text, _ := item.(string)
		normalized := strings.Join(strings.Fields(text), " ")
		if normalized == "" {
			continue
		}
		key := strings.ToLower(normalized)
		if seen[key] {
			continue
		}
		seen[key] = true
		titles = append(titles, normalized)
		if len(titles) == maxProposedTitles {
			break
		}
	}
	return titles
}

var (
	quotedPattern = regexp.MustCompile(`"([^"]{6,260})"`)
	singlePattern = regexp.MustCompile(`'([^']{6,260})'`)
	titledPattern = regexp.MustCompile(`(?i)titled\s+([A-Z][^.:\n]{8,260})`)
)

// schemaTokens are fragments of the prompt itself; a "title" containing
// one is the model echoing instructions, not naming a paper.
var schemaTokens = []string{"keyword", "output format", "schema", "constraints", "json", "confidence", "reason"}

// proposalFromText extracts title-looking strings from free text. Used
// when structured output fails but reasoning content survived.
func proposalFromText(text string) (Proposal, bool) {
	if strings.TrimSpace(text) == "" {
		return Proposal{}, false
	}

	var candidates []string
	for _, re := range []*regexp.Regexp{quotedPattern, singlePattern, titledPattern} {
		for _, match := range re.FindAllStringSubmatch(text, -1) {
			candidates = append(candidates, match[1])
		}
	}

	var titles []string
	seen := map[string]bool{}
	for _, candidate := range candidates {
		normalized := strings.Trim(strings.Join(strings.Fields(candidate), " "), " .,:;")
		if !looksLikeTitle(normalized) {
			continue
		}
		key := strings.ToLower(normalized)
		if seen[key] {
			continue
		}
		seen[key] = true
		titles = append(titles, normalized)
		if len(titles) == maxProposedTitles {
			break
		}
	}

	if len(titles) == 0 {
		return Proposal{}, false
	}
	return Proposal{
		Titles:     titles,
		Reason:     "LLM JSON output was truncated; extracted candidate titles from reasoning content.",
		Confidence: 0.35,
	}, true
}

// looksLikeTitle filters out fragments too short or too prompt-like to
// be paper titles.
func looksLikeTitle(text string) bool {
	if len(text) < 12 || len(text) > 240 {
		return false
	}
	if len(strings.Fields(text)) < 3 {
		return false
	}
	lowered := strings.ToLower(text)
	for _, token := range schemaTokens {
		if strings.Contains(lowered, token) {
			return false
		}
	}
	return true
}
