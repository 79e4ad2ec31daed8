// Package llm calls an OpenAI-compatible chat-completions endpoint for
// title proposal and candidate pool reranking.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the read timeout for completion calls.
	DefaultTimeout = 90 * time.Second

	// connectTimeout bounds connection establishment separately from the
	// full response read.
	connectTimeout = 10 * time.Second

	// maxCompletionTokens caps the model response size; both call sites
	// expect a small JSON object.
	maxCompletionTokens = 512
)

// Common errors returned by the LLM client.
var (
	// ErrEmptyResponse indicates the model returned no usable content.
	ErrEmptyResponse = errors.New("llm response is empty")

	// ErrNoJSON indicates the model text contained no JSON object.
	ErrNoJSON = errors.New("llm text does not contain a JSON object")
)

// Config holds the connection settings for the completion endpoint.
type Config struct {
	BaseURL          string
	APIKey           string
	Model            string
	DisableReasoning bool
	SystemPrompt     string // Opaque user preference text, passed through
	Timeout          time.Duration
}

// Validate checks that the required fields are present.
func (c Config) Validate() error {
	var missing []string
	if c.BaseURL == "" {
		missing = append(missing, "llm.base_url")
	}
	if c.APIKey == "" {
		missing = append(missing, "llm.api_key")
	}
	if c.Model == "" {
		missing = append(missing, "llm.model")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing LLM config: %s", strings.Join(missing, ", "))
	}
	if !strings.HasPrefix(c.BaseURL, "http") {
		return errors.New("llm.base_url must start with http/https")
	}
	return nil
}

// Client is a minimal chat-completions client.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a client for the configured endpoint.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
	}
}

// message is one chat message.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the completion request body. Thinking is a provider
// extension for disabling reasoning output; some backends reject it, so
// the request is retried once without it on any 4xx/5xx.
type chatRequest struct {
	Model       string          `json:"model"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
	Messages    []message       `json:"messages"`
	Thinking    json.RawMessage `json:"thinking,omitempty"`
}

// chatResponse is the subset of the completion response we consume.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"message"`
	} `json:"choices"`
}

// complete posts the messages and returns the message content plus any
// reasoning content.
func (c *Client) complete(ctx context.Context, messages []message) (content, reasoning string, err error) {
	req := chatRequest{
		Model:       c.cfg.Model,
		Temperature: 0,
		MaxTokens:   maxCompletionTokens,
		Messages:    messages,
	}
	if c.cfg.DisableReasoning {
		req.Thinking = json.RawMessage(`{"type":"disabled"}`)
	}

	resp, err := c.post(ctx, req)
	if err == nil && resp.StatusCode >= 400 && c.cfg.DisableReasoning {
		// The thinking field is non-standard; retry once without it.
		debugf("request with thinking field got HTTP %d, retrying without it", resp.StatusCode)
		resp.Body.Close()
		req.Thinking = nil
		resp, err = c.post(ctx, req)
	}
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return "", "", fmt.Errorf("llm request failed: HTTP %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", "", fmt.Errorf("decoding llm response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", "", fmt.Errorf("%w: no choices", ErrEmptyResponse)
	}

	msg := parsed.Choices[0].Message
	content = strings.TrimSpace(msg.Content)
	reasoning = strings.TrimSpace(msg.ReasoningContent)
	if content == "" && reasoning == "" {
		return "", "", fmt.Errorf("%w: no content", ErrEmptyResponse)
	}
	return content, reasoning, nil
}

// post sends one completion request.
func (c *Client) post(ctx context.Context, req chatRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	debugf("POST %s model=%s timeout=%s payload_bytes=%d", endpoint, c.cfg.Model, c.cfg.Timeout, len(body))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm request failed before response: %w", err)
	}
	return resp, nil
}

// composeSystemPrompt appends the opaque user preference text to the
// default prompt. The user text is never parsed or validated.
func composeSystemPrompt(defaultPrompt, userPrompt string) string {
	custom := strings.TrimSpace(userPrompt)
	if custom == "" {
		return defaultPrompt
	}
	return defaultPrompt + "\n\n" +
		"Additional user preference (higher priority unless it conflicts with JSON constraints):\n" +
		custom
}

// debugf prints diagnostics to stderr when LLM_DEBUG is set.
func debugf(format string, args ...any) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LLM_DEBUG"))) {
	case "1", "true", "yes", "on":
		fmt.Fprintf(os.Stderr, "[llm-debug] "+format+"\n", args...)
	}
}
