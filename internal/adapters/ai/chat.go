// Package ai talks to the hosted models behind quest, persona and avatar
// generation.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/profilequest/pkg/metrics"
)

// ChatRequest is one single-turn completion.
type ChatRequest struct {
	Model           string
	Prompt          string
	Temperature     float64
	ReasoningEffort string
}

// ChatClient completes prompts.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
	Enabled() bool
}

const (
	defaultGroqBaseURL = "https://api.groq.com/openai/v1"
	defaultChatTimeout = 60 * time.Second
	defaultMaxRetries  = 3
	defaultBackoff     = 500 * time.Millisecond
	maxErrorBody       = 512
)

// GroqClient calls an OpenAI-compatible /chat/completions endpoint.
type GroqClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

var _ ChatClient = (*GroqClient)(nil)

// NewGroqClient creates a client. An empty apiKey yields a disabled client
// whose calls fail with ErrDisabled.
func NewGroqClient(apiKey string, opts ...ChatOption) *GroqClient {
	c := &GroqClient{
		apiKey:     apiKey,
		baseURL:    defaultGroqBaseURL,
		httpClient: &http.Client{Timeout: defaultChatTimeout},
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether an API key is configured.
func (c *GroqClient) Enabled() bool { return c.apiKey != "" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatPayload struct {
	Model           string        `json:"model"`
	Messages        []chatMessage `json:"messages"`
	Temperature     float64       `json:"temperature"`
	ReasoningEffort string        `json:"reasoning_effort,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends req and returns the first choice's content. Rate limits,
// server errors and transport failures are retried with exponential backoff.
func (c *GroqClient) Complete(ctx context.Context, req ChatRequest) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	body, err := json.Marshal(chatPayload{
		Model:           req.Model,
		Messages:        []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature:     req.Temperature,
		ReasoningEffort: req.ReasoningEffort,
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				metrics.RecordAIRequest("groq", "cancelled", msSince(start))
				return "", ctx.Err()
			case <-time.After(c.backoff << (attempt - 1)):
			}
		}

		content, retry, err := c.do(ctx, body)
		if err == nil {
			metrics.RecordAIRequest("groq", "ok", msSince(start))
			return content, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	metrics.RecordAIRequest("groq", "error", msSince(start))
	return "", lastErr
}

func (c *GroqClient) do(ctx context.Context, body []byte) (content string, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", ctx.Err() == nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("%w: read body: %w", ErrUpstream, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return "", true, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, truncate(raw, maxErrorBody))
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", false, fmt.Errorf("%w: decode: %w", ErrUpstream, err)
	}
	if out.Error != nil {
		return "", false, fmt.Errorf("%w: %s", ErrUpstream, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", false, ErrEmptyResult
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), false, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
