package ai

import (
	"net/http"
	"strings"
	"time"
)

// ChatOption configures a GroqClient.
type ChatOption func(*GroqClient)

// WithBaseURL points the client at another OpenAI-compatible endpoint.
func WithBaseURL(u string) ChatOption {
	return func(c *GroqClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) ChatOption {
	return func(c *GroqClient) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ChatOption {
	return func(c *GroqClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRetries sets how many times a retryable failure is retried and the
// first backoff delay, which doubles per attempt.
func WithRetries(n int, backoff time.Duration) ChatOption {
	return func(c *GroqClient) {
		if n >= 0 {
			c.maxRetries = n
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// AvatarOption configures an AvatarClient.
type AvatarOption func(*AvatarClient)

// WithImageGenerator sets the primary image model.
func WithImageGenerator(g ImageGenerator) AvatarOption {
	return func(a *AvatarClient) { a.gen = g }
}

// WithDiceBearURL sets the fallback avatar endpoint; empty disables it.
func WithDiceBearURL(u string) AvatarOption {
	return func(a *AvatarClient) { a.diceURL = u }
}

// WithAvatarHTTPClient replaces the HTTP client used for the fallback.
func WithAvatarHTTPClient(h *http.Client) AvatarOption {
	return func(a *AvatarClient) {
		if h != nil {
			a.httpClient = h
		}
	}
}
