package questsim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okian/profilequest/internal/domain/model"
)

// StatusError is returned for any non-2xx answer.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

const maxThrottleRetries = 5

// Client is a minimal API client. Requests answered with 429 are retried
// after the advertised Retry-After.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the API rooted at base.
func NewClient(base string, timeout time.Duration) *Client {
	return &Client{base: base, http: &http.Client{Timeout: timeout}}
}

// Session is the signup answer.
type Session struct {
	Token string        `json:"token"`
	User  model.Profile `json:"user"`
}

// Completion is the answer to a quest completion.
type Completion struct {
	Quest     model.Quest   `json:"quest"`
	Profile   model.Profile `json:"profile"`
	LeveledUp bool          `json:"leveled_up"`
}

// Progress is the profile with its quest counts.
type Progress struct {
	model.Profile
	Available int `json:"available_quests"`
	Completed int `json:"completed_quests"`
}

// XPHistory is the bucketed history answer.
type XPHistory struct {
	Buckets []struct {
		XP int64 `json:"xp"`
	} `json:"buckets"`
	Total int64 `json:"total"`
}

// Health checks GET /api/health.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", "", nil, nil)
}

// Signup creates an account and returns its session.
func (c *Client) Signup(ctx context.Context, email, name, password string) (Session, error) {
	var s Session
	body := map[string]string{"email": email, "name": name, "password": password}
	err := c.do(ctx, http.MethodPost, "/api/auth/signup", "", body, &s)
	return s, err
}

// SaveQuests stores drafts for the session's user.
func (c *Client) SaveQuests(ctx context.Context, token string, drafts []model.QuestDraft) ([]model.Quest, error) {
	var out struct {
		Quests []model.Quest `json:"quests"`
	}
	err := c.do(ctx, http.MethodPost, "/api/quests/save", token, map[string]any{"quests": drafts}, &out)
	return out.Quests, err
}

// Complete marks a quest completed.
func (c *Client) Complete(ctx context.Context, token, title string) (Completion, error) {
	var out Completion
	err := c.do(ctx, http.MethodPost, "/api/quests/complete", token, map[string]string{"title": title}, &out)
	return out, err
}

// Progress fetches the profile with its quest counts.
func (c *Client) Progress(ctx context.Context, token string) (Progress, error) {
	var out Progress
	err := c.do(ctx, http.MethodGet, "/api/progress", token, nil, &out)
	return out, err
}

// History fetches the bucketed XP history.
func (c *Client) History(ctx context.Context, token, rangeName, tz string) (XPHistory, error) {
	q := url.Values{"range": {rangeName}}
	if tz != "" {
		q.Set("tz", tz)
	}
	var out XPHistory
	err := c.do(ctx, http.MethodGet, "/api/xp/history?"+q.Encode(), token, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		payload = b
	}
	for attempt := 0; ; attempt++ {
		wait, err := c.once(ctx, method, path, token, payload, out)
		if wait <= 0 || attempt == maxThrottleRetries {
			return err
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
}

// once performs a single request. A positive wait means the server asked
// for a retry after that long.
func (c *Client) once(ctx context.Context, method, path, token string, payload []byte, out any) (time.Duration, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(raw))}
		if resp.StatusCode == http.StatusTooManyRequests {
			return retryAfter(resp.Header.Get("Retry-After")), serr
		}
		return 0, serr
	}
	if out == nil {
		return 0, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return 0, fmt.Errorf("decode %s: %w", path, err)
	}
	return 0, nil
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 1 {
		return time.Second
	}
	return time.Duration(secs) * time.Second
}
