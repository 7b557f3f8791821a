package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/okian/profilequest/pkg/logger"
	"github.com/okian/profilequest/pkg/metrics"
)

// Image sources reported to clients.
const (
	SourceGemini   = "gemini"
	SourceDiceBear = "dicebear"
	SourceNone     = "none"
)

const (
	defaultDiceBearURL = "https://api.dicebear.com/7.x/thumbs/png"
	maxSeedRunes       = 50
	maxImageBytes      = 10 << 20
	avatarHTTPTimeout  = 15 * time.Second
)

// Image is a generated picture. Data is empty when every source failed.
type Image struct {
	Data     []byte
	MIMEType string
	Source   string
}

// DataURL renders the image as a base64 data URL, or "" when empty.
func (i Image) DataURL() string {
	if len(i.Data) == 0 {
		return ""
	}
	mime := i.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// AvatarRequest describes one avatar. Reference is an optional likeness.
type AvatarRequest struct {
	Prompt        string
	Seed          string
	Reference     []byte
	ReferenceMIME string
}

// ImageGenerator produces an image from a prompt and optional reference.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, ref []byte, refMIME string) (data []byte, mime string, err error)
}

// AvatarClient tries the image model, then DiceBear, then gives up with an
// empty image. It never returns an error.
type AvatarClient struct {
	gen        ImageGenerator
	diceURL    string
	httpClient *http.Client
	logger     logger.Logger
}

// NewAvatarClient creates a client; without WithImageGenerator only the
// fallback is used.
func NewAvatarClient(opts ...AvatarOption) *AvatarClient {
	a := &AvatarClient{
		diceURL:    defaultDiceBearURL,
		httpClient: &http.Client{Timeout: avatarHTTPTimeout},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logger.Get().Named("avatar")
	return a
}

// Generate returns the best avatar available.
func (a *AvatarClient) Generate(ctx context.Context, req AvatarRequest) Image {
	if a.gen != nil {
		start := time.Now()
		data, mime, err := a.gen.GenerateImage(ctx, req.Prompt, req.Reference, req.ReferenceMIME)
		if err == nil && len(data) > 0 {
			metrics.RecordAIRequest("gemini", "ok", msSince(start))
			metrics.RecordAvatar(SourceGemini)
			return Image{Data: data, MIMEType: mime, Source: SourceGemini}
		}
		metrics.RecordAIRequest("gemini", "error", msSince(start))
		a.logger.Warn(ctx, "image model failed, falling back", logger.Error(err))
	}

	if a.diceURL != "" {
		data, err := a.diceBear(ctx, req.Seed)
		if err == nil {
			metrics.RecordAvatar(SourceDiceBear)
			return Image{Data: data, MIMEType: "image/png", Source: SourceDiceBear}
		}
		a.logger.Warn(ctx, "dicebear fallback failed", logger.Error(err))
	}

	metrics.RecordAvatar(SourceNone)
	return Image{Source: SourceNone}
}

func (a *AvatarClient) diceBear(ctx context.Context, seed string) ([]byte, error) {
	if r := []rune(seed); len(r) > maxSeedRunes {
		seed = string(r[:maxSeedRunes])
	}
	if strings.TrimSpace(seed) == "" {
		seed = "seed"
	}
	q := url.Values{}
	q.Set("seed", seed)
	q.Set("size", "256")
	q.Set("shapeColor", "9F8383")
	q.Set("backgroundColor", "FFDAB3")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.diceURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dicebear status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyResult
	}
	return data, nil
}

// GeminiImager generates images with a Gemini image model.
type GeminiImager struct {
	client *genai.Client
	model  string
}

var _ ImageGenerator = (*GeminiImager)(nil)

// NewGeminiImager creates an imager. baseURL overrides the API endpoint when
// not empty.
func NewGeminiImager(ctx context.Context, apiKey, model, baseURL string) (*GeminiImager, error) {
	if apiKey == "" {
		return nil, ErrDisabled
	}
	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if baseURL != "" {
		cfg.HTTPOptions.BaseURL = baseURL
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiImager{client: client, model: model}, nil
}

// GenerateImage returns the first inline image of the first candidate.
func (g *GeminiImager) GenerateImage(ctx context.Context, prompt string, ref []byte, refMIME string) ([]byte, string, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if len(ref) > 0 {
		if refMIME == "" {
			refMIME = "image/png"
		}
		parts = append(parts, genai.NewPartFromBytes(ref, refMIME))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityText), string(genai.ModalityImage)},
	})
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, "", ErrEmptyResult
	}
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
			mime := p.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return p.InlineData.Data, mime, nil
		}
	}
	return nil, "", ErrEmptyResult
}

// ParseDataURL decodes a base64 data URL or a bare base64 string. The MIME
// type defaults to image/png.
func ParseDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, "", nil
	}
	mime := "image/png"
	payload := s
	if strings.HasPrefix(s, "data:") {
		meta, data, ok := strings.Cut(s[len("data:"):], ",")
		if !ok || !strings.HasSuffix(meta, ";base64") {
			return nil, "", ErrBadDataURL
		}
		if m := strings.TrimSuffix(meta, ";base64"); m != "" {
			mime = m
		}
		payload = data
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrBadDataURL, err)
	}
	return data, mime, nil
}
