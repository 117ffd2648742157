// Package geminiservice wraps the Gemini generateContent API and the prompts built on it.
package geminiservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel       = "gemini-2.0-flash-001"
	requestTimeout     = 60 * time.Second
	structuredMimeType = "application/json"
)

// ErrNotConfigured is returned when no API key was provided.
var ErrNotConfigured = errors.New("server is not configured for AI generation")

type GeminiPayload struct {
	Contents          []GeminiContent   `json:"contents"`
	SystemInstruction *GeminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

type GeminiPart struct {
	Text string `json:"text,omitempty"`
}

type GenerationConfig struct {
	Temperature      *float64      `json:"temperature,omitempty"`
	TopP             float64       `json:"topP,omitempty"`
	MaxOutputTokens  int           `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string        `json:"responseMimeType,omitempty"`
	ResponseSchema   *GeminiSchema `json:"responseSchema,omitempty"`
}

type GeminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// Request is one generation call. Schema is only sent when JSON is set.
type Request struct {
	Name        string
	System      string
	User        string
	JSON        bool
	Schema      *GeminiSchema
	Temperature float64
}

// Client calls generateContent for a single model. Calls are throttled by a shared limiter
// and never retried.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient builds a client allowing rpm requests per minute. rpm <= 0 disables throttling.
func NewClient(apiKey, model string, rpm int, opts ...Option) *Client {
	if model == "" {
		model = DefaultModel
	}
	limit := rate.Inf
	if rpm > 0 {
		limit = rate.Every(time.Minute / time.Duration(rpm))
	}
	c := &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(limit, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Model() string { return c.model }

// Generate sends one request and returns the concatenated text of the first candidate.
func (c *Client) Generate(ctx context.Context, log *zerolog.Logger, r Request) (string, error) {
	if log == nil {
		log = zerolog.Ctx(ctx)
	}
	if c == nil || c.apiKey == "" {
		log.Error().Msg("GEMINI_API_KEY is not set")
		return "", ErrNotConfigured
	}

	temp := r.Temperature
	payload := GeminiPayload{
		Contents: []GeminiContent{
			{Role: "user", Parts: []GeminiPart{{Text: r.User}}},
		},
		GenerationConfig: &GenerationConfig{
			Temperature:     &temp,
			TopP:            0.95,
			MaxOutputTokens: 8192,
		},
	}
	if r.System != "" {
		payload.SystemInstruction = &GeminiContent{Parts: []GeminiPart{{Text: r.System}}}
	}
	if r.JSON {
		payload.GenerationConfig.ResponseMimeType = structuredMimeType
		payload.GenerationConfig.ResponseSchema = r.Schema
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("gemini rate limiter: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	log.Info().Str("call", r.Name).Str("model", c.model).Msg("Calling Gemini API...")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Error().Str("call", r.Name).Int("status", resp.StatusCode).Msg("Gemini API returned an error")
		return "", fmt.Errorf("gemini returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var out GeminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if len(out.Candidates) == 0 {
		return "", errors.New("no candidates in gemini response")
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no content in gemini response (finish reason %q)", out.Candidates[0].FinishReason)
	}

	log.Info().Str("call", r.Name).Dur("took", time.Since(start)).Int("chars", sb.Len()).Msg("Gemini API responded")
	return sb.String(), nil
}
