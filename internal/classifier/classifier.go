// Package classifier adapts an external text-classification capability into
// a strict, well-typed moderation verdict. The adapter either produces a
// valid Verdict or fails with ErrUnavailable; malformed upstream output is
// never passed on as if it were a verdict.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"intelliblog/internal/config"
	"intelliblog/internal/models"
)

// ErrUnavailable reports that the external classifier errored or returned
// content that could not be decoded into a Verdict. Workflows treat it as
// retriable.
var ErrUnavailable = errors.New("classifier unavailable")

// Verdict is the classifier's judgement of one comment.
type Verdict struct {
	Level            string `json:"level"`
	Explanation      string `json:"explanation"`
	Removable        bool   `json:"removable"`
	UserNotification string `json:"userNotification,omitempty"`
}

// Classifier produces a moderation verdict for raw comment text.
type Classifier interface {
	Classify(ctx context.Context, text string) (*Verdict, error)
}

const systemPrompt = `You are an expert AI content moderator for a public blog.

You must classify user comments into four levels of offensiveness:

1. "none" - safe, respectful, or neutral.
2. "mild" - slightly inappropriate, sarcastic, borderline offensive, or passive-aggressive but not harmful.
3. "strong" - clearly offensive, insulting, or aggressive but without severe hate speech or vulgarity.
4. "extreme" - vulgar, hateful, threatening, or abusive; violates community guidelines.

Rules:
- Provide a short 1-2 sentence explanation justifying your classification.
- "removable" must be true only for "strong" or "extreme" levels.
- If "removable" is true, provide a short, polite userNotification email text.
- If "removable" is false, userNotification must be null.
- Never invent details not in the comment.

Return ONLY a valid JSON object with these exact keys:
{"level": "...", "explanation": "...", "removable": true/false, "userNotification": "..." or null}

Do not include markdown, code fences, extra text, or headings.`

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ Classifier = (*Client)(nil)

// NewClient builds a classifier client from configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		endpoint: cfg.ClassifierEndpoint,
		model:    cfg.ClassifierModel,
		apiKey:   cfg.ClassifierAPIKey,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Classify sends the comment text for moderation and decodes the verdict.
func (c *Client) Classify(ctx context.Context, text string) (*Verdict, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return nil, fmt.Errorf("%w: client misconfigured", ErrUnavailable)
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": "Classify the following comment:\n\nComment: " + text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal classifier payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: %s: %s", ErrUnavailable, resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty model output", ErrUnavailable)
	}

	return ParseVerdict(decoded.Choices[0].Message.Content)
}

// ParseVerdict decodes and validates raw model output into a Verdict. Models
// sometimes wrap JSON in code fences despite instructions; the fences are
// stripped but everything else is decode-or-fail.
func ParseVerdict(raw string) (*Verdict, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var v Verdict
	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: unparseable verdict: %v", ErrUnavailable, err)
	}

	if !models.ValidModerationLevel(v.Level) {
		return nil, fmt.Errorf("%w: unknown level %q", ErrUnavailable, v.Level)
	}
	removableLevel := v.Level == models.ModerationStrong || v.Level == models.ModerationExtreme
	if v.Removable != removableLevel {
		return nil, fmt.Errorf("%w: removable=%v inconsistent with level %q", ErrUnavailable, v.Removable, v.Level)
	}
	if !v.Removable {
		// userNotification must be absent for non-removable verdicts.
		v.UserNotification = ""
	}

	return &v, nil
}
