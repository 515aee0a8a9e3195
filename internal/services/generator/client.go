// Package generator calls an OpenAI-compatible chat completions endpoint to
// produce article drafts.
package generator

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

	"golang.org/x/time/rate"

	"pressline/internal/config"
	"pressline/internal/content"
	"pressline/internal/services"
	"pressline/internal/topic"
)

const serviceName = "generator"

// Draft is the product of one generation call.
type Draft struct {
	Title     string
	Body      string // Markdown, leading title stripped
	WordCount int
}

// Client wraps the chat completion API for article generation.
type Client struct {
	cfg        config.Generator
	marginPct  int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a generator client from configuration.
func NewClient(cfg config.Generator, marginPct int, opts ...Option) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	client := &Client{
		cfg:        cfg,
		marginPct:  marginPct,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Generate produces an article draft for a topic. When the draft misses the
// target word count by more than the configured margin, one regeneration pass
// is attempted before the longer of the two drafts is accepted.
func (c *Client) Generate(ctx context.Context, rec topic.Record) (Draft, error) {
	draft, err := c.generateOnce(ctx, rec, "")
	if err != nil {
		return Draft{}, err
	}
	if c.withinMargin(draft.WordCount, rec.TargetWordCount) {
		return draft, nil
	}

	correction := fmt.Sprintf(
		"The previous draft was %d words; the required length is %d words. Rewrite the full article at the required length.",
		draft.WordCount, rec.TargetWordCount,
	)
	redraft, err := c.generateOnce(ctx, rec, correction)
	if err != nil {
		// The first draft is still usable; length is a soft requirement.
		return draft, nil
	}
	if absDelta(redraft.WordCount, rec.TargetWordCount) < absDelta(draft.WordCount, rec.TargetWordCount) {
		return redraft, nil
	}
	return draft, nil
}

func (c *Client) generateOnce(ctx context.Context, rec topic.Record, correction string) (Draft, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return Draft{}, services.Wrap(services.ErrPermanent, serviceName, "generate", "api key required", nil)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Draft{}, services.Wrap(services.ErrTransient, serviceName, "generate", "rate limit wait", err)
	}

	userPrompt := BuildPrompt(rec)
	if correction != "" {
		userPrompt += "\n\n" + correction
	}
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.7,
	}

	raw, err := c.sendChatRequest(ctx, payload)
	if err != nil {
		return Draft{}, err
	}

	title := content.ExtractTitle(raw, rec.Topic)
	body := content.StripLeadingTitle(raw)
	return Draft{
		Title:     title,
		Body:      body,
		WordCount: content.WordCount(body),
	}, nil
}

func (c *Client) withinMargin(actual, target int) bool {
	if target <= 0 {
		return true
	}
	margin := target * c.marginPct / 100
	return absDelta(actual, target) <= margin
}

func absDelta(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

const systemPrompt = "You are a professional content writer. Respond with the complete article in Markdown, starting with a single # heading used as the title."

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) sendChatRequest(ctx context.Context, payload chatCompletionRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, serviceName, "request", "encode body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, serviceName, "request", "new request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", services.Wrap(services.ErrTransient, serviceName, "request", "http error", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, serviceName, "request", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", services.ClassifyHTTPStatus(serviceName, resp.StatusCode, body)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", services.Wrap(services.ErrTransient, serviceName, "request", "decode response", err)
	}
	if completion.Error != nil {
		return "", services.Wrap(services.ErrPermanent, serviceName, "request", "api error: "+strings.TrimSpace(completion.Error.Message), nil)
	}
	if len(completion.Choices) == 0 {
		return "", services.Wrap(services.ErrTransient, serviceName, "request", "empty choices", nil)
	}
	choice := completion.Choices[0]
	if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
		// Content policy refusals never succeed on retry.
		return "", services.Wrap(services.ErrPermanent, serviceName, "generate", "refused: "+refusal, nil)
	}
	draft := strings.TrimSpace(choice.Message.Content)
	if draft == "" {
		return "", services.Wrap(services.ErrTransient, serviceName, "generate",
			fmt.Sprintf("empty content (finish_reason=%q)", choice.FinishReason), nil)
	}
	return draft, nil
}
