// Package textgen wraps an OpenAI-compatible chat completion API used to write
// narration scripts.
package textgen

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reelcast/internal/config"
	"reelcast/internal/services"
)

const defaultHTTPTimeout = 60 * time.Second

// Client calls the chat completion endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	limiters   *services.Limiters
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

// WithLimiters gates requests on the textgen rate limiter.
func WithLimiters(limiters *services.Limiters) Option {
	return func(c *Client) { c.limiters = limiters }
}

// NewClient constructs a client from the [providers.textgen] section.
func NewClient(cfg config.Provider, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		baseURL:    strings.TrimSpace(cfg.BaseURL),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      strings.TrimSpace(cfg.Model),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		Text         string      `json:"text"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Complete sends a system and user prompt and returns the first non-empty
// completion. Temperature is fixed at zero so a given prompt yields stable text.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" || userPrompt == "" {
		return "", services.Wrap(services.ErrValidation, "textgen", "complete", "system and user prompts required", nil)
	}
	if err := c.ready(); err != nil {
		return "", err
	}
	endpoint, err := url.JoinPath(c.baseURL, "chat", "completions")
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "textgen", "complete", "build url", err)
	}
	if err := c.limiters.Wait(ctx, services.APITextGen); err != nil {
		return "", err
	}

	var resp chatResponse
	err = services.DoJSON(ctx, c.httpClient, services.JSONCall{
		Component: "textgen",
		Operation: "complete",
		Method:    http.MethodPost,
		URL:       endpoint,
		Token:     c.apiKey,
		Body: chatRequest{
			Model: c.model,
			Messages: []chatMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: userPrompt},
			},
		},
	}, &resp)
	if err != nil {
		return "", err
	}
	for _, choice := range resp.Choices {
		if content := firstNonEmpty(choice.Message.Content, choice.Text); content != "" {
			return content, nil
		}
	}
	finish := ""
	if len(resp.Choices) > 0 {
		finish = resp.Choices[0].FinishReason
	}
	return "", services.Wrap(services.ErrProviderMalformed, "textgen", "complete",
		"empty completion (finish_reason="+finish+")", nil)
}

// HealthCheck verifies the client is configured. It does not spend a request.
func (c *Client) HealthCheck(context.Context) error {
	return c.ready()
}

func (c *Client) ready() error {
	if c.baseURL == "" {
		return services.Wrap(services.ErrConfiguration, "textgen", "config", "base_url not set", nil)
	}
	if c.apiKey == "" {
		return services.WithHint(
			services.Wrap(services.ErrProviderAuth, "textgen", "config", "api key not set", errors.New("missing credentials")),
			"set providers.textgen.api_key or REELCAST_TEXTGEN_API_KEY",
		)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
