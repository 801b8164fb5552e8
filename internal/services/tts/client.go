// Package tts wraps the text-to-speech provider: text and a voice style in,
// an audio handle and its duration out.
package tts

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reelcast/internal/config"
	"reelcast/internal/services"
)

const defaultHTTPTimeout = 120 * time.Second

// Request is one synthesis call.
type Request struct {
	Text  string
	Voice string
	Tone  string
}

// Audio is the provider's handle to synthesized speech.
type Audio struct {
	URL             string
	DurationSeconds float64
	SizeBytes       int64
}

// Client calls the synthesis endpoint.
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

// WithLimiters gates requests on the tts rate limiter.
func WithLimiters(limiters *services.Limiters) Option {
	return func(c *Client) { c.limiters = limiters }
}

// NewClient constructs a client from the [providers.tts] section.
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

type synthesizeRequest struct {
	Model string `json:"model,omitempty"`
	Text  string `json:"text"`
	Voice string `json:"voice"`
	Tone  string `json:"tone,omitempty"`
}

type synthesizeResponse struct {
	AudioURL        string  `json:"audio_url"`
	DurationSeconds float64 `json:"duration_seconds"`
	SizeBytes       int64   `json:"size_bytes"`
}

// Synthesize converts text to speech.
func (c *Client) Synthesize(ctx context.Context, req Request) (Audio, error) {
	if strings.TrimSpace(req.Text) == "" || strings.TrimSpace(req.Voice) == "" {
		return Audio{}, services.Wrap(services.ErrValidation, "tts", "synthesize", "text and voice required", nil)
	}
	if err := c.ready(); err != nil {
		return Audio{}, err
	}
	endpoint, err := url.JoinPath(c.baseURL, "synthesize")
	if err != nil {
		return Audio{}, services.Wrap(services.ErrConfiguration, "tts", "synthesize", "build url", err)
	}
	if err := c.limiters.Wait(ctx, services.APITTS); err != nil {
		return Audio{}, err
	}

	var resp synthesizeResponse
	err = services.DoJSON(ctx, c.httpClient, services.JSONCall{
		Component: "tts",
		Operation: "synthesize",
		Method:    http.MethodPost,
		URL:       endpoint,
		Token:     c.apiKey,
		Body:      synthesizeRequest{Model: c.model, Text: req.Text, Voice: req.Voice, Tone: req.Tone},
	}, &resp)
	if err != nil {
		return Audio{}, err
	}
	if strings.TrimSpace(resp.AudioURL) == "" || resp.DurationSeconds <= 0 {
		return Audio{}, services.Wrap(services.ErrProviderMalformed, "tts", "synthesize", "response missing audio_url or duration", nil)
	}
	return Audio{URL: strings.TrimSpace(resp.AudioURL), DurationSeconds: resp.DurationSeconds, SizeBytes: resp.SizeBytes}, nil
}

// HealthCheck verifies the client is configured.
func (c *Client) HealthCheck(context.Context) error {
	return c.ready()
}

func (c *Client) ready() error {
	if c.baseURL == "" {
		return services.Wrap(services.ErrConfiguration, "tts", "config", "base_url not set", nil)
	}
	if c.apiKey == "" {
		return services.WithHint(
			services.Wrap(services.ErrProviderAuth, "tts", "config", "api key not set", nil),
			"set providers.tts.api_key or REELCAST_TTS_API_KEY",
		)
	}
	return nil
}
