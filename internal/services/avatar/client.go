// Package avatar wraps the asynchronous avatar video provider. A render is a
// submitted job that is polled until it reaches a terminal status.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reelcast/internal/config"
	"reelcast/internal/services"
)

const (
	defaultHTTPTimeout  = 60 * time.Second
	defaultPollInterval = 10 * time.Second
	defaultJobTimeout   = 15 * time.Minute
)

// Job statuses reported by the provider.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Request describes the video to render.
type Request struct {
	Script     string `json:"script"`
	AudioURL   string `json:"audio_url"`
	Background string `json:"background,omitempty"`
	AvatarID   string `json:"avatar_id,omitempty"`
	Aspect     string `json:"aspect,omitempty"`
}

// Job is the provider's view of a render.
type Job struct {
	ID              string  `json:"id"`
	Status          string  `json:"status"`
	VideoURL        string  `json:"video_url"`
	ThumbnailURL    string  `json:"thumbnail_url"`
	DurationSeconds float64 `json:"duration_seconds"`
	SizeBytes       int64   `json:"size_bytes"`
	Error           string  `json:"error"`
}

// Terminal reports whether the job has finished either way.
func (j Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Client talks to the avatar provider.
type Client struct {
	baseURL      string
	apiKey       string
	avatarID     string
	pollInterval time.Duration
	jobTimeout   time.Duration
	maxDuration  time.Duration
	httpClient   *http.Client
	limiters     *services.Limiters
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

// WithLimiters gates submit and poll requests on the avatar rate limiter.
func WithLimiters(limiters *services.Limiters) Option {
	return func(c *Client) { c.limiters = limiters }
}

// WithPollInterval overrides the job polling interval.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// NewClient constructs a client from the [providers.avatar] section.
func NewClient(cfg config.Avatar, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		baseURL:      strings.TrimSpace(cfg.BaseURL),
		apiKey:       strings.TrimSpace(cfg.APIKey),
		avatarID:     strings.TrimSpace(cfg.AvatarID),
		pollInterval: defaultPollInterval,
		jobTimeout:   defaultJobTimeout,
		maxDuration:  time.Duration(cfg.MaxDurationSeconds) * time.Second,
		httpClient:   &http.Client{Timeout: timeout},
	}
	if cfg.PollIntervalSeconds > 0 {
		client.pollInterval = time.Duration(cfg.PollIntervalSeconds) * time.Second
	}
	if cfg.JobTimeoutSeconds > 0 {
		client.jobTimeout = time.Duration(cfg.JobTimeoutSeconds) * time.Second
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// MaxDuration is the longest audio the provider accepts. Zero means unbounded.
func (c *Client) MaxDuration() time.Duration {
	return c.maxDuration
}

// Submit starts a render job.
func (c *Client) Submit(ctx context.Context, req Request) (Job, error) {
	if strings.TrimSpace(req.Script) == "" || strings.TrimSpace(req.AudioURL) == "" {
		return Job{}, services.Wrap(services.ErrValidation, "avatar", "submit", "script and audio_url required", nil)
	}
	if err := c.ready(); err != nil {
		return Job{}, err
	}
	if req.AvatarID == "" {
		req.AvatarID = c.avatarID
	}
	endpoint, err := url.JoinPath(c.baseURL, "jobs")
	if err != nil {
		return Job{}, services.Wrap(services.ErrConfiguration, "avatar", "submit", "build url", err)
	}
	if err := c.limiters.Wait(ctx, services.APIAvatar); err != nil {
		return Job{}, err
	}
	var job Job
	if err := services.DoJSON(ctx, c.httpClient, services.JSONCall{
		Component: "avatar", Operation: "submit", Method: http.MethodPost, URL: endpoint, Token: c.apiKey, Body: req,
	}, &job); err != nil {
		return Job{}, err
	}
	if strings.TrimSpace(job.ID) == "" {
		return Job{}, services.Wrap(services.ErrProviderMalformed, "avatar", "submit", "response missing job id", nil)
	}
	return job, nil
}

// Get fetches the current state of a job.
func (c *Client) Get(ctx context.Context, id string) (Job, error) {
	endpoint, err := url.JoinPath(c.baseURL, "jobs", url.PathEscape(id))
	if err != nil {
		return Job{}, services.Wrap(services.ErrConfiguration, "avatar", "poll", "build url", err)
	}
	if err := c.limiters.Wait(ctx, services.APIAvatar); err != nil {
		return Job{}, err
	}
	var job Job
	if err := services.DoJSON(ctx, c.httpClient, services.JSONCall{
		Component: "avatar", Operation: "poll", Method: http.MethodGet, URL: endpoint, Token: c.apiKey,
	}, &job); err != nil {
		return Job{}, err
	}
	return job, nil
}

// Render submits a job and polls until it completes, fails, or the job
// timeout expires. A provider-side job failure is fatal for the item; an
// expired wait is a provider timeout.
func (c *Client) Render(ctx context.Context, req Request) (Job, error) {
	job, err := c.Submit(ctx, req)
	if err != nil {
		return Job{}, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	defer cancel()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for !job.Terminal() {
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			return Job{}, services.Wrap(services.ErrProviderTimeout, "avatar", "poll",
				fmt.Sprintf("job %s still %s after %s", job.ID, job.Status, c.jobTimeout), waitCtx.Err())
		case <-ticker.C:
		}
		next, err := c.Get(waitCtx, job.ID)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				continue
			}
			return Job{}, err
		}
		if next.ID == "" {
			next.ID = job.ID
		}
		job = next
	}

	if job.Status == StatusFailed {
		message := strings.TrimSpace(job.Error)
		if message == "" {
			message = "job failed without detail"
		}
		return job, services.Wrap(services.ErrProviderMalformed, "avatar", "render", fmt.Sprintf("job %s: %s", job.ID, message), nil)
	}
	if strings.TrimSpace(job.VideoURL) == "" || job.DurationSeconds <= 0 {
		return job, services.Wrap(services.ErrProviderMalformed, "avatar", "render", "completed job missing video_url or duration", nil)
	}
	return job, nil
}

// HealthCheck verifies the client is configured.
func (c *Client) HealthCheck(context.Context) error {
	return c.ready()
}

func (c *Client) ready() error {
	if c.baseURL == "" {
		return services.Wrap(services.ErrConfiguration, "avatar", "config", "base_url not set", nil)
	}
	if c.apiKey == "" {
		return services.WithHint(
			services.Wrap(services.ErrProviderAuth, "avatar", "config", "api key not set", nil),
			"set providers.avatar.api_key or REELCAST_AVATAR_API_KEY",
		)
	}
	return nil
}
