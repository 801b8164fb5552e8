// Package platform is the HTTP client for publication targets. Every platform
// exposes the same three capabilities: create a post, list comments on a post,
// and reply to a comment.
package platform

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reelcast/internal/config"
	"reelcast/internal/services"
)

const defaultHTTPTimeout = 60 * time.Second

// Post is the platform-shaped payload built by the scheduler.
type Post struct {
	Title           string   `json:"title,omitempty"`
	Description     string   `json:"description,omitempty"`
	Text            string   `json:"text,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	VideoURL        string   `json:"video_url,omitempty"`
	ThumbnailURL    string   `json:"thumbnail_url,omitempty"`
	DurationSeconds float64  `json:"duration_seconds,omitempty"`
	Aspect          string   `json:"aspect,omitempty"`
	Format          string   `json:"format,omitempty"`

	// IdempotencyKey travels as a header, not in the body.
	IdempotencyKey string `json:"-"`
}

// PostResult identifies a created post.
type PostResult struct {
	ExternalID string `json:"id"`
	URL        string `json:"url"`
}

// Comment is one reaction on a post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Client talks to one platform.
type Client struct {
	name       string
	baseURL    string
	token      string
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

// WithLimiters gates every call on the platform's rate limiter.
func WithLimiters(limiters *services.Limiters) Option {
	return func(c *Client) { c.limiters = limiters }
}

// NewClient builds a client for one [[platforms]] entry.
func NewClient(cfg config.Platform, opts ...Option) *Client {
	client := &Client{
		name:       strings.ToLower(strings.TrimSpace(cfg.Name)),
		baseURL:    strings.TrimSpace(cfg.BaseURL),
		token:      strings.TrimSpace(cfg.Token),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Name returns the platform name.
func (c *Client) Name() string {
	return c.name
}

// CreatePost publishes a post.
func (c *Client) CreatePost(ctx context.Context, post Post) (PostResult, error) {
	var result PostResult
	if err := c.call(ctx, "create post", http.MethodPost, post.IdempotencyKey, post, &result, "posts"); err != nil {
		return PostResult{}, err
	}
	if strings.TrimSpace(result.ExternalID) == "" {
		return PostResult{}, services.Wrap(services.ErrProviderMalformed, c.component(), "create post", "response missing id", nil)
	}
	return result, nil
}

// ListComments returns the comments on a post.
func (c *Client) ListComments(ctx context.Context, postID string) ([]Comment, error) {
	var resp struct {
		Comments []Comment `json:"comments"`
	}
	if err := c.call(ctx, "list comments", http.MethodGet, "", nil, &resp, "posts", url.PathEscape(postID), "comments"); err != nil {
		return nil, err
	}
	for i := range resp.Comments {
		if resp.Comments[i].PostID == "" {
			resp.Comments[i].PostID = postID
		}
	}
	return resp.Comments, nil
}

// Reply answers a comment and returns the platform id of the reply.
func (c *Client) Reply(ctx context.Context, commentID, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", services.Wrap(services.ErrValidation, c.component(), "reply", "reply text required", nil)
	}
	var resp struct {
		ID string `json:"id"`
	}
	body := map[string]string{"text": text}
	if err := c.call(ctx, "reply", http.MethodPost, "", body, &resp, "comments", url.PathEscape(commentID), "replies"); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.ID) == "" {
		return "", services.Wrap(services.ErrProviderMalformed, c.component(), "reply", "response missing id", nil)
	}
	return resp.ID, nil
}

func (c *Client) call(ctx context.Context, operation, method, idempotencyKey string, body, out any, elems ...string) error {
	if c.baseURL == "" {
		return services.Wrap(services.ErrConfiguration, c.component(), operation, "base_url not set", nil)
	}
	endpoint, err := url.JoinPath(c.baseURL, elems...)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, c.component(), operation, "build url", err)
	}
	if err := c.limiters.Wait(ctx, services.PlatformAPI(c.name)); err != nil {
		return err
	}
	return services.DoJSON(ctx, c.httpClient, services.JSONCall{
		Component: c.component(),
		Operation: operation,
		Method:    method,
		URL:       endpoint,
		Token:     c.token,
		Body:      body,

		IdempotencyKey: idempotencyKey,
	}, out)
}

func (c *Client) component() string {
	return "platform/" + c.name
}
