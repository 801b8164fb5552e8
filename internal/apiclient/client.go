package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reelcast/internal/config"
	"reelcast/internal/daemon"
)

// ErrUnavailable reports that no daemon API answered at the configured bind.
var ErrUnavailable = errors.New("daemon api unavailable")

// StatusError is a non-2xx answer from the daemon API.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon api: %s", http.StatusText(e.Code))
	}
	return fmt.Sprintf("daemon api: %s (%d)", e.Message, e.Code)
}

// NotificationResult is returned by TestNotification.
type NotificationResult struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Client talks to the daemon HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New builds a client from the [api] configuration. It returns
// ErrUnavailable when the API is disabled.
func New(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, ErrUnavailable
	}
	base, err := BaseURL(cfg.API.Bind)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		token:   cfg.API.Token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// BaseURL converts a listen address into a dialable URL. Wildcard hosts
// resolve to loopback.
func BaseURL(bind string) (string, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return "", ErrUnavailable
	}
	if strings.HasPrefix(bind, "http://") || strings.HasPrefix(bind, "https://") {
		return strings.TrimRight(bind, "/"), nil
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return "", fmt.Errorf("parse api bind %q: %w", bind, err)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port), nil
}

// Status fetches GET /api/status.
func (c *Client) Status(ctx context.Context) (*daemon.Status, error) {
	var status daemon.Status
	if err := c.do(ctx, http.MethodGet, "/api/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Units fetches GET /api/units filtered by statuses.
func (c *Client) Units(ctx context.Context, statuses []string, limit int) ([]daemon.UnitView, error) {
	query := url.Values{}
	if len(statuses) > 0 {
		query.Set("status", strings.Join(statuses, ","))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/units"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp daemon.UnitListResponse
	if err := c.do(ctx, http.MethodGet, path, &resp); err != nil {
		return nil, err
	}
	return resp.Units, nil
}

// Requeue posts /api/units/{id}/requeue.
func (c *Client) Requeue(ctx context.Context, unitID int64) (*daemon.UnitView, error) {
	var view daemon.UnitView
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/units/%d/requeue", unitID), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// TestNotification posts /api/notifications/test.
func (c *Client) TestNotification(ctx context.Context) (*NotificationResult, error) {
	var result NotificationResult
	if err := c.do(ctx, http.MethodPost, "/api/notifications/test", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	var body io.Reader
	if method == http.MethodPost {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &payload)
		return &StatusError{Code: resp.StatusCode, Message: payload.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
