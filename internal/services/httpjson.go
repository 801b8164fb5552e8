package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const maxResponseBytes = 4 << 20

// JSONCall describes one JSON request against a provider or platform API.
type JSONCall struct {
	Component string
	Operation string
	Method    string
	URL       string
	Token     string
	Body      any
	// IdempotencyKey, when set, is sent as the Idempotency-Key header so the
	// remote side collapses repeated deliveries.
	IdempotencyKey string
}

// DoJSON sends call and decodes a successful response into out (which may be
// nil). Transport failures, non-2xx statuses and undecodable bodies come back
// classified.
func DoJSON(ctx context.Context, client *http.Client, call JSONCall, out any) error {
	if client == nil {
		client = http.DefaultClient
	}
	var reader io.Reader
	if call.Body != nil {
		encoded, err := json.Marshal(call.Body)
		if err != nil {
			return Wrap(ErrValidation, call.Component, call.Operation, "encode request body", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, call.Method, call.URL, reader)
	if err != nil {
		return Wrap(ErrConfiguration, call.Component, call.Operation, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if call.Token != "" {
		req.Header.Set("Authorization", "Bearer "+call.Token)
	}
	if call.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", call.IdempotencyKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return ClassifyTransport(call.Component, call.Operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return ClassifyTransport(call.Component, call.Operation, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ClassifyHTTP(call.Component, call.Operation, resp.StatusCode, resp.Header.Get("Retry-After"), body)
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		if out != nil {
			return Wrap(ErrProviderMalformed, call.Component, call.Operation, "empty response body", nil)
		}
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return Wrap(ErrProviderMalformed, call.Component, call.Operation,
			fmt.Sprintf("decode response: %s", snippet(body)), err)
	}
	return nil
}
