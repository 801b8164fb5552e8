package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"reelcast/internal/services"
)

const (
	maxBodyBytes = 10 << 20
	userAgent    = "reelcast/1.0 (+content intake)"
)

// get performs a GET and returns the body. Transport failures and non-2xx
// responses are classified as source-unreachable.
func get(ctx context.Context, client *http.Client, source, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "fetcher", source, "build request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrSourceUnreachable, "fetcher", source, "request "+rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrSourceUnreachable, "fetcher", source, "read body", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, services.Wrap(services.ErrSourceUnreachable, "fetcher", source,
			fmt.Sprintf("%s returned %s", rawURL, resp.Status), nil)
	}
	return body, nil
}
