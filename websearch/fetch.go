// Page-content fetching for the "summarize these links" decision branch.

package websearch

import (
	"context"
	"io"
	"net/http"
	"time"
)

// maxPageBytes bounds how much of a page body is kept per result.
const maxPageBytes = 32 * 1024

// ContentFetcher retrieves raw page bodies over HTTP.
type ContentFetcher struct {
	client *http.Client
}

// NewContentFetcher creates a fetcher with the given per-request timeout.
func NewContentFetcher(timeout time.Duration) *ContentFetcher {
	return &ContentFetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch returns the page body for a URL, truncated to maxPageBytes.
func (f *ContentFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}
