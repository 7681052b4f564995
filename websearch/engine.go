// Package websearch augments completions with web search results.
//
// The Engine abstraction hides the search provider's wire format; the
// default engine speaks the SearxNG JSON API, which any self-hosted
// instance exposes.
//
// Information Hiding:
// - Search provider HTTP protocol
// - Result ranking and truncation

package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/richinex/relay/model"
)

// Engine performs a web search and returns normalized results.
type Engine interface {
	Search(ctx context.Context, query string, maxResults int) ([]model.WebSearchResult, error)
}

// SearxEngine queries a SearxNG instance over its JSON API.
type SearxEngine struct {
	baseURL string
	client  *http.Client
}

// NewSearxEngine creates an engine for the given SearxNG base URL.
func NewSearxEngine(baseURL string) *SearxEngine {
	return &SearxEngine{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type searxResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search issues a JSON-format query and returns at most maxResults entries.
func (e *SearxEngine) Search(ctx context.Context, query string, maxResults int) ([]model.WebSearchResult, error) {
	endpoint := fmt.Sprintf("%s/search?q=%s&format=json", e.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	var parsed searxResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	results := make([]model.WebSearchResult, 0, maxResults)
	for _, r := range parsed.Results {
		if len(results) >= maxResults {
			break
		}
		results = append(results, model.WebSearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
		})
	}
	return results, nil
}

// Verify SearxEngine implements Engine
var _ Engine = (*SearxEngine)(nil)
