// Web search augmentation service.
//
// Invoked before the main completion call when the assistant has web search
// enabled. Any failure here is logged and swallowed: the completion proceeds
// without search results rather than failing the whole turn.

package websearch

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/richinex/relay/model"
	"github.com/richinex/relay/storage"
)

// CacheKeyPrefix keys cached search payloads by originating message id.
const CacheKeyPrefix = "web-search-"

// SummaryFunc asks the model to classify the need for search. Bound to the
// active provider's SummaryForSearch by the orchestrator.
type SummaryFunc func(ctx context.Context, messages []model.Message) (string, error)

// Service runs the augmentation decision procedure.
type Service struct {
	engine     Engine
	fetcher    *ContentFetcher
	cache      *storage.Cache
	maxResults int
	enhanced   bool
	log        zerolog.Logger
}

// Options configures a Service.
type Options struct {
	Engine Engine
	Cache  *storage.Cache
	// MaxResults caps the number of search hits kept. Defaults to 5.
	MaxResults int
	// Enhanced asks the model to classify the need for search before
	// querying. Off, the raw user text is the query.
	Enhanced bool
	Log      zerolog.Logger
}

// NewService creates an augmentation service.
func NewService(opts Options) *Service {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Service{
		engine:     opts.Engine,
		fetcher:    NewContentFetcher(20 * time.Second),
		cache:      opts.Cache,
		maxResults: maxResults,
		enhanced:   opts.Enhanced,
		log:        opts.Log,
	}
}

// ShouldAugment reports whether Augment applies to this assistant at all:
// an engine is configured and the model does not search natively. Callers
// check it before surfacing any search-in-progress state to the user.
func (s *Service) ShouldAugment(assistant model.Assistant) bool {
	if s == nil || s.engine == nil {
		return false
	}
	if assistant.Model != nil && assistant.Model.HasNativeWebSearch() {
		return false
	}
	return true
}

// Augment runs the decision procedure and returns the search payload, or nil
// when no augmentation applies. The payload is also cached under
// "web-search-<id of the last user message>".
//
// Skip conditions, in order: ShouldAugment is false (no engine, or the model
// searches natively), no user message, enhanced classification says
// not_needed.
func (s *Service) Augment(ctx context.Context, assistant model.Assistant, messages []model.Message, summarize SummaryFunc) *model.WebSearchResponse {
	if !s.ShouldAugment(assistant) {
		return nil
	}

	lastUser := model.LastUserMessage(messages)
	if lastUser == nil {
		return nil
	}

	query := lastUser.Content
	var links []string

	if s.enhanced && summarize != nil {
		text, err := summarize(ctx, messages)
		if err != nil {
			s.log.Warn().Err(err).Msg("search classification failed, using raw query")
		} else {
			decision := ExtractDecision(text)
			if decision.NotNeeded() {
				s.log.Debug().Msg("search classified as not needed")
				return nil
			}
			if decision.Question != "" {
				query = decision.Question
			}
			links = decision.Links
		}
	}

	var response *model.WebSearchResponse
	if len(links) > 0 {
		response = s.fetchLinks(ctx, query, links)
	} else {
		response = s.search(ctx, query)
	}
	if response == nil {
		return nil
	}

	if s.cache != nil {
		s.cache.Set(CacheKeyPrefix+lastUser.ID, response)
	}
	return response
}

func (s *Service) search(ctx context.Context, query string) *model.WebSearchResponse {
	results, err := s.engine.Search(ctx, query, s.maxResults)
	if err != nil {
		s.log.Warn().Err(err).Str("query", query).Msg("web search failed")
		return nil
	}
	if len(results) == 0 {
		return nil
	}
	return &model.WebSearchResponse{Query: query, Results: results}
}

// fetchLinks retrieves the pages the model named instead of searching.
// Unreachable pages are skipped.
func (s *Service) fetchLinks(ctx context.Context, query string, links []string) *model.WebSearchResponse {
	var results []model.WebSearchResult
	for _, link := range links {
		if len(results) >= s.maxResults {
			break
		}
		content, err := s.fetcher.Fetch(ctx, link)
		if err != nil {
			s.log.Warn().Err(err).Str("url", link).Msg("failed to fetch page")
			continue
		}
		results = append(results, model.WebSearchResult{
			Title:   link,
			URL:     link,
			Content: content,
		})
	}
	if len(results) == 0 {
		return nil
	}
	return &model.WebSearchResponse{Query: query, Results: results}
}
