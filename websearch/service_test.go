package websearch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/richinex/relay/model"
	"github.com/richinex/relay/storage"
)

type fakeEngine struct {
	results []model.WebSearchResult
	err     error
	queries []string
}

func (f *fakeEngine) Search(_ context.Context, query string, _ int) ([]model.WebSearchResult, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

func userMessages(content string) []model.Message {
	return []model.Message{model.NewMessage(model.RoleUser, content)}
}

func TestAugmentBasicSearch(t *testing.T) {
	engine := &fakeEngine{results: []model.WebSearchResult{{Title: "hit", URL: "https://x", Content: "body"}}}
	cache := storage.NewCache()
	svc := NewService(Options{Engine: engine, Cache: cache, Log: zerolog.Nop()})

	msgs := userMessages("what is new in go")
	resp := svc.Augment(context.Background(), model.Assistant{}, msgs, nil)

	if resp == nil {
		t.Fatal("expected a search response")
	}
	if resp.Query != "what is new in go" {
		t.Errorf("expected raw user text as query, got %q", resp.Query)
	}
	if len(engine.queries) != 1 {
		t.Errorf("expected one search call, got %d", len(engine.queries))
	}

	// Payload cached under the last user message id.
	if _, ok := cache.Get(CacheKeyPrefix + msgs[0].ID); !ok {
		t.Error("expected cached search payload")
	}
}

func TestAugmentNotNeededSkipsSearch(t *testing.T) {
	engine := &fakeEngine{results: []model.WebSearchResult{{Title: "hit"}}}
	svc := NewService(Options{Engine: engine, Enhanced: true, Log: zerolog.Nop()})

	summarize := func(context.Context, []model.Message) (string, error) {
		return "<question>not_needed</question>", nil
	}

	resp := svc.Augment(context.Background(), model.Assistant{}, userMessages("hello"), summarize)
	if resp != nil {
		t.Errorf("expected nil response, got %+v", resp)
	}
	if len(engine.queries) != 0 {
		t.Errorf("expected zero search calls, got %d", len(engine.queries))
	}
}

func TestAugmentEnhancedQueryRewrite(t *testing.T) {
	engine := &fakeEngine{results: []model.WebSearchResult{{Title: "hit"}}}
	svc := NewService(Options{Engine: engine, Enhanced: true, Log: zerolog.Nop()})

	summarize := func(context.Context, []model.Message) (string, error) {
		return "<question>go 1.24 release notes</question>", nil
	}

	resp := svc.Augment(context.Background(), model.Assistant{}, userMessages("what changed?"), summarize)
	if resp == nil {
		t.Fatal("expected a search response")
	}
	if resp.Query != "go 1.24 release notes" {
		t.Errorf("expected rewritten query, got %q", resp.Query)
	}
}

func TestAugmentClassificationErrorFallsBack(t *testing.T) {
	engine := &fakeEngine{results: []model.WebSearchResult{{Title: "hit"}}}
	svc := NewService(Options{Engine: engine, Enhanced: true, Log: zerolog.Nop()})

	summarize := func(context.Context, []model.Message) (string, error) {
		return "", errors.New("model unavailable")
	}

	resp := svc.Augment(context.Background(), model.Assistant{}, userMessages("raw query"), summarize)
	if resp == nil {
		t.Fatal("expected a search response despite classification failure")
	}
	if resp.Query != "raw query" {
		t.Errorf("expected raw query fallback, got %q", resp.Query)
	}
}

func TestAugmentNativeSearchSkips(t *testing.T) {
	engine := &fakeEngine{results: []model.WebSearchResult{{Title: "hit"}}}
	svc := NewService(Options{Engine: engine, Log: zerolog.Nop()})

	assistant := model.Assistant{Model: &model.Model{ID: "gpt-4o-search-preview"}}
	if resp := svc.Augment(context.Background(), assistant, userMessages("q"), nil); resp != nil {
		t.Errorf("expected native-search model to skip augmentation, got %+v", resp)
	}
	if len(engine.queries) != 0 {
		t.Errorf("expected zero search calls, got %d", len(engine.queries))
	}
}

func TestAugmentSearchErrorSwallowed(t *testing.T) {
	engine := &fakeEngine{err: errors.New("search down")}
	svc := NewService(Options{Engine: engine, Log: zerolog.Nop()})

	if resp := svc.Augment(context.Background(), model.Assistant{}, userMessages("q"), nil); resp != nil {
		t.Errorf("expected nil response on engine failure, got %+v", resp)
	}
}

func TestAugmentFetchesLinks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("page body"))
	}))
	defer server.Close()

	engine := &fakeEngine{}
	svc := NewService(Options{Engine: engine, Enhanced: true, Log: zerolog.Nop()})

	summarize := func(context.Context, []model.Message) (string, error) {
		return "<question>summarize</question>\n<links>\n" + server.URL + "\n</links>", nil
	}

	resp := svc.Augment(context.Background(), model.Assistant{}, userMessages("sum it up"), summarize)
	if resp == nil {
		t.Fatal("expected a response built from fetched pages")
	}
	if len(resp.Results) != 1 || resp.Results[0].Content != "page body" {
		t.Errorf("expected fetched page content, got %+v", resp.Results)
	}
	if len(engine.queries) != 0 {
		t.Errorf("link mode should not search, got %d calls", len(engine.queries))
	}
}

func TestSearxEngineParsesResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("expected format=json, got %q", r.URL.Query().Get("format"))
		}
		w.Write([]byte(`{"results":[
			{"title":"A","url":"https://a","content":"aa"},
			{"title":"B","url":"https://b","content":"bb"},
			{"title":"C","url":"https://c","content":"cc"}
		]}`))
	}))
	defer server.Close()

	engine := NewSearxEngine(server.URL)
	results, err := engine.Search(context.Background(), "query", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected maxResults to cap at 2, got %d", len(results))
	}
	if results[0].Title != "A" || results[0].URL != "https://a" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
}

func TestShouldAugment(t *testing.T) {
	svc := NewService(Options{Engine: &fakeEngine{}, Log: zerolog.Nop()})

	if !svc.ShouldAugment(model.Assistant{Model: &model.Model{ID: "gpt-4o"}}) {
		t.Error("plain model with an engine must be augmentable")
	}
	if !svc.ShouldAugment(model.Assistant{}) {
		t.Error("nil model must not block augmentation")
	}
	if svc.ShouldAugment(model.Assistant{Model: &model.Model{ID: "gpt-4o-search-preview"}}) {
		t.Error("native-search model must not be augmented")
	}
	if svc.ShouldAugment(model.Assistant{Model: &model.Model{ID: "sonar:online"}}) {
		t.Error("online model must not be augmented")
	}

	none := NewService(Options{Log: zerolog.Nop()})
	if none.ShouldAugment(model.Assistant{}) {
		t.Error("without an engine there is nothing to augment")
	}
}
