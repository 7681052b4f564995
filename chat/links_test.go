package chat

import (
	"testing"

	"github.com/richinex/relay/model"
)

func TestConverterForSelection(t *testing.T) {
	tests := []struct {
		name       string
		model      *model.Model
		webSearch  bool
		wantFamily string
	}{
		{"nil model", nil, true, ""},
		{"openai search model", &model.Model{ID: "gpt-4o-search-preview", Provider: "openai"}, false, familyOpenAI},
		{"plain openai model", &model.Model{ID: "gpt-4o", Provider: "openai"}, true, ""},
		{"openrouter with search", &model.Model{ID: "meta/llama", Provider: "openrouter"}, true, familyOpenRouter},
		{"openrouter without search", &model.Model{ID: "meta/llama", Provider: "openrouter"}, false, ""},
		{"zhipu with search", &model.Model{ID: "glm-4", Provider: "zhipu"}, true, familyZhipu},
		{"hunyuan with search", &model.Model{ID: "hunyuan-turbo", Provider: "hunyuan"}, true, familyHunyuan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ConverterFor(tt.model, tt.webSearch, nil)
			if tt.wantFamily == "" {
				if c != nil {
					t.Errorf("expected no converter, got %s", c.family)
				}
				return
			}
			if c == nil {
				t.Fatal("expected a converter")
			}
			if c.family != tt.wantFamily {
				t.Errorf("expected family %s, got %s", tt.wantFamily, c.family)
			}
		})
	}
}

func TestConvertOpenAILinks(t *testing.T) {
	c := ConverterFor(&model.Model{ID: "gpt-4o-search-preview", Provider: "openai"}, false, nil)

	got := c.Convert("Fact one ([Example](https://example.com/a)) and more.")
	got += c.Flush()

	want := "Fact one [<sup>1</sup>](https://example.com/a) and more."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConvertNumbersRepeatURLs(t *testing.T) {
	c := ConverterFor(&model.Model{ID: "gpt-4o-search-preview", Provider: "openai"}, false, nil)

	text := "([a](https://x.com)) ([b](https://y.com)) ([c](https://x.com))"
	got := c.Convert(text) + c.Flush()

	want := "[<sup>1</sup>](https://x.com) [<sup>2</sup>](https://y.com) [<sup>1</sup>](https://x.com)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConvertMarkerSplitAcrossChunks(t *testing.T) {
	c := ConverterFor(&model.Model{ID: "gpt-4o-search-preview", Provider: "openai"}, false, nil)

	var got string
	got += c.Convert("See ([Exam")
	got += c.Convert("ple](https://example.com/a)) done.")
	got += c.Flush()

	want := "See [<sup>1</sup>](https://example.com/a) done."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConvertZhipuRefs(t *testing.T) {
	c := ConverterFor(&model.Model{ID: "glm-4", Provider: "zhipu"}, true, nil)

	got := c.Convert("Result【ref_1】 and [ref_2].") + c.Flush()
	want := "Result[<sup>1</sup>] and [<sup>2</sup>]."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConvertHunyuanRefs(t *testing.T) {
	urls := []string{"https://a.com", "https://b.com"}
	c := ConverterFor(&model.Model{ID: "hunyuan-turbo", Provider: "hunyuan"}, true,
		func() []string { return urls })

	got := c.Convert("Claim[1](@ref) and claim[2](@ref) and claim[9](@ref).") + c.Flush()
	want := "Claim[<sup>1</sup>](https://a.com) and claim[<sup>2</sup>](https://b.com) and claim[<sup>9</sup>]."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConvertOpenRouterSkipsConvertedLinks(t *testing.T) {
	c := ConverterFor(&model.Model{ID: "meta/llama", Provider: "openrouter"}, true, nil)

	first := c.Convert("See [source](https://a.com).") + c.Flush()
	// Re-running on already-converted text must be stable.
	c2 := ConverterFor(&model.Model{ID: "meta/llama", Provider: "openrouter"}, true, nil)
	second := c2.Convert(first) + c2.Flush()

	if first != second {
		t.Errorf("conversion not idempotent: %q then %q", first, second)
	}
}

func TestCompleteLinks(t *testing.T) {
	urls := []string{"https://a.com", "https://b.com"}

	got := CompleteLinks("Fact [<sup>1</sup>] more [<sup>2</sup>]", urls)
	want := "Fact [<sup>1</sup>](https://a.com) more [<sup>2</sup>](https://b.com)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCompleteLinksLeavesLinkedCitations(t *testing.T) {
	text := "Fact [<sup>1</sup>](https://a.com)"
	if got := CompleteLinks(text, []string{"https://other.com"}); got != text {
		t.Errorf("already-linked citation changed: %q", got)
	}
}

func TestCleanLinkCommas(t *testing.T) {
	got := CleanLinkCommas("[<sup>1</sup>](https://a.com) , [<sup>2</sup>](https://b.com)")
	want := "[<sup>1</sup>](https://a.com)[<sup>2</sup>](https://b.com)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractURLsFromMarkdown(t *testing.T) {
	text := "See [a](https://a.com) and [b](https://b.com) and again [a](https://a.com)."

	urls := ExtractURLsFromMarkdown(text)
	if len(urls) != 2 {
		t.Fatalf("expected 2 unique urls, got %v", urls)
	}
	if urls[0] != "https://a.com" || urls[1] != "https://b.com" {
		t.Errorf("unexpected urls: %v", urls)
	}
}
