// Completion orchestration: the top-level driver behind every user-visible
// operation. FetchChatCompletion runs web search, gathers tools, invokes the
// provider adapter, folds streamed chunks into the in-flight message, and
// converts errors into message state. The orchestrator is the sole boundary
// where errors become message status; nothing unwinds past it.

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/richinex/relay/llm"
	"github.com/richinex/relay/mcp"
	"github.com/richinex/relay/model"
	"github.com/richinex/relay/websearch"
)

// ProviderSource yields the adapter for a provider family. Satisfied by
// llm.Factory.
type ProviderSource interface {
	Provider(family string) (llm.Provider, error)
}

// Service orchestrates completions across providers.
type Service struct {
	factory ProviderSource
	search  *websearch.Service
	mcp     *mcp.Registry
	runtime *Runtime

	// defaultProvider is used when the assistant has no model selected.
	defaultProvider string
	log             zerolog.Logger
}

// NewService creates the orchestrator. search and registry may be nil, which
// disables web search augmentation and tool calling respectively.
func NewService(factory ProviderSource, search *websearch.Service, registry *mcp.Registry, runtime *Runtime, defaultProvider string, log zerolog.Logger) *Service {
	return &Service{
		factory:         factory,
		search:          search,
		mcp:             registry,
		runtime:         runtime,
		defaultProvider: defaultProvider,
		log:             log,
	}
}

// Runtime returns the state handle, for abort wiring and cache access.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

func (s *Service) provider(assistant model.Assistant) (llm.Provider, error) {
	family := s.defaultProvider
	if assistant.Model != nil && assistant.Model.Provider != "" {
		family = assistant.Model.Provider
	}
	return s.factory.Provider(family)
}

// FetchRequest is the input to FetchChatCompletion. Message is the
// assistant-authored in-flight message, mutated in place; Messages is the
// conversation history feeding the model.
type FetchRequest struct {
	Message    *model.Message
	Messages   []model.Message
	Assistant  model.Assistant
	OnResponse func(model.Message)
}

func (r FetchRequest) emit(status model.MessageStatus) {
	r.Message.Status = status
	if r.OnResponse != nil {
		r.OnResponse(*r.Message)
	}
}

// FetchChatCompletion runs one full completion turn. The final message is
// always emitted once more through OnResponse, whatever the outcome, and
// the generation flag is always cleared.
func (s *Service) FetchChatCompletion(ctx context.Context, req FetchRequest) error {
	provider, err := s.provider(req.Assistant)
	if err != nil {
		req.Message.Error = err.Error()
		req.emit(model.StatusError)
		return err
	}

	s.runtime.SetGenerating(true)
	defer s.runtime.SetGenerating(false)

	ctx, cancel := context.WithCancel(ctx)
	s.runtime.RegisterAbort(req.Message.ID, cancel)
	defer func() {
		cancel()
		s.runtime.ClearAbort(req.Message.ID)
	}()

	s.searchTheWeb(ctx, provider, req)

	tools := s.gatherTools(ctx, req.Messages)

	var sentMessages []model.Message
	converter := ConverterFor(req.Assistant.Model, req.Assistant.EnableWebSearch, func() []string {
		if req.Message.Metadata == nil {
			return nil
		}
		return searchInfoURLs(req.Message.Metadata.WebSearchInfo)
	})

	err = provider.Completions(ctx, llm.CompletionsRequest{
		Messages:  req.Messages,
		Assistant: req.Assistant,
		Tools:     tools,
		OnFilterMessages: func(filtered []model.Message) {
			sentMessages = filtered
		},
		OnChunk: func(chunk llm.Chunk) {
			s.foldChunk(req, chunk, converter)
			req.emit(model.StatusPending)
		},
	})

	// A marker held back as a potential partial is still streamed text; it
	// is released on every exit, abort and failure included.
	if converter != nil {
		req.Message.Content += converter.Flush()
	}

	switch {
	case err == nil:
		s.finishSuccess(req, sentMessages)
		req.emit(model.StatusSuccess)
		return nil
	case errors.Is(err, context.Canceled):
		// Partial text already streamed stays on the message.
		req.emit(model.StatusPaused)
		return nil
	default:
		s.log.Error().Err(err).Str("message", req.Message.ID).Msg("completion failed")
		req.Message.Error = fmt.Sprintf("completion failed: %v", err)
		req.emit(model.StatusError)
		return err
	}
}

// searchTheWeb runs the augmenter and attaches its payload. Failures degrade
// to "no search performed".
func (s *Service) searchTheWeb(ctx context.Context, provider llm.Provider, req FetchRequest) {
	if s.search == nil || !req.Assistant.EnableWebSearch || req.Assistant.Model == nil {
		return
	}
	// Models that search natively never enter the searching state.
	if !s.search.ShouldAugment(req.Assistant) {
		return
	}

	req.emit(model.StatusSearching)

	summarize := func(ctx context.Context, messages []model.Message) (string, error) {
		summaryAssistant := req.Assistant
		summaryAssistant.Prompt = websearch.SearchSummaryPrompt
		return provider.SummaryForSearch(ctx, decisionWindow(messages), summaryAssistant)
	}

	if response := s.search.Augment(ctx, req.Assistant, req.Messages, summarize); response != nil {
		req.Message.EnsureMetadata().WebSearch = response
	}
}

// decisionWindow trims the classification input to the last answer/question
// pair; earlier turns only add noise to the query rewrite.
func decisionWindow(messages []model.Message) []model.Message {
	lastUser := model.LastUserMessage(messages)
	if lastUser == nil {
		return messages
	}
	if lastAnswer := model.LastAssistantMessage(messages); lastAnswer != nil {
		return []model.Message{*lastAnswer, *lastUser}
	}
	return []model.Message{*lastUser}
}

// gatherTools collects the tool lists of the MCP servers enabled on the last
// user message.
func (s *Service) gatherTools(ctx context.Context, messages []model.Message) []model.MCPTool {
	if s.mcp == nil {
		return nil
	}
	lastUser := model.LastUserMessage(messages)
	if lastUser == nil || len(lastUser.EnabledMCPs) == 0 {
		return nil
	}

	names := make([]string, 0, len(lastUser.EnabledMCPs))
	for _, server := range lastUser.EnabledMCPs {
		names = append(names, server.Name)
	}

	tools, err := s.mcp.ListTools(ctx, names)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to gather MCP tools")
		return nil
	}
	return tools
}

// foldChunk merges one streamed chunk into the in-flight message. Chunks are
// additive: text concatenates, payload fields replace.
func (s *Service) foldChunk(req FetchRequest, chunk llm.Chunk, converter *Converter) {
	msg := req.Message

	text := chunk.Text
	if converter != nil && text != "" {
		text = converter.Convert(text)
	}
	msg.Content += text
	msg.ReasoningContent += chunk.ReasoningContent

	if chunk.Usage != nil {
		msg.Usage = chunk.Usage
	}
	if chunk.Metrics != nil {
		msg.Metrics = chunk.Metrics
	}
	if len(chunk.ToolResponses) > 0 {
		msg.EnsureMetadata().ToolResponses = chunk.ToolResponses
	}
	if chunk.WebSearchInfo != nil {
		msg.EnsureMetadata().WebSearchInfo = chunk.WebSearchInfo
	}
	if chunk.Grounding != nil {
		msg.EnsureMetadata().Grounding = chunk.Grounding
	}
	if chunk.Annotations != nil {
		msg.EnsureMetadata().Annotations = chunk.Annotations
	}
	if len(chunk.Citations) > 0 {
		msg.EnsureMetadata().Citations = chunk.Citations
	}
	if chunk.GeneratedImage != nil {
		msg.EnsureMetadata().GeneratedImage = chunk.GeneratedImage
	}

	if req.Assistant.EnableWebSearch {
		msg.Content = CleanLinkCommas(msg.Content)

		if req.Assistant.Model != nil && req.Assistant.Model.Provider == "openrouter" {
			if urls := ExtractURLsFromMarkdown(msg.Content); len(urls) > 0 {
				msg.EnsureMetadata().Citations = urls
			}
		}
		if req.Assistant.Model != nil && req.Assistant.Model.IsZhipu() &&
			msg.Metadata != nil && msg.Metadata.WebSearchInfo != nil {
			msg.Content = CompleteLinks(msg.Content, searchInfoURLs(msg.Metadata.WebSearchInfo))
		}
	}
}

// finishSuccess finalizes usage and metrics, estimating locally when the
// vendor reported nothing.
func (s *Service) finishSuccess(req FetchRequest, sentMessages []model.Message) {
	msg := req.Message
	if msg.Usage == nil || msg.Usage.CompletionTokens == 0 {
		msg.Usage = EstimateUsage(sentMessages, *msg)
	}
	if msg.Metrics != nil && msg.Metrics.CompletionTokens == 0 {
		msg.Metrics.CompletionTokens = msg.Usage.CompletionTokens
	}
}

// searchInfoURLs pulls result URLs out of a vendor-native search payload.
// Zhipu reports "link" fields, hunyuan reports "url".
func searchInfoURLs(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	body := string(raw)
	var urls []string
	for _, path := range []string{"#.link", "#.url"} {
		for _, r := range gjson.Get(body, path).Array() {
			if r.String() != "" {
				urls = append(urls, r.String())
			}
		}
		if len(urls) > 0 {
			break
		}
	}
	return urls
}

// FetchTranslate re-generates content in the target language described by
// the assistant prompt, streaming partials through onPartial when non-nil.
func (s *Service) FetchTranslate(ctx context.Context, content string, assistant model.Assistant, onPartial func(string)) (string, error) {
	provider, err := s.provider(assistant)
	if err != nil {
		return "", err
	}
	return provider.Translate(ctx, content, assistant, onPartial)
}

// FetchMessagesSummary produces a short topic title from recent messages.
// Quote characters are stripped so the title embeds cleanly.
func (s *Service) FetchMessagesSummary(ctx context.Context, messages []model.Message, assistant model.Assistant) (string, error) {
	provider, err := s.provider(assistant)
	if err != nil {
		return "", err
	}

	summary, err := provider.Summaries(ctx, messages, assistant)
	if err != nil {
		return "", err
	}
	return stripQuotes(summary), nil
}

func stripQuotes(text string) string {
	replacer := strings.NewReplacer(`"`, "", "'", "", "“", "", "”", "")
	return strings.TrimSpace(replacer.Replace(text))
}

// FetchSearchSummary runs the search-classification call directly.
func (s *Service) FetchSearchSummary(ctx context.Context, messages []model.Message, assistant model.Assistant) (string, error) {
	provider, err := s.provider(assistant)
	if err != nil {
		return "", err
	}
	return provider.SummaryForSearch(ctx, messages, assistant)
}

// FetchGenerate runs a one-shot prompt/content generation.
func (s *Service) FetchGenerate(ctx context.Context, prompt, content string, assistant model.Assistant) (string, error) {
	provider, err := s.provider(assistant)
	if err != nil {
		return "", err
	}
	return provider.GenerateText(ctx, prompt, content)
}

// CheckAPI probes a provider/model pair with a minimal request.
func (s *Service) CheckAPI(ctx context.Context, family string, m model.Model) llm.CheckResult {
	provider, err := s.factory.Provider(family)
	if err != nil {
		return llm.CheckResult{Err: err}
	}
	return provider.Check(ctx, m)
}

// FetchModels lists the models available to a provider account.
func (s *Service) FetchModels(ctx context.Context, family string) ([]model.Model, error) {
	provider, err := s.factory.Provider(family)
	if err != nil {
		return nil, err
	}
	return provider.Models(ctx)
}

// FormatAPIKeys normalizes a user-entered key list: full-width commas become
// plain commas and surrounding whitespace is dropped per entry.
func FormatAPIKeys(keys string) string {
	keys = strings.ReplaceAll(keys, "，", ",")
	parts := strings.Split(keys, ",")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, ",")
}
