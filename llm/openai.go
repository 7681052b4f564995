// OpenAI-compatible adapter using the go-openai library.
//
// Information Hiding:
// - API endpoint and authentication (also serves OpenRouter, DeepSeek,
//   Zhipu and Hunyuan through their OpenAI-compatible endpoints)
// - Request/response format for the Chat Completions API
// - Streaming protocol and the tool-call round loop

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"

	"github.com/richinex/relay/mcp"
	"github.com/richinex/relay/model"
)

// OpenAIAdapter implements Provider against any OpenAI-compatible endpoint.
type OpenAIAdapter struct {
	client *openai.Client
	cfg    Config
}

// NewOpenAIAdapter creates an adapter for the configured endpoint.
func NewOpenAIAdapter(cfg Config) *OpenAIAdapter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIAdapter{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg.withDefaults(),
	}
}

// Name returns the provider family id.
func (p *OpenAIAdapter) Name() string {
	return p.cfg.Provider
}

// Completions runs the streamed, tool-augmented completion loop.
func (p *OpenAIAdapter) Completions(ctx context.Context, req CompletionsRequest) error {
	if req.OnChunk == nil {
		return errors.New("chunk callback is required")
	}

	mdl := resolveModel(req.Assistant, p.cfg.DefaultModel)
	msgs := model.FilterMessages(req.Messages, req.Assistant.Settings.ContextCount)
	req.emitFiltered(msgs)

	system := req.Assistant.Prompt
	if len(req.Tools) > 0 {
		system = mcp.BuildSystemPrompt(system, req.Tools)
	}
	chatMsgs := p.buildMessages(system, msgs, mdl)

	sw := NewStopwatch()
	var toolResponses []model.ToolResponse
	total := model.Usage{}

	for round := 0; ; round++ {
		if round >= p.cfg.MaxToolRounds {
			return fmt.Errorf("%w: %d rounds", ErrToolRoundsExceeded, round)
		}

		content, usage, err := p.runRound(ctx, req, mdl, chatMsgs, sw)
		if err != nil {
			return err
		}
		if usage != nil {
			total.PromptTokens += usage.PromptTokens
			total.CompletionTokens += usage.CompletionTokens
			total.TotalTokens += usage.TotalTokens
		}

		followUps := ParseAndCallTools(ctx, content, &toolResponses, req.OnChunk,
			toolResultToOpenAIMessage, req.Tools, mdl.IsVision(), p.cfg.Tools)
		if len(followUps) == 0 {
			req.OnChunk(Chunk{
				Usage:         &total,
				Metrics:       sw.Metrics(total.CompletionTokens),
				ToolResponses: toolResponses,
			})
			return nil
		}

		chatMsgs = append(chatMsgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: content,
		})
		chatMsgs = append(chatMsgs, followUps...)
	}
}

// runRound issues one vendor call, streamed or batched per the assistant
// setting, and returns the round's full output text and usage.
func (p *OpenAIAdapter) runRound(
	ctx context.Context,
	req CompletionsRequest,
	mdl model.Model,
	chatMsgs []openai.ChatCompletionMessage,
	sw *Stopwatch,
) (string, *model.Usage, error) {
	body := p.requestBody(req.Assistant, mdl, chatMsgs)

	if !req.Assistant.Settings.StreamOutput {
		resp, err := p.client.CreateChatCompletion(ctx, body)
		if err != nil {
			if isAbort(err) || ctx.Err() != nil {
				return "", nil, context.Canceled
			}
			return "", nil, fmt.Errorf("chat completion failed: %w", err)
		}
		var content, reasoning string
		if len(resp.Choices) > 0 {
			content = resp.Choices[0].Message.Content
			reasoning = resp.Choices[0].Message.ReasoningContent
		}
		if reasoning != "" {
			sw.OnReasoning()
		}
		if content != "" {
			sw.OnText()
		}
		req.OnChunk(Chunk{
			Text:             content,
			ReasoningContent: reasoning,
			Metrics:          sw.Metrics(0),
		})
		return content, usageFromOpenAI(resp.Usage), nil
	}

	body.Stream = true
	body.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := p.client.CreateChatCompletionStream(ctx, body)
	if err != nil {
		if isAbort(err) || ctx.Err() != nil {
			return "", nil, context.Canceled
		}
		return "", nil, fmt.Errorf("stream creation failed: %w", err)
	}
	defer stream.Close()

	var content strings.Builder
	var usage *model.Usage
	for {
		// RecvRaw keeps the wire bytes; vendor-specific payloads outside the
		// standard schema (zhipu web_search, hunyuan search_info, citations,
		// annotations) would be dropped by the typed decode.
		raw, err := stream.RecvRaw()
		if errors.Is(err, io.EOF) {
			return content.String(), usage, nil
		}
		if err != nil {
			if isAbort(err) || ctx.Err() != nil {
				return content.String(), usage, context.Canceled
			}
			return content.String(), usage, fmt.Errorf("stream recv failed: %w", err)
		}

		var resp openai.ChatCompletionStreamResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return content.String(), usage, fmt.Errorf("stream decode failed: %w", err)
		}
		if payload := vendorPayloadChunk(raw); payload != nil {
			req.OnChunk(*payload)
		}

		if resp.Usage != nil {
			usage = usageFromOpenAI(*resp.Usage)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta
		if delta.ReasoningContent != "" {
			sw.OnReasoning()
			req.OnChunk(Chunk{
				ReasoningContent: delta.ReasoningContent,
				Metrics:          sw.Metrics(0),
			})
		}
		if delta.Content != "" {
			sw.OnText()
			content.WriteString(delta.Content)
			req.OnChunk(Chunk{
				Text:    delta.Content,
				Metrics: sw.Metrics(0),
			})
		}
	}
}

// vendorPayloadChunk extracts the fields OpenAI-compatible vendors attach
// outside the standard stream schema: zhipu reports a top-level "web_search"
// result array, hunyuan "search_info.search_results", openrouter-style
// endpoints a "citations" URL array, and OpenAI search models url
// annotations on the delta. Returns nil when the chunk carries none.
func vendorPayloadChunk(raw []byte) *Chunk {
	var chunk Chunk
	var found bool

	for _, path := range []string{"web_search", "search_info.search_results"} {
		if r := gjson.GetBytes(raw, path); r.IsArray() && len(r.Array()) > 0 {
			chunk.WebSearchInfo = json.RawMessage(r.Raw)
			found = true
			break
		}
	}
	for _, c := range gjson.GetBytes(raw, "citations").Array() {
		if c.String() != "" {
			chunk.Citations = append(chunk.Citations, c.String())
			found = true
		}
	}
	if r := gjson.GetBytes(raw, "choices.0.delta.annotations"); r.IsArray() && len(r.Array()) > 0 {
		chunk.Annotations = json.RawMessage(r.Raw)
		found = true
	}

	if !found {
		return nil
	}
	return &chunk
}

// requestBody applies the sampling policy: reasoning models suppress
// temperature/top-p and receive the effort level instead.
func (p *OpenAIAdapter) requestBody(assistant model.Assistant, mdl model.Model, msgs []openai.ChatCompletionMessage) openai.ChatCompletionRequest {
	body := openai.ChatCompletionRequest{
		Model:    mdl.ID,
		Messages: msgs,
	}

	if mdl.IsReasoning() {
		body.MaxCompletionTokens = maxTokensOrDefault(assistant)
		if _, ok := effortRatios[assistant.Settings.ReasoningEffort]; ok {
			body.ReasoningEffort = assistant.Settings.ReasoningEffort
		}
		return body
	}

	body.MaxTokens = maxTokensOrDefault(assistant)
	if t := samplingTemperature(assistant, mdl); t != nil {
		body.Temperature = float32(*t)
	}
	if tp := samplingTopP(assistant, mdl); tp != nil {
		body.TopP = float32(*tp)
	}
	return body
}

// buildMessages converts filtered domain messages into vendor shape,
// folding text attachments inline and images into multi-part content for
// vision-capable models.
func (p *OpenAIAdapter) buildMessages(system string, msgs []model.Message, mdl model.Model) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, m := range msgs {
		images := imageFiles(m)
		if mdl.IsVision() && len(images) > 0 {
			parts := []openai.ChatMessagePart{{
				Type: openai.ChatMessagePartTypeText,
				Text: messageText(m),
			}}
			for _, img := range images {
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL: "data:" + img.MimeType + ";base64," + img.Base64,
					},
				})
			}
			result = append(result, openai.ChatCompletionMessage{
				Role:         string(m.Role),
				MultiContent: parts,
			})
			continue
		}

		result = append(result, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: messageText(m),
		})
	}
	return result
}

// toolResultToOpenAIMessage wraps a tool response as the user follow-up
// turn the model reads on the next round.
func toolResultToOpenAIMessage(resp model.ToolResponse, _ bool) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		Content: "<tool_use_result>\n" +
			"Tool: " + resp.Tool.Name + "\n" +
			"Status: " + string(resp.Status) + "\n" +
			resp.Response + "\n" +
			"</tool_use_result>",
	}
}

// Translate re-generates content in another language.
func (p *OpenAIAdapter) Translate(ctx context.Context, content string, assistant model.Assistant, onPartial func(string)) (string, error) {
	mdl := resolveModel(assistant, p.cfg.DefaultModel)
	body := openai.ChatCompletionRequest{
		Model: mdl.ID,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: assistant.Prompt},
			{Role: openai.ChatMessageRoleUser, Content: content},
		},
		MaxTokens: DefaultMaxTokens,
	}

	if onPartial == nil {
		resp, err := p.client.CreateChatCompletion(ctx, body)
		if err != nil {
			return "", fmt.Errorf("translate failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		return resp.Choices[0].Message.Content, nil
	}

	body.Stream = true
	stream, err := p.client.CreateChatCompletionStream(ctx, body)
	if err != nil {
		return "", fmt.Errorf("translate stream failed: %w", err)
	}
	defer stream.Close()

	var text strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return text.String(), nil
		}
		if err != nil {
			return text.String(), fmt.Errorf("translate stream failed: %w", err)
		}
		if len(resp.Choices) > 0 && resp.Choices[0].Delta.Content != "" {
			text.WriteString(resp.Choices[0].Delta.Content)
			onPartial(text.String())
		}
	}
}

// Summaries produces a short conversation title.
func (p *OpenAIAdapter) Summaries(ctx context.Context, messages []model.Message, assistant model.Assistant) (string, error) {
	mdl := resolveModel(assistant, p.cfg.DefaultModel)
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: mdl.ID,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: assistant.Prompt},
			{Role: openai.ChatMessageRoleUser, Content: SummaryPrompt(messages)},
		},
		MaxTokens: DefaultMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("summaries failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// SummaryForSearch produces the search-decision text, bounded by a fixed
// timeout and never streamed.
func (p *OpenAIAdapter) SummaryForSearch(ctx context.Context, messages []model.Message, assistant model.Assistant) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, summaryTimeout)
	defer cancel()

	mdl := resolveModel(assistant, p.cfg.DefaultModel)
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: mdl.ID,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: assistant.Prompt},
			{Role: openai.ChatMessageRoleUser, Content: joinedContent(messages)},
		},
		MaxTokens: DefaultMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("search summary failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Check sends a minimal probe request.
func (p *OpenAIAdapter) Check(ctx context.Context, m model.Model) CheckResult {
	if m.ID == "" {
		return CheckResult{Err: errors.New("no model found")}
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: m.ID,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: checkProbeContent},
		},
		MaxTokens: 100,
	})
	if err != nil {
		return CheckResult{Err: err}
	}
	return CheckResult{Valid: len(resp.Choices) > 0 && resp.Choices[0].Message.Content != ""}
}

// GenerateText runs a one-shot prompt/content generation.
func (p *OpenAIAdapter) GenerateText(ctx context.Context, prompt, content string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.cfg.DefaultModel.ID,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: content},
		},
		MaxTokens: DefaultMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generate text failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateImage produces image URLs via the images endpoint.
func (p *OpenAIAdapter) GenerateImage(ctx context.Context, prompt string) ([]string, error) {
	resp, err := p.client.CreateImage(ctx, openai.ImageRequest{
		Prompt: prompt,
		N:      1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate image failed: %w", err)
	}
	urls := make([]string, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.URL != "" {
			urls = append(urls, d.URL)
		} else if d.B64JSON != "" {
			urls = append(urls, "data:image/png;base64,"+d.B64JSON)
		}
	}
	return urls, nil
}

// Models lists the models the account can use.
func (p *OpenAIAdapter) Models(ctx context.Context) ([]model.Model, error) {
	list, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models failed: %w", err)
	}
	result := make([]model.Model, 0, len(list.Models))
	for _, m := range list.Models {
		result = append(result, model.Model{ID: m.ID, Provider: p.cfg.Provider})
	}
	return result, nil
}

// EmbeddingDimensions probes the embedding vector size of a model.
func (p *OpenAIAdapter) EmbeddingDimensions(ctx context.Context, modelID string) (int, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{checkProbeContent},
		Model: openai.EmbeddingModel(modelID),
	})
	if err != nil {
		return 0, fmt.Errorf("embedding probe failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return 0, nil
	}
	return len(resp.Data[0].Embedding), nil
}

func usageFromOpenAI(u openai.Usage) *model.Usage {
	if u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0 {
		return nil
	}
	return &model.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

// Verify OpenAIAdapter implements Provider
var _ Provider = (*OpenAIAdapter)(nil)
