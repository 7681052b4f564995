// Anthropic adapter using the official anthropic-sdk-go.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for the Messages API
// - Thinking budget derivation for reasoning-capable models
// - Streaming protocol and the tool-call round loop

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/richinex/relay/mcp"
	"github.com/richinex/relay/model"
)

// AnthropicAdapter implements Provider for Anthropic Claude.
type AnthropicAdapter struct {
	client anthropic.Client
	cfg    Config
}

// NewAnthropicAdapter creates a new Anthropic adapter.
func NewAnthropicAdapter(cfg Config) *AnthropicAdapter {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicAdapter{
		client: anthropic.NewClient(opts...),
		cfg:    cfg.withDefaults(),
	}
}

// Name returns the provider family id.
func (p *AnthropicAdapter) Name() string {
	return p.cfg.Provider
}

// Completions runs the streamed, tool-augmented completion loop.
func (p *AnthropicAdapter) Completions(ctx context.Context, req CompletionsRequest) error {
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
	params := p.messageParams(req.Assistant, mdl, system, p.buildMessages(msgs, mdl))

	sw := NewStopwatch()
	var toolResponses []model.ToolResponse
	total := model.Usage{}

	for round := 0; ; round++ {
		if round >= p.cfg.MaxToolRounds {
			return fmt.Errorf("%w: %d rounds", ErrToolRoundsExceeded, round)
		}

		content, usage, err := p.runRound(ctx, req, params, sw)
		if err != nil {
			return err
		}
		total.PromptTokens += usage.PromptTokens
		total.CompletionTokens += usage.CompletionTokens
		total.TotalTokens += usage.TotalTokens

		followUps := ParseAndCallTools(ctx, content, &toolResponses, req.OnChunk,
			toolResultToAnthropicMessage, req.Tools, mdl.IsVision(), p.cfg.Tools)
		if len(followUps) == 0 {
			req.OnChunk(Chunk{
				Usage:         &total,
				Metrics:       sw.Metrics(total.CompletionTokens),
				ToolResponses: toolResponses,
			})
			return nil
		}

		params.Messages = append(params.Messages,
			anthropic.NewAssistantMessage(anthropic.NewTextBlock(content)))
		params.Messages = append(params.Messages, followUps...)
	}
}

// runRound issues one vendor call and returns the round's output and usage.
func (p *AnthropicAdapter) runRound(
	ctx context.Context,
	req CompletionsRequest,
	params anthropic.MessageNewParams,
	sw *Stopwatch,
) (string, model.Usage, error) {
	if !req.Assistant.Settings.StreamOutput {
		message, err := p.client.Messages.New(ctx, params)
		if err != nil {
			if isAbort(err) || ctx.Err() != nil {
				return "", model.Usage{}, context.Canceled
			}
			return "", model.Usage{}, fmt.Errorf("chat completion failed: %w", err)
		}

		var content, reasoning string
		for _, block := range message.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				content += variant.Text
			case anthropic.ThinkingBlock:
				reasoning += variant.Thinking
			}
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
		return content, usageFromAnthropic(message.Usage), nil
	}

	stream := p.client.Messages.NewStreaming(ctx, params)

	var content strings.Builder
	usage := model.Usage{}
	for stream.Next() {
		event := stream.Current()
		switch eventVariant := event.AsAny().(type) {
		case anthropic.MessageStartEvent:
			usage.PromptTokens = int(eventVariant.Message.Usage.InputTokens)
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if deltaVariant.Text == "" {
					continue
				}
				sw.OnText()
				content.WriteString(deltaVariant.Text)
				req.OnChunk(Chunk{Text: deltaVariant.Text, Metrics: sw.Metrics(0)})
			case anthropic.ThinkingDelta:
				if deltaVariant.Thinking == "" {
					continue
				}
				sw.OnReasoning()
				req.OnChunk(Chunk{ReasoningContent: deltaVariant.Thinking, Metrics: sw.Metrics(0)})
			}
		case anthropic.MessageDeltaEvent:
			usage.CompletionTokens = int(eventVariant.Usage.OutputTokens)
		}
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	if err := stream.Err(); err != nil {
		if isAbort(err) || ctx.Err() != nil {
			return content.String(), usage, context.Canceled
		}
		return content.String(), usage, fmt.Errorf("stream error: %w", err)
	}
	return content.String(), usage, nil
}

// messageParams applies the sampling policy. Reasoning models suppress
// temperature/top-p and derive a thinking budget from the effort level.
func (p *AnthropicAdapter) messageParams(assistant model.Assistant, mdl model.Model, system string, msgs []anthropic.MessageParam) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(mdl.ID),
		MaxTokens: int64(maxTokensOrDefault(assistant)),
		Messages:  msgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	if mdl.IsReasoning() {
		if budget, ok := ReasoningBudget(assistant.Settings.MaxTokens, assistant.Settings.ReasoningEffort); ok {
			params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(budget))
		}
		return params
	}

	if t := samplingTemperature(assistant, mdl); t != nil {
		params.Temperature = anthropic.Float(*t)
	}
	if tp := samplingTopP(assistant, mdl); tp != nil {
		params.TopP = anthropic.Float(*tp)
	}
	return params
}

// buildMessages converts filtered domain messages into vendor shape.
func (p *AnthropicAdapter) buildMessages(msgs []model.Message, mdl model.Model) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		blocks := []anthropic.ContentBlockParamUnion{
			anthropic.NewTextBlock(messageText(m)),
		}
		if mdl.IsVision() {
			for _, img := range imageFiles(m) {
				blocks = append(blocks, anthropic.NewImageBlockBase64(img.MimeType, img.Base64))
			}
		}

		switch m.Role {
		case model.RoleAssistant:
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		default:
			result = append(result, anthropic.NewUserMessage(blocks...))
		}
	}
	return result
}

// toolResultToAnthropicMessage wraps a tool response as the user follow-up
// turn the model reads on the next round.
func toolResultToAnthropicMessage(resp model.ToolResponse, _ bool) anthropic.MessageParam {
	return anthropic.NewUserMessage(anthropic.NewTextBlock(
		"<tool_use_result>\n" +
			"Tool: " + resp.Tool.Name + "\n" +
			"Status: " + string(resp.Status) + "\n" +
			resp.Response + "\n" +
			"</tool_use_result>"))
}

// Translate re-generates content in another language.
func (p *AnthropicAdapter) Translate(ctx context.Context, content string, assistant model.Assistant, onPartial func(string)) (string, error) {
	mdl := resolveModel(assistant, p.cfg.DefaultModel)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(mdl.ID),
		MaxTokens: DefaultMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(content)),
		},
	}
	if assistant.Prompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: assistant.Prompt}}
	}

	if onPartial == nil {
		message, err := p.client.Messages.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("translate failed: %w", err)
		}
		return textContent(message), nil
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	var text strings.Builder
	for stream.Next() {
		event := stream.Current()
		if deltaEvent, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if delta, ok := deltaEvent.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				text.WriteString(delta.Text)
				onPartial(text.String())
			}
		}
	}
	if err := stream.Err(); err != nil {
		return text.String(), fmt.Errorf("translate stream failed: %w", err)
	}
	return text.String(), nil
}

// Summaries produces a short conversation title.
func (p *AnthropicAdapter) Summaries(ctx context.Context, messages []model.Message, assistant model.Assistant) (string, error) {
	mdl := resolveModel(assistant, p.cfg.DefaultModel)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(mdl.ID),
		MaxTokens: DefaultMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(SummaryPrompt(messages))),
		},
	}
	if assistant.Prompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: assistant.Prompt}}
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("summaries failed: %w", err)
	}
	return textContent(message), nil
}

// SummaryForSearch produces the search-decision text, bounded by a fixed
// timeout and never streamed.
func (p *AnthropicAdapter) SummaryForSearch(ctx context.Context, messages []model.Message, assistant model.Assistant) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, summaryTimeout)
	defer cancel()

	mdl := resolveModel(assistant, p.cfg.DefaultModel)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(mdl.ID),
		MaxTokens: DefaultMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(joinedContent(messages))),
		},
	}
	if assistant.Prompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: assistant.Prompt}}
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("search summary failed: %w", err)
	}
	return textContent(message), nil
}

// Check sends a minimal probe request.
func (p *AnthropicAdapter) Check(ctx context.Context, m model.Model) CheckResult {
	if m.ID == "" {
		return CheckResult{Err: errors.New("no model found")}
	}

	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(m.ID),
		MaxTokens: 100,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(checkProbeContent)),
		},
	})
	if err != nil {
		return CheckResult{Err: err}
	}
	return CheckResult{Valid: len(message.Content) > 0}
}

// GenerateText runs a one-shot prompt/content generation.
func (p *AnthropicAdapter) GenerateText(ctx context.Context, prompt, content string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.cfg.DefaultModel.ID),
		MaxTokens: DefaultMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(content)),
		},
	}
	if prompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: prompt}}
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("generate text failed: %w", err)
	}
	return textContent(message), nil
}

// GenerateImage is unsupported by Anthropic; returns an empty result.
func (p *AnthropicAdapter) GenerateImage(ctx context.Context, prompt string) ([]string, error) {
	return nil, nil
}

// Models is unsupported via this adapter; returns an empty result.
func (p *AnthropicAdapter) Models(ctx context.Context) ([]model.Model, error) {
	return nil, nil
}

// EmbeddingDimensions is unsupported by Anthropic; returns zero.
func (p *AnthropicAdapter) EmbeddingDimensions(ctx context.Context, modelID string) (int, error) {
	return 0, nil
}

func textContent(message *anthropic.Message) string {
	var content string
	for _, block := range message.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			content += variant.Text
		}
	}
	return content
}

func usageFromAnthropic(u anthropic.Usage) model.Usage {
	return model.Usage{
		PromptTokens:     int(u.InputTokens),
		CompletionTokens: int(u.OutputTokens),
		TotalTokens:      int(u.InputTokens + u.OutputTokens),
	}
}

// Verify AnthropicAdapter implements Provider
var _ Provider = (*AnthropicAdapter)(nil)
