// Google Gemini adapter using the official google.golang.org/genai SDK.
//
// Information Hiding:
// - API authentication and client creation
// - Request/response format for the Gemini API
// - Thinking budget and thought-part handling
// - Search grounding metadata extraction
// - Streaming via the SDK iterator

package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/richinex/relay/mcp"
	"github.com/richinex/relay/model"
)

// GeminiAdapter implements Provider for Google Gemini.
type GeminiAdapter struct {
	client  *genai.Client
	cfg     Config
	initErr error // Stores client initialization error for deferred reporting
}

// NewGeminiAdapter creates a new Gemini adapter.
// If client initialization fails, the error is stored and returned on first use.
func NewGeminiAdapter(cfg Config) *GeminiAdapter {
	cfg = cfg.withDefaults()

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return &GeminiAdapter{
			cfg:     cfg,
			initErr: fmt.Errorf("failed to initialize Gemini client: %w", err),
		}
	}
	return &GeminiAdapter{client: client, cfg: cfg}
}

// Name returns the provider family id.
func (p *GeminiAdapter) Name() string {
	return p.cfg.Provider
}

func (p *GeminiAdapter) ready() error {
	if p.initErr != nil {
		return p.initErr
	}
	if p.client == nil {
		return errors.New("gemini client not initialized")
	}
	return nil
}

// Completions runs the streamed, tool-augmented completion loop.
func (p *GeminiAdapter) Completions(ctx context.Context, req CompletionsRequest) error {
	if req.OnChunk == nil {
		return errors.New("chunk callback is required")
	}
	if err := p.ready(); err != nil {
		return err
	}

	mdl := resolveModel(req.Assistant, p.cfg.DefaultModel)
	msgs := model.FilterMessages(req.Messages, req.Assistant.Settings.ContextCount)
	req.emitFiltered(msgs)

	system := req.Assistant.Prompt
	if len(req.Tools) > 0 {
		system = mcp.BuildSystemPrompt(system, req.Tools)
	}
	config := p.generateConfig(req.Assistant, mdl, system)
	contents := p.buildContents(msgs, mdl)

	sw := NewStopwatch()
	var toolResponses []model.ToolResponse
	total := model.Usage{}

	for round := 0; ; round++ {
		if round >= p.cfg.MaxToolRounds {
			return fmt.Errorf("%w: %d rounds", ErrToolRoundsExceeded, round)
		}

		content, usage, err := p.runRound(ctx, req, mdl, contents, config, sw)
		if err != nil {
			return err
		}
		total.PromptTokens += usage.PromptTokens
		total.CompletionTokens += usage.CompletionTokens
		total.TotalTokens += usage.TotalTokens

		followUps := ParseAndCallTools(ctx, content, &toolResponses, req.OnChunk,
			toolResultToGeminiContent, req.Tools, mdl.IsVision(), p.cfg.Tools)
		if len(followUps) == 0 {
			req.OnChunk(Chunk{
				Usage:         &total,
				Metrics:       sw.Metrics(total.CompletionTokens),
				ToolResponses: toolResponses,
			})
			return nil
		}

		contents = append(contents, genai.NewContentFromText(content, genai.RoleModel))
		contents = append(contents, followUps...)
	}
}

// runRound issues one vendor call and returns the round's output and usage.
func (p *GeminiAdapter) runRound(
	ctx context.Context,
	req CompletionsRequest,
	mdl model.Model,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	sw *Stopwatch,
) (string, model.Usage, error) {
	if !req.Assistant.Settings.StreamOutput {
		response, err := p.client.Models.GenerateContent(ctx, mdl.ID, contents, config)
		if err != nil {
			if isAbort(err) || ctx.Err() != nil {
				return "", model.Usage{}, context.Canceled
			}
			return "", model.Usage{}, fmt.Errorf("chat completion failed: %w", err)
		}

		content, reasoning, images := splitParts(response)
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
			Grounding:        groundingPayload(response),
			GeneratedImage:   generatedImage(images),
		})
		return content, usageFromGemini(response), nil
	}

	var content strings.Builder
	var grounding json.RawMessage
	var images []string
	usage := model.Usage{}

	for response, err := range p.client.Models.GenerateContentStream(ctx, mdl.ID, contents, config) {
		if err != nil {
			if isAbort(err) || ctx.Err() != nil {
				return content.String(), usage, context.Canceled
			}
			return content.String(), usage, fmt.Errorf("stream error: %w", err)
		}

		if response.UsageMetadata != nil {
			usage = usageFromGemini(response)
		}
		if g := groundingPayload(response); g != nil {
			grounding = g
		}

		text, reasoning, imgs := splitParts(response)
		images = append(images, imgs...)
		if reasoning != "" {
			sw.OnReasoning()
			req.OnChunk(Chunk{ReasoningContent: reasoning, Metrics: sw.Metrics(0)})
		}
		if text != "" {
			sw.OnText()
			content.WriteString(text)
			req.OnChunk(Chunk{Text: text, Metrics: sw.Metrics(0)})
		}
	}

	if grounding != nil || len(images) > 0 {
		req.OnChunk(Chunk{Grounding: grounding, GeneratedImage: generatedImage(images)})
	}
	return content.String(), usage, nil
}

// generateConfig applies the sampling policy. Reasoning models suppress
// temperature/top-p and derive a thinking budget from the effort level.
func (p *GeminiAdapter) generateConfig(assistant model.Assistant, mdl model.Model, system string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokensOrDefault(assistant)),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	if mdl.IsReasoning() {
		if budget, ok := ReasoningBudget(assistant.Settings.MaxTokens, assistant.Settings.ReasoningEffort); ok {
			config.ThinkingConfig = &genai.ThinkingConfig{
				IncludeThoughts: true,
				ThinkingBudget:  genai.Ptr(int32(budget)),
			}
		}
		return config
	}

	if t := samplingTemperature(assistant, mdl); t != nil {
		config.Temperature = genai.Ptr(float32(*t))
	}
	if tp := samplingTopP(assistant, mdl); tp != nil {
		config.TopP = genai.Ptr(float32(*tp))
	}
	return config
}

// buildContents converts filtered domain messages into vendor shape.
func (p *GeminiAdapter) buildContents(msgs []model.Message, mdl model.Model) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.RoleUser
		if m.Role == model.RoleAssistant {
			role = genai.RoleModel
		}

		parts := []*genai.Part{{Text: messageText(m)}}
		if mdl.IsVision() {
			for _, img := range imageFiles(m) {
				data, err := base64.StdEncoding.DecodeString(img.Base64)
				if err != nil {
					continue
				}
				parts = append(parts, &genai.Part{
					InlineData: &genai.Blob{MIMEType: img.MimeType, Data: data},
				})
			}
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents
}

// toolResultToGeminiContent wraps a tool response as the user follow-up turn
// the model reads on the next round.
func toolResultToGeminiContent(resp model.ToolResponse, _ bool) *genai.Content {
	return genai.NewContentFromText(
		"<tool_use_result>\n"+
			"Tool: "+resp.Tool.Name+"\n"+
			"Status: "+string(resp.Status)+"\n"+
			resp.Response+"\n"+
			"</tool_use_result>", genai.RoleUser)
}

// splitParts separates visible text, thought parts, and inline images.
// Images come back as data URLs.
func splitParts(response *genai.GenerateContentResponse) (text, reasoning string, images []string) {
	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return "", "", nil
	}
	for _, part := range response.Candidates[0].Content.Parts {
		if part.InlineData != nil && strings.HasPrefix(part.InlineData.MIMEType, "image/") {
			images = append(images, "data:"+part.InlineData.MIMEType+";base64,"+
				base64.StdEncoding.EncodeToString(part.InlineData.Data))
			continue
		}
		if part.Text == "" {
			continue
		}
		if part.Thought {
			reasoning += part.Text
		} else {
			text += part.Text
		}
	}
	return text, reasoning, images
}

func generatedImage(images []string) *model.GeneratedImage {
	if len(images) == 0 {
		return nil
	}
	return &model.GeneratedImage{Type: "base64", Images: images}
}

// groundingPayload extracts search grounding metadata, if present.
func groundingPayload(response *genai.GenerateContentResponse) json.RawMessage {
	if len(response.Candidates) == 0 || response.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	payload, err := json.Marshal(response.Candidates[0].GroundingMetadata)
	if err != nil {
		return nil
	}
	return payload
}

func usageFromGemini(response *genai.GenerateContentResponse) model.Usage {
	if response.UsageMetadata == nil {
		return model.Usage{}
	}
	return model.Usage{
		PromptTokens:     int(response.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(response.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int(response.UsageMetadata.TotalTokenCount),
	}
}

func (p *GeminiAdapter) generate(ctx context.Context, mdl model.Model, system, content string) (string, error) {
	if err := p.ready(); err != nil {
		return "", err
	}
	config := &genai.GenerateContentConfig{MaxOutputTokens: DefaultMaxTokens}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	response, err := p.client.Models.GenerateContent(ctx, mdl.ID,
		[]*genai.Content{genai.NewContentFromText(content, genai.RoleUser)}, config)
	if err != nil {
		return "", err
	}
	return response.Text(), nil
}

// Translate re-generates content in another language.
func (p *GeminiAdapter) Translate(ctx context.Context, content string, assistant model.Assistant, onPartial func(string)) (string, error) {
	if err := p.ready(); err != nil {
		return "", err
	}

	mdl := resolveModel(assistant, p.cfg.DefaultModel)
	if onPartial == nil {
		text, err := p.generate(ctx, mdl, assistant.Prompt, content)
		if err != nil {
			return "", fmt.Errorf("translate failed: %w", err)
		}
		return text, nil
	}

	config := &genai.GenerateContentConfig{MaxOutputTokens: DefaultMaxTokens}
	if assistant.Prompt != "" {
		config.SystemInstruction = genai.NewContentFromText(assistant.Prompt, genai.RoleUser)
	}
	var text strings.Builder
	for response, err := range p.client.Models.GenerateContentStream(ctx, mdl.ID,
		[]*genai.Content{genai.NewContentFromText(content, genai.RoleUser)}, config) {
		if err != nil {
			return text.String(), fmt.Errorf("translate stream failed: %w", err)
		}
		if t := response.Text(); t != "" {
			text.WriteString(t)
			onPartial(text.String())
		}
	}
	return text.String(), nil
}

// Summaries produces a short conversation title.
func (p *GeminiAdapter) Summaries(ctx context.Context, messages []model.Message, assistant model.Assistant) (string, error) {
	mdl := resolveModel(assistant, p.cfg.DefaultModel)
	text, err := p.generate(ctx, mdl, assistant.Prompt, SummaryPrompt(messages))
	if err != nil {
		return "", fmt.Errorf("summaries failed: %w", err)
	}
	return text, nil
}

// SummaryForSearch produces the search-decision text, bounded by a fixed
// timeout and never streamed.
func (p *GeminiAdapter) SummaryForSearch(ctx context.Context, messages []model.Message, assistant model.Assistant) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, summaryTimeout)
	defer cancel()

	mdl := resolveModel(assistant, p.cfg.DefaultModel)
	text, err := p.generate(ctx, mdl, assistant.Prompt, joinedContent(messages))
	if err != nil {
		return "", fmt.Errorf("search summary failed: %w", err)
	}
	return text, nil
}

// Check sends a minimal probe request.
func (p *GeminiAdapter) Check(ctx context.Context, m model.Model) CheckResult {
	if err := p.ready(); err != nil {
		return CheckResult{Err: err}
	}
	if m.ID == "" {
		return CheckResult{Err: errors.New("no model found")}
	}

	response, err := p.client.Models.GenerateContent(ctx, m.ID,
		[]*genai.Content{genai.NewContentFromText(checkProbeContent, genai.RoleUser)},
		&genai.GenerateContentConfig{MaxOutputTokens: 100})
	if err != nil {
		return CheckResult{Err: err}
	}
	return CheckResult{Valid: response.Text() != ""}
}

// GenerateText runs a one-shot prompt/content generation.
func (p *GeminiAdapter) GenerateText(ctx context.Context, prompt, content string) (string, error) {
	text, err := p.generate(ctx, p.cfg.DefaultModel, prompt, content)
	if err != nil {
		return "", fmt.Errorf("generate text failed: %w", err)
	}
	return text, nil
}

// GenerateImage is not exposed through this adapter; returns an empty result.
func (p *GeminiAdapter) GenerateImage(ctx context.Context, prompt string) ([]string, error) {
	return nil, nil
}

// Models is not exposed through this adapter; returns an empty result.
func (p *GeminiAdapter) Models(ctx context.Context) ([]model.Model, error) {
	return nil, nil
}

// EmbeddingDimensions probes an embedding model for its vector width.
func (p *GeminiAdapter) EmbeddingDimensions(ctx context.Context, modelID string) (int, error) {
	if err := p.ready(); err != nil {
		return 0, err
	}
	response, err := p.client.Models.EmbedContent(ctx, modelID,
		[]*genai.Content{genai.NewContentFromText(checkProbeContent, genai.RoleUser)}, nil)
	if err != nil {
		return 0, fmt.Errorf("embedding probe failed: %w", err)
	}
	if len(response.Embeddings) == 0 {
		return 0, errors.New("no embedding returned")
	}
	return len(response.Embeddings[0].Values), nil
}

// Verify GeminiAdapter implements Provider
var _ Provider = (*GeminiAdapter)(nil)
