// Package llm provides provider-agnostic chat completion streaming.
//
// Each vendor adapter normalizes its wire format into Chunk values; vendor
// JSON shapes never leak past the adapter boundary.

package llm

import (
	"encoding/json"

	"github.com/richinex/relay/model"
)

// Chunk is the unit emitted by a provider adapter during streaming. Chunks
// are additive: the consumer folds each chunk into the running message
// rather than replacing it. Any subset of fields may be set.
type Chunk struct {
	// Text is incremental user-visible output.
	Text string
	// ReasoningContent is incremental thinking output.
	ReasoningContent string
	// Usage carries cumulative token totals; set on the terminal chunk of
	// the final round.
	Usage *model.Usage
	// Metrics carries timing bookkeeping, recomputed on every chunk.
	Metrics *model.Metrics
	// ToolResponses is the accumulated tool invocation list so far.
	ToolResponses []model.ToolResponse
	// WebSearchInfo is a vendor-native web search payload.
	WebSearchInfo json.RawMessage
	// Grounding is search grounding metadata (Gemini).
	Grounding json.RawMessage
	// Annotations are URL annotations (OpenAI).
	Annotations json.RawMessage
	// Citations are citation URLs reported by the vendor.
	Citations []string
	// GeneratedImage carries images produced inline by the model.
	GeneratedImage *model.GeneratedImage
}

// OnChunk receives streamed chunks. It is invoked in transport order and
// must not block: the adapter delivers chunks synchronously.
type OnChunk func(Chunk)

// CompletionsRequest is the normalized input to Provider.Completions.
type CompletionsRequest struct {
	Messages  []model.Message
	Assistant model.Assistant
	Tools     []model.MCPTool
	// OnChunk receives each streamed chunk. Required.
	OnChunk OnChunk
	// OnFilterMessages is invoked once with the exact message list that was
	// sent to the vendor, for UI echo. Optional.
	OnFilterMessages func([]model.Message)
}

func (r CompletionsRequest) emitFiltered(messages []model.Message) {
	if r.OnFilterMessages != nil {
		r.OnFilterMessages(messages)
	}
}
