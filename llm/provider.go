// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion and streaming protocol
// - Provider-specific error handling
// - The tool-call round loop against its own wire format

package llm

import (
	"context"
	"errors"

	"github.com/richinex/relay/model"
)

// ErrToolRoundsExceeded is returned when the generate/tool/re-generate loop
// runs past the configured maximum round count without the model producing
// a tool-free response.
var ErrToolRoundsExceeded = errors.New("tool call rounds exceeded")

// DefaultMaxTokens is used when the assistant does not set a token budget.
const DefaultMaxTokens = 4096

// DefaultMaxToolRounds bounds the tool-call loop.
const DefaultMaxToolRounds = 20


// CheckResult is the outcome of a minimal probe request.
type CheckResult struct {
	Valid bool
	Err   error
}

// Provider defines the capability interface all vendor adapters implement.
// The orchestrator depends only on this interface, never on a concrete
// vendor type. Adapters without vendor support for an auxiliary capability
// return an empty or zero result rather than failing.
type Provider interface {
	// Name returns the provider family id (for logging/debugging).
	Name() string

	// Completions runs the streamed, possibly multi-round, tool-augmented
	// completion. The terminal chunk carries cumulative usage and metrics.
	// Cancellation via ctx surfaces as a context error.
	Completions(ctx context.Context, req CompletionsRequest) error

	// Translate re-generates content in another language, streaming partial
	// output through onPartial when it is non-nil.
	Translate(ctx context.Context, content string, assistant model.Assistant, onPartial func(string)) (string, error)

	// Summaries produces a short conversation title from recent messages.
	Summaries(ctx context.Context, messages []model.Message, assistant model.Assistant) (string, error)

	// SummaryForSearch produces the search-decision text consumed by the
	// web search augmenter. Bounded by a fixed 20 second timeout and never
	// streamed.
	SummaryForSearch(ctx context.Context, messages []model.Message, assistant model.Assistant) (string, error)

	// Check sends a minimal probe request; valid iff a non-empty response
	// body came back without error.
	Check(ctx context.Context, m model.Model) CheckResult

	// GenerateText runs a one-shot prompt/content generation.
	GenerateText(ctx context.Context, prompt, content string) (string, error)

	// GenerateImage produces image URLs or base64 payloads.
	GenerateImage(ctx context.Context, prompt string) ([]string, error)

	// Models lists the models the vendor account can use.
	Models(ctx context.Context) ([]model.Model, error)

	// EmbeddingDimensions probes the embedding vector size of a model.
	EmbeddingDimensions(ctx context.Context, modelID string) (int, error)
}

// ToolCaller executes tool invocations against external tool servers.
// Implemented by the MCP registry.
type ToolCaller interface {
	CallTool(ctx context.Context, tool model.MCPTool, args []byte) (string, error)
}

// isAbort reports whether err stems from explicit cancellation rather than
// a transport failure.
func isAbort(err error) bool {
	return errors.Is(err, context.Canceled)
}
