// Package model provides domain types shared across packages.
package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MessageStatus is the lifecycle state of a message while a completion runs.
type MessageStatus string

const (
	// StatusPending means the message is being generated.
	StatusPending MessageStatus = "pending"
	// StatusSearching means a web search is running before generation.
	StatusSearching MessageStatus = "searching"
	// StatusSuccess means generation finished normally.
	StatusSuccess MessageStatus = "success"
	// StatusPaused means the user aborted mid-stream; partial text is kept.
	StatusPaused MessageStatus = "paused"
	// StatusError means generation failed.
	StatusError MessageStatus = "error"
)

// FileType tags an attached file for provider-specific handling.
type FileType string

const (
	FileTypeImage    FileType = "image"
	FileTypeText     FileType = "text"
	FileTypeDocument FileType = "document"
	FileTypeOther    FileType = "other"
)

// File is an attachment on a message. Text and document files carry their
// content inline; images carry base64 data plus a MIME type.
type File struct {
	Name     string   `json:"name"`
	Type     FileType `json:"type"`
	Content  string   `json:"content,omitempty"`
	Base64   string   `json:"base64,omitempty"`
	MimeType string   `json:"mime_type,omitempty"`
}

// Usage holds cumulative token counts as reported by a vendor.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Metrics holds timing and throughput bookkeeping for one completion.
// TimeFirstTokenMillsec is set once on the first observable output unit and
// never decreases; TimeCompletionMillsec is recomputed on every chunk.
type Metrics struct {
	CompletionTokens      int   `json:"completion_tokens"`
	TimeFirstTokenMillsec int64 `json:"time_first_token_millsec"`
	TimeCompletionMillsec int64 `json:"time_completion_millsec"`
	TimeThinkingMillsec   int64 `json:"time_thinking_millsec"`
}

// ToolResponseStatus tracks the progress of one tool invocation.
type ToolResponseStatus string

const (
	ToolInvoking ToolResponseStatus = "invoking"
	ToolDone     ToolResponseStatus = "done"
	ToolError    ToolResponseStatus = "error"
)

// ToolResponse is the record of one tool invocation made mid-generation.
// Execution errors are carried in Response with status ToolError so the
// model can react to the failure on the next round.
type ToolResponse struct {
	ID        string             `json:"id"`
	Tool      MCPTool            `json:"tool"`
	Arguments json.RawMessage    `json:"arguments,omitempty"`
	Status    ToolResponseStatus `json:"status"`
	Response  string             `json:"response,omitempty"`
}

// GeneratedImage holds images produced inline by a completion.
type GeneratedImage struct {
	Type   string   `json:"type"`
	Images []string `json:"images"`
}

// WebSearchResult is one search hit or fetched page.
type WebSearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// WebSearchResponse is the payload produced by the web search augmenter.
type WebSearchResponse struct {
	Query   string            `json:"query"`
	Results []WebSearchResult `json:"results"`
}

// Metadata is the optional bag of auxiliary payloads attached to a message.
type Metadata struct {
	WebSearch      *WebSearchResponse `json:"web_search,omitempty"`
	WebSearchInfo  json.RawMessage    `json:"web_search_info,omitempty"`
	Grounding      json.RawMessage    `json:"grounding,omitempty"`
	Annotations    json.RawMessage    `json:"annotations,omitempty"`
	Citations      []string           `json:"citations,omitempty"`
	ToolResponses  []ToolResponse     `json:"tool_responses,omitempty"`
	GeneratedImage *GeneratedImage    `json:"generated_image,omitempty"`
}

// Message is one turn in a conversation. The orchestrator mutates the
// assistant message in place as streamed chunks arrive.
type Message struct {
	ID               string        `json:"id"`
	Role             Role          `json:"role"`
	Content          string        `json:"content"`
	ReasoningContent string        `json:"reasoning_content,omitempty"`
	Files            []File        `json:"files,omitempty"`
	Status           MessageStatus `json:"status,omitempty"`
	Error            string        `json:"error,omitempty"`
	Usage            *Usage        `json:"usage,omitempty"`
	Metrics          *Metrics      `json:"metrics,omitempty"`
	Metadata         *Metadata     `json:"metadata,omitempty"`
	EnabledMCPs      []MCPServer   `json:"enabled_mcps,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// NewMessage creates a message with a fresh ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// EnsureMetadata returns the message metadata, allocating it if needed.
func (m *Message) EnsureMetadata() *Metadata {
	if m.Metadata == nil {
		m.Metadata = &Metadata{}
	}
	return m.Metadata
}

// AssistantSettings are sampling parameters for one conversation turn.
// Nil Temperature/TopP means "vendor default".
type AssistantSettings struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"top_p,omitempty"`
	MaxTokens       int      `json:"max_tokens"`
	ContextCount    int      `json:"context_count"`
	StreamOutput    bool     `json:"stream_output"`
	ReasoningEffort string   `json:"reasoning_effort,omitempty"`
}

// Assistant is the configuration for a conversation turn. Immutable for the
// duration of one completion call.
type Assistant struct {
	Name            string            `json:"name"`
	Prompt          string            `json:"prompt"`
	Model           *Model            `json:"model,omitempty"`
	Settings        AssistantSettings `json:"settings"`
	EnableWebSearch bool              `json:"enable_web_search"`
}

// Model identifies a vendor model plus capability flags. Read-only.
type Model struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Provider string `json:"provider"`
	// Capability overrides; heuristics on the model ID apply when false.
	Vision    bool `json:"vision,omitempty"`
	Reasoning bool `json:"reasoning,omitempty"`
}

// reasoningIDHints are model-ID substrings that mark reasoning-capable models.
var reasoningIDHints = []string{
	"o1", "o3", "o4", "-r1", "reasoner", "thinking", "claude-3-7", "claude-3.7",
}

// IsReasoning reports whether the model emits reasoning/thinking output.
func (m Model) IsReasoning() bool {
	if m.Reasoning {
		return true
	}
	id := strings.ToLower(m.ID)
	for _, hint := range reasoningIDHints {
		if strings.Contains(id, hint) {
			return true
		}
	}
	return false
}

// IsVision reports whether the model accepts image input.
func (m Model) IsVision() bool {
	if m.Vision {
		return true
	}
	id := strings.ToLower(m.ID)
	return strings.Contains(id, "vision") || strings.Contains(id, "-vl")
}

// HasNativeWebSearch reports whether the vendor performs web search itself,
// so the external augmenter must be skipped.
func (m Model) HasNativeWebSearch() bool {
	id := strings.ToLower(m.ID)
	return strings.Contains(id, "search-preview") || strings.HasSuffix(id, ":online")
}

// IsZhipu reports whether the model belongs to the Zhipu family, which has
// its own inline link convention.
func (m Model) IsZhipu() bool {
	return m.Provider == "zhipu" || strings.HasPrefix(strings.ToLower(m.ID), "glm-")
}

// IsHunyuanSearch reports whether the model is a Hunyuan search model.
func (m Model) IsHunyuanSearch() bool {
	return m.Provider == "hunyuan" && strings.Contains(strings.ToLower(m.ID), "hunyuan")
}

// MCPServer describes an external tool-serving process.
type MCPServer struct {
	Name          string            `json:"name"`
	Command       string            `json:"command"`
	Args          []string          `json:"args,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	DisabledTools []string          `json:"disabled_tools,omitempty"`
}

// MCPTool is one tool offered by an MCP server.
type MCPTool struct {
	ServerName  string          `json:"server_name"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}
