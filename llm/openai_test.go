package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/richinex/relay/model"
)

// chatServer replays one scripted SSE body per request, clamping to the last
// script, and records request bodies for follow-up shape assertions.
type chatServer struct {
	mu      sync.Mutex
	replies []string
	bodies  []string
}

func (s *chatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.bodies = append(s.bodies, string(body))
	idx := len(s.bodies) - 1
	s.mu.Unlock()

	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	w.Header().Set("Content-Type", "text/event-stream")
	fmt.Fprint(w, s.replies[idx])
}

func (s *chatServer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bodies)
}

func (s *chatServer) body(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[i]
}

func sseBody(events ...string) string {
	var b strings.Builder
	for _, e := range events {
		b.WriteString("data: ")
		b.WriteString(e)
		b.WriteString("\n\n")
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func contentEvent(text string) string {
	payload, _ := json.Marshal(map[string]any{
		"id":      "chunk-1",
		"object":  "chat.completion.chunk",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{
			{"index": 0, "delta": map[string]any{"content": text}},
		},
	})
	return string(payload)
}

func streamingRequest(content string) CompletionsRequest {
	return CompletionsRequest{
		Messages: []model.Message{model.NewMessage(model.RoleUser, content)},
		Assistant: model.Assistant{
			Model:    &model.Model{ID: "gpt-4o-mini", Provider: "openai"},
			Settings: model.AssistantSettings{StreamOutput: true},
		},
		Tools: testTools(),
	}
}

func TestCompletionsToolRound(t *testing.T) {
	srv := &chatServer{replies: []string{
		sseBody(contentEvent("Let me check. " + toolUseBlock("read_file", `{"path": "a.txt"}`))),
		sseBody(contentEvent("The file says hello.")),
	}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	caller := &fakeCaller{results: map[string]string{"read_file": "hello"}}
	adapter := NewOpenAIAdapter(Config{
		Provider: "openai",
		APIKey:   "test",
		BaseURL:  ts.URL,
		Tools:    caller,
	})

	var final Chunk
	var text strings.Builder
	req := streamingRequest("read a.txt")
	req.OnChunk = func(c Chunk) {
		text.WriteString(c.Text)
		if c.Usage != nil {
			final = c
		}
	}

	if err := adapter.Completions(context.Background(), req); err != nil {
		t.Fatalf("Completions failed: %v", err)
	}

	// One tool round then a tool-free reply: exactly two vendor calls.
	if srv.callCount() != 2 {
		t.Fatalf("expected 2 provider calls, got %d", srv.callCount())
	}
	if len(caller.calls) != 1 || caller.calls[0] != "read_file" {
		t.Fatalf("expected one read_file invocation, got %v", caller.calls)
	}
	if len(final.ToolResponses) != 1 {
		t.Fatalf("expected one tool response on the terminal chunk, got %d", len(final.ToolResponses))
	}
	if final.ToolResponses[0].Status != model.ToolDone {
		t.Errorf("expected done status, got %s", final.ToolResponses[0].Status)
	}
	if final.Metrics == nil {
		t.Error("terminal chunk must carry metrics")
	}
	if !strings.Contains(text.String(), "The file says hello.") {
		t.Errorf("second-round text lost: %q", text.String())
	}

	// The follow-up turn carries the tool result back as a user message.
	followUp := srv.body(1)
	if !strings.Contains(followUp, "tool_use_result") || !strings.Contains(followUp, "hello") {
		t.Errorf("follow-up request missing tool result: %s", followUp)
	}
	if !strings.Contains(followUp, `"role":"user"`) {
		t.Errorf("tool result must be a user turn: %s", followUp)
	}
}

func TestCompletionsRoundCap(t *testing.T) {
	// The model never stops asking for tools.
	srv := &chatServer{replies: []string{
		sseBody(contentEvent(toolUseBlock("read_file", `{"path": "a.txt"}`))),
	}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	adapter := NewOpenAIAdapter(Config{
		Provider:      "openai",
		APIKey:        "test",
		BaseURL:       ts.URL,
		MaxToolRounds: 3,
		Tools:         &fakeCaller{results: map[string]string{"read_file": "x"}},
	})

	req := streamingRequest("read a.txt")
	req.OnChunk = func(Chunk) {}

	err := adapter.Completions(context.Background(), req)
	if !errors.Is(err, ErrToolRoundsExceeded) {
		t.Fatalf("expected ErrToolRoundsExceeded, got %v", err)
	}
	if srv.callCount() != 3 {
		t.Errorf("expected 3 provider calls before the cap, got %d", srv.callCount())
	}
}

func TestCompletionsStreamVendorSearchPayload(t *testing.T) {
	event := `{"id":"1","object":"chat.completion.chunk","created":1,"model":"glm-4",` +
		`"choices":[{"index":0,"delta":{"content":"answer [ref_1]"}}],` +
		`"web_search":[{"title":"Doc","link":"https://example.com/doc"}]}`
	srv := &chatServer{replies: []string{sseBody(event)}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	adapter := NewOpenAIAdapter(Config{Provider: "zhipu", APIKey: "test", BaseURL: ts.URL})

	var info json.RawMessage
	var text strings.Builder
	req := streamingRequest("search it")
	req.Tools = nil
	req.OnChunk = func(c Chunk) {
		text.WriteString(c.Text)
		if c.WebSearchInfo != nil {
			info = c.WebSearchInfo
		}
	}

	if err := adapter.Completions(context.Background(), req); err != nil {
		t.Fatalf("Completions failed: %v", err)
	}
	if srv.callCount() != 1 {
		t.Fatalf("expected a single provider call, got %d", srv.callCount())
	}
	if info == nil {
		t.Fatal("vendor web_search payload lost in streaming")
	}
	if !strings.Contains(string(info), "example.com/doc") {
		t.Errorf("payload content lost: %s", info)
	}
	if text.String() != "answer [ref_1]" {
		t.Errorf("delta text lost: %q", text.String())
	}
}

func TestVendorPayloadChunk(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, c *Chunk)
	}{
		{
			name: "zhipu web_search",
			raw:  `{"choices":[],"web_search":[{"title":"t","link":"https://a"}]}`,
			check: func(t *testing.T, c *Chunk) {
				if c == nil || !strings.Contains(string(c.WebSearchInfo), "https://a") {
					t.Errorf("web_search not extracted: %+v", c)
				}
			},
		},
		{
			name: "hunyuan search_info",
			raw:  `{"choices":[],"search_info":{"search_results":[{"index":1,"url":"https://b"}]}}`,
			check: func(t *testing.T, c *Chunk) {
				if c == nil || !strings.Contains(string(c.WebSearchInfo), "https://b") {
					t.Errorf("search_results not extracted: %+v", c)
				}
			},
		},
		{
			name: "citations",
			raw:  `{"choices":[],"citations":["https://c","https://d"]}`,
			check: func(t *testing.T, c *Chunk) {
				if c == nil || len(c.Citations) != 2 || c.Citations[0] != "https://c" {
					t.Errorf("citations not extracted: %+v", c)
				}
			},
		},
		{
			name: "delta annotations",
			raw:  `{"choices":[{"index":0,"delta":{"annotations":[{"type":"url_citation"}]}}]}`,
			check: func(t *testing.T, c *Chunk) {
				if c == nil || !strings.Contains(string(c.Annotations), "url_citation") {
					t.Errorf("annotations not extracted: %+v", c)
				}
			},
		},
		{
			name: "plain delta",
			raw:  `{"choices":[{"index":0,"delta":{"content":"hi"}}]}`,
			check: func(t *testing.T, c *Chunk) {
				if c != nil {
					t.Errorf("expected nil for a plain chunk, got %+v", c)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, vendorPayloadChunk([]byte(tt.raw)))
		})
	}
}
