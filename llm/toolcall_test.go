package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/richinex/relay/model"
)

type fakeCaller struct {
	results map[string]string
	err     error
	calls   []string
}

func (f *fakeCaller) CallTool(_ context.Context, tool model.MCPTool, args []byte) (string, error) {
	f.calls = append(f.calls, tool.Name)
	if f.err != nil {
		return "", f.err
	}
	return f.results[tool.Name], nil
}

func testTools() []model.MCPTool {
	return []model.MCPTool{
		{ServerName: "files", Name: "read_file", Description: "reads a file"},
		{ServerName: "files", Name: "list_dir", Description: "lists a directory"},
	}
}

func toolUseBlock(name, args string) string {
	return "<tool_use>\n{\"name\": \"" + name + "\", \"arguments\": " + args + "}\n</tool_use>"
}

func TestParseToolUses(t *testing.T) {
	content := "Let me check.\n" + toolUseBlock("read_file", `{"path": "/tmp/x"}`) + "\nDone."

	invocations := ParseToolUses(content, testTools())
	if len(invocations) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(invocations))
	}
	if invocations[0].Tool.Name != "read_file" {
		t.Errorf("expected read_file, got %s", invocations[0].Tool.Name)
	}

	var args map[string]any
	if err := json.Unmarshal(invocations[0].Arguments, &args); err != nil {
		t.Fatalf("arguments not valid JSON: %v", err)
	}
	if args["path"] != "/tmp/x" {
		t.Errorf("expected path /tmp/x, got %v", args["path"])
	}
}

func TestParseToolUsesMultipleBlocks(t *testing.T) {
	content := toolUseBlock("read_file", `{}`) + "\n" + toolUseBlock("list_dir", `{}`)

	invocations := ParseToolUses(content, testTools())
	if len(invocations) != 2 {
		t.Fatalf("expected 2 invocations, got %d", len(invocations))
	}
}

func TestParseToolUsesSkipsUnknownTool(t *testing.T) {
	content := toolUseBlock("delete_everything", `{}`)

	if got := ParseToolUses(content, testTools()); len(got) != 0 {
		t.Errorf("expected unknown tool to be skipped, got %d invocations", len(got))
	}
}

func TestParseToolUsesSkipsInvalidJSON(t *testing.T) {
	content := "<tool_use>\nnot json at all\n</tool_use>"

	if got := ParseToolUses(content, testTools()); len(got) != 0 {
		t.Errorf("expected invalid JSON to be skipped, got %d invocations", len(got))
	}
}

func TestParseToolUsesCodeFencedBlock(t *testing.T) {
	content := "<tool_use>\n```json\n{\"name\": \"read_file\", \"arguments\": {}}\n```\n</tool_use>"

	invocations := ParseToolUses(content, testTools())
	if len(invocations) != 1 {
		t.Fatalf("expected fenced block to parse, got %d invocations", len(invocations))
	}
}

func TestParseToolUsesNoTools(t *testing.T) {
	content := toolUseBlock("read_file", `{}`)

	if got := ParseToolUses(content, nil); got != nil {
		t.Errorf("expected nil with no tools available, got %v", got)
	}
}

func identityConverter(resp model.ToolResponse, _ bool) model.ToolResponse {
	return resp
}

func TestParseAndCallToolsSuccess(t *testing.T) {
	caller := &fakeCaller{results: map[string]string{"read_file": "file contents"}}
	content := toolUseBlock("read_file", `{"path": "/tmp/x"}`)

	var acc []model.ToolResponse
	var emitted []Chunk
	onChunk := func(c Chunk) { emitted = append(emitted, c) }

	followUps := ParseAndCallTools(context.Background(), content, &acc, onChunk,
		identityConverter, testTools(), false, caller)

	if len(followUps) != 1 {
		t.Fatalf("expected 1 follow-up, got %d", len(followUps))
	}
	if followUps[0].Status != model.ToolDone {
		t.Errorf("expected done status, got %s", followUps[0].Status)
	}
	if followUps[0].Response != "file contents" {
		t.Errorf("expected tool output, got %q", followUps[0].Response)
	}
	if len(acc) != 1 || acc[0].Status != model.ToolDone {
		t.Errorf("accumulator should hold the finished response, got %+v", acc)
	}

	// One chunk for invoking, one for done.
	if len(emitted) != 2 {
		t.Fatalf("expected 2 progress chunks, got %d", len(emitted))
	}
	if emitted[0].ToolResponses[0].Status != model.ToolInvoking {
		t.Errorf("first chunk should carry invoking status, got %s", emitted[0].ToolResponses[0].Status)
	}
	if emitted[1].ToolResponses[0].Status != model.ToolDone {
		t.Errorf("second chunk should carry done status, got %s", emitted[1].ToolResponses[0].Status)
	}
}

func TestParseAndCallToolsErrorContinues(t *testing.T) {
	caller := &fakeCaller{err: errors.New("server crashed")}
	content := toolUseBlock("read_file", `{}`)

	var acc []model.ToolResponse
	followUps := ParseAndCallTools(context.Background(), content, &acc, nil,
		identityConverter, testTools(), false, caller)

	if len(followUps) != 1 {
		t.Fatalf("expected an error follow-up, got %d", len(followUps))
	}
	if followUps[0].Status != model.ToolError {
		t.Errorf("expected error status, got %s", followUps[0].Status)
	}
	if !strings.Contains(followUps[0].Response, "server crashed") {
		t.Errorf("error text should reach the model, got %q", followUps[0].Response)
	}
}

func TestParseAndCallToolsNoInvocations(t *testing.T) {
	caller := &fakeCaller{}

	var acc []model.ToolResponse
	followUps := ParseAndCallTools(context.Background(), "plain answer", &acc, nil,
		identityConverter, testTools(), false, caller)

	if len(followUps) != 0 {
		t.Errorf("expected no follow-ups for plain text, got %d", len(followUps))
	}
	if len(caller.calls) != 0 {
		t.Errorf("caller should not run, got calls %v", caller.calls)
	}
}

func TestParseAndCallToolsNilCaller(t *testing.T) {
	content := toolUseBlock("read_file", `{}`)

	var acc []model.ToolResponse
	followUps := ParseAndCallTools(context.Background(), content, &acc, nil,
		identityConverter, testTools(), false, nil)

	if len(followUps) != 0 {
		t.Errorf("expected no follow-ups without a caller, got %d", len(followUps))
	}
}
