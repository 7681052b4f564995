// Tool-call resolution - detects tool invocations encoded in model output
// text and executes them against the external tool servers.
//
// The textual convention is provider-agnostic: the system prompt instructs
// the model to emit
//
//	<tool_use>
//	{"name": "<tool name>", "arguments": {...}}
//	</tool_use>
//
// blocks. The adapters own the round loop and use ParseAndCallTools as its
// step function: a non-empty return means another round is required.

package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/richinex/relay/internal/textparse"
	"github.com/richinex/relay/model"
)

// ToolInvocation is one parsed tool call from model output.
type ToolInvocation struct {
	Tool      model.MCPTool
	Arguments json.RawMessage
}

// ParseToolUses extracts tool invocations from model output text. Blocks
// naming a tool that is not in the available list are ignored, as are
// blocks whose payload is not valid JSON.
func ParseToolUses(content string, tools []model.MCPTool) []ToolInvocation {
	if len(tools) == 0 {
		return nil
	}

	var invocations []ToolInvocation
	for _, block := range textparse.Blocks(content, "tool_use") {
		block = textparse.StripCodeFences(block)
		if !gjson.Valid(block) {
			continue
		}

		name := gjson.Get(block, "name").String()
		if name == "" {
			continue
		}
		tool, ok := findTool(tools, name)
		if !ok {
			continue
		}

		args := json.RawMessage(`{}`)
		if raw := gjson.Get(block, "arguments").Raw; raw != "" {
			args = json.RawMessage(raw)
		}
		invocations = append(invocations, ToolInvocation{Tool: tool, Arguments: args})
	}
	return invocations
}

func findTool(tools []model.MCPTool, name string) (model.MCPTool, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return model.MCPTool{}, false
}

// ResultConverter turns a finished tool response into the vendor's expected
// follow-up message shape. The vision flag lets converters include image
// payloads only for vision-capable models.
type ResultConverter[M any] func(resp model.ToolResponse, vision bool) M

// ParseAndCallTools parses tool invocations out of one round's output text,
// executes each against caller, appends results to the shared accumulator,
// emits progress through onChunk, and returns the vendor follow-up
// messages. A tool execution error becomes a ToolError response entry, not
// a returned error - the loop continues so the model can react.
func ParseAndCallTools[M any](
	ctx context.Context,
	content string,
	acc *[]model.ToolResponse,
	onChunk OnChunk,
	convert ResultConverter[M],
	tools []model.MCPTool,
	vision bool,
	caller ToolCaller,
) []M {
	invocations := ParseToolUses(content, tools)
	if len(invocations) == 0 || caller == nil {
		return nil
	}

	var followUps []M
	for _, inv := range invocations {
		resp := model.ToolResponse{
			ID:        uuid.NewString(),
			Tool:      inv.Tool,
			Arguments: inv.Arguments,
			Status:    model.ToolInvoking,
		}
		*acc = append(*acc, resp)
		emitToolResponses(onChunk, *acc)

		out, err := caller.CallTool(ctx, inv.Tool, inv.Arguments)
		if err != nil {
			resp.Status = model.ToolError
			resp.Response = fmt.Sprintf("tool %q failed: %v", inv.Tool.Name, err)
		} else {
			resp.Status = model.ToolDone
			resp.Response = out
		}
		(*acc)[len(*acc)-1] = resp
		emitToolResponses(onChunk, *acc)

		followUps = append(followUps, convert(resp, vision))
	}
	return followUps
}

func emitToolResponses(onChunk OnChunk, acc []model.ToolResponse) {
	if onChunk == nil {
		return
	}
	snapshot := make([]model.ToolResponse, len(acc))
	copy(snapshot, acc)
	onChunk(Chunk{ToolResponses: snapshot})
}
