// System prompt augmentation - embeds the available tool list and the
// textual tool-use convention into the assistant system prompt.

package mcp

import (
	"encoding/json"
	"strings"

	"github.com/richinex/relay/model"
)

const toolUseInstructions = `In this environment you have access to a set of tools
you can use to answer the user's question.

To call a tool, emit a block of the following form in your answer:

<tool_use>
{"name": "tool-name", "arguments": {"argument": "value"}}
</tool_use>

The tool result will be returned to you in the next turn. Only call tools
from the list below, and only when they are needed to answer the question.

Available tools:
`

// BuildSystemPrompt appends the tool-use convention and a JSON description
// of each tool to the base prompt. With no tools the base prompt is
// returned unchanged.
func BuildSystemPrompt(base string, tools []model.MCPTool) string {
	if len(tools) == 0 {
		return base
	}

	var b strings.Builder
	b.WriteString(base)
	if base != "" {
		b.WriteString("\n\n")
	}
	b.WriteString(toolUseInstructions)

	for _, tool := range tools {
		entry := map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
		}
		if len(tool.InputSchema) > 0 {
			entry["input_schema"] = json.RawMessage(tool.InputSchema)
		}
		// Tools come from trusted marshalable types; errors cannot occur here.
		data, _ := json.Marshal(entry)
		b.Write(data)
		b.WriteByte('\n')
	}
	return b.String()
}
