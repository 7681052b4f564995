// Local token usage estimation, used when the vendor reports no usage.
//
// The estimate approximates the common BPE ratio of roughly four characters
// per token. Exact counts are vendor-specific; this only needs to be close
// enough for display.

package chat

import (
	"unicode/utf8"

	"github.com/richinex/relay/model"
)

const charsPerToken = 4

func estimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + charsPerToken - 1) / charsPerToken
}

// EstimateUsage derives token usage from the sent conversation and the
// produced reply.
func EstimateUsage(sent []model.Message, reply model.Message) *model.Usage {
	prompt := 0
	for _, m := range sent {
		prompt += estimateTokens(m.Content)
	}
	completion := estimateTokens(reply.Content) + estimateTokens(reply.ReasoningContent)
	return &model.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}
