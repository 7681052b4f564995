// Helpers shared by all vendor adapters: prompt assembly for the summary
// capabilities, attachment folding, and sampling parameter policy.

package llm

import (
	"strings"
	"time"

	"github.com/richinex/relay/model"
)

// summaryTimeout bounds the SummaryForSearch sub-call.
const summaryTimeout = 20 * time.Second

// checkProbeContent is the minimal probe sent by Check.
const checkProbeContent = "hi"

// summaryWindow is how many trailing messages feed a conversation title.
const summaryWindow = 5

// SummaryPrompt builds the user prompt for conversation naming: at most the
// last 5 messages, a leading assistant-authored message dropped so the
// prompt always begins with a user line, concatenated as "User: ..." /
// "Assistant: ..." lines.
func SummaryPrompt(messages []model.Message) string {
	if len(messages) > summaryWindow {
		messages = messages[len(messages)-summaryWindow:]
	}
	if len(messages) > 0 && messages[0].Role == model.RoleAssistant {
		messages = messages[1:]
	}

	var b strings.Builder
	for _, m := range messages {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		switch m.Role {
		case model.RoleUser:
			b.WriteString("User: ")
		case model.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			continue
		}
		b.WriteString(m.Content)
	}
	return b.String()
}

// joinedContent concatenates message contents for the search-summary call,
// which sends the conversation as one user turn.
func joinedContent(messages []model.Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}

// messageText folds text and document attachments into the message content.
// Image attachments are handled per vendor.
func messageText(m model.Message) string {
	text := m.Content
	for _, f := range m.Files {
		if f.Type == model.FileTypeText || f.Type == model.FileTypeDocument {
			text += "\n" + f.Name + "\n" + strings.TrimSpace(f.Content)
		}
	}
	return text
}

// imageFiles returns the image attachments of a message.
func imageFiles(m model.Message) []model.File {
	var images []model.File
	for _, f := range m.Files {
		if f.Type == model.FileTypeImage {
			images = append(images, f)
		}
	}
	return images
}

// samplingTemperature returns the temperature to send, or nil. Reasoning
// models suppress temperature entirely.
func samplingTemperature(assistant model.Assistant, m model.Model) *float64 {
	if m.IsReasoning() {
		return nil
	}
	return assistant.Settings.Temperature
}

// samplingTopP returns the top-p to send, or nil. Reasoning models suppress
// top-p entirely.
func samplingTopP(assistant model.Assistant, m model.Model) *float64 {
	if m.IsReasoning() {
		return nil
	}
	return assistant.Settings.TopP
}

// maxTokensOrDefault returns the assistant token budget, defaulted.
func maxTokensOrDefault(assistant model.Assistant) int {
	if assistant.Settings.MaxTokens > 0 {
		return assistant.Settings.MaxTokens
	}
	return DefaultMaxTokens
}

// resolveModel returns the assistant model or the adapter default.
func resolveModel(assistant model.Assistant, fallback model.Model) model.Model {
	if assistant.Model != nil {
		return *assistant.Model
	}
	return fallback
}
