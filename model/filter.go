// Message filters - pure functions that select the history window sent to a model.
//
// Filters never fail: an empty input yields an empty output, and ordering is
// always preserved.

package model

import "strings"

// FilterContextMessages returns at most contextCount+2 trailing messages.
// The +2 keeps the in-flight user/assistant pair on top of the configured
// context window.
func FilterContextMessages(messages []Message, contextCount int) []Message {
	limit := contextCount + 2
	if limit <= 0 || len(messages) <= limit {
		return messages
	}
	return messages[len(messages)-limit:]
}

// FilterEmptyMessages drops messages whose content is empty or whitespace-only
// and that carry no file attachments.
func FilterEmptyMessages(messages []Message) []Message {
	result := make([]Message, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Content) == "" && len(m.Files) == 0 {
			continue
		}
		result = append(result, m)
	}
	return result
}

// FilterUserRoleStartMessages drops leading messages until the first
// user-role message, so the sequence sent to a vendor starts with a user turn.
func FilterUserRoleStartMessages(messages []Message) []Message {
	for i, m := range messages {
		if m.Role == RoleUser {
			return messages[i:]
		}
	}
	return nil
}

// FilterMessages applies the standard filter chain: trailing-window trim,
// empty-message removal, then user-role-start enforcement.
func FilterMessages(messages []Message, contextCount int) []Message {
	return FilterUserRoleStartMessages(
		FilterEmptyMessages(
			FilterContextMessages(messages, contextCount)))
}

// LastUserMessage returns the last user-role message, or nil.
func LastUserMessage(messages []Message) *Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return &messages[i]
		}
	}
	return nil
}

// LastAssistantMessage returns the last assistant-role message, or nil.
func LastAssistantMessage(messages []Message) *Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleAssistant {
			return &messages[i]
		}
	}
	return nil
}
