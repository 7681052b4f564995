// Package textparse provides extraction utilities for parsing LLM output.
//
// Models embed structured payloads in free text: XML-style tags for search
// decisions, fenced code blocks, and tool-use blocks. This package pulls
// those payloads out without requiring the surrounding text to be well
// formed.
package textparse

import "strings"

// TagContent returns the text between <tag> and </tag>, trimmed.
// Only the first occurrence is considered.
func TagContent(text, tag string) (string, bool) {
	open := "<" + tag + ">"
	close := "</" + tag + ">"

	start := strings.Index(text, open)
	if start == -1 {
		return "", false
	}
	rest := text[start+len(open):]

	end := strings.Index(rest, close)
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// Blocks returns the trimmed contents of every <tag>...</tag> block, in order.
func Blocks(text, tag string) []string {
	open := "<" + tag + ">"
	close := "</" + tag + ">"

	var blocks []string
	for {
		start := strings.Index(text, open)
		if start == -1 {
			return blocks
		}
		text = text[start+len(open):]

		end := strings.Index(text, close)
		if end == -1 {
			return blocks
		}
		blocks = append(blocks, strings.TrimSpace(text[:end]))
		text = text[end+len(close):]
	}
}

// StripCodeFences removes a surrounding markdown code fence, with or without
// a language marker. Text without a fence is returned unchanged (trimmed).
func StripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	// Drop a language marker on the opening fence line
	if idx := strings.Index(trimmed, "\n"); idx != -1 {
		first := strings.TrimSpace(trimmed[:idx])
		if first != "" && !strings.ContainsAny(first, "{[<") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// Lines splits text into non-empty trimmed lines.
func Lines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
