// Vendor-specific link/citation post-processing.
//
// Each provider family with web search marks inline citations differently,
// and the formats are genuinely incompatible, so each family gets its own
// strategy rather than one generic transform:
//
//   - openai search models:  ([title](url))        — parenthesized markdown link
//   - openrouter:            [title](url)          — bare markdown link
//   - zhipu:                 [ref_N] or 【ref_N】   — numbered reference marker
//   - hunyuan:               [N](@ref)             — numbered @ref marker
//
// All strategies normalize to [<sup>N</sup>](url) citation markdown. Because
// markers can be split across streamed chunks, the Converter buffers a
// trailing partial marker and releases it once completed or flushed.

package chat

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/richinex/relay/model"
)

var (
	reOpenAILink   = regexp.MustCompile(`\(\[([^\[\]]*)\]\((https?://[^()\s]+)\)\)`)
	reMarkdownLink = regexp.MustCompile(`\[([^\[\]]*)\]\((https?://[^()\s]+)\)`)
	reZhipuRef     = regexp.MustCompile(`【ref_(\d+)】|\[ref_(\d+)\]`)
	reHunyuanRef   = regexp.MustCompile(`\[(\d+)\]\(@ref\)`)
	reBareSup      = regexp.MustCompile(`\[<sup>(\d+)</sup>\]([^(]|$)`)
	reLinkComma    = regexp.MustCompile(`\)\s*,\s*\[`)
)

// Converter rewrites one family's inline link markers into citation
// markdown as text streams in. Not safe for concurrent use; one completion
// owns one converter.
type Converter struct {
	family string
	// urls returns the vendor-reported search result URLs, looked up lazily
	// because the payload may arrive after the first text chunks.
	urls func() []string
	seen map[string]int
	tail string
}

const (
	familyOpenAI     = "openai"
	familyOpenRouter = "openrouter"
	familyZhipu      = "zhipu"
	familyHunyuan    = "hunyuan"
)

// ConverterFor picks the strategy for the assistant's model, or nil when no
// link conversion applies.
func ConverterFor(m *model.Model, enableWebSearch bool, urls func() []string) *Converter {
	if m == nil {
		return nil
	}

	var family string
	switch {
	case m.Provider == "openai" && m.HasNativeWebSearch():
		family = familyOpenAI
	case m.Provider == "openrouter" && enableWebSearch:
		family = familyOpenRouter
	case enableWebSearch && m.IsZhipu():
		family = familyZhipu
	case enableWebSearch && m.IsHunyuanSearch():
		family = familyHunyuan
	default:
		return nil
	}

	return &Converter{family: family, urls: urls, seen: make(map[string]int)}
}

// Convert rewrites the markers in chunk, holding back a trailing partial
// marker until a later chunk completes it.
func (c *Converter) Convert(chunk string) string {
	buf := c.tail + chunk
	ready, tail := splitAtPartialMarker(buf)
	c.tail = tail
	return c.rewrite(ready)
}

// Flush releases any buffered partial marker unconverted.
func (c *Converter) Flush() string {
	out := c.rewrite(c.tail)
	c.tail = ""
	return out
}

func (c *Converter) rewrite(text string) string {
	if text == "" {
		return text
	}
	switch c.family {
	case familyOpenAI:
		return reOpenAILink.ReplaceAllStringFunc(text, func(match string) string {
			parts := reOpenAILink.FindStringSubmatch(match)
			return c.sup(parts[2])
		})
	case familyOpenRouter:
		return reMarkdownLink.ReplaceAllStringFunc(text, func(match string) string {
			parts := reMarkdownLink.FindStringSubmatch(match)
			if strings.HasPrefix(parts[1], "<sup>") {
				return match
			}
			return c.sup(parts[2])
		})
	case familyZhipu:
		return reZhipuRef.ReplaceAllStringFunc(text, func(match string) string {
			parts := reZhipuRef.FindStringSubmatch(match)
			n := parts[1]
			if n == "" {
				n = parts[2]
			}
			return "[<sup>" + n + "</sup>]"
		})
	case familyHunyuan:
		return reHunyuanRef.ReplaceAllStringFunc(text, func(match string) string {
			parts := reHunyuanRef.FindStringSubmatch(match)
			n, _ := strconv.Atoi(parts[1])
			var resolved []string
			if c.urls != nil {
				resolved = c.urls()
			}
			if n >= 1 && n <= len(resolved) {
				return fmt.Sprintf("[<sup>%d</sup>](%s)", n, resolved[n-1])
			}
			return "[<sup>" + parts[1] + "</sup>]"
		})
	}
	return text
}

// sup assigns a stable citation number per unique URL, in order of first
// appearance.
func (c *Converter) sup(url string) string {
	n, ok := c.seen[url]
	if !ok {
		n = len(c.seen) + 1
		c.seen[url] = n
	}
	return fmt.Sprintf("[<sup>%d</sup>](%s)", n, url)
}

// splitAtPartialMarker cuts text before the earliest unclosed bracket so a
// marker split across chunks is not rewritten half-formed.
func splitAtPartialMarker(text string) (ready, tail string) {
	type opening struct {
		pos int
		r   rune
	}
	openerFor := map[rune]rune{')': '(', ']': '[', '】': '【'}
	var stack []opening

	for i, r := range text {
		switch r {
		case '(', '[', '【':
			stack = append(stack, opening{i, r})
		case ')', ']', '】':
			if len(stack) > 0 && stack[len(stack)-1].r == openerFor[r] {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if len(stack) == 0 {
		return text, ""
	}
	cut := stack[0].pos
	return text[:cut], text[cut:]
}

// CleanLinkCommas removes commas between adjacent citation links so
// ")  , [" renders as ")[".
func CleanLinkCommas(text string) string {
	return reLinkComma.ReplaceAllString(text, ")[")
}

// CompleteLinks attaches result URLs to bare [<sup>N</sup>] citations left
// by the zhipu strategy, once the vendor search payload is known.
func CompleteLinks(text string, urls []string) string {
	return reBareSup.ReplaceAllStringFunc(text, func(match string) string {
		parts := reBareSup.FindStringSubmatch(match)
		n, _ := strconv.Atoi(parts[1])
		if n >= 1 && n <= len(urls) {
			return fmt.Sprintf("[<sup>%d</sup>](%s)%s", n, urls[n-1], parts[2])
		}
		return match
	})
}

// ExtractURLsFromMarkdown returns the unique link targets in text, in order
// of first appearance. Used to surface openrouter citations.
func ExtractURLsFromMarkdown(text string) []string {
	var urls []string
	seen := make(map[string]bool)
	for _, match := range reMarkdownLink.FindAllStringSubmatch(text, -1) {
		u := match[2]
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	return urls
}
