// Search-decision parsing.
//
// In enhanced mode the model classifies whether a web search is needed. Its
// answer embeds the decision in XML-style tags:
//
//	<question>reformulated search query, or not_needed</question>
//	<links>one URL per line</links>
//
// Either tag may be absent. Malformed answers degrade to "no decision",
// which callers treat as searching with the raw user text.

package websearch

import (
	"strings"

	"github.com/richinex/relay/internal/textparse"
)

// NotNeeded is the sentinel question value meaning no search should happen.
const NotNeeded = "not_needed"

// Decision is the parsed outcome of the search-classification call.
type Decision struct {
	// Question is the reformulated query, or NotNeeded.
	Question string
	// Links are page URLs to fetch directly instead of searching.
	Links []string
}

// NotNeeded reports whether augmentation should be skipped entirely.
func (d Decision) NotNeeded() bool {
	return strings.EqualFold(d.Question, NotNeeded)
}

// ExtractDecision parses the classification text. Text without any
// recognized tag yields a zero Decision.
func ExtractDecision(text string) Decision {
	var d Decision
	if q, ok := textparse.TagContent(text, "question"); ok {
		d.Question = q
	}
	if links, ok := textparse.TagContent(text, "links"); ok {
		for _, line := range textparse.Lines(links) {
			if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
				d.Links = append(d.Links, line)
			}
		}
	}
	return d
}
