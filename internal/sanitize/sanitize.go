// Package sanitize turns user-generated rich text into plain text safe to
// embed in activity feeds. The web editor stores comments as HTML; feeds
// show them as text, so every tag is stripped rather than filtered.
package sanitize

import (
	"html"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// policy is the singleton strict bluemonday policy. Initialized once via
// sync.Once for thread-safe lazy initialization.
var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

// getPolicy returns the shared policy, initializing it on first call.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		// StrictPolicy removes every element and attribute, keeping only text.
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Text strips all markup from input, decodes entities and collapses runs of
// whitespace into single spaces.
func Text(input string) string {
	if input == "" {
		return ""
	}
	// Block-level closers would otherwise glue adjacent paragraphs together.
	spaced := strings.NewReplacer("</p>", "</p> ", "<br>", " ", "<br/>", " ", "<br />", " ", "</li>", "</li> ").Replace(input)
	stripped := html.UnescapeString(getPolicy().Sanitize(spaced))
	return strings.Join(strings.Fields(stripped), " ")
}

// Truncate shortens s to at most max runes, ending with an ellipsis when cut.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}
