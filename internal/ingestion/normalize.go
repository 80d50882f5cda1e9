package ingestion

import (
	"regexp"
	"strings"
)

// markupPattern matches one tag, non-greedily, across line breaks.
var markupPattern = regexp.MustCompile(`(?s)<.*?>`)

// NormalizeText strips markup tags, collapses whitespace runs to a single
// space and trims the result. A "<" without a closing ">" is kept as text.
func NormalizeText(raw string) string {
	if raw == "" {
		return ""
	}
	text := markupPattern.ReplaceAllString(raw, "")
	return strings.Join(strings.Fields(text), " ")
}
