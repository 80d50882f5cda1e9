// Package analysis computes structural metrics and topical clusters over
// a built content graph. It only reads the graph.
package analysis

import (
	"strings"
)

// Depth bonuses, in tenths of a point.
const (
	bonusWords2000 = 3
	bonusWords1000 = 2
	bonusWords500  = 1
	bonusHeadings  = 2
	bonusSubheads  = 1
	bonusMedia     = 1
	bonusLists     = 1
	bonusSchema    = 2
	maxDepthTenths = 10
	headingMinimum = 3
	subheadMinimum = 5
)

// DepthScore rates how structurally rich a piece of content is, in
// [0, 1]. markup is the raw body and wordCount the number of words in
// its normalized text.
func DepthScore(markup string, wordCount int) float64 {
	tenths := wordBonus(wordCount)

	if strings.Count(markup, "<h2")+strings.Count(markup, "## ") > headingMinimum {
		tenths += bonusHeadings
	}
	if strings.Count(markup, "<h3")+strings.Count(markup, "### ") > subheadMinimum {
		tenths += bonusSubheads
	}
	if strings.Contains(markup, "<img") || strings.Contains(markup, "[gallery") {
		tenths += bonusMedia
	}
	if strings.Contains(markup, "<ul") || strings.Contains(markup, "<ol") || hasListLine(markup) {
		tenths += bonusLists
	}
	if strings.Contains(markup, "itemtype") || strings.Contains(markup, "@type") {
		tenths += bonusSchema
	}

	if tenths > maxDepthTenths {
		tenths = maxDepthTenths
	}
	return float64(tenths) / 10
}

// wordBonus returns the single word-count tier that applies.
func wordBonus(words int) int {
	switch {
	case words > 2000:
		return bonusWords2000
	case words > 1000:
		return bonusWords1000
	case words > 500:
		return bonusWords500
	}
	return 0
}

// hasListLine reports whether any line starts with a "- " bullet after
// indentation.
func hasListLine(markup string) bool {
	for _, line := range strings.Split(markup, "\n") {
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), "- ") {
			return true
		}
	}
	return false
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
