package embeddings

import (
	"strings"

	"github.com/Benny93/fanout-go/internal/graph"
)

// searchBodyLimit bounds how much body text goes into a search document.
const searchBodyLimit = 2000

// SearchText generates the text indexed for full-text search over a
// content node: title, excerpt and the head of the body.
func SearchText(node *graph.ContentNode) string {
	if node == nil {
		return ""
	}

	parts := make([]string, 0, 3)
	if node.Title != "" {
		parts = append(parts, node.Title)
	}
	if node.ExcerptText != "" {
		parts = append(parts, node.ExcerptText)
	}
	if node.BodyText != "" {
		body := []rune(node.BodyText)
		if len(body) > searchBodyLimit {
			body = body[:searchBodyLimit]
		}
		parts = append(parts, string(body))
	}

	return strings.Join(parts, ". ")
}

// Tokenize splits text into the lowercase terms used by the vectorizer,
// with the default stopwords removed.
func Tokenize(text string) []string {
	return defaultTokenizer.tokens(text)
}

var defaultTokenizer = NewVectorizer()
