package ingestion

import (
	"hash/fnv"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Benny93/fanout-go/internal/graph"
)

// SyntheticIDModulus bounds identifiers synthesized from URLs.
const SyntheticIDModulus = 1_000_000_000

// SynthesizeID derives a numeric identifier from a URL for sources that
// carry none. It is FNV-1a 64 of the URL bytes reduced modulo
// SyntheticIDModulus, so the same URL always yields the same ID.
func SynthesizeID(url string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(url))
	return int64(h.Sum64() % SyntheticIDModulus)
}

// PageNodeID returns the graph ID of a page.
func PageNodeID(nativeID string) string {
	return "page_" + nativeID
}

// TaxonomyNodeID returns the graph ID of a category or tag.
func TaxonomyNodeID(kind graph.NodeKind, nativeID string) string {
	if kind == graph.KindTag {
		return "tag_" + nativeID
	}
	return "cat_" + nativeID
}

// SyntheticTaxonomyNodeID returns the graph ID of a sitemap-derived
// category or tag.
func SyntheticTaxonomyNodeID(kind graph.NodeKind, url string) string {
	return TaxonomyNodeID(kind, strconv.FormatInt(SynthesizeID(url), 10))
}

// TaxonomyNameFromURL derives a display name and slug from the last
// non-empty path segment: "/category/seo-tips/" gives "Seo Tips" and
// "seo-tips".
func TaxonomyNameFromURL(url string) (name, slug string) {
	trimmed := strings.TrimRight(url, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		slug = trimmed[idx+1:]
	} else {
		slug = trimmed
	}
	name = cases.Title(language.Und).String(strings.ReplaceAll(slug, "-", " "))
	return name, slug
}
