// Package graph provides the content graph data model for fanout.
//
// It defines the node kinds that represent site content (posts, pages)
// and taxonomy (categories, tags), and the typed edges between them
// (internal links, category and tag membership).
package graph

// NodeKind represents the type of a graph node.
type NodeKind string

const (
	KindPost     NodeKind = "post"
	KindPage     NodeKind = "page"
	KindCategory NodeKind = "category"
	KindTag      NodeKind = "tag"
)

// IsContent reports whether the kind is a post or page.
func (k NodeKind) IsContent() bool {
	return k == KindPost || k == KindPage
}

// EdgeKind represents the type of relationship between graph nodes.
type EdgeKind string

const (
	EdgeInternalLink  EdgeKind = "internal_link"
	EdgeCategorizedAs EdgeKind = "categorized_as"
	EdgeTaggedAs      EdgeKind = "tagged_as"
)

// TaxonomyRef is a reference from a post to a category or tag.
// Structured API sources reference taxonomy by numeric ID, scraped
// sources by display name.
type TaxonomyRef struct {
	// ID is the native numeric identifier. Only meaningful when ByName is false.
	ID int64 `json:"id,omitempty"`

	// Name is the display name used for case-insensitive lookup.
	Name string `json:"name,omitempty"`

	// ByName is true when the reference carries a name instead of an ID.
	ByName bool `json:"by_name,omitempty"`
}

// ContentNode represents a post or page.
type ContentNode struct {
	// ID is unique within a run. Pages are prefixed with "page_".
	ID string `json:"id"`

	Kind  NodeKind `json:"kind"`
	Title string   `json:"title"`

	// URL is the canonical absolute URL, used as the cross-reference key
	// for internal links.
	URL string `json:"url"`

	// RawBody is the body markup as delivered by the source.
	RawBody string `json:"raw_body,omitempty"`

	// BodyText is RawBody with markup stripped and whitespace collapsed.
	BodyText string `json:"body_text"`

	ExcerptText  string        `json:"excerpt_text,omitempty"`
	CategoryRefs []TaxonomyRef `json:"category_refs,omitempty"`
	TagRefs      []TaxonomyRef `json:"tag_refs,omitempty"`
	PublishedAt  string        `json:"published_at,omitempty"`

	// ParentID is set for pages with a parent page.
	ParentID string `json:"parent_id,omitempty"`
}

// TaxonomyNode represents a category or tag.
type TaxonomyNode struct {
	// ID is "cat_<id>" or "tag_<id>"; sitemap-derived items use a
	// synthesized numeric id that is stable for a given URL.
	ID   string   `json:"id"`
	Kind NodeKind `json:"kind"`
	Name string   `json:"name"`
	Slug string   `json:"slug"`

	// SourceURL is set when the node was derived from a sitemap URL.
	SourceURL string `json:"source_url,omitempty"`
}

// Edge is a directed, typed relationship between two node IDs.
type Edge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Kind   EdgeKind `json:"kind"`
}

// Key returns the identity of the edge. The graph holds at most one
// edge per key.
func (e Edge) Key() string {
	return e.Source + "|" + string(e.Kind) + "|" + e.Target
}

// SampleItem is the compact view of a content node handed to external
// query-pattern analyzers.
type SampleItem struct {
	Title   string `json:"title"`
	Type    string `json:"type"`
	Excerpt string `json:"excerpt"`
	URL     string `json:"url"`
}

// SampleExcerptLimit is the maximum number of runes kept from an excerpt
// in a SampleItem.
const SampleExcerptLimit = 200
