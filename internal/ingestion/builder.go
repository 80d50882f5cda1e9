package ingestion

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/Benny93/fanout-go/internal/graph"
)

// BuildStats summarizes one Build call.
type BuildStats struct {
	Posts         int `json:"posts"`
	Pages         int `json:"pages"`
	Categories    int `json:"categories"`
	Tags          int `json:"tags"`
	Skipped       int `json:"skipped"`
	InternalLinks int `json:"internal_links"`
	TaxonomyEdges int `json:"taxonomy_edges"`
}

// Builder constructs a content graph from a RawContentBundle.
//
// Construction runs in four phases: content nodes (posts, then pages),
// internal-link edges, taxonomy nodes (categories, then tags) and
// taxonomy edges. Malformed items are logged and skipped; only a
// structurally broken bundle aborts the build.
type Builder struct {
	siteURL     string
	linkPattern *regexp.Regexp
	logger      *zap.Logger
	stats       BuildStats

	// corruptRefs holds taxonomy containers that could not be read. They
	// abort the taxonomy phase.
	corruptRefs []error
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger used for per-item warnings.
func WithLogger(logger *zap.Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder creates a builder for the site at siteURL. Internal links are
// absolute URLs under siteURL.
func NewBuilder(siteURL string, opts ...BuilderOption) *Builder {
	base := strings.TrimRight(siteURL, "/")
	b := &Builder{
		siteURL:     base,
		linkPattern: regexp.MustCompile(regexp.QuoteMeta(base) + `/[^"'<>\s]+`),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Stats returns the statistics of the last Build call.
func (b *Builder) Stats() BuildStats {
	return b.stats
}

// Build constructs a fresh graph from the bundle.
func (b *Builder) Build(bundle *RawContentBundle) (*graph.ContentGraph, error) {
	b.stats = BuildStats{}
	b.corruptRefs = nil

	if bundle == nil {
		return nil, &PhaseError{Phase: PhaseIngest, Err: fmt.Errorf("%w: bundle is nil", ErrMalformedBundle)}
	}

	b.logger.Info("building content graph",
		zap.String("site", b.siteURL),
		zap.Int("posts", len(bundle.Posts)),
		zap.Int("pages", len(bundle.Pages)),
	)

	g := graph.NewContentGraph()

	b.addContentNodes(g, bundle.Posts, graph.KindPost)
	b.addContentNodes(g, bundle.Pages, graph.KindPage)

	b.resolveInternalLinks(g)

	b.addTaxonomyNodes(g, bundle.Categories, graph.KindCategory)
	b.addTaxonomyNodes(g, bundle.Tags, graph.KindTag)

	if err := b.resolveTaxonomyEdges(g); err != nil {
		b.logger.Error("building taxonomy edges failed", zap.Error(err))
		return nil, err
	}

	b.logger.Info("content graph built",
		zap.Int("nodes", g.NodeCount()),
		zap.Int("edges", g.EdgeCount()),
		zap.Int("skipped", b.stats.Skipped),
	)

	return g, nil
}

// addContentNodes ingests one collection. Items from the posts collection
// keep their native ID; pages are prefixed to avoid collisions.
func (b *Builder) addContentNodes(g *graph.ContentGraph, items []Item, listKind graph.NodeKind) {
	for i, item := range items {
		node, err := b.contentFromItem(item, listKind)
		if err != nil {
			b.stats.Skipped++
			b.logger.Warn("skipping content item",
				zap.String("collection", string(listKind)),
				zap.Int("index", i),
				zap.Any("id", itemID(item)),
				zap.Error(err),
			)
			continue
		}

		g.AddContent(node)
		if listKind == graph.KindPost {
			b.stats.Posts++
		} else {
			b.stats.Pages++
		}
	}
}

func (b *Builder) contentFromItem(item Item, listKind graph.NodeKind) (*graph.ContentNode, error) {
	if item == nil {
		return nil, errors.New("item is not an object")
	}

	id, ok := nativeID(item["id"])
	if !ok {
		return nil, errors.New("missing id")
	}

	title, err := textField(item, "title")
	if err != nil {
		return nil, err
	}
	body, err := textField(item, "content")
	if err != nil {
		return nil, err
	}
	excerpt, err := textField(item, "excerpt")
	if err != nil {
		return nil, err
	}
	link, err := stringField(item, "link")
	if err != nil {
		return nil, err
	}
	date, err := stringField(item, "date")
	if err != nil {
		return nil, err
	}

	node := &graph.ContentNode{
		ID:          id,
		Kind:        contentKind(item, listKind),
		Title:       title,
		URL:         link,
		RawBody:     body,
		BodyText:    NormalizeText(body),
		ExcerptText: NormalizeText(excerpt),
		PublishedAt: date,
	}

	if listKind == graph.KindPage {
		node.ID = PageNodeID(id)
		if parent, ok := nativeID(item["parent"]); ok && parent != "0" {
			node.ParentID = PageNodeID(parent)
		}
		return node, nil
	}

	if node.CategoryRefs, err = parseRefs(item["categories"]); err != nil {
		b.recordCorruptRefs(node, "categories", err)
	}
	if node.TagRefs, err = parseRefs(item["tags"]); err != nil {
		b.recordCorruptRefs(node, "tags", err)
	}

	return node, nil
}

// recordCorruptRefs defers a broken taxonomy container to the taxonomy
// phase. Only posts are connected to taxonomy, so pages are exempt. A
// string or object container only drops that post's references.
func (b *Builder) recordCorruptRefs(node *graph.ContentNode, field string, err error) {
	if node.Kind != graph.KindPost {
		return
	}
	if errors.Is(err, errIgnoredContainer) {
		b.logger.Warn("ignoring taxonomy references",
			zap.String("id", node.ID),
			zap.String("field", field),
			zap.Error(err),
		)
		return
	}
	b.corruptRefs = append(b.corruptRefs, fmt.Errorf("%w: post %s %s: %v", ErrMalformedBundle, node.ID, field, err))
}

// contentKind honors an explicit "post"/"page" type, which scraped
// sources set; otherwise the collection decides.
func contentKind(item Item, listKind graph.NodeKind) graph.NodeKind {
	switch t, _ := item["type"].(string); t {
	case string(graph.KindPost):
		return graph.KindPost
	case string(graph.KindPage):
		return graph.KindPage
	}
	return listKind
}

// resolveInternalLinks adds an edge for every absolute site URL in a
// node's markup or text that equals another node's URL exactly.
func (b *Builder) resolveInternalLinks(g *graph.ContentGraph) {
	for _, node := range g.ContentNodes() {
		if node.RawBody == "" {
			continue
		}

		// Markup finds attribute URLs, the normalized text finds bare ones.
		links := b.linkPattern.FindAllString(node.RawBody, -1)
		links = append(links, b.linkPattern.FindAllString(node.BodyText, -1)...)
		for _, link := range links {
			target, found := g.FindContentByURL(link)
			if !found {
				continue
			}
			if g.AddEdge(graph.Edge{Source: node.ID, Target: target.ID, Kind: graph.EdgeInternalLink}) {
				b.stats.InternalLinks++
			}
		}
	}
}

func (b *Builder) addTaxonomyNodes(g *graph.ContentGraph, items []Item, kind graph.NodeKind) {
	for i, item := range items {
		node, err := taxonomyFromItem(item, kind)
		if err != nil {
			b.stats.Skipped++
			b.logger.Warn("skipping taxonomy item",
				zap.String("kind", string(kind)),
				zap.Int("index", i),
				zap.Any("item", map[string]any(item)),
				zap.Error(err),
			)
			continue
		}

		g.AddTaxonomy(node)
		if kind == graph.KindCategory {
			b.stats.Categories++
		} else {
			b.stats.Tags++
		}
	}
}

func taxonomyFromItem(item Item, kind graph.NodeKind) (*graph.TaxonomyNode, error) {
	if item == nil {
		return nil, errors.New("item is not an object")
	}

	if raw, ok := item["id"]; ok {
		id, valid := nativeID(raw)
		if !valid {
			return nil, fmt.Errorf("invalid id %v", raw)
		}
		name, err := stringField(item, "name")
		if err != nil {
			return nil, err
		}
		slug, err := stringField(item, "slug")
		if err != nil {
			return nil, err
		}
		return &graph.TaxonomyNode{
			ID:   TaxonomyNodeID(kind, id),
			Kind: kind,
			Name: name,
			Slug: slug,
		}, nil
	}

	url, err := stringField(item, "url")
	if err != nil {
		return nil, err
	}
	if url == "" {
		return nil, errors.New("neither id nor url present")
	}

	name, slug := TaxonomyNameFromURL(url)
	return &graph.TaxonomyNode{
		ID:        SyntheticTaxonomyNodeID(kind, url),
		Kind:      kind,
		Name:      name,
		Slug:      slug,
		SourceURL: url,
	}, nil
}

// resolveTaxonomyEdges connects posts to their categories and tags.
// References to absent nodes are dropped.
func (b *Builder) resolveTaxonomyEdges(g *graph.ContentGraph) error {
	if len(b.corruptRefs) > 0 {
		return &PhaseError{Phase: PhaseTaxonomyEdges, Err: errors.Join(b.corruptRefs...)}
	}

	for _, node := range g.ContentNodes() {
		if node.Kind != graph.KindPost {
			continue
		}
		b.connect(g, node, node.CategoryRefs, graph.KindCategory, graph.EdgeCategorizedAs)
		b.connect(g, node, node.TagRefs, graph.KindTag, graph.EdgeTaggedAs)
	}
	return nil
}

func (b *Builder) connect(g *graph.ContentGraph, node *graph.ContentNode, refs []graph.TaxonomyRef, kind graph.NodeKind, edgeKind graph.EdgeKind) {
	for _, ref := range refs {
		var targetID string
		if ref.ByName {
			target, found := g.FindTaxonomyByName(kind, ref.Name)
			if !found {
				continue
			}
			targetID = target.ID
		} else {
			targetID = TaxonomyNodeID(kind, fmt.Sprint(ref.ID))
		}

		if g.Taxonomy(targetID) == nil {
			continue
		}
		if g.AddEdge(graph.Edge{Source: node.ID, Target: targetID, Kind: edgeKind}) {
			b.stats.TaxonomyEdges++
		}
	}
}

func itemID(item Item) any {
	if item == nil {
		return nil
	}
	return item["id"]
}
