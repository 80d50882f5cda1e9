package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContentGraph(t *testing.T) {
	t.Parallel()

	g := NewContentGraph()

	assert.NotNil(t, g)
	assert.Equal(t, 0, g.NodeCount())
	assert.Equal(t, 0, g.EdgeCount())
	assert.Empty(t, g.ContentNodes())
}

func TestContentGraph_AddContent(t *testing.T) {
	t.Parallel()

	t.Run("AddSingle", func(t *testing.T) {
		t.Parallel()
		g := NewContentGraph()
		node := &ContentNode{ID: "1", Kind: KindPost, Title: "Hello", URL: "https://example.com/hello"}

		g.AddContent(node)

		assert.Equal(t, 1, g.NodeCount())
		assert.True(t, g.HasNode("1"))
		assert.Equal(t, node, g.Content("1"))
		assert.Nil(t, g.Taxonomy("1"))
	})

	t.Run("InsertionOrder", func(t *testing.T) {
		t.Parallel()
		g := NewContentGraph()

		g.AddContent(&ContentNode{ID: "3", Kind: KindPost})
		g.AddContent(&ContentNode{ID: "1", Kind: KindPost})
		g.AddTaxonomy(&TaxonomyNode{ID: "cat_1", Kind: KindCategory, Name: "News"})
		g.AddContent(&ContentNode{ID: "page_2", Kind: KindPage})

		assert.Equal(t, []string{"3", "1", "cat_1", "page_2"}, g.NodeIDs())

		var ids []string
		for _, n := range g.ContentNodes() {
			ids = append(ids, n.ID)
		}
		assert.Equal(t, []string{"3", "1", "page_2"}, ids)
		assert.Equal(t, 2, g.CountByKind(KindPost))
		assert.Equal(t, 1, g.CountByKind(KindPage))
		assert.Equal(t, 1, g.CountByKind(KindCategory))
	})

	t.Run("ReplaceKeepsPosition", func(t *testing.T) {
		t.Parallel()
		g := NewContentGraph()

		g.AddContent(&ContentNode{ID: "1", Kind: KindPost, Title: "First", URL: "https://example.com/a"})
		g.AddContent(&ContentNode{ID: "2", Kind: KindPost})
		g.AddContent(&ContentNode{ID: "1", Kind: KindPost, Title: "Second", URL: "https://example.com/b"})

		assert.Equal(t, 2, g.NodeCount())
		assert.Equal(t, []string{"1", "2"}, g.NodeIDs())
		assert.Equal(t, "Second", g.Content("1").Title)

		_, found := g.FindContentByURL("https://example.com/a")
		assert.False(t, found)
		n, found := g.FindContentByURL("https://example.com/b")
		require.True(t, found)
		assert.Equal(t, "1", n.ID)
	})
}

func TestContentGraph_FindContentByURL(t *testing.T) {
	t.Parallel()

	g := NewContentGraph()
	g.AddContent(&ContentNode{ID: "1", Kind: KindPost, URL: "https://example.com/dup"})
	g.AddContent(&ContentNode{ID: "2", Kind: KindPost, URL: "https://example.com/dup"})
	g.AddContent(&ContentNode{ID: "3", Kind: KindPost, URL: ""})

	n, found := g.FindContentByURL("https://example.com/dup")
	require.True(t, found)
	assert.Equal(t, "1", n.ID, "first inserted node owning the URL wins")

	_, found = g.FindContentByURL("")
	assert.False(t, found)

	_, found = g.FindContentByURL("https://example.com/dup/")
	assert.False(t, found, "lookup is exact")
}

func TestContentGraph_FindTaxonomyByName(t *testing.T) {
	t.Parallel()

	g := NewContentGraph()
	g.AddTaxonomy(&TaxonomyNode{ID: "cat_1", Kind: KindCategory, Name: "Web Design"})
	g.AddTaxonomy(&TaxonomyNode{ID: "cat_2", Kind: KindCategory, Name: "web design"})
	g.AddTaxonomy(&TaxonomyNode{ID: "tag_1", Kind: KindTag, Name: "Go"})

	n, found := g.FindTaxonomyByName(KindCategory, "WEB DESIGN")
	require.True(t, found)
	assert.Equal(t, "cat_1", n.ID)

	_, found = g.FindTaxonomyByName(KindCategory, "Go")
	assert.False(t, found, "kind must match")

	n, found = g.FindTaxonomyByName(KindTag, "go")
	require.True(t, found)
	assert.Equal(t, "tag_1", n.ID)
}

func TestContentGraph_AddEdge(t *testing.T) {
	t.Parallel()

	t.Run("RequiresEndpoints", func(t *testing.T) {
		t.Parallel()
		g := NewContentGraph()
		g.AddContent(&ContentNode{ID: "1", Kind: KindPost})

		assert.False(t, g.AddEdge(Edge{Source: "1", Target: "cat_9", Kind: EdgeCategorizedAs}))
		assert.False(t, g.AddEdge(Edge{Source: "missing", Target: "1", Kind: EdgeInternalLink}))
		assert.Equal(t, 0, g.EdgeCount())
		assert.Equal(t, 0, g.OutDegree("1"))
	})

	t.Run("Deduplicates", func(t *testing.T) {
		t.Parallel()
		g := NewContentGraph()
		g.AddContent(&ContentNode{ID: "1", Kind: KindPost})
		g.AddContent(&ContentNode{ID: "2", Kind: KindPost})

		assert.True(t, g.AddEdge(Edge{Source: "1", Target: "2", Kind: EdgeInternalLink}))
		assert.False(t, g.AddEdge(Edge{Source: "1", Target: "2", Kind: EdgeInternalLink}))

		assert.Equal(t, 1, g.EdgeCount())
		assert.Equal(t, 1, g.OutDegree("1"))
		assert.Equal(t, 1, g.InDegree("2"))
		assert.True(t, g.HasEdge("1", "2", EdgeInternalLink))
		assert.False(t, g.HasEdge("2", "1", EdgeInternalLink))
	})

	t.Run("DegreesAndFiltering", func(t *testing.T) {
		t.Parallel()
		g := NewContentGraph()
		g.AddContent(&ContentNode{ID: "1", Kind: KindPost})
		g.AddContent(&ContentNode{ID: "2", Kind: KindPost})
		g.AddTaxonomy(&TaxonomyNode{ID: "cat_1", Kind: KindCategory})
		g.AddTaxonomy(&TaxonomyNode{ID: "tag_1", Kind: KindTag})

		g.AddEdge(Edge{Source: "1", Target: "2", Kind: EdgeInternalLink})
		g.AddEdge(Edge{Source: "1", Target: "cat_1", Kind: EdgeCategorizedAs})
		g.AddEdge(Edge{Source: "1", Target: "tag_1", Kind: EdgeTaggedAs})
		g.AddEdge(Edge{Source: "2", Target: "cat_1", Kind: EdgeCategorizedAs})

		assert.Equal(t, 3, g.OutDegree("1"))
		assert.Equal(t, 0, g.InDegree("1"))
		assert.Equal(t, 2, g.InDegree("cat_1"))
		assert.Len(t, g.GetOutgoing("1"), 3)
		assert.Len(t, g.GetOutgoing("1", EdgeInternalLink), 1)
		assert.Len(t, g.GetIncoming("cat_1", EdgeCategorizedAs), 2)
		assert.Nil(t, g.GetIncoming("1"))

		edges := g.Edges()
		require.Len(t, edges, 4)
		assert.Equal(t, Edge{Source: "1", Target: "2", Kind: EdgeInternalLink}, edges[0])
	})
}

func TestContentGraph_Sample(t *testing.T) {
	t.Parallel()

	g := NewContentGraph()
	for i := 0; i < 25; i++ {
		g.AddContent(&ContentNode{
			ID:          string(rune('a' + i)),
			Kind:        KindPost,
			Title:       "Post",
			ExcerptText: strings.Repeat("é", 300),
		})
	}
	g.AddTaxonomy(&TaxonomyNode{ID: "cat_1", Kind: KindCategory})

	sample := g.Sample(20)

	require.Len(t, sample, 20)
	assert.Equal(t, "post", sample[0].Type)
	assert.Equal(t, SampleExcerptLimit, len([]rune(sample[0].Excerpt)))
}

func TestContentGraph_Stats(t *testing.T) {
	t.Parallel()

	g := NewContentGraph()
	g.AddContent(&ContentNode{ID: "1", Kind: KindPost})
	g.AddTaxonomy(&TaxonomyNode{ID: "cat_1", Kind: KindCategory})
	g.AddEdge(Edge{Source: "1", Target: "cat_1", Kind: EdgeCategorizedAs})

	stats := g.Stats()

	assert.Equal(t, 2, stats["nodes"])
	assert.Equal(t, 1, stats["content"])
	assert.Equal(t, 1, stats["taxonomy"])
	assert.Equal(t, 1, stats["edges"])
}
